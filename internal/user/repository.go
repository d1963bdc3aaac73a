package user

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

// Repository is the persistence port the service depends on. Absent rows are
// reported as (nil, nil); errors are reserved for backend failures.
type Repository interface {
	FindByID(ctx context.Context, id int64) (*User, error)
	FindByUsername(ctx context.Context, username string) (*User, error)
	FindByOpenID(ctx context.Context, openID string) (*User, error)
	Create(ctx context.Context, u *User) error
}

// GormRepository implements [Repository] over a gorm-managed MySQL table.
type GormRepository struct {
	db *gorm.DB
}

// NewGormRepository wraps db.
func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

func (r *GormRepository) FindByID(ctx context.Context, id int64) (*User, error) {
	var u User
	err := r.db.WithContext(ctx).First(&u, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

func (r *GormRepository) FindByUsername(ctx context.Context, username string) (*User, error) {
	var u User
	err := r.db.WithContext(ctx).Where("username = ?", username).First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

func (r *GormRepository) FindByOpenID(ctx context.Context, openID string) (*User, error) {
	var u User
	err := r.db.WithContext(ctx).Where("wechat_open_id = ?", openID).First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

// Create inserts u. A unique-index collision maps to [ErrUserExists]: the
// pre-insert existence checks in the service race with concurrent inserts,
// and the index is what actually arbitrates. Requires TranslateError on the
// gorm config.
func (r *GormRepository) Create(ctx context.Context, u *User) error {
	err := r.db.WithContext(ctx).Create(u).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrUserExists
	}
	return err
}
