package user

import "time"

// User is the users table row. Username is unique across both login methods;
// WechatOpenID is unique among WeChat-bound accounts.
type User struct {
	ID              int64     `gorm:"primaryKey" json:"id"`
	Username        string    `gorm:"size:50;uniqueIndex" json:"username"`
	RealName        string    `gorm:"size:50" json:"realName,omitempty"`
	Password        string    `gorm:"size:100" json:"-"`
	Email           string    `gorm:"size:100" json:"email,omitempty"`
	Phone           string    `gorm:"size:20" json:"phone,omitempty"`
	WechatOpenID    *string   `gorm:"size:100;uniqueIndex" json:"-"`
	WechatNickName  string    `gorm:"size:100" json:"wechatNickName,omitempty"`
	WechatAvatarURL string    `gorm:"size:500" json:"wechatAvatarUrl,omitempty"`
	Status          int8      `gorm:"default:1" json:"status"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// Account status values.
const (
	StatusDisabled int8 = 0
	StatusEnabled  int8 = 1
)

// TableName pins the table name to the original schema.
func (User) TableName() string { return "users" }

// Enabled reports whether the account may log in.
func (u *User) Enabled() bool { return u.Status == StatusEnabled }
