package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/renqiu-dev/wxauth/internal/auth"
	"github.com/renqiu-dev/wxauth/internal/events"
	"github.com/renqiu-dev/wxauth/internal/token"
	"github.com/renqiu-dev/wxauth/internal/wechat"
)

// Sentinel errors for the user service; the HTTP layer maps them to response
// codes.
var (
	ErrNotRegistered      = errors.New("user not registered")
	ErrAccountDisabled    = errors.New("account disabled")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserExists         = errors.New("user already exists")
)

// Service implements registration, login (password and WeChat code), and
// lookup over the user directory.
type Service struct {
	repo      Repository
	exchanger wechat.Exchanger
	sessions  *auth.Service
	publisher events.Publisher
	logger    *slog.Logger
}

// NewService wires the user service's collaborators.
func NewService(repo Repository, exchanger wechat.Exchanger, sessions *auth.Service, publisher events.Publisher, logger *slog.Logger) *Service {
	return &Service{
		repo:      repo,
		exchanger: exchanger,
		sessions:  sessions,
		publisher: publisher,
		logger:    logger,
	}
}

// WechatLogin exchanges a mini-program login code and issues a session token
// for the bound account. Unregistered openids are rejected: registration is
// an explicit step.
func (s *Service) WechatLogin(ctx context.Context, code string) (*auth.LoginToken, error) {
	sess, err := s.exchanger.Exchange(ctx, code)
	if err != nil {
		return nil, err
	}

	u, err := s.repo.FindByOpenID(ctx, sess.OpenID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrNotRegistered
	}
	if !u.Enabled() {
		return nil, ErrAccountDisabled
	}

	issued, err := s.issueFor(ctx, u)
	if err != nil {
		return nil, err
	}
	s.publisher.Publish(ctx, events.UserLogin, s.event(u))
	return issued, nil
}

// WechatRegister exchanges the code and creates an account for the openid.
// An already-bound openid short-circuits to login semantics and returns a
// fresh token instead of failing.
func (s *Service) WechatRegister(ctx context.Context, code, nickName, avatarURL string) (*auth.LoginToken, error) {
	sess, err := s.exchanger.Exchange(ctx, code)
	if err != nil {
		return nil, err
	}

	existing, err := s.repo.FindByOpenID(ctx, sess.OpenID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if !existing.Enabled() {
			return nil, ErrAccountDisabled
		}
		return s.issueFor(ctx, existing)
	}

	openID := sess.OpenID
	u := &User{
		Username:        generatedUsername(openID),
		WechatOpenID:    &openID,
		WechatNickName:  nickName,
		WechatAvatarURL: avatarURL,
		Status:          StatusEnabled,
	}
	if err := s.repo.Create(ctx, u); err != nil {
		return nil, err
	}
	s.logger.Info("wechat user registered", "userId", u.ID, "username", u.Username)

	issued, err := s.issueFor(ctx, u)
	if err != nil {
		return nil, err
	}
	s.publisher.Publish(ctx, events.UserRegistered, s.event(u))
	return issued, nil
}

// PasswordLogin authenticates a username/password pair. User-not-found and
// wrong-password collapse into one error so the response does not reveal
// which usernames exist.
func (s *Service) PasswordLogin(ctx context.Context, username, password string) (*auth.LoginToken, error) {
	u, err := s.repo.FindByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if u == nil || u.Password == "" {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	if !u.Enabled() {
		return nil, ErrAccountDisabled
	}

	issued, err := s.issueFor(ctx, u)
	if err != nil {
		return nil, err
	}
	s.publisher.Publish(ctx, events.UserLogin, s.event(u))
	return issued, nil
}

// Register creates a password-based account and issues a token for it.
func (s *Service) Register(ctx context.Context, username, password, realName, email, phone string) (*auth.LoginToken, error) {
	existing, err := s.repo.FindByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrUserExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	u := &User{
		Username: username,
		Password: string(hash),
		RealName: realName,
		Email:    email,
		Phone:    phone,
		Status:   StatusEnabled,
	}
	if err := s.repo.Create(ctx, u); err != nil {
		return nil, err
	}
	s.logger.Info("user registered", "userId", u.ID, "username", u.Username)

	issued, err := s.issueFor(ctx, u)
	if err != nil {
		return nil, err
	}
	s.publisher.Publish(ctx, events.UserRegistered, s.event(u))
	return issued, nil
}

// FindByID looks up a user by primary key; absent users return (nil, nil).
func (s *Service) FindByID(ctx context.Context, id int64) (*User, error) {
	return s.repo.FindByID(ctx, id)
}

// FindByUsername looks up a user by unique username.
func (s *Service) FindByUsername(ctx context.Context, username string) (*User, error) {
	return s.repo.FindByUsername(ctx, username)
}

func (s *Service) issueFor(ctx context.Context, u *User) (*auth.LoginToken, error) {
	username := u.Username
	if username == "" && u.WechatOpenID != nil {
		username = *u.WechatOpenID
	}
	return s.sessions.Issue(ctx, token.Payload{Sub: u.ID, Username: username})
}

func (s *Service) event(u *User) events.UserEvent {
	ev := events.UserEvent{UserID: u.ID, Username: u.Username, At: time.Now()}
	if u.WechatOpenID != nil {
		ev.OpenID = *u.WechatOpenID
	}
	return ev
}

// generatedUsername builds a unique username for a fresh WeChat account from
// the openid prefix and the current unix-millisecond clock.
func generatedUsername(openID string) string {
	prefix := openID
	if len(prefix) > 10 {
		prefix = prefix[:10]
	}
	return fmt.Sprintf("wx_%s_%d", prefix, time.Now().UnixMilli())
}
