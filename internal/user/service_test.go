package user

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/renqiu-dev/wxauth/internal/auth"
	"github.com/renqiu-dev/wxauth/internal/cache"
	"github.com/renqiu-dev/wxauth/internal/events"
	"github.com/renqiu-dev/wxauth/internal/token"
	"github.com/renqiu-dev/wxauth/internal/wechat"
)

type fakeRepo struct {
	mu        sync.Mutex
	nextID    int64
	users     []*User
	createErr error
}

func (r *fakeRepo) FindByID(_ context.Context, id int64) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, nil
}

func (r *fakeRepo) FindByUsername(_ context.Context, username string) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, nil
}

func (r *fakeRepo) FindByOpenID(_ context.Context, openID string) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.WechatOpenID != nil && *u.WechatOpenID == openID {
			return u, nil
		}
	}
	return nil, nil
}

func (r *fakeRepo) Create(_ context.Context, u *User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	r.nextID++
	u.ID = r.nextID
	u.CreatedAt = time.Now()
	u.UpdatedAt = time.Now()
	r.users = append(r.users, u)
	return nil
}

type fakeExchanger struct {
	sessions map[string]*wechat.Session
	err      error
}

func (f *fakeExchanger) Exchange(_ context.Context, code string) (*wechat.Session, error) {
	if f.err != nil {
		return nil, f.err
	}
	sess, ok := f.sessions[code]
	if !ok {
		return nil, wechat.ErrExchange
	}
	return sess, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	keys   []string
	events []events.UserEvent
}

func (p *recordingPublisher) Publish(_ context.Context, routingKey string, ev events.UserEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys = append(p.keys, routingKey)
	p.events = append(p.events, ev)
}

func (p *recordingPublisher) Close() error { return nil }

type serviceFixture struct {
	svc       *Service
	repo      *fakeRepo
	exchanger *fakeExchanger
	publisher *recordingPublisher
	sessions  *auth.Service
}

func newFixture(t *testing.T) *serviceFixture {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	codec, err := token.NewCodec(token.Config{Secret: []byte("test-secret"), TTL: 7200 * time.Second})
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sessions := auth.NewService(codec, cache.NewStore(rdb, time.Second), logger)

	repo := &fakeRepo{}
	exchanger := &fakeExchanger{sessions: map[string]*wechat.Session{}}
	publisher := &recordingPublisher{}

	return &serviceFixture{
		svc:       NewService(repo, exchanger, sessions, publisher, logger),
		repo:      repo,
		exchanger: exchanger,
		publisher: publisher,
		sessions:  sessions,
	}
}

func TestWechatLoginUnregistered(t *testing.T) {
	f := newFixture(t)
	f.exchanger.sessions["code-1"] = &wechat.Session{OpenID: "o-unknown"}

	_, err := f.svc.WechatLogin(context.Background(), "code-1")
	require.ErrorIs(t, err, ErrNotRegistered)
}

func TestWechatLoginDisabledAccount(t *testing.T) {
	f := newFixture(t)
	openID := "o-disabled"
	require.NoError(t, f.repo.Create(context.Background(), &User{
		Username:     "zhang",
		WechatOpenID: &openID,
		Status:       StatusDisabled,
	}))
	f.exchanger.sessions["code-1"] = &wechat.Session{OpenID: openID}

	_, err := f.svc.WechatLogin(context.Background(), "code-1")
	require.ErrorIs(t, err, ErrAccountDisabled)
}

func TestWechatLoginIssuesValidToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	openID := "o-bound"
	require.NoError(t, f.repo.Create(ctx, &User{
		Username:     "zhang",
		WechatOpenID: &openID,
		Status:       StatusEnabled,
	}))
	f.exchanger.sessions["code-1"] = &wechat.Session{OpenID: openID}

	issued, err := f.svc.WechatLogin(ctx, "code-1")
	require.NoError(t, err)
	require.NotEmpty(t, issued.Token)
	require.EqualValues(t, 7200, issued.ExpiresIn)

	payload, err := f.sessions.Validate(ctx, issued.Token)
	require.NoError(t, err)
	require.Equal(t, "zhang", payload.Username)

	require.Equal(t, []string{events.UserLogin}, f.publisher.keys)
}

func TestWechatLoginBadCodePropagatesExchangeError(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.WechatLogin(context.Background(), "no-such-code")
	require.ErrorIs(t, err, wechat.ErrExchange)
}

func TestWechatRegisterCreatesUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.exchanger.sessions["code-1"] = &wechat.Session{OpenID: "o-new-openid-123"}

	issued, err := f.svc.WechatRegister(ctx, "code-1", "nick", "https://a/avatar.png")
	require.NoError(t, err)
	require.NotEmpty(t, issued.Token)

	u, err := f.repo.FindByOpenID(ctx, "o-new-openid-123")
	require.NoError(t, err)
	require.NotNil(t, u)
	require.True(t, strings.HasPrefix(u.Username, "wx_o-new-open_"), "username %q", u.Username)
	require.Equal(t, "nick", u.WechatNickName)
	require.Equal(t, StatusEnabled, u.Status)
	require.Empty(t, u.Password)

	require.Equal(t, []string{events.UserRegistered}, f.publisher.keys)
}

func TestWechatRegisterExistingUserGetsToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	openID := "o-bound"
	require.NoError(t, f.repo.Create(ctx, &User{
		Username:     "zhang",
		WechatOpenID: &openID,
		Status:       StatusEnabled,
	}))
	f.exchanger.sessions["code-1"] = &wechat.Session{OpenID: openID}

	issued, err := f.svc.WechatRegister(ctx, "code-1", "new-nick", "")
	require.NoError(t, err)
	require.NotEmpty(t, issued.Token)

	// No duplicate account, no registered event for an existing binding.
	require.Len(t, f.repo.users, 1)
	require.Empty(t, f.publisher.keys)
}

func TestPasswordLoginRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	issued, err := f.svc.Register(ctx, "alice", "s3cret-pass", "Alice", "a@example.com", "")
	require.NoError(t, err)
	require.NotEmpty(t, issued.Token)

	stored, err := f.repo.FindByUsername(ctx, "alice")
	require.NoError(t, err)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.Password), []byte("s3cret-pass")))

	login, err := f.svc.PasswordLogin(ctx, "alice", "s3cret-pass")
	require.NoError(t, err)
	payload, err := f.sessions.Validate(ctx, login.Token)
	require.NoError(t, err)
	require.Equal(t, stored.ID, payload.Sub)
}

func TestPasswordLoginRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.Register(ctx, "alice", "s3cret-pass", "", "", "")
	require.NoError(t, err)

	_, err = f.svc.PasswordLogin(ctx, "alice", "wrong")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = f.svc.PasswordLogin(ctx, "nobody", "whatever")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	// WeChat-only accounts carry no password and cannot password-login.
	openID := "o-wx-only"
	require.NoError(t, f.repo.Create(ctx, &User{Username: "wxonly", WechatOpenID: &openID, Status: StatusEnabled}))
	_, err = f.svc.PasswordLogin(ctx, "wxonly", "")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRegisterDuplicateUsername(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.Register(ctx, "alice", "pass-one", "", "", "")
	require.NoError(t, err)

	_, err = f.svc.Register(ctx, "alice", "pass-two", "", "", "")
	require.ErrorIs(t, err, ErrUserExists)
}

func TestRegisterLosingInsertRaceReportsUserExists(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// The pre-insert lookup sees nothing, but a concurrent insert has already
	// claimed the username: the unique index rejects and the repository
	// reports ErrUserExists.
	f.repo.createErr = ErrUserExists

	_, err := f.svc.Register(ctx, "alice", "s3cret-pass", "", "", "")
	require.ErrorIs(t, err, ErrUserExists)
	require.Empty(t, f.publisher.keys)
}
