package wechat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

var (
	// ErrExchange is returned when the WeChat API rejects the login code.
	ErrExchange = errors.New("wechat code exchange rejected")
	// ErrNotConfigured is returned when appid/secret are missing.
	ErrNotConfigured = errors.New("wechat credentials not configured")
	// ErrUnavailable is returned on transport failures toward the WeChat API.
	ErrUnavailable = errors.New("wechat api unavailable")
)

const (
	defaultBaseURL = "https://api.weixin.qq.com"
	defaultTimeout = 10 * time.Second
)

// Session is the result of a successful code exchange.
type Session struct {
	OpenID     string `json:"openid"`
	SessionKey string `json:"session_key"`
	UnionID    string `json:"unionid"`
}

type code2SessionResponse struct {
	OpenID     string `json:"openid"`
	SessionKey string `json:"session_key"`
	UnionID    string `json:"unionid"`
	ErrCode    int    `json:"errcode"`
	ErrMsg     string `json:"errmsg"`
}

// Exchanger swaps a client-side login code for a WeChat session.
type Exchanger interface {
	Exchange(ctx context.Context, code string) (*Session, error)
}

// Client calls the WeChat jscode2session endpoint.
type Client struct {
	appID      string
	secret     string
	baseURL    string
	httpClient *http.Client
}

// Option customizes a [Client].
type Option func(*Client)

// WithBaseURL overrides the WeChat API endpoint, mainly for tests.
func WithBaseURL(base string) Option {
	return func(c *Client) { c.baseURL = base }
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient builds a code-exchange client for the given mini-program
// credentials. The underlying HTTP client carries a bounded timeout.
func NewClient(appID, secret string, opts ...Option) *Client {
	c := &Client{
		appID:      appID,
		secret:     secret,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Exchange swaps code for an openid + session key via
// GET /sns/jscode2session. A non-zero errcode or a missing openid is an
// [ErrExchange]; missing credentials are [ErrNotConfigured].
func (c *Client) Exchange(ctx context.Context, code string) (*Session, error) {
	if c.appID == "" || c.secret == "" {
		return nil, ErrNotConfigured
	}

	params := url.Values{}
	params.Set("appid", c.appID)
	params.Set("secret", c.secret)
	params.Set("js_code", code)
	params.Set("grant_type", "authorization_code")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/sns/jscode2session?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	var body code2SessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	// WeChat reports errors in-band with HTTP 200.
	if body.ErrCode != 0 {
		return nil, fmt.Errorf("%w: %s (errcode %d)", ErrExchange, body.ErrMsg, body.ErrCode)
	}
	if body.OpenID == "" {
		return nil, fmt.Errorf("%w: response carries no openid", ErrExchange)
	}

	return &Session{OpenID: body.OpenID, SessionKey: body.SessionKey, UnionID: body.UnionID}, nil
}
