package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrTokenInvalid is returned when a token fails signature or structural checks.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrTokenExpired is returned when a token's embedded expiry has passed.
	ErrTokenExpired = errors.New("token expired")
)

// Payload is the identity carried inside a signed credential.
type Payload struct {
	Sub      int64  `json:"sub"`
	Username string `json:"username"`
}

// Claims is the full JWT claim set: the identity payload plus registered claims.
type Claims struct {
	Sub      int64  `json:"sub"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Payload extracts the identity portion of the claim set.
func (c *Claims) Payload() Payload {
	return Payload{Sub: c.Sub, Username: c.Username}
}

// Config holds the signing parameters for a [Codec].
//
// Config instances are set once at startup and treated as immutable afterwards.
type Config struct {
	Secret []byte
	TTL    time.Duration
	Issuer string
	Leeway time.Duration
}

// Codec signs and verifies HS256 credentials carrying a [Payload].
type Codec struct {
	config Config
}

// NewCodec validates cfg and returns a ready Codec.
func NewCodec(cfg Config) (*Codec, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("hs256 requires a signing secret")
	}
	if cfg.TTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	return &Codec{config: cfg}, nil
}

// TTL reports the configured credential lifetime.
func (c *Codec) TTL() time.Duration {
	return c.config.TTL
}

// Sign produces a signed credential embedding payload with expiry now + TTL.
// The output varies per call through the issued-at timestamp and jti.
func (c *Codec) Sign(payload Payload) (string, error) {
	now := time.Now()
	claims := Claims{
		Sub:      payload.Sub,
		Username: payload.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(c.config.TTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
			Issuer:    c.config.Issuer,
		},
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(c.config.Secret)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	return signed, nil
}

// Verify parses and validates a credential. It never trusts an unverified
// token: signature, algorithm, and expiry are all checked before the payload
// is returned.
func (c *Codec) Verify(tokenStr string) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	}
	if c.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(c.config.Leeway))
	}
	if c.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(c.config.Issuer))
	}

	parser := jwt.NewParser(options...)
	tok, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		return c.config.Secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %v", ErrTokenExpired, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	claims, ok := tok.Claims.(*Claims)
	if !ok || !tok.Valid {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}
