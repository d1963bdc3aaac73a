package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/renqiu-dev/wxauth/internal/token"
)

var (
	// ErrUnauthorized is returned whenever a credential cannot be accepted,
	// for any reason: bad signature, embedded expiry, revoked or expired
	// session, or an unreachable store during validation (fail-closed).
	ErrUnauthorized = errors.New("unauthorized")
	// ErrSessionNotFound is returned when the signature verifies but the
	// session record is absent from the store (revoked or naturally expired).
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionCache is returned when the session record cannot be written
	// at issuance. No token is handed out in that case.
	ErrSessionCache = errors.New("session cache write failed")
)

const sessionKeyPrefix = "session:jwt:"

// LoginToken is the issuance result returned to clients.
type LoginToken struct {
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expiresIn"`
}

// sessionRecord is the serialized value stored under the session key.
type sessionRecord struct {
	UserID   int64  `json:"userId"`
	Username string `json:"username"`
}

// SessionStore is the slice of the cache layer the service needs. An
// implementation must only report a Put as successful once the backend has
// acknowledged the write.
type SessionStore interface {
	Put(ctx context.Context, key, value string, ttl time.Duration) error
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) (int64, error)
}

// Service owns the policy binding a signed credential to cache-backed session
// state: a token authorizes a request iff its session record is present in
// the store. The store, not the signature, is the revocation authority.
type Service struct {
	codec  *token.Codec
	store  SessionStore
	logger *slog.Logger
	ttl    time.Duration
}

// NewService composes the codec and store. The session lifetime is taken
// from the codec so the cache TTL always matches the credential's embedded
// expiry.
func NewService(codec *token.Codec, store SessionStore, logger *slog.Logger) *Service {
	return &Service{codec: codec, store: store, logger: logger, ttl: codec.TTL()}
}

// SessionKey derives the cache key for a raw token string. The full token is
// embedded in the key, trading key-space compactness for a trivially
// deterministic mapping.
func SessionKey(tok string) string {
	return sessionKeyPrefix + tok
}

// Issue signs a credential for payload and records the session in the store.
// The store write must complete before the token is returned, so a validate
// that follows issuance is guaranteed to see the record. If the write fails
// or is not acknowledged, no token is returned: a token whose session was
// never recorded could never pass validation.
func (s *Service) Issue(ctx context.Context, payload token.Payload) (*LoginToken, error) {
	signed, err := s.codec.Sign(payload)
	if err != nil {
		return nil, err
	}

	record, err := json.Marshal(sessionRecord{UserID: payload.Sub, Username: payload.Username})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionCache, err)
	}

	key := SessionKey(signed)
	if err := s.store.Put(ctx, key, string(record), s.ttl); err != nil {
		s.logger.Error("session record write failed",
			"sessionKey", truncateKey(key),
			"sub", payload.Sub,
			"error", err,
		)
		return nil, fmt.Errorf("%w: %v", ErrSessionCache, err)
	}

	return &LoginToken{Token: signed, ExpiresIn: int64(s.ttl.Seconds())}, nil
}

// Validate verifies the credential's signature and expiry, then requires the
// session record to still be present in the store. A valid signature with an
// absent record is rejected: that is how server-side revocation works before
// natural expiry. Store failures during lookup also reject (fail closed).
func (s *Service) Validate(ctx context.Context, tok string) (*token.Payload, error) {
	claims, err := s.codec.Verify(tok)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}

	key := SessionKey(tok)
	exists, err := s.store.Exists(ctx, key)
	if err != nil {
		s.logger.Error("session lookup failed",
			"sessionKey", truncateKey(key),
			"sub", claims.Sub,
			"error", err,
		)
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	if !exists {
		s.logger.Warn("session record absent for verified token",
			"sessionKey", truncateKey(key),
			"sub", claims.Sub,
			"username", claims.Username,
		)
		return nil, fmt.Errorf("%w: %w", ErrUnauthorized, ErrSessionNotFound)
	}

	payload := claims.Payload()
	return &payload, nil
}

// Revoke deletes the session record for tok. Revoking an absent or already
// revoked token is not an error.
func (s *Service) Revoke(ctx context.Context, tok string) error {
	_, err := s.store.Delete(ctx, SessionKey(tok))
	return err
}

// TTL reports the effective session lifetime.
func (s *Service) TTL() time.Duration {
	return s.ttl
}

// truncateKey keeps log lines debuggable without exposing the full token.
func truncateKey(key string) string {
	const max = 50
	if len(key) <= max {
		return key
	}
	return key[:max] + "..."
}
