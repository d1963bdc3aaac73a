package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrStoreUnavailable is returned when the backend cannot be reached or a
// command fails for transport reasons.
var ErrStoreUnavailable = errors.New("session store unavailable")

// ErrNotFound is returned by Get when the key is absent or already expired.
var ErrNotFound = errors.New("key not found")

const defaultCommandTimeout = 5 * time.Second

// Store is a Redis-backed key-value store with per-key TTL. Every operation
// runs under a bounded command timeout so a hung backend cannot stall request
// handling indefinitely.
type Store struct {
	redis          redis.UniversalClient
	commandTimeout time.Duration
}

// NewStore wraps the given Redis client. commandTimeout bounds each round
// trip; non-positive values fall back to 5s.
func NewStore(rdb redis.UniversalClient, commandTimeout time.Duration) *Store {
	if commandTimeout <= 0 {
		commandTimeout = defaultCommandTimeout
	}
	return &Store{redis: rdb, commandTimeout: commandTimeout}
}

func (s *Store) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.commandTimeout)
}

// Put stores value under key with the given TTL, overwriting any existing
// entry. A transport failure or a non-OK acknowledgment from the backend is
// reported as [ErrStoreUnavailable]: callers must never treat an unacked
// write as stored.
func (s *Store) Put(ctx context.Context, key, value string, ttl time.Duration) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	ack, err := s.redis.Set(ctx, key, value, ttl).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if ack != "OK" {
		return fmt.Errorf("%w: unexpected SET acknowledgment %q", ErrStoreUnavailable, ack)
	}
	return nil
}

// Get returns the value stored under key, or [ErrNotFound] when absent.
func (s *Store) Get(ctx context.Context, key string) (string, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	val, err := s.redis.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return val, nil
}

// Exists reports whether key currently holds a live entry.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	n, err := s.redis.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return n > 0, nil
}

// Delete removes key and returns how many entries were removed. Deleting an
// absent key is not an error.
func (s *Store) Delete(ctx context.Context, key string) (int64, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	n, err := s.redis.Del(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return n, nil
}

// Ping returns a point-in-time backend availability check and its latency.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return time.Since(start), nil
}
