// Package cache is the Redis-backed session store. Entries carry a per-key
// TTL enforced by the backend, so no sweeper runs in the service layer; an
// entry that has expired is simply absent.
package cache
