// Package store provides the shared key-value store the coordination
// packages persist into. The interface is small enough to fake in tests;
// the production implementation is Redis.
package store

import (
	"context"
	"time"
)

// Store is the persistence surface used by the player, room and
// matchmaking packages. Missing keys and fields are reported as ErrNil.
// All operations return ErrNotConnected before Connect succeeds.
type Store interface {
	Connect(ctx context.Context) error
	Close() error

	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	Delete(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error

	HGet(ctx context.Context, key, field string) (string, error)
	HSet(ctx context.Context, key, field, value string) error
	HSetNX(ctx context.Context, key, field, value string) (bool, error)
	HDel(ctx context.Context, key string, fields ...string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HLen(ctx context.Context, key string) (int64, error)

	LPush(ctx context.Context, key string, values ...string) error
	RPop(ctx context.Context, key string) (string, error)
	LRem(ctx context.Context, key, value string) (int64, error)
	LLen(ctx context.Context, key string) (int64, error)
	LRange(ctx context.Context, key string, start, stop int64) ([]string, error)

	// WithLock runs fn while holding the named distributed lock.
	WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error
}
