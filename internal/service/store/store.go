package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get, TTL and LIndex when the key is absent.
var ErrNotFound = errors.New("store: key not found")

type (
	// Client is the ephemeral key-value contract every component operates
	// against. Counters must use Incr; callers never read-then-write a
	// counter. A single client handle is constructed per process and passed
	// explicitly to each component.
	Client interface {
		Ping(ctx context.Context) error

		Incr(ctx context.Context, key string) (int64, error)
		Get(ctx context.Context, key string) (string, error)
		Set(ctx context.Context, key string, value any, ttl time.Duration) error
		Del(ctx context.Context, keys ...string) error
		Expire(ctx context.Context, key string, ttl time.Duration) error
		TTL(ctx context.Context, key string) (time.Duration, error)
		Exists(ctx context.Context, key string) (bool, error)

		SAdd(ctx context.Context, key string, members ...any) error
		SRem(ctx context.Context, key string, members ...any) error
		SMembers(ctx context.Context, key string) ([]string, error)
		SCard(ctx context.Context, key string) (int64, error)
		SIsMember(ctx context.Context, key string, member any) (bool, error)

		RPush(ctx context.Context, key string, values ...any) error
		LRange(ctx context.Context, key string) ([]string, error)
		LIndex(ctx context.Context, key string, index int64) (string, error)
		LSet(ctx context.Context, key string, index int64, value any) error
		LRem(ctx context.Context, key string, count int64, value any) error
	}
)
