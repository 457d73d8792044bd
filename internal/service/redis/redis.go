package redis

import (
	"context"
	"time"

	"anon_messenger/internal/service/store"

	"github.com/redis/go-redis/v9"
)

type (
	// RedisService implements store.Client over a shared go-redis handle.
	RedisService struct {
		rdb *redis.Client
	}
)

var _ store.Client = (*RedisService)(nil)

func NewRedis(rdb *redis.Client) *RedisService {
	return &RedisService{
		rdb: rdb,
	}
}

func (r *RedisService) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}

func (r *RedisService) Incr(ctx context.Context, key string) (int64, error) {
	return r.rdb.Incr(ctx, key).Result()
}

func (r *RedisService) Get(ctx context.Context, key string) (string, error) {
	v, err := r.rdb.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", store.ErrNotFound
	}
	return v, err
}

func (r *RedisService) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	return r.rdb.Set(ctx, key, value, ttl).Err()
}

func (r *RedisService) Del(ctx context.Context, keys ...string) error {
	return r.rdb.Del(ctx, keys...).Err()
}

func (r *RedisService) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return r.rdb.Expire(ctx, key, ttl).Err()
}

func (r *RedisService) TTL(ctx context.Context, key string) (time.Duration, error) {
	d, err := r.rdb.TTL(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	// -2: key absent, -1: key without expiry.
	if d == -2 {
		return 0, store.ErrNotFound
	}
	if d < 0 {
		return 0, nil
	}
	return d, nil
}

func (r *RedisService) Exists(ctx context.Context, key string) (bool, error) {
	n, err := r.rdb.Exists(ctx, key).Result()
	return n > 0, err
}

func (r *RedisService) SAdd(ctx context.Context, key string, members ...any) error {
	return r.rdb.SAdd(ctx, key, members...).Err()
}

func (r *RedisService) SRem(ctx context.Context, key string, members ...any) error {
	return r.rdb.SRem(ctx, key, members...).Err()
}

func (r *RedisService) SMembers(ctx context.Context, key string) ([]string, error) {
	return r.rdb.SMembers(ctx, key).Result()
}

func (r *RedisService) SCard(ctx context.Context, key string) (int64, error) {
	return r.rdb.SCard(ctx, key).Result()
}

func (r *RedisService) SIsMember(ctx context.Context, key string, member any) (bool, error) {
	return r.rdb.SIsMember(ctx, key, member).Result()
}

func (r *RedisService) RPush(ctx context.Context, key string, values ...any) error {
	return r.rdb.RPush(ctx, key, values...).Err()
}

func (r *RedisService) LRange(ctx context.Context, key string) ([]string, error) {
	return r.rdb.LRange(ctx, key, 0, -1).Result()
}

func (r *RedisService) LIndex(ctx context.Context, key string, index int64) (string, error) {
	v, err := r.rdb.LIndex(ctx, key, index).Result()
	if err == redis.Nil {
		return "", store.ErrNotFound
	}
	return v, err
}

func (r *RedisService) LSet(ctx context.Context, key string, index int64, value any) error {
	return r.rdb.LSet(ctx, key, index, value).Err()
}

func (r *RedisService) LRem(ctx context.Context, key string, count int64, value any) error {
	return r.rdb.LRem(ctx, key, count, value).Err()
}
