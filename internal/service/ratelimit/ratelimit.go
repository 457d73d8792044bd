// Package ratelimit implements a fixed-window counter against the shared
// store. The same primitive guards registration (per origin IP) and
// messaging (per identity code).
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"anon_messenger/internal/service/store"
	"anon_messenger/internal/utils/log"

	"go.uber.org/zap"
)

type (
	Limiter struct {
		store     store.Client
		keyPrefix string
		window    time.Duration
		threshold int64
	}
)

func NewLimiter(st store.Client, keyPrefix string, window time.Duration, threshold int64) *Limiter {
	return &Limiter{
		store:     st,
		keyPrefix: keyPrefix,
		window:    window,
		threshold: threshold,
	}
}

// Allow counts one event for scope and reports whether it fits the window.
// The store's atomic increment is the only mutation; the first increment in
// a window attaches the expiry. Rejected calls still count, so a blocked
// scope stays blocked until the window expires on its own. Concurrent
// first-increments may both set the expiry; the redundant set is harmless.
func (l *Limiter) Allow(ctx context.Context, scope string) (bool, error) {
	if scope == "" {
		return true, nil
	}

	key := l.keyPrefix + scope
	count, err := l.store.Incr(ctx, key)
	if err != nil {
		return false, fmt.Errorf("ratelimit: incr %s: %w", key, err)
	}

	if count == 1 {
		if err := l.store.Expire(ctx, key, l.window); err != nil {
			return false, fmt.Errorf("ratelimit: expire %s: %w", key, err)
		}
	}

	if count > l.threshold {
		log.Warn("rate limit exceeded",
			zap.String("scope", scope),
			zap.Int64("count", count),
			zap.Int64("threshold", l.threshold))
		return false, nil
	}
	return true, nil
}
