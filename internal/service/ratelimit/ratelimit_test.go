package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"anon_messenger/internal/service/store/storetest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFixedWindowThreshold(t *testing.T) {
	st := storetest.New()
	l := NewLimiter(st, "anon:rate:", time.Hour, 5)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		allowed, err := l.Allow(ctx, "203.0.113.7")
		require.NoError(t, err)
		assert.True(t, allowed, "request %d should be allowed", i+1)
	}

	allowed, err := l.Allow(ctx, "203.0.113.7")
	require.NoError(t, err)
	assert.False(t, allowed, "6th request in the window must be rejected")

	// window elapses, a fresh attempt succeeds
	st.Advance(time.Hour + time.Second)
	allowed, err = l.Allow(ctx, "203.0.113.7")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestRejectedCallsKeepScopeBlocked(t *testing.T) {
	st := storetest.New()
	l := NewLimiter(st, "msg:rate:", time.Minute, 3)
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		_, err := l.Allow(ctx, "AAAA-AAAA-AAAA-AAAA")
		require.NoError(t, err)
	}

	// halfway through the window the scope is still blocked; rejected calls
	// counted too, but the window expiry was fixed by the first increment
	st.Advance(30 * time.Second)
	allowed, err := l.Allow(ctx, "AAAA-AAAA-AAAA-AAAA")
	require.NoError(t, err)
	assert.False(t, allowed)

	st.Advance(31 * time.Second)
	allowed, err = l.Allow(ctx, "AAAA-AAAA-AAAA-AAAA")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestScopesAreIndependent(t *testing.T) {
	st := storetest.New()
	l := NewLimiter(st, "anon:rate:", time.Hour, 1)
	ctx := context.Background()

	allowed, err := l.Allow(ctx, "198.51.100.1")
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = l.Allow(ctx, "198.51.100.1")
	require.NoError(t, err)
	assert.False(t, allowed)

	allowed, err = l.Allow(ctx, "198.51.100.2")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestEmptyScopeAllowed(t *testing.T) {
	l := NewLimiter(storetest.New(), "anon:rate:", time.Hour, 1)

	allowed, err := l.Allow(context.Background(), "")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestStoreError(t *testing.T) {
	st := storetest.New()
	st.Err = errors.New("connection refused")
	l := NewLimiter(st, "anon:rate:", time.Hour, 5)

	allowed, err := l.Allow(context.Background(), "203.0.113.7")
	require.Error(t, err)
	assert.False(t, allowed)
}
