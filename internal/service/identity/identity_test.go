package identity

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"anon_messenger/internal/service/store/storetest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) (*Service, *storetest.Store) {
	t.Helper()
	st := storetest.New()
	svc := NewService(st, 120*time.Minute, 24*time.Hour, 2*time.Hour)
	// drive the service clock from the fake store clock so Advance moves both
	svc.now = st.Now
	return svc, st
}

func TestIssueAndValidate(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	code, err := svc.Issue(ctx)
	require.NoError(t, err)

	require.NoError(t, svc.ValidateAndRenew(ctx, code))
	require.NoError(t, svc.ValidateReadOnly(ctx, code))

	remaining, err := svc.RemainingSeconds(ctx, code)
	require.NoError(t, err)
	assert.Greater(t, remaining, int64(0))
}

func TestCodeFormat(t *testing.T) {
	svc, _ := newTestService(t)

	code, err := svc.Issue(context.Background())
	require.NoError(t, err)

	blocks := strings.Split(code, "-")
	require.Len(t, blocks, 4)
	for _, block := range blocks {
		require.Len(t, block, 4)
		for _, ch := range block {
			assert.Contains(t, codeAlphabet, string(ch))
		}
	}
}

func TestIdleExpiry(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()

	code, err := svc.Issue(ctx)
	require.NoError(t, err)

	st.Advance(121 * time.Minute)

	assert.ErrorIs(t, svc.ValidateAndRenew(ctx, code), ErrNotFound)
	assert.ErrorIs(t, svc.ValidateReadOnly(ctx, code), ErrNotFound)

	remaining, err := svc.RemainingSeconds(ctx, code)
	require.NoError(t, err)
	assert.Equal(t, int64(-1), remaining)
}

func TestRenewExtendsIdleTTL(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()

	code, err := svc.Issue(ctx)
	require.NoError(t, err)

	st.Advance(100 * time.Minute)
	require.NoError(t, svc.ValidateAndRenew(ctx, code))

	// without the renewal this would be past the 120 minute idle TTL
	st.Advance(100 * time.Minute)
	require.NoError(t, svc.ValidateAndRenew(ctx, code))
}

func TestHardCapDespiteRenewals(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()

	code, err := svc.Issue(ctx)
	require.NoError(t, err)

	// keep the session warm with hourly renewals right up to the cap
	for i := 0; i < 23; i++ {
		st.Advance(time.Hour)
		require.NoError(t, svc.ValidateAndRenew(ctx, code))
	}

	st.Advance(time.Hour)
	assert.ErrorIs(t, svc.ValidateAndRenew(ctx, code), ErrExpired)

	// the entry was eagerly deleted; the code is now permanently invalid
	assert.ErrorIs(t, svc.ValidateReadOnly(ctx, code), ErrNotFound)
	assert.ErrorIs(t, svc.ValidateAndRenew(ctx, code), ErrNotFound)
}

func TestRevokeIdempotent(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	code, err := svc.Issue(ctx)
	require.NoError(t, err)

	require.NoError(t, svc.Revoke(ctx, code))
	assert.ErrorIs(t, svc.ValidateReadOnly(ctx, code), ErrNotFound)
	assert.ErrorIs(t, svc.ValidateAndRenew(ctx, code), ErrNotFound)

	require.NoError(t, svc.Revoke(ctx, code))
}

func TestBlankCode(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	assert.ErrorIs(t, svc.ValidateAndRenew(ctx, ""), ErrNotFound)
	assert.ErrorIs(t, svc.ValidateAndRenew(ctx, "   "), ErrNotFound)
	assert.ErrorIs(t, svc.ValidateReadOnly(ctx, ""), ErrNotFound)
}

func TestCorruptSessionData(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()

	require.NoError(t, st.Set(ctx, codeKey("BAD1-BAD1-BAD1-BAD1"), "not-a-number", time.Hour))

	assert.ErrorIs(t, svc.ValidateAndRenew(ctx, "BAD1-BAD1-BAD1-BAD1"), ErrNotFound)
	// the corrupt entry is cleaned up
	assert.ErrorIs(t, svc.ValidateReadOnly(ctx, "BAD1-BAD1-BAD1-BAD1"), ErrNotFound)
}

func TestDeliveryMetric(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()

	code, err := svc.Issue(ctx)
	require.NoError(t, err)

	assert.Equal(t, int64(0), svc.DeliveryCount(ctx, code))

	require.NoError(t, svc.RecordDelivery(ctx, code))
	require.NoError(t, svc.RecordDelivery(ctx, code))
	assert.Equal(t, int64(2), svc.DeliveryCount(ctx, code))

	// the metric expires on its own schedule, independent of the identity
	st.Advance(121 * time.Minute)
	assert.Equal(t, int64(0), svc.DeliveryCount(ctx, code))
}

func TestStoreOutage(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()

	code, err := svc.Issue(ctx)
	require.NoError(t, err)

	st.Err = errors.New("connection refused")

	assert.ErrorIs(t, svc.ValidateAndRenew(ctx, code), ErrStoreUnavailable)
	assert.ErrorIs(t, svc.ValidateReadOnly(ctx, code), ErrStoreUnavailable)

	_, err = svc.Issue(ctx)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}
