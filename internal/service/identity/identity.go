// Package identity manages the lifecycle of anonymous identity codes: bearer
// tokens issued without registration, renewed on activity, and destroyed by
// revocation, idle expiry, or an absolute session age cap.
//
// Key layout in the store:
//
//	anon:code:{CODE}    creation epoch millis, idle TTL
//	msg:metrics:{CODE}  messages sent this session, independent TTL
package identity

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"anon_messenger/internal/service/store"
	"anon_messenger/internal/utils/log"

	"go.uber.org/zap"
)

var (
	// ErrNotFound means the code does not exist in the store (never issued,
	// revoked, or idle-expired).
	ErrNotFound = errors.New("identity: code not found")

	// ErrExpired means the code exceeded the hard session age cap. The entry
	// is deleted when this is detected.
	ErrExpired = errors.New("identity: session exceeded hard cap")

	// ErrStoreUnavailable wraps store round-trip failures. Validation paths
	// treat it as invalid (fail closed).
	ErrStoreUnavailable = errors.New("identity: store unavailable")
)

const (
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	codeLength   = 16
	codeGroup    = 4

	codeKeyPrefix   = "anon:code:"
	metricKeyPrefix = "msg:metrics:"
)

type (
	// Service is the sole writer of identity and delivery-metric state.
	Service struct {
		store     store.Client
		idleTTL   time.Duration
		hardCap   time.Duration
		metricTTL time.Duration

		now func() time.Time
	}
)

func NewService(st store.Client, idleTTL, hardCap, metricTTL time.Duration) *Service {
	return &Service{
		store:     st,
		idleTTL:   idleTTL,
		hardCap:   hardCap,
		metricTTL: metricTTL,
		now:       time.Now,
	}
}

// Issue generates a fresh identity code and stores its creation time under
// the idle TTL. There is no prior-existence check: at 36^16 possible codes a
// collision silently overwriting a live session is not defended against.
func (s *Service) Issue(ctx context.Context) (string, error) {
	code, err := generateCode()
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}

	created := strconv.FormatInt(s.now().UnixMilli(), 10)
	if err := s.store.Set(ctx, codeKey(code), created, s.idleTTL); err != nil {
		return "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	log.Info("anonymous identity created",
		zap.String("code", code),
		zap.Duration("idle_ttl", s.idleTTL))
	return code, nil
}

// ValidateAndRenew checks the code and, when valid, resets its idle TTL.
// The hard cap is enforced here regardless of the idle TTL: a session older
// than the cap is deleted even if renewals kept it alive.
func (s *Service) ValidateAndRenew(ctx context.Context, code string) error {
	if strings.TrimSpace(code) == "" {
		return ErrNotFound
	}

	v, err := s.store.Get(ctx, codeKey(code))
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	createdMs, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		log.Error("invalid session data for code", zap.String("code", code))
		_ = s.store.Del(ctx, codeKey(code))
		return ErrNotFound
	}

	if s.now().Sub(time.UnixMilli(createdMs)) >= s.hardCap {
		log.Warn("session exceeded hard cap",
			zap.String("code", code),
			zap.Duration("hard_cap", s.hardCap))
		_ = s.store.Del(ctx, codeKey(code))
		return ErrExpired
	}

	if err := s.store.Expire(ctx, codeKey(code), s.idleTTL); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// ValidateReadOnly reports whether the code currently exists, without
// touching its TTL. Used for receiver liveness so that receiving a message
// does not extend the receiver's own session.
func (s *Service) ValidateReadOnly(ctx context.Context, code string) error {
	if strings.TrimSpace(code) == "" {
		return ErrNotFound
	}
	ok, err := s.store.Exists(ctx, codeKey(code))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

// Revoke deletes the code. Idempotent; revoking an absent code is not an
// error.
func (s *Service) Revoke(ctx context.Context, code string) error {
	if strings.TrimSpace(code) == "" {
		return nil
	}
	if err := s.store.Del(ctx, codeKey(code)); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	log.Info("anonymous identity revoked", zap.String("code", code))
	return nil
}

// RemainingSeconds returns the idle TTL left on the code, or -1 when absent.
func (s *Service) RemainingSeconds(ctx context.Context, code string) (int64, error) {
	if strings.TrimSpace(code) == "" {
		return -1, nil
	}
	d, err := s.store.TTL(ctx, codeKey(code))
	if errors.Is(err, store.ErrNotFound) {
		return -1, nil
	}
	if err != nil {
		return -1, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return int64(d.Seconds()), nil
}

// RecordDelivery bumps the sender's per-session delivery metric. The metric
// carries its own TTL, refreshed on every record, with no hard cap.
func (s *Service) RecordDelivery(ctx context.Context, code string) error {
	if strings.TrimSpace(code) == "" {
		return nil
	}
	if _, err := s.store.Incr(ctx, metricKey(code)); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if err := s.store.Expire(ctx, metricKey(code), s.metricTTL); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// DeliveryCount returns the messages sent in the current session, 0 when the
// metric is absent or unreadable.
func (s *Service) DeliveryCount(ctx context.Context, code string) int64 {
	v, err := s.store.Get(ctx, metricKey(code))
	if err != nil {
		return 0
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func codeKey(code string) string {
	return codeKeyPrefix + code
}

func metricKey(code string) string {
	return metricKeyPrefix + code
}

// generateCode draws 16 characters from the code alphabet with crypto/rand,
// grouped as XXXX-XXXX-XXXX-XXXX.
func generateCode() (string, error) {
	max := big.NewInt(int64(len(codeAlphabet)))

	var b strings.Builder
	for i := 0; i < codeLength; i++ {
		if i > 0 && i%codeGroup == 0 {
			b.WriteByte('-')
		}
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(codeAlphabet[n.Int64()])
	}
	return b.String(), nil
}
