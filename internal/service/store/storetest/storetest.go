// Package storetest provides an in-memory store.Client with a manual clock
// for hermetic package tests. Semantics mirror the Redis commands the real
// client issues: INCR creates missing keys at zero, EXPIRE attaches a window,
// expired keys are dropped lazily on access.
package storetest

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"anon_messenger/internal/service/store"
)

type entry struct {
	value     string
	expiresAt time.Time // zero means no expiry
}

type Store struct {
	mu        sync.Mutex
	now       time.Time
	kv        map[string]*entry
	sets      map[string]map[string]struct{}
	lists     map[string][]string
	deadlines map[string]time.Time // expiry for set and list keys

	// Err, when set, is returned by every operation. Used to simulate a
	// store outage.
	Err error
}

var _ store.Client = (*Store)(nil)

func New() *Store {
	return &Store{
		now:       time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		kv:        make(map[string]*entry),
		sets:      make(map[string]map[string]struct{}),
		lists:     make(map[string][]string),
		deadlines: make(map[string]time.Time),
	}
}

// Now returns the fake clock's current time.
func (s *Store) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

// Advance moves the fake clock forward, expiring keys whose window elapses.
func (s *Store) Advance(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = s.now.Add(d)
}

func (s *Store) expired(e *entry) bool {
	return !e.expiresAt.IsZero() && !s.now.Before(e.expiresAt)
}

func (s *Store) lookup(key string) (*entry, bool) {
	e, ok := s.kv[key]
	if !ok {
		return nil, false
	}
	if s.expired(e) {
		delete(s.kv, key)
		return nil, false
	}
	return e, true
}

// reap drops a set or list key whose expiry window has elapsed.
func (s *Store) reap(key string) {
	d, ok := s.deadlines[key]
	if !ok || s.now.Before(d) {
		return
	}
	delete(s.sets, key)
	delete(s.lists, key)
	delete(s.deadlines, key)
}

func asString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	default:
		return fmt.Sprint(t)
	}
}

func (s *Store) Ping(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Err
}

func (s *Store) Incr(ctx context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return 0, s.Err
	}
	e, ok := s.lookup(key)
	if !ok {
		e = &entry{value: "0"}
		s.kv[key] = e
	}
	n, err := strconv.ParseInt(e.value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("storetest: value at %q is not an integer", key)
	}
	n++
	e.value = strconv.FormatInt(n, 10)
	return n, nil
}

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return "", s.Err
	}
	e, ok := s.lookup(key)
	if !ok {
		return "", store.ErrNotFound
	}
	return e.value, nil
}

func (s *Store) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	e := &entry{value: asString(value)}
	if ttl > 0 {
		e.expiresAt = s.now.Add(ttl)
	}
	s.kv[key] = e
	return nil
}

func (s *Store) Del(ctx context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	for _, key := range keys {
		delete(s.kv, key)
		delete(s.sets, key)
		delete(s.lists, key)
		delete(s.deadlines, key)
	}
	return nil
}

func (s *Store) Expire(ctx context.Context, key string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	if e, ok := s.lookup(key); ok {
		e.expiresAt = s.now.Add(ttl)
		return nil
	}
	s.reap(key)
	if _, ok := s.sets[key]; ok {
		s.deadlines[key] = s.now.Add(ttl)
	}
	if _, ok := s.lists[key]; ok {
		s.deadlines[key] = s.now.Add(ttl)
	}
	return nil
}

func (s *Store) TTL(ctx context.Context, key string) (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return 0, s.Err
	}
	e, ok := s.lookup(key)
	if !ok {
		return 0, store.ErrNotFound
	}
	if e.expiresAt.IsZero() {
		return 0, nil
	}
	return e.expiresAt.Sub(s.now), nil
}

func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return false, s.Err
	}
	_, ok := s.lookup(key)
	if !ok {
		s.reap(key)
		_, ok = s.sets[key]
	}
	if !ok {
		_, ok = s.lists[key]
	}
	return ok, nil
}

func (s *Store) SAdd(ctx context.Context, key string, members ...any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.reap(key)
	set, ok := s.sets[key]
	if !ok {
		set = make(map[string]struct{})
		s.sets[key] = set
	}
	for _, m := range members {
		set[asString(m)] = struct{}{}
	}
	return nil
}

func (s *Store) SRem(ctx context.Context, key string, members ...any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.reap(key)
	for _, m := range members {
		delete(s.sets[key], asString(m))
	}
	return nil
}

func (s *Store) SMembers(ctx context.Context, key string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	s.reap(key)
	var members []string
	for m := range s.sets[key] {
		members = append(members, m)
	}
	return members, nil
}

func (s *Store) SCard(ctx context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return 0, s.Err
	}
	s.reap(key)
	return int64(len(s.sets[key])), nil
}

func (s *Store) SIsMember(ctx context.Context, key string, member any) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return false, s.Err
	}
	s.reap(key)
	_, ok := s.sets[key][asString(member)]
	return ok, nil
}

func (s *Store) RPush(ctx context.Context, key string, values ...any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.reap(key)
	for _, v := range values {
		s.lists[key] = append(s.lists[key], asString(v))
	}
	return nil
}

func (s *Store) LRange(ctx context.Context, key string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	s.reap(key)
	out := make([]string, len(s.lists[key]))
	copy(out, s.lists[key])
	return out, nil
}

func (s *Store) LIndex(ctx context.Context, key string, index int64) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return "", s.Err
	}
	s.reap(key)
	list := s.lists[key]
	if index < 0 || index >= int64(len(list)) {
		return "", store.ErrNotFound
	}
	return list[index], nil
}

func (s *Store) LSet(ctx context.Context, key string, index int64, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.reap(key)
	list := s.lists[key]
	if index < 0 || index >= int64(len(list)) {
		return fmt.Errorf("storetest: index %d out of range for %q", index, key)
	}
	list[index] = asString(value)
	return nil
}

func (s *Store) LRem(ctx context.Context, key string, count int64, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.reap(key)
	want := asString(value)
	removed := int64(0)
	var kept []string
	for _, v := range s.lists[key] {
		if v == want && (count == 0 || removed < count) {
			removed++
			continue
		}
		kept = append(kept, v)
	}
	s.lists[key] = kept
	return nil
}
