// Package channel manages music channels: durable metadata in mongo with a
// TTL index, membership/queue/playback state in the ephemeral store.
//
// Store key layout:
//
//	music:channel:{ID}:members  member codes (set)
//	music:channel:{ID}:queue    queued tracks (list of JSON)
//	music:channel:{ID}:state    last playback state (JSON)
package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"anon_messenger/internal/model"
	"anon_messenger/internal/service/store"
	"anon_messenger/internal/utils/log"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrNotCreator is returned when someone other than the creator tries to
// delete a channel.
var ErrNotCreator = errors.New("channel: only the creator can delete a channel")

// queueTombstone marks a list slot for removal; the store has no direct
// remove-by-index.
const queueTombstone = "___TO_REMOVE___"

type (
	// MetadataRepo is the durable side of a channel. Implemented by the
	// mongo repository.
	MetadataRepo interface {
		Create(ctx context.Context, ch *model.Channel) error
		GetByID(ctx context.Context, id string) (*model.Channel, error)
		List(ctx context.Context) ([]*model.Channel, error)
		Delete(ctx context.Context, id string) error
	}

	Service struct {
		store store.Client
		repo  MetadataRepo
		ttl   time.Duration

		now func() time.Time
	}
)

func NewService(st store.Client, repo MetadataRepo, ttl time.Duration) *Service {
	return &Service{
		store: st,
		repo:  repo,
		ttl:   ttl,
		now:   time.Now,
	}
}

func (s *Service) Create(ctx context.Context, name, creatorCode string) (*model.Channel, error) {
	ch := &model.Channel{
		ID:          "MUSIC-" + uuid.NewString(),
		Name:        name,
		CreatorCode: creatorCode,
		CreatedAt:   s.now(),
		IsPublic:    true,
	}

	if err := s.repo.Create(ctx, ch); err != nil {
		return nil, fmt.Errorf("create channel: %w", err)
	}

	if err := s.store.SAdd(ctx, membersKey(ch.ID), creatorCode); err != nil {
		return nil, fmt.Errorf("add creator: %w", err)
	}
	if err := s.store.Expire(ctx, membersKey(ch.ID), s.ttl); err != nil {
		return nil, fmt.Errorf("expire members: %w", err)
	}

	ch.MemberCount = 1
	log.Info("music channel created",
		zap.String("channel", ch.ID),
		zap.String("name", name))
	return ch, nil
}

func (s *Service) List(ctx context.Context) ([]*model.Channel, error) {
	channels, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, ch := range channels {
		n, err := s.store.SCard(ctx, membersKey(ch.ID))
		if err == nil {
			ch.MemberCount = n
		}
	}
	return channels, nil
}

// Delete removes the channel and all of its ephemeral state. Only the
// creator may delete; a missing channel is not an error for the creator
// check but reports false.
func (s *Service) Delete(ctx context.Context, id, userCode string) (bool, error) {
	ch, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	if ch == nil {
		return false, nil
	}
	if ch.CreatorCode != userCode {
		return false, ErrNotCreator
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return false, err
	}
	if err := s.store.Del(ctx, membersKey(id), queueKey(id), stateKey(id)); err != nil {
		return false, err
	}

	log.Info("music channel deleted", zap.String("channel", id))
	return true, nil
}

func (s *Service) Join(ctx context.Context, id, userCode string) error {
	if err := s.store.SAdd(ctx, membersKey(id), userCode); err != nil {
		return err
	}
	return s.store.Expire(ctx, membersKey(id), s.ttl)
}

func (s *Service) Leave(ctx context.Context, id, userCode string) error {
	return s.store.SRem(ctx, membersKey(id), userCode)
}

func (s *Service) Members(ctx context.Context, id string) ([]string, error) {
	return s.store.SMembers(ctx, membersKey(id))
}

func (s *Service) IsMember(ctx context.Context, id, userCode string) (bool, error) {
	return s.store.SIsMember(ctx, membersKey(id), userCode)
}

func (s *Service) AddTrack(ctx context.Context, id string, track model.Track) error {
	data, err := json.Marshal(track)
	if err != nil {
		return err
	}
	if err := s.store.RPush(ctx, queueKey(id), data); err != nil {
		return err
	}
	return s.store.Expire(ctx, queueKey(id), s.ttl)
}

func (s *Service) Queue(ctx context.Context, id string) ([]model.Track, error) {
	vals, err := s.store.LRange(ctx, queueKey(id))
	if err != nil {
		return nil, err
	}

	queue := make([]model.Track, 0, len(vals))
	for _, v := range vals {
		var t model.Track
		if err := json.Unmarshal([]byte(v), &t); err != nil {
			return nil, err
		}
		queue = append(queue, t)
	}
	return queue, nil
}

func (s *Service) RemoveTrack(ctx context.Context, id string, index int64) error {
	if _, err := s.store.LIndex(ctx, queueKey(id), index); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return err
	}
	if err := s.store.LSet(ctx, queueKey(id), index, queueTombstone); err != nil {
		return err
	}
	return s.store.LRem(ctx, queueKey(id), 1, queueTombstone)
}

// ReorderQueue moves the track at oldIndex to newIndex by rebuilding the
// list. Out-of-range indexes are ignored.
func (s *Service) ReorderQueue(ctx context.Context, id string, oldIndex, newIndex int) error {
	vals, err := s.store.LRange(ctx, queueKey(id))
	if err != nil {
		return err
	}
	if oldIndex < 0 || oldIndex >= len(vals) || newIndex < 0 || newIndex >= len(vals) {
		return nil
	}

	track := vals[oldIndex]
	vals = append(vals[:oldIndex], vals[oldIndex+1:]...)
	vals = append(vals[:newIndex], append([]string{track}, vals[newIndex:]...)...)

	if err := s.store.Del(ctx, queueKey(id)); err != nil {
		return err
	}
	pushed := make([]any, len(vals))
	for i, v := range vals {
		pushed[i] = v
	}
	if err := s.store.RPush(ctx, queueKey(id), pushed...); err != nil {
		return err
	}
	return s.store.Expire(ctx, queueKey(id), s.ttl)
}

func (s *Service) SavePlaybackState(ctx context.Context, id string, sync *model.MusicSync) error {
	data, err := json.Marshal(sync)
	if err != nil {
		return err
	}
	return s.store.Set(ctx, stateKey(id), data, s.ttl)
}

func (s *Service) PlaybackState(ctx context.Context, id string) (*model.MusicSync, error) {
	v, err := s.store.Get(ctx, stateKey(id))
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var sync model.MusicSync
	if err := json.Unmarshal([]byte(v), &sync); err != nil {
		return nil, err
	}
	return &sync, nil
}

func membersKey(id string) string { return "music:channel:" + id + ":members" }
func queueKey(id string) string   { return "music:channel:" + id + ":queue" }
func stateKey(id string) string   { return "music:channel:" + id + ":state" }
