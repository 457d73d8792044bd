package relay

import (
	"context"
	"time"

	"anon_messenger/internal/model"
	"anon_messenger/internal/service/identity"
	"anon_messenger/internal/service/ratelimit"
	"anon_messenger/internal/utils/log"

	"go.uber.org/zap"
)

const (
	msgRecipientNotFound = "ERROR: Recipient not found or session expired"
	msgRateLimited       = "ERROR: Rate limit exceeded"
	msgInternal          = "ERROR: Internal error"
)

type (
	// ChannelDirectory is what the router needs from the channel service to
	// fan a music sync event out to a channel's members.
	ChannelDirectory interface {
		IsMember(ctx context.Context, channelID, code string) (bool, error)
		Members(ctx context.Context, channelID string) ([]string, error)
		SavePlaybackState(ctx context.Context, channelID string, sync *model.MusicSync) error
	}

	// Router validates, rate-limits, stamps and forwards envelopes between
	// bound principals. It never writes identity state; it only calls the
	// lifecycle manager's validators and metric recorder.
	Router struct {
		deliverer Deliverer
		identity  *identity.Service
		limiter   *ratelimit.Limiter
		channels  ChannelDirectory

		maxContentBytes int
		now             func() time.Time
	}
)

func NewRouter(d Deliverer, id *identity.Service, limiter *ratelimit.Limiter, channels ChannelDirectory, maxContentBytes int) *Router {
	return &Router{
		deliverer:       d,
		identity:        id,
		limiter:         limiter,
		channels:        channels,
		maxContentBytes: maxContentBytes,
		now:             time.Now,
	}
}

// Route processes one inbound envelope from a connection bound to principal.
// Violations that could serve an attacker as an oracle (impersonation,
// malformed content) are dropped with no feedback; failures the legitimate
// sender must know about (dead receiver, rate limit) come back as a
// SYSTEM envelope to the sender only.
func (r *Router) Route(ctx context.Context, principal string, env *model.Envelope) {
	// An unbound connection cannot route anything, and a bound one may only
	// speak as itself. Silent drop either way.
	if principal == "" || env.Sender != principal {
		log.Warn("impersonation attempt dropped",
			zap.String("principal", principal),
			zap.String("claimed_sender", env.Sender))
		return
	}

	if env.Kind == model.KindMusicSync {
		r.routeMusicSync(ctx, principal, env)
		return
	}

	if env.Receiver == "" || r.identity.ValidateReadOnly(ctx, env.Receiver) != nil {
		// Store errors land here too: fail closed rather than relay into
		// the unknown.
		r.systemReply(principal, msgRecipientNotFound)
		return
	}

	switch env.Kind {
	case model.KindChat:
		if !env.HasContent() {
			return
		}
		if len(env.Content)+len(env.OpaqueContent) > r.maxContentBytes {
			log.Warn("oversized envelope dropped",
				zap.String("sender", principal),
				zap.Int("content_bytes", len(env.Content)+len(env.OpaqueContent)))
			return
		}
		allowed, err := r.limiter.Allow(ctx, principal)
		if err != nil {
			log.Error("message limiter unavailable", zap.Error(err))
			r.systemReply(principal, msgInternal)
			return
		}
		if !allowed {
			r.systemReply(principal, msgRateLimited)
			return
		}
	case model.KindTyping, model.KindKeyExchangeRequest, model.KindPublicKeyShare:
		// Control kinds: no content requirement, no rate limit.
	case model.KindSystem, model.KindMusicSync:
		// System envelopes originate here, never from a client.
		return
	default:
		return
	}

	env.Timestamp = r.now()
	delivered := r.deliverer.Deliver(model.UserAddress(env.Receiver), env)

	if env.Kind == model.KindChat {
		if err := r.identity.RecordDelivery(ctx, principal); err != nil {
			log.Error("record delivery failed", zap.Error(err))
		}
	}
	if !delivered {
		log.Debug("receiver not connected, envelope not delivered",
			zap.String("receiver", env.Receiver))
	}
}

// routeMusicSync broadcasts a playback event to every live member of the
// channel except the sender, and persists the state for late joiners.
func (r *Router) routeMusicSync(ctx context.Context, principal string, env *model.Envelope) {
	if r.channels == nil || env.ChannelID == "" || env.Sync == nil {
		return
	}

	ok, err := r.channels.IsMember(ctx, env.ChannelID, principal)
	if err != nil || !ok {
		return
	}

	env.Timestamp = r.now()
	if err := r.channels.SavePlaybackState(ctx, env.ChannelID, env.Sync); err != nil {
		log.Error("save playback state failed",
			zap.String("channel", env.ChannelID),
			zap.Error(err))
	}

	members, err := r.channels.Members(ctx, env.ChannelID)
	if err != nil {
		log.Error("list channel members failed",
			zap.String("channel", env.ChannelID),
			zap.Error(err))
		return
	}
	for _, m := range members {
		if m == principal {
			continue
		}
		r.deliverer.Deliver(model.UserAddress(m), env)
	}
}

func (r *Router) systemReply(to, message string) {
	r.deliverer.Deliver(model.UserAddress(to), &model.Envelope{
		Sender:    model.SystemSender,
		Receiver:  to,
		Kind:      model.KindSystem,
		Content:   message,
		Timestamp: r.now(),
	})
}
