package app

import (
	"crypto/rand"
	"fmt"

	"anon_messenger/internal/cryptographic/dh"
	"anon_messenger/internal/cryptographic/encryption"
	"anon_messenger/internal/cryptographic/kdf"
	"anon_messenger/internal/model"

	"github.com/google/uuid"
)

// wrapInfo domain-separates the key that wraps session keys from anything
// else derived from the same X25519 secret.
var wrapInfo = []byte("anonym-session-key-wrap")

type sendSession struct {
	id        string
	key       [32]byte
	announced bool
}

// SendMessage seals msg under the current session key and relays it. The
// first message of a session additionally carries the session key wrapped
// for the peer. Messages typed before the key exchange completes are queued
// and flushed when the peer's key arrives.
func (c *App) SendMessage(msg string) error {
	c.mu.Lock()
	if c.peerPub == nil {
		c.pending = append(c.pending, msg)
		c.mu.Unlock()
		c.appendLine("[gray]waiting for key exchange...[-]\n")
		c.clearInput()
		return nil
	}

	env, err := c.sealChatLocked(msg)
	c.mu.Unlock()
	if err != nil {
		return err
	}

	if err := c.writeEnvelope(env); err != nil {
		return err
	}

	c.appendLine(fmt.Sprintf("[yellow]You:[-] %s\n", msg))
	c.clearInput()
	return nil
}

// sealChatLocked builds a sealed chat envelope. Caller holds c.mu.
func (c *App) sealChatLocked(msg string) (*model.Envelope, error) {
	if c.sending == nil {
		var key [32]byte
		if _, err := rand.Read(key[:]); err != nil {
			return nil, fmt.Errorf("generate session key: %w", err)
		}
		c.sending = &sendSession{
			id:  uuid.NewString(),
			key: key,
		}
	}

	sealed, err := encryption.Seal(c.sending.key, []byte(msg))
	if err != nil {
		return nil, fmt.Errorf("seal message: %w", err)
	}

	env := &model.Envelope{
		Sender:        c.code,
		Receiver:      c.peer,
		Kind:          model.KindChat,
		OpaqueContent: sealed,
		SessionID:     c.sending.id,
	}

	if !c.sending.announced {
		wrapped, err := c.wrapSessionKey(c.sending.key)
		if err != nil {
			return nil, err
		}
		env.OpaqueSessionKey = wrapped
		c.sending.announced = true
	}
	return env, nil
}

// wrapSessionKey seals the session key under a key derived from the X25519
// shared secret with the peer. Caller holds c.mu.
func (c *App) wrapSessionKey(key [32]byte) ([]byte, error) {
	secret, err := dh.SharedSecret(c.priv, *c.peerPub)
	if err != nil {
		return nil, fmt.Errorf("shared secret: %w", err)
	}
	kek, err := kdf.DeriveKey(secret, wrapInfo)
	if err != nil {
		return nil, fmt.Errorf("derive wrap key: %w", err)
	}
	return encryption.Seal(kek, key[:])
}

// openChat recovers the plaintext of an inbound chat envelope, unwrapping
// and caching the session key when the envelope announces one. Plaintext
// envelopes pass through unchanged.
func (c *App) openChat(env *model.Envelope) (string, error) {
	if len(env.OpaqueContent) == 0 {
		return env.Content, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if len(env.OpaqueSessionKey) > 0 && c.peerPub != nil {
		secret, err := dh.SharedSecret(c.priv, *c.peerPub)
		if err != nil {
			return "", fmt.Errorf("shared secret: %w", err)
		}
		kek, err := kdf.DeriveKey(secret, wrapInfo)
		if err != nil {
			return "", fmt.Errorf("derive wrap key: %w", err)
		}
		raw, err := encryption.Open(kek, env.OpaqueSessionKey)
		if err != nil {
			return "", fmt.Errorf("unwrap session key: %w", err)
		}
		if len(raw) != 32 {
			return "", fmt.Errorf("unexpected session key length %d", len(raw))
		}
		c.recvKeys[env.SessionID] = [32]byte(raw)
	}

	key, ok := c.recvKeys[env.SessionID]
	if !ok {
		return "", fmt.Errorf("no session key for session %q", env.SessionID)
	}

	plain, err := encryption.Open(key, env.OpaqueContent)
	if err != nil {
		return "", fmt.Errorf("open message: %w", err)
	}
	return string(plain), nil
}

// storePeerKey records the peer's public key and flushes any messages
// queued while the exchange was pending.
func (c *App) storePeerKey(pub []byte) {
	c.mu.Lock()
	var key [32]byte
	copy(key[:], pub)
	c.peerPub = &key
	queued := c.pending
	c.pending = nil
	c.mu.Unlock()

	for _, msg := range queued {
		_ = c.SendMessage(msg)
	}
}

func (c *App) clearInput() {
	c.app.QueueUpdateDraw(func() {
		c.input.SetText("")
	})
}
