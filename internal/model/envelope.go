package model

import "time"

// Kind is the closed set of envelope kinds the router understands.
// Anything else is dropped at the router.
type Kind string

const (
	KindChat               Kind = "chat"
	KindTyping             Kind = "typing"
	KindKeyExchangeRequest Kind = "key_exchange_request"
	KindPublicKeyShare     Kind = "public_key_share"
	KindMusicSync          Kind = "music_sync"

	// KindSystem is reserved for router-originated envelopes. Inbound
	// envelopes claiming this kind are dropped.
	KindSystem Kind = "system"
)

// SystemSender is the reserved sender for router-originated error envelopes.
const SystemSender = "SYSTEM"

// CodeHeader carries the identity code on the websocket handshake and on
// every stateless request.
const CodeHeader = "X-Anonymous-Code"

type (
	// Envelope is the unit routed between two bound principals. The server
	// never inspects OpaqueContent, OpaqueSessionKey or SessionID; they are
	// forwarded verbatim.
	Envelope struct {
		Sender   string `json:"sender"`
		Receiver string `json:"receiver"`
		Kind     Kind   `json:"kind"`

		Content          string `json:"content,omitempty"`
		OpaqueContent    []byte `json:"opaque_content,omitempty"`
		OpaqueSessionKey []byte `json:"opaque_session_key,omitempty"`
		SessionID        string `json:"session_id,omitempty"`

		PublicKey []byte `json:"public_key,omitempty"`
		IsTyping  bool   `json:"is_typing,omitempty"`

		ChannelID string     `json:"channel_id,omitempty"`
		Sync      *MusicSync `json:"sync,omitempty"`

		// Timestamp is assigned by the router on arrival. Client supplied
		// values are always overwritten.
		Timestamp time.Time `json:"timestamp"`
	}
)

// HasContent reports whether the envelope carries a payload worth relaying.
func (e *Envelope) HasContent() bool {
	return e.Content != "" || len(e.OpaqueContent) > 0
}

// UserAddress derives the delivery address for an identity code.
func UserAddress(code string) string {
	return "user/" + code
}
