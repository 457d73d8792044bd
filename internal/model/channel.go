package model

import "time"

type (
	// Channel is the durable metadata of a music channel. Membership, queue
	// and playback state live in the ephemeral store under the channel id.
	Channel struct {
		ID          string    `bson:"_id" json:"id"`
		Name        string    `bson:"name" json:"name"`
		CreatorCode string    `bson:"creator_code" json:"creator_code"`
		CreatedAt   time.Time `bson:"created_at" json:"created_at"`
		IsPublic    bool      `bson:"is_public" json:"is_public"`

		MemberCount int64 `bson:"-" json:"member_count"`
	}

	// Track is opaque catalog data; the server stores and relays it without
	// interpreting individual fields.
	Track map[string]any

	// MusicSync carries a playback synchronization event for a channel.
	MusicSync struct {
		Action   string `json:"action"`
		Track    Track  `json:"track_data,omitempty"`
		Position *int   `json:"position,omitempty"`
		Index    *int   `json:"index,omitempty"`
		OldIndex *int   `json:"old_index,omitempty"`
		NewIndex *int   `json:"new_index,omitempty"`
	}
)
