package domain

import "time"

// Kind classifies the content of a channel post. Exactly one kind is
// assigned per post, even when the upstream payload carries several
// attachment fields.
type Kind string

const (
	KindText     Kind = "text"
	KindPhoto    Kind = "photo"
	KindVideo    Kind = "video"
	KindDocument Kind = "document"
	KindAudio    Kind = "audio"
	KindVoice    Kind = "voice"
	KindUnknown  Kind = "unknown"
)

// Post is a normalized channel post. (ChannelID, MessageID) is the
// natural external key: at most one row per pair exists in a store.
type Post struct {
	ID          int64     `json:"id" db:"id"`
	ChannelID   int64     `json:"channel_id" db:"channel_id"`
	ChannelName string    `json:"channel_name" db:"channel_name"`
	MessageID   int64     `json:"message_id" db:"message_id"`
	Kind        Kind      `json:"kind" db:"kind"`
	Title       string    `json:"title" db:"title"`
	Body        string    `json:"body" db:"body"`
	MediaRef    *string   `json:"media_ref,omitempty" db:"media_ref"`
	Tags        []string  `json:"tags" db:"-"`
	OccurredAt  time.Time `json:"occurred_at" db:"occurred_at"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`

	// TimeApproximated is set when the upstream payload carried no
	// origination timestamp and OccurredAt fell back to the ingestion
	// wall clock. Internal; never serialized or persisted.
	TimeApproximated bool `json:"-" db:"-"`
}
