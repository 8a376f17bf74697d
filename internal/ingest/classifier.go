package ingest

import (
	"strconv"
	"strings"

	"post_keeper/internal/domain"
	"post_keeper/internal/telegram"
)

// Classification is the result of inspecting one update. When the
// update is not a channel broadcast (or comes from a channel outside
// the allowlist) Applicable is false and the rest is zero.
type Classification struct {
	Applicable bool
	Kind       domain.Kind
	Message    *telegram.Message
}

// Classifier decides whether an update is worth ingesting and what
// kind of content it carries. It never fails: malformed input comes
// back as not applicable.
type Classifier struct {
	allowed map[string]struct{}
}

// NewClassifier builds a classifier restricted to the given channels,
// matched by numeric id or handle (case-insensitive, leading @
// ignored). An empty list accepts every channel.
func NewClassifier(channels []string) *Classifier {
	c := &Classifier{}
	if len(channels) > 0 {
		c.allowed = make(map[string]struct{}, len(channels))
		for _, ch := range channels {
			c.allowed[normalizeChannel(ch)] = struct{}{}
		}
	}
	return c
}

func (c *Classifier) Classify(upd *telegram.Update) Classification {
	if upd == nil {
		return Classification{}
	}

	// Edited channel posts are redeliveries of the same key; the store
	// upsert makes them last-write-wins updates.
	msg := upd.ChannelPost
	if msg == nil {
		msg = upd.EditedChannelPost
	}
	if msg == nil || msg.Chat.Type != telegram.ChatTypeChannel {
		return Classification{}
	}

	if !c.channelAllowed(msg.Chat) {
		return Classification{}
	}

	return Classification{
		Applicable: true,
		Kind:       classifyKind(msg),
		Message:    msg,
	}
}

func (c *Classifier) channelAllowed(chat telegram.Chat) bool {
	if c.allowed == nil {
		return true
	}
	if _, ok := c.allowed[strconv.FormatInt(chat.ID, 10)]; ok {
		return true
	}
	if chat.Username == "" {
		return false
	}
	_, ok := c.allowed[normalizeChannel(chat.Username)]
	return ok
}

// classifyKind checks attachment fields in fixed precedence order.
// Upstream should never set more than one, but if it does only the
// first match counts.
func classifyKind(msg *telegram.Message) domain.Kind {
	switch {
	case len(msg.Photo) > 0:
		return domain.KindPhoto
	case msg.Video != nil:
		return domain.KindVideo
	case msg.Document != nil:
		return domain.KindDocument
	case msg.Audio != nil:
		return domain.KindAudio
	case msg.Voice != nil:
		return domain.KindVoice
	case msg.Text != "" || msg.Caption != "":
		return domain.KindText
	default:
		return domain.KindUnknown
	}
}

func normalizeChannel(s string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), "@"))
}
