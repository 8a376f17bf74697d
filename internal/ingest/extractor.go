package ingest

import (
	"errors"
	"strings"
	"time"

	"post_keeper/internal/config"
	"post_keeper/internal/domain"
	"post_keeper/internal/telegram"
)

// ErrNoContent reports an update with no text, caption, or attachment.
// Retrying such an update cannot succeed; the coordinator rejects it.
var ErrNoContent = errors.New("no extractable content")

// mediaTitle is the title placeholder for posts that carry an
// attachment but no text at all.
const mediaTitle = "Media Post"

// Extractor turns a classified message into a canonical post.
type Extractor struct {
	titleMaxLen int
	defaultTag  string
	now         func() time.Time
}

func NewExtractor(cfg config.IngestConfig) *Extractor {
	return &Extractor{
		titleMaxLen: cfg.TitleMaxLen,
		defaultTag:  cfg.DefaultTag,
		now:         time.Now,
	}
}

func (e *Extractor) Extract(msg *telegram.Message, kind domain.Kind) (*domain.Post, error) {
	body := msg.Caption
	if body == "" {
		body = msg.Text
	}

	mediaRef := mediaHandle(msg, kind)

	if body == "" && mediaRef == nil {
		return nil, ErrNoContent
	}

	post := &domain.Post{
		ChannelID:   msg.Chat.ID,
		ChannelName: channelName(msg.Chat),
		MessageID:   msg.MessageID,
		Kind:        kind,
		Title:       e.title(body),
		Body:        body,
		MediaRef:    mediaRef,
		Tags:        e.tags(body),
	}

	if msg.Date > 0 {
		post.OccurredAt = time.Unix(msg.Date, 0).UTC()
	} else {
		post.OccurredAt = e.now().UTC()
		post.TimeApproximated = true
	}

	return post, nil
}

func (e *Extractor) title(body string) string {
	if body == "" {
		return mediaTitle
	}
	runes := []rune(body)
	if len(runes) <= e.titleMaxLen {
		return body
	}
	return string(runes[:e.titleMaxLen]) + "…"
}

// tags collects whitespace-delimited #-tokens in first-seen order,
// deduplicated. Nothing beyond the prefix check: no punctuation
// stripping, no case folding.
func (e *Extractor) tags(body string) []string {
	var tags []string
	seen := make(map[string]struct{})
	for _, token := range strings.Fields(body) {
		if !strings.HasPrefix(token, "#") {
			continue
		}
		if _, ok := seen[token]; ok {
			continue
		}
		seen[token] = struct{}{}
		tags = append(tags, token)
	}
	if len(tags) == 0 {
		return []string{e.defaultTag}
	}
	return tags
}

// mediaHandle picks the attachment handle matching the kind. Photo
// arrays are ordered smallest to largest, so the last element is the
// highest-resolution variant.
func mediaHandle(msg *telegram.Message, kind domain.Kind) *string {
	var id string
	switch kind {
	case domain.KindPhoto:
		if len(msg.Photo) > 0 {
			id = msg.Photo[len(msg.Photo)-1].FileID
		}
	case domain.KindVideo:
		if msg.Video != nil {
			id = msg.Video.FileID
		}
	case domain.KindDocument:
		if msg.Document != nil {
			id = msg.Document.FileID
		}
	case domain.KindAudio:
		if msg.Audio != nil {
			id = msg.Audio.FileID
		}
	case domain.KindVoice:
		if msg.Voice != nil {
			id = msg.Voice.FileID
		}
	}
	if id == "" {
		return nil
	}
	return &id
}

func channelName(chat telegram.Chat) string {
	if chat.Username != "" {
		return chat.Username
	}
	return chat.Title
}
