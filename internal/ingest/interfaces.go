package ingest

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"

	"post_keeper/internal/domain"
)

// PostStore is the durable keyed storage contract. Upsert must be a
// single atomic operation; duplicate suppression under concurrent
// redelivery relies on it alone.
type PostStore interface {
	Upsert(ctx context.Context, post *domain.Post) (bool, error)
	Get(ctx context.Context, channelID, messageID int64) (*domain.Post, error)
	List(ctx context.Context, limit, offset int) ([]domain.Post, error)
	Count(ctx context.Context) (int64, error)
	CountByKind(ctx context.Context) (map[string]int64, error)
	CountByTag(ctx context.Context) (map[string]int64, error)
}

// MediaResolver turns an opaque file handle into a retrievable URL.
type MediaResolver interface {
	Resolve(ctx context.Context, fileID string) (string, error)
}

// Publisher forwards stored posts downstream.
type Publisher interface {
	Publish(ctx context.Context, post *domain.Post, isNew bool) error
	Close() error
}
