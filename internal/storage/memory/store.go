// Package memory provides a dependency-free post store backend. It is
// used by unit tests and as a disposable storage driver; the upsert is
// atomic under a single mutex, so concurrent redeliveries of the same
// key collapse to one entry with no field mixing.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"post_keeper/internal/domain"
	"post_keeper/internal/storage"
)

type key struct {
	channelID int64
	messageID int64
}

type PostStore struct {
	mu     sync.Mutex
	posts  map[key]*domain.Post
	nextID int64
}

func NewPostStore() *PostStore {
	return &PostStore{
		posts:  make(map[key]*domain.Post),
		nextID: 1,
	}
}

func (s *PostStore) Upsert(_ context.Context, p *domain.Post) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	k := key{channelID: p.ChannelID, messageID: p.MessageID}

	existing, ok := s.posts[k]
	if !ok {
		p.ID = s.nextID
		s.nextID++
		p.CreatedAt = now
		p.UpdatedAt = now
		s.posts[k] = clone(p)
		return true, nil
	}

	p.ID = existing.ID
	p.CreatedAt = existing.CreatedAt
	p.UpdatedAt = now
	s.posts[k] = clone(p)
	return false, nil
}

func (s *PostStore) Get(_ context.Context, channelID, messageID int64) (*domain.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.posts[key{channelID: channelID, messageID: messageID}]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return clone(p), nil
}

func (s *PostStore) List(_ context.Context, limit, offset int) ([]domain.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := make([]*domain.Post, 0, len(s.posts))
	for _, p := range s.posts {
		all = append(all, p)
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].OccurredAt.Equal(all[j].OccurredAt) {
			return all[i].OccurredAt.After(all[j].OccurredAt)
		}
		return all[i].ID > all[j].ID
	})

	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if limit < len(all) {
		all = all[:limit]
	}

	result := make([]domain.Post, 0, len(all))
	for _, p := range all {
		result = append(result, *clone(p))
	}
	return result, nil
}

func (s *PostStore) Count(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.posts)), nil
}

func (s *PostStore) CountByKind(_ context.Context) (map[string]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make(map[string]int64)
	for _, p := range s.posts {
		result[string(p.Kind)]++
	}
	return result, nil
}

func (s *PostStore) CountByTag(_ context.Context) (map[string]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make(map[string]int64)
	for _, p := range s.posts {
		for _, tag := range p.Tags {
			result[tag]++
		}
	}
	return result, nil
}

func (s *PostStore) Ping(_ context.Context) error { return nil }

func clone(p *domain.Post) *domain.Post {
	c := *p
	if p.MediaRef != nil {
		ref := *p.MediaRef
		c.MediaRef = &ref
	}
	c.Tags = append([]string(nil), p.Tags...)
	return &c
}
