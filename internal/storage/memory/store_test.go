package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"post_keeper/internal/domain"
	"post_keeper/internal/storage"
)

func testPost(channelID, messageID int64, body string) *domain.Post {
	return &domain.Post{
		ChannelID:   channelID,
		ChannelName: "testchannel",
		MessageID:   messageID,
		Kind:        domain.KindText,
		Title:       body,
		Body:        body,
		Tags:        []string{"general"},
		OccurredAt:  time.Unix(1700000000, 0).UTC(),
	}
}

func TestUpsert_Idempotent(t *testing.T) {
	ctx := context.Background()
	s := NewPostStore()

	created, err := s.Upsert(ctx, testPost(1, 100, "first"))
	require.NoError(t, err)
	assert.True(t, created)

	countBefore, err := s.Count(ctx)
	require.NoError(t, err)

	created, err = s.Upsert(ctx, testPost(1, 100, "first"))
	require.NoError(t, err)
	assert.False(t, created)

	countAfter, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, countBefore, countAfter)
}

func TestUpsert_RedeliveryWithChange(t *testing.T) {
	ctx := context.Background()
	s := NewPostStore()

	first := testPost(1, 100, "original")
	_, err := s.Upsert(ctx, first)
	require.NoError(t, err)

	second := testPost(1, 100, "edited")
	created, err := s.Upsert(ctx, second)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)

	got, err := s.Get(ctx, 1, 100)
	require.NoError(t, err)
	assert.Equal(t, "edited", got.Body)
	assert.Equal(t, first.CreatedAt, got.CreatedAt)
	assert.False(t, got.UpdatedAt.Before(first.CreatedAt))
}

func TestGet_NotFound(t *testing.T) {
	s := NewPostStore()

	_, err := s.Get(context.Background(), 1, 999)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestGet_ReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s := NewPostStore()

	p := testPost(1, 100, "body")
	_, err := s.Upsert(ctx, p)
	require.NoError(t, err)

	got, err := s.Get(ctx, 1, 100)
	require.NoError(t, err)
	got.Tags[0] = "mutated"

	again, err := s.Get(ctx, 1, 100)
	require.NoError(t, err)
	assert.Equal(t, []string{"general"}, again.Tags)
}

func TestList_OrderAndPagination(t *testing.T) {
	ctx := context.Background()
	s := NewPostStore()

	base := time.Unix(1700000000, 0).UTC()
	for i := int64(1); i <= 5; i++ {
		p := testPost(1, i, fmt.Sprintf("post %d", i))
		p.OccurredAt = base.Add(time.Duration(i) * time.Minute)
		_, err := s.Upsert(ctx, p)
		require.NoError(t, err)
	}

	posts, err := s.List(ctx, 3, 0)
	require.NoError(t, err)
	require.Len(t, posts, 3)
	assert.Equal(t, int64(5), posts[0].MessageID)
	assert.Equal(t, int64(4), posts[1].MessageID)
	assert.Equal(t, int64(3), posts[2].MessageID)

	rest, err := s.List(ctx, 10, 3)
	require.NoError(t, err)
	require.Len(t, rest, 2)
	assert.Equal(t, int64(2), rest[0].MessageID)

	empty, err := s.List(ctx, 10, 50)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestAggregates(t *testing.T) {
	ctx := context.Background()
	s := NewPostStore()

	a := testPost(1, 1, "a #news")
	a.Kind = domain.KindPhoto
	a.Tags = []string{"#news"}
	b := testPost(1, 2, "b #news #tech")
	b.Tags = []string{"#news", "#tech"}
	c := testPost(2, 1, "c")

	for _, p := range []*domain.Post{a, b, c} {
		_, err := s.Upsert(ctx, p)
		require.NoError(t, err)
	}

	byKind, err := s.CountByKind(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"photo": 1, "text": 2}, byKind)

	byTag, err := s.CountByTag(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"#news": 2, "#tech": 1, "general": 1}, byTag)
}

// Concurrent redeliveries of one key must collapse to a single entry
// whose fields all come from one writer, never a mix of two.
func TestUpsert_ConcurrentSameKey(t *testing.T) {
	ctx := context.Background()
	s := NewPostStore()

	const writers = 32
	var wg sync.WaitGroup
	wg.Add(writers)
	for i := 0; i < writers; i++ {
		go func(i int) {
			defer wg.Done()
			body := fmt.Sprintf("delivery-%d", i)
			p := testPost(1, 100, body)
			p.Title = body
			p.Tags = []string{"#" + body}
			_, err := s.Upsert(ctx, p)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	got, err := s.Get(ctx, 1, 100)
	require.NoError(t, err)

	// All content fields must belong to the same delivery.
	assert.Equal(t, got.Body, got.Title)
	require.Len(t, got.Tags, 1)
	assert.Equal(t, "#"+got.Body, got.Tags[0])
	assert.Equal(t, int64(1), got.ID)
}
