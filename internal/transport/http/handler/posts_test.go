package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"post_keeper/internal/domain"
	"post_keeper/internal/storage/memory"
)

func seedStore(t *testing.T) *memory.PostStore {
	t.Helper()
	store := memory.NewPostStore()
	base := time.Unix(1700000000, 0).UTC()

	posts := []domain.Post{
		{ChannelID: -100, MessageID: 1, Kind: domain.KindText, Title: "first", Body: "first #a", Tags: []string{"#a"}, OccurredAt: base},
		{ChannelID: -100, MessageID: 2, Kind: domain.KindPhoto, Title: "second", Body: "second #a #b", Tags: []string{"#a", "#b"}, OccurredAt: base.Add(time.Minute)},
		{ChannelID: -200, MessageID: 1, Kind: domain.KindText, Title: "third", Body: "third", Tags: []string{"general"}, OccurredAt: base.Add(2 * time.Minute)},
	}
	for i := range posts {
		_, err := store.Upsert(context.Background(), &posts[i])
		require.NoError(t, err)
	}
	return store
}

func apiRouter(store *memory.PostStore) http.Handler {
	h := NewPostHandler(store)
	r := chi.NewRouter()
	r.Get("/api/posts", h.List)
	r.Get("/api/posts/{channelID}/{messageID}", h.Get)
	r.Get("/api/stats", h.Stats)
	return r
}

func TestPosts_List(t *testing.T) {
	r := apiRouter(seedStore(t))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/posts", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var env PostListEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	require.Equal(t, 3, env.Count)

	// Newest first.
	assert.Equal(t, "third", env.Posts[0].Title)
	assert.Equal(t, "second", env.Posts[1].Title)
	assert.Equal(t, "first", env.Posts[2].Title)
}

func TestPosts_ListPagination(t *testing.T) {
	r := apiRouter(seedStore(t))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/posts?limit=1&offset=1", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var env PostListEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	require.Equal(t, 1, env.Count)
	assert.Equal(t, "second", env.Posts[0].Title)
}

func TestPosts_Get(t *testing.T) {
	r := apiRouter(seedStore(t))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/posts/-100/2", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var env PostEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	require.NotNil(t, env.Post)
	assert.Equal(t, "second", env.Post.Title)
	assert.Equal(t, domain.KindPhoto, env.Post.Kind)
}

func TestPosts_GetNotFound(t *testing.T) {
	r := apiRouter(seedStore(t))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/posts/-100/999", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPosts_GetBadIDs(t *testing.T) {
	r := apiRouter(seedStore(t))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/posts/abc/1", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPosts_Stats(t *testing.T) {
	r := apiRouter(seedStore(t))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/stats", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var env StatsEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.Equal(t, int64(3), env.Total)
	assert.Equal(t, map[string]int64{"text": 2, "photo": 1}, env.ByKind)
	assert.Equal(t, map[string]int64{"#a": 2, "#b": 1, "general": 1}, env.ByTag)
}
