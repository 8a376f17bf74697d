package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"post_keeper/internal/ingest"
	"post_keeper/internal/storage"
)

const (
	defaultListLimit = 100
	maxListLimit     = 500
)

// PostHandler serves the read API over stored posts.
type PostHandler struct {
	store ingest.PostStore
}

func NewPostHandler(store ingest.PostStore) *PostHandler {
	return &PostHandler{store: store}
}

func (h *PostHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", defaultListLimit)
	if limit < 1 || limit > maxListLimit {
		limit = defaultListLimit
	}
	offset := queryInt(r, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	posts, err := h.store.List(r.Context(), limit, offset)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, PostListEnvelope{Count: len(posts), Posts: posts})
}

func (h *PostHandler) Get(w http.ResponseWriter, r *http.Request) {
	channelID, err := strconv.ParseInt(chi.URLParam(r, "channelID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid channel id")
		return
	}
	messageID, err := strconv.ParseInt(chi.URLParam(r, "messageID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid message id")
		return
	}

	post, err := h.store.Get(r.Context(), channelID, messageID)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, PostEnvelope{Post: post})
}

func (h *PostHandler) Stats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	total, err := h.store.Count(ctx)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	byKind, err := h.store.CountByKind(ctx)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	byTag, err := h.store.CountByTag(ctx)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, StatsEnvelope{Total: total, ByKind: byKind, ByTag: byTag})
}

func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, "post not found")
	case errors.Is(err, storage.ErrUnavailable):
		writeError(w, http.StatusServiceUnavailable, "store unavailable")
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
