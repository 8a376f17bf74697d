package handler

import (
	"encoding/json"
	"net/http"

	"post_keeper/internal/domain"
)

// MessageEnvelope is the generic response wrapper.
type MessageEnvelope struct {
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// OutcomeEnvelope reports the terminal outcome of a webhook delivery.
type OutcomeEnvelope struct {
	Outcome string `json:"outcome"`
}

// PostEnvelope wraps single-post responses.
type PostEnvelope struct {
	Post *domain.Post `json:"post"`
}

// PostListEnvelope wraps paginated post list responses.
type PostListEnvelope struct {
	Count int           `json:"count"`
	Posts []domain.Post `json:"posts"`
}

// StatsEnvelope wraps the statistics response.
type StatsEnvelope struct {
	Total  int64            `json:"total"`
	ByKind map[string]int64 `json:"by_kind"`
	ByTag  map[string]int64 `json:"by_tag"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, MessageEnvelope{Error: msg})
}
