package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"post_keeper/internal/ingest"
	"post_keeper/internal/telegram"
)

// Ingestor processes one inbound update to a terminal outcome.
type Ingestor interface {
	Ingest(ctx context.Context, upd *telegram.Update) ingest.Result
}

// WebhookHandler receives Bot API webhook deliveries.
type WebhookHandler struct {
	ingestor Ingestor
	logger   *slog.Logger
}

func NewWebhookHandler(ingestor Ingestor, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{ingestor: ingestor, logger: logger}
}

// Receive decodes one update and runs the pipeline. A retryable store
// failure maps to 503 so the upstream redelivers; every other outcome
// is confirmed with 200 — redelivering a skipped or empty update
// cannot change anything.
func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	var upd telegram.Update
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		h.logger.Warn("undecodable webhook payload", "error", err)
		writeError(w, http.StatusBadRequest, "invalid update payload")
		return
	}

	res := h.ingestor.Ingest(r.Context(), &upd)
	if res.Retryable {
		writeError(w, http.StatusServiceUnavailable, "store unavailable")
		return
	}

	writeJSON(w, http.StatusOK, OutcomeEnvelope{Outcome: string(res.Outcome)})
}
