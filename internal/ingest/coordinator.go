package ingest

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"post_keeper/internal/domain"
	"post_keeper/internal/storage"
	"post_keeper/internal/telegram"
)

// Outcome is the terminal state of one ingestion attempt. Exactly one
// outcome is produced per update; nothing in the pipeline panics or
// escapes the coordinator.
type Outcome string

const (
	OutcomeStoredNew            Outcome = "stored-new"
	OutcomeStoredUpdated        Outcome = "stored-updated"
	OutcomeSkippedNotApplicable Outcome = "skipped-not-applicable"
	OutcomeRejectedNoContent    Outcome = "rejected-no-content"
	OutcomeRejectedStore        Outcome = "rejected-store-unavailable"
)

// Result reports how one update was handled. Retryable is set only
// for connection-class store failures: the upstream transport may
// redeliver, and the idempotent upsert makes that safe.
type Result struct {
	Outcome   Outcome
	Post      *domain.Post
	Retryable bool
	Err       error
}

// Coordinator runs classify → extract → resolve → store for one
// update at a time. It holds no state across calls; the host decides
// the concurrency model and the store's atomic upsert is the sole
// duplicate-suppression mechanism.
type Coordinator struct {
	classifier     *Classifier
	extractor      *Extractor
	store          PostStore
	resolver       MediaResolver
	publisher      Publisher
	resolveTimeout time.Duration
	logger         *slog.Logger
}

// NewCoordinator wires the pipeline. resolver and publisher may be
// nil; their steps are then skipped.
func NewCoordinator(
	classifier *Classifier,
	extractor *Extractor,
	store PostStore,
	resolver MediaResolver,
	publisher Publisher,
	resolveTimeout time.Duration,
	logger *slog.Logger,
) *Coordinator {
	return &Coordinator{
		classifier:     classifier,
		extractor:      extractor,
		store:          store,
		resolver:       resolver,
		publisher:      publisher,
		resolveTimeout: resolveTimeout,
		logger:         logger.With("component", "ingest"),
	}
}

// Ingest processes one inbound update to a terminal outcome.
// Redelivering the same update any number of times yields exactly one
// stored post reflecting the latest delivery.
func (c *Coordinator) Ingest(ctx context.Context, upd *telegram.Update) Result {
	cls := c.classifier.Classify(upd)
	if !cls.Applicable {
		c.logger.Debug("update not applicable, skipping")
		return Result{Outcome: OutcomeSkippedNotApplicable}
	}

	post, err := c.extractor.Extract(cls.Message, cls.Kind)
	if err != nil {
		// Data-quality event, not a system fault: an empty update
		// stays empty on retry.
		c.logger.Warn("nothing extractable",
			"channel_id", cls.Message.Chat.ID,
			"message_id", cls.Message.MessageID,
			"kind", cls.Kind,
		)
		return Result{Outcome: OutcomeRejectedNoContent, Err: err}
	}

	if post.MediaRef != nil && c.resolver != nil {
		c.resolveMedia(ctx, post)
	}

	created, err := c.store.Upsert(ctx, post)
	if err != nil {
		retryable := errors.Is(err, storage.ErrUnavailable)
		c.logger.Error("store upsert failed",
			"channel_id", post.ChannelID,
			"message_id", post.MessageID,
			"retryable", retryable,
			"error", err,
		)
		return Result{Outcome: OutcomeRejectedStore, Retryable: retryable, Err: err}
	}

	if c.publisher != nil {
		if err := c.publisher.Publish(ctx, post, created); err != nil {
			c.logger.Error("publish failed",
				"channel_id", post.ChannelID,
				"message_id", post.MessageID,
				"error", err,
			)
		}
	}

	outcome := OutcomeStoredUpdated
	if created {
		outcome = OutcomeStoredNew
	}

	c.logger.Info("post stored",
		"channel_id", post.ChannelID,
		"message_id", post.MessageID,
		"kind", post.Kind,
		"outcome", outcome,
	)

	return Result{Outcome: outcome, Post: post}
}

// resolveMedia swaps the raw file handle for a retrievable URL.
// Resolution is bounded by its own timeout and its failure never
// aborts ingestion: the post keeps the unresolved handle.
func (c *Coordinator) resolveMedia(ctx context.Context, post *domain.Post) {
	rctx, cancel := context.WithTimeout(ctx, c.resolveTimeout)
	defer cancel()

	url, err := c.resolver.Resolve(rctx, *post.MediaRef)
	if err != nil {
		c.logger.Warn("media resolution failed, keeping raw handle",
			"channel_id", post.ChannelID,
			"message_id", post.MessageID,
			"error", err,
		)
		return
	}
	post.MediaRef = &url
}
