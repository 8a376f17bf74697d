package poller

import (
	"context"
	"log/slog"
	"time"

	"post_keeper/internal/domain"
	"post_keeper/internal/ingest"
	"post_keeper/internal/telegram"
)

// retryDelay spaces out retries after a failed getUpdates call.
const retryDelay = 5 * time.Second

// Ingestor processes one update to a terminal outcome.
type Ingestor interface {
	Ingest(ctx context.Context, upd *telegram.Update) ingest.Result
}

// UpdateSource is the long-polling side of the Bot API client.
type UpdateSource interface {
	GetUpdates(ctx context.Context, offset int64, limit int) ([]telegram.Update, error)
}

// Poller is the polling transport: it drains the update feed and hands
// each update to the ingestor. Confirming an offset past an update is
// what acknowledges it upstream, so the offset only advances past
// updates that reached a non-retryable outcome.
type Poller struct {
	source     UpdateSource
	ingestor   Ingestor
	batchSize  int
	offset     int64
	retryDelay time.Duration
	logger     *slog.Logger
}

func New(source UpdateSource, ingestor Ingestor, batchSize int, logger *slog.Logger) *Poller {
	return &Poller{
		source:     source,
		ingestor:   ingestor,
		batchSize:  batchSize,
		retryDelay: retryDelay,
		logger:     logger.With("component", "poller"),
	}
}

// Start runs the poll loop until ctx is cancelled.
func (p *Poller) Start(ctx context.Context) error {
	p.logger.Info("poller started", "batch_size", p.batchSize)

	for {
		if err := ctx.Err(); err != nil {
			p.logger.Info("poller stopped")
			return err
		}

		updates, err := p.source.GetUpdates(ctx, p.offset, p.batchSize)
		if err != nil {
			if ctx.Err() != nil {
				p.logger.Info("poller stopped")
				return ctx.Err()
			}
			p.logger.Error("get updates failed", "error", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(p.retryDelay):
			}
			continue
		}

		if len(updates) == 0 {
			continue
		}

		stats := p.processBatch(ctx, updates)
		p.logger.Info("batch processed",
			"fetched", stats.Fetched,
			"new", stats.New,
			"updated", stats.Updated,
			"skipped", stats.Skipped,
			"rejected", stats.Rejected,
			"errors", stats.Errors,
			"duration", stats.Duration,
		)
	}
}

func (p *Poller) processBatch(ctx context.Context, updates []telegram.Update) domain.IngestStats {
	start := time.Now()
	stats := domain.IngestStats{Fetched: len(updates)}

	for i := range updates {
		res := p.ingestor.Ingest(ctx, &updates[i])

		switch res.Outcome {
		case ingest.OutcomeStoredNew:
			stats.New++
		case ingest.OutcomeStoredUpdated:
			stats.Updated++
		case ingest.OutcomeSkippedNotApplicable:
			stats.Skipped++
		default:
			stats.Rejected++
		}

		if res.Retryable {
			// Leave the offset where it is: the next getUpdates call
			// redelivers everything from this update on, and the
			// idempotent upsert makes the replay harmless.
			stats.Errors++
			break
		}

		p.offset = updates[i].UpdateID + 1
	}

	stats.Duration = time.Since(start)
	return stats
}
