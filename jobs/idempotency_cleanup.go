package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/inkstream-blog/inkstream/internal/jobs"
	"github.com/inkstream-blog/inkstream/internal/shared"
)

// NewIdempotencyCleanupHandler builds the handler that expires processed
// idempotency keys older than the retention window.
func NewIdempotencyCleanupHandler(store *shared.IdempotencyStore, retention time.Duration, metrics *jobmetrics.Metrics, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		tracker := metrics.Track("idempotency_cleanup")
		if err := store.Cleanup(ctx, retention); err != nil {
			logger.Error("idempotency cleanup failed", slog.Any("error", err))
			return tracker.End(err)
		}
		logger.Info("idempotency cleanup complete", slog.Duration("retention", retention))
		return tracker.End(nil)
	}
}
