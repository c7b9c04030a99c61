package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/inkstream-blog/inkstream/internal/grants"
	jobmetrics "github.com/inkstream-blog/inkstream/internal/jobs"
)

// NewGrantSweepHandler builds the handler that deletes grants whose article
// or comment no longer exists.
func NewGrantSweepHandler(repo *grants.Repository, metrics *jobmetrics.Metrics, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		tracker := metrics.Track("grant_sweep")
		removed, err := repo.SweepOrphans(ctx)
		if err != nil {
			logger.Error("grant sweep failed", slog.Any("error", err))
			return tracker.End(err)
		}
		logger.Info("grant sweep complete", slog.Int64("removed", removed))
		return tracker.End(nil)
	}
}
