package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/inkstream-blog/inkstream/internal/counter"
	jobmetrics "github.com/inkstream-blog/inkstream/internal/jobs"
)

// NewHotListWarmupHandler builds the handler that rebuilds the most-viewed
// articles cache under a fresh version key.
func NewHotListWarmupHandler(ctr *counter.Service, defaultLimit int, metrics *jobmetrics.Metrics, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		tracker := metrics.Track("hotlist_warmup")
		var payload HotListWarmupPayload
		if len(t.Payload()) > 0 {
			if err := json.Unmarshal(t.Payload(), &payload); err != nil {
				return tracker.End(asynq.SkipRetry)
			}
		}
		limit := payload.Limit
		if limit <= 0 {
			limit = defaultLimit
		}
		if err := ctr.WarmHotList(ctx, limit); err != nil {
			logger.Error("hot list warmup failed", slog.Any("error", err))
			return tracker.End(err)
		}
		logger.Info("hot list warmed", slog.Int("limit", limit))
		return tracker.End(nil)
	}
}
