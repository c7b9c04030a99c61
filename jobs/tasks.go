package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskHotListWarmup refreshes the most-viewed articles cache.
	TaskHotListWarmup = "hotlist:warmup"
	// TaskGrantSweep removes grants pointing at deleted objects.
	TaskGrantSweep = "grants:sweep"
	// TaskIdempotencyCleanup expires old idempotency keys.
	TaskIdempotencyCleanup = "idempotency:cleanup"
)

// HotListWarmupPayload sizes the refreshed hot list.
type HotListWarmupPayload struct {
	Limit int `json:"limit"`
}

// NewHotListWarmupTask constructs an Asynq task.
func NewHotListWarmupTask(payload HotListWarmupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskHotListWarmup, data), nil
}

// NewGrantSweepTask constructs an Asynq task. The sweep takes no parameters.
func NewGrantSweepTask() *asynq.Task {
	return asynq.NewTask(TaskGrantSweep, nil)
}

// NewIdempotencyCleanupTask constructs an Asynq task. Retention comes from
// worker configuration, not the payload.
func NewIdempotencyCleanupTask() *asynq.Task {
	return asynq.NewTask(TaskIdempotencyCleanup, nil)
}
