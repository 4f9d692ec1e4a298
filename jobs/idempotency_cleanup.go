package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/sevatrack/sevatrack/internal/observability"
	"github.com/sevatrack/sevatrack/internal/shared"
)

const idempotencyRetention = 48 * time.Hour

// IdempotencyCleanupJob drops idempotency keys past the retention
// window. Retries of a donation write never arrive days later, so the
// table only needs to cover recent traffic.
type IdempotencyCleanupJob struct {
	store   *shared.IdempotencyStore
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewIdempotencyCleanupJob constructs IdempotencyCleanupJob.
func NewIdempotencyCleanupJob(store *shared.IdempotencyStore, logger *slog.Logger, metrics *observability.Metrics) *IdempotencyCleanupJob {
	return &IdempotencyCleanupJob{store: store, logger: logger, metrics: metrics}
}

// Handle processes TaskTypeIdempotencyCleanup tasks.
func (j *IdempotencyCleanupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if err := j.store.Cleanup(ctx, idempotencyRetention); err != nil {
		if j.metrics != nil {
			j.metrics.ObserveJob(TaskTypeIdempotencyCleanup, "error")
		}
		return err
	}
	if j.metrics != nil {
		j.metrics.ObserveJob(TaskTypeIdempotencyCleanup, "ok")
	}
	j.logger.Info("idempotency cleanup complete")
	return nil
}
