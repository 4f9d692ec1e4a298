package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/sevatrack/sevatrack/internal/observability"
)

// SweepExecer is the slice of the pgx pool the sweep needs.
type SweepExecer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// AssignmentSweepJob deactivates assignments whose validity window has
// closed. Permission resolution already ignores them; the sweep keeps
// listings and reports honest. Expiry is not a revocation, so
// revoked_at stays NULL and the history still tells the two apart.
type AssignmentSweepJob struct {
	pool    SweepExecer
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewAssignmentSweepJob constructs AssignmentSweepJob.
func NewAssignmentSweepJob(pool SweepExecer, logger *slog.Logger, metrics *observability.Metrics) *AssignmentSweepJob {
	return &AssignmentSweepJob{pool: pool, logger: logger, metrics: metrics}
}

// Handle processes TaskTypeAssignmentSweep tasks.
func (j *AssignmentSweepJob) Handle(ctx context.Context, t *asynq.Task) error {
	tag, err := j.pool.Exec(ctx,
		`UPDATE role_assignments SET active = FALSE
		 WHERE active AND valid_until IS NOT NULL AND valid_until <= NOW()`)
	if err != nil {
		if j.metrics != nil {
			j.metrics.ObserveJob(TaskTypeAssignmentSweep, "error")
		}
		return err
	}
	if j.metrics != nil {
		j.metrics.ObserveJob(TaskTypeAssignmentSweep, "ok")
	}
	j.logger.Info("assignment sweep complete", slog.Int64("expired", tag.RowsAffected()))
	return nil
}
