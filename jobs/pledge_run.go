package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/sevatrack/sevatrack/internal/donations"
	"github.com/sevatrack/sevatrack/internal/observability"
)

const defaultPledgeBatch = 200

// PledgeRunJob charges recurring pledges that have come due.
type PledgeRunJob struct {
	service *donations.Service
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewPledgeRunJob constructs PledgeRunJob.
func NewPledgeRunJob(service *donations.Service, logger *slog.Logger, metrics *observability.Metrics) *PledgeRunJob {
	return &PledgeRunJob{service: service, logger: logger, metrics: metrics}
}

// Handle processes TaskTypePledgeRun tasks.
func (j *PledgeRunJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload PledgeRunPayload
	if err := decodePayload(t, &payload); err != nil {
		return err
	}
	batch := payload.Batch
	if batch <= 0 {
		batch = defaultPledgeBatch
	}

	charged, err := j.service.RunDuePledges(ctx, batch)
	if err != nil {
		j.observe("error")
		return err
	}
	j.observe("ok")
	j.logger.Info("pledge run complete", slog.Int("charged", charged))
	return nil
}

func (j *PledgeRunJob) observe(result string) {
	if j.metrics != nil {
		j.metrics.ObserveJob(TaskTypePledgeRun, result)
	}
}
