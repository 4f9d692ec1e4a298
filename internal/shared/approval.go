package shared

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ReviewAction enumerates review trail actions.
type ReviewAction string

const (
	// ReviewSubmit marks a submission.
	ReviewSubmit ReviewAction = "SUBMIT"
	// ReviewApprove marks an approval.
	ReviewApprove ReviewAction = "APPROVE"
	// ReviewReject marks a rejection.
	ReviewReject ReviewAction = "REJECT"
)

// ReviewLog represents a single review trail record.
type ReviewLog struct {
	ID      int64
	Module  string
	RefID   uuid.UUID
	ActorID int64
	Action  ReviewAction
	Note    string
	At      time.Time
}

// ReviewRecorder persists review history for workflows such as scheme
// applications.
type ReviewRecorder struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewReviewRecorder constructs ReviewRecorder.
func NewReviewRecorder(pool *pgxpool.Pool, logger *slog.Logger) *ReviewRecorder {
	return &ReviewRecorder{pool: pool, logger: logger}
}

// Record writes a review entry to the database.
func (r *ReviewRecorder) Record(ctx context.Context, log ReviewLog) error {
	if r == nil {
		return errors.New("review recorder not initialised")
	}
	if log.Module == "" {
		return errors.New("review module required")
	}
	if log.ActorID == 0 {
		return errors.New("review actor required")
	}
	if log.RefID == uuid.Nil {
		return errors.New("review ref id required")
	}
	if log.Action == "" {
		return errors.New("review action required")
	}
	_, err := r.pool.Exec(ctx, `INSERT INTO reviews (module, ref_id, actor_id, action, note, at)
VALUES ($1, $2, $3, $4, $5, COALESCE($6, NOW()))`, log.Module, log.RefID, log.ActorID, string(log.Action), log.Note, log.At)
	if err != nil {
		r.logger.Error("record review", slog.Any("error", err))
		return err
	}
	return nil
}

// List returns the review trail for module/ref.
func (r *ReviewRecorder) List(ctx context.Context, module string, ref uuid.UUID) ([]ReviewLog, error) {
	if r == nil {
		return nil, errors.New("review recorder not initialised")
	}
	rows, err := r.pool.Query(ctx, `SELECT id, module, ref_id, actor_id, action, note, at
FROM reviews WHERE module=$1 AND ref_id=$2 ORDER BY at ASC`, module, ref)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var logs []ReviewLog
	for rows.Next() {
		var l ReviewLog
		var action string
		if err := rows.Scan(&l.ID, &l.Module, &l.RefID, &l.ActorID, &action, &l.Note, &l.At); err != nil {
			return nil, err
		}
		l.Action = ReviewAction(action)
		logs = append(logs, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return logs, nil
}

// EnsureSubmit creates the submit record when it does not exist yet.
func (r *ReviewRecorder) EnsureSubmit(ctx context.Context, module string, ref uuid.UUID, actorID int64, note string) error {
	if r == nil {
		return errors.New("review recorder not initialised")
	}
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT true FROM reviews WHERE module=$1 AND ref_id=$2 AND action='SUBMIT' LIMIT 1`, module, ref).Scan(&exists)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return r.Record(ctx, ReviewLog{Module: module, RefID: ref, ActorID: actorID, Action: ReviewSubmit, Note: note})
		}
		return err
	}
	return nil
}
