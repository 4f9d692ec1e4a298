package schemes

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sevatrack/sevatrack/internal/shared"
)

const applicationColumns = `id, scheme_id, beneficiary_id, region_id, status, note, submitted_by, decided_by, decided_at, created_at, updated_at`

// Repository persists schemes and applications.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) ListSchemes(ctx context.Context) ([]Scheme, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, description, is_active, created_at, updated_at FROM schemes WHERE is_active ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Scheme
	for rows.Next() {
		var s Scheme
		if err := rows.Scan(&s.ID, &s.Name, &s.Description, &s.IsActive, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *Repository) GetScheme(ctx context.Context, id string) (*Scheme, error) {
	var s Scheme
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, description, is_active, created_at, updated_at FROM schemes WHERE id = $1`, id,
	).Scan(&s.ID, &s.Name, &s.Description, &s.IsActive, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

// ListApplications applies the caller's scope: a nil slice means the
// dimension is unrestricted, an empty non-nil slice matches nothing.
func (r *Repository) ListApplications(ctx context.Context, filters ApplicationFilters, scopeRegions, scopeSchemes []string) ([]Application, error) {
	query := `SELECT ` + applicationColumns + ` FROM scheme_applications WHERE 1=1`
	args := []any{}
	argCount := 0

	if scopeRegions != nil {
		argCount++
		query += ` AND region_id = ANY($` + strconv.Itoa(argCount) + `)`
		args = append(args, scopeRegions)
	}
	if scopeSchemes != nil {
		argCount++
		query += ` AND scheme_id = ANY($` + strconv.Itoa(argCount) + `)`
		args = append(args, scopeSchemes)
	}
	if filters.SchemeID != "" {
		argCount++
		query += ` AND scheme_id = $` + strconv.Itoa(argCount)
		args = append(args, filters.SchemeID)
	}
	if filters.RegionID != "" {
		argCount++
		query += ` AND region_id = $` + strconv.Itoa(argCount)
		args = append(args, filters.RegionID)
	}
	if filters.Status != "" {
		argCount++
		query += ` AND status = $` + strconv.Itoa(argCount)
		args = append(args, filters.Status)
	}

	query += ` ORDER BY created_at DESC`
	argCount++
	query += ` LIMIT $` + strconv.Itoa(argCount)
	args = append(args, filters.Limit)
	argCount++
	query += ` OFFSET $` + strconv.Itoa(argCount)
	args = append(args, filters.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Application
	for rows.Next() {
		var a Application
		if err := scanApplication(rows, &a); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *Repository) GetApplication(ctx context.Context, id uuid.UUID) (*Application, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+applicationColumns+` FROM scheme_applications WHERE id = $1`, id)
	var a Application
	if err := scanApplication(row, &a); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

func (r *Repository) CreateApplication(ctx context.Context, a Application) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO scheme_applications (id, scheme_id, beneficiary_id, region_id, status, note, submitted_by)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		a.ID, a.SchemeID, a.BeneficiaryID, a.RegionID, string(a.Status), a.Note, a.SubmittedBy,
	)
	return err
}

// TransitionStatus moves an application between workflow states,
// guarding against concurrent double-decisions with the expected
// current status.
func (r *Repository) TransitionStatus(ctx context.Context, id uuid.UUID, from []ApplicationStatus, to ApplicationStatus, decidedBy *int64, decidedAt *time.Time) error {
	fromStrs := make([]string, len(from))
	for i, s := range from {
		fromStrs[i] = string(s)
	}
	tag, err := r.pool.Exec(ctx,
		`UPDATE scheme_applications
		 SET status = $2, decided_by = COALESCE($3, decided_by), decided_at = COALESCE($4, decided_at), updated_at = NOW()
		 WHERE id = $1 AND status = ANY($5)`,
		id, string(to), decidedBy, decidedAt, fromStrs,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func scanApplication(row pgx.Row, a *Application) error {
	var status string
	err := row.Scan(
		&a.ID, &a.SchemeID, &a.BeneficiaryID, &a.RegionID, &status, &a.Note,
		&a.SubmittedBy, &a.DecidedBy, &a.DecidedAt, &a.CreatedAt, &a.UpdatedAt,
	)
	a.Status = ApplicationStatus(status)
	return err
}
