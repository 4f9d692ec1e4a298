package beneficiaries

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sevatrack/sevatrack/internal/shared"
)

const beneficiaryColumns = `id, region_id, project_id, owner_user_id, name, phone, address, notes, is_active, enrolled_at, created_at, updated_at`

// Repository persists beneficiary records.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// List returns active beneficiaries. When scopeRegions is non-nil the
// listing is restricted to those region ids; nil means no region
// restriction applies to the caller.
func (r *Repository) List(ctx context.Context, filters ListFilters, scopeRegions []string) ([]Beneficiary, error) {
	query := `SELECT ` + beneficiaryColumns + ` FROM beneficiaries WHERE is_active`
	args := []any{}
	argCount := 0

	if scopeRegions != nil {
		argCount++
		query += ` AND region_id = ANY($` + strconv.Itoa(argCount) + `)`
		args = append(args, scopeRegions)
	}
	if filters.RegionID != "" {
		argCount++
		query += ` AND region_id = $` + strconv.Itoa(argCount)
		args = append(args, filters.RegionID)
	}
	if filters.ProjectID != "" {
		argCount++
		query += ` AND project_id = $` + strconv.Itoa(argCount)
		args = append(args, filters.ProjectID)
	}
	if filters.Search != "" {
		argCount++
		query += ` AND (name ILIKE $` + strconv.Itoa(argCount) + ` OR phone ILIKE $` + strconv.Itoa(argCount) + `)`
		args = append(args, "%"+filters.Search+"%")
	}

	query += ` ORDER BY name`
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

	var out []Beneficiary
	for rows.Next() {
		var b Beneficiary
		if err := scanBeneficiary(rows, &b); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *Repository) Get(ctx context.Context, id int64) (*Beneficiary, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+beneficiaryColumns+` FROM beneficiaries WHERE id = $1`, id)
	var b Beneficiary
	if err := scanBeneficiary(row, &b); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &b, nil
}

func (r *Repository) Create(ctx context.Context, b Beneficiary) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO beneficiaries (region_id, project_id, owner_user_id, name, phone, address, notes, is_active, enrolled_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE, $8)
		 RETURNING id`,
		b.RegionID, b.ProjectID, b.OwnerUserID, b.Name, b.Phone, b.Address, b.Notes, b.EnrolledAt,
	).Scan(&id)
	return id, err
}

func (r *Repository) Update(ctx context.Context, b *Beneficiary) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE beneficiaries SET name = $2, phone = $3, address = $4, notes = $5, updated_at = NOW() WHERE id = $1`,
		b.ID, b.Name, b.Phone, b.Address, b.Notes,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *Repository) Deactivate(ctx context.Context, id int64, at time.Time) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE beneficiaries SET is_active = FALSE, updated_at = $2 WHERE id = $1 AND is_active`,
		id, at,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func scanBeneficiary(row pgx.Row, b *Beneficiary) error {
	return row.Scan(
		&b.ID, &b.RegionID, &b.ProjectID, &b.OwnerUserID, &b.Name, &b.Phone,
		&b.Address, &b.Notes, &b.IsActive, &b.EnrolledAt, &b.CreatedAt, &b.UpdatedAt,
	)
}
