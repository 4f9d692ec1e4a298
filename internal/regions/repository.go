package regions

import (
	"context"
	"errors"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sevatrack/sevatrack/internal/authz"
	"github.com/sevatrack/sevatrack/internal/shared"
)

// ListFilters narrows a region listing.
type ListFilters struct {
	Level    *authz.Level
	ParentID *string
	Search   string
	Limit    int
	Offset   int
}

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) List(ctx context.Context, filters ListFilters) ([]Region, error) {
	query := `SELECT id, parent_id, name, level, is_active, created_at, updated_at FROM regions WHERE is_active`
	args := []any{}
	argCount := 0

	if filters.Level != nil {
		argCount++
		query += ` AND level = $` + strconv.Itoa(argCount)
		args = append(args, string(*filters.Level))
	}
	if filters.ParentID != nil {
		argCount++
		query += ` AND parent_id = $` + strconv.Itoa(argCount)
		args = append(args, *filters.ParentID)
	}
	if filters.Search != "" {
		argCount++
		query += ` AND name ILIKE $` + strconv.Itoa(argCount)
		args = append(args, "%"+filters.Search+"%")
	}

	query += ` ORDER BY level, name`
	if filters.Limit > 0 {
		argCount++
		query += ` LIMIT $` + strconv.Itoa(argCount)
		args = append(args, filters.Limit)
		argCount++
		query += ` OFFSET $` + strconv.Itoa(argCount)
		args = append(args, filters.Offset)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Region
	for rows.Next() {
		var reg Region
		if err := rows.Scan(&reg.ID, &reg.ParentID, &reg.Name, &reg.Level, &reg.IsActive, &reg.CreatedAt, &reg.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, reg)
	}
	return out, rows.Err()
}

func (r *Repository) Get(ctx context.Context, id string) (*Region, error) {
	var reg Region
	err := r.pool.QueryRow(ctx,
		`SELECT id, parent_id, name, level, is_active, created_at, updated_at FROM regions WHERE id = $1`,
		id,
	).Scan(&reg.ID, &reg.ParentID, &reg.Name, &reg.Level, &reg.IsActive, &reg.CreatedAt, &reg.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &reg, nil
}

// Children returns the direct children of a region.
func (r *Repository) Children(ctx context.Context, parentID string) ([]Region, error) {
	return r.List(ctx, ListFilters{ParentID: &parentID})
}

func (r *Repository) Create(ctx context.Context, reg Region) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO regions (id, parent_id, name, level, is_active) VALUES ($1, $2, $3, $4, TRUE)`,
		reg.ID, reg.ParentID, reg.Name, string(reg.Level),
	)
	return err
}

func (r *Repository) Rename(ctx context.Context, id, name string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE regions SET name = $2, updated_at = NOW() WHERE id = $1`,
		id, name,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *Repository) Deactivate(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE regions SET is_active = FALSE, updated_at = NOW() WHERE id = $1 AND is_active`,
		id,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}
