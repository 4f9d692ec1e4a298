package users

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sevatrack/sevatrack/internal/authz"
	"github.com/sevatrack/sevatrack/internal/shared"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListUsers returns a page of users.
func (r *Repository) ListUsers(ctx context.Context, limit, offset int) ([]User, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, phone, email, role, is_active, created_at, updated_at
		FROM users ORDER BY id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Name, &u.Phone, &u.Email, &u.Role, &u.IsActive, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}

// SetUserActive flips the account's active flag.
func (r *Repository) SetUserActive(ctx context.Context, id int64, active bool) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET is_active = $2, updated_at = NOW() WHERE id = $1`, id, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// CountUsers returns the total user count for pagination metadata.
func (r *Repository) CountUsers(ctx context.Context) (int, error) {
	var total int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&total)
	return total, err
}

// GetUser fetches a user by id.
func (r *Repository) GetUser(ctx context.Context, id int64) (*User, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, phone, email, role, is_active, created_at, updated_at
		FROM users WHERE id = $1`, id)
	var u User
	if err := row.Scan(&u.ID, &u.Name, &u.Phone, &u.Email, &u.Role, &u.IsActive, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// ListAssignments returns every assignment of a user, including revoked
// and expired ones; the soft lifecycle keeps history visible.
func (r *Repository) ListAssignments(ctx context.Context, userID int64) ([]authz.RoleAssignment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, role, regions, projects, schemes,
		       valid_from, valid_until, active, granted_by, created_at, revoked_at
		FROM role_assignments WHERE user_id = $1 ORDER BY id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []authz.RoleAssignment
	for rows.Next() {
		var a authz.RoleAssignment
		if err := rows.Scan(
			&a.ID, &a.PrincipalID, &a.Role,
			&a.Scope.Regions, &a.Scope.Projects, &a.Scope.Schemes,
			&a.ValidFrom, &a.ValidUntil, &a.Active, &a.GrantedBy,
			&a.CreatedAt, &a.RevokedAt,
		); err != nil {
			return nil, err
		}
		list = append(list, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}

// CreateAssignment inserts a new role assignment.
func (r *Repository) CreateAssignment(ctx context.Context, a authz.RoleAssignment) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO role_assignments (user_id, role, regions, projects, schemes, valid_from, valid_until, active, granted_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE, $8, NOW())
		RETURNING id`,
		a.PrincipalID, a.Role, a.Scope.Regions, a.Scope.Projects, a.Scope.Schemes,
		a.ValidFrom, a.ValidUntil, a.GrantedBy).Scan(&id)
	return id, err
}

// RevokeAssignment flips the active flag; rows are never deleted.
func (r *Repository) RevokeAssignment(ctx context.Context, id int64, revokedAt time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE role_assignments SET active = FALSE, revoked_at = $2
		WHERE id = $1 AND active`, id, revokedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// UpdateAssignmentWindow edits the validity window of an assignment.
func (r *Repository) UpdateAssignmentWindow(ctx context.Context, id int64, validFrom, validUntil *time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE role_assignments SET valid_from = $2, valid_until = $3
		WHERE id = $1`, id, validFrom, validUntil)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// GetAssignment fetches a single assignment.
func (r *Repository) GetAssignment(ctx context.Context, id int64) (*authz.RoleAssignment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, user_id, role, regions, projects, schemes,
		       valid_from, valid_until, active, granted_by, created_at, revoked_at
		FROM role_assignments WHERE id = $1`, id)
	var a authz.RoleAssignment
	if err := row.Scan(
		&a.ID, &a.PrincipalID, &a.Role,
		&a.Scope.Regions, &a.Scope.Projects, &a.Scope.Schemes,
		&a.ValidFrom, &a.ValidUntil, &a.Active, &a.GrantedBy,
		&a.CreatedAt, &a.RevokedAt,
	); err != nil {
		if err == pgx.ErrNoRows {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}
