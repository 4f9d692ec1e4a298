package authz

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// AssignmentStore provides read access to a principal's role
// assignments. Implementations must apply the currently-active filter
// (active flag plus validity window) before returning, so the decision
// path never re-derives it. Unknown principals yield an empty slice,
// not an error.
type AssignmentStore interface {
	ActiveAssignments(ctx context.Context, principalID int64, now time.Time) ([]RoleAssignment, error)
}

// AssignmentRepository implements AssignmentStore on PostgreSQL.
type AssignmentRepository struct {
	pool *pgxpool.Pool
}

// NewAssignmentRepository constructs a repository.
func NewAssignmentRepository(pool *pgxpool.Pool) *AssignmentRepository {
	return &AssignmentRepository{pool: pool}
}

// ActiveAssignments returns the assignments that count at the given
// instant. The freshness filter lives in this query and nowhere else.
func (r *AssignmentRepository) ActiveAssignments(ctx context.Context, principalID int64, now time.Time) ([]RoleAssignment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, role, regions, projects, schemes,
		       valid_from, valid_until, active, granted_by, created_at, revoked_at
		FROM role_assignments
		WHERE user_id = $1
		  AND active
		  AND (valid_from IS NULL OR valid_from <= $2)
		  AND (valid_until IS NULL OR valid_until > $2)
		ORDER BY id`, principalID, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var assignments []RoleAssignment
	for rows.Next() {
		var a RoleAssignment
		if err := rows.Scan(
			&a.ID, &a.PrincipalID, &a.Role,
			&a.Scope.Regions, &a.Scope.Projects, &a.Scope.Schemes,
			&a.ValidFrom, &a.ValidUntil, &a.Active, &a.GrantedBy,
			&a.CreatedAt, &a.RevokedAt,
		); err != nil {
			return nil, err
		}
		assignments = append(assignments, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return assignments, nil
}

var _ AssignmentStore = (*AssignmentRepository)(nil)
