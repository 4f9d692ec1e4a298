package users

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sevatrack/sevatrack/internal/authz"
	"github.com/sevatrack/sevatrack/internal/shared"
)

// ErrHierarchyViolation indicates the actor tried to administer a role
// at or above their own jurisdiction apex.
var ErrHierarchyViolation = errors.New("users: admin hierarchy violation")

// ErrUnassignableRole indicates the role cannot be granted through an
// assignment: global roles are set on the account itself, end-user
// roles carry no assignment.
var ErrUnassignableRole = errors.New("users: role not assignable")

// RepositoryPort defines data access methods for users and their
// role assignments.
type RepositoryPort interface {
	ListUsers(ctx context.Context, limit, offset int) ([]User, error)
	CountUsers(ctx context.Context) (int, error)
	GetUser(ctx context.Context, id int64) (*User, error)
	SetUserActive(ctx context.Context, id int64, active bool) error
	ListAssignments(ctx context.Context, userID int64) ([]authz.RoleAssignment, error)
	CreateAssignment(ctx context.Context, a authz.RoleAssignment) (int64, error)
	RevokeAssignment(ctx context.Context, id int64, revokedAt time.Time) error
	UpdateAssignmentWindow(ctx context.Context, id int64, validFrom, validUntil *time.Time) error
	GetAssignment(ctx context.Context, id int64) (*authz.RoleAssignment, error)
}

// Auditor records administrative actions.
type Auditor interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// SessionRevoker cuts a user's live sessions. Deactivation must not
// wait out the session TTL.
type SessionRevoker interface {
	RevokeUserSessions(ctx context.Context, userID int64) error
}

// Service handles user administration and the role-assignment
// lifecycle. Granting and revoking are the permission-sensitive writes
// of the platform, so both run the actor through the attempt limiter
// and the admin-hierarchy check before touching the store.
type Service struct {
	repo     RepositoryPort
	engine   *authz.Engine
	limiter  authz.AttemptLimiter
	audit    Auditor
	sessions SessionRevoker
	logger   *slog.Logger
	now      func() time.Time
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort, engine *authz.Engine, limiter authz.AttemptLimiter, audit Auditor, sessions SessionRevoker, logger *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		engine:   engine,
		limiter:  limiter,
		audit:    audit,
		sessions: sessions,
		logger:   logger,
		now:      time.Now,
	}
}

// WithClock replaces the service's time source and returns the service.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

const (
	grantWindow      = time.Hour
	grantMaxAttempts = 30
)

// ListUsers returns a page of users with pagination metadata.
func (s *Service) ListUsers(ctx context.Context, page, perPage int) ([]User, shared.Pagination, error) {
	if perPage <= 0 || perPage > 200 {
		perPage = 50
	}
	if page <= 0 {
		page = 1
	}
	total, err := s.repo.CountUsers(ctx)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	list, err := s.repo.ListUsers(ctx, perPage, (page-1)*perPage)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return list, shared.NewPagination(page, perPage, total), nil
}

// GetUser fetches a single user.
func (s *Service) GetUser(ctx context.Context, id int64) (*User, error) {
	return s.repo.GetUser(ctx, id)
}

// ListAssignments returns a user's full assignment history.
func (s *Service) ListAssignments(ctx context.Context, userID int64) ([]authz.RoleAssignment, error) {
	return s.repo.ListAssignments(ctx, userID)
}

// GrantInput describes a role grant request.
type GrantInput struct {
	UserID     int64
	Role       authz.Role
	Scope      authz.Scope
	ValidFrom  *time.Time
	ValidUntil *time.Time
}

// GrantRole creates a role assignment after verifying the actor may
// administer the granted role's level.
func (s *Service) GrantRole(ctx context.Context, actor *authz.Principal, input GrantInput) (int64, error) {
	if err := s.throttle(ctx, actor, "assignment_grant"); err != nil {
		return 0, err
	}
	if err := s.checkHierarchy(actor, input.Role); err != nil {
		return 0, err
	}
	if input.ValidFrom != nil && input.ValidUntil != nil && !input.ValidUntil.After(*input.ValidFrom) {
		return 0, errors.New("users: valid_until must be after valid_from")
	}

	id, err := s.repo.CreateAssignment(ctx, authz.RoleAssignment{
		PrincipalID: input.UserID,
		Role:        input.Role,
		Scope:       input.Scope,
		ValidFrom:   input.ValidFrom,
		ValidUntil:  input.ValidUntil,
		GrantedBy:   actor.ID,
	})
	if err != nil {
		return 0, err
	}
	s.record(ctx, actor, "assignment.grant", "role_assignment", id, map[string]any{
		"user_id": input.UserID,
		"role":    string(input.Role),
	})
	return id, nil
}

// DeactivateUser disables the account and cuts its live sessions so
// the lockout is immediate rather than deferred to the session TTL.
func (s *Service) DeactivateUser(ctx context.Context, actor *authz.Principal, userID int64) error {
	if err := s.throttle(ctx, actor, "user_deactivate"); err != nil {
		return err
	}
	u, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.repo.SetUserActive(ctx, u.ID, false); err != nil {
		return err
	}
	if s.sessions != nil {
		if err := s.sessions.RevokeUserSessions(ctx, u.ID); err != nil && s.logger != nil {
			s.logger.Warn("session revocation failed", slog.Int64("user_id", u.ID), slog.Any("error", err))
		}
	}
	s.record(ctx, actor, "user.deactivate", "user", u.ID, nil)
	return nil
}

// RevokeRole deactivates an assignment, preserving the row.
func (s *Service) RevokeRole(ctx context.Context, actor *authz.Principal, assignmentID int64) error {
	if err := s.throttle(ctx, actor, "assignment_revoke"); err != nil {
		return err
	}
	assignment, err := s.repo.GetAssignment(ctx, assignmentID)
	if err != nil {
		return err
	}
	if err := s.checkHierarchy(actor, assignment.Role); err != nil {
		return err
	}
	if err := s.repo.RevokeAssignment(ctx, assignmentID, s.now()); err != nil {
		return err
	}
	s.record(ctx, actor, "assignment.revoke", "role_assignment", assignmentID, map[string]any{
		"user_id": assignment.PrincipalID,
		"role":    string(assignment.Role),
	})
	return nil
}

// UpdateWindow edits the validity window of an assignment.
func (s *Service) UpdateWindow(ctx context.Context, actor *authz.Principal, assignmentID int64, validFrom, validUntil *time.Time) error {
	if err := s.throttle(ctx, actor, "assignment_window"); err != nil {
		return err
	}
	assignment, err := s.repo.GetAssignment(ctx, assignmentID)
	if err != nil {
		return err
	}
	if err := s.checkHierarchy(actor, assignment.Role); err != nil {
		return err
	}
	if validFrom != nil && validUntil != nil && !validUntil.After(*validFrom) {
		return errors.New("users: valid_until must be after valid_from")
	}
	if err := s.repo.UpdateAssignmentWindow(ctx, assignmentID, validFrom, validUntil); err != nil {
		return err
	}
	s.record(ctx, actor, "assignment.window", "role_assignment", assignmentID, nil)
	return nil
}

func (s *Service) checkHierarchy(actor *authz.Principal, role authz.Role) error {
	if role.IsGlobal() {
		// Global roles live on the account row, not in assignments.
		return ErrUnassignableRole
	}
	level, ok := role.ApexLevel()
	if !ok {
		return ErrUnassignableRole
	}
	allowed, err := s.engine.CheckAdminHierarchy(actor, level)
	if err != nil {
		return err
	}
	if !allowed {
		return fmt.Errorf("%w: %s may not administer %s roles", ErrHierarchyViolation, actor.Role, level)
	}
	return nil
}

func (s *Service) throttle(ctx context.Context, actor *authz.Principal, op string) error {
	if actor == nil {
		return authz.ErrUnauthenticated
	}
	if s.limiter == nil {
		return nil
	}
	key := fmt.Sprintf("%s:%d", op, actor.ID)
	attempt, err := s.limiter.Record(ctx, key, grantWindow, grantMaxAttempts)
	if err != nil {
		if s.logger != nil {
			s.logger.Error("attempt limiter unavailable, failing closed", slog.Any("error", err))
		}
		return shared.ErrTooManyAttempts
	}
	if !attempt.Allowed {
		return shared.ErrTooManyAttempts
	}
	return nil
}

func (s *Service) record(ctx context.Context, actor *authz.Principal, action, entity string, refID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor.ID,
		Action:   action,
		Entity:   entity,
		EntityID: fmt.Sprintf("%d", refID),
		Meta:     meta,
	})
	if err != nil && s.logger != nil {
		s.logger.Warn("audit write failed", slog.Any("error", err))
	}
}
