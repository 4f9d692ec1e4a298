package beneficiaries

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sevatrack/sevatrack/internal/authz"
	"github.com/sevatrack/sevatrack/internal/platform/httpx"
)

// RepositoryPort defines the persistence surface the service needs.
type RepositoryPort interface {
	List(ctx context.Context, filters ListFilters, scopeRegions []string) ([]Beneficiary, error)
	Get(ctx context.Context, id int64) (*Beneficiary, error)
	Create(ctx context.Context, b Beneficiary) (int64, error)
	Update(ctx context.Context, b *Beneficiary) error
	Deactivate(ctx context.Context, id int64, at time.Time) error
}

// Service enforces scope on every beneficiary operation. Listings are
// narrowed to the caller's effective regions up front; single-record
// operations go through the resource check, which also serves the
// owner-equality path for beneficiaries reading their own record.
type Service struct {
	repo     RepositoryPort
	engine   *authz.Engine
	resolver *authz.Resolver
	logger   *slog.Logger
	now      func() time.Time
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort, engine *authz.Engine, resolver *authz.Resolver, logger *slog.Logger) *Service {
	return &Service{repo: repo, engine: engine, resolver: resolver, logger: logger, now: time.Now}
}

// WithClock replaces the service's time source and returns the service.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// List returns beneficiaries visible to the principal. A principal
// with no region grants and no bypass sees nothing.
func (s *Service) List(ctx context.Context, p *authz.Principal, filters ListFilters) ([]Beneficiary, error) {
	scope, err := s.resolver.EffectiveScope(ctx, p, s.now())
	if err != nil {
		return nil, err
	}
	if filters.Limit <= 0 || filters.Limit > 200 {
		filters.Limit = 50
	}
	if filters.Offset < 0 {
		filters.Offset = 0
	}

	var scopeRegions []string
	if !scope.Unrestricted() {
		scopeRegions = scope.RegionIDs()
		if len(scopeRegions) == 0 {
			return []Beneficiary{}, nil
		}
	}
	return s.repo.List(ctx, filters, scopeRegions)
}

// Get fetches one record after a resource check.
func (s *Service) Get(ctx context.Context, p *authz.Principal, id int64) (*Beneficiary, error) {
	b, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, p, b); err != nil {
		return nil, err
	}
	return b, nil
}

// Create registers a beneficiary in a region the principal may write.
func (s *Service) Create(ctx context.Context, p *authz.Principal, req CreateRequest) (*Beneficiary, error) {
	candidate := Beneficiary{
		RegionID:    req.RegionID,
		ProjectID:   req.ProjectID,
		OwnerUserID: req.OwnerUserID,
		Name:        req.Name,
		Phone:       req.Phone,
		Address:     req.Address,
		Notes:       req.Notes,
	}
	if err := s.authorize(ctx, p, &candidate); err != nil {
		return nil, err
	}

	enrolled := s.now()
	candidate.EnrolledAt = &enrolled
	id, err := s.repo.Create(ctx, candidate)
	if err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, id)
}

// Update edits contact fields on an existing record.
func (s *Service) Update(ctx context.Context, p *authz.Principal, id int64, req UpdateRequest) (*Beneficiary, error) {
	b, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, p, b); err != nil {
		return nil, err
	}

	if req.Name != nil {
		b.Name = *req.Name
	}
	if req.Phone != nil {
		b.Phone = *req.Phone
	}
	if req.Address != nil {
		b.Address = *req.Address
	}
	if req.Notes != nil {
		b.Notes = *req.Notes
	}
	if err := s.repo.Update(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

// Deactivate retires a record without deleting it.
func (s *Service) Deactivate(ctx context.Context, p *authz.Principal, id int64) error {
	b, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.authorize(ctx, p, b); err != nil {
		return err
	}
	return s.repo.Deactivate(ctx, id, s.now())
}

func (s *Service) authorize(ctx context.Context, p *authz.Principal, b *Beneficiary) error {
	res := authz.Resource{RegionIDs: []string{b.RegionID}}
	if b.ProjectID != nil {
		res.ProjectID = *b.ProjectID
	}
	if b.OwnerUserID != nil {
		res.OwnerID = *b.OwnerUserID
	}
	allowed, err := s.engine.CheckResourceAccess(ctx, p, res)
	if err != nil {
		return err
	}
	if !allowed {
		return fmt.Errorf("%w: beneficiary outside caller scope", httpx.ErrForbidden)
	}
	return nil
}
