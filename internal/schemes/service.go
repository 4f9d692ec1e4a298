package schemes

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/sevatrack/sevatrack/internal/authz"
	"github.com/sevatrack/sevatrack/internal/beneficiaries"
	"github.com/sevatrack/sevatrack/internal/platform/httpx"
	"github.com/sevatrack/sevatrack/internal/shared"
)

// ErrInvalidTransition indicates a decision on an application that is
// not in a decidable state.
var ErrInvalidTransition = errors.New("schemes: invalid status transition")

// RepositoryPort is the persistence surface the service needs.
type RepositoryPort interface {
	ListSchemes(ctx context.Context) ([]Scheme, error)
	GetScheme(ctx context.Context, id string) (*Scheme, error)
	ListApplications(ctx context.Context, filters ApplicationFilters, scopeRegions, scopeSchemes []string) ([]Application, error)
	GetApplication(ctx context.Context, id uuid.UUID) (*Application, error)
	CreateApplication(ctx context.Context, a Application) error
	TransitionStatus(ctx context.Context, id uuid.UUID, from []ApplicationStatus, to ApplicationStatus, decidedBy *int64, decidedAt *time.Time) error
}

// BeneficiaryDirectory resolves beneficiary records for region
// denormalisation and the owner path.
type BeneficiaryDirectory interface {
	Get(ctx context.Context, id int64) (*beneficiaries.Beneficiary, error)
}

// Reviews records the application review trail.
type Reviews interface {
	Record(ctx context.Context, log shared.ReviewLog) error
}

// Service runs the application workflow. Listing narrows by both the
// region and scheme scope dimensions; single-application operations go
// through the resource check, where an applicant's own record passes
// via ownership.
type Service struct {
	repo     RepositoryPort
	people   BeneficiaryDirectory
	engine   *authz.Engine
	resolver *authz.Resolver
	reviews  Reviews
	logger   *slog.Logger
	now      func() time.Time
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort, people BeneficiaryDirectory, engine *authz.Engine, resolver *authz.Resolver, reviews Reviews, logger *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		people:   people,
		engine:   engine,
		resolver: resolver,
		reviews:  reviews,
		logger:   logger,
		now:      time.Now,
	}
}

// WithClock replaces the service's time source and returns the service.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// ListSchemes returns the active scheme catalogue. Visible to any
// authenticated user so beneficiaries can browse before applying.
func (s *Service) ListSchemes(ctx context.Context) ([]Scheme, error) {
	return s.repo.ListSchemes(ctx)
}

// Apply submits an application on behalf of a beneficiary. The region
// is denormalised from the beneficiary record at submit time.
func (s *Service) Apply(ctx context.Context, p *authz.Principal, req ApplyRequest) (*Application, error) {
	scheme, err := s.repo.GetScheme(ctx, req.SchemeID)
	if err != nil {
		return nil, err
	}
	if !scheme.IsActive {
		return nil, fmt.Errorf("schemes: scheme %q is closed", scheme.ID)
	}
	beneficiary, err := s.people.Get(ctx, req.BeneficiaryID)
	if err != nil {
		return nil, err
	}

	if err := s.authorize(ctx, p, beneficiary.RegionID, scheme.ID, beneficiary.OwnerUserID); err != nil {
		return nil, err
	}

	app := Application{
		ID:            uuid.New(),
		SchemeID:      scheme.ID,
		BeneficiaryID: beneficiary.ID,
		RegionID:      beneficiary.RegionID,
		Status:        StatusPending,
		Note:          req.Note,
		SubmittedBy:   p.ID,
	}
	if err := s.repo.CreateApplication(ctx, app); err != nil {
		return nil, err
	}
	s.review(ctx, app.ID, p.ID, shared.ReviewSubmit, req.Note)
	return &app, nil
}

// ListApplications returns applications within the caller's scope.
// The scheme dimension is permissive: a caller with no scheme grants
// sees every scheme their regions allow.
func (s *Service) ListApplications(ctx context.Context, p *authz.Principal, filters ApplicationFilters) ([]Application, error) {
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

	var scopeRegions, scopeSchemes []string
	if !scope.Unrestricted() {
		scopeRegions = scope.RegionIDs()
		if len(scopeRegions) == 0 {
			return []Application{}, nil
		}
		// Scheme grants restrict only when present.
		scopeSchemes = scope.SchemeIDs()
	}
	return s.repo.ListApplications(ctx, filters, scopeRegions, scopeSchemes)
}

// GetApplication fetches one application after a resource check.
func (s *Service) GetApplication(ctx context.Context, p *authz.Principal, id uuid.UUID) (*Application, error) {
	app, err := s.repo.GetApplication(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeApplication(ctx, p, app); err != nil {
		return nil, err
	}
	return app, nil
}

// StartReview moves a pending application into review.
func (s *Service) StartReview(ctx context.Context, p *authz.Principal, id uuid.UUID) (*Application, error) {
	app, err := s.repo.GetApplication(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeApplication(ctx, p, app); err != nil {
		return nil, err
	}
	if app.Status != StatusPending {
		return nil, fmt.Errorf("%w: cannot review %s application", ErrInvalidTransition, app.Status)
	}
	if err := s.repo.TransitionStatus(ctx, id, []ApplicationStatus{StatusPending}, StatusUnderReview, nil, nil); err != nil {
		return nil, err
	}
	app.Status = StatusUnderReview
	return app, nil
}

// Decide approves or rejects an application under review. Pending
// applications can be decided directly in small units that skip the
// review step.
func (s *Service) Decide(ctx context.Context, p *authz.Principal, id uuid.UUID, approve bool, note string) (*Application, error) {
	app, err := s.repo.GetApplication(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeApplication(ctx, p, app); err != nil {
		return nil, err
	}
	if app.Status != StatusPending && app.Status != StatusUnderReview {
		return nil, fmt.Errorf("%w: application already %s", ErrInvalidTransition, app.Status)
	}

	to := StatusRejected
	action := shared.ReviewReject
	if approve {
		to = StatusApproved
		action = shared.ReviewApprove
	}
	decidedAt := s.now()
	if err := s.repo.TransitionStatus(ctx, id, []ApplicationStatus{StatusPending, StatusUnderReview}, to, &p.ID, &decidedAt); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			// Row exists but the status moved under us.
			return nil, fmt.Errorf("%w: application already decided", ErrInvalidTransition)
		}
		return nil, err
	}

	app.Status = to
	app.DecidedBy = &p.ID
	app.DecidedAt = &decidedAt
	s.review(ctx, app.ID, p.ID, action, note)
	return app, nil
}

func (s *Service) authorizeApplication(ctx context.Context, p *authz.Principal, app *Application) error {
	var owner *int64
	if b, err := s.people.Get(ctx, app.BeneficiaryID); err == nil {
		owner = b.OwnerUserID
	}
	return s.authorize(ctx, p, app.RegionID, app.SchemeID, owner)
}

func (s *Service) authorize(ctx context.Context, p *authz.Principal, regionID, schemeID string, owner *int64) error {
	res := authz.Resource{RegionIDs: []string{regionID}, SchemeID: schemeID}
	if owner != nil {
		res.OwnerID = *owner
	}
	allowed, err := s.engine.CheckResourceAccess(ctx, p, res)
	if err != nil {
		return err
	}
	if !allowed {
		return fmt.Errorf("%w: application outside caller scope", httpx.ErrForbidden)
	}
	return nil
}

func (s *Service) review(ctx context.Context, ref uuid.UUID, actorID int64, action shared.ReviewAction, note string) {
	if s.reviews == nil {
		return
	}
	err := s.reviews.Record(ctx, shared.ReviewLog{
		Module:  "scheme_applications",
		RefID:   ref,
		ActorID: actorID,
		Action:  action,
		Note:    note,
	})
	if err != nil && s.logger != nil {
		s.logger.Warn("review trail write failed", slog.Any("error", err))
	}
}
