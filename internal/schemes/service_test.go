package schemes

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/sevatrack/sevatrack/internal/authz"
	"github.com/sevatrack/sevatrack/internal/beneficiaries"
	"github.com/sevatrack/sevatrack/internal/platform/httpx"
	"github.com/sevatrack/sevatrack/internal/shared"
	_ "github.com/sevatrack/sevatrack/testing"
)

type stubRepo struct {
	schemes      map[string]*Scheme
	applications map[uuid.UUID]*Application
	lastRegions  []string
	lastSchemes  []string
}

func newStubRepo() *stubRepo {
	return &stubRepo{schemes: map[string]*Scheme{}, applications: map[uuid.UUID]*Application{}}
}

func (s *stubRepo) ListSchemes(ctx context.Context) ([]Scheme, error) {
	var out []Scheme
	for _, sc := range s.schemes {
		out = append(out, *sc)
	}
	return out, nil
}

func (s *stubRepo) GetScheme(ctx context.Context, id string) (*Scheme, error) {
	sc, ok := s.schemes[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	copied := *sc
	return &copied, nil
}

func (s *stubRepo) ListApplications(ctx context.Context, filters ApplicationFilters, scopeRegions, scopeSchemes []string) ([]Application, error) {
	s.lastRegions = scopeRegions
	s.lastSchemes = scopeSchemes
	var out []Application
	for _, a := range s.applications {
		out = append(out, *a)
	}
	return out, nil
}

func (s *stubRepo) GetApplication(ctx context.Context, id uuid.UUID) (*Application, error) {
	a, ok := s.applications[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	copied := *a
	return &copied, nil
}

func (s *stubRepo) CreateApplication(ctx context.Context, a Application) error {
	copied := a
	s.applications[a.ID] = &copied
	return nil
}

func (s *stubRepo) TransitionStatus(ctx context.Context, id uuid.UUID, from []ApplicationStatus, to ApplicationStatus, decidedBy *int64, decidedAt *time.Time) error {
	a, ok := s.applications[id]
	if !ok {
		return shared.ErrNotFound
	}
	matched := false
	for _, f := range from {
		if a.Status == f {
			matched = true
		}
	}
	if !matched {
		return shared.ErrNotFound
	}
	a.Status = to
	if decidedBy != nil {
		a.DecidedBy = decidedBy
	}
	if decidedAt != nil {
		a.DecidedAt = decidedAt
	}
	return nil
}

type stubPeople map[int64]*beneficiaries.Beneficiary

func (s stubPeople) Get(ctx context.Context, id int64) (*beneficiaries.Beneficiary, error) {
	b, ok := s[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	copied := *b
	return &copied, nil
}

type captureReviews struct {
	logs []shared.ReviewLog
}

func (c *captureReviews) Record(ctx context.Context, log shared.ReviewLog) error {
	c.logs = append(c.logs, log)
	return nil
}

type fixedStore map[int64][]authz.RoleAssignment

func (s fixedStore) ActiveAssignments(ctx context.Context, principalID int64, now time.Time) ([]authz.RoleAssignment, error) {
	return s[principalID], nil
}

func newFixture(store authz.AssignmentStore) (*stubRepo, stubPeople, *captureReviews, *Service) {
	repo := newStubRepo()
	repo.schemes["midday-meals"] = &Scheme{ID: "midday-meals", Name: "Midday Meals", IsActive: true}
	repo.schemes["closed-scheme"] = &Scheme{ID: "closed-scheme", Name: "Closed", IsActive: false}

	owner := int64(77)
	people := stubPeople{
		5: &beneficiaries.Beneficiary{ID: 5, RegionID: "kerala/ernakulam", OwnerUserID: &owner, IsActive: true},
	}

	reviews := &captureReviews{}
	catalog := authz.DefaultCatalog()
	resolver := authz.NewResolver(store, catalog)
	engine := authz.NewEngine(resolver, catalog)
	svc := NewService(repo, people, engine, resolver, reviews, slog.Default())
	return repo, people, reviews, svc
}

func districtActor(regions ...string) (*authz.Principal, fixedStore) {
	p := &authz.Principal{ID: 10, Role: authz.RoleDistrictAdmin, IsActive: true}
	store := fixedStore{10: {{Role: authz.RoleDistrictAdmin, Active: true, Scope: authz.Scope{Regions: regions}}}}
	return p, store
}

func TestApplyRecordsSubmitTrail(t *testing.T) {
	actor, store := districtActor("kerala/ernakulam")
	repo, _, reviews, svc := newFixture(store)

	app, err := svc.Apply(context.Background(), actor, ApplyRequest{
		SchemeID:      "midday-meals",
		BeneficiaryID: 5,
		Note:          "needs support",
	})
	require.NoError(t, err)
	require.Equal(t, StatusPending, app.Status)
	require.Equal(t, "kerala/ernakulam", app.RegionID)
	require.Contains(t, repo.applications, app.ID)
	require.Len(t, reviews.logs, 1)
	require.Equal(t, shared.ReviewSubmit, reviews.logs[0].Action)
}

func TestApplyClosedSchemeRejected(t *testing.T) {
	actor, store := districtActor("kerala/ernakulam")
	_, _, _, svc := newFixture(store)

	_, err := svc.Apply(context.Background(), actor, ApplyRequest{
		SchemeID:      "closed-scheme",
		BeneficiaryID: 5,
	})
	require.Error(t, err)
}

func TestBeneficiaryAppliesForOwnRecord(t *testing.T) {
	_, _, _, svc := newFixture(fixedStore{})

	self := &authz.Principal{ID: 77, Role: authz.RoleBeneficiary, IsActive: true}
	app, err := svc.Apply(context.Background(), self, ApplyRequest{
		SchemeID:      "midday-meals",
		BeneficiaryID: 5,
	})
	require.NoError(t, err)
	require.Equal(t, int64(77), app.SubmittedBy)

	stranger := &authz.Principal{ID: 78, Role: authz.RoleBeneficiary, IsActive: true}
	_, err = svc.Apply(context.Background(), stranger, ApplyRequest{
		SchemeID:      "midday-meals",
		BeneficiaryID: 5,
	})
	require.ErrorIs(t, err, httpx.ErrForbidden)
}

func TestListApplicationsSchemeDimensionPermissive(t *testing.T) {
	actor, store := districtActor("kerala/ernakulam")
	repo, _, _, svc := newFixture(store)

	_, err := svc.ListApplications(context.Background(), actor, ApplicationFilters{})
	require.NoError(t, err)
	require.Equal(t, []string{"kerala/ernakulam"}, repo.lastRegions)
	// No scheme grants: the dimension stays open.
	require.Nil(t, repo.lastSchemes)
}

func TestListApplicationsSchemeGrantsRestrict(t *testing.T) {
	p := &authz.Principal{ID: 10, Role: authz.RoleDistrictAdmin, IsActive: true}
	store := fixedStore{10: {{
		Role:   authz.RoleDistrictAdmin,
		Active: true,
		Scope:  authz.Scope{Regions: []string{"kerala/ernakulam"}, Schemes: []string{"midday-meals"}},
	}}}
	repo, _, _, svc := newFixture(store)

	_, err := svc.ListApplications(context.Background(), p, ApplicationFilters{})
	require.NoError(t, err)
	require.Equal(t, []string{"midday-meals"}, repo.lastSchemes)
}

func TestDecisionWorkflow(t *testing.T) {
	actor, store := districtActor("kerala/ernakulam")
	repo, _, reviews, svc := newFixture(store)

	app, err := svc.Apply(context.Background(), actor, ApplyRequest{SchemeID: "midday-meals", BeneficiaryID: 5})
	require.NoError(t, err)

	reviewed, err := svc.StartReview(context.Background(), actor, app.ID)
	require.NoError(t, err)
	require.Equal(t, StatusUnderReview, reviewed.Status)

	decided, err := svc.Decide(context.Background(), actor, app.ID, true, "eligible")
	require.NoError(t, err)
	require.Equal(t, StatusApproved, decided.Status)
	require.Equal(t, &actor.ID, decided.DecidedBy)
	require.Equal(t, StatusApproved, repo.applications[app.ID].Status)

	// Submit, then approve.
	require.Len(t, reviews.logs, 2)
	require.Equal(t, shared.ReviewApprove, reviews.logs[1].Action)

	_, err = svc.Decide(context.Background(), actor, app.ID, false, "late")
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestDecideOutsideScopeForbidden(t *testing.T) {
	actor, store := districtActor("kerala/ernakulam")
	_, _, _, svc := newFixture(store)

	app, err := svc.Apply(context.Background(), actor, ApplyRequest{SchemeID: "midday-meals", BeneficiaryID: 5})
	require.NoError(t, err)

	outsider := &authz.Principal{ID: 11, Role: authz.RoleDistrictAdmin, IsActive: true}
	_, err = svc.Decide(context.Background(), outsider, app.ID, true, "")
	require.ErrorIs(t, err, httpx.ErrForbidden)
}
