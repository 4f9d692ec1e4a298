package donations

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/sevatrack/sevatrack/internal/authz"
	"github.com/sevatrack/sevatrack/internal/platform/httpx"
	"github.com/sevatrack/sevatrack/internal/shared"
	_ "github.com/sevatrack/sevatrack/testing"
)

type stubRepo struct {
	donors    map[int64]*Donor
	donations map[int64]*Donation
	pledges   map[int64]*Pledge
	nextID    int64
}

func newStubRepo() *stubRepo {
	return &stubRepo{
		donors:    map[int64]*Donor{},
		donations: map[int64]*Donation{},
		pledges:   map[int64]*Pledge{},
		nextID:    1,
	}
}

func (s *stubRepo) id() int64 {
	id := s.nextID
	s.nextID++
	return id
}

func (s *stubRepo) CreateDonor(ctx context.Context, d Donor) (int64, error) {
	for _, existing := range s.donors {
		if existing.Phone == d.Phone {
			return 0, httpx.ErrDuplicate
		}
	}
	d.ID = s.id()
	d.IsActive = true
	s.donors[d.ID] = &d
	return d.ID, nil
}

func (s *stubRepo) GetDonor(ctx context.Context, id int64) (*Donor, error) {
	d, ok := s.donors[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	copied := *d
	return &copied, nil
}

func (s *stubRepo) ListDonors(ctx context.Context, search string, scopeRegions []string, limit, offset int) ([]Donor, error) {
	var out []Donor
	for _, d := range s.donors {
		if scopeRegions != nil && !containsID(scopeRegions, d.RegionID) {
			continue
		}
		out = append(out, *d)
	}
	return out, nil
}

func (s *stubRepo) UpdateDonor(ctx context.Context, d *Donor) error {
	if _, ok := s.donors[d.ID]; !ok {
		return shared.ErrNotFound
	}
	copied := *d
	s.donors[d.ID] = &copied
	return nil
}

func (s *stubRepo) InsertDonation(ctx context.Context, d Donation) (int64, error) {
	d.ID = s.id()
	s.donations[d.ID] = &d
	return d.ID, nil
}

func (s *stubRepo) GetDonation(ctx context.Context, id int64) (*Donation, error) {
	d, ok := s.donations[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	copied := *d
	return &copied, nil
}

func (s *stubRepo) ListDonations(ctx context.Context, donorID int64, scopeRegions []string, limit, offset int) ([]Donation, error) {
	var out []Donation
	for _, d := range s.donations {
		if donorID != 0 && d.DonorID != donorID {
			continue
		}
		if scopeRegions != nil && !containsID(scopeRegions, d.RegionID) {
			continue
		}
		out = append(out, *d)
	}
	return out, nil
}

func (s *stubRepo) CreatePledge(ctx context.Context, p Pledge) (int64, error) {
	p.ID = s.id()
	s.pledges[p.ID] = &p
	return p.ID, nil
}

func (s *stubRepo) GetPledge(ctx context.Context, id int64) (*Pledge, error) {
	p, ok := s.pledges[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	copied := *p
	return &copied, nil
}

func (s *stubRepo) ListPledges(ctx context.Context, scopeRegions []string, limit, offset int) ([]Pledge, error) {
	var out []Pledge
	for _, p := range s.pledges {
		if !p.Active {
			continue
		}
		out = append(out, *p)
	}
	return out, nil
}

func (s *stubRepo) DuePledges(ctx context.Context, now time.Time, limit int) ([]Pledge, error) {
	var out []Pledge
	for _, p := range s.pledges {
		if p.Active && !p.NextDueAt.After(now) {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (s *stubRepo) AdvancePledge(ctx context.Context, id int64, nextDue time.Time) error {
	p, ok := s.pledges[id]
	if !ok || !p.Active {
		return shared.ErrNotFound
	}
	p.NextDueAt = nextDue
	return nil
}

func (s *stubRepo) CancelPledge(ctx context.Context, id int64) error {
	p, ok := s.pledges[id]
	if !ok || !p.Active {
		return shared.ErrNotFound
	}
	p.Active = false
	return nil
}

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

type memIdempotency map[string]struct{}

func (m memIdempotency) CheckAndInsert(ctx context.Context, key, module string) error {
	if _, ok := m[key]; ok {
		return shared.ErrIdempotencyConflict
	}
	m[key] = struct{}{}
	return nil
}

func (m memIdempotency) Delete(ctx context.Context, key string) error {
	delete(m, key)
	return nil
}

type captureReceipts struct {
	donationIDs []int64
}

func (c *captureReceipts) EnqueueReceipt(ctx context.Context, donationID int64) error {
	c.donationIDs = append(c.donationIDs, donationID)
	return nil
}

type fixedStore map[int64][]authz.RoleAssignment

func (s fixedStore) ActiveAssignments(ctx context.Context, principalID int64, now time.Time) ([]authz.RoleAssignment, error) {
	return s[principalID], nil
}

type fixture struct {
	repo     *stubRepo
	receipts *captureReceipts
	svc      *Service
}

func newFixture(t *testing.T, store authz.AssignmentStore) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	repo := newStubRepo()
	receipts := &captureReceipts{}
	catalog := authz.DefaultCatalog()
	resolver := authz.NewResolver(store, catalog)
	engine := authz.NewEngine(resolver, catalog)
	svc := NewService(ServiceConfig{
		Repo:        repo,
		Engine:      engine,
		Resolver:    resolver,
		Idempotency: memIdempotency{},
		Receipts:    receipts,
		Redis:       client,
		Logger:      slog.Default(),
	})
	return &fixture{repo: repo, receipts: receipts, svc: svc}
}

func districtActor(regions ...string) (*authz.Principal, fixedStore) {
	p := &authz.Principal{ID: 10, Role: authz.RoleDistrictAdmin, IsActive: true}
	store := fixedStore{10: {{Role: authz.RoleDistrictAdmin, Active: true, Scope: authz.Scope{Regions: regions}}}}
	return p, store
}

func TestCreateDonorDuplicatePhone(t *testing.T) {
	actor, store := districtActor("kerala/ernakulam")
	f := newFixture(t, store)

	_, err := f.svc.CreateDonor(context.Background(), actor, CreateDonorRequest{
		RegionID: "kerala/ernakulam", Name: "Ravi", Phone: "+919800000001",
	})
	require.NoError(t, err)

	_, err = f.svc.CreateDonor(context.Background(), actor, CreateDonorRequest{
		RegionID: "kerala/ernakulam", Name: "Ravi K", Phone: "+919800000001",
	})
	require.ErrorIs(t, err, httpx.ErrDuplicate)
}

func TestCreateDonorOutsideScope(t *testing.T) {
	actor, store := districtActor("kerala/ernakulam")
	f := newFixture(t, store)

	_, err := f.svc.CreateDonor(context.Background(), actor, CreateDonorRequest{
		RegionID: "tamilnadu/chennai", Name: "Ravi", Phone: "+919800000001",
	})
	require.ErrorIs(t, err, httpx.ErrForbidden)
}

func TestRecordDonationIdempotent(t *testing.T) {
	actor, store := districtActor("kerala/ernakulam")
	f := newFixture(t, store)

	donor, err := f.svc.CreateDonor(context.Background(), actor, CreateDonorRequest{
		RegionID: "kerala/ernakulam", Name: "Ravi", Phone: "+919800000001",
	})
	require.NoError(t, err)

	req := RecordDonationRequest{DonorID: donor.ID, AmountPaise: 500000, Method: "upi"}
	donation, err := f.svc.RecordDonation(context.Background(), actor, req, "key-1")
	require.NoError(t, err)
	require.NotEmpty(t, donation.ReceiptNumber)
	require.Equal(t, "kerala/ernakulam", donation.RegionID)
	require.Equal(t, []int64{donation.ID}, f.receipts.donationIDs)

	_, err = f.svc.RecordDonation(context.Background(), actor, req, "key-1")
	require.ErrorIs(t, err, shared.ErrIdempotencyConflict)
}

func TestRecordDonationSchemeScopeAllows(t *testing.T) {
	// District admin with only a region grant: scheme dimension stays
	// open, so a scheme-tagged donation passes.
	actor, store := districtActor("kerala/ernakulam")
	f := newFixture(t, store)

	donor, err := f.svc.CreateDonor(context.Background(), actor, CreateDonorRequest{
		RegionID: "kerala/ernakulam", Name: "Ravi", Phone: "+919800000001",
	})
	require.NoError(t, err)

	scheme := "midday-meals"
	_, err = f.svc.RecordDonation(context.Background(), actor, RecordDonationRequest{
		DonorID: donor.ID, AmountPaise: 100000, Method: "cash", SchemeID: &scheme,
	}, "")
	require.NoError(t, err)
}

func TestPledgeChargeAdvancesDueDate(t *testing.T) {
	actor, store := districtActor("kerala/ernakulam")
	f := newFixture(t, store)

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	f.svc.WithClock(func() time.Time { return base })

	donor, err := f.svc.CreateDonor(context.Background(), actor, CreateDonorRequest{
		RegionID: "kerala/ernakulam", Name: "Ravi", Phone: "+919800000001",
	})
	require.NoError(t, err)

	pledge, err := f.svc.CreatePledge(context.Background(), actor, CreatePledgeRequest{
		DonorID: donor.ID, AmountPaise: 250000, IntervalDays: 30,
	})
	require.NoError(t, err)
	require.Equal(t, base.AddDate(0, 0, 30), pledge.NextDueAt)

	// Jump past two intervals: a single run charges once and lands the
	// next due date in the future.
	f.svc.WithClock(func() time.Time { return base.AddDate(0, 0, 65) })
	charged, err := f.svc.RunDuePledges(context.Background(), 100)
	require.NoError(t, err)
	require.Equal(t, 1, charged)
	require.Len(t, f.repo.donations, 1)
	require.True(t, f.repo.pledges[pledge.ID].NextDueAt.After(base.AddDate(0, 0, 65)))

	// Immediate second run finds nothing due.
	charged, err = f.svc.RunDuePledges(context.Background(), 100)
	require.NoError(t, err)
	require.Equal(t, 0, charged)
}

func TestPledgeLockPreventsDoubleCharge(t *testing.T) {
	actor, store := districtActor("kerala/ernakulam")
	f := newFixture(t, store)

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	f.svc.WithClock(func() time.Time { return base })

	donor, err := f.svc.CreateDonor(context.Background(), actor, CreateDonorRequest{
		RegionID: "kerala/ernakulam", Name: "Ravi", Phone: "+919800000001",
	})
	require.NoError(t, err)

	pledge, err := f.svc.CreatePledge(context.Background(), actor, CreatePledgeRequest{
		DonorID: donor.ID, AmountPaise: 250000, IntervalDays: 30,
	})
	require.NoError(t, err)

	// Simulate a concurrent runner holding the lock.
	held, err := f.svc.acquirePledgeLock(context.Background(), pledge.ID)
	require.NoError(t, err)
	require.True(t, held)

	f.svc.WithClock(func() time.Time { return base.AddDate(0, 0, 31) })
	charged, err := f.svc.RunDuePledges(context.Background(), 100)
	require.NoError(t, err)
	require.Equal(t, 0, charged)
	require.Empty(t, f.repo.donations)
}

func TestCancelPledge(t *testing.T) {
	actor, store := districtActor("kerala/ernakulam")
	f := newFixture(t, store)

	donor, err := f.svc.CreateDonor(context.Background(), actor, CreateDonorRequest{
		RegionID: "kerala/ernakulam", Name: "Ravi", Phone: "+919800000001",
	})
	require.NoError(t, err)

	pledge, err := f.svc.CreatePledge(context.Background(), actor, CreatePledgeRequest{
		DonorID: donor.ID, AmountPaise: 250000, IntervalDays: 30,
	})
	require.NoError(t, err)

	require.NoError(t, f.svc.CancelPledge(context.Background(), actor, pledge.ID))
	require.False(t, f.repo.pledges[pledge.ID].Active)

	charged, err := f.svc.RunDuePledges(context.Background(), 100)
	require.NoError(t, err)
	require.Equal(t, 0, charged)
}
