package donations

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/sevatrack/sevatrack/internal/authz"
	"github.com/sevatrack/sevatrack/internal/platform/httpx"
	"github.com/sevatrack/sevatrack/internal/shared"
)

const pledgeLockTTL = 5 * time.Minute

// RepositoryPort is the persistence surface the service needs.
type RepositoryPort interface {
	CreateDonor(ctx context.Context, d Donor) (int64, error)
	GetDonor(ctx context.Context, id int64) (*Donor, error)
	ListDonors(ctx context.Context, search string, scopeRegions []string, limit, offset int) ([]Donor, error)
	UpdateDonor(ctx context.Context, d *Donor) error
	InsertDonation(ctx context.Context, d Donation) (int64, error)
	GetDonation(ctx context.Context, id int64) (*Donation, error)
	ListDonations(ctx context.Context, donorID int64, scopeRegions []string, limit, offset int) ([]Donation, error)
	CreatePledge(ctx context.Context, p Pledge) (int64, error)
	GetPledge(ctx context.Context, id int64) (*Pledge, error)
	ListPledges(ctx context.Context, scopeRegions []string, limit, offset int) ([]Pledge, error)
	DuePledges(ctx context.Context, now time.Time, limit int) ([]Pledge, error)
	AdvancePledge(ctx context.Context, id int64, nextDue time.Time) error
	CancelPledge(ctx context.Context, id int64) error
}

// Idempotency guards duplicate donation submissions.
type Idempotency interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// ReceiptEnqueuer hands a recorded donation to the receipt mailer.
type ReceiptEnqueuer interface {
	EnqueueReceipt(ctx context.Context, donationID int64) error
}

// Service handles donor registration, donation recording and the
// recurring pledge lifecycle.
type Service struct {
	repo        RepositoryPort
	engine      *authz.Engine
	resolver    *authz.Resolver
	idempotency Idempotency
	receipts    ReceiptEnqueuer
	redis       *redis.Client
	logger      *slog.Logger
	now         func() time.Time
}

// ServiceConfig wires Service dependencies.
type ServiceConfig struct {
	Repo        RepositoryPort
	Engine      *authz.Engine
	Resolver    *authz.Resolver
	Idempotency Idempotency
	Receipts    ReceiptEnqueuer
	Redis       *redis.Client
	Logger      *slog.Logger
}

// NewService builds a Service instance.
func NewService(cfg ServiceConfig) *Service {
	return &Service{
		repo:        cfg.Repo,
		engine:      cfg.Engine,
		resolver:    cfg.Resolver,
		idempotency: cfg.Idempotency,
		receipts:    cfg.Receipts,
		redis:       cfg.Redis,
		logger:      cfg.Logger,
		now:         time.Now,
	}
}

// WithClock replaces the service's time source and returns the service.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// CreateDonor registers a donor in a region the principal may write.
func (s *Service) CreateDonor(ctx context.Context, p *authz.Principal, req CreateDonorRequest) (*Donor, error) {
	if err := s.authorize(ctx, p, req.RegionID, nil, nil); err != nil {
		return nil, err
	}
	id, err := s.repo.CreateDonor(ctx, Donor{
		RegionID: req.RegionID,
		Name:     req.Name,
		Phone:    req.Phone,
		Email:    req.Email,
		PAN:      req.PAN,
	})
	if err != nil {
		return nil, err
	}
	return s.repo.GetDonor(ctx, id)
}

// GetDonor fetches one donor after a resource check.
func (s *Service) GetDonor(ctx context.Context, p *authz.Principal, id int64) (*Donor, error) {
	d, err := s.repo.GetDonor(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, p, d.RegionID, nil, nil); err != nil {
		return nil, err
	}
	return d, nil
}

// ListDonors returns donors within the caller's regions.
func (s *Service) ListDonors(ctx context.Context, p *authz.Principal, search string, limit, offset int) ([]Donor, error) {
	scopeRegions, empty, err := s.scopeRegions(ctx, p)
	if err != nil || empty {
		return []Donor{}, err
	}
	limit, offset = clampPage(limit, offset)
	return s.repo.ListDonors(ctx, search, scopeRegions, limit, offset)
}

// UpdateDonor edits donor contact fields.
func (s *Service) UpdateDonor(ctx context.Context, p *authz.Principal, id int64, req UpdateDonorRequest) (*Donor, error) {
	d, err := s.repo.GetDonor(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, p, d.RegionID, nil, nil); err != nil {
		return nil, err
	}
	if req.Name != nil {
		d.Name = *req.Name
	}
	if req.Email != nil {
		d.Email = *req.Email
	}
	if req.PAN != nil {
		d.PAN = *req.PAN
	}
	if err := s.repo.UpdateDonor(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

// RecordDonation writes a contribution with an idempotency guard and
// queues the receipt email. The donation lands in the donor's region.
func (s *Service) RecordDonation(ctx context.Context, p *authz.Principal, req RecordDonationRequest, idempotencyKey string) (*Donation, error) {
	donor, err := s.repo.GetDonor(ctx, req.DonorID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, p, donor.RegionID, req.ProjectID, req.SchemeID); err != nil {
		return nil, err
	}

	if idempotencyKey != "" && s.idempotency != nil {
		if err := s.idempotency.CheckAndInsert(ctx, idempotencyKey, "donations"); err != nil {
			return nil, err
		}
	}

	donation := Donation{
		DonorID:       donor.ID,
		RegionID:      donor.RegionID,
		ProjectID:     req.ProjectID,
		SchemeID:      req.SchemeID,
		AmountPaise:   req.AmountPaise,
		Method:        req.Method,
		ReceiptNumber: uuid.NewString(),
		Note:          req.Note,
		RecordedBy:    p.ID,
		ReceivedAt:    s.now(),
	}
	id, err := s.repo.InsertDonation(ctx, donation)
	if err != nil {
		if idempotencyKey != "" && s.idempotency != nil {
			if delErr := s.idempotency.Delete(ctx, idempotencyKey); delErr != nil {
				s.logger.Warn("idempotency rollback failed", slog.Any("error", delErr))
			}
		}
		return nil, err
	}
	donation.ID = id

	s.enqueueReceipt(ctx, id)
	return &donation, nil
}

// ListDonations returns donations within the caller's regions.
func (s *Service) ListDonations(ctx context.Context, p *authz.Principal, donorID int64, limit, offset int) ([]Donation, error) {
	scopeRegions, empty, err := s.scopeRegions(ctx, p)
	if err != nil || empty {
		return []Donation{}, err
	}
	limit, offset = clampPage(limit, offset)
	return s.repo.ListDonations(ctx, donorID, scopeRegions, limit, offset)
}

// CreatePledge starts a recurring commitment for a donor.
func (s *Service) CreatePledge(ctx context.Context, p *authz.Principal, req CreatePledgeRequest) (*Pledge, error) {
	donor, err := s.repo.GetDonor(ctx, req.DonorID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, p, donor.RegionID, nil, nil); err != nil {
		return nil, err
	}

	pledge := Pledge{
		DonorID:      donor.ID,
		RegionID:     donor.RegionID,
		AmountPaise:  req.AmountPaise,
		IntervalDays: req.IntervalDays,
		NextDueAt:    s.now().AddDate(0, 0, req.IntervalDays),
		Active:       true,
	}
	id, err := s.repo.CreatePledge(ctx, pledge)
	if err != nil {
		return nil, err
	}
	pledge.ID = id
	return &pledge, nil
}

// ListPledges returns active pledges within the caller's regions.
func (s *Service) ListPledges(ctx context.Context, p *authz.Principal, limit, offset int) ([]Pledge, error) {
	scopeRegions, empty, err := s.scopeRegions(ctx, p)
	if err != nil || empty {
		return []Pledge{}, err
	}
	limit, offset = clampPage(limit, offset)
	return s.repo.ListPledges(ctx, scopeRegions, limit, offset)
}

// CancelPledge retires a recurring commitment.
func (s *Service) CancelPledge(ctx context.Context, p *authz.Principal, id int64) error {
	pledge, err := s.repo.GetPledge(ctx, id)
	if err != nil {
		return err
	}
	if err := s.authorize(ctx, p, pledge.RegionID, nil, nil); err != nil {
		return err
	}
	return s.repo.CancelPledge(ctx, id)
}

// RunDuePledges charges every pledge whose due date has passed. Each
// pledge is guarded by a short redis lock so overlapping scheduler
// runs never double-charge.
func (s *Service) RunDuePledges(ctx context.Context, batch int) (int, error) {
	now := s.now()
	due, err := s.repo.DuePledges(ctx, now, batch)
	if err != nil {
		return 0, err
	}

	charged := 0
	for _, pledge := range due {
		ok, err := s.acquirePledgeLock(ctx, pledge.ID)
		if err != nil {
			s.logger.Warn("pledge lock failed", slog.Int64("pledge_id", pledge.ID), slog.Any("error", err))
			continue
		}
		if !ok {
			continue
		}
		if err := s.chargePledge(ctx, pledge, now); err != nil {
			s.logger.Error("pledge charge failed", slog.Int64("pledge_id", pledge.ID), slog.Any("error", err))
			continue
		}
		charged++
	}
	return charged, nil
}

func (s *Service) chargePledge(ctx context.Context, pledge Pledge, now time.Time) error {
	id, err := s.repo.InsertDonation(ctx, Donation{
		DonorID:       pledge.DonorID,
		RegionID:      pledge.RegionID,
		AmountPaise:   pledge.AmountPaise,
		Method:        "pledge",
		ReceiptNumber: uuid.NewString(),
		Note:          fmt.Sprintf("recurring pledge %d", pledge.ID),
		ReceivedAt:    now,
	})
	if err != nil {
		return err
	}

	next := pledge.NextDueAt
	for !next.After(now) {
		next = next.AddDate(0, 0, pledge.IntervalDays)
	}
	if err := s.repo.AdvancePledge(ctx, pledge.ID, next); err != nil {
		return err
	}
	s.enqueueReceipt(ctx, id)
	return nil
}

func (s *Service) acquirePledgeLock(ctx context.Context, pledgeID int64) (bool, error) {
	if s.redis == nil {
		return true, nil
	}
	return s.redis.SetNX(ctx, shared.PledgeLockKey(pledgeID), "1", pledgeLockTTL).Result()
}

func (s *Service) enqueueReceipt(ctx context.Context, donationID int64) {
	if s.receipts == nil {
		return
	}
	if err := s.receipts.EnqueueReceipt(ctx, donationID); err != nil {
		s.logger.Warn("receipt enqueue failed", slog.Int64("donation_id", donationID), slog.Any("error", err))
	}
}

func (s *Service) scopeRegions(ctx context.Context, p *authz.Principal) ([]string, bool, error) {
	scope, err := s.resolver.EffectiveScope(ctx, p, s.now())
	if err != nil {
		return nil, false, err
	}
	if scope.Unrestricted() {
		return nil, false, nil
	}
	regions := scope.RegionIDs()
	if len(regions) == 0 {
		return nil, true, nil
	}
	return regions, false, nil
}

func (s *Service) authorize(ctx context.Context, p *authz.Principal, regionID string, projectID, schemeID *string) error {
	res := authz.Resource{RegionIDs: []string{regionID}}
	if projectID != nil {
		res.ProjectID = *projectID
	}
	if schemeID != nil {
		res.SchemeID = *schemeID
	}
	allowed, err := s.engine.CheckResourceAccess(ctx, p, res)
	if err != nil {
		return err
	}
	if !allowed {
		return fmt.Errorf("%w: donor outside caller scope", httpx.ErrForbidden)
	}
	return nil
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
