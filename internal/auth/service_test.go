package auth_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/sevatrack/sevatrack/internal/auth"
	"github.com/sevatrack/sevatrack/internal/authz"
	"github.com/sevatrack/sevatrack/internal/shared"
	_ "github.com/sevatrack/sevatrack/testing"
)

type stubRepo struct {
	user *auth.User
}

func (s *stubRepo) FindByPhone(ctx context.Context, phone string) (*auth.User, error) {
	if s.user == nil || s.user.Phone != phone {
		return nil, shared.ErrNotFound
	}
	return s.user, nil
}

func (s *stubRepo) CreateSession(ctx context.Context, id string, userID int64, expiresAt time.Time, ip, ua string) error {
	return nil
}

func (s *stubRepo) DeleteSession(ctx context.Context, id string) error {
	return nil
}

type captureSender struct {
	code string
}

func (c *captureSender) SendOTP(ctx context.Context, phone, code string) error {
	c.code = code
	return nil
}

func newOTPService(t *testing.T, repo auth.Repository, sender auth.Sender) (*auth.Service, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	service := auth.NewService(auth.ServiceConfig{
		Repo:          repo,
		Redis:         client,
		Limiter:       authz.NewMemoryLimiter(),
		Sender:        sender,
		OTPTTL:        5 * time.Minute,
		AttemptWindow: 15 * time.Minute,
		MaxAttempts:   5,
	})
	return service, mr
}

func TestOTPRoundTrip(t *testing.T) {
	user := &auth.User{ID: 7, Name: "Asha Worker", Phone: "+919876543210", Role: "unit_admin", IsActive: true}
	sender := &captureSender{}
	service, _ := newOTPService(t, &stubRepo{user: user}, sender)
	ctx := context.Background()

	if err := service.RequestOTP(ctx, user.Phone, "10.0.0.1"); err != nil {
		t.Fatalf("RequestOTP: %v", err)
	}
	if len(sender.code) != 6 {
		t.Fatalf("expected six digit code, got %q", sender.code)
	}

	got, err := service.VerifyOTP(ctx, user.Phone, sender.code, "10.0.0.1")
	if err != nil {
		t.Fatalf("VerifyOTP: %v", err)
	}
	if got.ID != user.ID {
		t.Fatalf("expected user %d, got %d", user.ID, got.ID)
	}

	// Codes are single use.
	if _, err := service.VerifyOTP(ctx, user.Phone, sender.code, "10.0.0.1"); !errors.Is(err, shared.ErrInvalidOTP) {
		t.Fatalf("expected ErrInvalidOTP on reuse, got %v", err)
	}
}

func TestOTPWrongCodeRejected(t *testing.T) {
	user := &auth.User{ID: 7, Phone: "+919876543210", Role: "unit_admin", IsActive: true}
	sender := &captureSender{}
	service, _ := newOTPService(t, &stubRepo{user: user}, sender)
	ctx := context.Background()

	if err := service.RequestOTP(ctx, user.Phone, "10.0.0.1"); err != nil {
		t.Fatalf("RequestOTP: %v", err)
	}
	if _, err := service.VerifyOTP(ctx, user.Phone, "000000", "10.0.0.1"); !errors.Is(err, shared.ErrInvalidOTP) {
		t.Fatalf("expected ErrInvalidOTP, got %v", err)
	}
}

func TestOTPUnknownPhoneDoesNotLeak(t *testing.T) {
	sender := &captureSender{}
	service, _ := newOTPService(t, &stubRepo{}, sender)

	// Unknown phones get the same nil response, no code dispatched.
	if err := service.RequestOTP(context.Background(), "+919999999999", "10.0.0.1"); err != nil {
		t.Fatalf("RequestOTP: %v", err)
	}
	if sender.code != "" {
		t.Fatal("no code should be dispatched for unknown phone")
	}
}

func TestOTPExpires(t *testing.T) {
	user := &auth.User{ID: 7, Phone: "+919876543210", Role: "unit_admin", IsActive: true}
	sender := &captureSender{}
	service, mr := newOTPService(t, &stubRepo{user: user}, sender)
	ctx := context.Background()

	if err := service.RequestOTP(ctx, user.Phone, "10.0.0.1"); err != nil {
		t.Fatalf("RequestOTP: %v", err)
	}
	mr.FastForward(6 * time.Minute)

	if _, err := service.VerifyOTP(ctx, user.Phone, sender.code, "10.0.0.1"); !errors.Is(err, shared.ErrInvalidOTP) {
		t.Fatalf("expected expired code rejection, got %v", err)
	}
}

func TestOTPVerifyThrottled(t *testing.T) {
	user := &auth.User{ID: 7, Phone: "+919876543210", Role: "unit_admin", IsActive: true}
	service, _ := newOTPService(t, &stubRepo{user: user}, &captureSender{})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, _ = service.VerifyOTP(ctx, user.Phone, "000000", "10.0.0.9")
	}
	_, err := service.VerifyOTP(ctx, user.Phone, "000000", "10.0.0.9")
	if !errors.Is(err, shared.ErrTooManyAttempts) {
		t.Fatalf("expected throttling after repeated failures, got %v", err)
	}
	var limited *auth.RateLimitedError
	if !errors.As(err, &limited) || limited.RetryAfter <= 0 {
		t.Fatalf("expected positive retry-after, got %v", err)
	}
}

func TestInactiveAccountCannotLogin(t *testing.T) {
	user := &auth.User{ID: 7, Phone: "+919876543210", Role: "unit_admin", IsActive: false}
	sender := &captureSender{}
	service, _ := newOTPService(t, &stubRepo{user: user}, sender)
	ctx := context.Background()

	if err := service.RequestOTP(ctx, user.Phone, "10.0.0.1"); err != nil {
		t.Fatalf("RequestOTP: %v", err)
	}
	if sender.code != "" {
		t.Fatal("inactive accounts must not receive codes")
	}
}
