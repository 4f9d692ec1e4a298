package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/sevatrack/sevatrack/internal/authz"
	"github.com/sevatrack/sevatrack/internal/shared"
)

const otpDigits = 6

// RateLimitedError reports that the attempt limiter rejected the
// operation, with the interval the client should wait before retrying.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
}

// Unwrap lets errors.Is match shared.ErrTooManyAttempts.
func (e *RateLimitedError) Unwrap() error { return shared.ErrTooManyAttempts }

// Sender delivers an OTP code out of band, typically over SMS through
// the background worker.
type Sender interface {
	SendOTP(ctx context.Context, phone, code string) error
}

// Service wraps the OTP login flow. OTP codes are stored bcrypt-hashed
// in Redis with a short TTL; both requesting and verifying a code run
// through the attempt limiter keyed by source address plus phone, and a
// limiter failure counts as a rejection.
type Service struct {
	repo    Repository
	redis   *redis.Client
	limiter authz.AttemptLimiter
	sender  Sender
	logger  *slog.Logger

	otpTTL        time.Duration
	attemptWindow time.Duration
	maxAttempts   int
}

// ServiceConfig collects the dependencies for NewService.
type ServiceConfig struct {
	Repo          Repository
	Redis         *redis.Client
	Limiter       authz.AttemptLimiter
	Sender        Sender
	Logger        *slog.Logger
	OTPTTL        time.Duration
	AttemptWindow time.Duration
	MaxAttempts   int
}

// NewService constructs a new Service.
func NewService(cfg ServiceConfig) *Service {
	if cfg.OTPTTL <= 0 {
		cfg.OTPTTL = 5 * time.Minute
	}
	if cfg.AttemptWindow <= 0 {
		cfg.AttemptWindow = 15 * time.Minute
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	return &Service{
		repo:          cfg.Repo,
		redis:         cfg.Redis,
		limiter:       cfg.Limiter,
		sender:        cfg.Sender,
		logger:        cfg.Logger,
		otpTTL:        cfg.OTPTTL,
		attemptWindow: cfg.AttemptWindow,
		maxAttempts:   cfg.MaxAttempts,
	}
}

// RequestOTP issues a login code for the phone number. The response is
// identical whether or not an account exists, so the endpoint cannot be
// used to enumerate phone numbers.
func (s *Service) RequestOTP(ctx context.Context, phone, ip string) error {
	if err := s.throttle(ctx, "otp_request:"+ip+":"+phone); err != nil {
		return err
	}

	user, err := s.repo.FindByPhone(ctx, phone)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			s.logf("otp requested for unknown phone", slog.String("phone", phone))
			return nil
		}
		return err
	}
	if !user.IsActive {
		s.logf("otp requested for inactive account", slog.Int64("user", user.ID))
		return nil
	}

	code, err := generateCode()
	if err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, otpKey(phone), hash, s.otpTTL).Err(); err != nil {
		return fmt.Errorf("auth: store otp: %w", err)
	}

	if s.sender != nil {
		if err := s.sender.SendOTP(ctx, phone, code); err != nil {
			s.logf("otp dispatch failed", slog.Any("error", err))
		}
	}
	return nil
}

// VerifyOTP checks the submitted code and returns the account it
// unlocks. A matched code is single use.
func (s *Service) VerifyOTP(ctx context.Context, phone, code, ip string) (*User, error) {
	if err := s.throttle(ctx, "otp_verify:"+ip+":"+phone); err != nil {
		return nil, err
	}

	hash, err := s.redis.Get(ctx, otpKey(phone)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, shared.ErrInvalidOTP
		}
		return nil, fmt.Errorf("auth: load otp: %w", err)
	}
	if bcrypt.CompareHashAndPassword(hash, []byte(code)) != nil {
		return nil, shared.ErrInvalidOTP
	}

	user, err := s.repo.FindByPhone(ctx, phone)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.ErrInvalidOTP
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, shared.ErrInvalidOTP
	}

	if err := s.redis.Del(ctx, otpKey(phone)).Err(); err != nil {
		s.logf("otp cleanup failed", slog.Any("error", err))
	}
	return user, nil
}

// RegisterSession persists the session metadata in postgres.
func (s *Service) RegisterSession(ctx context.Context, id string, userID int64, expiresAt time.Time, ip, ua string) error {
	return s.repo.CreateSession(ctx, id, userID, expiresAt, ip, ua)
}

// RemoveSession deletes a session record from postgres.
func (s *Service) RemoveSession(ctx context.Context, id string) error {
	return s.repo.DeleteSession(ctx, id)
}

// throttle runs the attempt limiter and fails closed on limiter errors.
func (s *Service) throttle(ctx context.Context, key string) error {
	attempt, err := s.limiter.Record(ctx, key, s.attemptWindow, s.maxAttempts)
	if err != nil {
		s.logf("attempt limiter unavailable, failing closed", slog.Any("error", err))
		return &RateLimitedError{RetryAfter: s.attemptWindow}
	}
	if !attempt.Allowed {
		return &RateLimitedError{RetryAfter: attempt.RetryAfter}
	}
	return nil
}

func (s *Service) logf(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Warn(msg, args...)
	}
}

func otpKey(phone string) string {
	return "otp:" + phone
}

func generateCode() (string, error) {
	max := big.NewInt(1)
	for i := 0; i < otpDigits; i++ {
		max.Mul(max, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", otpDigits, n), nil
}
