package jobs

import (
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sevatrack/sevatrack/internal/donations"
	"github.com/sevatrack/sevatrack/internal/shared"
	_ "github.com/sevatrack/sevatrack/testing"
)

type stubReceiptRepo struct {
	donation *donations.Donation
	donor    *donations.Donor
}

func (s *stubReceiptRepo) GetDonation(ctx context.Context, id int64) (*donations.Donation, error) {
	if s.donation == nil || s.donation.ID != id {
		return nil, shared.ErrNotFound
	}
	return s.donation, nil
}

func (s *stubReceiptRepo) GetDonor(ctx context.Context, id int64) (*donations.Donor, error) {
	if s.donor == nil || s.donor.ID != id {
		return nil, shared.ErrNotFound
	}
	return s.donor, nil
}

type captureMailer struct {
	to      string
	subject string
	body    string
	sent    int
}

func (c *captureMailer) Send(to, subject, body string) error {
	c.to, c.subject, c.body = to, subject, body
	c.sent++
	return nil
}

func TestReceiptJobSendsFormattedAmount(t *testing.T) {
	repo := &stubReceiptRepo{
		donation: &donations.Donation{
			ID:            9,
			DonorID:       3,
			AmountPaise:   125000000,
			ReceiptNumber: "f3a1c2d4",
			ReceivedAt:    time.Date(2026, 4, 12, 10, 0, 0, 0, time.UTC),
		},
		donor: &donations.Donor{ID: 3, Name: "Ravi", Email: "ravi@example.org"},
	}
	mailer := &captureMailer{}
	job := NewReceiptJob(repo, mailer, slog.Default())

	task, err := NewDonationReceiptTask(DonationReceiptPayload{DonationID: 9})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))

	require.Equal(t, 1, mailer.sent)
	require.Equal(t, "ravi@example.org", mailer.to)
	require.True(t, strings.Contains(mailer.body, "₹12,50,000.00"))
	require.True(t, strings.Contains(mailer.body, "f3a1c2d4"))
}

func TestReceiptJobSkipsDonorWithoutEmail(t *testing.T) {
	repo := &stubReceiptRepo{
		donation: &donations.Donation{ID: 9, DonorID: 3, AmountPaise: 1000, ReceivedAt: time.Now()},
		donor:    &donations.Donor{ID: 3, Name: "Ravi"},
	}
	mailer := &captureMailer{}
	job := NewReceiptJob(repo, mailer, slog.Default())

	task, err := NewDonationReceiptTask(DonationReceiptPayload{DonationID: 9})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, 0, mailer.sent)
}
