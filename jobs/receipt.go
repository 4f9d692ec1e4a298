package jobs

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/sevatrack/sevatrack/internal/donations"
)

// ReceiptRepository loads the records a receipt needs.
type ReceiptRepository interface {
	GetDonation(ctx context.Context, id int64) (*donations.Donation, error)
	GetDonor(ctx context.Context, id int64) (*donations.Donor, error)
}

// ReceiptJob emails donation receipts.
type ReceiptJob struct {
	repo   ReceiptRepository
	mailer Mailer
	logger *slog.Logger
}

// NewReceiptJob constructs ReceiptJob.
func NewReceiptJob(repo ReceiptRepository, mailer Mailer, logger *slog.Logger) *ReceiptJob {
	return &ReceiptJob{repo: repo, mailer: mailer, logger: logger}
}

// Handle processes TaskTypeDonationReceipt tasks.
func (j *ReceiptJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload DonationReceiptPayload
	if err := decodePayload(t, &payload); err != nil {
		return err
	}

	donation, err := j.repo.GetDonation(ctx, payload.DonationID)
	if err != nil {
		return fmt.Errorf("jobs: load donation %d: %w", payload.DonationID, err)
	}
	donor, err := j.repo.GetDonor(ctx, donation.DonorID)
	if err != nil {
		return fmt.Errorf("jobs: load donor %d: %w", donation.DonorID, err)
	}
	if donor.Email == "" {
		j.logger.Info("donor has no email, skipping receipt",
			slog.Int64("donation_id", donation.ID), slog.Int64("donor_id", donor.ID))
		return nil
	}

	body := fmt.Sprintf(
		"Dear %s,\n\nThank you for your contribution of %s received on %s.\nReceipt number: %s\n\nWith gratitude,\nSevaTrack",
		donor.Name,
		donations.FormatINR(donation.AmountPaise),
		donation.ReceivedAt.Format("02 Jan 2006"),
		donation.ReceiptNumber,
	)
	if err := j.mailer.Send(donor.Email, "Donation receipt "+donation.ReceiptNumber, body); err != nil {
		return err
	}
	j.logger.Info("receipt sent", slog.Int64("donation_id", donation.ID))
	return nil
}
