package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"

	// TaskTypeSendOTP delivers a login code to a phone.
	TaskTypeSendOTP = "otp:send"
	// TaskTypeDonationReceipt emails a receipt for a recorded donation.
	TaskTypeDonationReceipt = "donation:receipt"
	// TaskTypePledgeRun charges recurring pledges that have come due.
	TaskTypePledgeRun = "donation:pledge_run"
	// TaskTypeAssignmentSweep flips the active flag on assignments whose
	// validity window has closed. Bookkeeping only: expired assignments
	// are already invisible to permission resolution.
	TaskTypeAssignmentSweep = "authz:assignment_sweep"
	// TaskTypeIdempotencyCleanup prunes idempotency keys past retention.
	TaskTypeIdempotencyCleanup = "shared:idempotency_cleanup"
)

// SendOTPPayload carries a login code to the SMS gateway.
type SendOTPPayload struct {
	Phone string `json:"phone"`
	Code  string `json:"code"`
}

// NewSendOTPTask constructs an Asynq task.
func NewSendOTPTask(payload SendOTPPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSendOTP, data), nil
}

// DonationReceiptPayload identifies the donation to receipt.
type DonationReceiptPayload struct {
	DonationID int64 `json:"donation_id"`
}

// NewDonationReceiptTask constructs an Asynq task.
func NewDonationReceiptTask(payload DonationReceiptPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeDonationReceipt, data), nil
}

// PledgeRunPayload bounds one pledge charge sweep.
type PledgeRunPayload struct {
	Batch int `json:"batch"`
}

// NewPledgeRunTask constructs an Asynq task.
func NewPledgeRunTask(payload PledgeRunPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypePledgeRun, data), nil
}

// NewAssignmentSweepTask constructs an Asynq task.
func NewAssignmentSweepTask() (*asynq.Task, error) {
	return asynq.NewTask(TaskTypeAssignmentSweep, nil), nil
}

// NewIdempotencyCleanupTask constructs an Asynq task.
func NewIdempotencyCleanupTask() (*asynq.Task, error) {
	return asynq.NewTask(TaskTypeIdempotencyCleanup, nil), nil
}

func decodePayload(t *asynq.Task, target any) error {
	if err := json.Unmarshal(t.Payload(), target); err != nil {
		return asynq.SkipRetry
	}
	return nil
}
