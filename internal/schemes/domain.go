package schemes

import (
	"time"

	"github.com/google/uuid"
)

// Scheme is a welfare programme beneficiaries can apply to. IDs are
// stable slugs so they can appear directly in assignment scope rows.
type Scheme struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ApplicationStatus enumerates the application workflow states.
type ApplicationStatus string

const (
	StatusPending     ApplicationStatus = "pending"
	StatusUnderReview ApplicationStatus = "under_review"
	StatusApproved    ApplicationStatus = "approved"
	StatusRejected    ApplicationStatus = "rejected"
)

// Application is one beneficiary's request to join a scheme. RegionID
// is denormalised from the beneficiary at submit time so scope checks
// never need a join.
type Application struct {
	ID            uuid.UUID         `json:"id"`
	SchemeID      string            `json:"scheme_id"`
	BeneficiaryID int64             `json:"beneficiary_id"`
	RegionID      string            `json:"region_id"`
	Status        ApplicationStatus `json:"status"`
	Note          string            `json:"note,omitempty"`
	SubmittedBy   int64             `json:"submitted_by"`
	DecidedBy     *int64            `json:"decided_by,omitempty"`
	DecidedAt     *time.Time        `json:"decided_at,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}
