package donations

import "time"

// Donor is a registered giver. Phone is the natural key used for
// deduplication across campaigns.
type Donor struct {
	ID        int64     `json:"id"`
	RegionID  string    `json:"region_id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	Email     string    `json:"email,omitempty"`
	PAN       string    `json:"pan,omitempty"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Donation is one received contribution. Amounts are stored in paise
// so arithmetic never touches floats.
type Donation struct {
	ID            int64     `json:"id"`
	DonorID       int64     `json:"donor_id"`
	RegionID      string    `json:"region_id"`
	ProjectID     *string   `json:"project_id,omitempty"`
	SchemeID      *string   `json:"scheme_id,omitempty"`
	AmountPaise   int64     `json:"amount_paise"`
	Method        string    `json:"method"`
	ReceiptNumber string    `json:"receipt_number"`
	Note          string    `json:"note,omitempty"`
	RecordedBy    int64     `json:"recorded_by"`
	ReceivedAt    time.Time `json:"received_at"`
	CreatedAt     time.Time `json:"created_at"`
}

// Pledge is a recurring giving commitment. NextDueAt drives the
// scheduled charge scan.
type Pledge struct {
	ID           int64     `json:"id"`
	DonorID      int64     `json:"donor_id"`
	RegionID     string    `json:"region_id"`
	AmountPaise  int64     `json:"amount_paise"`
	IntervalDays int       `json:"interval_days"`
	NextDueAt    time.Time `json:"next_due_at"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
