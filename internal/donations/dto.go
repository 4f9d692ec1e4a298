package donations

// CreateDonorRequest registers a donor.
type CreateDonorRequest struct {
	RegionID string `json:"region_id" validate:"required,max=128"`
	Name     string `json:"name" validate:"required,max=200"`
	Phone    string `json:"phone" validate:"required,e164"`
	Email    string `json:"email" validate:"omitempty,email"`
	PAN      string `json:"pan" validate:"omitempty,len=10,alphanum"`
}

// UpdateDonorRequest edits donor contact fields.
type UpdateDonorRequest struct {
	Name  *string `json:"name" validate:"omitempty,max=200"`
	Email *string `json:"email" validate:"omitempty,email"`
	PAN   *string `json:"pan" validate:"omitempty,len=10,alphanum"`
}

// RecordDonationRequest records a received contribution.
type RecordDonationRequest struct {
	DonorID     int64   `json:"donor_id" validate:"required"`
	ProjectID   *string `json:"project_id" validate:"omitempty,max=128"`
	SchemeID    *string `json:"scheme_id" validate:"omitempty,max=128"`
	AmountPaise int64   `json:"amount_paise" validate:"required,gt=0"`
	Method      string  `json:"method" validate:"required,oneof=cash upi bank_transfer cheque"`
	Note        string  `json:"note" validate:"max=2000"`
}

// CreatePledgeRequest starts a recurring commitment.
type CreatePledgeRequest struct {
	DonorID      int64 `json:"donor_id" validate:"required"`
	AmountPaise  int64 `json:"amount_paise" validate:"required,gt=0"`
	IntervalDays int   `json:"interval_days" validate:"required,gte=7,lte=366"`
}
