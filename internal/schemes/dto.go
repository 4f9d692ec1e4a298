package schemes

// ApplyRequest submits a scheme application.
type ApplyRequest struct {
	SchemeID      string `json:"scheme_id" validate:"required,max=128"`
	BeneficiaryID int64  `json:"beneficiary_id" validate:"required"`
	Note          string `json:"note" validate:"max=2000"`
}

// DecisionRequest carries the reviewer note for approve/reject.
type DecisionRequest struct {
	Note string `json:"note" validate:"max=2000"`
}

// ApplicationFilters narrows an application listing.
type ApplicationFilters struct {
	SchemeID string
	RegionID string
	Status   string
	Limit    int
	Offset   int
}
