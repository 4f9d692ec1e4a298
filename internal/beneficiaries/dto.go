package beneficiaries

// CreateRequest is the payload for registering a beneficiary.
type CreateRequest struct {
	RegionID    string  `json:"region_id" validate:"required,max=128"`
	ProjectID   *string `json:"project_id" validate:"omitempty,max=128"`
	OwnerUserID *int64  `json:"owner_user_id"`
	Name        string  `json:"name" validate:"required,max=200"`
	Phone       string  `json:"phone" validate:"omitempty,e164"`
	Address     string  `json:"address" validate:"max=500"`
	Notes       string  `json:"notes" validate:"max=2000"`
}

// UpdateRequest carries editable beneficiary fields. Pointers
// distinguish "leave unchanged" from "clear".
type UpdateRequest struct {
	Name    *string `json:"name" validate:"omitempty,max=200"`
	Phone   *string `json:"phone" validate:"omitempty,e164"`
	Address *string `json:"address" validate:"omitempty,max=500"`
	Notes   *string `json:"notes" validate:"omitempty,max=2000"`
}

// ListFilters narrows a beneficiary listing within the caller's scope.
type ListFilters struct {
	RegionID  string
	ProjectID string
	Search    string
	Limit     int
	Offset    int
}
