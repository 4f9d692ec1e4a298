package beneficiaries

import "time"

// Beneficiary is a person or household receiving support. RegionID
// places the record in the geographic hierarchy; OwnerUserID links the
// record to the beneficiary's own login, when one exists.
type Beneficiary struct {
	ID          int64      `json:"id"`
	RegionID    string     `json:"region_id"`
	ProjectID   *string    `json:"project_id,omitempty"`
	OwnerUserID *int64     `json:"owner_user_id,omitempty"`
	Name        string     `json:"name"`
	Phone       string     `json:"phone"`
	Address     string     `json:"address"`
	Notes       string     `json:"notes,omitempty"`
	IsActive    bool       `json:"is_active"`
	EnrolledAt  *time.Time `json:"enrolled_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}
