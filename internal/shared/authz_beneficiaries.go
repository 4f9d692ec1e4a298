package shared

// Beneficiary module permissions declared for authorization.
const (
	PermBeneficiariesView   = "beneficiaries.view"
	PermBeneficiariesCreate = "beneficiaries.create"
	PermBeneficiariesEdit   = "beneficiaries.edit"
)

// BeneficiaryScopes lists all permissions related to beneficiaries.
func BeneficiaryScopes() []string {
	return []string{
		PermBeneficiariesView,
		PermBeneficiariesCreate,
		PermBeneficiariesEdit,
	}
}
