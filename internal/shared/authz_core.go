package shared

// Core platform permissions.
const (
	PermUsersView = "users.view"
	PermUsersEdit = "users.edit"

	PermAssignmentsView   = "assignments.view"
	PermAssignmentsGrant  = "assignments.grant"
	PermAssignmentsRevoke = "assignments.revoke"

	PermRegionsView = "regions.view"
	PermRegionsEdit = "regions.edit"
)

// CoreScopes lists all permissions related to the core platform.
func CoreScopes() []string {
	return []string{
		PermUsersView,
		PermUsersEdit,
		PermAssignmentsView,
		PermAssignmentsGrant,
		PermAssignmentsRevoke,
		PermRegionsView,
		PermRegionsEdit,
	}
}

// AllScopes aggregates every permission declared across the modules.
func AllScopes() []string {
	var all []string
	all = append(all, CoreScopes()...)
	all = append(all, BeneficiaryScopes()...)
	all = append(all, SchemeScopes()...)
	all = append(all, DonationScopes()...)
	return all
}
