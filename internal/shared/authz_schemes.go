package shared

// Scheme application permissions declared for authorization.
const (
	PermApplicationsView   = "applications.view"
	PermApplicationsReview = "applications.review"
	PermApplicationsDecide = "applications.decide"
)

// SchemeScopes lists all permissions related to scheme applications.
func SchemeScopes() []string {
	return []string{
		PermApplicationsView,
		PermApplicationsReview,
		PermApplicationsDecide,
	}
}
