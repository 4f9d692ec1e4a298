package shared

// Donation module permissions declared for authorization.
const (
	PermDonorsView = "donors.view"
	PermDonorsEdit = "donors.edit"

	PermDonationsView   = "donations.view"
	PermDonationsRecord = "donations.record"

	PermPledgesView = "pledges.view"
	PermPledgesEdit = "pledges.edit"
)

// DonationScopes lists all permissions related to donors and donations.
func DonationScopes() []string {
	return []string{
		PermDonorsView,
		PermDonorsEdit,
		PermDonationsView,
		PermDonationsRecord,
		PermPledgesView,
		PermPledgesEdit,
	}
}
