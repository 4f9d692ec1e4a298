package authz

import (
	"errors"
	"fmt"

	"github.com/sevatrack/sevatrack/internal/shared"
)

// ErrUnknownRole indicates a role tag that is not present in the
// catalog. This is a configuration error, not a user-facing denial:
// callers log it loudly and still fail closed.
var ErrUnknownRole = errors.New("authz: unknown role")

// Catalog is the static lookup table from role to permission set and
// from role to the geographic levels that role may administer. It is
// built once at boot and never mutated afterwards.
type Catalog struct {
	permissions map[Role]map[string]struct{}
	levels      map[Role][]Level
}

// NewCatalog builds a catalog from explicit tables. Use DefaultCatalog
// for the shipped role model.
func NewCatalog(permissions map[Role][]string, levels map[Role][]Level) *Catalog {
	c := &Catalog{
		permissions: make(map[Role]map[string]struct{}, len(permissions)),
		levels:      levels,
	}
	for role, perms := range permissions {
		set := make(map[string]struct{}, len(perms))
		for _, p := range perms {
			set[p] = struct{}{}
		}
		c.permissions[role] = set
	}
	return c
}

// PermissionsOf returns the permission set of a role.
func (c *Catalog) PermissionsOf(role Role) (map[string]struct{}, error) {
	set, ok := c.permissions[role]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownRole, role)
	}
	return set, nil
}

// ManagedLevelsOf returns the geographic levels the role may administer,
// widest first.
func (c *Catalog) ManagedLevelsOf(role Role) ([]Level, error) {
	levels, ok := c.levels[role]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownRole, role)
	}
	return levels, nil
}

// Validate cross-checks the two tables so a misconfigured role fails at
// boot instead of silently yielding empty grants at request time.
func (c *Catalog) Validate() error {
	for role := range c.permissions {
		if role.IsAdministrative() {
			if _, ok := c.levels[role]; !ok {
				return fmt.Errorf("authz: role %q has permissions but no managed levels", role)
			}
		}
	}
	for role := range c.levels {
		if _, ok := c.permissions[role]; !ok {
			return fmt.Errorf("authz: role %q has managed levels but no permissions", role)
		}
	}
	return nil
}

// DefaultCatalog returns the shipped role model. Global roles appear
// here only for their managed-level table; their permission checks are
// short-circuited by the bypass rule and never consult the catalog.
func DefaultCatalog() *Catalog {
	allLevels := []Level{LevelState, LevelDistrict, LevelArea, LevelUnit}

	return NewCatalog(
		map[Role][]string{
			RoleSuperAdmin:    shared.AllScopes(),
			RoleNationalAdmin: shared.AllScopes(),
			RoleStateAdmin: {
				shared.PermUsersView, shared.PermUsersEdit,
				shared.PermAssignmentsView, shared.PermAssignmentsGrant, shared.PermAssignmentsRevoke,
				shared.PermRegionsView,
				shared.PermBeneficiariesView, shared.PermBeneficiariesCreate, shared.PermBeneficiariesEdit,
				shared.PermApplicationsView, shared.PermApplicationsReview, shared.PermApplicationsDecide,
				shared.PermDonorsView, shared.PermDonorsEdit,
				shared.PermDonationsView, shared.PermDonationsRecord,
				shared.PermPledgesView, shared.PermPledgesEdit,
			},
			RoleDistrictAdmin: {
				shared.PermUsersView,
				shared.PermAssignmentsView, shared.PermAssignmentsGrant, shared.PermAssignmentsRevoke,
				shared.PermRegionsView,
				shared.PermBeneficiariesView, shared.PermBeneficiariesCreate, shared.PermBeneficiariesEdit,
				shared.PermApplicationsView, shared.PermApplicationsReview, shared.PermApplicationsDecide,
				shared.PermDonorsView,
				shared.PermDonationsView, shared.PermDonationsRecord,
				shared.PermPledgesView,
			},
			RoleAreaAdmin: {
				shared.PermUsersView,
				shared.PermAssignmentsView,
				shared.PermRegionsView,
				shared.PermBeneficiariesView, shared.PermBeneficiariesCreate, shared.PermBeneficiariesEdit,
				shared.PermApplicationsView, shared.PermApplicationsReview,
				shared.PermDonationsView, shared.PermDonationsRecord,
			},
			RoleUnitAdmin: {
				shared.PermRegionsView,
				shared.PermBeneficiariesView, shared.PermBeneficiariesCreate,
				shared.PermApplicationsView,
				shared.PermDonationsView, shared.PermDonationsRecord,
			},
			RoleCoordinator: {
				shared.PermRegionsView,
				shared.PermBeneficiariesView,
				shared.PermApplicationsView, shared.PermApplicationsReview,
				shared.PermDonationsView,
			},
			RoleBeneficiary: {},
			RoleDonor:       {},
		},
		map[Role][]Level{
			RoleSuperAdmin:    allLevels,
			RoleNationalAdmin: allLevels,
			RoleStateAdmin:    {LevelState, LevelDistrict, LevelArea, LevelUnit},
			RoleDistrictAdmin: {LevelDistrict, LevelArea, LevelUnit},
			RoleAreaAdmin:     {LevelArea, LevelUnit},
			RoleUnitAdmin:     {LevelUnit},
			RoleCoordinator:   {},
		},
	)
}
