package authz

import "time"

// Role identifies a named bundle of permissions.
type Role string

// Roles recognised by the platform. SuperAdmin and NationalAdmin bypass
// scope and catalog checks entirely; Beneficiary and Donor hold no
// administrative role and are limited to resources they own.
const (
	RoleSuperAdmin    Role = "super_admin"
	RoleNationalAdmin Role = "national_admin"
	RoleStateAdmin    Role = "state_admin"
	RoleDistrictAdmin Role = "district_admin"
	RoleAreaAdmin     Role = "area_admin"
	RoleUnitAdmin     Role = "unit_admin"
	RoleCoordinator   Role = "project_coordinator"
	RoleBeneficiary   Role = "beneficiary"
	RoleDonor         Role = "donor"
)

// IsGlobal reports whether the role bypasses scope and catalog checks.
func (r Role) IsGlobal() bool {
	return r == RoleSuperAdmin || r == RoleNationalAdmin
}

// IsAdministrative reports whether the role carries any administrative
// duties. Non-administrative principals are authorized purely by
// resource ownership.
func (r Role) IsAdministrative() bool {
	switch r {
	case RoleSuperAdmin, RoleNationalAdmin, RoleStateAdmin, RoleDistrictAdmin,
		RoleAreaAdmin, RoleUnitAdmin, RoleCoordinator:
		return true
	}
	return false
}

// ApexLevel returns the hierarchy level at which the role sits, used
// when deciding whether one administrator may grant or revoke another.
// Roles without a geographic apex report false.
func (r Role) ApexLevel() (Level, bool) {
	switch r {
	case RoleStateAdmin:
		return LevelState, true
	case RoleDistrictAdmin:
		return LevelDistrict, true
	case RoleAreaAdmin:
		return LevelArea, true
	case RoleUnitAdmin:
		return LevelUnit, true
	case RoleCoordinator:
		return LevelArea, true
	}
	return "", false
}

// Level names a tier of the geographic hierarchy.
type Level string

// Geographic levels, widest first.
const (
	LevelState    Level = "state"
	LevelDistrict Level = "district"
	LevelArea     Level = "area"
	LevelUnit     Level = "unit"
)

// Principal is the authenticated actor a decision is evaluated for.
type Principal struct {
	ID       int64
	Role     Role
	IsActive bool
}

// Scope restricts a role assignment to a slice of the organisation.
// Empty dimensions mean the assignment does not grant that dimension.
type Scope struct {
	Regions  []string
	Projects []string
	Schemes  []string
}

// RoleAssignment binds a principal to a role within a scope for a
// validity window. Assignments are never deleted; revocation flips
// Active off so history is preserved.
type RoleAssignment struct {
	ID          int64
	PrincipalID int64
	Role        Role
	Scope       Scope
	ValidFrom   *time.Time
	ValidUntil  *time.Time
	Active      bool
	GrantedBy   int64
	CreatedAt   time.Time
	RevokedAt   *time.Time
}

// ActiveAt reports whether the assignment counts at the given instant.
// This mirrors the store-side filter and exists for in-memory callers.
func (a RoleAssignment) ActiveAt(now time.Time) bool {
	if !a.Active {
		return false
	}
	if a.ValidFrom != nil && a.ValidFrom.After(now) {
		return false
	}
	if a.ValidUntil != nil && !a.ValidUntil.After(now) {
		return false
	}
	return true
}

// Resource describes the linkage fields of a protected business object.
// Zero values mean the dimension is absent on the resource.
type Resource struct {
	RegionIDs []string
	ProjectID string
	SchemeID  string
	OwnerID   int64
}
