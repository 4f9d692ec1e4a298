package authz

import (
	"errors"
	"testing"

	"github.com/sevatrack/sevatrack/internal/shared"
)

func TestDefaultCatalogValidates(t *testing.T) {
	if err := DefaultCatalog().Validate(); err != nil {
		t.Fatalf("default catalog must validate: %v", err)
	}
}

func TestCatalogUnknownRole(t *testing.T) {
	catalog := DefaultCatalog()

	if _, err := catalog.PermissionsOf(Role("ghost_admin")); !errors.Is(err, ErrUnknownRole) {
		t.Fatalf("expected ErrUnknownRole, got %v", err)
	}
	if _, err := catalog.ManagedLevelsOf(Role("ghost_admin")); !errors.Is(err, ErrUnknownRole) {
		t.Fatalf("expected ErrUnknownRole, got %v", err)
	}
}

func TestCatalogManagedLevelsOrdering(t *testing.T) {
	catalog := DefaultCatalog()

	levels, err := catalog.ManagedLevelsOf(RoleStateAdmin)
	if err != nil {
		t.Fatalf("ManagedLevelsOf: %v", err)
	}
	want := []Level{LevelState, LevelDistrict, LevelArea, LevelUnit}
	if len(levels) != len(want) {
		t.Fatalf("expected %d levels, got %v", len(want), levels)
	}
	for i, level := range want {
		if levels[i] != level {
			t.Fatalf("level %d: expected %s, got %s", i, level, levels[i])
		}
	}
}

func TestCatalogValidateDetectsDrift(t *testing.T) {
	// An administrative role with permissions but no managed levels is
	// a deployment error and must fail at boot.
	broken := NewCatalog(
		map[Role][]string{RoleDistrictAdmin: {shared.PermUsersView}},
		map[Role][]Level{},
	)
	if err := broken.Validate(); err == nil {
		t.Fatal("expected validation failure for missing level table entry")
	}

	orphan := NewCatalog(
		map[Role][]string{},
		map[Role][]Level{RoleDistrictAdmin: {LevelDistrict}},
	)
	if err := orphan.Validate(); err == nil {
		t.Fatal("expected validation failure for orphan level entry")
	}
}

func TestCatalogPermissionsOfCopiesNothing(t *testing.T) {
	catalog := DefaultCatalog()

	perms, err := catalog.PermissionsOf(RoleUnitAdmin)
	if err != nil {
		t.Fatalf("PermissionsOf: %v", err)
	}
	if _, ok := perms[shared.PermBeneficiariesCreate]; !ok {
		t.Fatal("unit admin must hold beneficiaries.create")
	}
	if _, ok := perms[shared.PermAssignmentsGrant]; ok {
		t.Fatal("unit admin must not hold assignments.grant")
	}
}
