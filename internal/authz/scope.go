package authz

import (
	"context"
	"sort"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"
)

// PermissionSet is the resolved set of permission names a principal
// holds. The unrestricted variant stands in for a global role and
// contains every name, including names absent from the catalog.
type PermissionSet struct {
	unrestricted bool
	names        map[string]struct{}
}

// UnrestrictedPermissions returns the bypass sentinel.
func UnrestrictedPermissions() PermissionSet {
	return PermissionSet{unrestricted: true}
}

// Unrestricted reports whether the set is the bypass sentinel.
func (s PermissionSet) Unrestricted() bool { return s.unrestricted }

// Contains reports whether the named permission is granted.
func (s PermissionSet) Contains(name string) bool {
	if s.unrestricted {
		return true
	}
	_, ok := s.names[name]
	return ok
}

// Names returns the granted permission names. Nil for the unrestricted
// sentinel, which has no finite enumeration.
func (s PermissionSet) Names() []string {
	if s.unrestricted {
		return nil
	}
	names := make([]string, 0, len(s.names))
	for name := range s.names {
		names = append(names, name)
	}
	return names
}

// EffectiveScope is the union of scope dimensions across a principal's
// currently-active assignments, or the unrestricted sentinel for global
// roles. An empty dimension set and the unrestricted sentinel have
// opposite meanings and must never be conflated.
type EffectiveScope struct {
	unrestricted bool
	Regions      map[string]struct{}
	Projects     map[string]struct{}
	Schemes      map[string]struct{}
}

// UnrestrictedScope returns the bypass sentinel.
func UnrestrictedScope() EffectiveScope {
	return EffectiveScope{unrestricted: true}
}

// Unrestricted reports whether the scope is the bypass sentinel.
func (s EffectiveScope) Unrestricted() bool { return s.unrestricted }

// RegionIDs returns the region dimension sorted, for deterministic
// query parameters. Nil for the unrestricted sentinel.
func (s EffectiveScope) RegionIDs() []string { return sortedKeys(s.Regions) }

// ProjectIDs returns the project dimension sorted.
func (s EffectiveScope) ProjectIDs() []string { return sortedKeys(s.Projects) }

// SchemeIDs returns the scheme dimension sorted.
func (s EffectiveScope) SchemeIDs() []string { return sortedKeys(s.Schemes) }

func sortedKeys(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Resolver computes a principal's effective permission set and scope.
// Both resolutions run through the same active-assignment filter, so a
// revoked or expired assignment can never leak a permission or a scope
// grant through one path but not the other.
type Resolver struct {
	store   AssignmentStore
	catalog *Catalog
	loads   singleflight.Group
}

// NewResolver constructs a Resolver.
func NewResolver(store AssignmentStore, catalog *Catalog) *Resolver {
	return &Resolver{store: store, catalog: catalog}
}

// loadAssignments collapses concurrent lookups for the same principal
// into one store round trip. A permission check and a scope resolution
// for the same request dedupe here.
func (r *Resolver) loadAssignments(ctx context.Context, principalID int64, now time.Time) ([]RoleAssignment, error) {
	key := strconv.FormatInt(principalID, 10)
	ch := r.loads.DoChan(key, func() (any, error) {
		return r.store.ActiveAssignments(ctx, principalID, now)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]RoleAssignment), nil
	}
}

// EffectivePermissions returns the union of catalog permissions across
// the principal's active assignments, or the unrestricted sentinel for
// global roles.
func (r *Resolver) EffectivePermissions(ctx context.Context, p *Principal, now time.Time) (PermissionSet, error) {
	if p == nil {
		return PermissionSet{}, ErrUnauthenticated
	}
	if p.Role.IsGlobal() {
		return UnrestrictedPermissions(), nil
	}

	assignments, err := r.loadAssignments(ctx, p.ID, now)
	if err != nil {
		return PermissionSet{}, err
	}

	names := make(map[string]struct{})
	for _, a := range assignments {
		perms, err := r.catalog.PermissionsOf(a.Role)
		if err != nil {
			return PermissionSet{}, err
		}
		for name := range perms {
			names[name] = struct{}{}
		}
	}
	return PermissionSet{names: names}, nil
}

// EffectiveScope returns the deduplicated union of each scope dimension
// across the principal's active assignments, or the unrestricted
// sentinel for global roles.
func (r *Resolver) EffectiveScope(ctx context.Context, p *Principal, now time.Time) (EffectiveScope, error) {
	if p == nil {
		return EffectiveScope{}, ErrUnauthenticated
	}
	if p.Role.IsGlobal() {
		return UnrestrictedScope(), nil
	}

	assignments, err := r.loadAssignments(ctx, p.ID, now)
	if err != nil {
		return EffectiveScope{}, err
	}

	scope := EffectiveScope{
		Regions:  make(map[string]struct{}),
		Projects: make(map[string]struct{}),
		Schemes:  make(map[string]struct{}),
	}
	for _, a := range assignments {
		for _, id := range a.Scope.Regions {
			scope.Regions[id] = struct{}{}
		}
		for _, id := range a.Scope.Projects {
			scope.Projects[id] = struct{}{}
		}
		for _, id := range a.Scope.Schemes {
			scope.Schemes[id] = struct{}{}
		}
	}
	return scope, nil
}
