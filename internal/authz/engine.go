package authz

import (
	"context"
	"errors"
	"time"
)

// ErrUnauthenticated indicates a decision was attempted without a
// principal. Callers should reject before reaching the engine; the
// engine defends against it anyway.
var ErrUnauthenticated = errors.New("authz: no principal")

// Engine evaluates permission and resource-access decisions. It is
// stateless per call and safe for concurrent use; the only I/O is the
// assignment read inside the resolver. Any error from that read must be
// treated as a denial by callers, never as an allow.
type Engine struct {
	resolver *Resolver
	catalog  *Catalog
	now      func() time.Time
}

// NewEngine constructs an Engine. The clock is injectable for tests via
// WithClock.
func NewEngine(resolver *Resolver, catalog *Catalog) *Engine {
	return &Engine{resolver: resolver, catalog: catalog, now: time.Now}
}

// WithClock replaces the engine's time source and returns the engine.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// HasPermission reports whether the principal holds the named
// permission. Global roles are granted every name unconditionally,
// including names that exist in no role's set; bypass roles are never
// checked against the catalog. An unknown permission name is simply
// absent and yields false, not an error.
func (e *Engine) HasPermission(ctx context.Context, p *Principal, name string) (bool, error) {
	if p == nil {
		return false, ErrUnauthenticated
	}
	if !p.IsActive {
		return false, nil
	}
	perms, err := e.resolver.EffectivePermissions(ctx, p, e.now())
	if err != nil {
		return false, err
	}
	return perms.Contains(name), nil
}

// HasAnyPermission reports whether the principal holds at least one of
// the named permissions, along with the first name that granted access.
// A bypass role trivially satisfies any one of the list, so by
// convention it reports the first name.
func (e *Engine) HasAnyPermission(ctx context.Context, p *Principal, names []string) (bool, string, error) {
	if p == nil {
		return false, "", ErrUnauthenticated
	}
	if !p.IsActive || len(names) == 0 {
		return false, "", nil
	}
	perms, err := e.resolver.EffectivePermissions(ctx, p, e.now())
	if err != nil {
		return false, "", err
	}
	if perms.Unrestricted() {
		return true, names[0], nil
	}
	for _, name := range names {
		if perms.Contains(name) {
			return true, name, nil
		}
	}
	return false, "", nil
}

// HasAllPermissions reports whether the principal holds every named
// permission. Evaluation never short-circuits so the missing list is
// always complete for diagnostics. Bypass roles pass with an empty
// missing list.
func (e *Engine) HasAllPermissions(ctx context.Context, p *Principal, names []string) (bool, []string, error) {
	if p == nil {
		return false, nil, ErrUnauthenticated
	}
	if !p.IsActive {
		return false, append([]string(nil), names...), nil
	}
	perms, err := e.resolver.EffectivePermissions(ctx, p, e.now())
	if err != nil {
		return false, nil, err
	}
	if perms.Unrestricted() {
		return true, nil, nil
	}
	var missing []string
	for _, name := range names {
		if !perms.Contains(name) {
			missing = append(missing, name)
		}
	}
	return len(missing) == 0, missing, nil
}

// CheckResourceAccess reports whether the principal's effective scope
// covers the resource. Region and project dimensions are restrictive by
// default: an empty scope set denies any resource with that dimension
// populated. The scheme dimension is permissive by default: an empty
// scheme scope means no scheme restriction is configured and grants
// access regardless of the resource's scheme. The asymmetry is carried
// over from observed production behavior and must not be unified
// without product confirmation.
//
// Principals with no administrative role are decided purely by
// ownership: the resource's owner id must equal the principal's id.
func (e *Engine) CheckResourceAccess(ctx context.Context, p *Principal, res Resource) (bool, error) {
	if p == nil {
		return false, ErrUnauthenticated
	}
	if !p.IsActive {
		return false, nil
	}
	if p.Role.IsGlobal() {
		return true, nil
	}
	if !p.Role.IsAdministrative() {
		return res.OwnerID != 0 && res.OwnerID == p.ID, nil
	}

	scope, err := e.resolver.EffectiveScope(ctx, p, e.now())
	if err != nil {
		return false, err
	}
	if scope.Unrestricted() {
		return true, nil
	}

	regionOK := len(res.RegionIDs) == 0 || intersects(scope.Regions, res.RegionIDs)
	projectOK := res.ProjectID == "" || contains(scope.Projects, res.ProjectID)
	schemeOK := len(scope.Schemes) == 0 || contains(scope.Schemes, res.SchemeID)

	return regionOK && projectOK && schemeOK, nil
}

// CheckAdminHierarchy reports whether the principal's role may
// administer entities at the target level. Purely catalog-driven, no
// store read.
func (e *Engine) CheckAdminHierarchy(p *Principal, target Level) (bool, error) {
	if p == nil {
		return false, ErrUnauthenticated
	}
	if !p.IsActive {
		return false, nil
	}
	if p.Role.IsGlobal() {
		return true, nil
	}
	levels, err := e.catalog.ManagedLevelsOf(p.Role)
	if err != nil {
		return false, err
	}
	for _, level := range levels {
		if level == target {
			return true, nil
		}
	}
	return false, nil
}

func intersects(set map[string]struct{}, ids []string) bool {
	for _, id := range ids {
		if _, ok := set[id]; ok {
			return true
		}
	}
	return false
}

func contains(set map[string]struct{}, id string) bool {
	_, ok := set[id]
	return ok
}
