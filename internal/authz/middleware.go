package authz

import (
	"errors"
	"net/http"
	"strings"

	"log/slog"

	"github.com/sevatrack/sevatrack/internal/platform/httpx"
	"github.com/sevatrack/sevatrack/internal/shared"
)

// DecisionObserver receives the outcome of every middleware decision,
// typically backed by Prometheus counters.
type DecisionObserver interface {
	ObserveDecision(check, outcome string)
}

// Middleware wires authorization helpers for HTTP handlers. Every error
// path fails closed: store outages and catalog misconfiguration are
// logged loudly and surfaced to the client as an ordinary denial, never
// as an open door.
type Middleware struct {
	Engine   *Engine
	Logger   *slog.Logger
	Observer DecisionObserver
}

// RequireAny ensures the current principal has at least one of the
// required permissions.
func (m Middleware) RequireAny(perms ...string) func(http.Handler) http.Handler {
	normalized := normalizePermissions(perms)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(normalized) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			principal, ok := m.currentPrincipal(r)
			if !ok {
				m.observe("require_any", "unauthenticated")
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
				return
			}
			allowed, granted, err := m.Engine.HasAnyPermission(r.Context(), principal, normalized)
			if err != nil {
				m.deny(w, "require_any", err)
				return
			}
			if allowed {
				m.observe("require_any", "allowed")
				if m.Logger != nil {
					m.Logger.Debug("authz allow", slog.String("permission", granted), slog.Int64("principal", principal.ID))
				}
				next.ServeHTTP(w, r)
				return
			}
			m.observe("require_any", "denied")
			httpx.Problem(w, http.StatusForbidden, "Forbidden", "")
		})
	}
}

// RequireAll ensures the current principal has all required
// permissions. The full missing list is logged for audit.
func (m Middleware) RequireAll(perms ...string) func(http.Handler) http.Handler {
	normalized := normalizePermissions(perms)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(normalized) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			principal, ok := m.currentPrincipal(r)
			if !ok {
				m.observe("require_all", "unauthenticated")
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
				return
			}
			allowed, missing, err := m.Engine.HasAllPermissions(r.Context(), principal, normalized)
			if err != nil {
				m.deny(w, "require_all", err)
				return
			}
			if allowed {
				m.observe("require_all", "allowed")
				next.ServeHTTP(w, r)
				return
			}
			m.observe("require_all", "denied")
			if m.Logger != nil {
				m.Logger.Info("authz deny",
					slog.Int64("principal", principal.ID),
					slog.String("missing", strings.Join(missing, ",")))
			}
			httpx.Problem(w, http.StatusForbidden, "Forbidden", "")
		})
	}
}

// CurrentPrincipal extracts the principal from the request session for
// handlers that need per-resource checks beyond route-level gating.
func (m Middleware) CurrentPrincipal(r *http.Request) (*Principal, bool) {
	return m.currentPrincipal(r)
}

func (m Middleware) currentPrincipal(r *http.Request) (*Principal, bool) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		return nil, false
	}
	ident := sess.Identity()
	if ident == nil || ident.UserID == 0 {
		return nil, false
	}
	// A live session implies an active account: deactivation revokes
	// every session for the user, so stale identities never reach here.
	return &Principal{ID: ident.UserID, Role: Role(ident.Role), IsActive: true}, true
}

// deny maps engine failures to a closed-door response. Configuration
// errors are distinguished in logs so operators can tell deployment
// drift apart from a legitimate denial.
func (m Middleware) deny(w http.ResponseWriter, check string, err error) {
	if m.Logger != nil {
		if isConfigError(err) {
			m.Logger.Error("authz catalog misconfiguration", slog.String("check", check), slog.Any("error", err))
		} else {
			m.Logger.Error("authz store read failed, failing closed", slog.String("check", check), slog.Any("error", err))
		}
	}
	m.observe(check, "error")
	httpx.Problem(w, http.StatusForbidden, "Forbidden", "")
}

func (m Middleware) observe(check, outcome string) {
	if m.Observer != nil {
		m.Observer.ObserveDecision(check, outcome)
	}
}

func isConfigError(err error) bool {
	return errors.Is(err, ErrUnknownRole)
}

func normalizePermissions(perms []string) []string {
	unique := make(map[string]struct{}, len(perms))
	ordered := make([]string, 0, len(perms))
	for _, p := range perms {
		p = strings.TrimSpace(strings.ToLower(p))
		if p == "" {
			continue
		}
		if _, ok := unique[p]; ok {
			continue
		}
		unique[p] = struct{}{}
		ordered = append(ordered, p)
	}
	return ordered
}
