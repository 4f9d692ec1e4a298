package authz

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sevatrack/sevatrack/internal/shared"
)

func requestWithIdentity(t *testing.T, ident *shared.Identity) *http.Request {
	t.Helper()
	manager := shared.NewSessionManager(nil, "test_session", time.Hour, false)
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	sess, err := manager.Load(context.Background(), req)
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	if ident != nil {
		sess.SetIdentity(*ident)
	}
	return req.WithContext(shared.ContextWithSession(req.Context(), sess))
}

func TestRequireAnyAllowsAndDenies(t *testing.T) {
	store := &stubStore{assignments: map[int64][]RoleAssignment{
		2: {{PrincipalID: 2, Role: RoleUnitAdmin, Active: true}},
	}}
	mw := Middleware{Engine: newTestEngine(store)}

	var reached bool
	handler := mw.RequireAny(shared.PermBeneficiariesView)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, requestWithIdentity(t, &shared.Identity{UserID: 2, Role: string(RoleUnitAdmin)}))
	if !reached || rr.Code != http.StatusOK {
		t.Fatalf("expected pass-through, got status %d", rr.Code)
	}

	reached = false
	denied := mw.RequireAny(shared.PermAssignmentsGrant)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
	}))
	rr = httptest.NewRecorder()
	denied.ServeHTTP(rr, requestWithIdentity(t, &shared.Identity{UserID: 2, Role: string(RoleUnitAdmin)}))
	if reached || rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d (reached=%v)", rr.Code, reached)
	}
}

func TestRequireAllRejectsAnonymous(t *testing.T) {
	mw := Middleware{Engine: newTestEngine(&stubStore{})}

	handler := mw.RequireAll(shared.PermUsersView)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run for anonymous request")
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, requestWithIdentity(t, nil))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestMiddlewareFailsClosedOnStoreError(t *testing.T) {
	mw := Middleware{Engine: newTestEngine(&stubStore{err: context.DeadlineExceeded})}

	handler := mw.RequireAll(shared.PermUsersView)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run when the store is unavailable")
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, requestWithIdentity(t, &shared.Identity{UserID: 2, Role: string(RoleUnitAdmin)}))
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected fail-closed 403, got %d", rr.Code)
	}
}

func TestMiddlewareNoRequirementsPassesThrough(t *testing.T) {
	mw := Middleware{Engine: newTestEngine(&stubStore{})}

	var reached bool
	handler := mw.RequireAny()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/open", nil))
	if !reached {
		t.Fatal("empty requirement list must pass through")
	}
}
