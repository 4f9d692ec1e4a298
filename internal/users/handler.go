package users

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/sevatrack/sevatrack/internal/authz"
	"github.com/sevatrack/sevatrack/internal/platform/httpx"
	"github.com/sevatrack/sevatrack/internal/shared"
)

// Handler exposes user administration endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	authz    authz.Middleware
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, mw authz.Middleware) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		authz:    mw,
		validate: validator.New(),
	}
}

// MountRoutes registers user administration routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.authz.RequireAny(shared.PermUsersView))
		r.Get("/", h.listUsers)
		r.Get("/{userID}", h.getUser)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.authz.RequireAny(shared.PermAssignmentsView))
		r.Get("/{userID}/assignments", h.listAssignments)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.authz.RequireAll(shared.PermAssignmentsGrant))
		r.Post("/{userID}/assignments", h.grantRole)
		r.Patch("/assignments/{assignmentID}", h.updateWindow)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.authz.RequireAll(shared.PermUsersEdit))
		r.Post("/{userID}/deactivate", h.deactivateUser)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.authz.RequireAll(shared.PermAssignmentsRevoke))
		r.Post("/assignments/{assignmentID}/revoke", h.revokeRole)
	})
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	users, meta, err := h.service.ListUsers(r.Context(), page, perPage)
	if err != nil {
		h.logger.Error("list users failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"users": users, "pagination": meta})
}

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid user id", "user id must be numeric")
		return
	}
	user, err := h.service.GetUser(r.Context(), id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not found", "user does not exist")
			return
		}
		h.logger.Error("get user failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, user)
}

func (h *Handler) listAssignments(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid user id", "user id must be numeric")
		return
	}
	assignments, err := h.service.ListAssignments(r.Context(), id)
	if err != nil {
		h.logger.Error("list assignments failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"assignments": assignments})
}

type grantRequest struct {
	Role       string     `json:"role" validate:"required"`
	Regions    []string   `json:"regions"`
	Projects   []string   `json:"projects"`
	Schemes    []string   `json:"schemes"`
	ValidFrom  *time.Time `json:"valid_from"`
	ValidUntil *time.Time `json:"valid_until"`
}

func (h *Handler) grantRole(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid user id", "user id must be numeric")
		return
	}
	var req grantRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid payload", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation failed", err.Error())
		return
	}
	actor, _ := h.authz.CurrentPrincipal(r)
	id, err := h.service.GrantRole(r.Context(), actor, GrantInput{
		UserID: userID,
		Role:   authz.Role(req.Role),
		Scope: authz.Scope{
			Regions:  req.Regions,
			Projects: req.Projects,
			Schemes:  req.Schemes,
		},
		ValidFrom:  req.ValidFrom,
		ValidUntil: req.ValidUntil,
	})
	if err != nil {
		h.respondServiceError(w, "grant role failed", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"assignment_id": id})
}

func (h *Handler) deactivateUser(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid user id", "user id must be numeric")
		return
	}
	actor, _ := h.authz.CurrentPrincipal(r)
	if err := h.service.DeactivateUser(r.Context(), actor, userID); err != nil {
		h.respondServiceError(w, "deactivate user failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"status": "deactivated"})
}

func (h *Handler) revokeRole(w http.ResponseWriter, r *http.Request) {
	assignmentID, err := strconv.ParseInt(chi.URLParam(r, "assignmentID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid assignment id", "assignment id must be numeric")
		return
	}
	actor, _ := h.authz.CurrentPrincipal(r)
	if err := h.service.RevokeRole(r.Context(), actor, assignmentID); err != nil {
		h.respondServiceError(w, "revoke role failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"status": "revoked"})
}

type windowRequest struct {
	ValidFrom  *time.Time `json:"valid_from"`
	ValidUntil *time.Time `json:"valid_until"`
}

func (h *Handler) updateWindow(w http.ResponseWriter, r *http.Request) {
	assignmentID, err := strconv.ParseInt(chi.URLParam(r, "assignmentID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid assignment id", "assignment id must be numeric")
		return
	}
	var req windowRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid payload", err.Error())
		return
	}
	actor, _ := h.authz.CurrentPrincipal(r)
	if err := h.service.UpdateWindow(r.Context(), actor, assignmentID, req.ValidFrom, req.ValidUntil); err != nil {
		h.respondServiceError(w, "update window failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"status": "updated"})
}

func (h *Handler) respondServiceError(w http.ResponseWriter, msg string, err error) {
	switch {
	case errors.Is(err, ErrHierarchyViolation):
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "you may not administer roles at this level")
	case errors.Is(err, ErrUnassignableRole):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Unassignable role", "this role cannot be granted through an assignment")
	case errors.Is(err, shared.ErrTooManyAttempts):
		httpx.Problem(w, http.StatusTooManyRequests, "Too many requests", "administrative write limit reached, try again later")
	case errors.Is(err, shared.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not found", "assignment does not exist")
	case errors.Is(err, authz.ErrUnknownRole):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Unknown role", "role is not defined in the catalog")
	default:
		h.logger.Error(msg, slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
