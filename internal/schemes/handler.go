package schemes

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/sevatrack/sevatrack/internal/authz"
	"github.com/sevatrack/sevatrack/internal/platform/httpx"
	"github.com/sevatrack/sevatrack/internal/shared"
)

// Handler exposes scheme and application endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	authz    authz.Middleware
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, mw authz.Middleware) *Handler {
	return &Handler{logger: logger, service: service, authz: mw, validate: validator.New()}
}

// MountRoutes registers scheme routes. The catalogue and the apply
// endpoint are open to any authenticated user so beneficiaries can
// submit for themselves; everything else needs application permissions.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.listSchemes)
	r.Post("/applications", h.apply)
	r.Get("/applications/{applicationID}", h.getApplication)

	r.Group(func(r chi.Router) {
		r.Use(h.authz.RequireAny(shared.PermApplicationsView))
		r.Get("/applications", h.listApplications)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.authz.RequireAll(shared.PermApplicationsReview))
		r.Post("/applications/{applicationID}/review", h.startReview)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.authz.RequireAll(shared.PermApplicationsDecide))
		r.Post("/applications/{applicationID}/approve", h.approve)
		r.Post("/applications/{applicationID}/reject", h.reject)
	})
}

func (h *Handler) listSchemes(w http.ResponseWriter, r *http.Request) {
	schemes, err := h.service.ListSchemes(r.Context())
	if err != nil {
		h.logger.Error("list schemes failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"schemes": schemes})
}

func (h *Handler) apply(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.authz.CurrentPrincipal(r)
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "sign in to apply")
		return
	}
	var req ApplyRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid payload", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation failed", err.Error())
		return
	}
	app, err := h.service.Apply(r.Context(), actor, req)
	if err != nil {
		h.respondError(w, "apply failed", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, app)
}

func (h *Handler) listApplications(w http.ResponseWriter, r *http.Request) {
	actor, _ := h.authz.CurrentPrincipal(r)
	filters := ApplicationFilters{
		SchemeID: r.URL.Query().Get("scheme"),
		RegionID: r.URL.Query().Get("region"),
		Status:   r.URL.Query().Get("status"),
	}
	filters.Limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	filters.Offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))

	apps, err := h.service.ListApplications(r.Context(), actor, filters)
	if err != nil {
		h.respondError(w, "list applications failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"applications": apps})
}

func (h *Handler) getApplication(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.authz.CurrentPrincipal(r)
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "sign in first")
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "applicationID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid id", "application id must be a uuid")
		return
	}
	app, err := h.service.GetApplication(r.Context(), actor, id)
	if err != nil {
		h.respondError(w, "get application failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, app)
}

func (h *Handler) startReview(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(actor *authz.Principal, id uuid.UUID) (*Application, error) {
		return h.service.StartReview(r.Context(), actor, id)
	})
}

func (h *Handler) approve(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, true)
}

func (h *Handler) reject(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, false)
}

func (h *Handler) decide(w http.ResponseWriter, r *http.Request, approve bool) {
	var req DecisionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid payload", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation failed", err.Error())
		return
	}
	h.transition(w, r, func(actor *authz.Principal, id uuid.UUID) (*Application, error) {
		return h.service.Decide(r.Context(), actor, id, approve, req.Note)
	})
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, fn func(*authz.Principal, uuid.UUID) (*Application, error)) {
	id, err := uuid.Parse(chi.URLParam(r, "applicationID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid id", "application id must be a uuid")
		return
	}
	actor, _ := h.authz.CurrentPrincipal(r)
	app, err := fn(actor, id)
	if err != nil {
		h.respondError(w, "application transition failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, app)
}

func (h *Handler) respondError(w http.ResponseWriter, msg string, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not found", "application or scheme does not exist")
	case errors.Is(err, httpx.ErrForbidden):
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "application is outside your scope")
	case errors.Is(err, ErrInvalidTransition):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	default:
		h.logger.Error(msg, slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
