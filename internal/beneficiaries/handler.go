package beneficiaries

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/sevatrack/sevatrack/internal/authz"
	"github.com/sevatrack/sevatrack/internal/platform/httpx"
	"github.com/sevatrack/sevatrack/internal/shared"
)

// Handler exposes beneficiary endpoints.
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

// MountRoutes registers beneficiary routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.authz.RequireAny(shared.PermBeneficiariesView))
		r.Get("/", h.list)
		r.Get("/{beneficiaryID}", h.get)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.authz.RequireAll(shared.PermBeneficiariesCreate))
		r.Post("/", h.create)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.authz.RequireAll(shared.PermBeneficiariesEdit))
		r.Patch("/{beneficiaryID}", h.update)
		r.Post("/{beneficiaryID}/deactivate", h.deactivate)
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	actor, _ := h.authz.CurrentPrincipal(r)
	filters := ListFilters{
		RegionID:  r.URL.Query().Get("region"),
		ProjectID: r.URL.Query().Get("project"),
		Search:    r.URL.Query().Get("q"),
	}
	filters.Limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	filters.Offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))

	list, err := h.service.List(r.Context(), actor, filters)
	if err != nil {
		h.respondError(w, "list beneficiaries failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"beneficiaries": list})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "beneficiaryID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid id", "beneficiary id must be numeric")
		return
	}
	actor, _ := h.authz.CurrentPrincipal(r)
	b, err := h.service.Get(r.Context(), actor, id)
	if err != nil {
		h.respondError(w, "get beneficiary failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, b)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid payload", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation failed", err.Error())
		return
	}
	actor, _ := h.authz.CurrentPrincipal(r)
	b, err := h.service.Create(r.Context(), actor, req)
	if err != nil {
		h.respondError(w, "create beneficiary failed", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, b)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "beneficiaryID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid id", "beneficiary id must be numeric")
		return
	}
	var req UpdateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid payload", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation failed", err.Error())
		return
	}
	actor, _ := h.authz.CurrentPrincipal(r)
	b, err := h.service.Update(r.Context(), actor, id, req)
	if err != nil {
		h.respondError(w, "update beneficiary failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, b)
}

func (h *Handler) deactivate(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "beneficiaryID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid id", "beneficiary id must be numeric")
		return
	}
	actor, _ := h.authz.CurrentPrincipal(r)
	if err := h.service.Deactivate(r.Context(), actor, id); err != nil {
		h.respondError(w, "deactivate beneficiary failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"status": "deactivated"})
}

func (h *Handler) respondError(w http.ResponseWriter, msg string, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not found", "beneficiary does not exist")
	case errors.Is(err, httpx.ErrForbidden):
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "beneficiary is outside your scope")
	default:
		h.logger.Error(msg, slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
