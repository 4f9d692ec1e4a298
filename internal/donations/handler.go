package donations

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

// IdempotencyHeader carries the client-supplied dedupe key for
// donation recording.
const IdempotencyHeader = "X-Idempotency-Key"

// Handler exposes donor, donation and pledge endpoints.
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

// MountRoutes registers donation routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.authz.RequireAny(shared.PermDonorsView))
		r.Get("/donors", h.listDonors)
		r.Get("/donors/{donorID}", h.getDonor)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.authz.RequireAll(shared.PermDonorsEdit))
		r.Post("/donors", h.createDonor)
		r.Patch("/donors/{donorID}", h.updateDonor)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.authz.RequireAny(shared.PermDonationsView))
		r.Get("/", h.listDonations)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.authz.RequireAll(shared.PermDonationsRecord))
		r.Post("/", h.recordDonation)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.authz.RequireAny(shared.PermPledgesView))
		r.Get("/pledges", h.listPledges)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.authz.RequireAll(shared.PermPledgesEdit))
		r.Post("/pledges", h.createPledge)
		r.Post("/pledges/{pledgeID}/cancel", h.cancelPledge)
	})
}

func (h *Handler) listDonors(w http.ResponseWriter, r *http.Request) {
	actor, _ := h.authz.CurrentPrincipal(r)
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	donors, err := h.service.ListDonors(r.Context(), actor, r.URL.Query().Get("q"), limit, offset)
	if err != nil {
		h.respondError(w, "list donors failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"donors": donors})
}

func (h *Handler) getDonor(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "donorID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid id", "donor id must be numeric")
		return
	}
	actor, _ := h.authz.CurrentPrincipal(r)
	donor, err := h.service.GetDonor(r.Context(), actor, id)
	if err != nil {
		h.respondError(w, "get donor failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, donor)
}

func (h *Handler) createDonor(w http.ResponseWriter, r *http.Request) {
	var req CreateDonorRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid payload", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation failed", err.Error())
		return
	}
	actor, _ := h.authz.CurrentPrincipal(r)
	donor, err := h.service.CreateDonor(r.Context(), actor, req)
	if err != nil {
		h.respondError(w, "create donor failed", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, donor)
}

func (h *Handler) updateDonor(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "donorID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid id", "donor id must be numeric")
		return
	}
	var req UpdateDonorRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid payload", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation failed", err.Error())
		return
	}
	actor, _ := h.authz.CurrentPrincipal(r)
	donor, err := h.service.UpdateDonor(r.Context(), actor, id, req)
	if err != nil {
		h.respondError(w, "update donor failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, donor)
}

func (h *Handler) listDonations(w http.ResponseWriter, r *http.Request) {
	actor, _ := h.authz.CurrentPrincipal(r)
	donorID, _ := strconv.ParseInt(r.URL.Query().Get("donor"), 10, 64)
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	list, err := h.service.ListDonations(r.Context(), actor, donorID, limit, offset)
	if err != nil {
		h.respondError(w, "list donations failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"donations": list})
}

func (h *Handler) recordDonation(w http.ResponseWriter, r *http.Request) {
	var req RecordDonationRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid payload", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation failed", err.Error())
		return
	}
	actor, _ := h.authz.CurrentPrincipal(r)
	donation, err := h.service.RecordDonation(r.Context(), actor, req, r.Header.Get(IdempotencyHeader))
	if err != nil {
		h.respondError(w, "record donation failed", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{
		"donation":         donation,
		"amount_formatted": FormatINR(donation.AmountPaise),
	})
}

func (h *Handler) listPledges(w http.ResponseWriter, r *http.Request) {
	actor, _ := h.authz.CurrentPrincipal(r)
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	pledges, err := h.service.ListPledges(r.Context(), actor, limit, offset)
	if err != nil {
		h.respondError(w, "list pledges failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"pledges": pledges})
}

func (h *Handler) createPledge(w http.ResponseWriter, r *http.Request) {
	var req CreatePledgeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid payload", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation failed", err.Error())
		return
	}
	actor, _ := h.authz.CurrentPrincipal(r)
	pledge, err := h.service.CreatePledge(r.Context(), actor, req)
	if err != nil {
		h.respondError(w, "create pledge failed", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, pledge)
}

func (h *Handler) cancelPledge(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "pledgeID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid id", "pledge id must be numeric")
		return
	}
	actor, _ := h.authz.CurrentPrincipal(r)
	if err := h.service.CancelPledge(r.Context(), actor, id); err != nil {
		h.respondError(w, "cancel pledge failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"status": "cancelled"})
}

func (h *Handler) respondError(w http.ResponseWriter, msg string, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not found", "record does not exist")
	case errors.Is(err, httpx.ErrForbidden):
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "record is outside your scope")
	case errors.Is(err, httpx.ErrDuplicate):
		httpx.Problem(w, http.StatusConflict, "Duplicate", "a donor with this phone already exists")
	case errors.Is(err, shared.ErrIdempotencyConflict):
		httpx.Problem(w, http.StatusConflict, "Duplicate", "this donation was already recorded")
	default:
		h.logger.Error(msg, slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
