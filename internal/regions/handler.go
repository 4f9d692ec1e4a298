package regions

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

// Handler exposes the region hierarchy.
type Handler struct {
	logger   *slog.Logger
	repo     *Repository
	authz    authz.Middleware
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, repo *Repository, mw authz.Middleware) *Handler {
	return &Handler{logger: logger, repo: repo, authz: mw, validate: validator.New()}
}

// MountRoutes registers region routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.authz.RequireAny(shared.PermRegionsView))
		r.Get("/", h.list)
		r.Get("/{regionID}", h.get)
		r.Get("/{regionID}/children", h.children)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.authz.RequireAll(shared.PermRegionsEdit))
		r.Post("/", h.create)
		r.Patch("/{regionID}", h.rename)
		r.Post("/{regionID}/deactivate", h.deactivate)
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	filters := ListFilters{Search: r.URL.Query().Get("q")}
	if raw := r.URL.Query().Get("level"); raw != "" {
		level, err := ParseLevel(raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid level", err.Error())
			return
		}
		filters.Level = &level
	}
	if raw := r.URL.Query().Get("parent"); raw != "" {
		filters.ParentID = &raw
	}
	filters.Limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	filters.Offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))
	if filters.Limit <= 0 || filters.Limit > 500 {
		filters.Limit = 100
	}

	regions, err := h.repo.List(r.Context(), filters)
	if err != nil {
		h.logger.Error("list regions failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"regions": regions})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	region, err := h.repo.Get(r.Context(), chi.URLParam(r, "regionID"))
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not found", "region does not exist")
			return
		}
		h.logger.Error("get region failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, region)
}

func (h *Handler) children(w http.ResponseWriter, r *http.Request) {
	regions, err := h.repo.Children(r.Context(), chi.URLParam(r, "regionID"))
	if err != nil {
		h.logger.Error("list children failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"regions": regions})
}

type createRequest struct {
	ID       string  `json:"id" validate:"required,max=128"`
	ParentID *string `json:"parent_id"`
	Name     string  `json:"name" validate:"required,max=200"`
	Level    string  `json:"level" validate:"required"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid payload", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation failed", err.Error())
		return
	}
	level, err := ParseLevel(req.Level)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid level", err.Error())
		return
	}
	if level != authz.LevelState && req.ParentID == nil {
		httpx.Problem(w, http.StatusBadRequest, "Missing parent", "non-state regions require a parent")
		return
	}
	region := Region{ID: req.ID, ParentID: req.ParentID, Name: req.Name, Level: level}
	if err := h.repo.Create(r.Context(), region); err != nil {
		h.logger.Error("create region failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, region)
}

type renameRequest struct {
	Name string `json:"name" validate:"required,max=200"`
}

func (h *Handler) rename(w http.ResponseWriter, r *http.Request) {
	var req renameRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid payload", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation failed", err.Error())
		return
	}
	if err := h.repo.Rename(r.Context(), chi.URLParam(r, "regionID"), req.Name); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not found", "region does not exist")
			return
		}
		h.logger.Error("rename region failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"status": "renamed"})
}

func (h *Handler) deactivate(w http.ResponseWriter, r *http.Request) {
	if err := h.repo.Deactivate(r.Context(), chi.URLParam(r, "regionID")); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not found", "region does not exist or is already inactive")
			return
		}
		h.logger.Error("deactivate region failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"status": "deactivated"})
}
