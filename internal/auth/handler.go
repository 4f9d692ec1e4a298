package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/sevatrack/sevatrack/internal/platform/httpx"
	"github.com/sevatrack/sevatrack/internal/shared"
)

// Handler wires HTTP endpoints for the OTP login flow.
type Handler struct {
	logger         *slog.Logger
	service        *Service
	sessionManager *shared.SessionManager
	csrfManager    *shared.CSRFManager
	validator      *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, sessions *shared.SessionManager, csrf *shared.CSRFManager) *Handler {
	return &Handler{
		logger:         logger,
		service:        service,
		sessionManager: sessions,
		csrfManager:    csrf,
		validator:      validator.New(),
	}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/otp/request", h.requestOTP)
	r.Post("/otp/verify", h.verifyOTP)
	r.Post("/logout", h.logout)
}

type otpRequest struct {
	Phone string `json:"phone" validate:"required,e164"`
}

type otpVerifyRequest struct {
	Phone string `json:"phone" validate:"required,e164"`
	Code  string `json:"code" validate:"required,len=6,numeric"`
}

type sessionResponse struct {
	UserID    int64  `json:"user_id"`
	Name      string `json:"name"`
	Role      string `json:"role"`
	CSRFToken string `json:"csrf_token"`
}

func (h *Handler) requestOTP(w http.ResponseWriter, r *http.Request) {
	var req otpRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid payload", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation failed", "phone must be in E.164 format")
		return
	}

	if err := h.service.RequestOTP(r.Context(), req.Phone, clientIP(r)); err != nil {
		h.respondError(w, "otp request failed", err)
		return
	}
	// Identical response whether or not the phone is registered.
	httpx.JSON(w, http.StatusAccepted, map[string]any{"status": "sent"})
}

func (h *Handler) verifyOTP(w http.ResponseWriter, r *http.Request) {
	var req otpVerifyRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid payload", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation failed", "phone and 6-digit code required")
		return
	}

	user, err := h.service.VerifyOTP(r.Context(), req.Phone, req.Code, clientIP(r))
	if err != nil {
		h.respondError(w, "otp verify failed", err)
		return
	}

	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		h.logger.Error("no session in context on verify")
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	sess.SetIdentity(shared.Identity{UserID: user.ID, Role: user.Role})
	token, err := h.csrfManager.EnsureToken(r.Context(), sess)
	if err != nil {
		h.logger.Error("csrf token issue failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}

	expiresAt := time.Now().Add(h.sessionManager.TTL())
	if err := h.service.RegisterSession(r.Context(), sess.ID, user.ID, expiresAt, clientIP(r), r.UserAgent()); err != nil {
		h.logger.Warn("session audit write failed", slog.Any("error", err))
	}

	httpx.JSON(w, http.StatusOK, sessionResponse{
		UserID:    user.ID,
		Name:      user.Name,
		Role:      user.Role,
		CSRFToken: token,
	})
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess != nil && sess.ID != "" {
		if err := h.service.RemoveSession(r.Context(), sess.ID); err != nil {
			h.logger.Warn("session audit delete failed", slog.Any("error", err))
		}
	}
	h.sessionManager.Destroy(sess)
	httpx.JSON(w, http.StatusOK, map[string]any{"status": "logged_out"})
}

func (h *Handler) respondError(w http.ResponseWriter, msg string, err error) {
	var limited *RateLimitedError
	switch {
	case errors.As(err, &limited):
		retry := int(limited.RetryAfter / time.Second)
		if retry < 1 {
			retry = 1
		}
		w.Header().Set("Retry-After", strconv.Itoa(retry))
		httpx.Problem(w, http.StatusTooManyRequests, "Too many attempts", "wait before retrying")
	case errors.Is(err, shared.ErrTooManyAttempts):
		httpx.Problem(w, http.StatusTooManyRequests, "Too many attempts", "wait before retrying")
	case errors.Is(err, shared.ErrInvalidOTP):
		httpx.Problem(w, http.StatusUnauthorized, "Invalid code", "the code is wrong or expired")
	default:
		h.logger.Error(msg, slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

func clientIP(r *http.Request) string {
	return r.RemoteAddr
}
