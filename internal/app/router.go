package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/sevatrack/sevatrack/internal/auth"
	"github.com/sevatrack/sevatrack/internal/beneficiaries"
	"github.com/sevatrack/sevatrack/internal/donations"
	"github.com/sevatrack/sevatrack/internal/observability"
	"github.com/sevatrack/sevatrack/internal/regions"
	"github.com/sevatrack/sevatrack/internal/schemes"
	"github.com/sevatrack/sevatrack/internal/shared"
	"github.com/sevatrack/sevatrack/internal/users"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager
	CSRFManager    *shared.CSRFManager

	AuthHandler          *auth.Handler
	UsersHandler         *users.Handler
	RegionsHandler       *regions.Handler
	BeneficiariesHandler *beneficiaries.Handler
	SchemesHandler       *schemes.Handler
	DonationsHandler     *donations.Handler

	Metrics *observability.Metrics
}

// NewRouter constructs the chi.Router with SevaTrack defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/auth", params.AuthHandler.MountRoutes)
	if params.UsersHandler != nil {
		r.Route("/users", params.UsersHandler.MountRoutes)
	}
	if params.RegionsHandler != nil {
		r.Route("/regions", params.RegionsHandler.MountRoutes)
	}
	if params.BeneficiariesHandler != nil {
		r.Route("/beneficiaries", params.BeneficiariesHandler.MountRoutes)
	}
	if params.SchemesHandler != nil {
		r.Route("/schemes", params.SchemesHandler.MountRoutes)
	}
	if params.DonationsHandler != nil {
		r.Route("/donations", params.DonationsHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
