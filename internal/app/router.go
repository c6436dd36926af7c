package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/fleetgrid/fleetgrid/internal/auth"
	"github.com/fleetgrid/fleetgrid/internal/compliance"
	"github.com/fleetgrid/fleetgrid/internal/equipment"
	"github.com/fleetgrid/fleetgrid/internal/features"
	"github.com/fleetgrid/fleetgrid/internal/notifications"
	"github.com/fleetgrid/fleetgrid/internal/observability"
	"github.com/fleetgrid/fleetgrid/internal/projects"
	"github.com/fleetgrid/fleetgrid/internal/roles"
	"github.com/fleetgrid/fleetgrid/internal/shared"
	"github.com/fleetgrid/fleetgrid/internal/tenants"
	"github.com/fleetgrid/fleetgrid/internal/users"
	"github.com/fleetgrid/fleetgrid/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager
	RBAC           roles.Middleware

	AuthHandler          *auth.Handler
	TenantsHandler       *tenants.Handler
	EquipmentHandler     *equipment.Handler
	ProjectsHandler      *projects.Handler
	UsersHandler         *users.Handler
	NotificationsHandler *notifications.Handler
	ComplianceHandler    *compliance.Handler
	FeaturesHandler      *features.Handler
	JobHandler           *jobs.Handler

	Metrics *observability.Metrics
}

// NewRouter constructs the chi.Router with FleetGrid defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
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

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", params.AuthHandler.MountRoutes)

		r.Group(func(r chi.Router) {
			r.Use(params.RBAC.Resolve)

			r.Route("/tenant", params.TenantsHandler.MountRoutes)
			r.Route("/equipment", params.EquipmentHandler.MountRoutes)
			r.Route("/projects", params.ProjectsHandler.MountRoutes)
			r.Route("/users", params.UsersHandler.MountRoutes)
			r.Route("/notifications", params.NotificationsHandler.MountRoutes)
			r.Route("/compliance", params.ComplianceHandler.MountRoutes)
			r.Route("/features", params.FeaturesHandler.MountRoutes)
		})
	})

	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
