package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/meridian-erp/meridian-erp/internal/auth"
	"github.com/meridian-erp/meridian-erp/internal/authcache"
	"github.com/meridian-erp/meridian-erp/internal/clients"
	"github.com/meridian-erp/meridian-erp/internal/departments"
	"github.com/meridian-erp/meridian-erp/internal/leave"
	"github.com/meridian-erp/meridian-erp/internal/notifications"
	"github.com/meridian-erp/meridian-erp/internal/observability"
	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
	"github.com/meridian-erp/meridian-erp/internal/procurement"
	"github.com/meridian-erp/meridian-erp/internal/roles"
	"github.com/meridian-erp/meridian-erp/jobs"
)

// Guard URLs for the permission-gated route groups. Each must exist as a
// permission row; unknown URLs are denied by the authorizer.
const (
	GuardClients     = "/clients"
	GuardRoles       = "/roles"
	GuardDepartments = "/departments"
	GuardLeave       = "/leave"
	GuardProcurement = "/procurement"
	GuardAdminCache  = "/admin/cache"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger        *slog.Logger
	Config        *Config
	Metrics       *observability.Metrics
	Authenticator *Authenticator
	Authorizer    *Authorizer
	Cache         *authcache.Coordinator

	AuthHandler          *auth.Handler
	ClientsHandler       *clients.Handler
	RolesHandler         *roles.Handler
	DepartmentsHandler   *departments.Handler
	LeaveHandler         *leave.Handler
	ProcurementHandler   *procurement.Handler
	NotificationsHandler *notifications.Handler
	JobHandler           *jobs.Handler
}

// NewRouter constructs the chi.Router.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Route("/auth", params.AuthHandler.MountRoutes)

	r.Group(func(r chi.Router) {
		r.Use(params.Authenticator.Middleware)

		r.Route("/clients", func(r chi.Router) {
			r.Use(params.Authorizer.Require(GuardClients))
			params.ClientsHandler.MountRoutes(r)
		})
		r.Route("/roles", func(r chi.Router) {
			r.Use(params.Authorizer.Require(GuardRoles))
			params.RolesHandler.MountRoutes(r)
		})
		r.Route("/departments", func(r chi.Router) {
			r.Use(params.Authorizer.Require(GuardDepartments))
			params.DepartmentsHandler.MountRoutes(r)
		})
		r.Route("/leave", func(r chi.Router) {
			r.Use(params.Authorizer.Require(GuardLeave))
			params.LeaveHandler.MountRoutes(r)
		})
		r.Route("/procurement", func(r chi.Router) {
			r.Use(params.Authorizer.Require(GuardProcurement))
			params.ProcurementHandler.MountRoutes(r)
		})

		// Notifications are the identity's own data; authentication alone
		// is sufficient.
		r.Route("/notifications", params.NotificationsHandler.MountRoutes)

		r.Route("/admin/cache", func(r chi.Router) {
			r.Use(params.Authorizer.Require(GuardAdminCache))
			r.Post("/refresh", refreshAll(params))
			r.Post("/{name}/refresh", refreshOne(params))
		})
	})

	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}

	return r
}

func refreshAll(params RouterParams) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := params.Cache.RefreshAll(r.Context()); err != nil {
			params.Logger.Error("cache refresh all", slog.Any("error", err))
			httpx.RespondError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func refreshOne(params RouterParams) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")
		if err := params.Cache.Refresh(r.Context(), name); err != nil {
			httpx.RespondError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
