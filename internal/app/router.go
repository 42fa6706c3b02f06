package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	dashboardhttp "github.com/lendconsole/dashboard/internal/dashboard/http"
	"github.com/lendconsole/dashboard/internal/observability"
	"github.com/lendconsole/dashboard/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	DashboardHandler *dashboardhttp.Handler
	JobHandler       *jobs.Handler
	Metrics          *observability.Metrics
}

// NewRouter constructs the chi.Router with service defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}

	if params.DashboardHandler != nil {
		tokenHash := ""
		if params.Config != nil {
			tokenHash = params.Config.APITokenHash
		}
		r.Group(func(r chi.Router) {
			r.Use(TokenAuth(tokenHash, params.Logger))
			params.DashboardHandler.MountRoutes(r)
		})
	}

	return r
}
