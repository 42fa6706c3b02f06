package dashboardhttp

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/lendconsole/dashboard/internal/platform/httpx"
)

// MountRoutes registers dashboard endpoints onto the router.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	limiter := httprate.Limit(10, time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			httpx.Problem(w, http.StatusTooManyRequests, "Too Many Requests", "export rate limit reached")
		}),
	)

	r.Route("/dashboard", func(r chi.Router) {
		r.Get("/trends", h.handleTrends)
		r.Get("/pairs/{kind}", h.handlePair)
		r.Group(func(gr chi.Router) {
			gr.Use(limiter)
			gr.Get("/trends.svg", h.handleTrendsSVG)
			gr.Get("/trends.csv", h.handleTrendsCSV)
		})

		r.Post("/widgets", h.handleCreateWidget)
		r.Route("/widgets/{id}", func(r chi.Router) {
			r.Get("/", h.handleGetWidget)
			r.Patch("/", h.handleUpdateWidget)
			r.Delete("/", h.handleDeleteWidget)
			r.Post("/refresh", h.handleRefreshWidget)
			r.Get("/chart.svg", h.handleWidgetSVG)
		})
	})
}
