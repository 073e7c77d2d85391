package routes

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"gigchain/core"
	"gigchain/gateway/middleware"
)

type Config struct {
	Node          *core.Node
	Authenticator *middleware.Authenticator
	Logger        *slog.Logger
	CORS          middleware.CORSConfig
}

// New assembles the REST gateway. Reads are open; every state transition
// sits behind the authenticator, which binds the caller identity used for
// ownership checks downstream.
func New(cfg Config) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.CORS(cfg.CORS))
	r.Use(middleware.RequestID(cfg.Logger))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	api := &marketplaceRoutes{node: cfg.Node}

	r.Route("/v1", func(v1 chi.Router) {
		v1.Get("/jobs/{id}", api.getJob)
		v1.Get("/jobs/{id}/vault", api.getVaultBalance)
		v1.Get("/applications/{id}", api.getApplication)
		v1.Get("/stats/{address}", api.getStats)
		v1.Get("/accounts/{address}", api.getAccount)

		v1.Group(func(authed chi.Router) {
			if cfg.Authenticator != nil {
				authed.Use(cfg.Authenticator.Middleware())
			}
			authed.Post("/jobs", api.postJob)
			authed.Post("/jobs/{id}/cancel", api.cancelJob)
			authed.Post("/jobs/{id}/applications", api.apply)
			authed.Post("/applications/{id}/approve", api.approveApplication)
			authed.Post("/applications/{id}/submit", api.submitWork)
			authed.Post("/applications/{id}/review", api.reviewSubmission)
		})
	})

	return r
}
