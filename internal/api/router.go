package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Cupcake-Legend/landchain-chaincode/internal/config"
	"github.com/Cupcake-Legend/landchain-chaincode/internal/registry"
)

// NewRouter creates the HTTP router with all v1 endpoints.
func NewRouter(svc *registry.Service, hub *registry.Hub, cfg config.Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)

	h := &handlers{svc: svc, hub: hub, maxBody: cfg.MaxBodyBytes}

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(30 * time.Second))

		r.Get("/v1/health", h.GetHealth)
		r.Get("/v1/meta", h.GetMeta)

		r.Post("/v1/transitions", h.PostTransition)

		r.Route("/v1/certificates", func(r chi.Router) {
			r.Get("/", h.ListCertificates)
			r.Get("/{certHash}", h.GetCertificate)
			r.Get("/{certHash}/latest", h.GetCertificateLatest)
			r.Get("/{certHash}/history", h.GetCertificateHistory)
		})
	})

	// The event stream is long-lived and must not run under the request
	// timeout.
	r.Get("/v1/events", h.GetEvents)

	return r
}

type handlers struct {
	svc     *registry.Service
	hub     *registry.Hub
	maxBody int64
}
