// Package handlers wires the HTTP surface to the services.
package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mesalista/venue-checkin/internal/checkin"
	"github.com/mesalista/venue-checkin/internal/http/middleware"
	"github.com/mesalista/venue-checkin/internal/platform/cache"
	"github.com/mesalista/venue-checkin/internal/reservations"
	"github.com/mesalista/venue-checkin/internal/stream"
	"github.com/mesalista/venue-checkin/pkg/config"
)

type Handlers struct {
	checkinService     checkin.Service
	reservationService reservations.Service
	hub                *stream.Hub
	config             *config.Config
}

func New(
	checkinService checkin.Service,
	reservationService reservations.Service,
	hub *stream.Hub,
	cfg *config.Config,
) *Handlers {
	return &Handlers{
		checkinService:     checkinService,
		reservationService: reservationService,
		hub:                hub,
		config:             cfg,
	}
}

// Routes mounts the authenticated API. The rate limiter only wraps the scan
// endpoint; a stuck scanner hammering the API must not starve the dashboard.
func (h *Handlers) Routes(r chi.Router, limiter *cache.RateLimiter) {
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireSession(h.config.Auth.JWTSecret))

		r.With(middleware.RateLimit(limiter)).Post("/scan", h.Scan)
		r.Get("/events", h.Events)

		r.Route("/reservations", func(r chi.Router) {
			r.Post("/", h.CreateReservation)
			r.Get("/", h.ListReservations)
			r.Get("/stats", h.DayStats)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetReservation)
				r.Get("/qr", h.GetReservationQR)
				r.Patch("/", h.RescheduleReservation)
				r.Post("/complete", h.CompleteReservation)
				r.Delete("/", h.CancelReservation)
			})
		})
	})
}

func (h *Handlers) businessID(r *http.Request) string {
	return middleware.BusinessIDFrom(r.Context())
}
