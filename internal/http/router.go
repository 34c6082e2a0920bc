package http

import (
	"crypto/rsa"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robertarktes/hotel-reservations/internal/idempotency"
	"github.com/robertarktes/hotel-reservations/internal/observability"
	"github.com/robertarktes/hotel-reservations/internal/rateLimit"
)

func SetupRouter(h *Handlers, logger observability.Logger, jwtKey *rsa.PublicKey, rl *rateLimit.RateLimiter, idemp *idempotency.Idempotency) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(RequestIDMiddleware)
	r.Use(LoggerMiddleware(logger))
	r.Use(TracingMiddleware)
	r.Use(MetricsMiddleware)

	r.Get("/v1/healthz", h.Healthz)
	r.Get("/v1/readyz", h.Readyz)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	// Provider callbacks authenticate by signature, not by token.
	r.Post("/v1/payments/momo/ipn", h.MoMoIPN)
	r.Get("/v1/payments/momo/return", h.MoMoReturn)
	r.Get("/v1/payments/vnpay/ipn", h.VNPayIPN)
	r.Get("/v1/payments/vnpay/return", h.VNPayReturn)

	r.Group(func(r chi.Router) {
		r.Use(RateLimitMiddleware(rl, logger))
		r.Get("/v1/hotels/{hotelID}/rooms/available", h.AvailableRooms)
		r.Get("/v1/rooms/{roomID}/unavailable-dates", h.UnavailableDates)
	})

	r.Group(func(r chi.Router) {
		r.Use(JWTMiddleware(jwtKey, logger))
		r.Use(RateLimitMiddleware(rl, logger))

		r.With(IdempotencyMiddleware(idemp, logger)).Post("/v1/bookings", h.CreateBooking)
		r.Get("/v1/bookings/{id}", h.GetBooking)
		r.Put("/v1/bookings/{id}", h.UpdateBooking)
		r.Post("/v1/bookings/{id}/cancel", h.CancelBooking)
		r.Patch("/v1/bookings/{id}/status", h.ChangeStatus)
		r.Post("/v1/bookings/bulk/soft-delete", h.SoftDeleteBookings)
		r.Post("/v1/bookings/bulk/restore", h.RestoreBookings)
		r.Post("/v1/bookings/bulk/delete", h.PermanentDeleteBookings)
		r.Post("/v1/payments", h.InitiatePayment)
	})

	return r
}
