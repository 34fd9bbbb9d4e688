package handler

import (
	"net/http"
	"net/netip"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
)

const webhookPath = "/api/webhooks/stripe"

// NewRouter builds the chi router for the booking API. Forwarding headers
// are honoured only for requests arriving from trustedProxies.
func NewRouter(h *BookingHandler, trustedProxies []netip.Prefix, log logrus.FieldLogger) http.Handler {
	r := chi.NewRouter()

	// Global middleware stack
	r.Use(chimiddleware.RequestID) // attach request IDs
	r.Use(RealIP(trustedProxies))  // trust X-Forwarded-For from known proxies
	r.Use(Logger(log))             // structured access log
	r.Use(Recoverer(log))          // recover from panics, return 500
	r.Use(CORS(webhookPath))       // permissive CORS except gateway callbacks

	r.NotFound(NotFound)
	r.MethodNotAllowed(NotFound)

	r.Options("/*", Preflight)
	r.Get("/", h.Index)

	r.Route("/api", func(r chi.Router) {
		r.Options("/*", Preflight)
		r.Get("/health", h.Health)
		r.Get("/services", h.ListServices)
		r.Post("/bookings", h.CreateBooking)
		r.Get("/bookings/{bookingId}", h.GetBooking)
		r.Post("/create-payment-intent", h.CreatePaymentIntent)
		r.Post("/webhooks/stripe", h.StripeWebhook)
	})

	return r
}
