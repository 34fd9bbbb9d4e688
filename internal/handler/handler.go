// Package handler contains chi HTTP handlers that translate HTTP
// requests/responses to and from the service layer.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/Shivanand-hulikatti/booking-payments-api/internal/model"
	"github.com/Shivanand-hulikatti/booking-payments-api/internal/payment"
	"github.com/Shivanand-hulikatti/booking-payments-api/internal/repository"
	"github.com/Shivanand-hulikatti/booking-payments-api/internal/service"
)

const (
	maxBodyBytes    = 1 << 20  // 1 MB
	maxWebhookBytes = 64 << 10 // 64 KB

	signatureHeader = "Stripe-Signature"
)

// BookingService is the workflow the handlers drive.
type BookingService interface {
	Submit(ctx context.Context, clientKey string, req model.BookingRequest) (*model.Booking, error)
	Get(ctx context.Context, bookingID string) (*model.BookingDetails, error)
	CreatePaymentIntent(ctx context.Context, req model.PaymentIntentRequest) (*model.PaymentIntent, error)
	HandleWebhook(ctx context.Context, payload []byte, signature string) error
}

// Catalog serves the public service list.
type Catalog interface {
	Services(ctx context.Context) ([]model.Service, bool, error)
}

// BookingHandler holds all HTTP handlers for the booking API.
type BookingHandler struct {
	svc     BookingService
	catalog Catalog
	version string
	log     logrus.FieldLogger
	now     func() time.Time
}

// NewBookingHandler constructs a BookingHandler.
func NewBookingHandler(svc BookingService, catalog Catalog, version string, log logrus.FieldLogger) *BookingHandler {
	return &BookingHandler{svc: svc, catalog: catalog, version: version, log: log, now: time.Now}
}

// ─── Response shapes ──────────────────────────────────────────────────────────

type healthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

type indexResponse struct {
	Name      string   `json:"name"`
	Version   string   `json:"version"`
	Endpoints []string `json:"endpoints"`
}

type servicesResponse struct {
	Success bool            `json:"success"`
	Data    []model.Service `json:"data"`
	Cached  bool            `json:"cached,omitempty"`
}

type bookingSummary struct {
	ID            string `json:"id"`
	BookingID     string `json:"bookingId"`
	Status        string `json:"status"`
	ServiceName   string `json:"serviceName"`
	PreferredDate string `json:"preferredDate"`
}

type createBookingResponse struct {
	Success   bool           `json:"success"`
	Message   string         `json:"message"`
	BookingID string         `json:"bookingId"`
	Data      bookingSummary `json:"data"`
}

type bookingResponse struct {
	Success bool                  `json:"success"`
	Data    *model.BookingDetails `json:"data"`
}

type paymentIntentResponse struct {
	Success         bool   `json:"success"`
	ClientSecret    string `json:"clientSecret"`
	PaymentIntentID string `json:"paymentIntentId"`
}

type webhookResponse struct {
	Received bool `json:"received"`
}

// ─── Helper utilities ─────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, model.ErrorResponse{Error: msg})
}

func writeValidationError(w http.ResponseWriter, verr *service.ValidationError) {
	writeJSON(w, http.StatusBadRequest, model.ErrorResponse{
		Error:  strings.Join(verr.Errors, ", "),
		Errors: verr.Errors,
	})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(dst)
}

// clientKey identifies the caller for rate limiting. RealIP has already
// replaced RemoteAddr when a proxy header was present.
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// ─── Handlers ─────────────────────────────────────────────────────────────────

// Health handles GET /api/health
func (h *BookingHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "healthy",
		Timestamp: h.now().UTC().Format(time.RFC3339),
		Version:   h.version,
	})
}

// Index handles GET / and describes the available endpoints.
func (h *BookingHandler) Index(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, indexResponse{
		Name:    "booking-payments-api",
		Version: h.version,
		Endpoints: []string{
			"GET /api/health",
			"GET /api/services",
			"POST /api/bookings",
			"GET /api/bookings/{bookingId}",
			"POST /api/create-payment-intent",
			"POST /api/webhooks/stripe",
		},
	})
}

// ListServices handles GET /api/services
func (h *BookingHandler) ListServices(w http.ResponseWriter, r *http.Request) {
	services, cached, err := h.catalog.Services(r.Context())
	if err != nil {
		h.log.WithError(err).Error("list services failed")
		writeError(w, http.StatusInternalServerError, "Failed to retrieve services")
		return
	}
	writeJSON(w, http.StatusOK, servicesResponse{Success: true, Data: services, Cached: cached})
}

// CreateBooking handles POST /api/bookings
// Validates, rate limits and records a booking, then schedules the
// confirmation emails and CRM lead.
func (h *BookingHandler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	var req model.BookingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	booking, err := h.svc.Submit(r.Context(), clientKey(r), req)
	if err != nil {
		var verr *service.ValidationError
		switch {
		case errors.As(err, &verr):
			writeValidationError(w, verr)
		case errors.Is(err, service.ErrRateLimited):
			writeError(w, http.StatusTooManyRequests, "Too many requests. Please try again later.")
		default:
			h.log.WithError(err).Error("create booking failed")
			writeError(w, http.StatusInternalServerError, "Failed to create booking. Please try again.")
		}
		return
	}

	writeJSON(w, http.StatusCreated, createBookingResponse{
		Success:   true,
		Message:   "Booking created successfully",
		BookingID: booking.BookingID,
		Data: bookingSummary{
			ID:            booking.ID,
			BookingID:     booking.BookingID,
			Status:        booking.Status,
			ServiceName:   booking.ServiceName,
			PreferredDate: booking.PreferredDate,
		},
	})
}

// GetBooking handles GET /api/bookings/{bookingId}
func (h *BookingHandler) GetBooking(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "bookingId")

	booking, err := h.svc.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Booking not found")
			return
		}
		h.log.WithError(err).WithField("booking_id", id).Error("get booking failed")
		writeError(w, http.StatusInternalServerError, "Failed to retrieve booking")
		return
	}

	writeJSON(w, http.StatusOK, bookingResponse{Success: true, Data: booking})
}

// CreatePaymentIntent handles POST /api/create-payment-intent
func (h *BookingHandler) CreatePaymentIntent(w http.ResponseWriter, r *http.Request) {
	var req model.PaymentIntentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	intent, err := h.svc.CreatePaymentIntent(r.Context(), req)
	if err != nil {
		var verr *service.ValidationError
		if errors.As(err, &verr) {
			writeValidationError(w, verr)
			return
		}
		h.log.WithError(err).Error("create payment intent failed")
		writeError(w, http.StatusInternalServerError, "Failed to create payment intent")
		return
	}

	writeJSON(w, http.StatusOK, paymentIntentResponse{
		Success:         true,
		ClientSecret:    intent.ClientSecret,
		PaymentIntentID: intent.ID,
	})
}

// StripeWebhook handles POST /api/webhooks/stripe
// The raw body is verified against the Stripe-Signature header before any
// state is touched.
func (h *BookingHandler) StripeWebhook(w http.ResponseWriter, r *http.Request) {
	signature := r.Header.Get(signatureHeader)
	if signature == "" {
		writeError(w, http.StatusBadRequest, "Missing signature")
		return
	}

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Webhook error: "+err.Error())
		return
	}

	if err := h.svc.HandleWebhook(r.Context(), payload, signature); err != nil {
		switch {
		case errors.Is(err, payment.ErrSignatureInvalid), errors.Is(err, payment.ErrMalformedPayload):
			h.log.WithError(err).Warn("rejected webhook")
			writeError(w, http.StatusBadRequest, "Webhook error: "+err.Error())
		default:
			h.log.WithError(err).Error("webhook processing failed")
			writeError(w, http.StatusInternalServerError, "Failed to process webhook")
		}
		return
	}

	writeJSON(w, http.StatusOK, webhookResponse{Received: true})
}

// NotFound answers unmatched routes and methods.
func NotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, "Endpoint not found")
}

// Preflight answers OPTIONS requests that reach the router.
func Preflight(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}
