// Package payment adapts the Stripe API: it creates payment intents and
// verifies inbound webhook events.
package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/paymentintent"
	"github.com/stripe/stripe-go/v81/webhook"

	"github.com/Shivanand-hulikatti/booking-payments-api/internal/model"
)

var (
	// ErrSignatureInvalid is returned when the signature header is missing,
	// does not match, or is outside the replay tolerance.
	ErrSignatureInvalid = errors.New("invalid webhook signature")

	// ErrMalformedPayload is returned when a verified body cannot be parsed.
	ErrMalformedPayload = errors.New("malformed webhook payload")
)

// Metadata keys attached to every intent.
const (
	MetaBookingID     = "bookingId"
	MetaServiceID     = "serviceId"
	MetaServiceName   = "serviceName"
	MetaCustomerEmail = "customerEmail"
)

// IntentRequest describes a payment intent to create.
type IntentRequest struct {
	AmountMinor  int64
	Currency     string
	ReceiptEmail string
	Metadata     map[string]string
}

// Config configures the Stripe adapter.
type Config struct {
	SecretKey     string
	WebhookSecret string
	// Tolerance is the maximum age of a webhook signature timestamp.
	Tolerance time.Duration
	// APIURL overrides the Stripe API base URL. Empty means the default.
	APIURL     string
	HTTPClient *http.Client
}

// Stripe talks to the Stripe API.
type Stripe struct {
	intents       *paymentintent.Client
	webhookSecret string
	tolerance     time.Duration
	log           logrus.FieldLogger
}

// NewStripe constructs a Stripe adapter with its own backend, so no package
// level Stripe state is touched.
func NewStripe(cfg Config, log logrus.FieldLogger) *Stripe {
	if cfg.Tolerance <= 0 {
		cfg.Tolerance = webhook.DefaultTolerance
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}

	backendCfg := &stripe.BackendConfig{
		HTTPClient:        cfg.HTTPClient,
		LeveledLogger:     log,
		MaxNetworkRetries: stripe.Int64(2),
		EnableTelemetry:   stripe.Bool(false),
	}
	if cfg.APIURL != "" {
		backendCfg.URL = stripe.String(strings.TrimRight(cfg.APIURL, "/"))
		backendCfg.MaxNetworkRetries = stripe.Int64(0)
	}

	return &Stripe{
		intents: &paymentintent.Client{
			B:   stripe.GetBackendWithConfig(stripe.APIBackend, backendCfg),
			Key: cfg.SecretKey,
		},
		webhookSecret: cfg.WebhookSecret,
		tolerance:     cfg.Tolerance,
		log:           log,
	}
}

// CreateIntent creates a payment intent with automatic payment methods.
func (s *Stripe) CreateIntent(ctx context.Context, req IntentRequest) (*model.PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(req.AmountMinor),
		Currency: stripe.String(req.Currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	if req.ReceiptEmail != "" {
		params.ReceiptEmail = stripe.String(req.ReceiptEmail)
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}
	params.Context = ctx

	pi, err := s.intents.New(params)
	if err != nil {
		return nil, fmt.Errorf("create payment intent: %w", err)
	}
	return &model.PaymentIntent{ID: pi.ID, ClientSecret: pi.ClientSecret}, nil
}

// ParseWebhook verifies the Stripe-Signature header against the raw body and
// reduces the event to a model.PaymentEvent.
func (s *Stripe) ParseWebhook(payload []byte, signature string) (*model.PaymentEvent, error) {
	if strings.TrimSpace(signature) == "" {
		return nil, ErrSignatureInvalid
	}

	event, err := webhook.ConstructEventWithOptions(payload, signature, s.webhookSecret, webhook.ConstructEventOptions{
		Tolerance:                s.tolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		if errors.Is(err, webhook.ErrNotSigned) ||
			errors.Is(err, webhook.ErrInvalidHeader) ||
			errors.Is(err, webhook.ErrNoValidSignature) ||
			errors.Is(err, webhook.ErrTooOld) {
			return nil, ErrSignatureInvalid
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	ev := &model.PaymentEvent{ID: event.ID, Type: string(event.Type)}
	switch event.Type {
	case stripe.EventTypePaymentIntentSucceeded:
		ev.Kind = model.PaymentSucceeded
	case stripe.EventTypePaymentIntentPaymentFailed:
		ev.Kind = model.PaymentFailed
	default:
		ev.Kind = model.PaymentIgnored
		return ev, nil
	}

	if event.Data == nil || len(event.Data.Raw) == 0 {
		return nil, fmt.Errorf("%w: event has no data object", ErrMalformedPayload)
	}
	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if pi.ID == "" {
		return nil, fmt.Errorf("%w: payment intent has no id", ErrMalformedPayload)
	}

	ev.IntentID = pi.ID
	ev.AmountMinor = pi.Amount
	ev.Currency = string(pi.Currency)
	ev.BookingID = pi.Metadata[MetaBookingID]
	ev.ServiceName = pi.Metadata[MetaServiceName]
	ev.CustomerEmail = pi.Metadata[MetaCustomerEmail]
	if ev.CustomerEmail == "" {
		ev.CustomerEmail = pi.ReceiptEmail
	}
	if pi.LastPaymentError != nil {
		ev.FailureReason = pi.LastPaymentError.Msg
	}
	return ev, nil
}
