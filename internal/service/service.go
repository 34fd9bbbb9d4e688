// Package service implements the booking workflow: validation, rate limiting,
// persistence, payment intent creation, webhook reconciliation and
// notification scheduling.
package service

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Shivanand-hulikatti/booking-payments-api/internal/model"
	"github.com/Shivanand-hulikatti/booking-payments-api/internal/payment"
	"github.com/Shivanand-hulikatti/booking-payments-api/internal/repository"
	"github.com/Shivanand-hulikatti/booking-payments-api/internal/validation"
)

var (
	// ErrRateLimited is returned when a client exceeded its submission budget.
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrPersistence is returned when booking or payment state could not be
	// written.
	ErrPersistence = errors.New("persistence failure")

	// ErrUpstream is returned when the payment gateway call failed.
	ErrUpstream = errors.New("upstream provider failure")
)

// ValidationError carries every problem found in a request.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Errors, "; ")
}

// BookingStore persists customers and bookings.
type BookingStore interface {
	UpsertCustomer(ctx context.Context, c model.Customer) (string, error)
	CreateBooking(ctx context.Context, b *model.Booking) error
	GetBooking(ctx context.Context, bookingID string) (*model.BookingDetails, error)
	UpdatePaymentStatus(ctx context.Context, bookingID, status, intentID string) (bool, error)
}

// RateLimiter decides whether a client may submit another booking.
type RateLimiter interface {
	Allow(ctx context.Context, clientKey string) (bool, error)
}

// PaymentGateway creates intents and verifies webhook deliveries.
type PaymentGateway interface {
	CreateIntent(ctx context.Context, req payment.IntentRequest) (*model.PaymentIntent, error)
	ParseWebhook(payload []byte, signature string) (*model.PaymentEvent, error)
}

// Notifier schedules a notification without waiting for it.
type Notifier interface {
	Notify(ctx context.Context, n model.Notification)
}

const (
	bookingIDAttempts = 3
	defaultCurrency   = "usd"
)

// BookingService orchestrates the booking and payment lifecycle.
type BookingService struct {
	store     BookingStore
	limiter   RateLimiter
	gateway   PaymentGateway
	notifier  Notifier
	validator *validation.Validator
	log       logrus.FieldLogger
	now       func() time.Time
}

// NewBookingService constructs a BookingService with its dependencies.
func NewBookingService(
	store BookingStore,
	limiter RateLimiter,
	gateway PaymentGateway,
	notifier Notifier,
	validator *validation.Validator,
	log logrus.FieldLogger,
) *BookingService {
	return &BookingService{
		store:     store,
		limiter:   limiter,
		gateway:   gateway,
		notifier:  notifier,
		validator: validator,
		log:       log,
		now:       time.Now,
	}
}

// Submit validates and records a booking, then schedules the confirmation.
// The returned booking is pending and unpaid.
func (s *BookingService) Submit(ctx context.Context, clientKey string, req model.BookingRequest) (*model.Booking, error) {
	if res := s.validator.Booking(req); !res.Valid {
		return nil, &ValidationError{Errors: res.Errors}
	}

	allowed, err := s.limiter.Allow(ctx, clientKey)
	if err != nil {
		// The counter store being down should not stop bookings.
		s.log.WithError(err).WithField("client", clientKey).Warn("rate limiter unavailable, allowing request")
		allowed = true
	}
	if !allowed {
		return nil, ErrRateLimited
	}

	customer := model.Customer{
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		Phone:        strings.TrimSpace(req.Phone),
		BusinessName: strings.TrimSpace(req.BusinessName),
	}
	customerID, err := s.store.UpsertCustomer(ctx, customer)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	date, _ := validation.ParseDate(req.PreferredDate)
	booking := &model.Booking{
		CustomerID:    customerID,
		ServiceID:     strings.TrimSpace(req.ServiceID),
		ServiceName:   strings.TrimSpace(req.ServiceName),
		ServicePrice:  req.ServicePrice.String(),
		PreferredDate: date.Format(time.DateOnly),
		PreferredTime: strings.TrimSpace(req.PreferredTime),
		Message:       strings.TrimSpace(req.Message),
		Status:        model.BookingStatusPending,
		PaymentStatus: model.PaymentStatusUnpaid,
	}

	for attempt := 1; ; attempt++ {
		booking.BookingID = NewBookingID(s.now())
		err = s.store.CreateBooking(ctx, booking)
		if !errors.Is(err, repository.ErrDuplicateBookingID) || attempt == bookingIDAttempts {
			break
		}
		s.log.WithField("booking_id", booking.BookingID).Warn("booking id collision, regenerating")
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	s.log.WithFields(logrus.Fields{
		"booking_id":  booking.BookingID,
		"customer_id": customerID,
		"service_id":  booking.ServiceID,
	}).Info("booking created")

	s.notifier.Notify(ctx, model.Notification{
		Kind:          model.NotifyBookingConfirmation,
		BookingID:     booking.BookingID,
		Email:         customer.Email,
		FirstName:     customer.FirstName,
		LastName:      customer.LastName,
		Phone:         customer.Phone,
		BusinessName:  customer.BusinessName,
		ServiceID:     booking.ServiceID,
		ServiceName:   booking.ServiceName,
		ServicePrice:  booking.ServicePrice,
		PreferredDate: booking.PreferredDate,
		PreferredTime: booking.PreferredTime,
		Message:       booking.Message,
	})

	return booking, nil
}

// Get returns a booking with its customer's contact fields.
func (s *BookingService) Get(ctx context.Context, bookingID string) (*model.BookingDetails, error) {
	bookingID = strings.TrimSpace(bookingID)
	if bookingID == "" {
		return nil, repository.ErrNotFound
	}
	d, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("get booking: %w", err)
	}
	return d, nil
}

// CreatePaymentIntent validates the request and creates a gateway intent
// carrying the booking id in its metadata.
func (s *BookingService) CreatePaymentIntent(ctx context.Context, req model.PaymentIntentRequest) (*model.PaymentIntent, error) {
	if res := s.validator.Payment(req); !res.Valid {
		return nil, &ValidationError{Errors: res.Errors}
	}

	amount, _ := validation.ParseAmount(req.Amount.String())
	minor := int64(math.Round(amount * 100))
	if minor <= 0 {
		return nil, &ValidationError{Errors: []string{"Valid amount is required"}}
	}

	currency := strings.ToLower(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = defaultCurrency
	}
	email := strings.ToLower(strings.TrimSpace(req.CustomerEmail))
	bookingID := strings.TrimSpace(req.BookingID)

	intent, err := s.gateway.CreateIntent(ctx, payment.IntentRequest{
		AmountMinor:  minor,
		Currency:     currency,
		ReceiptEmail: email,
		Metadata: map[string]string{
			payment.MetaBookingID:     bookingID,
			payment.MetaServiceID:     strings.TrimSpace(req.ServiceID),
			payment.MetaServiceName:   strings.TrimSpace(req.ServiceName),
			payment.MetaCustomerEmail: email,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	s.log.WithFields(logrus.Fields{
		"booking_id":        bookingID,
		"payment_intent_id": intent.ID,
		"amount":            minor,
		"currency":          currency,
	}).Info("payment intent created")
	return intent, nil
}

// HandleWebhook verifies and applies one gateway event. Signature and parse
// failures leave all state untouched. A succeeded payment marks the booking
// paid; repeated deliveries do not notify twice.
func (s *BookingService) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	ev, err := s.gateway.ParseWebhook(payload, signature)
	if err != nil {
		return err
	}

	log := s.log.WithFields(logrus.Fields{
		"event_id":          ev.ID,
		"event_type":        ev.Type,
		"booking_id":        ev.BookingID,
		"payment_intent_id": ev.IntentID,
	})

	switch ev.Kind {
	case model.PaymentSucceeded:
		return s.paymentSucceeded(ctx, log, ev)
	case model.PaymentFailed:
		log.WithField("reason", ev.FailureReason).Info("payment failed")
		s.notifier.Notify(ctx, paymentNotification(model.NotifyPaymentFailed, ev))
	default:
		log.Debug("ignoring webhook event")
	}
	return nil
}

func (s *BookingService) paymentSucceeded(ctx context.Context, log logrus.FieldLogger, ev *model.PaymentEvent) error {
	if ev.BookingID == "" {
		log.Warn("payment succeeded without booking id metadata")
		s.notifier.Notify(ctx, paymentNotification(model.NotifyPaymentConfirmation, ev))
		return nil
	}

	changed, err := s.store.UpdatePaymentStatus(ctx, ev.BookingID, model.PaymentStatusPaid, ev.IntentID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		log.Warn("payment succeeded for unknown booking")
		return nil
	case err != nil:
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	if !changed {
		log.Info("duplicate payment confirmation ignored")
		return nil
	}
	log.Info("booking marked paid")
	s.notifier.Notify(ctx, paymentNotification(model.NotifyPaymentConfirmation, ev))
	return nil
}

func paymentNotification(kind model.NotificationKind, ev *model.PaymentEvent) model.Notification {
	return model.Notification{
		Kind:            kind,
		BookingID:       ev.BookingID,
		Email:           ev.CustomerEmail,
		ServiceName:     ev.ServiceName,
		PaymentIntentID: ev.IntentID,
		AmountMinor:     ev.AmountMinor,
		Currency:        ev.Currency,
		Reason:          ev.FailureReason,
	}
}

const bookingSuffixLen = 9

// NewBookingID returns BOOK-<epoch-ms>-<9 uppercase base36 chars>.
// Uniqueness is enforced by the store; the suffix keeps collisions rare.
func NewBookingID(now time.Time) string {
	u := uuid.New()
	n := binary.BigEndian.Uint64(u[8:]) % pow36(bookingSuffixLen)
	suffix := strings.ToUpper(strconv.FormatUint(n, 36))
	if len(suffix) < bookingSuffixLen {
		suffix = strings.Repeat("0", bookingSuffixLen-len(suffix)) + suffix
	}
	return fmt.Sprintf("BOOK-%d-%s", now.UnixMilli(), suffix)
}

func pow36(n int) uint64 {
	p := uint64(1)
	for i := 0; i < n; i++ {
		p *= 36
	}
	return p
}
