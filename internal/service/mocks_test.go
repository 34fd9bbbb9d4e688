package service

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/Shivanand-hulikatti/booking-payments-api/internal/model"
	"github.com/Shivanand-hulikatti/booking-payments-api/internal/payment"
)

type mockStore struct{ mock.Mock }

func (m *mockStore) UpsertCustomer(ctx context.Context, c model.Customer) (string, error) {
	args := m.Called(ctx, c)
	return args.String(0), args.Error(1)
}

func (m *mockStore) CreateBooking(ctx context.Context, b *model.Booking) error {
	return m.Called(ctx, b).Error(0)
}

func (m *mockStore) GetBooking(ctx context.Context, bookingID string) (*model.BookingDetails, error) {
	args := m.Called(ctx, bookingID)
	d, _ := args.Get(0).(*model.BookingDetails)
	return d, args.Error(1)
}

func (m *mockStore) UpdatePaymentStatus(ctx context.Context, bookingID, status, intentID string) (bool, error) {
	args := m.Called(ctx, bookingID, status, intentID)
	return args.Bool(0), args.Error(1)
}

type mockLimiter struct{ mock.Mock }

func (m *mockLimiter) Allow(ctx context.Context, clientKey string) (bool, error) {
	args := m.Called(ctx, clientKey)
	return args.Bool(0), args.Error(1)
}

type mockGateway struct{ mock.Mock }

func (m *mockGateway) CreateIntent(ctx context.Context, req payment.IntentRequest) (*model.PaymentIntent, error) {
	args := m.Called(ctx, req)
	pi, _ := args.Get(0).(*model.PaymentIntent)
	return pi, args.Error(1)
}

func (m *mockGateway) ParseWebhook(payload []byte, signature string) (*model.PaymentEvent, error) {
	args := m.Called(payload, signature)
	ev, _ := args.Get(0).(*model.PaymentEvent)
	return ev, args.Error(1)
}

// recordingNotifier captures scheduled notifications.
type recordingNotifier struct {
	mu  sync.Mutex
	got []model.Notification
}

func (r *recordingNotifier) Notify(_ context.Context, n model.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, n)
}

func (r *recordingNotifier) all() []model.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.Notification(nil), r.got...)
}
