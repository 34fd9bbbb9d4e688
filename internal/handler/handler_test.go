package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Shivanand-hulikatti/booking-payments-api/internal/logging"
	"github.com/Shivanand-hulikatti/booking-payments-api/internal/model"
	"github.com/Shivanand-hulikatti/booking-payments-api/internal/payment"
	"github.com/Shivanand-hulikatti/booking-payments-api/internal/repository"
	"github.com/Shivanand-hulikatti/booking-payments-api/internal/service"
)

type mockService struct{ mock.Mock }

func (m *mockService) Submit(ctx context.Context, clientKey string, req model.BookingRequest) (*model.Booking, error) {
	args := m.Called(ctx, clientKey, req)
	b, _ := args.Get(0).(*model.Booking)
	return b, args.Error(1)
}

func (m *mockService) Get(ctx context.Context, bookingID string) (*model.BookingDetails, error) {
	args := m.Called(ctx, bookingID)
	d, _ := args.Get(0).(*model.BookingDetails)
	return d, args.Error(1)
}

func (m *mockService) CreatePaymentIntent(ctx context.Context, req model.PaymentIntentRequest) (*model.PaymentIntent, error) {
	args := m.Called(ctx, req)
	pi, _ := args.Get(0).(*model.PaymentIntent)
	return pi, args.Error(1)
}

func (m *mockService) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	return m.Called(ctx, payload, signature).Error(0)
}

type stubCatalog struct {
	services []model.Service
	cached   bool
	err      error
}

func (s stubCatalog) Services(context.Context) ([]model.Service, bool, error) {
	return s.services, s.cached, s.err
}

type panicService struct{ BookingService }

func (panicService) Get(context.Context, string) (*model.BookingDetails, error) {
	panic("boom")
}

func newTestRouter(t *testing.T, svc BookingService, cat Catalog) http.Handler {
	t.Helper()
	if m, ok := svc.(*mockService); ok {
		t.Cleanup(func() { m.AssertExpectations(t) })
	}
	return NewRouter(NewBookingHandler(svc, cat, "9.9.9", logging.Discard()), testProxies, logging.Discard())
}

// testProxies trusts httptest's default peer, 192.0.2.1.
var testProxies = []netip.Prefix{netip.MustParsePrefix("192.0.2.0/24")}

func do(h http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

// ─── Meta endpoints ───────────────────────────────────────────────────────────

func TestHealth(t *testing.T) {
	h := newTestRouter(t, &mockService{}, stubCatalog{})

	rec := do(h, http.MethodGet, "/api/health", "", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "9.9.9", body["version"])
	assert.NotEmpty(t, body["timestamp"])
}

func TestIndex(t *testing.T) {
	h := newTestRouter(t, &mockService{}, stubCatalog{})

	rec := do(h, http.MethodGet, "/", "", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "9.9.9", body["version"])
	assert.Contains(t, body["endpoints"], "POST /api/bookings")
}

func TestListServices(t *testing.T) {
	services := []model.Service{{ID: "s1", Name: "Fix", Deliverables: []string{"a"}}}

	rec := do(newTestRouter(t, &mockService{}, stubCatalog{services: services, cached: true}), http.MethodGet, "/api/services", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, true, body["cached"])
	assert.Len(t, body["data"], 1)

	rec = do(newTestRouter(t, &mockService{}, stubCatalog{services: services}), http.MethodGet, "/api/services", "", nil)
	_, present := decode(t, rec)["cached"]
	assert.False(t, present)

	rec = do(newTestRouter(t, &mockService{}, stubCatalog{err: errors.New("db down")}), http.MethodGet, "/api/services", "", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Failed to retrieve services", decode(t, rec)["error"])
}

// ─── Bookings ─────────────────────────────────────────────────────────────────

const bookingBody = `{"firstName":"Jo","lastName":"Li","email":"jo@x.com","phone":"5551234567",
	"serviceId":"s1","serviceName":"Fix","servicePrice":175,"preferredDate":"2099-01-01"}`

func TestCreateBooking_Created(t *testing.T) {
	svc := &mockService{}
	svc.On("Submit", mock.Anything, "192.0.2.1", mock.MatchedBy(func(r model.BookingRequest) bool {
		return r.FirstName == "Jo" && r.ServicePrice.String() == "175"
	})).Return(&model.Booking{
		ID:            "row-1",
		BookingID:     "BOOK-1-ABCDEFGHI",
		Status:        model.BookingStatusPending,
		ServiceName:   "Fix",
		PreferredDate: "2099-01-01",
	}, nil)

	rec := do(newTestRouter(t, svc, stubCatalog{}), http.MethodPost, "/api/bookings", bookingBody, nil)

	require.Equal(t, http.StatusCreated, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "Booking created successfully", body["message"])
	assert.Equal(t, "BOOK-1-ABCDEFGHI", body["bookingId"])
	assert.Equal(t, map[string]any{
		"id":            "row-1",
		"bookingId":     "BOOK-1-ABCDEFGHI",
		"status":        "pending",
		"serviceName":   "Fix",
		"preferredDate": "2099-01-01",
	}, body["data"])
}

func TestCreateBooking_Errors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantError  string
	}{
		{
			name:       "validation",
			err:        &service.ValidationError{Errors: []string{"Valid email address is required", "Valid phone number is required"}},
			wantStatus: http.StatusBadRequest,
			wantError:  "Valid email address is required, Valid phone number is required",
		},
		{
			name:       "rate limited",
			err:        service.ErrRateLimited,
			wantStatus: http.StatusTooManyRequests,
			wantError:  "Too many requests. Please try again later.",
		},
		{
			name:       "persistence",
			err:        errors.Join(service.ErrPersistence, errors.New("pq: connection refused")),
			wantStatus: http.StatusInternalServerError,
			wantError:  "Failed to create booking. Please try again.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockService{}
			svc.On("Submit", mock.Anything, mock.Anything, mock.Anything).Return(nil, tt.err)

			rec := do(newTestRouter(t, svc, stubCatalog{}), http.MethodPost, "/api/bookings", bookingBody, nil)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantError, decode(t, rec)["error"])
			assert.NotContains(t, rec.Body.String(), "connection refused")
		})
	}
}

func TestCreateBooking_ValidationListsEveryError(t *testing.T) {
	svc := &mockService{}
	svc.On("Submit", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, &service.ValidationError{Errors: []string{"a", "b"}})

	rec := do(newTestRouter(t, svc, stubCatalog{}), http.MethodPost, "/api/bookings", bookingBody, nil)

	assert.Equal(t, []any{"a", "b"}, decode(t, rec)["errors"])
}

func TestCreateBooking_MalformedJSON(t *testing.T) {
	svc := &mockService{}

	rec := do(newTestRouter(t, svc, stubCatalog{}), http.MethodPost, "/api/bookings", `{"firstName":`, nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	svc.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything, mock.Anything)
}

func TestCreateBooking_UsesForwardedClientAddress(t *testing.T) {
	svc := &mockService{}
	svc.On("Submit", mock.Anything, "198.51.100.9", mock.Anything).Return(nil, service.ErrRateLimited)

	rec := do(newTestRouter(t, svc, stubCatalog{}), http.MethodPost, "/api/bookings", bookingBody,
		map[string]string{"X-Forwarded-For": "198.51.100.9"})

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestCreateBooking_IgnoresForwardedHeaderFromUntrustedPeer(t *testing.T) {
	svc := &mockService{}
	t.Cleanup(func() { svc.AssertExpectations(t) })
	svc.On("Submit", mock.Anything, "192.0.2.1", mock.Anything).Return(nil, service.ErrRateLimited).Twice()
	h := NewRouter(NewBookingHandler(svc, stubCatalog{}, "9.9.9", logging.Discard()), nil, logging.Discard())

	for _, spoofed := range []string{"198.51.100.9", "198.51.100.10"} {
		rec := do(h, http.MethodPost, "/api/bookings", bookingBody, map[string]string{
			"X-Forwarded-For": spoofed,
			"X-Real-IP":       spoofed,
		})
		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	}
}

func TestPeerTrusted(t *testing.T) {
	trusted := []netip.Prefix{netip.MustParsePrefix("10.0.0.0/8")}

	assert.True(t, peerTrusted("10.1.2.3:4567", trusted))
	assert.True(t, peerTrusted("[::ffff:10.1.2.3]:4567", trusted))
	assert.False(t, peerTrusted("192.0.2.1:4567", trusted))
	assert.False(t, peerTrusted("10.1.2.3:4567", nil))
	assert.False(t, peerTrusted("garbage", trusted))
}

func TestGetBooking(t *testing.T) {
	svc := &mockService{}
	svc.On("Get", mock.Anything, "BOOK-1").Return(&model.BookingDetails{
		Booking: model.Booking{BookingID: "BOOK-1", PaymentStatus: model.PaymentStatusUnpaid},
		Email:   "jo@x.com",
	}, nil)
	svc.On("Get", mock.Anything, "BOOK-2").Return(nil, repository.ErrNotFound)
	svc.On("Get", mock.Anything, "BOOK-3").Return(nil, errors.New("db down"))
	h := newTestRouter(t, svc, stubCatalog{})

	rec := do(h, http.MethodGet, "/api/bookings/BOOK-1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	data := decode(t, rec)["data"].(map[string]any)
	assert.Equal(t, "BOOK-1", data["bookingId"])
	assert.Equal(t, "jo@x.com", data["email"])
	assert.Equal(t, "unpaid", data["paymentStatus"])

	rec = do(h, http.MethodGet, "/api/bookings/BOOK-2", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Booking not found", decode(t, rec)["error"])

	rec = do(h, http.MethodGet, "/api/bookings/BOOK-3", "", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Failed to retrieve booking", decode(t, rec)["error"])
}

// ─── Payments ─────────────────────────────────────────────────────────────────

const intentBody = `{"amount":"175.50","serviceId":"s1","customerEmail":"jo@x.com","bookingId":"BOOK-1"}`

func TestCreatePaymentIntent(t *testing.T) {
	svc := &mockService{}
	svc.On("CreatePaymentIntent", mock.Anything, mock.MatchedBy(func(r model.PaymentIntentRequest) bool {
		return r.Amount.String() == "175.50" && r.BookingID == "BOOK-1"
	})).Return(&model.PaymentIntent{ID: "pi_1", ClientSecret: "pi_1_secret"}, nil)

	rec := do(newTestRouter(t, svc, stubCatalog{}), http.MethodPost, "/api/create-payment-intent", intentBody, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{
		"success":         true,
		"clientSecret":    "pi_1_secret",
		"paymentIntentId": "pi_1",
	}, decode(t, rec))
}

func TestCreatePaymentIntent_Errors(t *testing.T) {
	svc := &mockService{}
	svc.On("CreatePaymentIntent", mock.Anything, mock.Anything).
		Return(nil, &service.ValidationError{Errors: []string{"Valid amount is required"}}).Once()
	svc.On("CreatePaymentIntent", mock.Anything, mock.Anything).
		Return(nil, errors.Join(service.ErrUpstream, errors.New("card_declined"))).Once()
	h := newTestRouter(t, svc, stubCatalog{})

	rec := do(h, http.MethodPost, "/api/create-payment-intent", intentBody, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Valid amount is required", decode(t, rec)["error"])

	rec = do(h, http.MethodPost, "/api/create-payment-intent", intentBody, nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Failed to create payment intent", decode(t, rec)["error"])
}

func TestStripeWebhook(t *testing.T) {
	tests := []struct {
		name       string
		signature  string
		err        error
		wantStatus int
		wantBody   map[string]any
	}{
		{
			name:       "accepted",
			signature:  "t=1,v1=abc",
			wantStatus: http.StatusOK,
			wantBody:   map[string]any{"received": true},
		},
		{
			name:       "bad signature",
			signature:  "t=1,v1=abc",
			err:        payment.ErrSignatureInvalid,
			wantStatus: http.StatusBadRequest,
			wantBody:   map[string]any{"error": "Webhook error: invalid webhook signature"},
		},
		{
			name:       "malformed",
			signature:  "t=1,v1=abc",
			err:        errors.Join(payment.ErrMalformedPayload, errors.New("no data")),
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "persistence",
			signature:  "t=1,v1=abc",
			err:        service.ErrPersistence,
			wantStatus: http.StatusInternalServerError,
			wantBody:   map[string]any{"error": "Failed to process webhook"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockService{}
			svc.On("HandleWebhook", mock.Anything, []byte(`{"id":"evt_1"}`), tt.signature).Return(tt.err)

			rec := do(newTestRouter(t, svc, stubCatalog{}), http.MethodPost, "/api/webhooks/stripe", `{"id":"evt_1"}`,
				map[string]string{"Stripe-Signature": tt.signature})

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantBody != nil {
				assert.Equal(t, tt.wantBody, decode(t, rec))
			}
		})
	}
}

func TestStripeWebhook_MissingSignature(t *testing.T) {
	svc := &mockService{}

	rec := do(newTestRouter(t, svc, stubCatalog{}), http.MethodPost, "/api/webhooks/stripe", `{}`, nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Missing signature", decode(t, rec)["error"])
	svc.AssertNotCalled(t, "HandleWebhook", mock.Anything, mock.Anything, mock.Anything)
}

func TestStripeWebhook_BodyTooLarge(t *testing.T) {
	svc := &mockService{}
	big := strings.Repeat("x", maxWebhookBytes+1)

	rec := do(newTestRouter(t, svc, stubCatalog{}), http.MethodPost, "/api/webhooks/stripe", big,
		map[string]string{"Stripe-Signature": "t=1,v1=abc"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	svc.AssertNotCalled(t, "HandleWebhook", mock.Anything, mock.Anything, mock.Anything)
}

// ─── Router behaviour ─────────────────────────────────────────────────────────

func TestCORS(t *testing.T) {
	svc := &mockService{}
	svc.On("HandleWebhook", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	h := newTestRouter(t, svc, stubCatalog{})
	origin := map[string]string{"Origin": "https://shop.example"}

	rec := do(h, http.MethodGet, "/api/health", "", origin)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = do(h, http.MethodPost, "/api/webhooks/stripe", `{}`,
		map[string]string{"Origin": "https://shop.example", "Stripe-Signature": "t=1,v1=abc"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestPreflight(t *testing.T) {
	h := newTestRouter(t, &mockService{}, stubCatalog{})

	tests := []struct {
		name          string
		requestHeader string
		wantOrigin    string
	}{
		// Browsers send the requested header names lowercased.
		{name: "browser preflight", requestHeader: "content-type", wantOrigin: "*"},
		{name: "mixed case header names", requestHeader: "Content-Type", wantOrigin: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(h, http.MethodOptions, "/api/bookings", "", map[string]string{
				"Origin":                         "https://shop.example",
				"Access-Control-Request-Method":  http.MethodPost,
				"Access-Control-Request-Headers": tt.requestHeader,
			})

			assert.Equal(t, http.StatusNoContent, rec.Code)
			assert.Equal(t, tt.wantOrigin, rec.Header().Get("Access-Control-Allow-Origin"))
		})
	}

	rec := do(h, http.MethodOptions, "/anything/at/all", "", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestNotFound(t *testing.T) {
	h := newTestRouter(t, &mockService{}, stubCatalog{})

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/nope"},
		{http.MethodGet, "/nope"},
		{http.MethodDelete, "/api/bookings"},
		{http.MethodGet, "/api/create-payment-intent"},
	} {
		rec := do(h, tc.method, tc.path, "", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code, "%s %s", tc.method, tc.path)
		assert.Equal(t, "Endpoint not found", decode(t, rec)["error"])
	}
}

func TestRecoverer(t *testing.T) {
	h := newTestRouter(t, panicService{}, stubCatalog{})

	rec := do(h, http.MethodGet, "/api/bookings/BOOK-1", "", nil)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, map[string]any{"error": "Internal server error"}, decode(t, rec))
}

func TestClientKey(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "203.0.113.7:5555"
	assert.Equal(t, "203.0.113.7", clientKey(r))

	r.RemoteAddr = "203.0.113.7"
	assert.Equal(t, "203.0.113.7", clientKey(r))

	r.RemoteAddr = "[2001:db8::1]:443"
	assert.Equal(t, "2001:db8::1", clientKey(r))
}
