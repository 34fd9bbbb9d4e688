package repository

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Shivanand-hulikatti/booking-payments-api/internal/model"
)

// Memory is an in-process booking store with the same semantics as
// BookingRepository. It backs tests that exercise the full workflow without
// PostgreSQL.
type Memory struct {
	mu        sync.Mutex
	customers map[string]*model.Customer // by email
	bookings  map[string]*model.Booking  // by booking id
	now       func() time.Time
}

// NewMemory constructs an empty Memory store.
func NewMemory() *Memory {
	return &Memory{
		customers: make(map[string]*model.Customer),
		bookings:  make(map[string]*model.Booking),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// UpsertCustomer implements the service booking store.
func (m *Memory) UpsertCustomer(_ context.Context, c model.Customer) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	email := normalizeEmail(c.Email)
	now := m.now()
	if existing, ok := m.customers[email]; ok {
		existing.FirstName = c.FirstName
		existing.LastName = c.LastName
		existing.Phone = c.Phone
		existing.BusinessName = c.BusinessName
		existing.UpdatedAt = now
		return existing.ID, nil
	}

	c.ID = uuid.New().String()
	c.Email = email
	c.CreatedAt = now
	c.UpdatedAt = now
	m.customers[email] = &c
	return c.ID, nil
}

// CreateBooking implements the service booking store.
func (m *Memory) CreateBooking(_ context.Context, b *model.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.bookings[b.BookingID]; ok {
		return ErrDuplicateBookingID
	}
	now := m.now()
	b.ID = uuid.New().String()
	b.CreatedAt = now
	b.UpdatedAt = now
	stored := *b
	m.bookings[b.BookingID] = &stored
	return nil
}

// GetBooking implements the service booking store.
func (m *Memory) GetBooking(_ context.Context, bookingID string) (*model.BookingDetails, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.bookings[bookingID]
	if !ok {
		return nil, ErrNotFound
	}
	d := &model.BookingDetails{Booking: *b}
	for _, c := range m.customers {
		if c.ID == b.CustomerID {
			d.Email = c.Email
			d.FirstName = c.FirstName
			d.LastName = c.LastName
			d.Phone = c.Phone
			d.BusinessName = c.BusinessName
			break
		}
	}
	return d, nil
}

// UpdatePaymentStatus implements the service booking store.
func (m *Memory) UpdatePaymentStatus(_ context.Context, bookingID, status, intentID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.bookings[bookingID]
	if !ok {
		return false, ErrNotFound
	}
	if b.PaymentStatus == status && b.PaymentIntentID == intentID {
		return false, nil
	}
	b.PaymentStatus = status
	b.PaymentIntentID = intentID
	b.UpdatedAt = m.now()
	return true, nil
}

// Customers returns the number of stored customers.
func (m *Memory) Customers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.customers)
}

// FindCustomer returns a copy of the customer with the given email.
func (m *Memory) FindCustomer(email string) (model.Customer, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.customers[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return model.Customer{}, false
	}
	return *c, true
}
