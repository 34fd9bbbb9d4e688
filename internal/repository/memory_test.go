package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shivanand-hulikatti/booking-payments-api/internal/model"
)

func TestMemory_UpsertOverwritesContactFields(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	id1, err := m.UpsertCustomer(ctx, model.Customer{Email: "Jo@X.com", FirstName: "Jo", LastName: "Li", Phone: "5551234567", BusinessName: "Cafe"})
	require.NoError(t, err)
	id2, err := m.UpsertCustomer(ctx, model.Customer{Email: "jo@x.com", FirstName: "Joanna", LastName: "Li", Phone: "5550000000"})
	require.NoError(t, err)

	assert.Equal(t, id1, id2)
	assert.Equal(t, 1, m.Customers())
	c, ok := m.FindCustomer("jo@x.com")
	require.True(t, ok)
	assert.Equal(t, "Joanna", c.FirstName)
	assert.Equal(t, "5550000000", c.Phone)
	assert.Empty(t, c.BusinessName)
}

func TestMemory_BookingLifecycle(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	custID, err := m.UpsertCustomer(ctx, model.Customer{Email: "jo@x.com", FirstName: "Jo"})
	require.NoError(t, err)
	b := &model.Booking{BookingID: "BOOK-1", CustomerID: custID, PreferredDate: "2099-01-01", PaymentStatus: model.PaymentStatusUnpaid}
	require.NoError(t, m.CreateBooking(ctx, b))
	assert.ErrorIs(t, m.CreateBooking(ctx, &model.Booking{BookingID: "BOOK-1"}), ErrDuplicateBookingID)

	d, err := m.GetBooking(ctx, "BOOK-1")
	require.NoError(t, err)
	assert.Equal(t, "jo@x.com", d.Email)
	assert.Equal(t, "2099-01-01", d.PreferredDate)

	changed, err := m.UpdatePaymentStatus(ctx, "BOOK-1", model.PaymentStatusPaid, "pi_1")
	require.NoError(t, err)
	assert.True(t, changed)
	changed, err = m.UpdatePaymentStatus(ctx, "BOOK-1", model.PaymentStatusPaid, "pi_1")
	require.NoError(t, err)
	assert.False(t, changed)

	_, err = m.GetBooking(ctx, "BOOK-2")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = m.UpdatePaymentStatus(ctx, "BOOK-2", model.PaymentStatusPaid, "pi_1")
	assert.ErrorIs(t, err, ErrNotFound)
}
