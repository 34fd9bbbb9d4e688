// Package repository implements all database queries for customers, bookings
// and the service catalog. It uses pgx directly (no ORM).
package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Shivanand-hulikatti/booking-payments-api/internal/model"
)

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicateBookingID is returned when a generated booking identifier
// collides with an existing one.
var ErrDuplicateBookingID = errors.New("booking id already exists")

const uniqueViolation = "23505"

// DB is the subset of *pgxpool.Pool used by the repositories.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// BookingRepository handles persistence for customers and bookings.
type BookingRepository struct {
	db  DB
	now func() time.Time
}

// NewBookingRepository constructs a BookingRepository.
func NewBookingRepository(db DB) *BookingRepository {
	return &BookingRepository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// UpsertCustomer inserts a customer or, when the email already exists,
// overwrites its contact fields. It returns the customer's id.
func (r *BookingRepository) UpsertCustomer(ctx context.Context, c model.Customer) (string, error) {
	now := r.now()
	var id string
	err := r.db.QueryRow(ctx,
		`INSERT INTO customers (id, email, first_name, last_name, phone, business_name, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		 ON CONFLICT (email) DO UPDATE SET
		     first_name    = EXCLUDED.first_name,
		     last_name     = EXCLUDED.last_name,
		     phone         = EXCLUDED.phone,
		     business_name = EXCLUDED.business_name,
		     updated_at    = EXCLUDED.updated_at
		 RETURNING id`,
		uuid.New().String(), normalizeEmail(c.Email), c.FirstName, c.LastName, c.Phone, nullable(c.BusinessName), now,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("upsert customer: %w", err)
	}
	return id, nil
}

// CreateBooking inserts b. ID and timestamps are filled in on success.
func (r *BookingRepository) CreateBooking(ctx context.Context, b *model.Booking) error {
	id := uuid.New().String()
	now := r.now()

	_, err := r.db.Exec(ctx,
		`INSERT INTO bookings (id, booking_id, customer_id, service_id, service_name, service_price,
		                       preferred_date, preferred_time, message, status, payment_status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $12)`,
		id, b.BookingID, b.CustomerID, b.ServiceID, b.ServiceName, nullable(b.ServicePrice),
		b.PreferredDate, nullable(b.PreferredTime), nullable(b.Message), b.Status, b.PaymentStatus, now,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrDuplicateBookingID
		}
		return fmt.Errorf("insert booking: %w", err)
	}

	b.ID = id
	b.CreatedAt = now
	b.UpdatedAt = now
	return nil
}

// GetBooking returns the booking joined with its customer, or ErrNotFound.
func (r *BookingRepository) GetBooking(ctx context.Context, bookingID string) (*model.BookingDetails, error) {
	var d model.BookingDetails
	err := r.db.QueryRow(ctx,
		`SELECT b.id, b.booking_id, b.customer_id, b.service_id, b.service_name,
		        COALESCE(b.service_price, ''), to_char(b.preferred_date, 'YYYY-MM-DD'),
		        COALESCE(b.preferred_time, ''), COALESCE(b.message, ''),
		        b.status, b.payment_status, COALESCE(b.payment_intent_id, ''),
		        b.created_at, b.updated_at,
		        c.email, c.first_name, c.last_name, c.phone, COALESCE(c.business_name, '')
		 FROM bookings b
		 JOIN customers c ON c.id = b.customer_id
		 WHERE b.booking_id = $1`,
		bookingID,
	).Scan(
		&d.ID, &d.BookingID, &d.CustomerID, &d.ServiceID, &d.ServiceName,
		&d.ServicePrice, &d.PreferredDate,
		&d.PreferredTime, &d.Message,
		&d.Status, &d.PaymentStatus, &d.PaymentIntentID,
		&d.CreatedAt, &d.UpdatedAt,
		&d.Email, &d.FirstName, &d.LastName, &d.Phone, &d.BusinessName,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get booking: %w", err)
	}
	return &d, nil
}

// UpdatePaymentStatus sets the payment status and intent id of a booking.
// It reports whether anything changed, so repeated webhook deliveries can
// be recognised. updated_at only moves when the row actually changes.
//
// The previous values are read under a row lock in the same statement, so
// two concurrent deliveries cannot both observe a change.
func (r *BookingRepository) UpdatePaymentStatus(ctx context.Context, bookingID, status, intentID string) (bool, error) {
	var prevStatus, prevIntent string
	err := r.db.QueryRow(ctx,
		`WITH prev AS (
		     SELECT id, payment_status, payment_intent_id
		     FROM bookings
		     WHERE booking_id = $1
		     FOR UPDATE
		 )
		 UPDATE bookings b
		 SET payment_status    = $2,
		     payment_intent_id = $3,
		     updated_at        = CASE
		         WHEN prev.payment_status IS DISTINCT FROM $2
		           OR prev.payment_intent_id IS DISTINCT FROM $3 THEN $4
		         ELSE b.updated_at
		     END
		 FROM prev
		 WHERE b.id = prev.id
		 RETURNING prev.payment_status, COALESCE(prev.payment_intent_id, '')`,
		bookingID, status, nullable(intentID), r.now(),
	).Scan(&prevStatus, &prevIntent)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, ErrNotFound
		}
		return false, fmt.Errorf("update payment status: %w", err)
	}
	return prevStatus != status || prevIntent != intentID, nil
}

// ServiceRepository reads the service catalog.
type ServiceRepository struct {
	db DB
}

// NewServiceRepository constructs a ServiceRepository.
func NewServiceRepository(db DB) *ServiceRepository {
	return &ServiceRepository{db: db}
}

// ListServices returns the catalog in display order.
func (r *ServiceRepository) ListServices(ctx context.Context) ([]model.Service, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, category, name, price, deliverables
		 FROM services
		 ORDER BY position, id`,
	)
	if err != nil {
		return nil, fmt.Errorf("list services: %w", err)
	}
	defer rows.Close()

	var services []model.Service
	for rows.Next() {
		var s model.Service
		if err := rows.Scan(&s.ID, &s.Category, &s.Name, &s.Price, &s.Deliverables); err != nil {
			return nil, fmt.Errorf("scan service: %w", err)
		}
		services = append(services, s)
	}
	return services, rows.Err()
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
