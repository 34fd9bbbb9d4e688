// Package model defines the core domain types for the booking and payment API.
package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Booking lifecycle and payment states.
const (
	BookingStatusPending = "pending"

	PaymentStatusUnpaid = "unpaid"
	PaymentStatusPaid   = "paid"
)

// Customer is a contact identified by email. It is upserted on every submission.
type Customer struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	FirstName    string    `json:"firstName"`
	LastName     string    `json:"lastName"`
	Phone        string    `json:"phone"`
	BusinessName string    `json:"businessName,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Booking is one service request made by a customer.
type Booking struct {
	ID              string    `json:"id"`
	BookingID       string    `json:"bookingId"`
	CustomerID      string    `json:"customerId"`
	ServiceID       string    `json:"serviceId"`
	ServiceName     string    `json:"serviceName"`
	ServicePrice    string    `json:"servicePrice,omitempty"`
	PreferredDate   string    `json:"preferredDate"`
	PreferredTime   string    `json:"preferredTime,omitempty"`
	Message         string    `json:"message,omitempty"`
	Status          string    `json:"status"`
	PaymentStatus   string    `json:"paymentStatus"`
	PaymentIntentID string    `json:"paymentIntentId,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// BookingDetails is a booking joined with its customer's contact fields.
type BookingDetails struct {
	Booking
	Email        string `json:"email"`
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
	Phone        string `json:"phone"`
	BusinessName string `json:"businessName,omitempty"`
}

// FlexString accepts either a JSON string or a JSON number and keeps the
// textual form. Prices and amounts arrive both ways from the booking form.
type FlexString string

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("expected string or number: %w", err)
	}
	*f = FlexString(n.String())
	return nil
}

// String returns the trimmed textual value.
func (f FlexString) String() string {
	return strings.TrimSpace(string(f))
}

// BookingRequest is the payload for POST /api/bookings.
type BookingRequest struct {
	FirstName     string     `json:"firstName" validate:"min_trimmed=2"`
	LastName      string     `json:"lastName" validate:"min_trimmed=2"`
	Email         string     `json:"email" validate:"loose_email"`
	Phone         string     `json:"phone" validate:"phone_number"`
	BusinessName  string     `json:"businessName,omitempty"`
	ServiceID     string     `json:"serviceId" validate:"present"`
	ServiceName   string     `json:"serviceName" validate:"present"`
	ServicePrice  FlexString `json:"servicePrice,omitempty"`
	PreferredDate string     `json:"preferredDate" validate:"present,calendar_date,not_past"`
	PreferredTime string     `json:"preferredTime,omitempty"`
	Message       string     `json:"message,omitempty"`
}

// PaymentIntentRequest is the payload for POST /api/create-payment-intent.
type PaymentIntentRequest struct {
	Amount        FlexString `json:"amount" validate:"positive_amount"`
	Currency      string     `json:"currency,omitempty"`
	ServiceID     string     `json:"serviceId" validate:"present"`
	ServiceName   string     `json:"serviceName,omitempty"`
	CustomerEmail string     `json:"customerEmail" validate:"loose_email"`
	BookingID     string     `json:"bookingId" validate:"present"`
}

// Service is one entry of the public service catalog.
type Service struct {
	ID           string   `json:"id"`
	Category     string   `json:"category"`
	Name         string   `json:"name"`
	Price        string   `json:"price"`
	Deliverables []string `json:"deliverables"`
}

// PaymentIntent is the subset of a gateway intent returned to the client.
type PaymentIntent struct {
	ID           string `json:"paymentIntentId"`
	ClientSecret string `json:"clientSecret"`
}

// PaymentEventKind classifies a verified webhook event.
type PaymentEventKind string

const (
	PaymentSucceeded PaymentEventKind = "succeeded"
	PaymentFailed    PaymentEventKind = "failed"
	PaymentIgnored   PaymentEventKind = "ignored"
)

// PaymentEvent is a verified gateway webhook reduced to what the booking
// workflow needs.
type PaymentEvent struct {
	ID            string
	Type          string
	Kind          PaymentEventKind
	IntentID      string
	BookingID     string
	CustomerEmail string
	ServiceName   string
	AmountMinor   int64
	Currency      string
	FailureReason string
}

// NotificationKind selects the templates used for a notification.
type NotificationKind string

const (
	NotifyBookingConfirmation NotificationKind = "booking_confirmation"
	NotifyPaymentConfirmation NotificationKind = "payment_confirmation"
	NotifyPaymentFailed       NotificationKind = "payment_failed"
)

// Notification is the payload handed to the notifier. It is also the JSON
// body relayed through the message broker.
type Notification struct {
	Kind            NotificationKind `json:"type"`
	BookingID       string           `json:"bookingId,omitempty"`
	Email           string           `json:"email"`
	FirstName       string           `json:"firstName,omitempty"`
	LastName        string           `json:"lastName,omitempty"`
	Phone           string           `json:"phone,omitempty"`
	BusinessName    string           `json:"businessName,omitempty"`
	ServiceID       string           `json:"serviceId,omitempty"`
	ServiceName     string           `json:"serviceName,omitempty"`
	ServicePrice    string           `json:"servicePrice,omitempty"`
	PreferredDate   string           `json:"preferredDate,omitempty"`
	PreferredTime   string           `json:"preferredTime,omitempty"`
	Message         string           `json:"message,omitempty"`
	PaymentIntentID string           `json:"paymentIntentId,omitempty"`
	AmountMinor     int64            `json:"amount,omitempty"`
	Currency        string           `json:"currency,omitempty"`
	Reason          string           `json:"reason,omitempty"`
}

// ErrorResponse is the standard JSON error envelope.
type ErrorResponse struct {
	Error  string   `json:"error"`
	Errors []string `json:"errors,omitempty"`
}
