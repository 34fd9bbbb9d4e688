// Package notify delivers best-effort booking and payment notifications to
// email and CRM providers. Nothing in this package reports a delivery
// failure to its caller; failures are logged.
package notify

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/Shivanand-hulikatti/booking-payments-api/internal/model"
)

// Handler processes one notification synchronously.
type Handler interface {
	Deliver(ctx context.Context, n model.Notification)
}

// Deliverer sends a notification to the customer, the admin inbox and, for
// new bookings, the CRM. Each channel is attempted independently.
type Deliverer struct {
	email      EmailSender
	crm        CRM
	adminEmail string
	log        logrus.FieldLogger
}

// NewDeliverer constructs a Deliverer.
func NewDeliverer(email EmailSender, crm CRM, adminEmail string, log logrus.FieldLogger) *Deliverer {
	return &Deliverer{email: email, crm: crm, adminEmail: adminEmail, log: log}
}

// Deliver implements Handler.
func (d *Deliverer) Deliver(ctx context.Context, n model.Notification) {
	log := d.log.WithFields(logrus.Fields{"booking_id": n.BookingID, "type": n.Kind})

	if n.Email != "" {
		d.sendEmail(ctx, log, n, Customer, n.Email)
	} else {
		log.Warn("notification has no customer email, skipping customer message")
	}
	if d.adminEmail != "" {
		d.sendEmail(ctx, log, n, Admin, d.adminEmail)
	}

	if n.Kind == model.NotifyBookingConfirmation || n.Kind == "" {
		if err := d.crm.AddLead(ctx, n); err != nil {
			log.WithError(err).WithField("provider", d.crm.Name()).Error("crm lead failed")
		} else {
			log.WithField("provider", d.crm.Name()).Debug("crm lead recorded")
		}
	}
}

func (d *Deliverer) sendEmail(ctx context.Context, log logrus.FieldLogger, n model.Notification, audience Audience, to string) {
	msg, err := Render(n, audience, to)
	if err != nil {
		log.WithError(err).Error("render email")
		return
	}
	if err := d.email.Send(ctx, msg); err != nil {
		log.WithError(err).WithFields(logrus.Fields{"provider": d.email.Name(), "audience": audience}).Error("email delivery failed")
		return
	}
	log.WithFields(logrus.Fields{"provider": d.email.Name(), "audience": audience}).Debug("email sent")
}
