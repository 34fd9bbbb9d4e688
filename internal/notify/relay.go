package notify

import (
	"context"
	"encoding/json"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"github.com/Shivanand-hulikatti/booking-payments-api/internal/model"
)

// RoutingKeyPrefix prefixes the notification type in broker routing keys.
const RoutingKeyPrefix = "notification."

// RoutingKey returns the broker routing key for a notification kind.
func RoutingKey(kind model.NotificationKind) string {
	if kind == "" {
		kind = model.NotifyBookingConfirmation
	}
	return RoutingKeyPrefix + string(kind)
}

// Publisher publishes JSON messages to a broker.
type Publisher interface {
	PublishJSON(ctx context.Context, key string, v any) error
}

// Relay hands notifications to a broker instead of delivering them in
// process. A separate consumer performs the delivery.
type Relay struct {
	pub Publisher
	log logrus.FieldLogger
}

// NewRelay constructs a Relay.
func NewRelay(pub Publisher, log logrus.FieldLogger) *Relay {
	return &Relay{pub: pub, log: log}
}

// Deliver implements Handler.
func (r *Relay) Deliver(ctx context.Context, n model.Notification) {
	key := RoutingKey(n.Kind)
	if err := r.pub.PublishJSON(ctx, key, n); err != nil {
		r.log.WithError(err).WithFields(logrus.Fields{"booking_id": n.BookingID, "routing_key": key}).Error("relay notification")
	}
}

// Consumer delivers notifications read from the broker.
type Consumer struct {
	handler Handler
	log     logrus.FieldLogger
}

// NewConsumer constructs a Consumer.
func NewConsumer(handler Handler, log logrus.FieldLogger) *Consumer {
	return &Consumer{handler: handler, log: log}
}

// Run processes deliveries until ctx is cancelled or the channel closes.
func (c *Consumer) Run(ctx context.Context, deliveries <-chan amqp.Delivery) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return nil
			}
			c.Handle(ctx, d)
		}
	}
}

// Handle delivers one message. Undecodable messages are rejected without
// requeue; everything else is acknowledged because delivery is best-effort.
func (c *Consumer) Handle(ctx context.Context, d amqp.Delivery) {
	var n model.Notification
	if err := json.Unmarshal(d.Body, &n); err != nil {
		c.log.WithError(err).WithField("routing_key", d.RoutingKey).Error("undecodable notification, rejecting")
		_ = d.Nack(false, false)
		return
	}

	c.handler.Deliver(ctx, n)

	if err := d.Ack(false); err != nil {
		c.log.WithError(err).WithField("booking_id", n.BookingID).Warn("ack notification")
	}
}
