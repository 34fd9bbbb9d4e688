// cmd/notifier consumes notifications relayed through RabbitMQ and delivers
// them to the configured email and CRM providers.
package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/Shivanand-hulikatti/booking-payments-api/internal/config"
	"github.com/Shivanand-hulikatti/booking-payments-api/internal/logging"
	"github.com/Shivanand-hulikatti/booking-payments-api/internal/mq"
	"github.com/Shivanand-hulikatti/booking-payments-api/internal/notify"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("config: %v", err)
	}
	log := logging.New(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	consumer, err := mq.NewConsumer(
		cfg.RabbitURL,
		cfg.NotifyExchange,
		cfg.NotifyQueue,
		[]string{notify.RoutingKeyPrefix + "#"},
		cfg.NotifyWorkers,
	)
	if err != nil {
		log.Fatalf("rabbitmq: %v", err)
	}
	defer consumer.Close()

	deliveries, err := consumer.Deliveries(ctx, "notifier")
	if err != nil {
		log.Fatalf("consume: %v", err)
	}

	client := &http.Client{Timeout: cfg.NotifyHTTPTimeout}
	email := notify.NewEmailSender(cfg.Email(), client, log)
	crm := notify.NewCRM(cfg.CRM(), client, log)
	deliverer := notify.NewDeliverer(email, crm, cfg.AdminEmail, log)

	log.WithFields(logrus.Fields{
		"queue": cfg.NotifyQueue,
		"email": email.Name(),
		"crm":   crm.Name(),
	}).Info("notifier consuming")

	if err := notify.NewConsumer(deliverer, log).Run(ctx, deliveries); err != nil {
		log.Errorf("consumer stopped: %v", err)
	}
	log.Info("notifier stopped")
}
