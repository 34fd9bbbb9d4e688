// cmd/main.go is the API entry point.
// It wires together all layers and starts the HTTP server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Shivanand-hulikatti/booking-payments-api/internal/catalog"
	"github.com/Shivanand-hulikatti/booking-payments-api/internal/config"
	"github.com/Shivanand-hulikatti/booking-payments-api/internal/database"
	"github.com/Shivanand-hulikatti/booking-payments-api/internal/handler"
	"github.com/Shivanand-hulikatti/booking-payments-api/internal/logging"
	"github.com/Shivanand-hulikatti/booking-payments-api/internal/mq"
	"github.com/Shivanand-hulikatti/booking-payments-api/internal/notify"
	"github.com/Shivanand-hulikatti/booking-payments-api/internal/payment"
	"github.com/Shivanand-hulikatti/booking-payments-api/internal/ratelimit"
	"github.com/Shivanand-hulikatti/booking-payments-api/internal/repository"
	"github.com/Shivanand-hulikatti/booking-payments-api/internal/service"
	"github.com/Shivanand-hulikatti/booking-payments-api/internal/validation"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("config: %v", err)
	}
	log := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── 1. Connect to PostgreSQL and migrate ──────────────────────────────
	pool, err := database.NewPool(ctx, cfg.Database(), log)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer pool.Close()
	if err := database.Migrate(ctx, pool, log); err != nil {
		log.Fatalf("migrate: %v", err)
	}
	log.Info("connected to PostgreSQL")

	// ── 2. Connect to Redis ───────────────────────────────────────────────
	rdb, err := database.NewRedis(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatalf("redis: %v", err)
	}
	defer rdb.Close()
	log.Info("connected to Redis")

	// ── 3. Notification dispatch ──────────────────────────────────────────
	var sink notify.Handler
	switch cfg.NotifyTransport {
	case "rabbitmq":
		pub, err := mq.NewPublisher(cfg.RabbitURL, cfg.NotifyExchange)
		if err != nil {
			log.Fatalf("rabbitmq: %v", err)
		}
		defer pub.Close()
		sink = notify.NewRelay(pub, log)
		log.WithField("exchange", cfg.NotifyExchange).Info("relaying notifications through RabbitMQ")
	default:
		sink = newDeliverer(cfg, log)
	}
	notifier := notify.NewPool(sink, cfg.Pool(), log)

	// ── 4. Wire up layers ─────────────────────────────────────────────────
	bookingRepo := repository.NewBookingRepository(pool)
	serviceRepo := repository.NewServiceRepository(pool)
	limiter := ratelimit.New(rdb, cfg.RateLimitMax, cfg.RateLimitWindow)
	gateway := payment.NewStripe(payment.Config{
		SecretKey:     cfg.StripeSecretKey,
		WebhookSecret: cfg.StripeWebhookSecret,
		Tolerance:     cfg.StripeWebhookTolerance,
		APIURL:        cfg.StripeAPIURL,
	}, log)
	svc := service.NewBookingService(bookingRepo, limiter, gateway, notifier, validation.New(), log)
	services := catalog.New(rdb, serviceRepo, cfg.ServicesCacheTTL, log)
	bookingHandler := handler.NewBookingHandler(svc, services, cfg.AppVersion, log)
	trusted, err := cfg.TrustedProxies()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// ── 5. Start server with graceful shutdown ────────────────────────────
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      handler.NewRouter(bookingHandler, trusted, log),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.WithField("addr", srv.Addr).Info("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			log.Errorf("server error: %v", err)
		}
	}

	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("graceful shutdown failed: %v", err)
	}
	if err := notifier.Shutdown(shutdownCtx); err != nil {
		log.Warnf("notifications not drained: %v", err)
	}
	log.Info("server stopped")
}

func newDeliverer(cfg config.App, log logrus.FieldLogger) *notify.Deliverer {
	client := &http.Client{Timeout: cfg.NotifyHTTPTimeout}
	email := notify.NewEmailSender(cfg.Email(), client, log)
	crm := notify.NewCRM(cfg.CRM(), client, log)
	log.WithFields(logrus.Fields{"email": email.Name(), "crm": crm.Name()}).Info("delivering notifications in process")
	return notify.NewDeliverer(email, crm, cfg.AdminEmail, log)
}
