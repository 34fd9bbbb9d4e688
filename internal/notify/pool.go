package notify

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/Shivanand-hulikatti/booking-payments-api/internal/model"
)

// PoolConfig sizes a Pool.
type PoolConfig struct {
	Workers   int
	QueueSize int
	// RatePerSec limits deliveries across all workers. Zero or less means
	// unlimited.
	RatePerSec float64
	// Timeout bounds a single delivery.
	Timeout time.Duration
}

// Pool runs notifications on background workers, detached from the request
// that produced them. When the queue is full, new notifications are dropped.
type Pool struct {
	handler Handler
	queue   chan model.Notification
	limiter *rate.Limiter
	timeout time.Duration
	log     logrus.FieldLogger

	mu     sync.RWMutex
	closed bool

	wg      sync.WaitGroup
	baseCtx context.Context
	cancel  context.CancelFunc
}

// NewPool starts cfg.Workers workers feeding handler.
func NewPool(handler Handler, cfg PoolConfig, log logrus.FieldLogger) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	limit := rate.Inf
	burst := cfg.Workers
	if cfg.RatePerSec > 0 {
		limit = rate.Limit(cfg.RatePerSec)
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		handler: handler,
		queue:   make(chan model.Notification, cfg.QueueSize),
		limiter: rate.NewLimiter(limit, burst),
		timeout: cfg.Timeout,
		log:     log,
		baseCtx: ctx,
		cancel:  cancel,
	}
	for i := 0; i < cfg.Workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

// Notify queues n without blocking. The caller's context is not used for
// delivery, so cancelling the request does not cancel the notification.
func (p *Pool) Notify(_ context.Context, n model.Notification) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		p.log.WithField("booking_id", n.BookingID).Warn("notification pool closed, dropping notification")
		return
	}
	select {
	case p.queue <- n:
	default:
		p.log.WithFields(logrus.Fields{"booking_id": n.BookingID, "type": n.Kind}).Warn("notification queue full, dropping notification")
	}
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for n := range p.queue {
		if err := p.limiter.Wait(p.baseCtx); err != nil {
			p.log.WithField("booking_id", n.BookingID).Warn("notification abandoned at shutdown")
			continue
		}
		p.deliver(n)
	}
}

func (p *Pool) deliver(n model.Notification) {
	ctx, cancel := context.WithTimeout(p.baseCtx, p.timeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			p.log.WithFields(logrus.Fields{"booking_id": n.BookingID, "panic": r}).Error("notification handler panicked")
		}
	}()
	p.handler.Deliver(ctx, n)
}

// Shutdown stops accepting notifications and waits for queued ones to be
// delivered. If ctx expires first, in-flight deliveries are cancelled and the
// rest of the queue is abandoned.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		return nil
	case <-ctx.Done():
		p.cancel()
		<-done
		return ctx.Err()
	}
}
