package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kanakkart/storefront-backend/pkg/config"
	"github.com/kanakkart/storefront-backend/pkg/db/models"
	"github.com/kanakkart/storefront-backend/pkg/logger"
	"github.com/kanakkart/storefront-backend/pkg/mailer"
	"github.com/kanakkart/storefront-backend/pkg/metrics"
)

// Event names the customer-facing moments worth an email.
type Event string

const (
	EventOrderConfirmed Event = "order_confirmed"
	EventStatusChanged  Event = "status_changed"
	EventDelivered      Event = "delivered"
)

type sender interface {
	Send(ctx context.Context, msg mailer.Message) error
}

type task struct {
	message  mailer.Message
	attempts int
}

// Notifier delivers order emails best-effort through a bounded in-process
// queue. Enqueue never blocks the calling request; a saturated queue drops
// the notification with a log line, never an error.
type Notifier struct {
	mailer  sender
	logger  *logger.Logger
	metrics *metrics.NotifyMetrics

	queue       chan task
	maxAttempts int
	retryDelay  time.Duration
	sendTimeout time.Duration

	wg sync.WaitGroup
}

// NewNotifier builds the notifier. notifyMetrics may be nil.
func NewNotifier(cfg config.NotifyConfig, mail sender, logg *logger.Logger, notifyMetrics *metrics.NotifyMetrics) (*Notifier, error) {
	if mail == nil {
		return nil, fmt.Errorf("mailer required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 30 * time.Second
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 10 * time.Second
	}
	return &Notifier{
		mailer:      mail,
		logger:      logg,
		metrics:     notifyMetrics,
		queue:       make(chan task, cfg.QueueSize),
		maxAttempts: cfg.MaxAttempts,
		retryDelay:  cfg.RetryDelay,
		sendTimeout: cfg.SendTimeout,
	}, nil
}

// Run drains the queue until the context is canceled, then stops. Call once.
func (n *Notifier) Run(ctx context.Context) {
	n.wg.Add(1)
	defer n.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case item := <-n.queue:
			n.deliver(ctx, item)
		}
	}
}

// Wait blocks until the worker started by Run has returned.
func (n *Notifier) Wait() {
	n.wg.Wait()
}

// OrderConfirmed emails the order confirmation.
func (n *Notifier) OrderConfirmed(order *models.Order) {
	n.enqueue(order, confirmationMessage(order))
}

// StatusChanged emails a lifecycle update; delivered orders get the
// delivery template.
func (n *Notifier) StatusChanged(order *models.Order) {
	n.enqueue(order, statusMessage(order))
}

func (n *Notifier) enqueue(order *models.Order, msg mailer.Message) {
	select {
	case n.queue <- task{message: msg}:
		if n.metrics != nil {
			n.metrics.SetQueueDepth(len(n.queue))
		}
	default:
		if n.metrics != nil {
			n.metrics.IncDropped()
		}
		ctx := n.logger.WithOrderNumber(context.Background(), order.OrderNumber)
		n.logger.Warn(ctx, "notification queue full, dropping email")
	}
}

func (n *Notifier) deliver(ctx context.Context, item task) {
	sendCtx, cancel := context.WithTimeout(ctx, n.sendTimeout)
	err := n.mailer.Send(sendCtx, item.message)
	cancel()
	if n.metrics != nil {
		n.metrics.SetQueueDepth(len(n.queue))
	}
	if err == nil {
		if n.metrics != nil {
			n.metrics.IncDelivered("success")
		}
		return
	}

	item.attempts++
	logCtx := n.logger.WithFields(ctx, map[string]any{
		"recipient": item.message.ToAddress,
		"attempt":   item.attempts,
	})
	if item.attempts >= n.maxAttempts {
		if n.metrics != nil {
			n.metrics.IncDelivered("failure")
		}
		n.logger.Error(logCtx, "notification abandoned", err)
		return
	}

	n.logger.Warn(logCtx, "notification send failed, will retry")
	if n.metrics != nil {
		n.metrics.IncRetry()
	}
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		select {
		case <-ctx.Done():
		case <-time.After(n.retryDelay):
			select {
			case n.queue <- item:
			default:
				if n.metrics != nil {
					n.metrics.IncDropped()
				}
			}
		}
	}()
}
