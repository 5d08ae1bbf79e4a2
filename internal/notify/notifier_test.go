package notify

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kanakkart/storefront-backend/pkg/config"
	"github.com/kanakkart/storefront-backend/pkg/db/models"
	"github.com/kanakkart/storefront-backend/pkg/enums"
	"github.com/kanakkart/storefront-backend/pkg/logger"
	"github.com/kanakkart/storefront-backend/pkg/mailer"
)

type stubSender struct {
	mu       sync.Mutex
	sent     []mailer.Message
	failures int
	done     chan struct{}
}

func (s *stubSender) Send(ctx context.Context, msg mailer.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failures > 0 {
		s.failures--
		return errors.New("provider unavailable")
	}
	s.sent = append(s.sent, msg)
	if s.done != nil {
		select {
		case s.done <- struct{}{}:
		default:
		}
	}
	return nil
}

func (s *stubSender) sentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

func notifyTestLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func notifyOrder() *models.Order {
	size := "M"
	awb := "AWB777"
	courier := "Delhivery"
	return &models.Order{
		OrderNumber:   "KK00042",
		CustomerName:  "Asha Verma",
		CustomerEmail: "asha@example.com",
		PaymentMethod: enums.PaymentMethodCOD,
		Status:        enums.OrderStatusConfirmed,
		TotalAmount:   decimal.RequireFromString("1498.00"),
		AWBCode:       &awb,
		CourierName:   &courier,
		Items: []models.OrderItem{
			{ProductTitle: "Hoodie", Size: &size, Quantity: 1, UnitPrice: decimal.RequireFromString("999.00")},
			{ProductTitle: "Oversized Tee", Quantity: 1, UnitPrice: decimal.RequireFromString("499.00")},
		},
	}
}

func newTestNotifier(t *testing.T, mail sender, cfg config.NotifyConfig) *Notifier {
	t.Helper()
	n, err := NewNotifier(cfg, mail, notifyTestLogger(), nil)
	if err != nil {
		t.Fatalf("NewNotifier: %v", err)
	}
	return n
}

func TestOrderConfirmedDeliversEmail(t *testing.T) {
	mail := &stubSender{done: make(chan struct{}, 1)}
	n := newTestNotifier(t, mail, config.NotifyConfig{QueueSize: 8})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go n.Run(ctx)

	n.OrderConfirmed(notifyOrder())

	select {
	case <-mail.done:
	case <-time.After(2 * time.Second):
		t.Fatal("email not delivered in time")
	}

	mail.mu.Lock()
	msg := mail.sent[0]
	mail.mu.Unlock()
	if msg.ToAddress != "asha@example.com" {
		t.Fatalf("wrong recipient: %s", msg.ToAddress)
	}
	if !strings.Contains(msg.Subject, "KK00042") {
		t.Fatalf("subject must name the order: %q", msg.Subject)
	}
	if !strings.Contains(msg.PlainBody, "Hoodie (M)") || !strings.Contains(msg.PlainBody, "Cash on Delivery") {
		t.Fatalf("body missing order detail: %q", msg.PlainBody)
	}
}

func TestRetryAfterTransientFailure(t *testing.T) {
	mail := &stubSender{failures: 1, done: make(chan struct{}, 1)}
	n := newTestNotifier(t, mail, config.NotifyConfig{
		QueueSize:   8,
		MaxAttempts: 3,
		RetryDelay:  10 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go n.Run(ctx)

	n.OrderConfirmed(notifyOrder())

	select {
	case <-mail.done:
	case <-time.After(2 * time.Second):
		t.Fatal("retry never delivered the email")
	}
	if mail.sentCount() != 1 {
		t.Fatalf("expected exactly one delivery, got %d", mail.sentCount())
	}
}

func TestGivesUpAfterMaxAttempts(t *testing.T) {
	mail := &stubSender{failures: 100}
	n := newTestNotifier(t, mail, config.NotifyConfig{
		QueueSize:   8,
		MaxAttempts: 2,
		RetryDelay:  5 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	go n.Run(ctx)

	n.OrderConfirmed(notifyOrder())

	time.Sleep(200 * time.Millisecond)
	cancel()
	n.Wait()

	if mail.sentCount() != 0 {
		t.Fatal("no delivery should succeed")
	}
	mail.mu.Lock()
	remaining := mail.failures
	mail.mu.Unlock()
	if 100-remaining != 2 {
		t.Fatalf("expected exactly 2 attempts, got %d", 100-remaining)
	}
}

func TestEnqueueNeverBlocksWhenSaturated(t *testing.T) {
	mail := &stubSender{}
	n := newTestNotifier(t, mail, config.NotifyConfig{QueueSize: 1, MaxAttempts: 1})

	// No worker running; the queue holds one task and further enqueues drop.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			n.OrderConfirmed(notifyOrder())
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("enqueue blocked on a full queue")
	}
	if len(n.queue) != 1 {
		t.Fatalf("expected one queued task, got %d", len(n.queue))
	}
}

func TestStatusTemplates(t *testing.T) {
	shipped := notifyOrder()
	shipped.Status = enums.OrderStatusShipped
	msg := statusMessage(shipped)
	if !strings.Contains(msg.Subject, "shipped") {
		t.Fatalf("shipped subject wrong: %q", msg.Subject)
	}
	if !strings.Contains(msg.PlainBody, "AWB777") || !strings.Contains(msg.PlainBody, "Delhivery") {
		t.Fatalf("shipped body missing tracking: %q", msg.PlainBody)
	}

	delivered := notifyOrder()
	delivered.Status = enums.OrderStatusDelivered
	msg = statusMessage(delivered)
	if !strings.Contains(msg.Subject, "delivered") {
		t.Fatalf("delivered subject wrong: %q", msg.Subject)
	}

	cancelled := notifyOrder()
	cancelled.Status = enums.OrderStatusCancelled
	msg = statusMessage(cancelled)
	if !strings.Contains(msg.PlainBody, "cancelled") {
		t.Fatalf("cancelled body wrong: %q", msg.PlainBody)
	}
}
