package routes

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kanakkart/storefront-backend/internal/payments"
	"github.com/kanakkart/storefront-backend/pkg/config"
	"github.com/kanakkart/storefront-backend/pkg/logger"
)

type stubPaymentsService struct {
	result *payments.WebhookResult
}

func (s *stubPaymentsService) HandleWebhook(context.Context, []byte, string) (*payments.WebhookResult, error) {
	return s.result, nil
}

func (s *stubPaymentsService) ConfirmManually(context.Context, payments.ConfirmInput) (*payments.WebhookResult, error) {
	return s.result, nil
}

func testRouter() http.Handler {
	return NewRouter(Deps{
		Config: &config.Config{App: config.AppConfig{Env: "test"}},
		Logger: logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		PaymentsService: &stubPaymentsService{result: &payments.WebhookResult{
			Outcome: payments.OutcomeIgnored,
		}},
	})
}

func TestRouterHealthLive(t *testing.T) {
	rec := httptest.NewRecorder()
	testRouter().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestRouterUserRoutesRequireIdentity(t *testing.T) {
	for _, target := range []string{"/api/v1/orders", "/api/v1/orders/KK00001"} {
		rec := httptest.NewRecorder()
		testRouter().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401, got %d", target, rec.Code)
		}
	}
}

func TestRouterAdminRoutesRequireIdentity(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/admin/v1/orders/KK00001/confirm-payment", strings.NewReader(`{}`))
	testRouter().ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestRouterWebhookAliases(t *testing.T) {
	for _, target := range []string{"/webhook", "/api/v1/webhooks/payment"} {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(`{"event":"payment.failed"}`))
		testRouter().ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", target, rec.Code)
		}
	}
}
