package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kanakkart/storefront-backend/internal/orders"
	"github.com/kanakkart/storefront-backend/internal/payments"
	"github.com/kanakkart/storefront-backend/pkg/db/models"
	"github.com/kanakkart/storefront-backend/pkg/enums"
	pkgerrors "github.com/kanakkart/storefront-backend/pkg/errors"
)

type stubPaymentsService struct {
	result    *payments.WebhookResult
	err       error
	lastInput payments.ConfirmInput
}

func (s *stubPaymentsService) HandleWebhook(_ context.Context, body []byte, signature string) (*payments.WebhookResult, error) {
	return s.result, s.err
}

func (s *stubPaymentsService) ConfirmManually(_ context.Context, input payments.ConfirmInput) (*payments.WebhookResult, error) {
	s.lastInput = input
	return s.result, s.err
}

type stubOrderLoader struct {
	orders map[string]*models.Order
}

func (s *stubOrderLoader) FindByOrderNumber(_ context.Context, orderNumber string) (*models.Order, error) {
	order, ok := s.orders[orderNumber]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return order, nil
}

type stubRetrier struct {
	status     enums.ShipmentStatus
	dispatched []*models.Order
}

func (s *stubRetrier) Dispatch(_ context.Context, order *models.Order) enums.ShipmentStatus {
	s.dispatched = append(s.dispatched, order)
	return s.status
}

type stubStatusNotifier struct {
	mu      sync.Mutex
	changed []*models.Order
}

func (s *stubStatusNotifier) StatusChanged(order *models.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.changed = append(s.changed, order)
}

func TestAdminConfirmPaymentPassesPaymentID(t *testing.T) {
	svc := &stubPaymentsService{result: &payments.WebhookResult{
		Outcome:       payments.OutcomeProcessed,
		OrderNumber:   "KK00009",
		OrderStatus:   string(enums.OrderStatusConfirmed),
		PaymentStatus: string(enums.PaymentStatusCompleted),
	}}

	body := `{"gateway_payment_id":"pay_manual_1"}`
	req := withURLParam(authedRequest(http.MethodPost, "/api/admin/v1/orders/KK00009/confirm-payment", body, uuid.New()), "orderNumber", "KK00009")
	rec := httptest.NewRecorder()
	AdminConfirmPayment(svc, controllerLogger())(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if svc.lastInput.OrderNumber != "KK00009" {
		t.Fatalf("order number not propagated: %q", svc.lastInput.OrderNumber)
	}
	if svc.lastInput.GatewayPaymentID == nil || *svc.lastInput.GatewayPaymentID != "pay_manual_1" {
		t.Fatalf("payment id not propagated: %v", svc.lastInput.GatewayPaymentID)
	}
}

func TestAdminConfirmPaymentMapsClaimConflict(t *testing.T) {
	svc := &stubPaymentsService{err: pkgerrors.New(pkgerrors.CodeStateConflict, "payment is not pending")}

	req := withURLParam(authedRequest(http.MethodPost, "/api/admin/v1/orders/KK00009/confirm-payment", `{}`, uuid.New()), "orderNumber", "KK00009")
	rec := httptest.NewRecorder()
	AdminConfirmPayment(svc, controllerLogger())(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
}

func TestAdminUpdateStatusNotifiesCustomer(t *testing.T) {
	order := &models.Order{ID: uuid.New(), OrderNumber: "KK00011", Status: enums.OrderStatusShipped}
	svc := &stubOrdersService{updated: &orders.OrderDetail{OrderNumber: "KK00011", Status: enums.OrderStatusShipped}}
	loader := &stubOrderLoader{orders: map[string]*models.Order{"KK00011": order}}
	notif := &stubStatusNotifier{}

	body := `{"status":"shipped","notes":"left warehouse"}`
	req := withURLParam(authedRequest(http.MethodPatch, "/api/admin/v1/orders/KK00011/status", body, uuid.New()), "orderNumber", "KK00011")
	rec := httptest.NewRecorder()
	AdminUpdateStatus(svc, loader, notif, controllerLogger())(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if svc.lastUpdate.Status != enums.OrderStatusShipped {
		t.Fatalf("status not propagated: %s", svc.lastUpdate.Status)
	}
	if svc.lastUpdate.Notes == nil || *svc.lastUpdate.Notes != "left warehouse" {
		t.Fatalf("notes not propagated")
	}
	if len(notif.changed) != 1 || notif.changed[0].OrderNumber != "KK00011" {
		t.Fatalf("status notification not sent")
	}
}

func TestAdminUpdateStatusRejectsUnknownStatus(t *testing.T) {
	svc := &stubOrdersService{}
	req := withURLParam(authedRequest(http.MethodPatch, "/api/admin/v1/orders/KK00011/status", `{"status":"teleported"}`, uuid.New()), "orderNumber", "KK00011")
	rec := httptest.NewRecorder()
	AdminUpdateStatus(svc, &stubOrderLoader{}, &stubStatusNotifier{}, controllerLogger())(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestAdminUpdateStatusSkipsNotificationOnFailure(t *testing.T) {
	svc := &stubOrdersService{updateErr: pkgerrors.New(pkgerrors.CodeStateConflict, "cannot change status from shipped to pending")}
	notif := &stubStatusNotifier{}

	req := withURLParam(authedRequest(http.MethodPatch, "/api/admin/v1/orders/KK00011/status", `{"status":"pending"}`, uuid.New()), "orderNumber", "KK00011")
	rec := httptest.NewRecorder()
	AdminUpdateStatus(svc, &stubOrderLoader{}, notif, controllerLogger())(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	if len(notif.changed) != 0 {
		t.Fatalf("no notification expected on rejected transition")
	}
}

func TestAdminRetryShipmentDispatchesFailedOrder(t *testing.T) {
	order := &models.Order{
		ID:             uuid.New(),
		OrderNumber:    "KK00012",
		Status:         enums.OrderStatusConfirmed,
		ShipmentStatus: enums.ShipmentStatusFailed,
	}
	loader := &stubOrderLoader{orders: map[string]*models.Order{"KK00012": order}}
	retrier := &stubRetrier{status: enums.ShipmentStatusOrderCreated}

	req := withURLParam(authedRequest(http.MethodPost, "/api/admin/v1/orders/KK00012/ship/retry", "", uuid.New()), "orderNumber", "KK00012")
	rec := httptest.NewRecorder()
	AdminRetryShipment(loader, retrier, controllerLogger())(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(retrier.dispatched) != 1 {
		t.Fatalf("expected one dispatch, got %d", len(retrier.dispatched))
	}
	if !strings.Contains(rec.Body.String(), string(enums.ShipmentStatusOrderCreated)) {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}

func TestAdminRetryShipmentRejectsHealthyShipment(t *testing.T) {
	order := &models.Order{
		ID:             uuid.New(),
		OrderNumber:    "KK00013",
		Status:         enums.OrderStatusConfirmed,
		ShipmentStatus: enums.ShipmentStatusOrderCreated,
	}
	loader := &stubOrderLoader{orders: map[string]*models.Order{"KK00013": order}}
	retrier := &stubRetrier{status: enums.ShipmentStatusOrderCreated}

	req := withURLParam(authedRequest(http.MethodPost, "/api/admin/v1/orders/KK00013/ship/retry", "", uuid.New()), "orderNumber", "KK00013")
	rec := httptest.NewRecorder()
	AdminRetryShipment(loader, retrier, controllerLogger())(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	if len(retrier.dispatched) != 0 {
		t.Fatalf("no dispatch expected")
	}
}

func TestAdminRetryShipmentUnknownOrder(t *testing.T) {
	loader := &stubOrderLoader{orders: map[string]*models.Order{}}
	retrier := &stubRetrier{}

	req := withURLParam(authedRequest(http.MethodPost, "/api/admin/v1/orders/KK00099/ship/retry", "", uuid.New()), "orderNumber", "KK00099")
	rec := httptest.NewRecorder()
	AdminRetryShipment(loader, retrier, controllerLogger())(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
