package checkout

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/kanakkart/storefront-backend/internal/inventory"
	"github.com/kanakkart/storefront-backend/internal/orders"
	"github.com/kanakkart/storefront-backend/pkg/db/models"
	"github.com/kanakkart/storefront-backend/pkg/enums"
	pkgerrors "github.com/kanakkart/storefront-backend/pkg/errors"
	"github.com/kanakkart/storefront-backend/pkg/logger"
	"github.com/kanakkart/storefront-backend/pkg/pagination"
	"github.com/kanakkart/storefront-backend/pkg/razorpay"
	"github.com/kanakkart/storefront-backend/pkg/types"
)

type stubCheckoutRepo struct {
	products  map[uuid.UUID]*models.Product
	addresses map[uuid.UUID]*models.Address
	users     map[uuid.UUID]*models.User
}

func (r *stubCheckoutRepo) WithTx(tx *gorm.DB) Repository { return r }

func (r *stubCheckoutRepo) FindProductsByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*models.Product, error) {
	found := map[uuid.UUID]*models.Product{}
	for _, id := range ids {
		if p, ok := r.products[id]; ok {
			found[id] = p
		}
	}
	return found, nil
}

func (r *stubCheckoutRepo) FindAddressForUser(ctx context.Context, addressID, userID uuid.UUID) (*models.Address, error) {
	address, ok := r.addresses[addressID]
	if !ok || address.UserID == nil || *address.UserID != userID {
		return nil, gorm.ErrRecordNotFound
	}
	return address, nil
}

func (r *stubCheckoutRepo) FindUser(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	user, ok := r.users[userID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return user, nil
}

type stubOrdersRepo struct {
	nextNumber int
	created    *models.Order
	createErr  error
	updates    map[string]any
}

func (r *stubOrdersRepo) WithTx(tx *gorm.DB) orders.Repository { return r }

func (r *stubOrdersRepo) AllocateOrderNumber(ctx context.Context) (string, error) {
	r.nextNumber++
	return fmt.Sprintf("KK%05d", r.nextNumber), nil
}

func (r *stubOrdersRepo) Create(ctx context.Context, order *models.Order) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.created = order
	return nil
}

func (r *stubOrdersRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return nil, gorm.ErrRecordNotFound
}

func (r *stubOrdersRepo) FindByOrderNumber(ctx context.Context, orderNumber string) (*models.Order, error) {
	return nil, gorm.ErrRecordNotFound
}

func (r *stubOrdersRepo) FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*models.Order, error) {
	return nil, gorm.ErrRecordNotFound
}

func (r *stubOrdersRepo) List(ctx context.Context, params pagination.Params, filters orders.ListFilters) (*orders.OrderList, error) {
	return &orders.OrderList{}, nil
}

func (r *stubOrdersRepo) ListForUser(ctx context.Context, userID uuid.UUID, params pagination.Params) (*orders.OrderList, error) {
	return &orders.OrderList{}, nil
}

func (r *stubOrdersRepo) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	r.updates = updates
	return nil
}

func (r *stubOrdersRepo) ClaimPendingPayment(ctx context.Context, id uuid.UUID, updates map[string]any) (bool, error) {
	return false, nil
}

func (r *stubOrdersRepo) FindDispatchRetryable(ctx context.Context, cutoff time.Time, limit int) ([]*models.Order, error) {
	return nil, nil
}

type stubCheckoutTx struct{}

func (stubCheckoutTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type stubCheckoutLedger struct {
	deducted []inventory.Line
	err      error
}

func (l *stubCheckoutLedger) Deduct(ctx context.Context, tx *gorm.DB, lines []inventory.Line) error {
	if l.err != nil {
		return l.err
	}
	l.deducted = append(l.deducted, lines...)
	return nil
}

func (l *stubCheckoutLedger) Restore(ctx context.Context, tx *gorm.DB, lines []inventory.Line) error {
	return nil
}

type stubGateway struct {
	orderParams razorpay.OrderCreateParams
	orderErr    error
	linkParams  razorpay.PaymentLinkParams
}

func (g *stubGateway) CreateOrder(ctx context.Context, params razorpay.OrderCreateParams) (*razorpay.GatewayOrder, error) {
	if g.orderErr != nil {
		return nil, g.orderErr
	}
	g.orderParams = params
	return &razorpay.GatewayOrder{ID: "order_rzp_1", AmountPaise: params.AmountPaise, Currency: "INR"}, nil
}

func (g *stubGateway) CreatePaymentLink(ctx context.Context, params razorpay.PaymentLinkParams) (*razorpay.PaymentLink, error) {
	g.linkParams = params
	return &razorpay.PaymentLink{ID: "plink_1", ShortURL: "https://rzp.io/i/abc"}, nil
}

func (g *stubGateway) Currency() string { return "INR" }
func (g *stubGateway) KeyID() string    { return "rzp_test_key" }

type stubDispatcher struct {
	called int
	result enums.ShipmentStatus
}

func (d *stubDispatcher) Dispatch(ctx context.Context, order *models.Order) enums.ShipmentStatus {
	d.called++
	if d.result == "" {
		return enums.ShipmentStatusOrderCreated
	}
	return d.result
}

type stubNotifier struct {
	confirmed []*models.Order
}

func (n *stubNotifier) OrderConfirmed(order *models.Order) {
	n.confirmed = append(n.confirmed, order)
}

type checkoutFixture struct {
	svc        Service
	repo       *stubCheckoutRepo
	orders     *stubOrdersRepo
	ledger     *stubCheckoutLedger
	gateway    *stubGateway
	dispatcher *stubDispatcher
	notifier   *stubNotifier

	userID    uuid.UUID
	addressID uuid.UUID
	flat      *models.Product
	sized     *models.Product
}

func newCheckoutFixture(t *testing.T) *checkoutFixture {
	t.Helper()

	userID := uuid.New()
	addressID := uuid.New()
	flat := &models.Product{
		ID: uuid.New(), SKU: "TEE-001", Title: "Oversized Tee",
		Price: decimal.RequireFromString("499.00"), Stock: 10, IsActive: true,
	}
	sized := &models.Product{
		ID: uuid.New(), SKU: "HOOD-001", Title: "Hoodie",
		Price:     decimal.RequireFromString("999.00"),
		SizeStock: types.SizeStock{"M": 3}, Stock: 3, IsActive: true,
	}
	phone := "9876543210"
	repo := &stubCheckoutRepo{
		products: map[uuid.UUID]*models.Product{flat.ID: flat, sized.ID: sized},
		addresses: map[uuid.UUID]*models.Address{addressID: {
			ID: addressID, UserID: &userID, Name: "Asha Verma", Phone: phone,
			Line1: "12 MG Road", City: "Bengaluru", State: "Karnataka",
			PostalCode: "560001", Country: "IN",
		}},
		users: map[uuid.UUID]*models.User{userID: {
			ID: userID, Name: "Asha Verma", Email: "asha@example.com",
		}},
	}
	ordersRepo := &stubOrdersRepo{}
	ledger := &stubCheckoutLedger{}
	gateway := &stubGateway{}
	dispatcher := &stubDispatcher{}
	notifier := &stubNotifier{}

	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	svc, err := NewService(repo, ordersRepo, stubCheckoutTx{}, ledger, gateway, dispatcher, notifier, logg)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return &checkoutFixture{
		svc: svc, repo: repo, orders: ordersRepo, ledger: ledger,
		gateway: gateway, dispatcher: dispatcher, notifier: notifier,
		userID: userID, addressID: addressID, flat: flat, sized: sized,
	}
}

func TestSubmitCODCreatesConfirmedOrder(t *testing.T) {
	f := newCheckoutFixture(t)
	size := "M"

	result, err := f.svc.Submit(context.Background(), SubmitInput{
		UserID:        f.userID,
		AddressID:     f.addressID,
		PaymentMethod: enums.PaymentMethodCOD,
		Cart: []CartLine{
			{ProductID: f.flat.ID, Quantity: 2},
			{ProductID: f.sized.ID, Quantity: 1, Size: &size},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.OrderNumber != "KK00001" {
		t.Fatalf("expected KK00001, got %s", result.OrderNumber)
	}
	if result.OrderStatus != enums.OrderStatusConfirmed {
		t.Fatalf("expected confirmed, got %s", result.OrderStatus)
	}
	if result.ShipmentStatus != enums.ShipmentStatusOrderCreated {
		t.Fatalf("expected order_created, got %s", result.ShipmentStatus)
	}

	created := f.orders.created
	if created == nil {
		t.Fatal("no order persisted")
	}
	if created.PaymentMethod != enums.PaymentMethodCOD || created.PaymentStatus != enums.PaymentStatusPending {
		t.Fatal("COD orders start with pending payment")
	}
	if want := decimal.RequireFromString("1997.00"); !created.TotalAmount.Equal(want) {
		t.Fatalf("expected total %s, got %s", want, created.TotalAmount)
	}
	if len(created.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(created.Items))
	}
	if created.Items[0].ProductSKU != "TEE-001" || created.Items[1].ProductSKU != "HOOD-001" {
		t.Fatalf("items must snapshot the product SKU: %+v", created.Items)
	}
	if len(f.ledger.deducted) != 2 {
		t.Fatalf("expected 2 deducted lines, got %d", len(f.ledger.deducted))
	}
	if f.dispatcher.called != 1 {
		t.Fatal("shipment dispatch must run once")
	}
	if f.orders.updates["status"] != enums.OrderStatusConfirmed {
		t.Fatal("order must be confirmed after dispatch")
	}
	if len(f.notifier.confirmed) != 1 {
		t.Fatal("confirmation notification not queued")
	}
}

func TestSubmitCODConfirmsDespiteDispatchFailure(t *testing.T) {
	f := newCheckoutFixture(t)
	f.dispatcher.result = enums.ShipmentStatusFailed

	result, err := f.svc.Submit(context.Background(), SubmitInput{
		UserID:        f.userID,
		AddressID:     f.addressID,
		PaymentMethod: enums.PaymentMethodCOD,
		Cart:          []CartLine{{ProductID: f.flat.ID, Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("dispatch failure must not fail checkout: %v", err)
	}
	if result.OrderStatus != enums.OrderStatusConfirmed {
		t.Fatal("order must confirm even when dispatch fails")
	}
	if result.ShipmentStatus != enums.ShipmentStatusFailed {
		t.Fatal("failed shipment status must surface in the result")
	}
}

func TestSubmitCODInsufficientStockRollsBack(t *testing.T) {
	f := newCheckoutFixture(t)

	_, err := f.svc.Submit(context.Background(), SubmitInput{
		UserID:        f.userID,
		AddressID:     f.addressID,
		PaymentMethod: enums.PaymentMethodCOD,
		Cart:          []CartLine{{ProductID: f.flat.ID, Quantity: 11}},
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
	if f.dispatcher.called != 0 {
		t.Fatal("nothing should dispatch on a failed checkout")
	}
	if len(f.notifier.confirmed) != 0 {
		t.Fatal("nothing should notify on a failed checkout")
	}
}

func TestSubmitPrepaidCreatesIntentOnly(t *testing.T) {
	f := newCheckoutFixture(t)
	notes := "call before delivery"

	result, err := f.svc.Submit(context.Background(), SubmitInput{
		UserID:        f.userID,
		AddressID:     f.addressID,
		PaymentMethod: enums.PaymentMethodPrepaid,
		Cart:          []CartLine{{ProductID: f.flat.ID, Quantity: 2}},
		Notes:         &notes,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.GatewayOrderID != "order_rzp_1" {
		t.Fatalf("expected gateway order id, got %q", result.GatewayOrderID)
	}
	if result.AmountPaise != 99800 {
		t.Fatalf("expected 99800 paise, got %d", result.AmountPaise)
	}
	if result.PaymentLink != "https://rzp.io/i/abc" {
		t.Fatalf("expected payment link, got %q", result.PaymentLink)
	}
	if result.GatewayKeyID != "rzp_test_key" || result.Currency != "INR" {
		t.Fatal("gateway key and currency must be returned for the client")
	}

	if f.orders.created != nil {
		t.Fatal("prepaid checkout must not create an order row")
	}
	if len(f.ledger.deducted) != 0 {
		t.Fatal("prepaid checkout must not touch stock")
	}

	meta, err := DecodeIntentNotes(f.gateway.orderParams.Notes)
	if err != nil {
		t.Fatalf("intent notes must round-trip: %v", err)
	}
	if meta.UserID != f.userID || meta.AddressID != f.addressID {
		t.Fatal("intent metadata must carry user and address ids")
	}
	if len(meta.Cart) != 1 || meta.Cart[0].Quantity != 2 {
		t.Fatalf("intent metadata must carry the cart: %+v", meta.Cart)
	}
	if meta.Notes == nil || *meta.Notes != notes {
		t.Fatal("intent metadata must carry customer notes")
	}
}

func TestSubmitPrepaidGatewayFailureLeavesNothing(t *testing.T) {
	f := newCheckoutFixture(t)
	f.gateway.orderErr = pkgerrors.New(pkgerrors.CodeDependency, "gateway unavailable")

	_, err := f.svc.Submit(context.Background(), SubmitInput{
		UserID:        f.userID,
		AddressID:     f.addressID,
		PaymentMethod: enums.PaymentMethodPrepaid,
		Cart:          []CartLine{{ProductID: f.flat.ID, Quantity: 1}},
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency error, got %v", err)
	}
	if f.orders.created != nil || len(f.ledger.deducted) != 0 {
		t.Fatal("gateway failure must leave no partial state")
	}
}

func TestSubmitRejectsForeignAddress(t *testing.T) {
	f := newCheckoutFixture(t)

	_, err := f.svc.Submit(context.Background(), SubmitInput{
		UserID:        uuid.New(),
		AddressID:     f.addressID,
		PaymentMethod: enums.PaymentMethodCOD,
		Cart:          []CartLine{{ProductID: f.flat.ID, Quantity: 1}},
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found for another user's address, got %v", err)
	}
}
