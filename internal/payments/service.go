package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/kanakkart/storefront-backend/internal/checkout"
	"github.com/kanakkart/storefront-backend/internal/inventory"
	"github.com/kanakkart/storefront-backend/internal/orders"
	"github.com/kanakkart/storefront-backend/pkg/db"
	"github.com/kanakkart/storefront-backend/pkg/db/models"
	"github.com/kanakkart/storefront-backend/pkg/enums"
	pkgerrors "github.com/kanakkart/storefront-backend/pkg/errors"
	"github.com/kanakkart/storefront-backend/pkg/logger"
	"github.com/kanakkart/storefront-backend/pkg/metrics"
	"github.com/kanakkart/storefront-backend/pkg/razorpay"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type gatewayReader interface {
	VerifyWebhookSignature(body []byte, signature string) bool
	FetchOrder(ctx context.Context, gatewayOrderID string) (*razorpay.GatewayOrder, error)
}

type shipmentDispatcher interface {
	Dispatch(ctx context.Context, order *models.Order) enums.ShipmentStatus
}

type notifier interface {
	OrderConfirmed(order *models.Order)
}

// Service settles prepaid payments: gateway webhooks on the hot path and a
// manual admin confirmation as the compensating fallback.
type Service interface {
	HandleWebhook(ctx context.Context, body []byte, signature string) (*WebhookResult, error)
	ConfirmManually(ctx context.Context, input ConfirmInput) (*WebhookResult, error)
}

type service struct {
	checkoutRepo checkout.Repository
	ordersRepo   orders.Repository
	ordersSvc    orders.Service
	tx           txRunner
	ledger       inventory.Ledger
	gateway      gatewayReader
	dispatcher   shipmentDispatcher
	notifier     notifier
	metrics      *metrics.WebhookMetrics
	logger       *logger.Logger
}

// NewService builds the payments service. webhookMetrics may be nil.
func NewService(
	checkoutRepo checkout.Repository,
	ordersRepo orders.Repository,
	ordersSvc orders.Service,
	tx txRunner,
	ledger inventory.Ledger,
	gateway gatewayReader,
	dispatcher shipmentDispatcher,
	notify notifier,
	webhookMetrics *metrics.WebhookMetrics,
	logg *logger.Logger,
) (Service, error) {
	if checkoutRepo == nil {
		return nil, fmt.Errorf("checkout repository required")
	}
	if ordersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if ordersSvc == nil {
		return nil, fmt.Errorf("orders service required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("inventory ledger required")
	}
	if gateway == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	if dispatcher == nil {
		return nil, fmt.Errorf("shipment dispatcher required")
	}
	if notify == nil {
		return nil, fmt.Errorf("notifier required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		checkoutRepo: checkoutRepo,
		ordersRepo:   ordersRepo,
		ordersSvc:    ordersSvc,
		tx:           tx,
		ledger:       ledger,
		gateway:      gateway,
		dispatcher:   dispatcher,
		notifier:     notify,
		metrics:      webhookMetrics,
		logger:       logg,
	}, nil
}

// HandleWebhook processes one gateway delivery. Replays of the same capture
// are answered as duplicates; the unique index on gateway_order_id is the
// backstop when two deliveries race past the lookup.
func (s *service) HandleWebhook(ctx context.Context, body []byte, signature string) (*WebhookResult, error) {
	start := time.Now()

	if !s.gateway.VerifyWebhookSignature(body, signature) {
		s.observe("unknown", "rejected", start)
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "webhook signature mismatch")
	}

	event, err := parseWebhookEvent(body)
	if err != nil {
		s.observe("unknown", "rejected", start)
		return nil, err
	}

	if event.Event != eventPaymentCaptured {
		s.observe(event.Event, OutcomeIgnored, start)
		return &WebhookResult{Outcome: OutcomeIgnored}, nil
	}

	payment := event.Payload.Payment.Entity
	if payment.OrderID == "" || payment.ID == "" {
		s.observe(event.Event, "rejected", start)
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "captured payment missing gateway ids")
	}
	ctx = s.logger.WithFields(ctx, map[string]any{
		"gateway_order_id":   payment.OrderID,
		"gateway_payment_id": payment.ID,
	})

	existing, err := s.ordersRepo.FindByGatewayOrderID(ctx, payment.OrderID)
	if err == nil {
		s.logger.Info(ctx, "webhook replay, order already settled")
		s.observe(event.Event, OutcomeDuplicate, start)
		return duplicateResult(existing), nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		s.observe(event.Event, "error", start)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup order by gateway id")
	}

	order, result, err := s.settleCapture(ctx, payment.OrderID, payment.ID)
	if err != nil {
		outcome := "error"
		if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeStateConflict {
			outcome = "rejected"
		}
		s.observe(event.Event, outcome, start)
		return nil, err
	}
	if order != nil {
		// Side effects after commit; neither can fail the webhook.
		order.ShipmentStatus = s.dispatcher.Dispatch(ctx, order)
		result.OrderStatus = string(order.Status)
		s.notifier.OrderConfirmed(order)
	}

	s.observe(event.Event, result.Outcome, start)
	return result, nil
}

// settleCapture turns a captured gateway order into a durable order row.
// Number allocation, order creation and the stock decrement commit together.
func (s *service) settleCapture(ctx context.Context, gatewayOrderID, gatewayPaymentID string) (*models.Order, *WebhookResult, error) {
	gatewayOrder, err := s.gateway.FetchOrder(ctx, gatewayOrderID)
	if err != nil {
		return nil, nil, err
	}
	meta, err := checkout.DecodeIntentNotes(gatewayOrder.Notes)
	if err != nil {
		return nil, nil, err
	}

	address, err := s.checkoutRepo.FindAddressForUser(ctx, meta.AddressID, meta.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, s.reconciliationNeeded(ctx, gatewayPaymentID, "intent address no longer exists")
		}
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load intent address")
	}
	user, err := s.checkoutRepo.FindUser(ctx, meta.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, s.reconciliationNeeded(ctx, gatewayPaymentID, "intent user no longer exists")
		}
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load intent user")
	}

	var order *models.Order
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		checkoutRepo := s.checkoutRepo.WithTx(tx)
		ordersRepo := s.ordersRepo.WithTx(tx)

		ids := make([]uuid.UUID, 0, len(meta.Cart))
		for _, line := range meta.Cart {
			ids = append(ids, line.ProductID)
		}
		products, err := checkoutRepo.FindProductsByIDs(ctx, ids)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load products")
		}
		priced, total, err := checkout.PriceCart(products, meta.Cart)
		if err != nil {
			// The money is captured but the cart no longer validates.
			typed := pkgerrors.As(err)
			if typed != nil && typed.Code() != pkgerrors.CodeDependency {
				return s.reconciliationNeeded(ctx, gatewayPaymentID, typed.Message())
			}
			return err
		}

		number, err := ordersRepo.AllocateOrderNumber(ctx)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "allocate order number")
		}

		order = buildSettledOrder(number, meta, user, address, priced, total, gatewayOrderID, gatewayPaymentID)
		if err := ordersRepo.Create(ctx, order); err != nil {
			return err
		}
		if err := s.ledger.Deduct(ctx, tx, checkoutLines(priced)); err != nil {
			// Stock moved between pricing and deduction; the money is
			// already captured, same as a cart that stopped validating.
			if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeConflict {
				return s.reconciliationNeeded(ctx, gatewayPaymentID, typed.Message())
			}
			return err
		}
		return nil
	})
	if err != nil {
		if db.IsUniqueViolation(err, "idx_orders_gateway_order_id") {
			existing, lookupErr := s.ordersRepo.FindByGatewayOrderID(ctx, gatewayOrderID)
			if lookupErr != nil {
				return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, lookupErr, "reload settled order")
			}
			s.logger.Info(ctx, "concurrent webhook delivery lost the insert race")
			return nil, duplicateResult(existing), nil
		}
		return nil, nil, err
	}

	ctx = s.logger.WithOrderNumber(ctx, order.OrderNumber)
	s.logger.Info(ctx, "prepaid payment settled")
	return order, &WebhookResult{
		Outcome:        OutcomeProcessed,
		OrderNumber:    order.OrderNumber,
		OrderStatus:    string(order.Status),
		PaymentStatus:  string(order.PaymentStatus),
		GatewayOrderID: gatewayOrderID,
	}, nil
}

// ConfirmManually settles a stuck prepaid order when the webhook never
// arrived, then runs the same dispatch and notification path.
func (s *service) ConfirmManually(ctx context.Context, input ConfirmInput) (*WebhookResult, error) {
	order, err := s.ordersSvc.ConfirmPayment(ctx, orders.ConfirmPaymentInput{
		OrderNumber:      input.OrderNumber,
		GatewayPaymentID: input.GatewayPaymentID,
	})
	if err != nil {
		return nil, err
	}

	order.ShipmentStatus = s.dispatcher.Dispatch(ctx, order)
	s.notifier.OrderConfirmed(order)

	return &WebhookResult{
		Outcome:       OutcomeProcessed,
		OrderNumber:   order.OrderNumber,
		OrderStatus:   string(order.Status),
		PaymentStatus: string(order.PaymentStatus),
	}, nil
}

// reconciliationNeeded flags a captured payment that can no longer become an
// order. There is no automated refund; payments ops reconciles from the log.
func (s *service) reconciliationNeeded(ctx context.Context, gatewayPaymentID, reason string) error {
	err := pkgerrors.New(pkgerrors.CodeStateConflict,
		fmt.Sprintf("captured payment cannot be fulfilled: %s", reason))
	ctx = s.logger.WithField(ctx, "gateway_payment_id", gatewayPaymentID)
	s.logger.Error(ctx, "captured payment needs manual reconciliation", err)
	return err
}

func (s *service) observe(event, outcome string, start time.Time) {
	if s.metrics == nil {
		return
	}
	s.metrics.ObserveDuration(event, time.Since(start))
	s.metrics.IncOutcome(event, outcome)
}

func duplicateResult(order *models.Order) *WebhookResult {
	result := &WebhookResult{
		Outcome:       OutcomeDuplicate,
		OrderNumber:   order.OrderNumber,
		OrderStatus:   string(order.Status),
		PaymentStatus: string(order.PaymentStatus),
	}
	if order.GatewayOrderID != nil {
		result.GatewayOrderID = *order.GatewayOrderID
	}
	return result
}

func buildSettledOrder(
	number string,
	meta *checkout.IntentMetadata,
	user *models.User,
	address *models.Address,
	priced []checkout.PricedLine,
	total decimal.Decimal,
	gatewayOrderID, gatewayPaymentID string,
) *models.Order {
	now := time.Now().UTC()
	phone := address.Phone
	if user.Phone != nil && *user.Phone != "" {
		phone = *user.Phone
	}

	items := make([]models.OrderItem, 0, len(priced))
	for _, line := range priced {
		items = append(items, models.OrderItem{
			ID:           uuid.New(),
			ProductID:    line.Product.ID,
			ProductTitle: line.Product.Title,
			ProductSKU:   line.Product.SKU,
			Size:         line.Size,
			Quantity:     line.Quantity,
			UnitPrice:    line.UnitPrice,
		})
	}
	return &models.Order{
		ID:               uuid.New(),
		OrderNumber:      number,
		UserID:           &meta.UserID,
		CustomerName:     user.Name,
		CustomerEmail:    user.Email,
		CustomerPhone:    phone,
		PaymentMethod:    enums.PaymentMethodPrepaid,
		PaymentStatus:    enums.PaymentStatusCompleted,
		Status:           enums.OrderStatusConfirmed,
		GatewayOrderID:   &gatewayOrderID,
		GatewayPaymentID: &gatewayPaymentID,
		TotalAmount:      total,
		AddressID:        address.ID,
		Address:          address,
		InternalNotes:    meta.Notes,
		Items:            items,
		ConfirmedAt:      &now,
	}
}

func checkoutLines(priced []checkout.PricedLine) []inventory.Line {
	lines := make([]inventory.Line, 0, len(priced))
	for _, line := range priced {
		lines = append(lines, inventory.Line{
			ProductID: line.Product.ID,
			Size:      line.Size,
			Quantity:  line.Quantity,
		})
	}
	return lines
}
