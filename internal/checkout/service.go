package checkout

import (
	"context"
	"errors"
	"fmt"
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
	"github.com/kanakkart/storefront-backend/pkg/razorpay"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type paymentGateway interface {
	CreateOrder(ctx context.Context, params razorpay.OrderCreateParams) (*razorpay.GatewayOrder, error)
	CreatePaymentLink(ctx context.Context, params razorpay.PaymentLinkParams) (*razorpay.PaymentLink, error)
	Currency() string
	KeyID() string
}

type shipmentDispatcher interface {
	Dispatch(ctx context.Context, order *models.Order) enums.ShipmentStatus
}

type confirmationNotifier interface {
	OrderConfirmed(order *models.Order)
}

// Service turns a cart submission into either a confirmed COD order or a
// prepaid gateway intent.
type Service interface {
	Submit(ctx context.Context, input SubmitInput) (*SubmitResult, error)
}

type service struct {
	repo       Repository
	orders     orders.Repository
	tx         txRunner
	ledger     inventory.Ledger
	gateway    paymentGateway
	dispatcher shipmentDispatcher
	notifier   confirmationNotifier
	logger     *logger.Logger
}

// NewService builds the checkout service.
func NewService(
	repo Repository,
	ordersRepo orders.Repository,
	tx txRunner,
	ledger inventory.Ledger,
	gateway paymentGateway,
	dispatcher shipmentDispatcher,
	notifier confirmationNotifier,
	logg *logger.Logger,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("checkout repository required")
	}
	if ordersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
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
	if notifier == nil {
		return nil, fmt.Errorf("notifier required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:       repo,
		orders:     ordersRepo,
		tx:         tx,
		ledger:     ledger,
		gateway:    gateway,
		dispatcher: dispatcher,
		notifier:   notifier,
		logger:     logg,
	}, nil
}

func (s *service) Submit(ctx context.Context, input SubmitInput) (*SubmitResult, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if input.AddressID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "address id required")
	}
	if !input.PaymentMethod.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("invalid payment method %q", input.PaymentMethod))
	}
	if len(input.Cart) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart contains no items")
	}

	address, err := s.repo.FindAddressForUser(ctx, input.AddressID, input.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "address not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load address")
	}
	user, err := s.repo.FindUser(ctx, input.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}

	if input.PaymentMethod == enums.PaymentMethodCOD {
		return s.submitCOD(ctx, input, user, address)
	}
	return s.submitPrepaid(ctx, input, user, address)
}

// submitCOD creates the order and posts the stock decrement in one
// transaction, then dispatches the shipment and confirms. Dispatch failure
// never blocks confirmation; it leaves the order flagged for retry.
func (s *service) submitCOD(ctx context.Context, input SubmitInput, user *models.User, address *models.Address) (*SubmitResult, error) {
	var order *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		ordersRepo := s.orders.WithTx(tx)

		priced, total, err := s.priceCart(ctx, repo, input.Cart)
		if err != nil {
			return err
		}
		number, err := ordersRepo.AllocateOrderNumber(ctx)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "allocate order number")
		}

		order = buildOrder(number, input, user, address, priced, total)
		if err := ordersRepo.Create(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}
		return s.ledger.Deduct(ctx, tx, linesFromPriced(priced))
	})
	if err != nil {
		return nil, err
	}

	ctx = s.logger.WithOrderNumber(ctx, order.OrderNumber)
	order.ShipmentStatus = s.dispatcher.Dispatch(ctx, order)

	now := time.Now().UTC()
	updates := map[string]any{
		"status":       enums.OrderStatusConfirmed,
		"confirmed_at": now,
	}
	if err := s.orders.Update(ctx, order.ID, updates); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "confirm order")
	}
	order.Status = enums.OrderStatusConfirmed
	order.ConfirmedAt = &now

	s.logger.Info(ctx, "cod order confirmed")
	s.notifier.OrderConfirmed(order)

	return &SubmitResult{
		PaymentMethod:  enums.PaymentMethodCOD,
		OrderNumber:    order.OrderNumber,
		OrderStatus:    order.Status,
		ShipmentStatus: order.ShipmentStatus,
	}, nil
}

// submitPrepaid registers a gateway intent carrying the full cart snapshot.
// Nothing is persisted locally; the webhook creates the order on capture.
func (s *service) submitPrepaid(ctx context.Context, input SubmitInput, user *models.User, address *models.Address) (*SubmitResult, error) {
	_, total, err := s.priceCart(ctx, s.repo, input.Cart)
	if err != nil {
		return nil, err
	}

	notes, err := EncodeIntentNotes(IntentMetadata{
		UserID:    input.UserID,
		AddressID: input.AddressID,
		Cart:      input.Cart,
		Notes:     input.Notes,
	})
	if err != nil {
		return nil, err
	}

	amount := razorpay.ToPaise(total)
	gatewayOrder, err := s.gateway.CreateOrder(ctx, razorpay.OrderCreateParams{
		AmountPaise: amount,
		Receipt:     uuid.NewString(),
		Notes:       notes,
	})
	if err != nil {
		return nil, err
	}

	link, err := s.gateway.CreatePaymentLink(ctx, razorpay.PaymentLinkParams{
		AmountPaise:     amount,
		Description:     fmt.Sprintf("Payment for %s order", user.Name),
		CustomerName:    user.Name,
		CustomerEmail:   user.Email,
		CustomerContact: address.Phone,
		Notes:           map[string]interface{}{"gateway_order_id": gatewayOrder.ID},
	})
	if err != nil {
		return nil, err
	}

	ctx = s.logger.WithFields(ctx, map[string]any{
		"gateway_order_id": gatewayOrder.ID,
		"amount_paise":     amount,
	})
	s.logger.Info(ctx, "prepaid intent created")
	return &SubmitResult{
		PaymentMethod:  enums.PaymentMethodPrepaid,
		GatewayOrderID: gatewayOrder.ID,
		AmountPaise:    amount,
		Currency:       s.gateway.Currency(),
		GatewayKeyID:   s.gateway.KeyID(),
		PaymentLink:    link.ShortURL,
	}, nil
}

func (s *service) priceCart(ctx context.Context, repo Repository, lines []CartLine) ([]PricedLine, decimal.Decimal, error) {
	ids := make([]uuid.UUID, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.ProductID)
	}
	products, err := repo.FindProductsByIDs(ctx, ids)
	if err != nil {
		return nil, decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load products")
	}
	return PriceCart(products, lines)
}

func buildOrder(number string, input SubmitInput, user *models.User, address *models.Address, priced []PricedLine, total decimal.Decimal) *models.Order {
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
		ID:            uuid.New(),
		OrderNumber:   number,
		UserID:        &input.UserID,
		CustomerName:  user.Name,
		CustomerEmail: user.Email,
		CustomerPhone: phone,
		PaymentMethod: input.PaymentMethod,
		PaymentStatus: enums.PaymentStatusPending,
		Status:        enums.OrderStatusPending,
		TotalAmount:   total,
		AddressID:     address.ID,
		Address:       address,
		InternalNotes: input.Notes,
		Items:         items,
	}
}

func linesFromPriced(priced []PricedLine) []inventory.Line {
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
