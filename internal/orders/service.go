package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kanakkart/storefront-backend/internal/inventory"
	"github.com/kanakkart/storefront-backend/pkg/db/models"
	"github.com/kanakkart/storefront-backend/pkg/enums"
	pkgerrors "github.com/kanakkart/storefront-backend/pkg/errors"
	"github.com/kanakkart/storefront-backend/pkg/logger"
	"github.com/kanakkart/storefront-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service defines order-level operations beyond repository reads.
type Service interface {
	GetDetail(ctx context.Context, orderNumber string) (*OrderDetail, error)
	GetDetailForUser(ctx context.Context, userID uuid.UUID, orderNumber string) (*OrderDetail, error)
	List(ctx context.Context, params pagination.Params, filters ListFilters) (*OrderList, error)
	ListForUser(ctx context.Context, userID uuid.UUID, params pagination.Params) (*OrderList, error)
	UpdateStatus(ctx context.Context, input StatusUpdateInput) (*OrderDetail, error)
	ConfirmPayment(ctx context.Context, input ConfirmPaymentInput) (*models.Order, error)
	ApplyShipmentEvent(ctx context.Context, input ShipmentEventInput) error
}

type service struct {
	repo   Repository
	tx     txRunner
	ledger inventory.Ledger
	logger *logger.Logger
}

// NewService builds the orders service with the required dependencies.
func NewService(repo Repository, tx txRunner, ledger inventory.Ledger, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("inventory ledger required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, tx: tx, ledger: ledger, logger: logg}, nil
}

func (s *service) GetDetail(ctx context.Context, orderNumber string) (*OrderDetail, error) {
	order, err := s.loadByNumber(ctx, orderNumber)
	if err != nil {
		return nil, err
	}
	return DetailFromModel(order), nil
}

// GetDetailForUser answers with NotFound for orders that belong to someone
// else, so existence does not leak across accounts.
func (s *service) GetDetailForUser(ctx context.Context, userID uuid.UUID, orderNumber string) (*OrderDetail, error) {
	order, err := s.loadByNumber(ctx, orderNumber)
	if err != nil {
		return nil, err
	}
	if order.UserID == nil || *order.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return DetailFromModel(order), nil
}

func (s *service) List(ctx context.Context, params pagination.Params, filters ListFilters) (*OrderList, error) {
	list, err := s.repo.List(ctx, params, filters)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return list, nil
}

func (s *service) ListForUser(ctx context.Context, userID uuid.UUID, params pagination.Params) (*OrderList, error) {
	list, err := s.repo.ListForUser(ctx, userID, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders for user")
	}
	return list, nil
}

// UpdateStatus moves an order forward through its lifecycle. Cancelling an
// order whose stock was already deducted returns it inside the same
// transaction.
func (s *service) UpdateStatus(ctx context.Context, input StatusUpdateInput) (*OrderDetail, error) {
	if !input.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid order status %q", input.Status))
	}

	var updated *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByOrderNumber(ctx, input.OrderNumber)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if order.Status == input.Status {
			updated = order
			return nil
		}
		if !order.Status.CanTransitionTo(input.Status) {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("cannot move order from %s to %s", order.Status, input.Status))
		}

		updates := map[string]any{"status": input.Status}
		now := time.Now().UTC()
		switch input.Status {
		case enums.OrderStatusConfirmed:
			updates["confirmed_at"] = now
		case enums.OrderStatusShipped:
			updates["shipped_at"] = now
		case enums.OrderStatusDelivered:
			updates["delivered_at"] = now
		case enums.OrderStatusCancelled:
			updates["cancelled_at"] = now
		}
		if input.Notes != nil {
			updates["internal_notes"] = appendNote(order.InternalNotes, *input.Notes)
		}

		if input.Status == enums.OrderStatusCancelled && stockDeducted(order) {
			if err := s.ledger.Restore(ctx, tx, linesFromItems(order.Items)); err != nil {
				return err
			}
		}

		if err := repo.Update(ctx, order.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		updated, err = repo.FindByOrderNumber(ctx, input.OrderNumber)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload order")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return DetailFromModel(updated), nil
}

// ConfirmPayment is the manual fallback when the gateway webhook never
// arrived. The claim is a single conditional update, so a racing webhook and
// admin confirm cannot both win.
func (s *service) ConfirmPayment(ctx context.Context, input ConfirmPaymentInput) (*models.Order, error) {
	order, err := s.loadByNumber(ctx, input.OrderNumber)
	if err != nil {
		return nil, err
	}
	if order.PaymentMethod != enums.PaymentMethodPrepaid {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "only prepaid orders need payment confirmation")
	}

	now := time.Now().UTC()
	updates := map[string]any{
		"payment_status": enums.PaymentStatusCompleted,
		"status":         enums.OrderStatusConfirmed,
		"confirmed_at":   now,
	}
	if input.GatewayPaymentID != nil {
		updates["gateway_payment_id"] = *input.GatewayPaymentID
	}

	// The claim and the stock decrement commit together: losing the claim
	// (a webhook got there first) must not touch inventory.
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		claimed, err := s.repo.WithTx(tx).ClaimPendingPayment(ctx, order.ID, updates)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim pending payment")
		}
		if !claimed {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "payment is not pending")
		}
		return s.ledger.Deduct(ctx, tx, linesFromItems(order.Items))
	})
	if err != nil {
		return nil, err
	}

	ctx = s.logger.WithOrderNumber(ctx, order.OrderNumber)
	s.logger.Info(ctx, "payment confirmed manually")
	return s.loadByNumber(ctx, input.OrderNumber)
}

// ApplyShipmentEvent folds a courier callback into the order. Unknown
// transitions are ignored rather than failed, since providers replay events.
func (s *service) ApplyShipmentEvent(ctx context.Context, input ShipmentEventInput) error {
	order, err := s.loadByNumber(ctx, input.OrderNumber)
	if err != nil {
		return err
	}

	updates := map[string]any{}
	if input.AWBCode != nil && *input.AWBCode != "" {
		updates["awb_code"] = *input.AWBCode
	}
	if input.CourierName != nil && *input.CourierName != "" {
		updates["courier_name"] = *input.CourierName
	}

	now := time.Now().UTC()
	switch {
	case input.Delivered:
		if order.Status.CanTransitionTo(enums.OrderStatusDelivered) {
			updates["status"] = enums.OrderStatusDelivered
			updates["delivered_at"] = now
			if order.PaymentMethod == enums.PaymentMethodCOD && order.PaymentStatus == enums.PaymentStatusPending {
				updates["payment_status"] = enums.PaymentStatusCompleted
			}
		}
	default:
		if order.Status.CanTransitionTo(enums.OrderStatusShipped) {
			updates["status"] = enums.OrderStatusShipped
			updates["shipped_at"] = now
		}
	}

	if len(updates) == 0 {
		return nil
	}
	if err := s.repo.Update(ctx, order.ID, updates); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "apply shipment event")
	}
	return nil
}

func (s *service) loadByNumber(ctx context.Context, orderNumber string) (*models.Order, error) {
	if orderNumber == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order number is required")
	}
	order, err := s.repo.FindByOrderNumber(ctx, orderNumber)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

// stockDeducted reports whether the order's items were taken out of
// inventory. COD orders deduct at creation while still pending; prepaid
// orders only deduct once the payment settles.
func stockDeducted(order *models.Order) bool {
	return order.PaymentMethod == enums.PaymentMethodCOD ||
		order.PaymentStatus == enums.PaymentStatusCompleted
}

func linesFromItems(items []models.OrderItem) []inventory.Line {
	lines := make([]inventory.Line, 0, len(items))
	for _, item := range items {
		lines = append(lines, inventory.Line{
			ProductID: item.ProductID,
			Size:      item.Size,
			Quantity:  item.Quantity,
		})
	}
	return lines
}

func appendNote(existing *string, note string) string {
	stamped := fmt.Sprintf("[%s] %s", time.Now().UTC().Format(time.RFC3339), note)
	if existing == nil || *existing == "" {
		return stamped
	}
	return *existing + "\n" + stamped
}
