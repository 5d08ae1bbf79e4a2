package orders

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kanakkart/storefront-backend/pkg/db/models"
	"github.com/kanakkart/storefront-backend/pkg/enums"
	"github.com/kanakkart/storefront-backend/pkg/pagination"
)

const orderNumberWidth = 5

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// AllocateOrderNumber claims the next number from the counter row. The
// UPDATE takes the row lock, so concurrent callers serialize here and each
// observes a distinct value. Must run inside the order-creation transaction.
func (r *repository) AllocateOrderNumber(ctx context.Context) (string, error) {
	res := r.db.WithContext(ctx).Exec(`
		UPDATE order_counters
		SET next_value = next_value + 1,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = 1
	`)
	if res.Error != nil {
		return "", res.Error
	}
	if res.RowsAffected == 0 {
		return "", fmt.Errorf("order counter row missing")
	}

	var counter models.OrderCounter
	if err := r.db.WithContext(ctx).Where("id = 1").First(&counter).Error; err != nil {
		return "", err
	}
	claimed := counter.NextValue - 1
	return fmt.Sprintf("%s%0*d", counter.Prefix, orderNumberWidth, claimed), nil
}

func (r *repository) Create(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return r.findOne(ctx, "id = ?", id)
}

func (r *repository) FindByOrderNumber(ctx context.Context, orderNumber string) (*models.Order, error) {
	return r.findOne(ctx, "order_number = ?", orderNumber)
}

func (r *repository) FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*models.Order, error) {
	return r.findOne(ctx, "gateway_order_id = ?", gatewayOrderID)
}

func (r *repository) findOne(ctx context.Context, cond string, value any) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Preload("Address").
		Where(cond, value).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) List(ctx context.Context, params pagination.Params, filters ListFilters) (*OrderList, error) {
	query := r.db.WithContext(ctx).Model(&models.Order{})

	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}
	if filters.PaymentStatus != nil {
		query = query.Where("payment_status = ?", *filters.PaymentStatus)
	}
	if filters.PaymentMethod != nil {
		query = query.Where("payment_method = ?", *filters.PaymentMethod)
	}
	if filters.DateFrom != nil {
		query = query.Where("created_at >= ?", *filters.DateFrom)
	}
	if filters.DateTo != nil {
		query = query.Where("created_at <= ?", *filters.DateTo)
	}
	if q := strings.TrimSpace(filters.Query); q != "" {
		like := "%" + q + "%"
		query = query.Where("order_number LIKE ? OR customer_email LIKE ? OR customer_name LIKE ?", like, like, like)
	}

	return r.listPage(ctx, query, params)
}

func (r *repository) ListForUser(ctx context.Context, userID uuid.UUID, params pagination.Params) (*OrderList, error) {
	query := r.db.WithContext(ctx).Model(&models.Order{}).Where("user_id = ?", userID)
	return r.listPage(ctx, query, params)
}

func (r *repository) listPage(ctx context.Context, query *gorm.DB, params pagination.Params) (*OrderList, error) {
	limit := pagination.LimitWithBuffer(params.Limit)
	normalized := pagination.NormalizeLimit(params.Limit)

	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, err
		}
		if cursor != nil {
			query = query.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
		}
	}

	var rows []*models.Order
	if err := query.
		Preload("Items").
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}

	list := &OrderList{}
	if len(rows) > normalized {
		next := rows[normalized]
		rows = rows[:normalized]
		list.NextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: next.CreatedAt, ID: next.ID})
	}

	list.Orders = make([]OrderSummary, 0, len(rows))
	for _, row := range rows {
		items := 0
		for _, item := range row.Items {
			items += item.Quantity
		}
		list.Orders = append(list.Orders, OrderSummary{
			OrderNumber:    row.OrderNumber,
			CreatedAt:      row.CreatedAt,
			CustomerName:   row.CustomerName,
			TotalAmount:    row.TotalAmount,
			TotalItems:     items,
			PaymentMethod:  row.PaymentMethod,
			PaymentStatus:  row.PaymentStatus,
			Status:         row.Status,
			ShipmentStatus: row.ShipmentStatus,
		})
	}
	return list, nil
}

func (r *repository) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// ClaimPendingPayment flips a still-pending payment in one statement. The
// predicate makes concurrent confirmations race safely: exactly one caller
// sees RowsAffected 1.
func (r *repository) ClaimPendingPayment(ctx context.Context, id uuid.UUID, updates map[string]any) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND payment_status = ?", id, enums.PaymentStatusPending).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) FindDispatchRetryable(ctx context.Context, cutoff time.Time, limit int) ([]*models.Order, error) {
	var rows []*models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Preload("Address").
		Where("status = ?", enums.OrderStatusConfirmed).
		Where("shipment_status IN ?", []enums.ShipmentStatus{enums.ShipmentStatusFailed, enums.ShipmentStatusRetryPending}).
		Where("updated_at <= ?", cutoff).
		Order("updated_at ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
