package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kanakkart/storefront-backend/pkg/enums"
)

// Order is the canonical record of a storefront purchase. COD orders are
// confirmed at creation; prepaid orders stay pending until the gateway
// webhook (or a manual admin confirm) settles them.
type Order struct {
	ID               uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderNumber      string               `gorm:"column:order_number;not null;uniqueIndex:idx_orders_order_number"`
	UserID           *uuid.UUID           `gorm:"column:user_id;type:uuid"`
	CustomerName     string               `gorm:"column:customer_name;not null"`
	CustomerEmail    string               `gorm:"column:customer_email;not null"`
	CustomerPhone    string               `gorm:"column:customer_phone;not null"`
	PaymentMethod    enums.PaymentMethod  `gorm:"column:payment_method;type:text;not null"`
	PaymentStatus    enums.PaymentStatus  `gorm:"column:payment_status;type:text;not null;default:'pending'"`
	Status           enums.OrderStatus    `gorm:"column:status;type:text;not null;default:'pending'"`
	GatewayOrderID   *string              `gorm:"column:gateway_order_id;uniqueIndex:idx_orders_gateway_order_id"`
	GatewayPaymentID *string              `gorm:"column:gateway_payment_id"`
	TotalAmount      decimal.Decimal      `gorm:"column:total_amount;type:numeric(12,2);not null"`
	AddressID        uuid.UUID            `gorm:"column:address_id;type:uuid;not null"`
	Address          *Address             `gorm:"foreignKey:AddressID"`
	ShipmentStatus   enums.ShipmentStatus `gorm:"column:shipment_status;type:text;not null;default:''"`
	ShipmentID       *string              `gorm:"column:shipment_id"`
	AWBCode          *string              `gorm:"column:awb_code"`
	CourierName      *string              `gorm:"column:courier_name"`
	InternalNotes    *string              `gorm:"column:internal_notes"`
	Items            []OrderItem          `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	ConfirmedAt      *time.Time           `gorm:"column:confirmed_at"`
	ShippedAt        *time.Time           `gorm:"column:shipped_at"`
	DeliveredAt      *time.Time           `gorm:"column:delivered_at"`
	CancelledAt      *time.Time           `gorm:"column:cancelled_at"`
	CreatedAt        time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}
