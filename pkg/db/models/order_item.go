package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderItem is a single product line captured at checkout. UnitPrice is the
// price at purchase time, never the live product price.
type OrderItem struct {
	ID           uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID      uuid.UUID       `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID    uuid.UUID       `gorm:"column:product_id;type:uuid;not null"`
	Product      *Product        `gorm:"foreignKey:ProductID"`
	ProductTitle string          `gorm:"column:product_title;not null"`
	ProductSKU   string          `gorm:"column:product_sku;not null;default:''"`
	Size         *string         `gorm:"column:size"`
	Quantity     int             `gorm:"column:quantity;not null"`
	UnitPrice    decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2);not null"`
	CreatedAt    time.Time       `gorm:"column:created_at;autoCreateTime"`
}
