package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kanakkart/storefront-backend/pkg/types"
)

// Product is a catalog listing. Sized products carry a per-size breakdown in
// SizeStock whose values must always sum to Stock; flat products keep
// SizeStock nil and track Stock alone.
type Product struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SKU         string          `gorm:"column:sku;not null;uniqueIndex:idx_products_sku"`
	Title       string          `gorm:"column:title;not null"`
	Description *string         `gorm:"column:description"`
	Price       decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null"`
	Stock       int             `gorm:"column:stock;not null;default:0"`
	SizeStock   types.SizeStock `gorm:"column:size_stock;type:jsonb;serializer:json"`
	IsActive    bool            `gorm:"column:is_active;not null;default:true"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

// HasSizes reports whether the product is tracked per size.
func (p *Product) HasSizes() bool {
	return len(p.SizeStock) > 0
}
