package checkout

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kanakkart/storefront-backend/pkg/db/models"
	"github.com/kanakkart/storefront-backend/pkg/enums"
)

// CartLine is one requested product in a checkout submission.
type CartLine struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Quantity  int       `json:"quantity" validate:"required,gt=0"`
	Size      *string   `json:"size,omitempty"`
}

// SubmitInput is a validated checkout request.
type SubmitInput struct {
	UserID        uuid.UUID
	AddressID     uuid.UUID
	PaymentMethod enums.PaymentMethod
	Cart          []CartLine
	Notes         *string
}

// PricedLine pairs a cart line with the catalog product it resolved to and
// the server-side price charged for it.
type PricedLine struct {
	Product   *models.Product
	Quantity  int
	Size      *string
	UnitPrice decimal.Decimal
}

// Subtotal is the line price times quantity.
func (l PricedLine) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// SubmitResult is the checkout outcome. COD submissions return a created
// order; prepaid submissions return a gateway intent to pay against.
type SubmitResult struct {
	PaymentMethod enums.PaymentMethod `json:"payment_method"`

	// COD
	OrderNumber    string               `json:"order_number,omitempty"`
	OrderStatus    enums.OrderStatus    `json:"order_status,omitempty"`
	ShipmentStatus enums.ShipmentStatus `json:"shipment_status,omitempty"`

	// Prepaid
	GatewayOrderID string `json:"gateway_order_id,omitempty"`
	AmountPaise    int64  `json:"amount_paise,omitempty"`
	Currency       string `json:"currency,omitempty"`
	GatewayKeyID   string `json:"gateway_key_id,omitempty"`
	PaymentLink    string `json:"payment_link,omitempty"`
}
