package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kanakkart/storefront-backend/pkg/db/models"
	"github.com/kanakkart/storefront-backend/pkg/enums"
)

// ListFilters describe the inputs supported by the admin orders list.
type ListFilters struct {
	Status        *enums.OrderStatus
	PaymentStatus *enums.PaymentStatus
	PaymentMethod *enums.PaymentMethod
	DateFrom      *time.Time
	DateTo        *time.Time
	Query         string
}

// OrderSummary exposes the aggregated fields returned in order lists.
type OrderSummary struct {
	OrderNumber    string               `json:"order_number"`
	CreatedAt      time.Time            `json:"created_at"`
	CustomerName   string               `json:"customer_name"`
	TotalAmount    decimal.Decimal      `json:"total_amount"`
	TotalItems     int                  `json:"total_items"`
	PaymentMethod  enums.PaymentMethod  `json:"payment_method"`
	PaymentStatus  enums.PaymentStatus  `json:"payment_status"`
	Status         enums.OrderStatus    `json:"status"`
	ShipmentStatus enums.ShipmentStatus `json:"shipment_status"`
}

// OrderList wraps the paginated orders plus the next page cursor.
type OrderList struct {
	Orders     []OrderSummary `json:"orders"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

// ItemDetail is one order line in the detail view.
type ItemDetail struct {
	ProductID    uuid.UUID       `json:"product_id"`
	ProductTitle string          `json:"product_title"`
	ProductSKU   string          `json:"product_sku"`
	Size         *string         `json:"size,omitempty"`
	Quantity     int             `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
}

// AddressDetail is the shipping destination in the detail view.
type AddressDetail struct {
	Name       string  `json:"name"`
	Phone      string  `json:"phone"`
	Line1      string  `json:"line1"`
	Line2      *string `json:"line2,omitempty"`
	City       string  `json:"city"`
	State      string  `json:"state"`
	PostalCode string  `json:"postal_code"`
	Country    string  `json:"country"`
}

// OrderDetail is the full order view returned by the detail endpoint.
type OrderDetail struct {
	OrderNumber    string               `json:"order_number"`
	CreatedAt      time.Time            `json:"created_at"`
	CustomerName   string               `json:"customer_name"`
	CustomerEmail  string               `json:"customer_email"`
	CustomerPhone  string               `json:"customer_phone"`
	PaymentMethod  enums.PaymentMethod  `json:"payment_method"`
	PaymentStatus  enums.PaymentStatus  `json:"payment_status"`
	Status         enums.OrderStatus    `json:"status"`
	ShipmentStatus enums.ShipmentStatus `json:"shipment_status"`
	AWBCode        *string              `json:"awb_code,omitempty"`
	CourierName    *string              `json:"courier_name,omitempty"`
	TotalAmount    decimal.Decimal      `json:"total_amount"`
	Items          []ItemDetail         `json:"items"`
	Address        *AddressDetail       `json:"address,omitempty"`
	ConfirmedAt    *time.Time           `json:"confirmed_at,omitempty"`
	ShippedAt      *time.Time           `json:"shipped_at,omitempty"`
	DeliveredAt    *time.Time           `json:"delivered_at,omitempty"`
}

// StatusUpdateInput is an admin-driven order status change.
type StatusUpdateInput struct {
	OrderNumber string
	Status      enums.OrderStatus
	Notes       *string
}

// ConfirmPaymentInput is the manual fallback for a missed payment webhook.
type ConfirmPaymentInput struct {
	OrderNumber      string
	GatewayPaymentID *string
}

// ShipmentEventInput applies a courier status callback to an order.
type ShipmentEventInput struct {
	OrderNumber string
	AWBCode     *string
	CourierName *string
	Delivered   bool
}

// DetailFromModel maps a loaded order onto the detail view.
func DetailFromModel(order *models.Order) *OrderDetail {
	detail := &OrderDetail{
		OrderNumber:    order.OrderNumber,
		CreatedAt:      order.CreatedAt,
		CustomerName:   order.CustomerName,
		CustomerEmail:  order.CustomerEmail,
		CustomerPhone:  order.CustomerPhone,
		PaymentMethod:  order.PaymentMethod,
		PaymentStatus:  order.PaymentStatus,
		Status:         order.Status,
		ShipmentStatus: order.ShipmentStatus,
		AWBCode:        order.AWBCode,
		CourierName:    order.CourierName,
		TotalAmount:    order.TotalAmount,
		ConfirmedAt:    order.ConfirmedAt,
		ShippedAt:      order.ShippedAt,
		DeliveredAt:    order.DeliveredAt,
	}
	for _, item := range order.Items {
		detail.Items = append(detail.Items, ItemDetail{
			ProductID:    item.ProductID,
			ProductTitle: item.ProductTitle,
			ProductSKU:   item.ProductSKU,
			Size:         item.Size,
			Quantity:     item.Quantity,
			UnitPrice:    item.UnitPrice,
		})
	}
	if order.Address != nil {
		detail.Address = &AddressDetail{
			Name:       order.Address.Name,
			Phone:      order.Address.Phone,
			Line1:      order.Address.Line1,
			Line2:      order.Address.Line2,
			City:       order.Address.City,
			State:      order.Address.State,
			PostalCode: order.Address.PostalCode,
			Country:    order.Address.Country,
		}
	}
	return detail
}
