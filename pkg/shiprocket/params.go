package shiprocket

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	pkgerrors "github.com/kanakkart/storefront-backend/pkg/errors"
)

// ShipmentItem is a single order line forwarded to the courier.
type ShipmentItem struct {
	Name      string
	SKU       string
	Units     int
	UnitPrice decimal.Decimal
}

// ShipmentParams is the order snapshot needed to register a shipment.
type ShipmentParams struct {
	OrderNumber   string
	OrderDate     time.Time
	CustomerName  string
	CustomerEmail string
	CustomerPhone string
	AddressLine1  string
	AddressLine2  string
	City          string
	State         string
	PostalCode    string
	Country       string
	PaymentMethod string
	SubTotal      decimal.Decimal
	Items         []ShipmentItem

	// Parcel dimensions in cm and weight in kg. Zero values fall back to
	// the defaults used for standard apparel parcels.
	LengthCM float64
	WidthCM  float64
	HeightCM float64
	WeightKG float64
}

func (p ShipmentParams) validate() error {
	if strings.TrimSpace(p.OrderNumber) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "shipment order number is required")
	}
	if len(p.Items) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "shipment requires at least one item")
	}
	if strings.TrimSpace(p.PostalCode) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "shipment postal code is required")
	}
	return nil
}

// Shipment is the provider's view of a registered shipment.
type Shipment struct {
	OrderID     int64
	ShipmentID  int64
	Status      string
	AWBCode     string
	CourierName string
}

type shipmentItemRequest struct {
	Name         string `json:"name"`
	SKU          string `json:"sku"`
	Units        int    `json:"units"`
	SellingPrice string `json:"selling_price"`
}

type shipmentRequest struct {
	OrderID          string                `json:"order_id"`
	OrderDate        string                `json:"order_date"`
	PickupLocation   string                `json:"pickup_location,omitempty"`
	BillingFirstName string                `json:"billing_customer_name"`
	BillingLastName  string                `json:"billing_last_name"`
	BillingAddress   string                `json:"billing_address"`
	BillingAddress2  string                `json:"billing_address_2,omitempty"`
	BillingCity      string                `json:"billing_city"`
	BillingPincode   string                `json:"billing_pincode"`
	BillingState     string                `json:"billing_state"`
	BillingCountry   string                `json:"billing_country"`
	BillingEmail     string                `json:"billing_email"`
	BillingPhone     string                `json:"billing_phone"`
	ShippingIsBill   bool                  `json:"shipping_is_billing"`
	OrderItems       []shipmentItemRequest `json:"order_items"`
	PaymentMethod    string                `json:"payment_method"`
	SubTotal         string                `json:"sub_total"`
	Length           float64               `json:"length"`
	Breadth          float64               `json:"breadth"`
	Height           float64               `json:"height"`
	Weight           float64               `json:"weight"`
}

func (p ShipmentParams) toRequest(pickupLocation string) shipmentRequest {
	first, last := splitName(p.CustomerName)

	items := make([]shipmentItemRequest, 0, len(p.Items))
	for _, item := range p.Items {
		items = append(items, shipmentItemRequest{
			Name:         item.Name,
			SKU:          item.SKU,
			Units:        item.Units,
			SellingPrice: item.UnitPrice.StringFixed(2),
		})
	}

	country := p.Country
	if country == "" {
		country = "India"
	}

	req := shipmentRequest{
		OrderID:          p.OrderNumber,
		OrderDate:        p.OrderDate.Format("2006-01-02 15:04"),
		PickupLocation:   pickupLocation,
		BillingFirstName: first,
		BillingLastName:  last,
		BillingAddress:   p.AddressLine1,
		BillingAddress2:  p.AddressLine2,
		BillingCity:      p.City,
		BillingPincode:   p.PostalCode,
		BillingState:     p.State,
		BillingCountry:   country,
		BillingEmail:     p.CustomerEmail,
		BillingPhone:     NormalizePhone(p.CustomerPhone),
		ShippingIsBill:   true,
		OrderItems:       items,
		PaymentMethod:    p.PaymentMethod,
		SubTotal:         p.SubTotal.StringFixed(2),
		Length:           p.LengthCM,
		Breadth:          p.WidthCM,
		Height:           p.HeightCM,
		Weight:           p.WeightKG,
	}
	if req.Length == 0 {
		req.Length = 30
	}
	if req.Breadth == 0 {
		req.Breadth = 25
	}
	if req.Height == 0 {
		req.Height = 3
	}
	if req.Weight == 0 {
		req.Weight = 0.3
	}
	return req
}

// NormalizePhone strips non-digits and keeps the trailing ten digits, which
// is the format the courier accepts for Indian numbers.
func NormalizePhone(phone string) string {
	var digits strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	out := digits.String()
	if len(out) > 10 {
		out = out[len(out)-10:]
	}
	return out
}

func splitName(full string) (string, string) {
	fields := strings.Fields(full)
	if len(fields) == 0 {
		return "", ""
	}
	if len(fields) == 1 {
		return fields[0], ""
	}
	return fields[0], strings.Join(fields[1:], " ")
}
