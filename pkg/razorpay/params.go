package razorpay

import (
	"github.com/shopspring/decimal"

	pkgerrors "github.com/kanakkart/storefront-backend/pkg/errors"
)

// OrderCreateParams describes a payment intent to register with the gateway.
type OrderCreateParams struct {
	AmountPaise int64
	Receipt     string
	Notes       map[string]interface{}
}

func (p OrderCreateParams) validate() error {
	if p.AmountPaise <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "order amount must be positive")
	}
	if p.Receipt == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "order receipt is required")
	}
	return nil
}

// PaymentLinkParams describes a hosted payment link request.
type PaymentLinkParams struct {
	AmountPaise     int64
	Description     string
	CustomerName    string
	CustomerContact string
	CustomerEmail   string
	Notes           map[string]interface{}
}

func (p PaymentLinkParams) validate() error {
	if p.AmountPaise <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "link amount must be positive")
	}
	return nil
}

// GatewayOrder is the subset of the gateway order payload the platform reads.
type GatewayOrder struct {
	ID          string
	AmountPaise int64
	Currency    string
	Status      string
	Receipt     string
	Notes       map[string]interface{}
}

// PaymentLink is the subset of a hosted link response the platform reads.
type PaymentLink struct {
	ID       string
	ShortURL string
	Status   string
}

// ToPaise converts a rupee amount to the integer paise the gateway expects.
func ToPaise(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

func gatewayOrderFromMap(resp map[string]interface{}) *GatewayOrder {
	order := &GatewayOrder{
		ID:       stringField(resp, "id"),
		Currency: stringField(resp, "currency"),
		Status:   stringField(resp, "status"),
		Receipt:  stringField(resp, "receipt"),
	}
	order.AmountPaise = int64Field(resp, "amount")
	if notes, ok := resp["notes"].(map[string]interface{}); ok {
		order.Notes = notes
	}
	return order
}

func stringField(m map[string]interface{}, key string) string {
	if m == nil {
		return ""
	}
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func int64Field(m map[string]interface{}, key string) int64 {
	if m == nil {
		return 0
	}
	switch v := m[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	}
	return 0
}
