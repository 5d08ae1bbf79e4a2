package razorpay

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/shopspring/decimal"

	pkgerrors "github.com/kanakkart/storefront-backend/pkg/errors"
	"github.com/kanakkart/storefront-backend/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

type stubOrderAPI struct {
	createData map[string]interface{}
	createResp map[string]interface{}
	createErr  error
	fetchID    string
	fetchResp  map[string]interface{}
	fetchErr   error
}

func (s *stubOrderAPI) Create(data map[string]interface{}, _ map[string]string) (map[string]interface{}, error) {
	s.createData = data
	return s.createResp, s.createErr
}

func (s *stubOrderAPI) Fetch(orderID string, _ map[string]interface{}, _ map[string]string) (map[string]interface{}, error) {
	s.fetchID = orderID
	return s.fetchResp, s.fetchErr
}

type stubLinkAPI struct {
	resp map[string]interface{}
	err  error
}

func (s *stubLinkAPI) Create(_ map[string]interface{}, _ map[string]string) (map[string]interface{}, error) {
	return s.resp, s.err
}

func TestCreateOrderCarriesNotes(t *testing.T) {
	orders := &stubOrderAPI{createResp: map[string]interface{}{
		"id":       "order_abc",
		"amount":   float64(49900),
		"currency": "INR",
		"status":   "created",
		"receipt":  "rcpt-1",
		"notes":    map[string]interface{}{"cart": `[{"sku":"TS-1"}]`},
	}}
	client := &Client{orders: orders, currency: "INR", logger: testLogger()}

	got, err := client.CreateOrder(context.Background(), OrderCreateParams{
		AmountPaise: 49900,
		Receipt:     "rcpt-1",
		Notes:       map[string]interface{}{"cart": `[{"sku":"TS-1"}]`},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != "order_abc" || got.AmountPaise != 49900 {
		t.Fatalf("unexpected order %+v", got)
	}
	if orders.createData["currency"] != "INR" {
		t.Fatalf("expected currency INR, got %v", orders.createData["currency"])
	}
	notes, ok := orders.createData["notes"].(map[string]interface{})
	if !ok || notes["cart"] == "" {
		t.Fatalf("expected notes forwarded to gateway, got %v", orders.createData["notes"])
	}
}

func TestCreateOrderValidatesParams(t *testing.T) {
	client := &Client{orders: &stubOrderAPI{}, currency: "INR", logger: testLogger()}

	_, err := client.CreateOrder(context.Background(), OrderCreateParams{AmountPaise: 0, Receipt: "r"})
	var typed *pkgerrors.Error
	if !errors.As(err, &typed) || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCreateOrderMapsGatewayFailure(t *testing.T) {
	orders := &stubOrderAPI{createErr: errors.New("BAD_REQUEST_ERROR")}
	client := &Client{orders: orders, currency: "INR", logger: testLogger()}

	_, err := client.CreateOrder(context.Background(), OrderCreateParams{AmountPaise: 100, Receipt: "r"})
	var typed *pkgerrors.Error
	if !errors.As(err, &typed) || typed.Code() != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency error, got %v", err)
	}
}

func TestFetchOrderReadsNotes(t *testing.T) {
	orders := &stubOrderAPI{fetchResp: map[string]interface{}{
		"id":     "order_abc",
		"amount": float64(100),
		"status": "paid",
		"notes":  map[string]interface{}{"payment_method": "PREPAID"},
	}}
	client := &Client{orders: orders, currency: "INR", logger: testLogger()}

	got, err := client.FetchOrder(context.Background(), "order_abc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if orders.fetchID != "order_abc" {
		t.Fatalf("expected fetch by id, got %q", orders.fetchID)
	}
	if got.Notes["payment_method"] != "PREPAID" {
		t.Fatalf("expected notes on fetched order, got %v", got.Notes)
	}
}

func TestCreatePaymentLink(t *testing.T) {
	links := &stubLinkAPI{resp: map[string]interface{}{
		"id":        "plink_1",
		"short_url": "https://rzp.io/l/x",
		"status":    "created",
	}}
	client := &Client{links: links, currency: "INR", logger: testLogger()}

	got, err := client.CreatePaymentLink(context.Background(), PaymentLinkParams{AmountPaise: 100})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ShortURL != "https://rzp.io/l/x" {
		t.Fatalf("unexpected link %+v", got)
	}
}

func TestToPaise(t *testing.T) {
	cases := []struct {
		in   string
		want int64
	}{
		{"499.00", 49900},
		{"0.01", 1},
		{"1234.567", 123457},
	}
	for _, tc := range cases {
		amount, err := decimal.NewFromString(tc.in)
		if err != nil {
			t.Fatalf("bad decimal %q: %v", tc.in, err)
		}
		if got := ToPaise(amount); got != tc.want {
			t.Fatalf("ToPaise(%s) = %d, want %d", tc.in, got, tc.want)
		}
	}
}
