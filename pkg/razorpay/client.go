package razorpay

import (
	"context"
	"errors"
	"fmt"
	"strings"

	rzp "github.com/razorpay/razorpay-go"
	rzputils "github.com/razorpay/razorpay-go/utils"

	"github.com/kanakkart/storefront-backend/pkg/config"
	pkgerrors "github.com/kanakkart/storefront-backend/pkg/errors"
	"github.com/kanakkart/storefront-backend/pkg/logger"
)

var (
	errKeyRequired           = errors.New("razorpay key id and secret are required")
	errWebhookSecretRequired = errors.New("razorpay webhook secret is required")
	errLoggerRequired        = errors.New("razorpay logger is required")
)

type orderAPI interface {
	Create(data map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
	Fetch(orderID string, data map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
}

type paymentLinkAPI interface {
	Create(data map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
}

// Client exposes Razorpay primitives with centralized auth, logging, and error mapping.
type Client struct {
	orders        orderAPI
	links         paymentLinkAPI
	keyID         string
	webhookSecret string
	currency      string
	logger        *logger.Logger
}

// NewClient initializes the Razorpay wrapper and validates the credentials.
func NewClient(cfg config.RazorpayConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	keyID := strings.TrimSpace(cfg.KeyID)
	keySecret := strings.TrimSpace(cfg.KeySecret)
	if keyID == "" || keySecret == "" {
		return nil, errKeyRequired
	}
	webhookSecret := strings.TrimSpace(cfg.WebhookSecret)
	if webhookSecret == "" {
		return nil, errWebhookSecretRequired
	}
	currency := strings.TrimSpace(cfg.Currency)
	if currency == "" {
		currency = "INR"
	}

	sdk := rzp.NewClient(keyID, keySecret)
	return &Client{
		orders:        sdk.Order,
		links:         sdk.PaymentLink,
		keyID:         keyID,
		webhookSecret: webhookSecret,
		currency:      currency,
		logger:        logg,
	}, nil
}

// KeyID returns the configured public key, safe to hand to a checkout page.
func (c *Client) KeyID() string {
	if c == nil {
		return ""
	}
	return c.keyID
}

// Currency reports the settlement currency for created orders.
func (c *Client) Currency() string {
	if c == nil {
		return ""
	}
	return c.currency
}

// CreateOrder registers a payment intent with the gateway. Notes travel with
// the gateway order and come back on the webhook, which is how the cart
// snapshot survives the round trip.
func (c *Client) CreateOrder(ctx context.Context, params OrderCreateParams) (*GatewayOrder, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}
	data := map[string]interface{}{
		"amount":   params.AmountPaise,
		"currency": c.currency,
		"receipt":  params.Receipt,
	}
	if len(params.Notes) > 0 {
		data["notes"] = params.Notes
	}
	c.log(ctx, "request", "create_order", map[string]any{
		"amount_paise": params.AmountPaise,
		"receipt":      params.Receipt,
	})

	resp, err := c.orders.Create(data, nil)
	if err != nil {
		c.log(ctx, "error", "create_order", map[string]any{"error": err.Error()})
		return nil, c.mapError(err, "create gateway order")
	}

	order := gatewayOrderFromMap(resp)
	c.log(ctx, "response", "create_order", map[string]any{
		"gateway_order_id": order.ID,
		"status":           order.Status,
	})
	return order, nil
}

// FetchOrder pulls the gateway's current view of an order, notes included.
func (c *Client) FetchOrder(ctx context.Context, gatewayOrderID string) (*GatewayOrder, error) {
	if strings.TrimSpace(gatewayOrderID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "gateway order id is required")
	}
	c.log(ctx, "request", "fetch_order", map[string]any{"gateway_order_id": gatewayOrderID})

	resp, err := c.orders.Fetch(gatewayOrderID, nil, nil)
	if err != nil {
		c.log(ctx, "error", "fetch_order", map[string]any{"error": err.Error()})
		return nil, c.mapError(err, "fetch gateway order")
	}

	order := gatewayOrderFromMap(resp)
	c.log(ctx, "response", "fetch_order", map[string]any{
		"gateway_order_id": order.ID,
		"status":           order.Status,
	})
	return order, nil
}

// CreatePaymentLink issues a hosted payment page for the given amount.
func (c *Client) CreatePaymentLink(ctx context.Context, params PaymentLinkParams) (*PaymentLink, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}
	data := map[string]interface{}{
		"amount":      params.AmountPaise,
		"currency":    c.currency,
		"description": params.Description,
	}
	if params.CustomerName != "" || params.CustomerContact != "" || params.CustomerEmail != "" {
		data["customer"] = map[string]interface{}{
			"name":    params.CustomerName,
			"contact": params.CustomerContact,
			"email":   params.CustomerEmail,
		}
	}
	if len(params.Notes) > 0 {
		data["notes"] = params.Notes
	}
	c.log(ctx, "request", "create_payment_link", map[string]any{"amount_paise": params.AmountPaise})

	resp, err := c.links.Create(data, nil)
	if err != nil {
		c.log(ctx, "error", "create_payment_link", map[string]any{"error": err.Error()})
		return nil, c.mapError(err, "create payment link")
	}

	link := &PaymentLink{
		ID:       stringField(resp, "id"),
		ShortURL: stringField(resp, "short_url"),
		Status:   stringField(resp, "status"),
	}
	c.log(ctx, "response", "create_payment_link", map[string]any{"link_id": link.ID})
	return link, nil
}

// VerifyWebhookSignature checks the raw webhook body against the signature
// header. Callers must pass the body exactly as received.
func (c *Client) VerifyWebhookSignature(body []byte, signature string) bool {
	if c == nil || signature == "" {
		return false
	}
	return rzputils.VerifyWebhookSignature(string(body), signature, c.webhookSecret)
}

func (c *Client) mapError(err error, op string) error {
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("razorpay: %s", op))
}

func (c *Client) log(ctx context.Context, phase, op string, fields map[string]any) {
	if c == nil || c.logger == nil {
		return
	}
	logFields := map[string]any{
		"operation": op,
		"phase":     phase,
	}
	for k, v := range fields {
		logFields[k] = v
	}
	ctx = c.logger.WithFields(ctx, logFields)
	switch phase {
	case "error":
		c.logger.Error(ctx, fmt.Sprintf("razorpay %s", op), errors.New(fmt.Sprint(fields["error"])))
	default:
		c.logger.Info(ctx, fmt.Sprintf("razorpay %s", phase))
	}
}
