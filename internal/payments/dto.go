package payments

import (
	"encoding/json"

	pkgerrors "github.com/kanakkart/storefront-backend/pkg/errors"
)

// Webhook outcomes reported to metrics and echoed in responses.
const (
	OutcomeProcessed = "processed"
	OutcomeDuplicate = "duplicate"
	OutcomeIgnored   = "ignored"
)

const eventPaymentCaptured = "payment.captured"

// WebhookResult is the response body for a gateway webhook delivery.
type WebhookResult struct {
	Outcome        string `json:"outcome"`
	OrderNumber    string `json:"order_number,omitempty"`
	OrderStatus    string `json:"order_status,omitempty"`
	PaymentStatus  string `json:"payment_status,omitempty"`
	GatewayOrderID string `json:"gateway_order_id,omitempty"`
}

// ConfirmInput is a manual payment confirmation request.
type ConfirmInput struct {
	OrderNumber      string
	GatewayPaymentID *string
}

type webhookEvent struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity struct {
				ID      string `json:"id"`
				OrderID string `json:"order_id"`
				Amount  int64  `json:"amount"`
				Status  string `json:"status"`
			} `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

func parseWebhookEvent(body []byte) (*webhookEvent, error) {
	var event webhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "malformed webhook body")
	}
	if event.Event == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "webhook event type missing")
	}
	return &event, nil
}
