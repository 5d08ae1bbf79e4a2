package webhooks

import (
	"net/http"

	"github.com/kanakkart/storefront-backend/api/responses"
	"github.com/kanakkart/storefront-backend/api/validators"
	"github.com/kanakkart/storefront-backend/internal/orders"
	"github.com/kanakkart/storefront-backend/pkg/enums"
	pkgerrors "github.com/kanakkart/storefront-backend/pkg/errors"
	"github.com/kanakkart/storefront-backend/pkg/logger"
)

type shipmentEventRequest struct {
	OrderNumber string  `json:"order_number" validate:"required,min=3,max=16"`
	Event       string  `json:"event" validate:"required,oneof=shipped delivered cancelled"`
	AWBCode     *string `json:"awb_code,omitempty" validate:"omitempty,max=64"`
	CourierName *string `json:"courier_name,omitempty" validate:"omitempty,max=128"`
}

// ShipmentWebhook applies courier status callbacks. Delivery of a COD order
// also settles its payment.
func ShipmentWebhook(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		var payload shipmentEventRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var err error
		switch payload.Event {
		case "cancelled":
			_, err = svc.UpdateStatus(r.Context(), orders.StatusUpdateInput{
				OrderNumber: payload.OrderNumber,
				Status:      enums.OrderStatusCancelled,
			})
		default:
			err = svc.ApplyShipmentEvent(r.Context(), orders.ShipmentEventInput{
				OrderNumber: payload.OrderNumber,
				AWBCode:     payload.AWBCode,
				CourierName: payload.CourierName,
				Delivered:   payload.Event == "delivered",
			})
		}
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{
			"order_number": payload.OrderNumber,
			"event":        payload.Event,
		})
	}
}
