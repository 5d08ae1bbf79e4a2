package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/kanakkart/storefront-backend/api/middleware"
	"github.com/kanakkart/storefront-backend/api/responses"
	"github.com/kanakkart/storefront-backend/api/validators"
	checkoutsvc "github.com/kanakkart/storefront-backend/internal/checkout"
	"github.com/kanakkart/storefront-backend/pkg/enums"
	pkgerrors "github.com/kanakkart/storefront-backend/pkg/errors"
	"github.com/kanakkart/storefront-backend/pkg/logger"
)

type checkoutCartLine struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Quantity  int       `json:"quantity" validate:"required,min=1"`
	Size      *string   `json:"size,omitempty" validate:"omitempty,max=10"`
}

type checkoutRequest struct {
	AddressID     uuid.UUID          `json:"address_id" validate:"required"`
	PaymentMethod string             `json:"payment_method" validate:"required,oneof=cod prepaid"`
	Cart          []checkoutCartLine `json:"cart" validate:"required,min=1,dive"`
	Notes         *string            `json:"notes,omitempty" validate:"omitempty,max=500"`
}

// Checkout turns a priced cart into a COD order or a prepaid gateway intent.
func Checkout(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		userID, err := contextUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload checkoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		method, err := enums.ParsePaymentMethod(payload.PaymentMethod)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment method"))
			return
		}

		cart := make([]checkoutsvc.CartLine, 0, len(payload.Cart))
		for _, line := range payload.Cart {
			cart = append(cart, checkoutsvc.CartLine{
				ProductID: line.ProductID,
				Quantity:  line.Quantity,
				Size:      line.Size,
			})
		}

		result, err := svc.Submit(r.Context(), checkoutsvc.SubmitInput{
			UserID:        userID,
			AddressID:     payload.AddressID,
			PaymentMethod: method,
			Cart:          cart,
			Notes:         payload.Notes,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

func contextUserID(r *http.Request) (uuid.UUID, error) {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity required")
	}
	userID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity malformed")
	}
	return userID, nil
}
