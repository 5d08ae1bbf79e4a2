package controllers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"

	"github.com/kanakkart/storefront-backend/api/responses"
	"github.com/kanakkart/storefront-backend/api/validators"
	"github.com/kanakkart/storefront-backend/internal/orders"
	"github.com/kanakkart/storefront-backend/internal/payments"
	"github.com/kanakkart/storefront-backend/pkg/db/models"
	"github.com/kanakkart/storefront-backend/pkg/enums"
	pkgerrors "github.com/kanakkart/storefront-backend/pkg/errors"
	"github.com/kanakkart/storefront-backend/pkg/logger"
)

type orderLoader interface {
	FindByOrderNumber(ctx context.Context, orderNumber string) (*models.Order, error)
}

type shipmentRetrier interface {
	Dispatch(ctx context.Context, order *models.Order) enums.ShipmentStatus
}

type statusNotifier interface {
	StatusChanged(order *models.Order)
}

// AdminListOrders returns the paginated back-office order list.
func AdminListOrders(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params, err := paginationParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		filters, err := adminListFilters(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.List(r.Context(), params, filters)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, list)
	}
}

// AdminGetOrder returns the full back-office view of one order.
func AdminGetOrder(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		detail, err := svc.GetDetail(r.Context(), chi.URLParam(r, "orderNumber"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, detail)
	}
}

type confirmPaymentRequest struct {
	GatewayPaymentID *string `json:"gateway_payment_id,omitempty" validate:"omitempty,min=1,max=64"`
}

// AdminConfirmPayment is the manual fallback for a prepaid order whose
// gateway webhook never arrived.
func AdminConfirmPayment(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload confirmPaymentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.ConfirmManually(r.Context(), payments.ConfirmInput{
			OrderNumber:      chi.URLParam(r, "orderNumber"),
			GatewayPaymentID: payload.GatewayPaymentID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}

type statusUpdateRequest struct {
	Status string  `json:"status" validate:"required,oneof=pending confirmed shipped delivered cancelled"`
	Notes  *string `json:"notes,omitempty" validate:"omitempty,max=1000"`
}

// AdminUpdateStatus moves an order forward through its lifecycle and emails
// the customer about the change.
func AdminUpdateStatus(svc orders.Service, loader orderLoader, notif statusNotifier, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload statusUpdateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		status, err := enums.ParseOrderStatus(payload.Status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order status"))
			return
		}

		detail, err := svc.UpdateStatus(r.Context(), orders.StatusUpdateInput{
			OrderNumber: chi.URLParam(r, "orderNumber"),
			Status:      status,
			Notes:       payload.Notes,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if notif != nil && loader != nil {
			if order, loadErr := loader.FindByOrderNumber(r.Context(), detail.OrderNumber); loadErr == nil {
				notif.StatusChanged(order)
			} else if logg != nil {
				logg.Error(r.Context(), "load order for status notification", loadErr)
			}
		}

		responses.WriteSuccess(w, detail)
	}
}

// AdminRetryShipment re-runs courier dispatch for a confirmed order whose
// earlier dispatch failed.
func AdminRetryShipment(loader orderLoader, dispatcher shipmentRetrier, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		order, err := loader.FindByOrderNumber(r.Context(), chi.URLParam(r, "orderNumber"))
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "order not found"))
				return
			}
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order"))
			return
		}

		if order.Status != enums.OrderStatusConfirmed {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeStateConflict, "only confirmed orders can be dispatched"))
			return
		}
		switch order.ShipmentStatus {
		case enums.ShipmentStatusFailed, enums.ShipmentStatusRetryPending:
		default:
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeStateConflict, "shipment is not in a retryable state"))
			return
		}

		status := dispatcher.Dispatch(r.Context(), order)
		responses.WriteSuccess(w, map[string]any{
			"order_number":    order.OrderNumber,
			"shipment_status": status,
		})
	}
}

func adminListFilters(r *http.Request) (orders.ListFilters, error) {
	filters := orders.ListFilters{Query: strings.TrimSpace(r.URL.Query().Get("q"))}

	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		status, err := enums.ParseOrderStatus(raw)
		if err != nil {
			return filters, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter")
		}
		filters.Status = &status
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("payment_status")); raw != "" {
		status, err := enums.ParsePaymentStatus(raw)
		if err != nil {
			return filters, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment status filter")
		}
		filters.PaymentStatus = &status
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("payment_method")); raw != "" {
		method, err := enums.ParsePaymentMethod(raw)
		if err != nil {
			return filters, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment method filter")
		}
		filters.PaymentMethod = &method
	}

	from, err := validators.ParseQueryDate(r, "from")
	if err != nil {
		return filters, err
	}
	filters.DateFrom = from

	to, err := validators.ParseQueryDate(r, "to")
	if err != nil {
		return filters, err
	}
	filters.DateTo = to

	return filters, nil
}
