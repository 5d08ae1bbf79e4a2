package shipping

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kanakkart/storefront-backend/pkg/db/models"
	"github.com/kanakkart/storefront-backend/pkg/enums"
	"github.com/kanakkart/storefront-backend/pkg/logger"
	"github.com/kanakkart/storefront-backend/pkg/metrics"
	"github.com/kanakkart/storefront-backend/pkg/shiprocket"
)

const sweepJobName = "shipment_sweep"

type ordersStore interface {
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) error
	FindDispatchRetryable(ctx context.Context, cutoff time.Time, limit int) ([]*models.Order, error)
}

type shipmentClient interface {
	CreateShipment(ctx context.Context, params shiprocket.ShipmentParams) (*shiprocket.Shipment, error)
}

// Dispatcher registers confirmed orders with the fulfillment provider. It
// never returns provider failures to its caller: a failed dispatch is
// recorded on the order and picked up again by the sweep.
type Dispatcher struct {
	orders     ordersStore
	client     shipmentClient
	logger     *logger.Logger
	jobMetrics *metrics.JobMetrics

	retryAfter time.Duration
	sweepLimit int
}

// Option adjusts dispatcher tuning knobs.
type Option func(*Dispatcher)

// WithSweepLimit caps how many stuck orders one sweep pass picks up.
func WithSweepLimit(limit int) Option {
	return func(d *Dispatcher) {
		if limit > 0 {
			d.sweepLimit = limit
		}
	}
}

// WithRetryAfter sets how long a failed dispatch rests before the sweep
// retries it.
func WithRetryAfter(after time.Duration) Option {
	return func(d *Dispatcher) {
		if after > 0 {
			d.retryAfter = after
		}
	}
}

// NewDispatcher builds the dispatcher. jobMetrics may be nil when the sweep
// loop is not used.
func NewDispatcher(ordersRepo ordersStore, client shipmentClient, logg *logger.Logger, jobMetrics *metrics.JobMetrics, opts ...Option) (*Dispatcher, error) {
	if ordersRepo == nil {
		return nil, fmt.Errorf("orders store required")
	}
	if client == nil {
		return nil, fmt.Errorf("shipment client required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	d := &Dispatcher{
		orders:     ordersRepo,
		client:     client,
		logger:     logg,
		jobMetrics: jobMetrics,
		retryAfter: 10 * time.Minute,
		sweepLimit: 50,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Dispatch submits the order to the provider and persists the outcome.
// Returns the resulting shipment status.
func (d *Dispatcher) Dispatch(ctx context.Context, order *models.Order) enums.ShipmentStatus {
	ctx = d.logger.WithOrderNumber(ctx, order.OrderNumber)

	shipment, err := d.client.CreateShipment(ctx, paramsFromOrder(order))
	if err != nil {
		d.logger.Error(ctx, "shipment dispatch failed", err)
		note := fmt.Sprintf("shipment dispatch failed: %v", err)
		d.persist(ctx, order, map[string]any{
			"shipment_status": enums.ShipmentStatusFailed,
			"internal_notes":  appendNote(order.InternalNotes, note),
		})
		return enums.ShipmentStatusFailed
	}

	shipmentID := fmt.Sprintf("%d", shipment.ShipmentID)
	updates := map[string]any{
		"shipment_status": enums.ShipmentStatusOrderCreated,
		"shipment_id":     shipmentID,
	}
	if shipment.AWBCode != "" {
		updates["awb_code"] = shipment.AWBCode
	}
	if shipment.CourierName != "" {
		updates["courier_name"] = shipment.CourierName
	}
	d.persist(ctx, order, updates)

	order.ShipmentID = &shipmentID
	d.logger.Info(ctx, "shipment registered")
	return enums.ShipmentStatusOrderCreated
}

// Sweep re-dispatches confirmed orders whose shipment previously failed and
// has sat untouched past the retry delay.
func (d *Dispatcher) Sweep(ctx context.Context) error {
	start := time.Now()
	cutoff := start.Add(-d.retryAfter)

	rows, err := d.orders.FindDispatchRetryable(ctx, cutoff, d.sweepLimit)
	if err != nil {
		if d.jobMetrics != nil {
			d.jobMetrics.IncFailure(sweepJobName)
		}
		return fmt.Errorf("load retryable orders: %w", err)
	}

	recovered := 0
	for _, order := range rows {
		if d.Dispatch(ctx, order) == enums.ShipmentStatusOrderCreated {
			recovered++
		}
	}

	if d.jobMetrics != nil {
		d.jobMetrics.ObserveDuration(sweepJobName, time.Since(start))
		d.jobMetrics.IncSuccess(sweepJobName)
	}
	ctx = d.logger.WithFields(ctx, map[string]any{
		"candidates": len(rows),
		"recovered":  recovered,
	})
	d.logger.Info(ctx, "shipment sweep finished")
	return nil
}

func paramsFromOrder(order *models.Order) shiprocket.ShipmentParams {
	params := shiprocket.ShipmentParams{
		OrderNumber:   order.OrderNumber,
		OrderDate:     order.CreatedAt,
		CustomerName:  order.CustomerName,
		CustomerEmail: order.CustomerEmail,
		CustomerPhone: order.CustomerPhone,
		PaymentMethod: paymentMethodLabel(order.PaymentMethod),
		SubTotal:      order.TotalAmount,
	}
	if order.Address != nil {
		params.AddressLine1 = order.Address.Line1
		if order.Address.Line2 != nil {
			params.AddressLine2 = *order.Address.Line2
		}
		params.City = order.Address.City
		params.State = order.Address.State
		params.PostalCode = order.Address.PostalCode
	}
	for _, item := range order.Items {
		name := item.ProductTitle
		if item.Size != nil && *item.Size != "" {
			name = fmt.Sprintf("%s (%s)", name, *item.Size)
		}
		params.Items = append(params.Items, shiprocket.ShipmentItem{
			Name:      name,
			SKU:       item.ProductSKU,
			Units:     item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}
	return params
}

func paymentMethodLabel(method enums.PaymentMethod) string {
	if method == enums.PaymentMethodCOD {
		return "COD"
	}
	return "Prepaid"
}

func (d *Dispatcher) persist(ctx context.Context, order *models.Order, updates map[string]any) {
	if err := d.orders.Update(ctx, order.ID, updates); err != nil {
		// The shipment may exist provider-side with no local record; the
		// sweep will re-dispatch and the provider dedupes on order number.
		d.logger.Error(ctx, "persist shipment outcome failed", err)
		return
	}
	if status, ok := updates["shipment_status"].(enums.ShipmentStatus); ok {
		order.ShipmentStatus = status
	}
}

func appendNote(existing *string, note string) string {
	stamped := fmt.Sprintf("[%s] %s", time.Now().UTC().Format(time.RFC3339), note)
	if existing == nil || *existing == "" {
		return stamped
	}
	return *existing + "\n" + stamped
}
