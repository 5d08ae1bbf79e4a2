package enums

import "fmt"

// ShipmentStatus tracks the dispatch state reported by the fulfillment provider.
type ShipmentStatus string

const (
	ShipmentStatusNone         ShipmentStatus = ""
	ShipmentStatusOrderCreated ShipmentStatus = "order_created"
	ShipmentStatusFailed       ShipmentStatus = "failed"
	ShipmentStatusRetryPending ShipmentStatus = "retry_pending"
)

var validShipmentStatuses = []ShipmentStatus{
	ShipmentStatusNone,
	ShipmentStatusOrderCreated,
	ShipmentStatusFailed,
	ShipmentStatusRetryPending,
}

// String implements fmt.Stringer.
func (s ShipmentStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known ShipmentStatus.
func (s ShipmentStatus) IsValid() bool {
	for _, candidate := range validShipmentStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// NeedsDispatch reports whether an order in this shipment state should be
// picked up by the dispatch retry path.
func (s ShipmentStatus) NeedsDispatch() bool {
	return s == ShipmentStatusNone || s == ShipmentStatusFailed || s == ShipmentStatusRetryPending
}

// ParseShipmentStatus converts raw input into a ShipmentStatus.
func ParseShipmentStatus(value string) (ShipmentStatus, error) {
	for _, candidate := range validShipmentStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid shipment status %q", value)
}
