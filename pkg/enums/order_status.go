package enums

import "fmt"

// OrderStatus tracks a persisted register order.
type OrderStatus string

const (
	OrderStatusCompleted OrderStatus = "completed"
	// OrderStatusReconciled marks an order recorded after a manual reconciliation.
	OrderStatusReconciled OrderStatus = "reconciled"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusCompleted,
	OrderStatusReconciled,
}

// IsValid reports whether the value is a known OrderStatus.
func (s OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseOrderStatus converts raw input into an OrderStatus.
func ParseOrderStatus(value string) (OrderStatus, error) {
	for _, candidate := range validOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order status %q", value)
}
