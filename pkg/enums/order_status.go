package enums

import "fmt"

// OrderStatus mirrors the two-letter status codes the FoodSearch backend
// assigns to a pedido.
type OrderStatus string

const (
	OrderStatusOpen      OrderStatus = "AB"
	OrderStatusFinalized OrderStatus = "FI"
	OrderStatusCanceled  OrderStatus = "CA"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusOpen,
	OrderStatusFinalized,
	OrderStatusCanceled,
}

// String implements fmt.Stringer.
func (o OrderStatus) String() string {
	return string(o)
}

// IsValid reports whether the value is a known OrderStatus.
func (o OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if candidate == o {
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
