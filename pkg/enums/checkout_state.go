package enums

import "fmt"

// CheckoutState tracks the shopper's progress through the purchase flow.
type CheckoutState string

const (
	CheckoutStateBrowsing          CheckoutState = "browsing"
	CheckoutStateReviewing         CheckoutState = "reviewing"
	CheckoutStateCollectingDetails CheckoutState = "collecting_details"
	CheckoutStateSubmitting        CheckoutState = "submitting"
	CheckoutStateCompleted         CheckoutState = "completed"
	CheckoutStateFailed            CheckoutState = "failed"
)

var validCheckoutStates = []CheckoutState{
	CheckoutStateBrowsing,
	CheckoutStateReviewing,
	CheckoutStateCollectingDetails,
	CheckoutStateSubmitting,
	CheckoutStateCompleted,
	CheckoutStateFailed,
}

// String implements fmt.Stringer.
func (c CheckoutState) String() string {
	return string(c)
}

// IsValid reports whether the value is a known CheckoutState.
func (c CheckoutState) IsValid() bool {
	for _, candidate := range validCheckoutStates {
		if candidate == c {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the state ends the current purchase attempt.
func (c CheckoutState) IsTerminal() bool {
	return c == CheckoutStateCompleted || c == CheckoutStateFailed
}

// ParseCheckoutState converts raw input into a CheckoutState.
func ParseCheckoutState(value string) (CheckoutState, error) {
	for _, candidate := range validCheckoutStates {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid checkout state %q", value)
}
