// Package types holds the wire envelopes every storefront endpoint shares.
package types

// SuccessEnvelope wraps successful responses so clients always find their
// payload under "data".
type SuccessEnvelope struct {
	Data any `json:"data"`
}

// APIError is the public error shape: a stable machine-readable code plus a
// shopper-facing message. Details are included only for codes that allow it.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ErrorEnvelope wraps failed responses.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}
