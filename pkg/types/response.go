// Package types holds the JSON envelopes shared by every HTTP response.
package types

// SuccessEnvelope wraps a schedule payload: {"data": ...}.
type SuccessEnvelope struct {
	Data any `json:"data"`
}

// APIError is the public shape of a typed error.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ErrorEnvelope wraps an APIError: {"error": {...}}.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}
