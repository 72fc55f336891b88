package sfsquery

import "errors"

// Errors recorded on a Client. Use errors.Is to classify the value returned
// by Client.Err; the message carries the underlying cause.
var (
	// ErrInvalidTarget means the address is malformed, private or reserved
	// for the selected mode. No network traffic was generated.
	ErrInvalidTarget = errors.New("private, reserved, or invalid IP address")
	// ErrTransportUnavailable means no fetcher could handle the API URL.
	ErrTransportUnavailable = errors.New("no supported connection method was found")
	// ErrNetworkFailure wraps connection, timeout and resolution failures.
	ErrNetworkFailure = errors.New("network failure")
	// ErrMalformedResponse means the API payload was not a JSON object.
	ErrMalformedResponse = errors.New("server response could not be decoded from JSON")
	// ErrServiceFailure means the API decoded fine but reported success=0.
	ErrServiceFailure = errors.New("server response indicated query failure")
)

// errorLabel maps a recorded error onto a bounded metrics label.
func errorLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrInvalidTarget):
		return "invalid_target"
	case errors.Is(err, ErrTransportUnavailable):
		return "transport_unavailable"
	case errors.Is(err, ErrNetworkFailure):
		return "network_failure"
	case errors.Is(err, ErrMalformedResponse):
		return "malformed_response"
	case errors.Is(err, ErrServiceFailure):
		return "service_failure"
	default:
		return "other"
	}
}
