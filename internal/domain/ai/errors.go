package ai

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrQuotaExceeded indicates the AI provider returned a quota/limit error (HTTP 429 or similar).
var ErrQuotaExceeded = errors.New("ai quota exceeded")

var (
	// ErrNetwork means no response was received (connection failure or timeout).
	ErrNetwork = errors.New("inference service unreachable")
	// ErrUpstreamStatus means the service answered with a non-success status.
	ErrUpstreamStatus = errors.New("inference service returned an error status")
	// ErrMalformedResponse means the reply could not be decoded or lacked the expected fields.
	ErrMalformedResponse = errors.New("inference service returned an unexpected response")
	// ErrMissingCredentials means the endpoint URL or API key is not configured.
	ErrMissingCredentials = errors.New("inference service not configured")
)

// StatusError carries the upstream HTTP status.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%v: %d %s", ErrUpstreamStatus, e.Code, http.StatusText(e.Code))
}

func (e *StatusError) Unwrap() error { return ErrUpstreamStatus }

// Is lets a 429 match ErrQuotaExceeded.
func (e *StatusError) Is(target error) bool {
	return target == ErrQuotaExceeded && e.Code == http.StatusTooManyRequests
}

// Kind is a short machine-readable tag for logs, metrics and API responses.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrMissingCredentials):
		return "missing_credentials"
	case errors.Is(err, ErrQuotaExceeded):
		return "quota_exceeded"
	case errors.Is(err, ErrUpstreamStatus):
		return "upstream_status"
	case errors.Is(err, ErrMalformedResponse):
		return "malformed_response"
	case errors.Is(err, ErrNetwork):
		return "network"
	}
	return "unknown"
}

// UserMessage is the inline text shown to the user for a failed remote call.
// Every kind maps to a distinct, non-empty message.
func UserMessage(err error) string {
	switch Kind(err) {
	case "missing_credentials":
		return "This tool is not configured yet: the analysis service settings are missing. Please try again later."
	case "quota_exceeded":
		return "The analysis service is busy right now. Please wait a minute and submit again."
	case "upstream_status":
		var se *StatusError
		if errors.As(err, &se) {
			return fmt.Sprintf("The analysis service rejected the request (status %d). Please submit again.", se.Code)
		}
		return "The analysis service rejected the request. Please submit again."
	case "malformed_response":
		return "The analysis service sent back a response we could not read. Please submit again."
	case "network":
		return "We could not reach the analysis service. Check your connection and submit again."
	}
	return "Something went wrong while generating your report. Please submit again."
}
