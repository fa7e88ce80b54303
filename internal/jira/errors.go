package jira

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"syscall"

	gojira "github.com/andygrunwald/go-jira"
)

// Kind classifies an upstream failure.
type Kind string

const (
	KindAuth            Kind = "auth"
	KindForbidden       Kind = "forbidden"
	KindNotFound        Kind = "not_found"
	KindRateLimited     Kind = "rate_limited"
	KindServer          Kind = "server"
	KindTimeout         Kind = "timeout"
	KindUnreachable     Kind = "unreachable"
	KindInvalidResponse Kind = "invalid_response"
	KindBadRequest      Kind = "bad_request"
	KindUnknown         Kind = "unknown"
)

// User-facing messages. They never contain upstream payloads or credentials.
const (
	msgAuth            = "Authentication failed. Please check your Jira credentials."
	msgForbidden       = "Access denied. You do not have permission to access this resource."
	msgNotFound        = "Resource not found in Jira."
	msgRateLimited     = "Rate limit exceeded. Please try again later."
	msgServer          = "Jira server error. Please try again later."
	msgTimeout         = "Request timeout. Jira is taking too long to respond."
	msgUnreachable     = "Cannot connect to Jira. Please check the URL."
	msgInvalidResponse = "Unexpected response from Jira."
	msgUnknownStatus   = "Unknown error occurred"
	msgTransport       = "Error communicating with Jira"
)

// Error is the single error type returned by Client operations.
type Error struct {
	Op         string // client operation, e.g. "searchIssues"
	Kind       Kind
	StatusCode int    // HTTP status to surface to callers
	Message    string // safe to show to end users
	Err        error  // underlying cause
}

func (e *Error) Error() string { return e.Message }

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Err }

// Details returns diagnostic fields that are safe to expose alongside Message.
func (e *Error) Details() map[string]any {
	return map[string]any{
		"operation": e.Op,
		"status":    e.StatusCode,
	}
}

// statusError carries an upstream HTTP error response.
type statusError struct {
	StatusCode int
	Body       []byte
}

func (e *statusError) Error() string {
	return "jira returned " + http.StatusText(e.StatusCode) + ": " + string(trim(e.Body, 512))
}

// newStatusError maps an HTTP error status to an *Error.
func newStatusError(op string, status int, body []byte) *Error {
	e := &Error{
		Op:         op,
		StatusCode: status,
		Err:        &statusError{StatusCode: status, Body: body},
	}

	switch {
	case status == http.StatusUnauthorized:
		e.Kind, e.Message = KindAuth, msgAuth
	case status == http.StatusForbidden:
		e.Kind, e.Message = KindForbidden, msgForbidden
	case status == http.StatusNotFound:
		e.Kind, e.Message = KindNotFound, msgNotFound
	case status == http.StatusTooManyRequests:
		e.Kind, e.Message = KindRateLimited, msgRateLimited
	case status >= 500 && status < 600:
		e.Kind, e.Message = KindServer, msgServer
	default:
		e.Kind, e.Message = KindUnknown, upstreamMessage(body)
	}
	return e
}

// upstreamMessage extracts the first error message from a Jira error payload.
func upstreamMessage(body []byte) string {
	var payload struct {
		gojira.Error
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return msgUnknownStatus
	}
	for _, m := range payload.ErrorMessages {
		if m = strings.TrimSpace(m); m != "" {
			return m
		}
	}
	if m := strings.TrimSpace(payload.Message); m != "" {
		return m
	}
	return msgUnknownStatus
}

// newBadRequestError reports invalid client input detected before any call.
func newBadRequestError(op, msg string) *Error {
	return &Error{
		Op:         op,
		Kind:       KindBadRequest,
		StatusCode: http.StatusBadRequest,
		Message:    msg,
	}
}

// newTransportError maps a failure that produced no HTTP response.
func newTransportError(op string, err error) *Error {
	e := &Error{Op: op, Err: err}

	switch {
	case isTimeout(err):
		e.Kind, e.StatusCode, e.Message = KindTimeout, http.StatusGatewayTimeout, msgTimeout
	case isUnreachable(err):
		e.Kind, e.StatusCode, e.Message = KindUnreachable, http.StatusBadGateway, msgUnreachable
	default:
		e.Kind, e.StatusCode, e.Message = KindUnknown, http.StatusInternalServerError, msgTransport
	}
	return e
}

// newDecodeError reports a response body that could not be decoded.
func newDecodeError(op string, err error) *Error {
	return &Error{
		Op:         op,
		Kind:       KindInvalidResponse,
		StatusCode: http.StatusBadGateway,
		Message:    msgInvalidResponse,
		Err:        err,
	}
}

// isTimeout reports whether err is a deadline or network timeout.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// isUnreachable reports DNS failures and refused or unreachable connections.
func isUnreachable(err error) bool {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EHOSTUNREACH) ||
		errors.Is(err, syscall.ENETUNREACH) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}

// trim returns at most n bytes from b.
func trim(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return b[:n]
}
