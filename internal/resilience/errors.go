// Package resilience provides retry and error classification for outbound
// provider calls made by the lead generation pipeline.
package resilience

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"syscall"
)

// APIError is a provider-level failure: the provider was reachable but
// rejected or failed the request.
type APIError struct {
	Message    string
	StatusCode int // 0 when the provider gave no status
	Details    any
	Err        error
}

func (e *APIError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("api error (%d): %s", e.StatusCode, e.Message)
	}
	return "api error: " + e.Message
}

func (e *APIError) Unwrap() error { return e.Err }

// HTTPStatus implements StatusCoder.
func (e *APIError) HTTPStatus() int { return e.StatusCode }

// NetworkError means the transport to the provider could not be established.
type NetworkError struct {
	Message string
	Err     error
}

func (e *NetworkError) Error() string { return "network error: " + e.Message }

func (e *NetworkError) Unwrap() error { return e.Err }

// ValidationError means a response (or a request) was received but could not
// be parsed or did not have the expected shape.
type ValidationError struct {
	Message string
	Fields  map[string]string
	Err     error
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation error: " + e.Message
	}
	parts := make([]string, 0, len(e.Fields))
	for k, v := range e.Fields {
		parts = append(parts, k+": "+v)
	}
	return fmt.Sprintf("validation error: %s (%s)", e.Message, strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() error { return e.Err }

// StatusCoder is implemented by provider errors that carry an HTTP status.
type StatusCoder interface {
	HTTPStatus() int
}

// StatusError is the error returned by the REST provider clients in pkg/ for
// non-2xx responses.
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Provider, e.StatusCode, e.Body)
}

// HTTPStatus implements StatusCoder.
func (e *StatusError) HTTPStatus() int { return e.StatusCode }

// StatusOf returns the HTTP status carried anywhere in err's chain, or 0.
func StatusOf(err error) int {
	var sc StatusCoder
	if errors.As(err, &sc) {
		return sc.HTTPStatus()
	}
	return 0
}

// IsNetworkFailure reports whether err means the transport could not be
// established or broke mid-flight.
func IsNetworkFailure(err error) bool {
	if err == nil {
		return false
	}

	var ne *NetworkError
	if errors.As(err, &ne) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) && StatusOf(err) == 0 {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, p := range networkPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

var networkPatterns = []string{
	"connection reset by peer",
	"connection refused",
	"broken pipe",
	"temporary failure in name resolution",
	"no such host",
	"tls handshake timeout",
	"i/o timeout",
	"server closed idle connection",
	"transport connection broken",
	"failed to fetch",
}

// IsServerError reports whether err carries a 5xx status.
func IsServerError(err error) bool {
	code := StatusOf(err)
	return code >= 500 && code < 600
}
