package resilience

import (
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// Classify maps a raw failure from a provider call into the closed taxonomy
// (*APIError, *NetworkError, *ValidationError). The result is never nil for a
// non-nil err, so call sites can return it directly and branch on type. The
// original failure is logged under label before classification.
func Classify(err error, label string) error {
	if err == nil {
		return nil
	}

	zap.L().Error("provider call failed",
		zap.String("context", label),
		zap.Error(err),
	)

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	var valErr *ValidationError
	if errors.As(err, &valErr) {
		return valErr
	}
	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return netErr
	}

	if StatusOf(err) == 0 && IsNetworkFailure(err) {
		return &NetworkError{Message: "Failed to connect to provider. Please check your internet connection.", Err: err}
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "api key") || strings.Contains(msg, "unauthorized"):
		return &APIError{Message: "Invalid API key. Please check your provider configuration.", StatusCode: http.StatusUnauthorized, Err: err}
	case strings.Contains(msg, "quota") || strings.Contains(msg, "rate limit"):
		return &APIError{Message: "API rate limit exceeded. Please try again later.", StatusCode: http.StatusTooManyRequests, Err: err}
	case strings.Contains(msg, "not found"):
		return &APIError{Message: "Model or resource not found. Please check your configuration.", StatusCode: http.StatusNotFound, Err: err}
	case strings.Contains(msg, "timeout"):
		return &APIError{Message: "Request timed out. Please try again.", StatusCode: http.StatusRequestTimeout, Err: err}
	}

	if code := StatusOf(err); code > 0 {
		return &APIError{Message: err.Error(), StatusCode: code, Err: err}
	}

	return &APIError{Message: err.Error(), Err: err}
}

// FormatUserMessage renders a classified error as text suitable for an end
// user.
func FormatUserMessage(err error) string {
	if err == nil {
		return ""
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusUnauthorized:
			return "Authentication failed. Please check your API keys."
		case apiErr.StatusCode == http.StatusTooManyRequests:
			return "Rate limit exceeded. Please try again later."
		case apiErr.StatusCode >= 500:
			return "Server error. Please try again later."
		}
		return apiErr.Message
	}

	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return "Network connection failed. Please check your internet connection."
	}

	var valErr *ValidationError
	if errors.As(err, &valErr) {
		return valErr.Message
	}

	return err.Error()
}
