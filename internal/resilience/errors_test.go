package resilience

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"syscall"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsNetworkFailure(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", errors.New("bad request"), false},
		{"typed", &NetworkError{Message: "down"}, true},
		{"connection reset", fmt.Errorf("read: %w", syscall.ECONNRESET), true},
		{"connection refused", fmt.Errorf("dial: %w", syscall.ECONNREFUSED), true},
		{"dns timeout", &net.DNSError{IsTimeout: true}, true},
		{"url error", &url.Error{Op: "Post", URL: "https://api.tavily.com", Err: errors.New("eof")}, true},
		{"string pattern", errors.New("dial tcp: lookup api: no such host"), true},
		{"status error", &StatusError{Provider: "tavily", StatusCode: 500}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsNetworkFailure(tt.err))
		})
	}
}

func TestIsServerError(t *testing.T) {
	assert.True(t, IsServerError(&StatusError{StatusCode: 503}))
	assert.True(t, IsServerError(eris.Wrap(&StatusError{StatusCode: 500}, "tavily: search")))
	assert.False(t, IsServerError(&StatusError{StatusCode: 429}))
	assert.False(t, IsServerError(errors.New("boom")))
}

func TestClassify_Nil(t *testing.T) {
	assert.NoError(t, Classify(nil, "ctx"))
}

func TestClassify_MessagePatterns(t *testing.T) {
	tests := []struct {
		msg    string
		status int
	}{
		{"Invalid API key provided", 401},
		{"401 Unauthorized", 401},
		{"Quota exceeded for project", 429},
		{"rate limit reached", 429},
		{"model not found", 404},
		{"request timeout", 408},
	}
	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			err := Classify(errors.New(tt.msg), "Lead Discovery")
			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.status, apiErr.StatusCode)
		})
	}
}

func TestClassify_NetworkFailure(t *testing.T) {
	raw := &url.Error{Op: "Post", URL: "https://api.tavily.com/search", Err: syscall.ECONNREFUSED}
	err := Classify(raw, "Content Retrieval")

	var netErr *NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.ErrorIs(t, err, syscall.ECONNREFUSED)
}

func TestClassify_StatusErrorKeepsStatus(t *testing.T) {
	err := Classify(&StatusError{Provider: "tavily", StatusCode: 502, Body: "bad gateway"}, "Content Retrieval")

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 502, apiErr.StatusCode)
}

func TestClassify_TypedPassThrough(t *testing.T) {
	val := &ValidationError{Message: "no JSON array", Fields: map[string]string{"body": "empty"}}
	err := Classify(eris.Wrap(val, "discovery: parse"), "Lead Discovery")

	var got *ValidationError
	require.ErrorAs(t, err, &got)
	assert.Same(t, val, got)
}

func TestClassify_Generic(t *testing.T) {
	err := Classify(errors.New("something odd"), "x")

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 0, apiErr.StatusCode)
	assert.Equal(t, "something odd", apiErr.Message)
}

func TestFormatUserMessage(t *testing.T) {
	assert.Equal(t, "", FormatUserMessage(nil))
	assert.Contains(t, FormatUserMessage(&APIError{StatusCode: 401}), "Authentication failed")
	assert.Contains(t, FormatUserMessage(&APIError{StatusCode: 429}), "Rate limit")
	assert.Contains(t, FormatUserMessage(&APIError{StatusCode: 503}), "Server error")
	assert.Equal(t, "custom", FormatUserMessage(&APIError{Message: "custom", StatusCode: 400}))
	assert.Contains(t, FormatUserMessage(&NetworkError{Message: "x"}), "Network connection failed")
	assert.Equal(t, "bad shape", FormatUserMessage(&ValidationError{Message: "bad shape"}))
	assert.Equal(t, "plain", FormatUserMessage(errors.New("plain")))
}

func TestValidationError_ErrorIncludesFields(t *testing.T) {
	err := &ValidationError{Message: "invalid request", Fields: map[string]string{"city": "required"}}
	assert.Equal(t, "validation error: invalid request (city: required)", err.Error())
}
