package llm

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAPIError_Error(t *testing.T) {
	t.Run("with type", func(t *testing.T) {
		err := &APIError{
			Provider:   "openai",
			StatusCode: 429,
			Message:    "rate limited",
			Type:       "rate_limit_error",
		}
		assert.Equal(t, "openai: API error (status 429, type rate_limit_error): rate limited", err.Error())
	})

	t.Run("without type", func(t *testing.T) {
		err := &APIError{
			Provider:   "openai",
			StatusCode: 500,
			Message:    "server error",
		}
		assert.Equal(t, "openai: API error (status 500): server error", err.Error())
	})
}

func TestAPIError_IsTransient(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		want       bool
	}{
		{name: "no response", statusCode: 0, want: true},
		{name: "rate limited", statusCode: http.StatusTooManyRequests, want: true},
		{name: "internal server error", statusCode: 500, want: true},
		{name: "bad gateway", statusCode: 502, want: true},
		{name: "bad request", statusCode: 400, want: false},
		{name: "unauthorized", statusCode: 401, want: false},
		{name: "not found", statusCode: 404, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := &APIError{Provider: "openai", StatusCode: tt.statusCode}
			assert.Equal(t, tt.want, err.IsTransient())
		})
	}
}

func TestIsTransientError(t *testing.T) {
	t.Run("transient api error", func(t *testing.T) {
		err := &APIError{Provider: "openai", StatusCode: 503}
		assert.True(t, isTransientError(err))
	})

	t.Run("wrapped transient api error", func(t *testing.T) {
		err := fmt.Errorf("request failed: %w", &APIError{StatusCode: 429})
		assert.True(t, isTransientError(err))
	})

	t.Run("non-transient api error", func(t *testing.T) {
		err := &APIError{Provider: "openai", StatusCode: 400}
		assert.False(t, isTransientError(err))
	})

	t.Run("plain error", func(t *testing.T) {
		assert.False(t, isTransientError(errors.New("boom")))
	})
}
