package newsletter

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sciencesimplified/content-service/internal/domain"
)

func newTestEmailClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	client, err := NewClient(ClientConfig{
		APIKey:      "test-key",
		BaseURL:     baseURL,
		FromAddress: "ScienceSimplified <digest@example.com>",
	}, zerolog.Nop())
	require.NoError(t, err)
	return client
}

func TestNewClient(t *testing.T) {
	t.Run("requires api key", func(t *testing.T) {
		_, err := NewClient(ClientConfig{FromAddress: "a@b.c"}, zerolog.Nop())
		assert.Error(t, err)
	})

	t.Run("requires from address", func(t *testing.T) {
		_, err := NewClient(ClientConfig{APIKey: "key"}, zerolog.Nop())
		assert.Error(t, err)
	})

	t.Run("applies defaults", func(t *testing.T) {
		client, err := NewClient(ClientConfig{APIKey: "key", FromAddress: "a@b.c"}, zerolog.Nop())
		require.NoError(t, err)
		assert.Equal(t, DefaultBaseURL, client.config.BaseURL)
		assert.Equal(t, DefaultTimeout, client.config.Timeout)
	})
}

func TestClient_Send(t *testing.T) {
	t.Run("sends batch recipients on bcc", func(t *testing.T) {
		var captured sendRequest
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/emails", r.URL.Path)
			assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		client := newTestEmailClient(t, server.URL)
		err := client.Send(context.Background(),
			[]string{"one@example.com", "two@example.com"}, "Digest", "<p>Hi</p>")
		require.NoError(t, err)

		assert.Equal(t, "ScienceSimplified <digest@example.com>", captured.From)
		assert.Equal(t, []string{"ScienceSimplified <digest@example.com>"}, captured.To)
		assert.Equal(t, []string{"one@example.com", "two@example.com"}, captured.Bcc)
		assert.Equal(t, "Digest", captured.Subject)
		assert.Equal(t, "<p>Hi</p>", captured.HTML)
	})

	t.Run("single recipient goes on to directly", func(t *testing.T) {
		var captured sendRequest
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		client := newTestEmailClient(t, server.URL)
		err := client.Send(context.Background(), []string{"tester@example.com"}, "Digest", "<p>Hi</p>")
		require.NoError(t, err)

		assert.Equal(t, []string{"tester@example.com"}, captured.To)
		assert.Empty(t, captured.Bcc)
	})

	t.Run("provider error becomes upstream error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`{"message": "invalid from"}`))
		}))
		defer server.Close()

		client := newTestEmailClient(t, server.URL)
		err := client.Send(context.Background(), []string{"one@example.com"}, "Digest", "<p>Hi</p>")
		require.Error(t, err)

		var upstream *domain.UpstreamError
		require.True(t, errors.As(err, &upstream))
		assert.Equal(t, http.StatusUnprocessableEntity, upstream.StatusCode)
		assert.Equal(t, "resend", upstream.Source)
	})

	t.Run("rejects empty recipient list", func(t *testing.T) {
		client := newTestEmailClient(t, "http://unused.invalid")
		err := client.Send(context.Background(), nil, "Digest", "<p>Hi</p>")
		assert.True(t, errors.Is(err, domain.ErrInvalidInput))
	})
}
