// Package newsletter renders and dispatches the weekly digest email.
package newsletter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/sciencesimplified/content-service/internal/domain"
	"github.com/sciencesimplified/content-service/internal/observability"
)

// Provider defaults.
const (
	// DefaultBaseURL is the Resend API endpoint.
	DefaultBaseURL = "https://api.resend.com"

	// DefaultTimeout bounds one provider call.
	DefaultTimeout = 30 * time.Second

	providerName = "resend"

	maxErrorBodyBytes = 4 * 1024
)

// EmailSender dispatches one rendered email to a set of recipients.
type EmailSender interface {
	Send(ctx context.Context, to []string, subject, html string) error
}

// ClientConfig holds email provider settings.
type ClientConfig struct {
	// APIKey authenticates against the provider.
	APIKey string
	// BaseURL is the provider API base URL. Default: the Resend API.
	BaseURL string
	// FromAddress is the sender shown on digest emails.
	FromAddress string
	// Timeout bounds one provider call. Default: 30 seconds.
	Timeout time.Duration
}

// Client sends email through the Resend transactional API.
type Client struct {
	config     ClientConfig
	httpClient *http.Client
	logger     zerolog.Logger
}

// Compile-time interface verification.
var _ EmailSender = (*Client)(nil)

// NewClient creates an email client.
func NewClient(cfg ClientConfig, logger zerolog.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("newsletter API key is required")
	}
	if cfg.FromAddress == "" {
		return nil, fmt.Errorf("newsletter from address is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &Client{
		config:     cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     observability.WithComponent(logger, "newsletter"),
	}, nil
}

// sendRequest is the provider's email creation payload. Recipients go on bcc
// so subscribers never see each other's addresses.
type sendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Bcc     []string `json:"bcc,omitempty"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

// Send dispatches one email to the given recipients.
func (c *Client) Send(ctx context.Context, to []string, subject, html string) error {
	if len(to) == 0 {
		return domain.NewValidationError("to", "at least one recipient is required")
	}

	payload := sendRequest{
		From:    c.config.FromAddress,
		To:      []string{c.config.FromAddress},
		Bcc:     to,
		Subject: subject,
		HTML:    html,
	}
	if len(to) == 1 {
		payload.To = to
		payload.Bcc = nil
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/emails", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create email request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.NewUpstreamError(providerName, 0, "request failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return domain.NewUpstreamError(providerName, resp.StatusCode, string(respBody), nil)
	}

	c.logger.Debug().
		Int("recipients", len(to)).
		Str("subject", subject).
		Msg("email dispatched")

	return nil
}
