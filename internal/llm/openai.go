package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/sciencesimplified/content-service/internal/observability"
)

// Default values for the OpenAI provider.
const (
	defaultOpenAIBaseURL    = "https://api.openai.com/v1"
	defaultOpenAIModel      = "gpt-4o-mini"
	defaultOpenAIMaxTokens  = 4096
	defaultOpenAIRetryDelay = 2 * time.Second
)

// chatRequest represents the OpenAI Chat Completions API request body.
type chatRequest struct {
	Model          string           `json:"model"`
	Messages       []chatMessage    `json:"messages"`
	Temperature    float64          `json:"temperature"`
	MaxTokens      int              `json:"max_tokens,omitempty"`
	ResponseFormat *responseFormat  `json:"response_format,omitempty"`
	Tools          []toolDefinition `json:"tools,omitempty"`
	ToolChoice     *toolChoice      `json:"tool_choice,omitempty"`
}

// chatMessage represents a single message in the chat conversation.
type chatMessage struct {
	Role      string     `json:"role"`
	Content   string     `json:"content"`
	ToolCalls []toolCall `json:"tool_calls,omitempty"`
}

// responseFormat specifies the output format for the API response.
type responseFormat struct {
	Type string `json:"type"`
}

// toolDefinition describes a callable function exposed to the model.
type toolDefinition struct {
	Type     string             `json:"type"`
	Function functionDefinition `json:"function"`
}

// functionDefinition contains the function name, description and schema.
type functionDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters"`
}

// toolChoice forces the model to call a specific function.
type toolChoice struct {
	Type     string             `json:"type"`
	Function toolChoiceFunction `json:"function"`
}

// toolChoiceFunction names the forced function.
type toolChoiceFunction struct {
	Name string `json:"name"`
}

// toolCall represents a function call made by the model.
type toolCall struct {
	ID       string           `json:"id"`
	Type     string           `json:"type"`
	Function toolCallFunction `json:"function"`
}

// toolCallFunction carries the called function name and JSON arguments.
type toolCallFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// chatResponse represents the OpenAI Chat Completions API response body.
type chatResponse struct {
	ID      string       `json:"id"`
	Choices []chatChoice `json:"choices"`
	Usage   chatUsage    `json:"usage"`
}

// chatChoice represents a single completion choice.
type chatChoice struct {
	Index        int         `json:"index"`
	Message      chatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

// chatUsage contains token usage information.
type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// openAIErrorResponse represents an error response from the OpenAI API.
type openAIErrorResponse struct {
	Error openAIErrorDetail `json:"error"`
}

// openAIErrorDetail contains error details from the OpenAI API.
type openAIErrorDetail struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code"`
}

// OpenAIConfig holds the parameters needed to create an OpenAI client.
type OpenAIConfig struct {
	// APIKey is the OpenAI API key.
	APIKey string
	// Model is the model identifier (e.g., "gpt-4o-mini").
	Model string
	// BaseURL is the API base URL (empty means default).
	BaseURL string
}

// OpenAIClient implements Client using the OpenAI Chat Completions API.
type OpenAIClient struct {
	httpClient  *http.Client
	apiKey      string
	model       string
	baseURL     string
	strategy    OutputStrategy
	temperature float64
	maxRetries  int
	retryDelay  time.Duration
	logger      zerolog.Logger
	metrics     *observability.Metrics
}

// Compile-time check that OpenAIClient implements Client.
var _ Client = (*OpenAIClient)(nil)

// NewOpenAIClient creates a new OpenAI completion client.
//
// The client uses the Chat Completions API with either the json_object
// response format or a forced function call, and retries transient API
// errors (5xx, 429). metrics may be nil.
func NewOpenAIClient(cfg FactoryConfig, logger zerolog.Logger, metrics *observability.Metrics) *OpenAIClient {
	baseURL := cfg.OpenAI.BaseURL
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}

	model := cfg.OpenAI.Model
	if model == "" {
		model = defaultOpenAIModel
	}

	strategy := cfg.Strategy
	if strategy == "" {
		strategy = OutputJSONObject
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}

	retryDelay := cfg.RetryDelay
	if retryDelay <= 0 {
		retryDelay = defaultOpenAIRetryDelay
	}

	return &OpenAIClient{
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		apiKey:      cfg.OpenAI.APIKey,
		model:       model,
		baseURL:     baseURL,
		strategy:    strategy,
		temperature: cfg.Temperature,
		maxRetries:  maxRetries,
		retryDelay:  retryDelay,
		logger:      observability.WithComponent(logger, "llm"),
		metrics:     metrics,
	}
}

// Complete executes a structured completion against the Chat Completions API.
// Transient errors (5xx and 429) are retried up to maxRetries times with
// linear backoff.
func (c *OpenAIClient) Complete(ctx context.Context, req Request) (*Result, error) {
	chatReq := c.buildChatRequest(req)

	start := time.Now()
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := c.retryDelay * time.Duration(attempt)
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("openai: context cancelled during retry wait: %w", ctx.Err())
			case <-time.After(delay):
			}
		}

		result, err := c.doRequest(ctx, req, chatReq)
		if err == nil {
			if c.metrics != nil {
				c.metrics.RecordLLMRequest(req.Operation, c.model, time.Since(start).Seconds())
			}
			return result, nil
		}

		// Only retry on transient errors (5xx, 429).
		if !isTransientError(err) {
			c.recordFailure(req.Operation, err)
			return nil, err
		}
		lastErr = err
	}

	c.recordFailure(req.Operation, lastErr)
	return nil, fmt.Errorf("openai: exhausted %d retries: %w", c.maxRetries, lastErr)
}

// Provider returns the name of the LLM provider.
func (c *OpenAIClient) Provider() string {
	return "openai"
}

// Model returns the model identifier being used.
func (c *OpenAIClient) Model() string {
	return c.model
}

// buildChatRequest assembles the API request body for the configured
// output strategy.
func (c *OpenAIClient) buildChatRequest(req Request) chatRequest {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultOpenAIMaxTokens
	}

	chatReq := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: req.System},
			{Role: "user", Content: req.User},
		},
		Temperature: c.temperature,
		MaxTokens:   maxTokens,
	}

	if c.strategy == OutputToolCall && req.Tool != nil {
		chatReq.Tools = []toolDefinition{{
			Type: "function",
			Function: functionDefinition{
				Name:        req.Tool.Name,
				Description: req.Tool.Description,
				Parameters:  req.Tool.Parameters,
			},
		}}
		chatReq.ToolChoice = &toolChoice{
			Type:     "function",
			Function: toolChoiceFunction{Name: req.Tool.Name},
		}
	} else {
		chatReq.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	return chatReq
}

// doRequest performs a single API request to the Chat Completions endpoint.
func (c *OpenAIClient) doRequest(ctx context.Context, req Request, chatReq chatRequest) (*Result, error) {
	body, err := json.Marshal(chatReq)
	if err != nil {
		return nil, fmt.Errorf("openai: failed to marshal request: %w", err)
	}

	endpoint := c.baseURL + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("openai: failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("openai: request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, fmt.Errorf("openai: failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, parseOpenAIAPIError(resp.StatusCode, respBody)
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return nil, fmt.Errorf("openai: failed to unmarshal response: %w", err)
	}

	if len(chatResp.Choices) == 0 {
		return nil, fmt.Errorf("openai: empty choices in response")
	}

	content, err := c.extractContent(req, chatResp.Choices[0].Message)
	if err != nil {
		return nil, err
	}

	return &Result{
		Content:      content,
		Model:        c.model,
		InputTokens:  chatResp.Usage.PromptTokens,
		OutputTokens: chatResp.Usage.CompletionTokens,
	}, nil
}

// extractContent pulls the structured JSON text out of the assistant
// message according to the output strategy.
func (c *OpenAIClient) extractContent(req Request, msg chatMessage) (string, error) {
	if c.strategy == OutputToolCall && req.Tool != nil {
		if len(msg.ToolCalls) == 0 {
			return "", fmt.Errorf("openai: expected tool call %q but response contains none", req.Tool.Name)
		}
		call := msg.ToolCalls[0]
		if call.Function.Arguments == "" {
			return "", fmt.Errorf("openai: tool call %q has empty arguments", call.Function.Name)
		}
		return call.Function.Arguments, nil
	}

	if msg.Content == "" {
		return "", fmt.Errorf("openai: empty content in response")
	}
	return msg.Content, nil
}

// recordFailure records a failed request in metrics.
func (c *OpenAIClient) recordFailure(operation string, err error) {
	if c.metrics == nil || err == nil {
		return
	}

	errorType := "request"
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		errorType = fmt.Sprintf("status_%d", apiErr.StatusCode)
	}
	c.metrics.RecordLLMRequestFailed(operation, c.model, errorType)
}

// parseOpenAIAPIError parses an OpenAI API error from the response status code and body.
func parseOpenAIAPIError(statusCode int, body []byte) *APIError {
	apiErr := &APIError{
		Provider:   "openai",
		StatusCode: statusCode,
		Message:    string(body),
	}

	var errResp openAIErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		apiErr.Message = errResp.Error.Message
		apiErr.Type = errResp.Error.Type
		apiErr.Code = errResp.Error.Code
	}

	return apiErr
}
