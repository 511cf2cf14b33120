// Package llm provides the language-model client used by the editorial
// pipeline for paper selection and blog post generation.
//
// The package speaks the OpenAI Chat Completions API and supports two
// structured-output strategies: the json_object response format and a
// forced function call whose arguments carry the same schema. Both
// return the raw JSON text; callers own schema parsing.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/sciencesimplified/content-service/internal/observability"
)

// OutputStrategy selects how structured output is requested from the model.
type OutputStrategy string

const (
	// OutputJSONObject uses the json_object response format.
	OutputJSONObject OutputStrategy = "json_object"

	// OutputToolCall forces a single function call and reads the JSON
	// from its arguments.
	OutputToolCall OutputStrategy = "tool_call"
)

// Request contains a single structured completion request.
type Request struct {
	// Operation labels the request for logging and metrics
	// (e.g., "select_papers", "generate_post").
	Operation string

	// System is the system prompt.
	System string

	// User is the user prompt.
	User string

	// MaxTokens caps the completion length. Zero means the client default.
	MaxTokens int

	// Tool describes the function schema used with OutputToolCall.
	// Ignored under OutputJSONObject.
	Tool *ToolSchema
}

// ToolSchema describes the function exposed to the model under the
// tool-call strategy.
type ToolSchema struct {
	// Name is the function name.
	Name string

	// Description tells the model when to call the function.
	Description string

	// Parameters is the JSON Schema of the function arguments.
	Parameters json.RawMessage
}

// Result contains the structured completion output.
type Result struct {
	// Content is the raw JSON text returned by the model.
	Content string

	// Model is the model that produced the completion.
	Model string

	// InputTokens is the number of prompt tokens used.
	InputTokens int

	// OutputTokens is the number of completion tokens used.
	OutputTokens int
}

// Client defines the interface for structured LLM completions.
//
// Implementations should:
//   - Respect context cancellation
//   - Retry transient provider errors (429, 5xx)
//   - Return wrapped errors with provider context
type Client interface {
	// Complete executes a structured completion and returns the raw JSON content.
	Complete(ctx context.Context, req Request) (*Result, error)

	// Provider returns the name of the LLM provider (e.g., "openai").
	Provider() string

	// Model returns the model identifier being used (e.g., "gpt-4o-mini").
	Model() string
}

// FactoryConfig holds the parameters needed to create a Client.
// This is defined in the llm package to avoid importing the config package.
type FactoryConfig struct {
	// Provider is the LLM provider name. Only "openai" is supported.
	Provider string
	// Strategy selects the structured-output strategy.
	Strategy OutputStrategy
	// Temperature is the sampling temperature.
	Temperature float64
	// Timeout is the timeout for LLM API calls.
	Timeout time.Duration
	// MaxRetries is the maximum number of retries for failed calls.
	MaxRetries int
	// RetryDelay is the base delay between retries.
	RetryDelay time.Duration
	// OpenAI contains OpenAI-specific settings.
	OpenAI OpenAIConfig
}

// NewClient creates a Client based on the configuration.
// Returns an error for unsupported or empty provider values.
func NewClient(cfg FactoryConfig, logger zerolog.Logger, metrics *observability.Metrics) (Client, error) {
	switch cfg.Provider {
	case "openai":
		return NewOpenAIClient(cfg, logger, metrics), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %q", cfg.Provider)
	}
}
