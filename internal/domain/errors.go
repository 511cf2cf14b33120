package domain

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for common error conditions.
var (
	// ErrNotFound indicates that a requested entity was not found.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates that an entity already exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates that the input data is invalid.
	ErrInvalidInput = errors.New("invalid input")

	// ErrRateLimited indicates that the request was rate limited.
	ErrRateLimited = errors.New("rate limited")

	// ErrServiceUnavailable indicates that an external service is unavailable.
	ErrServiceUnavailable = errors.New("service unavailable")

	// ErrInternalError indicates an internal server error.
	ErrInternalError = errors.New("internal error")

	// ErrNoSelection indicates that editorial selection produced no valid matches.
	ErrNoSelection = errors.New("no selection")

	// ErrGenerationFailed indicates that content generation failed.
	ErrGenerationFailed = errors.New("generation failed")

	// ErrQuotaExceeded indicates that an upload exceeds a size limit.
	ErrQuotaExceeded = errors.New("quota exceeded")
)

// ValidationError represents a validation error for a specific field.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// NotFoundError provides details about a not found entity.
type NotFoundError struct {
	Entity string
	ID     string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Entity, e.ID)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// AlreadyExistsError provides details about a duplicate entity.
type AlreadyExistsError struct {
	Entity string
	ID     string
}

// Error implements the error interface.
func (e *AlreadyExistsError) Error() string {
	return fmt.Sprintf("%s already exists: %s", e.Entity, e.ID)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *AlreadyExistsError) Unwrap() error {
	return ErrAlreadyExists
}

// RateLimitError provides details about a rate limit error.
type RateLimitError struct {
	Source     string
	RetryAfter time.Duration
}

// Error implements the error interface.
func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited by %s: retry after %s", e.Source, e.RetryAfter)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *RateLimitError) Unwrap() error {
	return ErrRateLimited
}

// UpstreamError provides details about a failure in an upstream service
// (literature search or text generation).
type UpstreamError struct {
	Source     string
	StatusCode int
	Message    string
	Cause      error
}

// Error implements the error interface.
func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s upstream error (status %d): %s", e.Source, e.StatusCode, e.Message)
}

// Unwrap returns the underlying cause error.
func (e *UpstreamError) Unwrap() error {
	return e.Cause
}

// SelectionError indicates that the editorial selection step returned no
// identifiers matching the candidate set.
type SelectionError struct {
	Subject string
	Message string
}

// Error implements the error interface.
func (e *SelectionError) Error() string {
	return fmt.Sprintf("selection failed for %s: %s", e.Subject, e.Message)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *SelectionError) Unwrap() error {
	return ErrNoSelection
}

// GenerationError indicates that the content generation step failed, either
// because the generation service returned a non-success status or because its
// payload could not be parsed.
type GenerationError struct {
	Stage   string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failed at %s: %s", e.Stage, e.Message)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *GenerationError) Unwrap() error {
	return ErrGenerationFailed
}

// QuotaError indicates that an uploaded file exceeds the configured size limit.
type QuotaError struct {
	Limit int64
	Size  int64
}

// Error implements the error interface.
func (e *QuotaError) Error() string {
	return fmt.Sprintf("file size %d exceeds limit %d", e.Size, e.Limit)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *QuotaError) Unwrap() error {
	return ErrQuotaExceeded
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(entity, id string) *NotFoundError {
	return &NotFoundError{
		Entity: entity,
		ID:     id,
	}
}

// NewAlreadyExistsError creates a new AlreadyExistsError.
func NewAlreadyExistsError(entity, id string) *AlreadyExistsError {
	return &AlreadyExistsError{
		Entity: entity,
		ID:     id,
	}
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// NewRateLimitError creates a new RateLimitError.
func NewRateLimitError(source string, retryAfter time.Duration) *RateLimitError {
	return &RateLimitError{
		Source:     source,
		RetryAfter: retryAfter,
	}
}

// NewUpstreamError creates a new UpstreamError.
func NewUpstreamError(source string, statusCode int, message string, cause error) *UpstreamError {
	return &UpstreamError{
		Source:     source,
		StatusCode: statusCode,
		Message:    message,
		Cause:      cause,
	}
}

// NewSelectionError creates a new SelectionError.
func NewSelectionError(subject, message string) *SelectionError {
	return &SelectionError{
		Subject: subject,
		Message: message,
	}
}

// NewGenerationError creates a new GenerationError.
func NewGenerationError(stage, message string, cause error) *GenerationError {
	return &GenerationError{
		Stage:   stage,
		Message: message,
		Cause:   cause,
	}
}

// NewQuotaError creates a new QuotaError.
func NewQuotaError(limit, size int64) *QuotaError {
	return &QuotaError{
		Limit: limit,
		Size:  size,
	}
}
