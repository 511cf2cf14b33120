// Package observability provides logging and metrics support for the
// content service.
//
// # Overview
//
// The observability package provides:
//
//   - Structured logging with zerolog
//   - Prometheus metrics for the editorial pipeline and upstream calls
//   - Context helpers for propagating request identifiers
//
// # Logging
//
// Create a logger from configuration:
//
//	cfg := observability.LoggingConfig{
//	    Level:     "info",
//	    Format:    "json",
//	    Output:    "stdout",
//	    AddSource: true,
//	}
//
//	logger := observability.NewLogger(cfg)
//	logger.Info().Str("subject", "Genetics").Msg("selection started")
//
// Add pipeline context to a logger:
//
//	logger = observability.WithSelectionContext(logger, subject, weekNumber, year)
//
// # Metrics
//
// Initialize metrics:
//
//	metrics := observability.NewMetrics("content_service")
//
// Record metrics:
//
//	metrics.RecordSelectionStarted("batch")
//	metrics.RecordPostGenerated(12.4)
//
// # Context Helpers
//
// Store and retrieve request context:
//
//	ctx = observability.WithRequestID(ctx, requestID)
//	reqID := observability.RequestIDFromContext(ctx)
//
// # Standard Fields
//
// Common fields used across the service:
//
//   - subject: Topical category name
//   - week_number, year: Selection window identifiers
//   - paper_id: Selected paper identifier
//   - pmid: External literature identifier
//   - post_id: Blog post identifier
//
// # Thread Safety
//
// All components are safe for concurrent use from multiple goroutines.
package observability
