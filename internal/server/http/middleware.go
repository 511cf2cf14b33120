package httpserver

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/sciencesimplified/content-service/internal/observability"
)

// correlationIDHeader carries a caller-supplied correlation id across services.
const correlationIDHeader = "X-Correlation-ID"

// correlationIDMiddleware extracts the correlation id from the request header,
// generating one when absent, and stores it on the request context and the
// response header.
func correlationIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		correlationID := r.Header.Get(correlationIDHeader)
		if correlationID == "" {
			correlationID = uuid.NewString()
		}

		ctx := observability.WithCorrelationID(r.Context(), correlationID)
		w.Header().Set(correlationIDHeader, correlationID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requestLogMiddleware logs one line per request with status and duration.
func (s *Server) requestLogMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		s.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Str("correlation_id", observability.CorrelationIDFromContext(r.Context())).
			Msg("http request")
	})
}
