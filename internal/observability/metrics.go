package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the content service.
// Metrics are organized by subsystem: selections, generation, publication,
// upstream calls (literature search and text generation), and newsletter
// dispatch. All counters and histograms are registered via promauto for
// automatic registration with the default Prometheus registry.
type Metrics struct {
	// SelectionsStarted counts selection runs initiated, labeled by entry
	// point ("manual" or "batch").
	SelectionsStarted *prometheus.CounterVec

	// SelectionsCompleted counts selection runs that finished successfully.
	SelectionsCompleted *prometheus.CounterVec

	// SelectionsFailed counts selection runs that ended in failure.
	SelectionsFailed *prometheus.CounterVec

	// PapersSelected counts the total number of papers persisted by selection runs.
	PapersSelected prometheus.Counter

	// SelectionDuration observes the duration of selection runs in seconds.
	SelectionDuration *prometheus.HistogramVec

	// CandidatesPerSearch observes the number of candidates returned per search.
	CandidatesPerSearch prometheus.Histogram

	// PostsGenerated counts blog posts created by the content generator.
	PostsGenerated prometheus.Counter

	// GenerationsFailed counts generation attempts that failed, labeled by stage.
	GenerationsFailed *prometheus.CounterVec

	// GenerationDuration observes per-group generation duration in seconds.
	GenerationDuration prometheus.Histogram

	// PapersDeduplicated counts papers excluded because a post already references them.
	PapersDeduplicated prometheus.Counter

	// PostsPublished counts draft to published transitions.
	PostsPublished prometheus.Counter

	// PostsUnpublished counts published to draft transitions.
	PostsUnpublished prometheus.Counter

	// PDFUploads counts PDF attachment operations, labeled by result.
	PDFUploads *prometheus.CounterVec

	// SearchRequestsTotal counts HTTP requests to the literature search API,
	// labeled by endpoint.
	SearchRequestsTotal *prometheus.CounterVec

	// SearchRequestsFailed counts failed literature search requests,
	// labeled by endpoint and error type.
	SearchRequestsFailed *prometheus.CounterVec

	// SearchRequestDuration observes literature search request duration in seconds.
	SearchRequestDuration *prometheus.HistogramVec

	// SearchRateLimited counts rate limit responses from the literature search API.
	SearchRateLimited prometheus.Counter

	// LLMRequestsTotal counts text-generation API requests, labeled by operation and model.
	LLMRequestsTotal *prometheus.CounterVec

	// LLMRequestsFailed counts failed text-generation requests,
	// labeled by operation, model, and error type.
	LLMRequestsFailed *prometheus.CounterVec

	// LLMRequestDuration observes text-generation request duration in seconds.
	LLMRequestDuration *prometheus.HistogramVec

	// NewsletterSends counts newsletter dispatch runs, labeled by result.
	NewsletterSends *prometheus.CounterVec

	// NewsletterEmailsSent counts individual digest emails accepted by the provider.
	NewsletterEmailsSent prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics initialized.
// The namespace is used as a prefix for all metric names.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		// Selections
		SelectionsStarted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "selections_started_total",
			Help:      "Total number of paper selection runs started",
		}, []string{"entry_point"}),
		SelectionsCompleted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "selections_completed_total",
			Help:      "Total number of paper selection runs completed successfully",
		}, []string{"entry_point"}),
		SelectionsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "selections_failed_total",
			Help:      "Total number of paper selection runs that failed",
		}, []string{"entry_point"}),
		PapersSelected: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "papers_selected_total",
			Help:      "Total number of papers persisted by selection runs",
		}),
		SelectionDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "selection_duration_seconds",
			Help:      "Duration of paper selection runs in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		}, []string{"entry_point"}),
		CandidatesPerSearch: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "candidates_per_search",
			Help:      "Number of candidate papers returned per literature search",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100},
		}),

		// Generation
		PostsGenerated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "posts_generated_total",
			Help:      "Total number of blog posts generated",
		}),
		GenerationsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generations_failed_total",
			Help:      "Total number of failed post generations by stage",
		}, []string{"stage"}),
		GenerationDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_duration_seconds",
			Help:      "Duration of per-group post generation in seconds",
			Buckets:   []float64{1, 5, 10, 20, 40, 60, 100},
		}),
		PapersDeduplicated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "papers_deduplicated_total",
			Help:      "Total number of papers skipped because a post already references them",
		}),

		// Publication
		PostsPublished: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "posts_published_total",
			Help:      "Total number of posts published",
		}),
		PostsUnpublished: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "posts_unpublished_total",
			Help:      "Total number of posts reverted to draft",
		}),
		PDFUploads: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pdf_uploads_total",
			Help:      "Total number of PDF attachment operations by result",
		}, []string{"result"}),

		// Literature search
		SearchRequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_requests_total",
			Help:      "Total number of requests to the literature search API",
		}, []string{"endpoint"}),
		SearchRequestsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_requests_failed_total",
			Help:      "Total number of failed literature search requests",
		}, []string{"endpoint", "error_type"}),
		SearchRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_request_duration_seconds",
			Help:      "Duration of literature search requests in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"endpoint"}),
		SearchRateLimited: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_rate_limited_total",
			Help:      "Total number of rate limit responses from the literature search API",
		}),

		// Text generation
		LLMRequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_total",
			Help:      "Total number of text-generation requests by operation",
		}, []string{"operation", "model"}),
		LLMRequestsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_failed_total",
			Help:      "Total number of failed text-generation requests by operation",
		}, []string{"operation", "model", "error_type"}),
		LLMRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_request_duration_seconds",
			Help:      "Duration of text-generation requests in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}, []string{"operation", "model"}),

		// Newsletter
		NewsletterSends: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "newsletter_sends_total",
			Help:      "Total number of newsletter dispatch runs by result",
		}, []string{"result"}),
		NewsletterEmailsSent: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "newsletter_emails_sent_total",
			Help:      "Total number of digest emails accepted by the provider",
		}),
	}
}

// RecordSelectionStarted records that a selection run has started.
func (m *Metrics) RecordSelectionStarted(entryPoint string) {
	m.SelectionsStarted.WithLabelValues(entryPoint).Inc()
}

// RecordSelectionCompleted records a successful selection run.
func (m *Metrics) RecordSelectionCompleted(entryPoint string, papersSelected int, durationSeconds float64) {
	m.SelectionsCompleted.WithLabelValues(entryPoint).Inc()
	m.SelectionDuration.WithLabelValues(entryPoint).Observe(durationSeconds)
	m.PapersSelected.Add(float64(papersSelected))
}

// RecordSelectionFailed records a failed selection run.
func (m *Metrics) RecordSelectionFailed(entryPoint string, durationSeconds float64) {
	m.SelectionsFailed.WithLabelValues(entryPoint).Inc()
	m.SelectionDuration.WithLabelValues(entryPoint).Observe(durationSeconds)
}

// RecordCandidates records the candidate count of one literature search.
func (m *Metrics) RecordCandidates(count int) {
	m.CandidatesPerSearch.Observe(float64(count))
}

// RecordPostGenerated records a generated post.
func (m *Metrics) RecordPostGenerated(durationSeconds float64) {
	m.PostsGenerated.Inc()
	m.GenerationDuration.Observe(durationSeconds)
}

// RecordGenerationFailed records a failed generation attempt.
func (m *Metrics) RecordGenerationFailed(stage string) {
	m.GenerationsFailed.WithLabelValues(stage).Inc()
}

// RecordPapersDeduplicated records papers excluded by the dedup step.
func (m *Metrics) RecordPapersDeduplicated(count int) {
	m.PapersDeduplicated.Add(float64(count))
}

// RecordPostPublished records a draft to published transition.
func (m *Metrics) RecordPostPublished() {
	m.PostsPublished.Inc()
}

// RecordPostUnpublished records a published to draft transition.
func (m *Metrics) RecordPostUnpublished() {
	m.PostsUnpublished.Inc()
}

// RecordPDFUpload records a PDF attachment operation.
func (m *Metrics) RecordPDFUpload(result string) {
	m.PDFUploads.WithLabelValues(result).Inc()
}

// RecordSearchRequest records a request to the literature search API.
func (m *Metrics) RecordSearchRequest(endpoint string, durationSeconds float64) {
	m.SearchRequestsTotal.WithLabelValues(endpoint).Inc()
	m.SearchRequestDuration.WithLabelValues(endpoint).Observe(durationSeconds)
}

// RecordSearchRequestFailed records a failed literature search request.
func (m *Metrics) RecordSearchRequestFailed(endpoint, errorType string) {
	m.SearchRequestsFailed.WithLabelValues(endpoint, errorType).Inc()
}

// RecordSearchRateLimited records a rate limit response from the search API.
func (m *Metrics) RecordSearchRateLimited() {
	m.SearchRateLimited.Inc()
}

// RecordLLMRequest records a text-generation request.
func (m *Metrics) RecordLLMRequest(operation, model string, durationSeconds float64) {
	m.LLMRequestsTotal.WithLabelValues(operation, model).Inc()
	m.LLMRequestDuration.WithLabelValues(operation, model).Observe(durationSeconds)
}

// RecordLLMRequestFailed records a failed text-generation request.
func (m *Metrics) RecordLLMRequestFailed(operation, model, errorType string) {
	m.LLMRequestsFailed.WithLabelValues(operation, model, errorType).Inc()
}

// RecordNewsletterSend records a newsletter dispatch run.
func (m *Metrics) RecordNewsletterSend(result string, emailsSent int) {
	m.NewsletterSends.WithLabelValues(result).Inc()
	m.NewsletterEmailsSent.Add(float64(emailsSent))
}
