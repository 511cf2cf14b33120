package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

// Note: prometheus/promauto registers metrics globally, so we need to use
// unique namespaces per test to avoid registration conflicts.

func TestNewMetrics(t *testing.T) {
	// Use unique namespace to avoid conflicts with other tests
	m := NewMetrics("test_content_service_new")

	assert.NotNil(t, m.SelectionsStarted)
	assert.NotNil(t, m.SelectionsCompleted)
	assert.NotNil(t, m.SelectionsFailed)
	assert.NotNil(t, m.PapersSelected)
	assert.NotNil(t, m.SelectionDuration)
	assert.NotNil(t, m.CandidatesPerSearch)
	assert.NotNil(t, m.PostsGenerated)
	assert.NotNil(t, m.GenerationsFailed)
	assert.NotNil(t, m.PapersDeduplicated)
	assert.NotNil(t, m.PostsPublished)
	assert.NotNil(t, m.PostsUnpublished)
	assert.NotNil(t, m.PDFUploads)
	assert.NotNil(t, m.SearchRequestsTotal)
	assert.NotNil(t, m.SearchRequestsFailed)
	assert.NotNil(t, m.LLMRequestsTotal)
	assert.NotNil(t, m.NewsletterSends)
}

func TestRecordSelectionLifecycle(t *testing.T) {
	m := NewMetrics("test_selection_lifecycle")

	m.RecordSelectionStarted("batch")
	assert.Equal(t, float64(1), testutil.ToFloat64(m.SelectionsStarted.WithLabelValues("batch")))

	m.RecordSelectionCompleted("batch", 3, 2.5)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.SelectionsCompleted.WithLabelValues("batch")))
	assert.Equal(t, float64(3), testutil.ToFloat64(m.PapersSelected))

	m.RecordSelectionFailed("manual", 1.0)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.SelectionsFailed.WithLabelValues("manual")))
}

func TestRecordGeneration(t *testing.T) {
	m := NewMetrics("test_generation")

	m.RecordPostGenerated(14.2)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.PostsGenerated))

	m.RecordGenerationFailed("parse")
	assert.Equal(t, float64(1), testutil.ToFloat64(m.GenerationsFailed.WithLabelValues("parse")))

	m.RecordPapersDeduplicated(2)
	assert.Equal(t, float64(2), testutil.ToFloat64(m.PapersDeduplicated))
}

func TestRecordPublication(t *testing.T) {
	m := NewMetrics("test_publication")

	m.RecordPostPublished()
	m.RecordPostPublished()
	m.RecordPostUnpublished()

	assert.Equal(t, float64(2), testutil.ToFloat64(m.PostsPublished))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.PostsUnpublished))

	m.RecordPDFUpload("ok")
	m.RecordPDFUpload("quota_exceeded")
	assert.Equal(t, float64(1), testutil.ToFloat64(m.PDFUploads.WithLabelValues("ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.PDFUploads.WithLabelValues("quota_exceeded")))
}

func TestRecordSearchRequests(t *testing.T) {
	m := NewMetrics("test_search_requests")

	m.RecordSearchRequest("esearch", 0.2)
	m.RecordSearchRequest("efetch", 0.4)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.SearchRequestsTotal.WithLabelValues("esearch")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.SearchRequestsTotal.WithLabelValues("efetch")))

	m.RecordSearchRequestFailed("esearch", "timeout")
	assert.Equal(t, float64(1), testutil.ToFloat64(m.SearchRequestsFailed.WithLabelValues("esearch", "timeout")))

	m.RecordSearchRateLimited()
	assert.Equal(t, float64(1), testutil.ToFloat64(m.SearchRateLimited))
}

func TestRecordLLMRequests(t *testing.T) {
	m := NewMetrics("test_llm_requests")

	m.RecordLLMRequest("generate_post", "gpt-4o-mini", 9.3)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.LLMRequestsTotal.WithLabelValues("generate_post", "gpt-4o-mini")))

	m.RecordLLMRequestFailed("select_papers", "gpt-4o-mini", "status_429")
	assert.Equal(t, float64(1), testutil.ToFloat64(m.LLMRequestsFailed.WithLabelValues("select_papers", "gpt-4o-mini", "status_429")))
}

func TestRecordNewsletterSend(t *testing.T) {
	m := NewMetrics("test_newsletter_send")

	m.RecordNewsletterSend("ok", 120)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.NewsletterSends.WithLabelValues("ok")))
	assert.Equal(t, float64(120), testutil.ToFloat64(m.NewsletterEmailsSent))
}
