package editorial

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/sciencesimplified/content-service/internal/domain"
	"github.com/sciencesimplified/content-service/internal/llm"
	"github.com/sciencesimplified/content-service/internal/observability"
	"github.com/sciencesimplified/content-service/internal/pubmed"
	"github.com/sciencesimplified/content-service/internal/repository"
	"github.com/sciencesimplified/content-service/internal/week"
)

// DefaultBatchWeeks is how many recent weeks a batch run covers.
const DefaultBatchWeeks = 6

// BatchUnitError records one failed subject-week unit of a batch run.
type BatchUnitError struct {
	Subject    string `json:"subject"`
	WeekNumber int    `json:"week_number"`
	Year       int    `json:"year"`
	Error      string `json:"error"`
}

// BatchReport summarizes a batch selection run. Units that already had a
// selection or produced no candidates are counted as skipped.
type BatchReport struct {
	Selected int              `json:"selected"`
	Skipped  int              `json:"skipped"`
	Errors   []BatchUnitError `json:"errors,omitempty"`
}

// BatchSelector walks recent week windows across every subject and selects
// one paper per subject-week. Units are processed sequentially; one failing
// unit never aborts the run.
type BatchSelector struct {
	subjects repository.SubjectRepository
	papers   repository.PaperRepository
	search   LiteratureSearcher
	llm      llm.Client
	logger   zerolog.Logger
	metrics  *observability.Metrics
	weeks    int
	now      func() time.Time
}

// NewBatchSelector creates a BatchSelector covering the given number of
// recent weeks. A non-positive count falls back to DefaultBatchWeeks.
func NewBatchSelector(
	subjects repository.SubjectRepository,
	papers repository.PaperRepository,
	search LiteratureSearcher,
	llmClient llm.Client,
	weeks int,
	logger zerolog.Logger,
	metrics *observability.Metrics,
) *BatchSelector {
	if weeks <= 0 {
		weeks = DefaultBatchWeeks
	}
	return &BatchSelector{
		subjects: subjects,
		papers:   papers,
		search:   search,
		llm:      llmClient,
		logger:   observability.WithComponent(logger, "batch_selector"),
		metrics:  metrics,
		weeks:    weeks,
		now:      time.Now,
	}
}

// Run executes the batch selection across all subjects and week windows.
func (b *BatchSelector) Run(ctx context.Context) (*BatchReport, error) {
	start := b.now()
	if b.metrics != nil {
		b.metrics.RecordSelectionStarted(entryPointBatch)
	}

	subjects, err := b.subjects.ListSubjects(ctx)
	if err != nil {
		if b.metrics != nil {
			b.metrics.RecordSelectionFailed(entryPointBatch, b.now().Sub(start).Seconds())
		}
		return nil, err
	}

	report := &BatchReport{}
	// Windows start one week back: the week in progress has no complete
	// publication record yet.
	for weeksAgo := 1; weeksAgo <= b.weeks; weeksAgo++ {
		window := week.For(b.now(), weeksAgo)
		for _, subject := range subjects {
			if err := ctx.Err(); err != nil {
				return report, err
			}
			b.runUnit(ctx, subject, window, report)
		}
	}

	if b.metrics != nil {
		b.metrics.RecordSelectionCompleted(entryPointBatch, report.Selected, b.now().Sub(start).Seconds())
	}

	b.logger.Info().
		Int("selected", report.Selected).
		Int("skipped", report.Skipped).
		Int("errors", len(report.Errors)).
		Msg("batch selection finished")

	return report, nil
}

// runUnit selects one paper for a single subject-week. Failures are recorded
// on the report instead of propagating.
func (b *BatchSelector) runUnit(ctx context.Context, subject *domain.Subject, window week.Range, report *BatchReport) {
	unitLogger := b.logger.With().
		Str("subject", subject.Name).
		Int("week_number", window.WeekNumber).
		Int("year", window.Year).
		Logger()

	fail := func(err error) {
		unitLogger.Warn().Err(err).Msg("batch unit failed")
		report.Errors = append(report.Errors, BatchUnitError{
			Subject:    subject.Name,
			WeekNumber: window.WeekNumber,
			Year:       window.Year,
			Error:      err.Error(),
		})
	}

	// One selection per subject-week: rerunning the batch never duplicates.
	existing, _, err := b.papers.List(ctx, repository.PaperFilter{
		SubjectID:  &subject.ID,
		WeekNumber: &window.WeekNumber,
		Year:       &window.Year,
		Limit:      1,
	})
	if err != nil {
		fail(err)
		return
	}
	if len(existing) > 0 {
		report.Skipped++
		return
	}

	query := pubmed.BuildTitleAbstractQuery(subject.Name)
	candidates, err := b.search.Search(ctx, query, window.Start, window.End)
	if err != nil {
		fail(err)
		return
	}
	if len(candidates) == 0 {
		report.Skipped++
		return
	}

	result, err := b.llm.Complete(ctx, llm.Request{
		Operation: "batch_select_paper",
		System:    batchSelectionSystem,
		User:      buildBatchSelectionPrompt(subject.Name, candidates),
		Tool:      batchSelectionTool,
	})
	if err != nil {
		fail(err)
		return
	}

	pmid, err := parsePMIDObject(result.Content)
	if err != nil {
		fail(domain.NewSelectionError(subject.Name, err.Error()))
		return
	}

	picked := filterCandidates(candidates, []string{pmid}, 1)
	if len(picked) == 0 {
		fail(domain.NewSelectionError(subject.Name, "returned id matched no candidate"))
		return
	}

	paper := paperFromRecord(picked[0], subject.ID, window.WeekNumber, window.Year, b.now().UTC())
	if err := b.papers.CreateMany(ctx, []*domain.SelectedPaper{paper}); err != nil {
		fail(err)
		return
	}

	report.Selected++
	unitLogger.Info().Str("pmid", paper.PubMedID).Msg("paper selected")
}
