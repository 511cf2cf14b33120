// Package editorial implements the selection and generation pipeline that
// turns literature search results into reader-facing blog posts.
package editorial

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sciencesimplified/content-service/internal/domain"
	"github.com/sciencesimplified/content-service/internal/llm"
	"github.com/sciencesimplified/content-service/internal/observability"
	"github.com/sciencesimplified/content-service/internal/pubmed"
	"github.com/sciencesimplified/content-service/internal/repository"
	"github.com/sciencesimplified/content-service/internal/week"
)

// Selection limits.
const (
	// MaxPicksPerSelection caps how many papers one manual selection run keeps.
	MaxPicksPerSelection = 5

	entryPointManual = "manual"
	entryPointBatch  = "batch"
)

// LiteratureSearcher is the slice of the search client the pipeline needs.
type LiteratureSearcher interface {
	Search(ctx context.Context, query string, startDate, endDate time.Time) ([]pubmed.PaperRecord, error)
}

// Selector runs manual single-subject paper selection.
type Selector struct {
	subjects repository.SubjectRepository
	papers   repository.PaperRepository
	search   LiteratureSearcher
	llm      llm.Client
	logger   zerolog.Logger
	metrics  *observability.Metrics
	now      func() time.Time
}

// NewSelector creates a Selector.
func NewSelector(
	subjects repository.SubjectRepository,
	papers repository.PaperRepository,
	search LiteratureSearcher,
	llmClient llm.Client,
	logger zerolog.Logger,
	metrics *observability.Metrics,
) *Selector {
	return &Selector{
		subjects: subjects,
		papers:   papers,
		search:   search,
		llm:      llmClient,
		logger:   observability.WithComponent(logger, "selector"),
		metrics:  metrics,
		now:      time.Now,
	}
}

// SelectPapers searches the subject's week window, has the model pick one to
// five candidates, and persists the picks as pending_pdf papers.
//
// A week window with no candidates is an empty success, not an error. A model
// answer that survives validation with zero papers is a selection failure.
// When weekNumber or year is zero the current week of month and year are used.
func (s *Selector) SelectPapers(ctx context.Context, subjectID uuid.UUID, weekNumber, year int) ([]*domain.SelectedPaper, error) {
	start := s.now()
	if s.metrics != nil {
		s.metrics.RecordSelectionStarted(entryPointManual)
	}

	papers, err := s.selectPapers(ctx, subjectID, weekNumber, year)
	if s.metrics != nil {
		elapsed := s.now().Sub(start).Seconds()
		if err != nil {
			s.metrics.RecordSelectionFailed(entryPointManual, elapsed)
		} else {
			s.metrics.RecordSelectionCompleted(entryPointManual, len(papers), elapsed)
		}
	}

	return papers, err
}

func (s *Selector) selectPapers(ctx context.Context, subjectID uuid.UUID, weekNumber, year int) ([]*domain.SelectedPaper, error) {
	subject, err := s.subjects.GetSubject(ctx, subjectID)
	if err != nil {
		return nil, err
	}

	if weekNumber == 0 {
		weekNumber = week.CurrentWeekOfMonth(s.now())
	}
	if year == 0 {
		year = s.now().UTC().Year()
	}
	window := week.ForYearWeek(year, weekNumber)

	journals, err := s.subjects.JournalsForSubject(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	journalNames := make([]string, 0, len(journals))
	for _, j := range journals {
		journalNames = append(journalNames, j.Name)
	}

	query := pubmed.BuildJournalQuery(subject.Name, journalNames)
	candidates, err := s.search.Search(ctx, query, window.Start, window.End)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		s.logger.Info().
			Str("subject", subject.Name).
			Int("week_number", weekNumber).
			Int("year", year).
			Msg("no candidates in window")
		return []*domain.SelectedPaper{}, nil
	}

	result, err := s.llm.Complete(ctx, llm.Request{
		Operation: "select_papers",
		System:    selectionSystem,
		User:      buildSelectionPrompt(subject.Name, candidates),
		Tool:      selectionTool,
	})
	if err != nil {
		return nil, err
	}

	pmids, err := parsePMIDList(result.Content)
	if err != nil {
		return nil, domain.NewSelectionError(subject.Name, err.Error())
	}

	picked := filterCandidates(candidates, pmids, MaxPicksPerSelection)
	if len(picked) == 0 {
		return nil, domain.NewSelectionError(subject.Name,
			fmt.Sprintf("none of the returned ids matched the %d candidates", len(candidates)))
	}

	papers := make([]*domain.SelectedPaper, 0, len(picked))
	for _, c := range picked {
		papers = append(papers, paperFromRecord(c, subjectID, weekNumber, year, s.now().UTC()))
	}

	if err := s.papers.CreateMany(ctx, papers); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("subject", subject.Name).
		Int("week_number", weekNumber).
		Int("year", year).
		Int("candidates", len(candidates)).
		Int("selected", len(papers)).
		Msg("papers selected")

	return papers, nil
}

// filterCandidates keeps the candidates whose PMIDs the model returned,
// preserving the model's order, dropping unknown and duplicate ids, and
// capping the result at max picks.
func filterCandidates(candidates []pubmed.PaperRecord, pmids []string, max int) []pubmed.PaperRecord {
	byPMID := make(map[string]pubmed.PaperRecord, len(candidates))
	for _, c := range candidates {
		byPMID[c.PMID] = c
	}

	seen := make(map[string]struct{}, len(pmids))
	var picked []pubmed.PaperRecord
	for _, pmid := range pmids {
		pmid = strings.TrimSpace(pmid)
		if _, dup := seen[pmid]; dup {
			continue
		}
		seen[pmid] = struct{}{}
		if c, ok := byPMID[pmid]; ok {
			picked = append(picked, c)
			if len(picked) == max {
				break
			}
		}
	}

	return picked
}

// paperFromRecord converts a search record into a pending_pdf selection row.
func paperFromRecord(c pubmed.PaperRecord, subjectID uuid.UUID, weekNumber, year int, selectedAt time.Time) *domain.SelectedPaper {
	paper := &domain.SelectedPaper{
		SubjectID:     subjectID,
		WeekNumber:    weekNumber,
		Year:          year,
		ArticleTitle:  c.Title,
		Authors:       c.Authors,
		JournalName:   c.Journal,
		Abstract:      c.Abstract,
		DOI:           c.DOI,
		PubMedID:      c.PMID,
		SelectionDate: selectedAt,
		Status:        domain.PaperStatusPendingPDF,
	}

	if c.PubYear > 0 {
		pubDate := time.Date(c.PubYear, time.January, 1, 0, 0, 0, 0, time.UTC)
		paper.PublicationDate = &pubDate
	}

	return paper
}
