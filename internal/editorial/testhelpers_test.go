package editorial

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/sciencesimplified/content-service/internal/domain"
	"github.com/sciencesimplified/content-service/internal/llm"
	"github.com/sciencesimplified/content-service/internal/pubmed"
	"github.com/sciencesimplified/content-service/internal/repository"
)

// The fakes embed the repository interfaces so only the methods a test
// exercises need an implementation; calling anything else panics.

type fakeSubjectRepo struct {
	repository.SubjectRepository
	subjects []*domain.Subject
	journals []*domain.Journal
	err      error
}

func (f *fakeSubjectRepo) GetSubject(_ context.Context, id uuid.UUID) (*domain.Subject, error) {
	if f.err != nil {
		return nil, f.err
	}
	for _, s := range f.subjects {
		if s.ID == id {
			return s, nil
		}
	}
	return nil, domain.NewNotFoundError("subject", id.String())
}

func (f *fakeSubjectRepo) ListSubjects(context.Context) ([]*domain.Subject, error) {
	return f.subjects, f.err
}

func (f *fakeSubjectRepo) JournalsForSubject(context.Context, uuid.UUID) ([]*domain.Journal, error) {
	return f.journals, f.err
}

type fakePaperRepo struct {
	repository.PaperRepository
	papers    []*domain.SelectedPaper
	created   []*domain.SelectedPaper
	createErr error
	listErr   error
}

func (f *fakePaperRepo) CreateMany(_ context.Context, papers []*domain.SelectedPaper) error {
	if f.createErr != nil {
		return f.createErr
	}
	now := time.Now().UTC()
	for _, p := range papers {
		if p.ID == uuid.Nil {
			p.ID = uuid.New()
		}
		if p.SelectionDate.IsZero() {
			p.SelectionDate = now
		}
		if p.Status == "" {
			p.Status = domain.PaperStatusPendingPDF
		}
	}
	f.created = append(f.created, papers...)
	f.papers = append(f.papers, papers...)
	return nil
}

func (f *fakePaperRepo) List(_ context.Context, filter repository.PaperFilter) ([]*domain.SelectedPaper, int64, error) {
	if f.listErr != nil {
		return nil, 0, f.listErr
	}
	var matched []*domain.SelectedPaper
	for _, p := range f.papers {
		if filter.SubjectID != nil && p.SubjectID != *filter.SubjectID {
			continue
		}
		if filter.WeekNumber != nil && p.WeekNumber != *filter.WeekNumber {
			continue
		}
		if filter.Year != nil && p.Year != *filter.Year {
			continue
		}
		matched = append(matched, p)
	}
	return matched, int64(len(matched)), nil
}

func (f *fakePaperRepo) GetByIDs(_ context.Context, ids []uuid.UUID) ([]*domain.SelectedPaper, error) {
	var matched []*domain.SelectedPaper
	for _, id := range ids {
		for _, p := range f.papers {
			if p.ID == id {
				matched = append(matched, p)
			}
		}
	}
	return matched, nil
}

type fakePostRepo struct {
	repository.PostRepository
	posts     []*domain.BlogPost
	citations map[uuid.UUID][]*domain.PaperCitation
	used      map[uuid.UUID]struct{}

	firstSelectionDate *time.Time

	createErr  error
	publishErr error

	publishedIDs   []uuid.UUID
	unpublishedIDs []uuid.UUID
	publishDates   []time.Time
}

func newFakePostRepo() *fakePostRepo {
	return &fakePostRepo{
		citations: make(map[uuid.UUID][]*domain.PaperCitation),
		used:      make(map[uuid.UUID]struct{}),
	}
}

func (f *fakePostRepo) Create(_ context.Context, post *domain.BlogPost, citations []*domain.PaperCitation) error {
	if f.createErr != nil {
		return f.createErr
	}
	if post.ID == uuid.Nil {
		post.ID = uuid.New()
	}
	if post.Status == "" {
		post.Status = domain.PostStatusDraft
	}
	for _, c := range citations {
		c.BlogPostID = post.ID
	}
	f.posts = append(f.posts, post)
	f.citations[post.ID] = citations
	for _, id := range post.PaperIDs {
		f.used[id] = struct{}{}
	}
	return nil
}

func (f *fakePostRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.BlogPost, error) {
	for _, p := range f.posts {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, domain.NewNotFoundError("post", id.String())
}

func (f *fakePostRepo) UsedPaperIDs(context.Context) (map[uuid.UUID]struct{}, error) {
	return f.used, nil
}

func (f *fakePostRepo) ListDrafts(context.Context) ([]*domain.BlogPost, error) {
	var drafts []*domain.BlogPost
	for _, p := range f.posts {
		if p.Status == domain.PostStatusDraft {
			drafts = append(drafts, p)
		}
	}
	return drafts, nil
}

func (f *fakePostRepo) FirstCitationSelectionDate(context.Context, uuid.UUID) (*time.Time, error) {
	return f.firstSelectionDate, nil
}

func (f *fakePostRepo) Publish(_ context.Context, id uuid.UUID, publishDate time.Time) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	for _, p := range f.posts {
		if p.ID == id {
			p.Status = domain.PostStatusPublished
			p.PublishDate = &publishDate
			f.publishedIDs = append(f.publishedIDs, id)
			f.publishDates = append(f.publishDates, publishDate)
			return nil
		}
	}
	return domain.NewNotFoundError("post", id.String())
}

func (f *fakePostRepo) Unpublish(_ context.Context, id uuid.UUID) error {
	for _, p := range f.posts {
		if p.ID == id {
			p.Status = domain.PostStatusDraft
			p.PublishDate = nil
			f.unpublishedIDs = append(f.unpublishedIDs, id)
			return nil
		}
	}
	return domain.NewNotFoundError("post", id.String())
}

type fakeSearcher struct {
	records []pubmed.PaperRecord
	err     error

	queries []string
	starts  []time.Time
	ends    []time.Time
}

func (f *fakeSearcher) Search(_ context.Context, query string, startDate, endDate time.Time) ([]pubmed.PaperRecord, error) {
	f.queries = append(f.queries, query)
	f.starts = append(f.starts, startDate)
	f.ends = append(f.ends, endDate)
	if f.err != nil {
		return nil, f.err
	}
	return f.records, nil
}

// fakeLLM replays canned responses in order, or a per-call function when set.
type fakeLLM struct {
	responses []string
	respondFn func(req llm.Request) (string, error)
	err       error

	requests []llm.Request
}

func (f *fakeLLM) Complete(_ context.Context, req llm.Request) (*llm.Result, error) {
	f.requests = append(f.requests, req)
	if f.respondFn != nil {
		content, err := f.respondFn(req)
		if err != nil {
			return nil, err
		}
		return &llm.Result{Content: content, Model: "fake"}, nil
	}
	if f.err != nil {
		return nil, f.err
	}
	idx := len(f.requests) - 1
	if idx >= len(f.responses) {
		idx = len(f.responses) - 1
	}
	return &llm.Result{Content: f.responses[idx], Model: "fake"}, nil
}

func (f *fakeLLM) Provider() string { return "fake" }
func (f *fakeLLM) Model() string    { return "fake" }

func candidateRecord(pmid, title string) pubmed.PaperRecord {
	return pubmed.PaperRecord{
		PMID:     pmid,
		Title:    title,
		Abstract: "An abstract about " + title + ".",
		Authors:  "Jane Smith, Wei Chen",
		Journal:  "Nature",
		PubYear:  2024,
	}
}
