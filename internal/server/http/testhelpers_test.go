package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/sciencesimplified/content-service/internal/blob"
	"github.com/sciencesimplified/content-service/internal/domain"
	"github.com/sciencesimplified/content-service/internal/editorial"
	"github.com/sciencesimplified/content-service/internal/llm"
	"github.com/sciencesimplified/content-service/internal/newsletter"
	"github.com/sciencesimplified/content-service/internal/pubmed"
	"github.com/sciencesimplified/content-service/internal/repository"
)

// testMaxUploadBytes keeps upload fixtures small.
const testMaxUploadBytes = 64 * 1024

type fakeSubjectRepo struct {
	repository.SubjectRepository
	subjects []*domain.Subject
	journals []*domain.Journal
	listErr  error

	associations map[uuid.UUID][]uuid.UUID
}

func (f *fakeSubjectRepo) CreateSubject(_ context.Context, subject *domain.Subject) error {
	for _, s := range f.subjects {
		if s.Name == subject.Name {
			return domain.NewAlreadyExistsError("subject", subject.Name)
		}
	}
	subject.ID = uuid.New()
	subject.CreatedAt = time.Now().UTC()
	f.subjects = append(f.subjects, subject)
	return nil
}

func (f *fakeSubjectRepo) GetSubject(_ context.Context, id uuid.UUID) (*domain.Subject, error) {
	for _, s := range f.subjects {
		if s.ID == id {
			return s, nil
		}
	}
	return nil, domain.NewNotFoundError("subject", id.String())
}

func (f *fakeSubjectRepo) ListSubjects(context.Context) ([]*domain.Subject, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.subjects, nil
}

func (f *fakeSubjectRepo) CreateJournal(_ context.Context, journal *domain.Journal) error {
	journal.ID = uuid.New()
	journal.CreatedAt = time.Now().UTC()
	f.journals = append(f.journals, journal)
	return nil
}

func (f *fakeSubjectRepo) ListJournals(context.Context) ([]*domain.Journal, error) {
	return f.journals, nil
}

func (f *fakeSubjectRepo) AssociateJournal(_ context.Context, journalID, subjectID uuid.UUID) error {
	var journal *domain.Journal
	for _, j := range f.journals {
		if j.ID == journalID {
			journal = j
		}
	}
	if journal == nil {
		return domain.NewNotFoundError("journal", journalID.String())
	}
	if _, err := f.GetSubject(context.Background(), subjectID); err != nil {
		return err
	}
	if f.associations == nil {
		f.associations = make(map[uuid.UUID][]uuid.UUID)
	}
	f.associations[subjectID] = append(f.associations[subjectID], journalID)
	return nil
}

func (f *fakeSubjectRepo) JournalsForSubject(context.Context, uuid.UUID) ([]*domain.Journal, error) {
	return f.journals, nil
}

type fakePaperRepo struct {
	repository.PaperRepository
	papers []*domain.SelectedPaper
}

func (f *fakePaperRepo) CreateMany(_ context.Context, papers []*domain.SelectedPaper) error {
	now := time.Now().UTC()
	for _, p := range papers {
		if p.ID == uuid.Nil {
			p.ID = uuid.New()
		}
		p.CreatedAt = now
		p.UpdatedAt = now
	}
	f.papers = append(f.papers, papers...)
	return nil
}

func (f *fakePaperRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.SelectedPaper, error) {
	for _, p := range f.papers {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, domain.NewNotFoundError("paper", id.String())
}

func (f *fakePaperRepo) GetByIDs(_ context.Context, ids []uuid.UUID) ([]*domain.SelectedPaper, error) {
	var found []*domain.SelectedPaper
	for _, id := range ids {
		for _, p := range f.papers {
			if p.ID == id {
				found = append(found, p)
			}
		}
	}
	return found, nil
}

func (f *fakePaperRepo) List(_ context.Context, filter repository.PaperFilter) ([]*domain.SelectedPaper, int64, error) {
	if err := filter.Validate(); err != nil {
		return nil, 0, err
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
		if filter.Status != nil && p.Status != *filter.Status {
			continue
		}
		matched = append(matched, p)
	}
	return matched, int64(len(matched)), nil
}

func (f *fakePaperRepo) AttachPDF(ctx context.Context, id uuid.UUID, storagePath string) error {
	p, err := f.GetByID(ctx, id)
	if err != nil {
		return err
	}
	p.PDFStoragePath = &storagePath
	p.Status = domain.PaperStatusPDFUploaded
	return nil
}

func (f *fakePaperRepo) Delete(_ context.Context, id uuid.UUID) error {
	for i, p := range f.papers {
		if p.ID == id {
			f.papers = append(f.papers[:i], f.papers[i+1:]...)
			return nil
		}
	}
	return domain.NewNotFoundError("paper", id.String())
}

func (f *fakePaperRepo) DeleteAllPending(context.Context) (int64, error) {
	var kept []*domain.SelectedPaper
	var deleted int64
	for _, p := range f.papers {
		if p.Status == domain.PaperStatusPendingPDF {
			deleted++
			continue
		}
		kept = append(kept, p)
	}
	f.papers = kept
	return deleted, nil
}

type fakePostRepo struct {
	repository.PostRepository
	posts     []*domain.BlogPost
	citations map[uuid.UUID][]*domain.PaperCitation
	listErr   error

	firstSelectionDate *time.Time
}

func newFakePostRepo() *fakePostRepo {
	return &fakePostRepo{citations: make(map[uuid.UUID][]*domain.PaperCitation)}
}

func (f *fakePostRepo) Create(_ context.Context, post *domain.BlogPost, citations []*domain.PaperCitation) error {
	post.ID = uuid.New()
	post.CreatedAt = time.Now().UTC()
	post.UpdatedAt = post.CreatedAt
	f.posts = append(f.posts, post)
	for _, c := range citations {
		c.ID = uuid.New()
		c.BlogPostID = post.ID
		f.citations[post.ID] = append(f.citations[post.ID], c)
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

func (f *fakePostRepo) Citations(_ context.Context, postID uuid.UUID) ([]*domain.PaperCitation, error) {
	return f.citations[postID], nil
}

func (f *fakePostRepo) List(_ context.Context, filter repository.PostFilter) ([]*domain.BlogPost, int64, error) {
	if err := filter.Validate(); err != nil {
		return nil, 0, err
	}
	if f.listErr != nil {
		return nil, 0, f.listErr
	}
	var matched []*domain.BlogPost
	for _, p := range f.posts {
		if filter.Status != nil && p.Status != *filter.Status {
			continue
		}
		matched = append(matched, p)
	}
	return matched, int64(len(matched)), nil
}

func (f *fakePostRepo) UsedPaperIDs(context.Context) (map[uuid.UUID]struct{}, error) {
	used := make(map[uuid.UUID]struct{})
	for _, p := range f.posts {
		for _, id := range p.PaperIDs {
			used[id] = struct{}{}
		}
	}
	return used, nil
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

func (f *fakePostRepo) Publish(ctx context.Context, id uuid.UUID, publishDate time.Time) error {
	p, err := f.GetByID(ctx, id)
	if err != nil {
		return err
	}
	p.Status = domain.PostStatusPublished
	p.PublishDate = &publishDate
	return nil
}

func (f *fakePostRepo) Unpublish(ctx context.Context, id uuid.UUID) error {
	p, err := f.GetByID(ctx, id)
	if err != nil {
		return err
	}
	p.Status = domain.PostStatusDraft
	p.PublishDate = nil
	return nil
}

func (f *fakePostRepo) Delete(_ context.Context, id uuid.UUID) error {
	for i, p := range f.posts {
		if p.ID == id {
			f.posts = append(f.posts[:i], f.posts[i+1:]...)
			return nil
		}
	}
	return domain.NewNotFoundError("post", id.String())
}

func (f *fakePostRepo) DeleteAll(context.Context) (int64, error) {
	deleted := int64(len(f.posts))
	f.posts = nil
	return deleted, nil
}

type fakeSubscriberRepo struct {
	repository.SubscriberRepository
	subscribers []*domain.NewsletterSubscriber
}

func (f *fakeSubscriberRepo) Subscribe(_ context.Context, email string) (*domain.NewsletterSubscriber, error) {
	sub := &domain.NewsletterSubscriber{
		ID:       uuid.New(),
		Email:    email,
		IsActive: true,
	}
	f.subscribers = append(f.subscribers, sub)
	return sub, nil
}

func (f *fakeSubscriberRepo) Unsubscribe(_ context.Context, email string) error {
	for _, sub := range f.subscribers {
		if sub.Email == email {
			sub.IsActive = false
			return nil
		}
	}
	return domain.NewNotFoundError("subscriber", email)
}

func (f *fakeSubscriberRepo) ListActive(context.Context) ([]*domain.NewsletterSubscriber, error) {
	var active []*domain.NewsletterSubscriber
	for _, sub := range f.subscribers {
		if sub.IsActive {
			active = append(active, sub)
		}
	}
	return active, nil
}

type fakeSearcher struct {
	records []pubmed.PaperRecord
	err     error
}

func (f *fakeSearcher) Search(context.Context, string, time.Time, time.Time) ([]pubmed.PaperRecord, error) {
	return f.records, f.err
}

type fakeLLM struct {
	responses []string
	err       error
	calls     int
}

func (f *fakeLLM) Complete(context.Context, llm.Request) (*llm.Result, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	content := f.responses[0]
	if len(f.responses) > 1 {
		f.responses = f.responses[1:]
	}
	return &llm.Result{Content: content, Model: "fake"}, nil
}

func (f *fakeLLM) Provider() string { return "fake" }
func (f *fakeLLM) Model() string    { return "fake" }

type fakeSender struct {
	batches [][]string
}

func (f *fakeSender) Send(_ context.Context, to []string, _, _ string) error {
	f.batches = append(f.batches, to)
	return nil
}

type fakeHealth struct {
	err error
}

func (f *fakeHealth) Ping(context.Context) error { return f.err }

// fixture wires a Server around in-memory fakes.
type fixture struct {
	server *Server

	subjects    *fakeSubjectRepo
	papers      *fakePaperRepo
	posts       *fakePostRepo
	subscribers *fakeSubscriberRepo
	search      *fakeSearcher
	llm         *fakeLLM
	sender      *fakeSender
	health      *fakeHealth
	blobFS      afero.Fs
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		subjects:    &fakeSubjectRepo{},
		papers:      &fakePaperRepo{},
		posts:       newFakePostRepo(),
		subscribers: &fakeSubscriberRepo{},
		search:      &fakeSearcher{},
		llm:         &fakeLLM{},
		sender:      &fakeSender{},
		health:      &fakeHealth{},
		blobFS:      afero.NewMemMapFs(),
	}

	logger := zerolog.Nop()

	blobs, err := blob.NewStore(f.blobFS, blob.Config{Root: "/pdfs", MaxBytes: testMaxUploadBytes}, logger)
	require.NoError(t, err)

	f.server = NewServer(Config{Address: ":0"}, Deps{
		SubjectRepo:    f.subjects,
		PaperRepo:      f.papers,
		PostRepo:       f.posts,
		SubscriberRepo: f.subscribers,
		Selector:       editorial.NewSelector(f.subjects, f.papers, f.search, f.llm, logger, nil),
		Batch:          editorial.NewBatchSelector(f.subjects, f.papers, f.search, f.llm, 1, logger, nil),
		Generator:      editorial.NewGenerator(f.papers, f.posts, f.llm, editorial.GeneratorConfig{}, logger, nil),
		Publisher:      editorial.NewPublisher(f.posts, logger, nil),
		Digest:         newsletter.NewService(f.posts, f.subscribers, f.sender, 50, logger, nil),
		Blobs:          blobs,
		Health:         f.health,
	}, logger)

	return f
}

// do executes a request against the router and returns the recorder.
func (f *fixture) do(method, target string, body any) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	rec := httptest.NewRecorder()
	f.server.Router().ServeHTTP(rec, req)
	return rec
}

// doUpload executes a multipart PDF upload request.
func (f *fixture) doUpload(t *testing.T, target string, content []byte) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "paper.pdf")
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, target, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	rec := httptest.NewRecorder()
	f.server.Router().ServeHTTP(rec, req)
	return rec
}

func newRequest(t *testing.T, method, target string) *http.Request {
	t.Helper()
	return httptest.NewRequest(method, target, nil)
}

func execute(f *fixture, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.server.Router().ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func searchRecords(pmids ...string) []pubmed.PaperRecord {
	records := make([]pubmed.PaperRecord, len(pmids))
	for i, pmid := range pmids {
		records[i] = pubmed.PaperRecord{
			PMID:     pmid,
			Title:    "Paper " + pmid,
			Abstract: "Abstract for " + pmid,
			Journal:  "Nature",
			PubYear:  2024,
		}
	}
	return records
}

func seedSubject(f *fixture, name string) *domain.Subject {
	subject := &domain.Subject{Name: name}
	_ = f.subjects.CreateSubject(context.Background(), subject)
	return subject
}

func seedPaper(f *fixture, subjectID uuid.UUID, title string) *domain.SelectedPaper {
	paper := &domain.SelectedPaper{
		SubjectID:     subjectID,
		WeekNumber:    2,
		Year:          2024,
		ArticleTitle:  title,
		PubMedID:      uuid.NewString(),
		SelectionDate: time.Now().UTC(),
		Status:        domain.PaperStatusPendingPDF,
	}
	_ = f.papers.CreateMany(context.Background(), []*domain.SelectedPaper{paper})
	return paper
}

func seedPost(f *fixture, status domain.PostStatus) *domain.BlogPost {
	post := &domain.BlogPost{
		SubjectID: uuid.New(),
		Title:     "Seeded Post",
		Content:   "<p>Body</p>",
		ReadTime:  3,
		PaperIDs:  []uuid.UUID{uuid.New()},
		Status:    domain.PostStatusDraft,
	}
	_ = f.posts.Create(context.Background(), post, nil)
	if status == domain.PostStatusPublished {
		now := time.Now().UTC()
		_ = f.posts.Publish(context.Background(), post.ID, now)
	}
	return post
}
