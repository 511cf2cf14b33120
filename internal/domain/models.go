// Package domain provides domain models and business logic for the content service.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// PaperStatus represents the PDF-attachment lifecycle of a selected paper.
// These values must match the database enum paper_status.
type PaperStatus string

const (
	// PaperStatusPendingPDF means the paper was selected but has no source PDF yet.
	PaperStatusPendingPDF PaperStatus = "pending_pdf"

	// PaperStatusPDFUploaded means an operator attached a source PDF.
	PaperStatusPDFUploaded PaperStatus = "pdf_uploaded"
)

// PostStatus represents the publication state of a blog post.
// These values must match the database enum post_status.
type PostStatus string

const (
	PostStatusDraft     PostStatus = "draft"
	PostStatusPublished PostStatus = "published"
)

// Subject is a topical category used to scope literature search and display
// filtering (e.g. "Genetics"). Immutable once referenced by papers or posts.
type Subject struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Journal biases search queries toward high-impact venues. Interdisciplinary
// journals are implicitly relevant to every subject.
type Journal struct {
	ID                  uuid.UUID `json:"id"`
	Name                string    `json:"name"`
	ImpactFactor        float64   `json:"impact_factor"`
	IsInterdisciplinary bool      `json:"is_interdisciplinary"`
	ISSN                string    `json:"issn,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
}

// SelectedPaper is a candidate research paper chosen by the editorial
// pipeline for a given subject and week.
type SelectedPaper struct {
	ID        uuid.UUID `json:"id"`
	SubjectID uuid.UUID `json:"subject_id"`

	// WeekNumber and Year identify the selection window the paper was
	// chosen for. WeekNumber is month-relative, not ISO-8601.
	WeekNumber int `json:"week_number"`
	Year       int `json:"year"`

	ArticleTitle string `json:"article_title"`
	Authors      string `json:"authors,omitempty"`
	JournalName  string `json:"journal_name,omitempty"`
	Abstract     string `json:"abstract,omitempty"`
	DOI          string `json:"doi,omitempty"`
	PubMedID     string `json:"pubmed_id"`

	// PublicationDate is the paper's own publication date, when known.
	PublicationDate *time.Time `json:"publication_date,omitempty"`

	// SelectionDate records when the pipeline selected the paper. It seeds
	// the publish date of any post generated from this paper.
	SelectionDate time.Time `json:"selection_date"`

	// PDFStoragePath is set while Status is pdf_uploaded, nil otherwise.
	PDFStoragePath *string     `json:"pdf_storage_path,omitempty"`
	Status         PaperStatus `json:"status"`

	QualityScore *float64 `json:"quality_score,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasPDF returns true if a source PDF is attached.
func (p *SelectedPaper) HasPDF() bool {
	return p.Status == PaperStatusPDFUploaded && p.PDFStoragePath != nil
}

// BlogPost is the generated, reader-facing article derived from one or more
// selected papers.
type BlogPost struct {
	ID uuid.UUID `json:"id"`

	// SubjectID is the primary subject, kept for single-subject display.
	// SubjectIDs carries every subject that contributed a paper to the post.
	SubjectID  uuid.UUID   `json:"subject_id"`
	SubjectIDs []uuid.UUID `json:"subject_ids,omitempty"`

	Title    string `json:"title"`
	Subtitle string `json:"subtitle,omitempty"`
	Excerpt  string `json:"excerpt,omitempty"`

	// Content is the generated article body as semantic HTML.
	Content string `json:"content"`

	HeroImageURL *string `json:"hero_image_url,omitempty"`

	// ReadTime is the estimated reading time in minutes.
	ReadTime int `json:"read_time"`

	// PaperIDs is the ordered list of selected papers the post is based on.
	// A paper id appears in at most one post across the whole system.
	PaperIDs []uuid.UUID `json:"paper_ids"`

	Status PostStatus `json:"status"`

	// PublishDate is non-nil while Status is published.
	PublishDate *time.Time `json:"publish_date,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsPublished returns true if the post is visible to readers.
func (p *BlogPost) IsPublished() bool {
	return p.Status == PostStatusPublished
}

// PaperCitation is an ordered link from a blog post to a selected paper it is
// based on. CitationOrder is a dense 1..N sequence per post.
type PaperCitation struct {
	ID              uuid.UUID `json:"id"`
	BlogPostID      uuid.UUID `json:"blog_post_id"`
	SelectedPaperID uuid.UUID `json:"selected_paper_id"`
	CitationOrder   int       `json:"citation_order"`
	CreatedAt       time.Time `json:"created_at"`
}

// NewsletterSubscriber is a recipient of the weekly digest.
type NewsletterSubscriber struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
