package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/sciencesimplified/content-service/internal/domain"
)

// PostRepository manages blog posts, citations and publication state.
type PostRepository interface {
	// Create persists a new post together with its ordered citations.
	// Missing ids and timestamps are filled in. Pass a transaction-backed
	// repository when atomicity across both tables is required.
	Create(ctx context.Context, post *domain.BlogPost, citations []*domain.PaperCitation) error

	// GetByID retrieves a post by its UUID.
	// Returns domain.ErrNotFound if no matching post exists.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.BlogPost, error)

	// Citations retrieves the post's citations ordered by citation order.
	Citations(ctx context.Context, postID uuid.UUID) ([]*domain.PaperCitation, error)

	// List retrieves posts matching the filter criteria, most recently
	// created first. Returns the matching posts and total count.
	List(ctx context.Context, filter PostFilter) ([]*domain.BlogPost, int64, error)

	// UsedPaperIDs returns the union of every post's paper id list.
	// Used by the dedup step to exclude already-covered papers.
	UsedPaperIDs(ctx context.Context) (map[uuid.UUID]struct{}, error)

	// ListDrafts retrieves every post currently in draft status.
	ListDrafts(ctx context.Context) ([]*domain.BlogPost, error)

	// FirstCitationSelectionDate returns the selection date of the post's
	// first-ordered cited paper, or nil when the post has no resolvable
	// citations.
	FirstCitationSelectionDate(ctx context.Context, postID uuid.UUID) (*time.Time, error)

	// Publish sets the post to published with the given publish date.
	// Returns domain.ErrNotFound if the post does not exist.
	Publish(ctx context.Context, id uuid.UUID, publishDate time.Time) error

	// Unpublish reverts the post to draft and clears the publish date.
	// Returns domain.ErrNotFound if the post does not exist.
	Unpublish(ctx context.Context, id uuid.UUID) error

	// Delete removes a post. Citations are removed by the database cascade.
	// Returns domain.ErrNotFound if the post does not exist.
	Delete(ctx context.Context, id uuid.UUID) error

	// DeleteAll removes every post and returns the number of rows deleted.
	DeleteAll(ctx context.Context) (int64, error)
}

// PostFilter specifies criteria for listing blog posts.
type PostFilter struct {
	// Status filters to posts in a specific publication state (optional).
	Status *domain.PostStatus

	// SubjectID filters to posts associated with a subject, matching
	// against the full subject id list (optional).
	SubjectID *uuid.UUID

	// PublishedSince filters to posts published at or after this time (optional).
	PublishedSince *time.Time

	// Limit specifies maximum number of results (default: 100, max: 1000).
	Limit int

	// Offset specifies the starting position for pagination.
	Offset int
}

// Validate checks if the filter has valid values and sets defaults.
func (f *PostFilter) Validate() error {
	applyPaginationDefaults(&f.Limit, &f.Offset)
	return nil
}
