package editorial

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sciencesimplified/content-service/internal/domain"
	"github.com/sciencesimplified/content-service/internal/observability"
	"github.com/sciencesimplified/content-service/internal/repository"
)

// Publisher drives posts through the publication state machine.
type Publisher struct {
	posts   repository.PostRepository
	logger  zerolog.Logger
	metrics *observability.Metrics
	now     func() time.Time
}

// NewPublisher creates a Publisher.
func NewPublisher(posts repository.PostRepository, logger zerolog.Logger, metrics *observability.Metrics) *Publisher {
	return &Publisher{
		posts:   posts,
		logger:  observability.WithComponent(logger, "publisher"),
		metrics: metrics,
		now:     time.Now,
	}
}

// Publish moves a post to published. The publish date is the selection date
// of the post's first citation so articles are dated by when their primary
// paper entered the pipeline, falling back to now when no citation resolves.
// Publishing an already published post refreshes its date and is not an error.
func (p *Publisher) Publish(ctx context.Context, postID uuid.UUID) (*domain.BlogPost, error) {
	publishDate, err := p.publishDate(ctx, postID)
	if err != nil {
		return nil, err
	}

	if err := p.posts.Publish(ctx, postID, publishDate); err != nil {
		return nil, err
	}
	if p.metrics != nil {
		p.metrics.RecordPostPublished()
	}

	p.logger.Info().
		Str("post_id", postID.String()).
		Time("publish_date", publishDate).
		Msg("post published")

	return p.posts.GetByID(ctx, postID)
}

// PublishAll publishes every draft. Failing posts are skipped; the count of
// successfully published posts is returned along with the first error seen.
func (p *Publisher) PublishAll(ctx context.Context) (int, error) {
	drafts, err := p.posts.ListDrafts(ctx)
	if err != nil {
		return 0, err
	}

	published := 0
	var firstErr error
	for _, draft := range drafts {
		if _, err := p.Publish(ctx, draft.ID); err != nil {
			p.logger.Warn().
				Err(err).
				Str("post_id", draft.ID.String()).
				Msg("failed to publish draft")
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		published++
	}

	return published, firstErr
}

// Unpublish reverts a post to draft and clears its publish date.
func (p *Publisher) Unpublish(ctx context.Context, postID uuid.UUID) (*domain.BlogPost, error) {
	if err := p.posts.Unpublish(ctx, postID); err != nil {
		return nil, err
	}
	if p.metrics != nil {
		p.metrics.RecordPostUnpublished()
	}

	p.logger.Info().Str("post_id", postID.String()).Msg("post unpublished")

	return p.posts.GetByID(ctx, postID)
}

func (p *Publisher) publishDate(ctx context.Context, postID uuid.UUID) (time.Time, error) {
	selectionDate, err := p.posts.FirstCitationSelectionDate(ctx, postID)
	if err != nil {
		return time.Time{}, err
	}
	if selectionDate != nil {
		return *selectionDate, nil
	}
	return p.now().UTC(), nil
}
