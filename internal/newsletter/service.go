package newsletter

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sciencesimplified/content-service/internal/domain"
	"github.com/sciencesimplified/content-service/internal/observability"
	"github.com/sciencesimplified/content-service/internal/repository"
)

// Dispatch defaults.
const (
	// DefaultBatchSize is how many recipients one provider call covers.
	DefaultBatchSize = 50

	// DefaultWindow is the publish window a digest covers when no explicit
	// posts are given.
	DefaultWindow = 7 * 24 * time.Hour
)

// DigestOptions controls one digest dispatch.
type DigestOptions struct {
	// PostIDs selects the digest's posts explicitly. When empty, every post
	// published in the last week is included.
	PostIDs []uuid.UUID

	// TestAddress, when set, sends the digest to that single address instead
	// of the subscriber list.
	TestAddress string
}

// DigestReport summarizes one dispatch run.
type DigestReport struct {
	Posts      int `json:"posts"`
	Recipients int `json:"recipients"`
	Batches    int `json:"batches"`
}

// Service assembles digests and dispatches them in recipient batches.
type Service struct {
	posts       repository.PostRepository
	subscribers repository.SubscriberRepository
	sender      EmailSender
	batchSize   int
	logger      zerolog.Logger
	metrics     *observability.Metrics
	now         func() time.Time
}

// NewService creates a newsletter service.
func NewService(
	posts repository.PostRepository,
	subscribers repository.SubscriberRepository,
	sender EmailSender,
	batchSize int,
	logger zerolog.Logger,
	metrics *observability.Metrics,
) *Service {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Service{
		posts:       posts,
		subscribers: subscribers,
		sender:      sender,
		batchSize:   batchSize,
		logger:      observability.WithComponent(logger, "newsletter"),
		metrics:     metrics,
		now:         time.Now,
	}
}

// SendDigest renders the digest and sends it to every recipient in batches.
// A batch failure aborts the run; already-sent batches are not retracted.
func (s *Service) SendDigest(ctx context.Context, opts DigestOptions) (*DigestReport, error) {
	posts, err := s.resolvePosts(ctx, opts.PostIDs)
	if err != nil {
		return nil, err
	}
	if len(posts) == 0 {
		return nil, domain.NewValidationError("posts", "no published posts to send")
	}

	recipients, err := s.resolveRecipients(ctx, opts.TestAddress)
	if err != nil {
		return nil, err
	}
	if len(recipients) == 0 {
		return &DigestReport{Posts: len(posts)}, nil
	}

	subject, html, err := RenderDigest(posts, s.now())
	if err != nil {
		return nil, err
	}

	report := &DigestReport{Posts: len(posts)}
	for start := 0; start < len(recipients); start += s.batchSize {
		end := start + s.batchSize
		if end > len(recipients) {
			end = len(recipients)
		}
		batch := recipients[start:end]

		if err := s.sender.Send(ctx, batch, subject, html); err != nil {
			if s.metrics != nil {
				s.metrics.RecordNewsletterSend("failed", report.Recipients)
			}
			return report, err
		}
		report.Recipients += len(batch)
		report.Batches++
	}

	if s.metrics != nil {
		s.metrics.RecordNewsletterSend("success", report.Recipients)
	}

	s.logger.Info().
		Int("posts", report.Posts).
		Int("recipients", report.Recipients).
		Int("batches", report.Batches).
		Msg("digest sent")

	return report, nil
}

// resolvePosts returns the explicit posts, or the last week's published
// posts when no ids are given. Explicit drafts are rejected.
func (s *Service) resolvePosts(ctx context.Context, ids []uuid.UUID) ([]*domain.BlogPost, error) {
	if len(ids) > 0 {
		posts := make([]*domain.BlogPost, 0, len(ids))
		for _, id := range ids {
			post, err := s.posts.GetByID(ctx, id)
			if err != nil {
				return nil, err
			}
			if !post.IsPublished() {
				return nil, domain.NewValidationError("post_ids",
					"post "+id.String()+" is not published")
			}
			posts = append(posts, post)
		}
		return posts, nil
	}

	status := domain.PostStatusPublished
	since := s.now().UTC().Add(-DefaultWindow)
	posts, _, err := s.posts.List(ctx, repository.PostFilter{
		Status:         &status,
		PublishedSince: &since,
	})
	return posts, err
}

func (s *Service) resolveRecipients(ctx context.Context, testAddress string) ([]string, error) {
	if testAddress != "" {
		return []string{testAddress}, nil
	}

	subs, err := s.subscribers.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	emails := make([]string, 0, len(subs))
	for _, sub := range subs {
		emails = append(emails, sub.Email)
	}
	return emails, nil
}
