package repository

import (
	"context"

	"github.com/sciencesimplified/content-service/internal/domain"
)

// SubscriberRepository manages newsletter subscribers.
type SubscriberRepository interface {
	// Subscribe registers an email address for the digest. Re-subscribing
	// an existing address reactivates it. Returns the stored record.
	Subscribe(ctx context.Context, email string) (*domain.NewsletterSubscriber, error)

	// Unsubscribe deactivates the subscription for the given email.
	// Returns domain.ErrNotFound if the address was never subscribed.
	Unsubscribe(ctx context.Context, email string) error

	// ListActive retrieves every active subscriber ordered by signup time.
	ListActive(ctx context.Context) ([]*domain.NewsletterSubscriber, error)
}
