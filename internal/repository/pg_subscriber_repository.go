package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sciencesimplified/content-service/internal/domain"
)

// Compile-time interface verification.
var _ SubscriberRepository = (*PgSubscriberRepository)(nil)

// PgSubscriberRepository is a PostgreSQL implementation of SubscriberRepository.
type PgSubscriberRepository struct {
	db DBTX
}

// NewPgSubscriberRepository creates a new PostgreSQL subscriber repository.
func NewPgSubscriberRepository(db DBTX) *PgSubscriberRepository {
	return &PgSubscriberRepository{db: db}
}

// Subscribe registers an email address. Addresses are stored lowercased so
// resubscription with different casing reactivates the same row.
func (r *PgSubscriberRepository) Subscribe(ctx context.Context, email string) (*domain.NewsletterSubscriber, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, domain.NewValidationError("email", "email is required")
	}

	now := time.Now().UTC()
	query := `
		INSERT INTO newsletter_subscribers (id, email, is_active, created_at, updated_at)
		VALUES ($1, $2, TRUE, $3, $3)
		ON CONFLICT (email) DO UPDATE SET is_active = TRUE, updated_at = $3
		RETURNING id, email, is_active, created_at, updated_at`

	var sub domain.NewsletterSubscriber
	err := r.db.QueryRow(ctx, query, uuid.New(), email, now).
		Scan(&sub.ID, &sub.Email, &sub.IsActive, &sub.CreatedAt, &sub.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe %s: %w", email, err)
	}

	return &sub, nil
}

// Unsubscribe deactivates the subscription for the given email.
func (r *PgSubscriberRepository) Unsubscribe(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return domain.NewValidationError("email", "email is required")
	}

	query := `
		UPDATE newsletter_subscribers
		SET is_active = FALSE, updated_at = $2
		WHERE email = $1`

	result, err := r.db.Exec(ctx, query, email, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to unsubscribe %s: %w", email, err)
	}

	if result.RowsAffected() == 0 {
		return domain.NewNotFoundError("subscriber", email)
	}

	return nil
}

// ListActive retrieves every active subscriber ordered by signup time.
func (r *PgSubscriberRepository) ListActive(ctx context.Context) ([]*domain.NewsletterSubscriber, error) {
	query := `
		SELECT id, email, is_active, created_at, updated_at
		FROM newsletter_subscribers
		WHERE is_active
		ORDER BY created_at`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list active subscribers: %w", err)
	}
	defer rows.Close()

	var subs []*domain.NewsletterSubscriber
	for rows.Next() {
		var sub domain.NewsletterSubscriber
		if err := rows.Scan(&sub.ID, &sub.Email, &sub.IsActive, &sub.CreatedAt, &sub.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan subscriber: %w", err)
		}
		subs = append(subs, &sub)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating subscribers: %w", err)
	}

	return subs, nil
}
