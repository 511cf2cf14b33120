package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/sciencesimplified/content-service/internal/domain"
)

// SubjectRepository manages subjects, journals and their associations.
// Subjects scope paper selection and reader-side filtering; journals bias
// search queries toward high-impact venues.
type SubjectRepository interface {
	// CreateSubject persists a new subject.
	// Returns domain.ErrAlreadyExists if a subject with the same name exists.
	CreateSubject(ctx context.Context, subject *domain.Subject) error

	// GetSubject retrieves a subject by its UUID.
	// Returns domain.ErrNotFound if no matching subject exists.
	GetSubject(ctx context.Context, id uuid.UUID) (*domain.Subject, error)

	// ListSubjects retrieves all subjects ordered by name.
	ListSubjects(ctx context.Context) ([]*domain.Subject, error)

	// CreateJournal persists a new journal.
	// Returns domain.ErrAlreadyExists if a journal with the same name exists.
	CreateJournal(ctx context.Context, journal *domain.Journal) error

	// ListJournals retrieves all journals ordered by impact factor (highest first).
	ListJournals(ctx context.Context) ([]*domain.Journal, error)

	// AssociateJournal links a journal to a subject. Idempotent.
	// Returns domain.ErrNotFound if either side does not exist.
	AssociateJournal(ctx context.Context, journalID, subjectID uuid.UUID) error

	// JournalsForSubject retrieves the journal set relevant to a subject:
	// the subject's direct associations plus every interdisciplinary journal.
	// Ordered by impact factor (highest first).
	JournalsForSubject(ctx context.Context, subjectID uuid.UUID) ([]*domain.Journal, error)
}
