package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/sciencesimplified/content-service/internal/domain"
)

// Compile-time interface verification.
var _ SubjectRepository = (*PgSubjectRepository)(nil)

// PgSubjectRepository is a PostgreSQL implementation of SubjectRepository.
type PgSubjectRepository struct {
	db DBTX
}

// NewPgSubjectRepository creates a new PostgreSQL subject repository.
func NewPgSubjectRepository(db DBTX) *PgSubjectRepository {
	return &PgSubjectRepository{db: db}
}

// CreateSubject persists a new subject.
func (r *PgSubjectRepository) CreateSubject(ctx context.Context, subject *domain.Subject) error {
	if subject == nil {
		return domain.NewValidationError("subject", "subject cannot be nil")
	}
	if strings.TrimSpace(subject.Name) == "" {
		return domain.NewValidationError("name", "subject name is required")
	}

	if subject.ID == uuid.Nil {
		subject.ID = uuid.New()
	}
	if subject.CreatedAt.IsZero() {
		subject.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO subjects (id, name, description, created_at)
		VALUES ($1, $2, $3, $4)`

	_, err := r.db.Exec(ctx, query, subject.ID, subject.Name, subject.Description, subject.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return domain.NewAlreadyExistsError("subject", subject.Name)
		}
		return fmt.Errorf("failed to create subject: %w", err)
	}

	return nil
}

// GetSubject retrieves a subject by its UUID.
func (r *PgSubjectRepository) GetSubject(ctx context.Context, id uuid.UUID) (*domain.Subject, error) {
	query := `
		SELECT id, name, description, created_at
		FROM subjects
		WHERE id = $1`

	var subject domain.Subject
	err := r.db.QueryRow(ctx, query, id).
		Scan(&subject.ID, &subject.Name, &subject.Description, &subject.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("subject", id.String())
		}
		return nil, fmt.Errorf("failed to get subject: %w", err)
	}

	return &subject, nil
}

// ListSubjects retrieves all subjects ordered by name.
func (r *PgSubjectRepository) ListSubjects(ctx context.Context) ([]*domain.Subject, error) {
	query := `
		SELECT id, name, description, created_at
		FROM subjects
		ORDER BY name`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list subjects: %w", err)
	}
	defer rows.Close()

	var subjects []*domain.Subject
	for rows.Next() {
		var subject domain.Subject
		if err := rows.Scan(&subject.ID, &subject.Name, &subject.Description, &subject.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan subject: %w", err)
		}
		subjects = append(subjects, &subject)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating subjects: %w", err)
	}

	return subjects, nil
}

// CreateJournal persists a new journal.
func (r *PgSubjectRepository) CreateJournal(ctx context.Context, journal *domain.Journal) error {
	if journal == nil {
		return domain.NewValidationError("journal", "journal cannot be nil")
	}
	if strings.TrimSpace(journal.Name) == "" {
		return domain.NewValidationError("name", "journal name is required")
	}

	if journal.ID == uuid.Nil {
		journal.ID = uuid.New()
	}
	if journal.CreatedAt.IsZero() {
		journal.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO journals (id, name, impact_factor, is_interdisciplinary, issn, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.db.Exec(ctx, query,
		journal.ID,
		journal.Name,
		journal.ImpactFactor,
		journal.IsInterdisciplinary,
		journal.ISSN,
		journal.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return domain.NewAlreadyExistsError("journal", journal.Name)
		}
		return fmt.Errorf("failed to create journal: %w", err)
	}

	return nil
}

// ListJournals retrieves all journals ordered by impact factor.
func (r *PgSubjectRepository) ListJournals(ctx context.Context) ([]*domain.Journal, error) {
	query := `
		SELECT id, name, impact_factor, is_interdisciplinary, issn, created_at
		FROM journals
		ORDER BY impact_factor DESC, name`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list journals: %w", err)
	}
	defer rows.Close()

	return collectJournals(rows)
}

// AssociateJournal links a journal to a subject. Idempotent.
func (r *PgSubjectRepository) AssociateJournal(ctx context.Context, journalID, subjectID uuid.UUID) error {
	query := `
		INSERT INTO journal_subjects (journal_id, subject_id)
		VALUES ($1, $2)
		ON CONFLICT (journal_id, subject_id) DO NOTHING`

	_, err := r.db.Exec(ctx, query, journalID, subjectID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
			return domain.NewNotFoundError("journal or subject",
				fmt.Sprintf("journal=%s, subject=%s", journalID, subjectID))
		}
		return fmt.Errorf("failed to associate journal with subject: %w", err)
	}

	return nil
}

// JournalsForSubject retrieves the subject's direct associations plus every
// interdisciplinary journal.
func (r *PgSubjectRepository) JournalsForSubject(ctx context.Context, subjectID uuid.UUID) ([]*domain.Journal, error) {
	query := `
		SELECT DISTINCT j.id, j.name, j.impact_factor, j.is_interdisciplinary, j.issn, j.created_at
		FROM journals j
		LEFT JOIN journal_subjects js ON js.journal_id = j.id
		WHERE js.subject_id = $1 OR j.is_interdisciplinary
		ORDER BY j.impact_factor DESC, j.name`

	rows, err := r.db.Query(ctx, query, subjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to get journals for subject: %w", err)
	}
	defer rows.Close()

	return collectJournals(rows)
}

// collectJournals scans all rows into journals.
func collectJournals(rows pgx.Rows) ([]*domain.Journal, error) {
	var journals []*domain.Journal
	for rows.Next() {
		var j domain.Journal
		if err := rows.Scan(&j.ID, &j.Name, &j.ImpactFactor, &j.IsInterdisciplinary, &j.ISSN, &j.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan journal: %w", err)
		}
		journals = append(journals, &j)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating journals: %w", err)
	}

	return journals, nil
}
