package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sciencesimplified/content-service/internal/domain"
)

var subjectColumns = []string{"id", "name", "description", "created_at"}

var journalColumns = []string{"id", "name", "impact_factor", "is_interdisciplinary", "issn", "created_at"}

func TestPgSubjectRepository_CreateSubject(t *testing.T) {
	t.Run("creates subject and fills id", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgSubjectRepository(mock)
		ctx := context.Background()

		mock.ExpectExec(`INSERT INTO subjects`).
			WithArgs(pgxmock.AnyArg(), "Genetics", "Genomes and heredity", pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		subject := &domain.Subject{Name: "Genetics", Description: "Genomes and heredity"}
		err = repo.CreateSubject(ctx, subject)
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, subject.ID)
		assert.False(t, subject.CreatedAt.IsZero())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("maps unique violation to already exists", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgSubjectRepository(mock)
		ctx := context.Background()

		mock.ExpectExec(`INSERT INTO subjects`).
			WithArgs(pgxmock.AnyArg(), "Genetics", "", pgxmock.AnyArg()).
			WillReturnError(&pgconn.PgError{Code: pgUniqueViolation})

		err = repo.CreateSubject(ctx, &domain.Subject{Name: "Genetics"})
		assert.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrAlreadyExists))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rejects blank name", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgSubjectRepository(mock)

		err = repo.CreateSubject(context.Background(), &domain.Subject{Name: "   "})
		assert.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrInvalidInput))
	})

	t.Run("rejects nil subject", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgSubjectRepository(mock)

		err = repo.CreateSubject(context.Background(), nil)
		assert.True(t, errors.Is(err, domain.ErrInvalidInput))
	})
}

func TestPgSubjectRepository_GetSubject(t *testing.T) {
	t.Run("returns subject when found", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgSubjectRepository(mock)
		ctx := context.Background()

		subjectID := uuid.New()
		now := time.Now().UTC()
		mock.ExpectQuery(`SELECT id, name, description, created_at`).
			WithArgs(subjectID).
			WillReturnRows(pgxmock.NewRows(subjectColumns).
				AddRow(subjectID, "Genetics", "Genomes and heredity", now))

		result, err := repo.GetSubject(ctx, subjectID)
		require.NoError(t, err)
		assert.Equal(t, subjectID, result.ID)
		assert.Equal(t, "Genetics", result.Name)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns not found error", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgSubjectRepository(mock)
		ctx := context.Background()

		subjectID := uuid.New()
		mock.ExpectQuery(`SELECT id, name, description, created_at`).
			WithArgs(subjectID).
			WillReturnError(pgx.ErrNoRows)

		_, err = repo.GetSubject(ctx, subjectID)
		assert.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrNotFound))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPgSubjectRepository_ListSubjects(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPgSubjectRepository(mock)
	ctx := context.Background()

	now := time.Now().UTC()
	mock.ExpectQuery(`SELECT id, name, description, created_at`).
		WillReturnRows(pgxmock.NewRows(subjectColumns).
			AddRow(uuid.New(), "Genetics", "", now).
			AddRow(uuid.New(), "Neuroscience", "", now))

	subjects, err := repo.ListSubjects(ctx)
	require.NoError(t, err)
	assert.Len(t, subjects, 2)
	assert.Equal(t, "Genetics", subjects[0].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgSubjectRepository_CreateJournal(t *testing.T) {
	t.Run("creates journal", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgSubjectRepository(mock)
		ctx := context.Background()

		mock.ExpectExec(`INSERT INTO journals`).
			WithArgs(pgxmock.AnyArg(), "Nature", 64.8, true, "0028-0836", pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		journal := &domain.Journal{
			Name:                "Nature",
			ImpactFactor:        64.8,
			IsInterdisciplinary: true,
			ISSN:                "0028-0836",
		}
		err = repo.CreateJournal(ctx, journal)
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, journal.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("maps unique violation to already exists", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgSubjectRepository(mock)
		ctx := context.Background()

		mock.ExpectExec(`INSERT INTO journals`).
			WithArgs(pgxmock.AnyArg(), "Nature", 0.0, false, "", pgxmock.AnyArg()).
			WillReturnError(&pgconn.PgError{Code: pgUniqueViolation})

		err = repo.CreateJournal(ctx, &domain.Journal{Name: "Nature"})
		assert.True(t, errors.Is(err, domain.ErrAlreadyExists))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPgSubjectRepository_AssociateJournal(t *testing.T) {
	t.Run("associates journal with subject", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgSubjectRepository(mock)
		ctx := context.Background()

		journalID := uuid.New()
		subjectID := uuid.New()
		mock.ExpectExec(`INSERT INTO journal_subjects`).
			WithArgs(journalID, subjectID).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		err = repo.AssociateJournal(ctx, journalID, subjectID)
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("maps foreign key violation to not found", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgSubjectRepository(mock)
		ctx := context.Background()

		mock.ExpectExec(`INSERT INTO journal_subjects`).
			WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnError(&pgconn.PgError{Code: pgForeignKeyViolation})

		err = repo.AssociateJournal(ctx, uuid.New(), uuid.New())
		assert.True(t, errors.Is(err, domain.ErrNotFound))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPgSubjectRepository_JournalsForSubject(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPgSubjectRepository(mock)
	ctx := context.Background()

	subjectID := uuid.New()
	now := time.Now().UTC()
	mock.ExpectQuery(`SELECT DISTINCT j\.id`).
		WithArgs(subjectID).
		WillReturnRows(pgxmock.NewRows(journalColumns).
			AddRow(uuid.New(), "Nature", 64.8, true, "0028-0836", now).
			AddRow(uuid.New(), "Cell", 45.5, false, "0092-8674", now))

	journals, err := repo.JournalsForSubject(ctx, subjectID)
	require.NoError(t, err)
	require.Len(t, journals, 2)
	assert.Equal(t, "Nature", journals[0].Name)
	assert.True(t, journals[0].IsInterdisciplinary)
	assert.NoError(t, mock.ExpectationsWereMet())
}
