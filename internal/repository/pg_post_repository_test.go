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

var postTestColumns = []string{
	"id", "subject_id", "subject_ids", "title", "subtitle", "excerpt", "content",
	"hero_image_url", "read_time", "paper_ids", "status", "publish_date",
	"created_at", "updated_at",
}

func postRow(rows *pgxmock.Rows, p *domain.BlogPost) *pgxmock.Rows {
	return rows.AddRow(
		p.ID, p.SubjectID, p.SubjectIDs, p.Title, p.Subtitle, p.Excerpt,
		p.Content, p.HeroImageURL, p.ReadTime, p.PaperIDs, p.Status,
		p.PublishDate, p.CreatedAt, p.UpdatedAt,
	)
}

func testPost(subjectID uuid.UUID) *domain.BlogPost {
	now := time.Now().UTC()
	return &domain.BlogPost{
		ID:         uuid.New(),
		SubjectID:  subjectID,
		SubjectIDs: []uuid.UUID{subjectID},
		Title:      "How Cells Rewrite Their Own Code",
		Subtitle:   "Base editing moves from the lab to living tissue",
		Excerpt:    "A look at recent advances in gene editing.",
		Content:    "<h2>Introduction</h2><p>Gene editing has come a long way.</p>",
		ReadTime:   4,
		PaperIDs:   []uuid.UUID{uuid.New()},
		Status:     domain.PostStatusDraft,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func TestPgPostRepository_Create(t *testing.T) {
	t.Run("inserts post and citations in one batch", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgPostRepository(mock)
		ctx := context.Background()

		subjectID := uuid.New()
		paperID := uuid.New()
		post := &domain.BlogPost{
			SubjectID:  subjectID,
			SubjectIDs: []uuid.UUID{subjectID},
			Title:      "How Cells Rewrite Their Own Code",
			Content:    "<p>Body</p>",
			ReadTime:   4,
			PaperIDs:   []uuid.UUID{paperID},
		}
		citations := []*domain.PaperCitation{
			{SelectedPaperID: paperID, CitationOrder: 1},
		}

		batch := mock.ExpectBatch()
		batch.ExpectExec(`INSERT INTO blog_posts`).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		batch.ExpectExec(`INSERT INTO paper_citations`).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		err = repo.Create(ctx, post, citations)
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, post.ID)
		assert.Equal(t, domain.PostStatusDraft, post.Status)
		assert.Equal(t, post.ID, citations[0].BlogPostID)
		assert.NotEqual(t, uuid.Nil, citations[0].ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rejects post without papers", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgPostRepository(mock)

		err = repo.Create(context.Background(), &domain.BlogPost{Title: "Untitled"}, nil)
		assert.True(t, errors.Is(err, domain.ErrInvalidInput))
	})

	t.Run("rejects blank title", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgPostRepository(mock)

		err = repo.Create(context.Background(), &domain.BlogPost{
			Title:    "  ",
			PaperIDs: []uuid.UUID{uuid.New()},
		}, nil)
		assert.True(t, errors.Is(err, domain.ErrInvalidInput))
	})

	t.Run("maps foreign key violation to not found", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgPostRepository(mock)
		ctx := context.Background()

		batch := mock.ExpectBatch()
		batch.ExpectExec(`INSERT INTO blog_posts`).
			WillReturnError(&pgconn.PgError{Code: pgForeignKeyViolation})

		err = repo.Create(ctx, &domain.BlogPost{
			SubjectID: uuid.New(),
			Title:     "Orphan post",
			Content:   "<p>Body</p>",
			PaperIDs:  []uuid.UUID{uuid.New()},
		}, nil)
		assert.True(t, errors.Is(err, domain.ErrNotFound))
	})
}

func TestPgPostRepository_GetByID(t *testing.T) {
	t.Run("returns post when found", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgPostRepository(mock)
		ctx := context.Background()

		post := testPost(uuid.New())
		mock.ExpectQuery(`SELECT (.+) FROM blog_posts WHERE id = \$1`).
			WithArgs(post.ID).
			WillReturnRows(postRow(pgxmock.NewRows(postTestColumns), post))

		result, err := repo.GetByID(ctx, post.ID)
		require.NoError(t, err)
		assert.Equal(t, post.ID, result.ID)
		assert.Equal(t, post.Title, result.Title)
		assert.Equal(t, domain.PostStatusDraft, result.Status)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns not found error", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgPostRepository(mock)
		ctx := context.Background()

		postID := uuid.New()
		mock.ExpectQuery(`SELECT (.+) FROM blog_posts WHERE id = \$1`).
			WithArgs(postID).
			WillReturnError(pgx.ErrNoRows)

		_, err = repo.GetByID(ctx, postID)
		assert.True(t, errors.Is(err, domain.ErrNotFound))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPgPostRepository_Citations(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPgPostRepository(mock)
	ctx := context.Background()

	postID := uuid.New()
	now := time.Now().UTC()
	mock.ExpectQuery(`SELECT id, blog_post_id, selected_paper_id, citation_order, created_at`).
		WithArgs(postID).
		WillReturnRows(pgxmock.NewRows([]string{"id", "blog_post_id", "selected_paper_id", "citation_order", "created_at"}).
			AddRow(uuid.New(), postID, uuid.New(), 1, now).
			AddRow(uuid.New(), postID, uuid.New(), 2, now))

	citations, err := repo.Citations(ctx, postID)
	require.NoError(t, err)
	require.Len(t, citations, 2)
	assert.Equal(t, 1, citations[0].CitationOrder)
	assert.Equal(t, 2, citations[1].CitationOrder)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgPostRepository_List(t *testing.T) {
	t.Run("filters by status and subject membership", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgPostRepository(mock)
		ctx := context.Background()

		subjectID := uuid.New()
		status := domain.PostStatusPublished
		post := testPost(subjectID)
		post.Status = status
		publishDate := time.Now().UTC()
		post.PublishDate = &publishDate

		mock.ExpectQuery(`SELECT COUNT\(\*\) FROM blog_posts WHERE status = \$1 AND \$2 = ANY\(subject_ids\)`).
			WithArgs(status, subjectID).
			WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(1)))

		mock.ExpectQuery(`SELECT (.+) FROM blog_posts\s+WHERE status = \$1 AND \$2 = ANY\(subject_ids\)`).
			WithArgs(status, subjectID, 100, 0).
			WillReturnRows(postRow(pgxmock.NewRows(postTestColumns), post))

		posts, total, err := repo.List(ctx, PostFilter{Status: &status, SubjectID: &subjectID})
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		require.Len(t, posts, 1)
		assert.True(t, posts[0].IsPublished())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("filters by publish window", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgPostRepository(mock)
		ctx := context.Background()

		since := time.Now().UTC().AddDate(0, 0, -7)

		mock.ExpectQuery(`SELECT COUNT\(\*\) FROM blog_posts WHERE publish_date >= \$1`).
			WithArgs(since).
			WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(0)))
		mock.ExpectQuery(`SELECT (.+) FROM blog_posts\s+WHERE publish_date >= \$1`).
			WithArgs(since, 100, 0).
			WillReturnRows(pgxmock.NewRows(postTestColumns))

		posts, total, err := repo.List(ctx, PostFilter{PublishedSince: &since})
		require.NoError(t, err)
		assert.Equal(t, int64(0), total)
		assert.Empty(t, posts)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPgPostRepository_UsedPaperIDs(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPgPostRepository(mock)
	ctx := context.Background()

	id1 := uuid.New()
	id2 := uuid.New()
	mock.ExpectQuery(`SELECT DISTINCT unnest\(paper_ids\) FROM blog_posts`).
		WillReturnRows(pgxmock.NewRows([]string{"unnest"}).AddRow(id1).AddRow(id2))

	used, err := repo.UsedPaperIDs(ctx)
	require.NoError(t, err)
	assert.Len(t, used, 2)
	assert.Contains(t, used, id1)
	assert.Contains(t, used, id2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgPostRepository_ListDrafts(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPgPostRepository(mock)
	ctx := context.Background()

	post := testPost(uuid.New())
	mock.ExpectQuery(`SELECT (.+) FROM blog_posts\s+WHERE status = \$1`).
		WithArgs(domain.PostStatusDraft).
		WillReturnRows(postRow(pgxmock.NewRows(postTestColumns), post))

	drafts, err := repo.ListDrafts(ctx)
	require.NoError(t, err)
	require.Len(t, drafts, 1)
	assert.Equal(t, domain.PostStatusDraft, drafts[0].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgPostRepository_FirstCitationSelectionDate(t *testing.T) {
	t.Run("returns first citation's selection date", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgPostRepository(mock)
		ctx := context.Background()

		postID := uuid.New()
		selectionDate := time.Date(2024, 3, 12, 10, 0, 0, 0, time.UTC)
		mock.ExpectQuery(`SELECT sp\.selection_date`).
			WithArgs(postID).
			WillReturnRows(pgxmock.NewRows([]string{"selection_date"}).AddRow(selectionDate))

		result, err := repo.FirstCitationSelectionDate(ctx, postID)
		require.NoError(t, err)
		require.NotNil(t, result)
		assert.Equal(t, selectionDate, *result)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns nil without error when post has no citations", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgPostRepository(mock)
		ctx := context.Background()

		postID := uuid.New()
		mock.ExpectQuery(`SELECT sp\.selection_date`).
			WithArgs(postID).
			WillReturnError(pgx.ErrNoRows)

		result, err := repo.FirstCitationSelectionDate(ctx, postID)
		require.NoError(t, err)
		assert.Nil(t, result)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPgPostRepository_Publish(t *testing.T) {
	t.Run("publishes post with given date", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgPostRepository(mock)
		ctx := context.Background()

		postID := uuid.New()
		publishDate := time.Date(2024, 3, 12, 10, 0, 0, 0, time.UTC)
		mock.ExpectExec(`UPDATE blog_posts`).
			WithArgs(postID, domain.PostStatusPublished, publishDate, pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		err = repo.Publish(ctx, postID, publishDate)
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns not found for unknown post", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgPostRepository(mock)
		ctx := context.Background()

		postID := uuid.New()
		mock.ExpectExec(`UPDATE blog_posts`).
			WithArgs(postID, domain.PostStatusPublished, pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err = repo.Publish(ctx, postID, time.Now().UTC())
		assert.True(t, errors.Is(err, domain.ErrNotFound))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPgPostRepository_Unpublish(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPgPostRepository(mock)
	ctx := context.Background()

	postID := uuid.New()
	mock.ExpectExec(`UPDATE blog_posts`).
		WithArgs(postID, domain.PostStatusDraft, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err = repo.Unpublish(ctx, postID)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgPostRepository_Delete(t *testing.T) {
	t.Run("deletes post", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgPostRepository(mock)
		ctx := context.Background()

		postID := uuid.New()
		mock.ExpectExec(`DELETE FROM blog_posts WHERE id = \$1`).
			WithArgs(postID).
			WillReturnResult(pgxmock.NewResult("DELETE", 1))

		err = repo.Delete(ctx, postID)
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns not found for unknown post", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgPostRepository(mock)
		ctx := context.Background()

		postID := uuid.New()
		mock.ExpectExec(`DELETE FROM blog_posts WHERE id = \$1`).
			WithArgs(postID).
			WillReturnResult(pgxmock.NewResult("DELETE", 0))

		err = repo.Delete(ctx, postID)
		assert.True(t, errors.Is(err, domain.ErrNotFound))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPgPostRepository_DeleteAll(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPgPostRepository(mock)
	ctx := context.Background()

	mock.ExpectExec(`DELETE FROM blog_posts`).
		WillReturnResult(pgxmock.NewResult("DELETE", 3))

	count, err := repo.DeleteAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
	assert.NoError(t, mock.ExpectationsWereMet())
}
