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
var _ PostRepository = (*PgPostRepository)(nil)

// postColumns is the column list shared by all blog post queries.
const postColumns = `id, subject_id, subject_ids, title, subtitle, excerpt, content,
	hero_image_url, read_time, paper_ids, status, publish_date, created_at, updated_at`

// PgPostRepository is a PostgreSQL implementation of PostRepository.
type PgPostRepository struct {
	db DBTX
}

// NewPgPostRepository creates a new PostgreSQL post repository.
func NewPgPostRepository(db DBTX) *PgPostRepository {
	return &PgPostRepository{db: db}
}

// Create persists a new post together with its ordered citations.
// The post insert and citation inserts are sent as a single batch.
func (r *PgPostRepository) Create(ctx context.Context, post *domain.BlogPost, citations []*domain.PaperCitation) error {
	if post == nil {
		return domain.NewValidationError("post", "post cannot be nil")
	}
	if strings.TrimSpace(post.Title) == "" {
		return domain.NewValidationError("title", "post title is required")
	}
	if len(post.PaperIDs) == 0 {
		return domain.NewValidationError("paper_ids", "post must reference at least one paper")
	}

	now := time.Now().UTC()
	if post.ID == uuid.Nil {
		post.ID = uuid.New()
	}
	if post.Status == "" {
		post.Status = domain.PostStatusDraft
	}
	if post.CreatedAt.IsZero() {
		post.CreatedAt = now
	}
	post.UpdatedAt = now

	batch := &pgx.Batch{}
	batch.Queue(`
		INSERT INTO blog_posts (
			id, subject_id, subject_ids, title, subtitle, excerpt, content,
			hero_image_url, read_time, paper_ids, status, publish_date,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		post.ID, post.SubjectID, post.SubjectIDs, post.Title, post.Subtitle,
		post.Excerpt, post.Content, post.HeroImageURL, post.ReadTime,
		post.PaperIDs, post.Status, post.PublishDate, post.CreatedAt, post.UpdatedAt,
	)

	for i, c := range citations {
		if c == nil {
			return domain.NewValidationError("citations", fmt.Sprintf("citation at index %d is nil", i))
		}
		if c.ID == uuid.Nil {
			c.ID = uuid.New()
		}
		if c.CreatedAt.IsZero() {
			c.CreatedAt = now
		}
		c.BlogPostID = post.ID

		batch.Queue(`
			INSERT INTO paper_citations (id, blog_post_id, selected_paper_id, citation_order, created_at)
			VALUES ($1, $2, $3, $4, $5)`,
			c.ID, c.BlogPostID, c.SelectedPaperID, c.CitationOrder, c.CreatedAt,
		)
	}

	results := r.db.SendBatch(ctx, batch)
	defer results.Close()

	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
				return domain.NewNotFoundError("subject or paper", "referenced by blog post")
			}
			return fmt.Errorf("failed to create blog post: %w", err)
		}
	}

	return nil
}

// GetByID retrieves a post by its UUID.
func (r *PgPostRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.BlogPost, error) {
	query := fmt.Sprintf(`SELECT %s FROM blog_posts WHERE id = $1`, postColumns)

	row := r.db.QueryRow(ctx, query, id)
	post, err := scanPost(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("post", id.String())
		}
		return nil, fmt.Errorf("failed to get post by ID: %w", err)
	}

	return post, nil
}

// Citations retrieves the post's citations ordered by citation order.
func (r *PgPostRepository) Citations(ctx context.Context, postID uuid.UUID) ([]*domain.PaperCitation, error) {
	query := `
		SELECT id, blog_post_id, selected_paper_id, citation_order, created_at
		FROM paper_citations
		WHERE blog_post_id = $1
		ORDER BY citation_order`

	rows, err := r.db.Query(ctx, query, postID)
	if err != nil {
		return nil, fmt.Errorf("failed to get citations: %w", err)
	}
	defer rows.Close()

	var citations []*domain.PaperCitation
	for rows.Next() {
		var c domain.PaperCitation
		if err := rows.Scan(&c.ID, &c.BlogPostID, &c.SelectedPaperID, &c.CitationOrder, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan citation: %w", err)
		}
		citations = append(citations, &c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating citations: %w", err)
	}

	return citations, nil
}

// List retrieves posts matching the filter criteria.
func (r *PgPostRepository) List(ctx context.Context, filter PostFilter) ([]*domain.BlogPost, int64, error) {
	if err := filter.Validate(); err != nil {
		return nil, 0, err
	}

	// Build dynamic WHERE clause
	var conditions []string
	var args []interface{}
	argIndex := 1

	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIndex))
		args = append(args, *filter.Status)
		argIndex++
	}

	if filter.SubjectID != nil {
		conditions = append(conditions, fmt.Sprintf("$%d = ANY(subject_ids)", argIndex))
		args = append(args, *filter.SubjectID)
		argIndex++
	}

	if filter.PublishedSince != nil {
		conditions = append(conditions, fmt.Sprintf("publish_date >= $%d", argIndex))
		args = append(args, *filter.PublishedSince)
		argIndex++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	// Count total matching records
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM blog_posts %s", whereClause)
	var totalCount int64
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&totalCount); err != nil {
		return nil, 0, fmt.Errorf("failed to count posts: %w", err)
	}

	// Query with pagination, newest first by publish date then creation
	selectQuery := fmt.Sprintf(`
		SELECT %s FROM blog_posts
		%s
		ORDER BY COALESCE(publish_date, created_at) DESC
		LIMIT $%d OFFSET $%d`,
		postColumns, whereClause, argIndex, argIndex+1)

	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.Query(ctx, selectQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list posts: %w", err)
	}
	defer rows.Close()

	posts := make([]*domain.BlogPost, 0, filter.Limit)
	for rows.Next() {
		post, err := scanPostFromRows(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan post: %w", err)
		}
		posts = append(posts, post)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating posts: %w", err)
	}

	return posts, totalCount, nil
}

// UsedPaperIDs returns the union of every post's paper id list.
func (r *PgPostRepository) UsedPaperIDs(ctx context.Context) (map[uuid.UUID]struct{}, error) {
	rows, err := r.db.Query(ctx, `SELECT DISTINCT unnest(paper_ids) FROM blog_posts`)
	if err != nil {
		return nil, fmt.Errorf("failed to get used paper ids: %w", err)
	}
	defer rows.Close()

	used := make(map[uuid.UUID]struct{})
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan paper id: %w", err)
		}
		used[id] = struct{}{}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating paper ids: %w", err)
	}

	return used, nil
}

// ListDrafts retrieves every post currently in draft status.
func (r *PgPostRepository) ListDrafts(ctx context.Context) ([]*domain.BlogPost, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM blog_posts
		WHERE status = $1
		ORDER BY created_at`, postColumns)

	rows, err := r.db.Query(ctx, query, domain.PostStatusDraft)
	if err != nil {
		return nil, fmt.Errorf("failed to list drafts: %w", err)
	}
	defer rows.Close()

	var posts []*domain.BlogPost
	for rows.Next() {
		post, err := scanPostFromRows(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan post: %w", err)
		}
		posts = append(posts, post)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating drafts: %w", err)
	}

	return posts, nil
}

// FirstCitationSelectionDate returns the selection date of the post's
// first-ordered cited paper.
func (r *PgPostRepository) FirstCitationSelectionDate(ctx context.Context, postID uuid.UUID) (*time.Time, error) {
	query := `
		SELECT sp.selection_date
		FROM paper_citations pc
		JOIN selected_papers sp ON sp.id = pc.selected_paper_id
		WHERE pc.blog_post_id = $1
		ORDER BY pc.citation_order
		LIMIT 1`

	var selectionDate time.Time
	err := r.db.QueryRow(ctx, query, postID).Scan(&selectionDate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// No citations, or the cited paper was hard-deleted.
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get first citation selection date: %w", err)
	}

	return &selectionDate, nil
}

// Publish sets the post to published with the given publish date.
func (r *PgPostRepository) Publish(ctx context.Context, id uuid.UUID, publishDate time.Time) error {
	query := `
		UPDATE blog_posts
		SET status = $2, publish_date = $3, updated_at = $4
		WHERE id = $1`

	result, err := r.db.Exec(ctx, query, id, domain.PostStatusPublished, publishDate, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to publish post: %w", err)
	}

	if result.RowsAffected() == 0 {
		return domain.NewNotFoundError("post", id.String())
	}

	return nil
}

// Unpublish reverts the post to draft and clears the publish date.
func (r *PgPostRepository) Unpublish(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE blog_posts
		SET status = $2, publish_date = NULL, updated_at = $3
		WHERE id = $1`

	result, err := r.db.Exec(ctx, query, id, domain.PostStatusDraft, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to unpublish post: %w", err)
	}

	if result.RowsAffected() == 0 {
		return domain.NewNotFoundError("post", id.String())
	}

	return nil
}

// Delete removes a post.
func (r *PgPostRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.Exec(ctx, `DELETE FROM blog_posts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete post: %w", err)
	}

	if result.RowsAffected() == 0 {
		return domain.NewNotFoundError("post", id.String())
	}

	return nil
}

// DeleteAll removes every post.
func (r *PgPostRepository) DeleteAll(ctx context.Context) (int64, error) {
	result, err := r.db.Exec(ctx, `DELETE FROM blog_posts`)
	if err != nil {
		return 0, fmt.Errorf("failed to delete all posts: %w", err)
	}

	return result.RowsAffected(), nil
}

// postScanDest holds the destination pointers for scanning a BlogPost row.
type postScanDest struct {
	post domain.BlogPost
}

// destinations returns the slice of pointers for Scan operations.
func (d *postScanDest) destinations() []interface{} {
	return []interface{}{
		&d.post.ID, &d.post.SubjectID, &d.post.SubjectIDs, &d.post.Title,
		&d.post.Subtitle, &d.post.Excerpt, &d.post.Content,
		&d.post.HeroImageURL, &d.post.ReadTime, &d.post.PaperIDs,
		&d.post.Status, &d.post.PublishDate, &d.post.CreatedAt, &d.post.UpdatedAt,
	}
}

// scanPost scans a single row into a BlogPost.
func scanPost(row pgx.Row) (*domain.BlogPost, error) {
	var dest postScanDest
	if err := row.Scan(dest.destinations()...); err != nil {
		return nil, err
	}
	return &dest.post, nil
}

// scanPostFromRows scans the current row from pgx.Rows into a BlogPost.
func scanPostFromRows(rows pgx.Rows) (*domain.BlogPost, error) {
	var dest postScanDest
	if err := rows.Scan(dest.destinations()...); err != nil {
		return nil, err
	}
	return &dest.post, nil
}
