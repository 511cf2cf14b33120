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
var _ PaperRepository = (*PgPaperRepository)(nil)

// paperColumns is the column list shared by all selected paper queries.
const paperColumns = `id, subject_id, week_number, year, article_title, authors,
	journal_name, abstract, doi, pubmed_id, publication_date, selection_date,
	pdf_storage_path, status, quality_score, created_at, updated_at`

// PgPaperRepository is a PostgreSQL implementation of PaperRepository.
type PgPaperRepository struct {
	db DBTX
}

// NewPgPaperRepository creates a new PostgreSQL paper repository.
func NewPgPaperRepository(db DBTX) *PgPaperRepository {
	return &PgPaperRepository{db: db}
}

// CreateMany persists the given papers in a single bulk insert.
func (r *PgPaperRepository) CreateMany(ctx context.Context, papers []*domain.SelectedPaper) error {
	if len(papers) == 0 {
		return nil
	}

	const fieldsPerRow = 15
	var valueStrings []string
	var args []interface{}
	now := time.Now().UTC()

	for i, p := range papers {
		if p == nil {
			return domain.NewValidationError("papers", fmt.Sprintf("paper at index %d is nil", i))
		}
		if strings.TrimSpace(p.ArticleTitle) == "" {
			return domain.NewValidationError("article_title", "article title is required")
		}
		if strings.TrimSpace(p.PubMedID) == "" {
			return domain.NewValidationError("pubmed_id", "pubmed id is required")
		}

		if p.ID == uuid.Nil {
			p.ID = uuid.New()
		}
		if p.SelectionDate.IsZero() {
			p.SelectionDate = now
		}
		if p.Status == "" {
			p.Status = domain.PaperStatusPendingPDF
		}
		if p.CreatedAt.IsZero() {
			p.CreatedAt = now
		}
		p.UpdatedAt = now

		base := i * fieldsPerRow
		placeholders := make([]string, fieldsPerRow)
		for j := range placeholders {
			placeholders[j] = fmt.Sprintf("$%d", base+j+1)
		}
		valueStrings = append(valueStrings, "("+strings.Join(placeholders, ", ")+")")
		args = append(args,
			p.ID, p.SubjectID, p.WeekNumber, p.Year, p.ArticleTitle, p.Authors,
			p.JournalName, p.Abstract, p.DOI, p.PubMedID, p.PublicationDate,
			p.SelectionDate, p.Status, p.CreatedAt, p.UpdatedAt,
		)
	}

	query := fmt.Sprintf(`
		INSERT INTO selected_papers (
			id, subject_id, week_number, year, article_title, authors,
			journal_name, abstract, doi, pubmed_id, publication_date,
			selection_date, status, created_at, updated_at
		) VALUES %s`,
		strings.Join(valueStrings, ", "))

	_, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
			return domain.NewNotFoundError("subject", "referenced by selected paper")
		}
		return fmt.Errorf("failed to create selected papers: %w", err)
	}

	return nil
}

// GetByID retrieves a paper by its UUID.
func (r *PgPaperRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.SelectedPaper, error) {
	query := fmt.Sprintf(`SELECT %s FROM selected_papers WHERE id = $1`, paperColumns)

	row := r.db.QueryRow(ctx, query, id)
	paper, err := scanPaper(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("paper", id.String())
		}
		return nil, fmt.Errorf("failed to get paper by ID: %w", err)
	}

	return paper, nil
}

// GetByIDs retrieves the papers with the given ids.
func (r *PgPaperRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]*domain.SelectedPaper, error) {
	if len(ids) == 0 {
		return []*domain.SelectedPaper{}, nil
	}

	query := fmt.Sprintf(`
		SELECT %s FROM selected_papers
		WHERE id = ANY($1)
		ORDER BY selection_date, created_at`, paperColumns)

	rows, err := r.db.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to get papers by ids: %w", err)
	}
	defer rows.Close()

	papers := make([]*domain.SelectedPaper, 0, len(ids))
	for rows.Next() {
		paper, err := scanPaperFromRows(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan paper: %w", err)
		}
		papers = append(papers, paper)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating papers: %w", err)
	}

	return papers, nil
}

// List retrieves papers matching the filter criteria.
func (r *PgPaperRepository) List(ctx context.Context, filter PaperFilter) ([]*domain.SelectedPaper, int64, error) {
	if err := filter.Validate(); err != nil {
		return nil, 0, err
	}

	// Build dynamic WHERE clause
	var conditions []string
	var args []interface{}
	argIndex := 1

	if filter.SubjectID != nil {
		conditions = append(conditions, fmt.Sprintf("subject_id = $%d", argIndex))
		args = append(args, *filter.SubjectID)
		argIndex++
	}

	if filter.WeekNumber != nil {
		conditions = append(conditions, fmt.Sprintf("week_number = $%d", argIndex))
		args = append(args, *filter.WeekNumber)
		argIndex++
	}

	if filter.Year != nil {
		conditions = append(conditions, fmt.Sprintf("year = $%d", argIndex))
		args = append(args, *filter.Year)
		argIndex++
	}

	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIndex))
		args = append(args, *filter.Status)
		argIndex++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	// Count total matching records
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM selected_papers %s", whereClause)
	var totalCount int64
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&totalCount); err != nil {
		return nil, 0, fmt.Errorf("failed to count papers: %w", err)
	}

	// Query with pagination
	selectQuery := fmt.Sprintf(`
		SELECT %s FROM selected_papers
		%s
		ORDER BY selection_date DESC, created_at DESC
		LIMIT $%d OFFSET $%d`,
		paperColumns, whereClause, argIndex, argIndex+1)

	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.Query(ctx, selectQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list papers: %w", err)
	}
	defer rows.Close()

	papers := make([]*domain.SelectedPaper, 0, filter.Limit)
	for rows.Next() {
		paper, err := scanPaperFromRows(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan paper: %w", err)
		}
		papers = append(papers, paper)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating papers: %w", err)
	}

	return papers, totalCount, nil
}

// AttachPDF marks the paper pdf_uploaded with the given storage path.
func (r *PgPaperRepository) AttachPDF(ctx context.Context, id uuid.UUID, storagePath string) error {
	if strings.TrimSpace(storagePath) == "" {
		return domain.NewValidationError("storage_path", "storage path is required")
	}

	query := `
		UPDATE selected_papers
		SET pdf_storage_path = $2, status = $3, updated_at = $4
		WHERE id = $1`

	result, err := r.db.Exec(ctx, query, id, storagePath, domain.PaperStatusPDFUploaded, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to attach pdf: %w", err)
	}

	if result.RowsAffected() == 0 {
		return domain.NewNotFoundError("paper", id.String())
	}

	return nil
}

// DetachPDF clears the storage path and reverts the paper to pending_pdf.
func (r *PgPaperRepository) DetachPDF(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE selected_papers
		SET pdf_storage_path = NULL, status = $2, updated_at = $3
		WHERE id = $1`

	result, err := r.db.Exec(ctx, query, id, domain.PaperStatusPendingPDF, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to detach pdf: %w", err)
	}

	if result.RowsAffected() == 0 {
		return domain.NewNotFoundError("paper", id.String())
	}

	return nil
}

// Delete removes a paper.
func (r *PgPaperRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.Exec(ctx, `DELETE FROM selected_papers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete paper: %w", err)
	}

	if result.RowsAffected() == 0 {
		return domain.NewNotFoundError("paper", id.String())
	}

	return nil
}

// DeleteAllPending removes every paper still in pending_pdf status.
func (r *PgPaperRepository) DeleteAllPending(ctx context.Context) (int64, error) {
	result, err := r.db.Exec(ctx,
		`DELETE FROM selected_papers WHERE status = $1`, domain.PaperStatusPendingPDF)
	if err != nil {
		return 0, fmt.Errorf("failed to delete pending papers: %w", err)
	}

	return result.RowsAffected(), nil
}

// paperScanDest holds the destination pointers for scanning a SelectedPaper row.
type paperScanDest struct {
	paper domain.SelectedPaper
}

// destinations returns the slice of pointers for Scan operations.
func (d *paperScanDest) destinations() []interface{} {
	return []interface{}{
		&d.paper.ID, &d.paper.SubjectID, &d.paper.WeekNumber, &d.paper.Year,
		&d.paper.ArticleTitle, &d.paper.Authors, &d.paper.JournalName,
		&d.paper.Abstract, &d.paper.DOI, &d.paper.PubMedID,
		&d.paper.PublicationDate, &d.paper.SelectionDate,
		&d.paper.PDFStoragePath, &d.paper.Status, &d.paper.QualityScore,
		&d.paper.CreatedAt, &d.paper.UpdatedAt,
	}
}

// scanPaper scans a single row into a SelectedPaper.
func scanPaper(row pgx.Row) (*domain.SelectedPaper, error) {
	var dest paperScanDest
	if err := row.Scan(dest.destinations()...); err != nil {
		return nil, err
	}
	return &dest.paper, nil
}

// scanPaperFromRows scans the current row from pgx.Rows into a SelectedPaper.
func scanPaperFromRows(rows pgx.Rows) (*domain.SelectedPaper, error) {
	var dest paperScanDest
	if err := rows.Scan(dest.destinations()...); err != nil {
		return nil, err
	}
	return &dest.paper, nil
}
