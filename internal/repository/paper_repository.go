package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/sciencesimplified/content-service/internal/domain"
)

// PaperRepository manages selected papers and their PDF lifecycle.
type PaperRepository interface {
	// CreateMany persists the given papers in a single bulk insert.
	// Missing ids and timestamps are filled in. Papers are created with
	// whatever status they carry; the selector sets pending_pdf.
	CreateMany(ctx context.Context, papers []*domain.SelectedPaper) error

	// GetByID retrieves a paper by its UUID.
	// Returns domain.ErrNotFound if no matching paper exists.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.SelectedPaper, error)

	// GetByIDs retrieves the papers with the given ids.
	// Missing ids are silently omitted from the result.
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]*domain.SelectedPaper, error)

	// List retrieves papers matching the filter criteria, most recently
	// selected first. Returns the matching papers and total count.
	List(ctx context.Context, filter PaperFilter) ([]*domain.SelectedPaper, int64, error)

	// AttachPDF marks the paper pdf_uploaded with the given storage path.
	// Returns domain.ErrNotFound if the paper does not exist.
	AttachPDF(ctx context.Context, id uuid.UUID, storagePath string) error

	// DetachPDF clears the storage path and reverts the paper to pending_pdf.
	// Returns domain.ErrNotFound if the paper does not exist.
	DetachPDF(ctx context.Context, id uuid.UUID) error

	// Delete removes a paper. Citations referencing it are removed by the
	// database cascade. Returns domain.ErrNotFound if it does not exist.
	Delete(ctx context.Context, id uuid.UUID) error

	// DeleteAllPending removes every paper still in pending_pdf status and
	// returns the number of rows deleted.
	DeleteAllPending(ctx context.Context) (int64, error)
}

// PaperFilter specifies criteria for listing selected papers.
type PaperFilter struct {
	// SubjectID filters to papers selected for a specific subject (optional).
	SubjectID *uuid.UUID

	// WeekNumber filters to a specific selection week (optional).
	WeekNumber *int

	// Year filters to a specific selection year (optional).
	Year *int

	// Status filters to papers in a specific PDF lifecycle status (optional).
	Status *domain.PaperStatus

	// Limit specifies maximum number of results (default: 100, max: 1000).
	Limit int

	// Offset specifies the starting position for pagination.
	Offset int
}

// Validate checks if the filter has valid values and sets defaults.
func (f *PaperFilter) Validate() error {
	applyPaginationDefaults(&f.Limit, &f.Offset)
	return nil
}
