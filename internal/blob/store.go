// Package blob stores uploaded paper PDFs on a filesystem abstraction.
package blob

import (
	"bytes"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/sciencesimplified/content-service/internal/domain"
)

const (
	// DefaultMaxBytes is the upload size limit when none is configured.
	DefaultMaxBytes = 100 * 1024 * 1024 // 100MB

	pdfExtension = ".pdf"
)

// pdfMagic is the signature every PDF file starts with.
var pdfMagic = []byte("%PDF-")

// Config holds blob store configuration.
type Config struct {
	// Root is the directory PDFs are stored under.
	Root string
	// MaxBytes is the upload size limit. Default: 100MB.
	MaxBytes int64
}

// Store persists paper PDFs keyed by paper id. The backing filesystem is
// injectable so tests run against an in-memory filesystem.
type Store struct {
	fs       afero.Fs
	root     string
	maxBytes int64
	logger   zerolog.Logger
}

// NewStore creates a Store rooted at cfg.Root, creating the directory if needed.
func NewStore(fs afero.Fs, cfg Config, logger zerolog.Logger) (*Store, error) {
	if strings.TrimSpace(cfg.Root) == "" {
		return nil, fmt.Errorf("blob store root directory is required")
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = DefaultMaxBytes
	}

	if err := fs.MkdirAll(cfg.Root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create blob store root %s: %w", cfg.Root, err)
	}

	return &Store{
		fs:       fs,
		root:     cfg.Root,
		maxBytes: cfg.MaxBytes,
		logger:   logger,
	}, nil
}

// MaxBytes returns the configured upload size limit.
func (s *Store) MaxBytes() int64 {
	return s.maxBytes
}

// SavePDF stores the PDF content for the given paper and returns its storage
// path. The declared size is checked against the limit before any bytes are
// read, so oversized uploads are rejected without touching the filesystem.
// Returns domain.ErrQuotaExceeded when the declared or actual size exceeds
// the limit, and domain.ErrInvalidInput when the content is not a PDF.
func (s *Store) SavePDF(paperID uuid.UUID, r io.Reader, declaredSize int64) (string, error) {
	if declaredSize > s.maxBytes {
		return "", domain.NewQuotaError(s.maxBytes, declaredSize)
	}

	// Sniff the magic bytes before committing anything to disk.
	header := make([]byte, len(pdfMagic))
	n, err := io.ReadFull(r, header)
	if err != nil && err != io.ErrUnexpectedEOF {
		return "", fmt.Errorf("failed to read upload: %w", err)
	}
	if !bytes.HasPrefix(header[:n], pdfMagic) {
		return "", domain.NewValidationError("file", "content is not a PDF")
	}

	storagePath := s.pathFor(paperID)
	tmpPath := storagePath + ".tmp"

	f, err := s.fs.Create(tmpPath)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", tmpPath, err)
	}

	// Read one extra byte past the limit to detect oversized content whose
	// declared size lied.
	limited := io.LimitReader(io.MultiReader(bytes.NewReader(header[:n]), r), s.maxBytes+1)
	written, err := io.Copy(f, limited)
	if closeErr := f.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	if err != nil {
		_ = s.fs.Remove(tmpPath)
		return "", fmt.Errorf("failed to write %s: %w", tmpPath, err)
	}
	if written > s.maxBytes {
		_ = s.fs.Remove(tmpPath)
		return "", domain.NewQuotaError(s.maxBytes, written)
	}

	if err := s.fs.Rename(tmpPath, storagePath); err != nil {
		_ = s.fs.Remove(tmpPath)
		return "", fmt.Errorf("failed to finalize %s: %w", storagePath, err)
	}

	s.logger.Debug().
		Str("paper_id", paperID.String()).
		Str("path", storagePath).
		Int64("size_bytes", written).
		Msg("pdf stored")

	return storagePath, nil
}

// OpenPDF opens a stored PDF for reading and reports its size.
// Returns domain.ErrNotFound if no file exists at the path.
func (s *Store) OpenPDF(storagePath string) (io.ReadCloser, int64, error) {
	info, err := s.fs.Stat(storagePath)
	if err != nil {
		return nil, 0, domain.NewNotFoundError("pdf", storagePath)
	}

	f, err := s.fs.Open(storagePath)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open %s: %w", storagePath, err)
	}

	return f, info.Size(), nil
}

// RemovePDF deletes a stored PDF. Removing a path that does not exist is not
// an error, so cleanup after a failed attach stays idempotent.
func (s *Store) RemovePDF(storagePath string) error {
	if err := s.fs.Remove(storagePath); err != nil {
		if exists, statErr := afero.Exists(s.fs, storagePath); statErr == nil && !exists {
			return nil
		}
		return fmt.Errorf("failed to remove %s: %w", storagePath, err)
	}
	return nil
}

// pathFor returns the storage path for a paper's PDF.
func (s *Store) pathFor(paperID uuid.UUID) string {
	return path.Join(s.root, paperID.String()+pdfExtension)
}
