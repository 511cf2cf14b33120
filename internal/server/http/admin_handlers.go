package httpserver

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/sciencesimplified/content-service/internal/domain"
	"github.com/sciencesimplified/content-service/internal/newsletter"
	"github.com/sciencesimplified/content-service/internal/repository"
)

var validate = validator.New()

// validateRequest runs struct validation and converts failures into a
// field-level validation error.
func validateRequest(req any) error {
	if err := validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if ok := errors.As(err, &verrs); ok && len(verrs) > 0 {
			return domain.NewValidationError(verrs[0].Field(),
				fmt.Sprintf("failed validation on '%s'", verrs[0].Tag()))
		}
		return domain.NewValidationError("request", err.Error())
	}
	return nil
}

type createSubjectRequest struct {
	Name        string `json:"name" validate:"required,min=1,max=100"`
	Description string `json:"description" validate:"max=1000"`
}

func (s *Server) createSubject(w http.ResponseWriter, r *http.Request) {
	var req createSubjectRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := validateRequest(req); err != nil {
		s.writeError(w, r, err)
		return
	}

	subject := &domain.Subject{
		Name:        req.Name,
		Description: req.Description,
	}
	if err := s.subjectRepo.CreateSubject(r.Context(), subject); err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, subject)
}

type createJournalRequest struct {
	Name                string  `json:"name" validate:"required,min=1,max=200"`
	ImpactFactor        float64 `json:"impact_factor" validate:"gte=0"`
	IsInterdisciplinary bool    `json:"is_interdisciplinary"`
	ISSN                string  `json:"issn" validate:"max=20"`
}

func (s *Server) createJournal(w http.ResponseWriter, r *http.Request) {
	var req createJournalRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := validateRequest(req); err != nil {
		s.writeError(w, r, err)
		return
	}

	journal := &domain.Journal{
		Name:                req.Name,
		ImpactFactor:        req.ImpactFactor,
		IsInterdisciplinary: req.IsInterdisciplinary,
		ISSN:                req.ISSN,
	}
	if err := s.subjectRepo.CreateJournal(r.Context(), journal); err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, journal)
}

func (s *Server) listJournals(w http.ResponseWriter, r *http.Request) {
	journals, err := s.subjectRepo.ListJournals(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": journals})
}

func (s *Server) associateJournal(w http.ResponseWriter, r *http.Request) {
	journalID, err := uuidParam(r, "journalID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	subjectID, err := uuidParam(r, "subjectID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.subjectRepo.AssociateJournal(r.Context(), journalID, subjectID); err != nil {
		s.writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type selectPapersRequest struct {
	SubjectID  uuid.UUID `json:"subject_id" validate:"required"`
	WeekNumber int       `json:"week_number" validate:"gte=0,lte=6"`
	Year       int       `json:"year" validate:"gte=0"`
}

func (s *Server) selectPapers(w http.ResponseWriter, r *http.Request) {
	var req selectPapersRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := validateRequest(req); err != nil {
		s.writeError(w, r, err)
		return
	}

	papers, err := s.selector.SelectPapers(r.Context(), req.SubjectID, req.WeekNumber, req.Year)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"papers": papers,
		"count":  len(papers),
	})
}

func (s *Server) batchSelect(w http.ResponseWriter, r *http.Request) {
	report, err := s.batch.Run(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) listPapers(w http.ResponseWriter, r *http.Request) {
	filter, err := paperFilterFromQuery(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	papers, total, err := s.paperRepo.List(r.Context(), filter)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, listResponse{
		Items:  papers,
		Total:  total,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	})
}

// paperFilterFromQuery builds a paper filter from list query parameters.
func paperFilterFromQuery(r *http.Request) (repository.PaperFilter, error) {
	var filter repository.PaperFilter
	q := r.URL.Query()

	if raw := q.Get("subject_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return filter, domain.NewValidationError("subject_id", "must be a valid UUID")
		}
		filter.SubjectID = &id
	}
	if raw := q.Get("week_number"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return filter, domain.NewValidationError("week_number", "must be an integer")
		}
		filter.WeekNumber = &n
	}
	if raw := q.Get("year"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return filter, domain.NewValidationError("year", "must be an integer")
		}
		filter.Year = &n
	}
	if raw := q.Get("status"); raw != "" {
		status := domain.PaperStatus(raw)
		if status != domain.PaperStatusPendingPDF && status != domain.PaperStatusPDFUploaded {
			return filter, domain.NewValidationError("status", "unknown paper status")
		}
		filter.Status = &status
	}

	filter.Limit, filter.Offset = paginationFromQuery(r)
	if err := filter.Validate(); err != nil {
		return filter, err
	}
	return filter, nil
}

// uploadPDF attaches a source PDF to a selected paper. The upload is a
// multipart form with the file under the "file" field. Oversized uploads are
// rejected before any state changes.
func (s *Server) uploadPDF(w http.ResponseWriter, r *http.Request) {
	paperID, err := uuidParam(r, "paperID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	paper, err := s.paperRepo.GetByID(r.Context(), paperID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	// Reject clearly oversized requests before reading the body.
	if r.ContentLength > s.blobs.MaxBytes() {
		s.recordPDFUpload("failed")
		s.writeError(w, r, domain.NewQuotaError(s.blobs.MaxBytes(), r.ContentLength))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, r, domain.NewValidationError("file", "multipart file field is required"))
		return
	}
	defer func() { _ = file.Close() }()

	storagePath, err := s.blobs.SavePDF(paperID, file, header.Size)
	if err != nil {
		s.recordPDFUpload("failed")
		s.writeError(w, r, err)
		return
	}

	if err := s.paperRepo.AttachPDF(r.Context(), paperID, storagePath); err != nil {
		_ = s.blobs.RemovePDF(storagePath)
		s.recordPDFUpload("failed")
		s.writeError(w, r, err)
		return
	}
	s.recordPDFUpload("success")

	updated, err := s.paperRepo.GetByID(r.Context(), paperID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.logger.Info().
		Str("paper_id", paperID.String()).
		Str("pmid", paper.PubMedID).
		Int64("size_bytes", header.Size).
		Msg("pdf uploaded")

	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) downloadPDF(w http.ResponseWriter, r *http.Request) {
	paperID, err := uuidParam(r, "paperID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	paper, err := s.paperRepo.GetByID(r.Context(), paperID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if !paper.HasPDF() {
		s.writeError(w, r, domain.NewNotFoundError("pdf", paperID.String()))
		return
	}

	f, size, err := s.blobs.OpenPDF(*paper.PDFStoragePath)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer func() { _ = f.Close() }()

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, f)
}

func (s *Server) deletePaper(w http.ResponseWriter, r *http.Request) {
	paperID, err := uuidParam(r, "paperID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	paper, err := s.paperRepo.GetByID(r.Context(), paperID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.paperRepo.Delete(r.Context(), paperID); err != nil {
		s.writeError(w, r, err)
		return
	}

	// Orphaned PDFs are cleaned up best effort after the row is gone.
	if paper.PDFStoragePath != nil {
		if err := s.blobs.RemovePDF(*paper.PDFStoragePath); err != nil {
			s.logger.Warn().Err(err).
				Str("paper_id", paperID.String()).
				Msg("failed to remove pdf after paper delete")
		}
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) deletePendingPapers(w http.ResponseWriter, r *http.Request) {
	deleted, err := s.paperRepo.DeleteAllPending(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": deleted})
}

type generatePostsRequest struct {
	PaperIDs []uuid.UUID `json:"paper_ids"`
}

// generatePosts generates one post from an explicit paper set when paper ids
// are given, or runs the grouped generate-all pipeline when the body is empty.
func (s *Server) generatePosts(w http.ResponseWriter, r *http.Request) {
	var req generatePostsRequest
	if r.ContentLength > 0 {
		if err := decodeJSON(r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
	}

	if len(req.PaperIDs) > 0 {
		post, err := s.generator.GenerateFromPapers(r.Context(), req.PaperIDs)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, post)
		return
	}

	report, err := s.generator.GenerateAll(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) listAllPosts(w http.ResponseWriter, r *http.Request) {
	filter, err := postFilterFromQuery(r, nil)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	posts, total, err := s.postRepo.List(r.Context(), filter)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, listResponse{
		Items:  posts,
		Total:  total,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	})
}

func (s *Server) publishPost(w http.ResponseWriter, r *http.Request) {
	postID, err := uuidParam(r, "postID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	post, err := s.publisher.Publish(r.Context(), postID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

func (s *Server) publishAllPosts(w http.ResponseWriter, r *http.Request) {
	published, err := s.publisher.PublishAll(r.Context())

	body := map[string]any{"published": published}
	if err != nil {
		body["error"] = err.Error()
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) unpublishPost(w http.ResponseWriter, r *http.Request) {
	postID, err := uuidParam(r, "postID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	post, err := s.publisher.Unpublish(r.Context(), postID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

func (s *Server) deletePost(w http.ResponseWriter, r *http.Request) {
	postID, err := uuidParam(r, "postID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.postRepo.Delete(r.Context(), postID); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) deleteAllPosts(w http.ResponseWriter, r *http.Request) {
	deleted, err := s.postRepo.DeleteAll(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": deleted})
}

type sendDigestRequest struct {
	PostIDs     []uuid.UUID `json:"post_ids"`
	TestAddress string      `json:"test_address" validate:"omitempty,email"`
}

func (s *Server) sendDigest(w http.ResponseWriter, r *http.Request) {
	var req sendDigestRequest
	if r.ContentLength > 0 {
		if err := decodeJSON(r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
		if err := validateRequest(req); err != nil {
			s.writeError(w, r, err)
			return
		}
	}

	report, err := s.digest.SendDigest(r.Context(), newsletter.DigestOptions{
		PostIDs:     req.PostIDs,
		TestAddress: req.TestAddress,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) recordPDFUpload(result string) {
	if s.metrics != nil {
		s.metrics.RecordPDFUpload(result)
	}
}

// paginationFromQuery reads limit and offset query parameters, ignoring
// malformed values so repository defaults apply.
func paginationFromQuery(r *http.Request) (limit, offset int) {
	q := r.URL.Query()
	if raw := q.Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}
	if raw := q.Get("offset"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			offset = n
		}
	}
	return limit, offset
}

// postFilterFromQuery builds a post filter from list query parameters.
// A non-nil forcedStatus pins the status regardless of query input.
func postFilterFromQuery(r *http.Request, forcedStatus *domain.PostStatus) (repository.PostFilter, error) {
	var filter repository.PostFilter
	q := r.URL.Query()

	if forcedStatus != nil {
		filter.Status = forcedStatus
	} else if raw := q.Get("status"); raw != "" {
		status := domain.PostStatus(raw)
		if status != domain.PostStatusDraft && status != domain.PostStatusPublished {
			return filter, domain.NewValidationError("status", "unknown post status")
		}
		filter.Status = &status
	}

	if raw := q.Get("subject_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return filter, domain.NewValidationError("subject_id", "must be a valid UUID")
		}
		filter.SubjectID = &id
	}
	if raw := q.Get("published_since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, domain.NewValidationError("published_since", "must be an RFC 3339 timestamp")
		}
		filter.PublishedSince = &since
	}

	filter.Limit, filter.Offset = paginationFromQuery(r)
	if err := filter.Validate(); err != nil {
		return filter, err
	}
	return filter, nil
}
