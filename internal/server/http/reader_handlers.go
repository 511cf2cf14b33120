package httpserver

import (
	"net/http"
	"strings"

	"github.com/sciencesimplified/content-service/internal/domain"
)

// listSubjects lists subjects for the reader navigation. Store failures
// degrade to an empty list so the public pages stay up.
func (s *Server) listSubjects(w http.ResponseWriter, r *http.Request) {
	subjects, err := s.subjectRepo.ListSubjects(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Str("path", r.URL.Path).Msg("subject listing failed, serving empty list")
		subjects = []*domain.Subject{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": subjects})
}

// listPublishedPosts lists reader-visible posts. The status is pinned to
// published regardless of query input.
func (s *Server) listPublishedPosts(w http.ResponseWriter, r *http.Request) {
	status := domain.PostStatusPublished
	filter, err := postFilterFromQuery(r, &status)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	posts, total, err := s.postRepo.List(r.Context(), filter)
	if err != nil {
		// Same degradation as the subject listing: readers get an empty
		// page, not an error page.
		s.logger.Error().Err(err).Str("path", r.URL.Path).Msg("post listing failed, serving empty list")
		posts, total = []*domain.BlogPost{}, 0
	}

	writeJSON(w, http.StatusOK, listResponse{
		Items:  posts,
		Total:  total,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	})
}

// getPublishedPost returns a single published post with its citations.
// Drafts are indistinguishable from missing posts on the reader surface.
func (s *Server) getPublishedPost(w http.ResponseWriter, r *http.Request) {
	postID, err := uuidParam(r, "postID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	post, err := s.postRepo.GetByID(r.Context(), postID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if !post.IsPublished() {
		s.writeError(w, r, domain.NewNotFoundError("post", postID.String()))
		return
	}

	citations, err := s.postRepo.Citations(r.Context(), postID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"post":      post,
		"citations": citations,
	})
}

type subscribeRequest struct {
	Email string `json:"email" validate:"required,email"`
}

func (s *Server) subscribe(w http.ResponseWriter, r *http.Request) {
	var req subscribeRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if err := validateRequest(req); err != nil {
		s.writeError(w, r, err)
		return
	}

	subscriber, err := s.subscriberRepo.Subscribe(r.Context(), req.Email)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, subscriber)
}

func (s *Server) unsubscribe(w http.ResponseWriter, r *http.Request) {
	var req subscribeRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if err := validateRequest(req); err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.subscriberRepo.Unsubscribe(r.Context(), req.Email); err != nil {
		s.writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
