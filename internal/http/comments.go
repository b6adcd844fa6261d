package httpx

import (
	"errors"
	"net/http"

	"blog/internal/auth"
	"blog/internal/db"
	"blog/internal/forms"
	"blog/internal/metrics"
	"blog/internal/models"
)

// handleComment adds a comment. GET just goes back to the post; an invalid
// body redisplays the post with the form errors.
func (s *Server) handleComment(w http.ResponseWriter, r *http.Request) {
	id, _ := idParam(r)
	if r.Method == http.MethodGet {
		redirect(w, r, postURL(id))
		return
	}

	post, err := s.Store.GetPost(r.Context(), id)
	if errors.Is(err, db.ErrNotFound) {
		s.notFound(w, r)
		return
	}
	if err != nil {
		s.serverError(w, r, err)
		return
	}

	form := forms.CommentFromRequest(r)
	if errs := forms.Validate(form); errs != nil {
		s.renderDetail(w, r, http.StatusUnprocessableEntity, post, form, errs)
		return
	}

	uid, _ := auth.UserIDFrom(r.Context())
	_, err = s.Store.AddComment(r.Context(), &models.Comment{PostID: post.ID, UserID: uid, Body: form.Body})
	if errors.Is(err, db.ErrNotFound) {
		s.notFound(w, r)
		return
	}
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	metrics.CommentAdded()
	redirect(w, r, postURL(post.ID))
}
