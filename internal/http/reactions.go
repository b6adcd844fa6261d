package httpx

import (
	"errors"
	"net/http"

	"blog/internal/auth"
	"blog/internal/db"
	"blog/internal/metrics"
	"blog/internal/models"
)

func (s *Server) handleLike(w http.ResponseWriter, r *http.Request) {
	s.toggle(w, r, models.ReactionLike)
}

func (s *Server) handleDislike(w http.ResponseWriter, r *http.Request) {
	s.toggle(w, r, models.ReactionDislike)
}

func (s *Server) toggle(w http.ResponseWriter, r *http.Request, kind models.Reaction) {
	id, _ := idParam(r)
	uid, _ := auth.UserIDFrom(r.Context())

	got, err := s.Store.ToggleReaction(r.Context(), id, uid, kind)
	if errors.Is(err, db.ErrNotFound) {
		s.notFound(w, r)
		return
	}
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	metrics.Reaction(kind.String(), got.String())
	redirect(w, r, postURL(id))
}
