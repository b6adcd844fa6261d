package httpx

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"blog/internal/auth"
	"blog/internal/db"
	"blog/internal/forms"
	"blog/internal/media"
	"blog/internal/metrics"
	"blog/internal/models"
)

// ------------------------------------------------------------------------------
// ------------Listings----------------------------------------------------------

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.listPosts(w, r, 0, homePageSize, "index.html", "Home", "/")
}

func (s *Server) handlePostList(w http.ResponseWriter, r *http.Request) {
	s.listPosts(w, r, 0, listPageSize, "post_list.html", "All posts", "/posts/")
}

func (s *Server) handleMyPosts(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFrom(r.Context())
	s.listPosts(w, r, uid, listPageSize, "post_list.html", "My posts", "/accounts/profile/posts")
}

func (s *Server) listPosts(w http.ResponseWriter, r *http.Request, authorID int64, size int, tmpl, title, pageURL string) {
	ctx := r.Context()
	total, err := s.Store.CountPosts(ctx, authorID)
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	n, ok := resolvePage(r.URL.Query().Get("page"), total, size)
	if !ok {
		s.notFound(w, r)
		return
	}
	posts, err := s.Store.ListPosts(ctx, authorID, size, models.Offset(n, size))
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	s.render(w, r, http.StatusOK, tmpl, &pageData{
		Title:   title,
		Page:    &models.PostPage{Posts: posts, Number: n, Size: size, Total: total},
		PageURL: pageURL,
	})
}

// ------------------------------------------------------------------------------
// ------------Detail------------------------------------------------------------

func (s *Server) handlePostDetail(w http.ResponseWriter, r *http.Request) {
	id, _ := idParam(r)
	post, err := s.Store.GetPost(r.Context(), id)
	if errors.Is(err, db.ErrNotFound) {
		s.notFound(w, r)
		return
	}
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	s.renderDetail(w, r, http.StatusOK, post, forms.CommentForm{}, nil)
}

// renderDetail shows a post with its comments and the comment form, which
// carries errors when a submission was rejected.
func (s *Server) renderDetail(w http.ResponseWriter, r *http.Request, status int, post *models.Post, form forms.CommentForm, errs forms.Errors) {
	ctx := r.Context()
	comments, err := s.Store.ListComments(ctx, post.ID)
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	data := &pageData{
		Title:    post.Title,
		Post:     post,
		Comments: comments,
		Form:     form,
		Errors:   errs,
	}
	if uid, ok := auth.UserIDFrom(ctx); ok {
		if data.Reaction, err = s.Store.ReactionOf(ctx, post.ID, uid); err != nil {
			s.serverError(w, r, err)
			return
		}
		data.CanEdit = auth.CanMutate(uid, post)
	}
	s.render(w, r, status, "post_detail.html", data)
}

// ------------------------------------------------------------------------------
// ------------Create------------------------------------------------------------

func emptySlots() []mediaSlot {
	slots := make([]mediaSlot, models.MaxMediaPerPost)
	for i := range slots {
		slots[i].Index = i
	}
	return slots
}

func (s *Server) handlePostCreate(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		s.render(w, r, http.StatusOK, "post_form.html", &pageData{
			Title: "New post",
			Form:  forms.PostForm{},
			Media: emptySlots(),
		})
		return
	}

	uid, _ := auth.UserIDFrom(r.Context())
	limit := s.Cfg.MaxUploadBytes*models.MaxMediaPerPost + 1<<20
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(32 << 20); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			s.errorPage(w, r, http.StatusRequestEntityTooLarge, "The upload is too large.")
			return
		}
		s.errorPage(w, r, http.StatusBadRequest, "The form could not be read.")
		return
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	form := forms.PostFromRequest(r)
	errs := forms.Validate(form)
	slots := forms.MediaFromRequest(r)
	slotErrs := forms.ValidateMedia(slots)

	uploads := make(map[int]media.Upload)
	for i, m := range slots {
		if m.File == nil || (slotErrs != nil && slotErrs[i] != nil) {
			continue
		}
		u, err := media.Inspect(m.File, s.Cfg.MaxUploadBytes)
		if err != nil {
			if !errors.Is(err, media.ErrNotImage) && !errors.Is(err, media.ErrTooLarge) {
				s.serverError(w, r, err)
				return
			}
			if slotErrs == nil {
				slotErrs = make([]forms.Errors, len(slots))
			}
			slotErrs[i] = forms.Errors{"file": capitalize(err.Error()) + "."}
			continue
		}
		uploads[i] = u
	}

	if errs.Any() || slotErrs != nil {
		view := make([]mediaSlot, len(slots))
		for i, m := range slots {
			view[i] = mediaSlot{Index: i, Form: m}
			if slotErrs != nil {
				view[i].Errors = slotErrs[i]
			}
		}
		s.render(w, r, http.StatusUnprocessableEntity, "post_form.html", &pageData{
			Title:  "New post",
			Form:   form,
			Errors: errs,
			Media:  view,
		})
		return
	}

	var (
		rows []models.Media
		keys []string
	)
	for i, m := range slots {
		if m.Empty() {
			continue
		}
		row := models.Media{URL: m.URL}
		if u, ok := uploads[i]; ok {
			key, err := media.Save(r.Context(), s.Media, u)
			if err != nil {
				s.removeMedia(r, keys)
				s.serverError(w, r, err)
				return
			}
			keys = append(keys, key)
			row.File = key
		}
		rows = append(rows, row)
	}

	post := &models.Post{Title: form.Title, Content: form.Content, AuthorID: uid}
	if _, err := s.Store.CreatePost(r.Context(), post, rows); err != nil {
		s.removeMedia(r, keys)
		s.serverError(w, r, err)
		return
	}
	metrics.PostCreated()
	s.logger(r).WithFields(logrus.Fields{"post": post.ID, "media": len(rows)}).Info("post created")
	redirect(w, r, "/")
}

// removeMedia deletes stored objects on a best-effort basis, detached from
// the request so a cancelled client does not leave orphans behind.
func (s *Server) removeMedia(r *http.Request, keys []string) {
	if len(keys) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), 10*time.Second)
	defer cancel()
	for _, k := range keys {
		if err := s.Media.Remove(ctx, k); err != nil {
			s.logger(r).WithError(err).WithField("key", k).Warn("remove media object")
		}
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	b := []byte(s)
	if b[0] >= 'a' && b[0] <= 'z' {
		b[0] -= 'a' - 'A'
	}
	return string(b)
}

// ------------------------------------------------------------------------------
// ------------Update / Delete (author only)-------------------------------------

// ownedPost loads the {id} post and checks the caller may change it. It
// writes the error response itself and returns nil when the caller must stop.
func (s *Server) ownedPost(w http.ResponseWriter, r *http.Request) *models.Post {
	id, _ := idParam(r)
	post, err := s.Store.GetPost(r.Context(), id)
	if errors.Is(err, db.ErrNotFound) {
		s.notFound(w, r)
		return nil
	}
	if err != nil {
		s.serverError(w, r, err)
		return nil
	}
	uid, _ := auth.UserIDFrom(r.Context())
	if !auth.CanMutate(uid, post) {
		s.logger(r).WithField("post", post.ID).Warn("forbidden post mutation")
		s.forbidden(w, r)
		return nil
	}
	return post
}

func (s *Server) handlePostUpdate(w http.ResponseWriter, r *http.Request) {
	post := s.ownedPost(w, r)
	if post == nil {
		return
	}
	if r.Method == http.MethodGet {
		s.render(w, r, http.StatusOK, "post_form.html", &pageData{
			Title: "Edit post",
			Post:  post,
			Form:  forms.PostForm{Title: post.Title, Content: post.Content},
		})
		return
	}

	form := forms.PostFromRequest(r)
	if errs := forms.Validate(form); errs != nil {
		s.render(w, r, http.StatusUnprocessableEntity, "post_form.html", &pageData{
			Title:  "Edit post",
			Post:   post,
			Form:   form,
			Errors: errs,
		})
		return
	}
	err := s.Store.UpdatePost(r.Context(), post.ID, form.Title, form.Content)
	if errors.Is(err, db.ErrNotFound) {
		s.notFound(w, r)
		return
	}
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	redirect(w, r, postURL(post.ID))
}

func (s *Server) handlePostDelete(w http.ResponseWriter, r *http.Request) {
	post := s.ownedPost(w, r)
	if post == nil {
		return
	}
	if r.Method == http.MethodGet {
		s.render(w, r, http.StatusOK, "post_delete.html", &pageData{Title: "Delete post", Post: post})
		return
	}

	files, err := s.Store.DeletePost(r.Context(), post.ID)
	if errors.Is(err, db.ErrNotFound) {
		s.notFound(w, r)
		return
	}
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	s.removeMedia(r, files)
	metrics.PostDeleted()
	s.logger(r).WithField("post", post.ID).Info("post deleted")
	redirect(w, r, "/posts/")
}
