package httpx

import (
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"

	"blog/internal/auth"
	"blog/internal/db"
	"blog/internal/forms"
	"blog/internal/metrics"
	"blog/internal/models"
)

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
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

	data := &pageData{Title: "Report post", Post: post, Themes: models.ReportThemes}
	if r.Method == http.MethodGet {
		data.Form = forms.ReportForm{}
		s.render(w, r, http.StatusOK, "report_form.html", data)
		return
	}

	form := forms.ReportFromRequest(r)
	if errs := forms.Validate(form); errs != nil {
		data.Form, data.Errors = form, errs
		s.render(w, r, http.StatusUnprocessableEntity, "report_form.html", data)
		return
	}

	uid, _ := auth.UserIDFrom(r.Context())
	rep := &models.Report{
		Theme:       models.ReportTheme(form.Theme),
		PostID:      post.ID,
		UserID:      uid,
		Description: form.Description,
	}
	if _, err := s.Store.CreateReport(r.Context(), rep); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			s.notFound(w, r)
			return
		}
		s.serverError(w, r, err)
		return
	}
	metrics.ReportFiled(form.Theme)
	s.logger(r).WithFields(logrus.Fields{"post": post.ID, "theme": form.Theme}).Info("report filed")
	redirect(w, r, postURL(post.ID))
}

// handleReportList shows only the caller's own reports.
func (s *Server) handleReportList(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFrom(r.Context())
	reps, err := s.Store.ListReportsByUser(r.Context(), uid)
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	s.render(w, r, http.StatusOK, "report_list.html", &pageData{Title: "My reports", Reports: reps})
}
