package httpx

import (
	"errors"
	"net/http"
	"strings"

	"blog/internal/auth"
	"blog/internal/forms"
	"blog/internal/metrics"
	"blog/internal/models"
)

// ---------------------------------------------------------------------------------
// ------------Register-------------------------------------------------------------

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if _, ok := auth.UserIDFrom(r.Context()); ok {
		redirect(w, r, "/")
		return
	}
	if r.Method == http.MethodGet {
		s.render(w, r, http.StatusOK, "register.html", &pageData{Title: "Sign up", Form: forms.RegisterForm{}})
		return
	}

	form := forms.RegisterFromRequest(r)
	errs := forms.Validate(form)
	if errs == nil {
		_, err := s.Auth.Register(r.Context(), form.Username, form.Email, form.Password1)
		switch {
		case errors.Is(err, auth.ErrUsernameTaken):
			errs = forms.Errors{"username": "A user with that username already exists."}
		case err != nil:
			s.serverError(w, r, err)
			return
		default:
			redirect(w, r, "/auth/login")
			return
		}
	}
	form.Password1, form.Password2 = "", ""
	s.render(w, r, http.StatusUnprocessableEntity, "register.html", &pageData{Title: "Sign up", Form: form, Errors: errs})
}

// ---------------------------------------------------------------------------------
// ------------Login / Logout-------------------------------------------------------

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	next := safeNext(r.FormValue("next"))
	if _, ok := auth.UserIDFrom(r.Context()); ok {
		redirect(w, r, next)
		return
	}
	if r.Method == http.MethodGet {
		s.render(w, r, http.StatusOK, "login.html", &pageData{Title: "Log in", Form: forms.LoginForm{}, Next: next})
		return
	}

	form := forms.LoginFromRequest(r)
	status := http.StatusUnprocessableEntity
	errs := forms.Validate(form)
	if errs == nil {
		sid, _, err := s.Auth.Login(r.Context(), form.Username, form.Password)
		switch {
		case err == nil:
			metrics.Login("ok")
			s.setSessionCookie(w, sid)
			redirect(w, r, next)
			return
		case errors.Is(err, auth.ErrThrottled):
			metrics.Login("throttled")
			status = http.StatusTooManyRequests
			errs = forms.Errors{forms.NonField: "Too many failed login attempts. Please try again later."}
		case errors.Is(err, auth.ErrInvalidLogin):
			metrics.Login("fail")
			errs = forms.Errors{forms.NonField: "Please enter a correct username and password. Note that both fields may be case-sensitive."}
		default:
			s.serverError(w, r, err)
			return
		}
	}
	form.Password = ""
	s.render(w, r, status, "login.html", &pageData{Title: "Log in", Form: form, Errors: errs, Next: next})
}

// safeNext keeps post-login redirects on this site.
func safeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return "/"
	}
	return next
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(CookieName); err == nil {
		if err := s.Auth.Logout(r.Context(), c.Value); err != nil {
			s.serverError(w, r, err)
			return
		}
	}
	s.clearSessionCookie(w)
	redirect(w, r, "/auth/login")
}

// ---------------------------------------------------------------------------------
// ------------Password / Profile---------------------------------------------------

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		s.render(w, r, http.StatusOK, "change_password.html", &pageData{Title: "Change password", Form: forms.ChangePasswordForm{}})
		return
	}

	form := forms.ChangePasswordFromRequest(r)
	errs := forms.Validate(form)
	if errs == nil {
		uid, _ := auth.UserIDFrom(r.Context())
		var sid string
		if c, err := r.Cookie(CookieName); err == nil {
			sid = c.Value
		}
		err := s.Auth.ChangePassword(r.Context(), uid, sid, form.OldPassword, form.NewPassword1)
		switch {
		case err == nil:
			s.logger(r).Info("password changed")
			redirect(w, r, "/accounts/profile/")
			return
		case errors.Is(err, auth.ErrWrongPassword):
			errs = forms.Errors{"old_password": "Your old password was entered incorrectly. Please enter it again."}
		default:
			s.serverError(w, r, err)
			return
		}
	}
	s.render(w, r, http.StatusUnprocessableEntity, "change_password.html", &pageData{
		Title:  "Change password",
		Form:   forms.ChangePasswordForm{},
		Errors: errs,
	})
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.UserFrom(r.Context())
	s.render(w, r, http.StatusOK, "profile.html", &pageData{Title: "Profile", Profile: u})
}

// handleUserUpdate edits account fields; users may only edit themselves.
func (s *Server) handleUserUpdate(w http.ResponseWriter, r *http.Request) {
	id, _ := idParam(r)
	uid, _ := auth.UserIDFrom(r.Context())
	if id != uid {
		s.forbidden(w, r)
		return
	}
	u, err := s.Auth.User(r.Context(), id)
	if errors.Is(err, auth.ErrNoUser) {
		s.notFound(w, r)
		return
	}
	if err != nil {
		s.serverError(w, r, err)
		return
	}

	if r.Method == http.MethodGet {
		s.render(w, r, http.StatusOK, "user_form.html", &pageData{
			Title:   "Edit profile",
			Profile: u,
			Form:    forms.UserForm{Username: u.Username, Email: u.Email, FirstName: u.FirstName, LastName: u.LastName},
		})
		return
	}

	form := forms.UserFromRequest(r)
	errs := forms.Validate(form)
	if errs == nil {
		err := s.Auth.UpdateUser(r.Context(), &models.User{
			ID:        u.ID,
			Username:  form.Username,
			Email:     form.Email,
			FirstName: form.FirstName,
			LastName:  form.LastName,
		})
		switch {
		case err == nil:
			redirect(w, r, "/")
			return
		case errors.Is(err, auth.ErrUsernameTaken):
			errs = forms.Errors{"username": "A user with that username already exists."}
		case errors.Is(err, auth.ErrNoUser):
			s.notFound(w, r)
			return
		default:
			s.serverError(w, r, err)
			return
		}
	}
	s.render(w, r, http.StatusUnprocessableEntity, "user_form.html", &pageData{
		Title:   "Edit profile",
		Profile: u,
		Form:    form,
		Errors:  errs,
	})
}
