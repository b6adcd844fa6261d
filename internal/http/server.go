package httpx

import (
	"context"
	"io/fs"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"blog/internal/app"
	"blog/internal/auth"
	"blog/internal/forms"
	"blog/internal/media"
	"blog/internal/metrics"
	"blog/internal/models"
	"blog/internal/util"
	"blog/web"
)

// Store is the data the handlers read and write.
type Store interface {
	CountPosts(ctx context.Context, authorID int64) (int, error)
	ListPosts(ctx context.Context, authorID int64, limit, offset int) ([]models.Post, error)
	GetPost(ctx context.Context, id int64) (*models.Post, error)
	CreatePost(ctx context.Context, p *models.Post, media []models.Media) (int64, error)
	UpdatePost(ctx context.Context, id int64, title, content string) error
	DeletePost(ctx context.Context, id int64) ([]string, error)

	AddComment(ctx context.Context, c *models.Comment) (int64, error)
	ListComments(ctx context.Context, postID int64) ([]models.Comment, error)

	ToggleReaction(ctx context.Context, postID, userID int64, kind models.Reaction) (models.Reaction, error)
	ReactionOf(ctx context.Context, postID, userID int64) (models.Reaction, error)

	CreateReport(ctx context.Context, r *models.Report) (int64, error)
	ListReportsByUser(ctx context.Context, userID int64) ([]models.Report, error)

	Ping(ctx context.Context) error
}

// Identity manages accounts and sessions.
type Identity interface {
	Register(ctx context.Context, username, email, password string) (int64, error)
	Login(ctx context.Context, username, password string) (string, int64, error)
	Logout(ctx context.Context, sid string) error
	UserFromSession(ctx context.Context, sid string) (*models.User, time.Time, error)
	User(ctx context.Context, id int64) (*models.User, error)
	UpdateUser(ctx context.Context, u *models.User) error
	ChangePassword(ctx context.Context, uid int64, keepSID, old, next string) error
	Lifetime() time.Duration
}

const (
	homePageSize = 30
	listPageSize = 50
)

type Server struct {
	Store Store
	Auth  Identity
	Media media.Storage
	Cfg   app.Config
	Log   logrus.FieldLogger

	Router  chi.Router
	views   *util.Renderer
	limiter *WriteLimiter
}

func NewServer(cfg app.Config, store Store, id Identity, st media.Storage, log logrus.FieldLogger) (*Server, error) {
	views, err := util.NewRenderer(web.FS)
	if err != nil {
		return nil, err
	}
	s := &Server{
		Store:   store,
		Auth:    id,
		Media:   st,
		Cfg:     cfg,
		Log:     log,
		Router:  chi.NewRouter(),
		views:   views,
		limiter: NewWriteLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst),
	}
	s.routes()
	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.Router.ServeHTTP(w, r) }

// Limiter exposes the write limiter so its idle entries can be swept.
func (s *Server) Limiter() *WriteLimiter { return s.limiter }

func (s *Server) routes() {
	r := s.Router
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.withAccessLog)
	r.Use(metrics.InstrumentHandler)
	r.Use(middleware.Recoverer)
	r.Use(s.withSession)
	r.Use(s.limiter.Handler(s.tooManyRequests))

	r.NotFound(s.notFound)
	r.MethodNotAllowed(s.methodNotAllowed)

	// Uploads stream up to ten images, so they get their own deadline
	// instead of the per-request timeout.
	r.With(s.requireAuth, s.withUploadDeadline).Post("/posts/create", s.handlePostCreate)

	r.Group(func(r chi.Router) {
		r.Use(s.withTimeout)

		static, _ := fs.Sub(web.FS, "static")
		r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(static))))
		r.Handle("/media/*", http.StripPrefix("/media/", s.Media.Handler()))
		r.Handle("/metrics", metrics.Handler())
		r.Get("/healthz", s.handleHealthz)

		r.Get("/", s.handleIndex)

		r.Route("/auth", func(r chi.Router) {
			r.Get("/register", s.handleRegister)
			r.Post("/register", s.handleRegister)
			r.Get("/login", s.handleLogin)
			r.Post("/login", s.handleLogin)
			r.With(s.requireAuth).Post("/logout", s.handleLogout)
			r.With(s.requireAuth).Get("/change-password", s.handleChangePassword)
			r.With(s.requireAuth).Post("/change-password", s.handleChangePassword)
		})

		r.Route("/accounts/profile", func(r chi.Router) {
			r.Use(s.requireAuth)
			r.Get("/", s.handleProfile)
			r.Get("/posts", s.handleMyPosts)
			r.Get("/update/{id:[0-9]+}", s.handleUserUpdate)
			r.Post("/update/{id:[0-9]+}", s.handleUserUpdate)
		})

		r.Get("/posts/", s.handlePostList)
		r.Get("/posts/{id:[0-9]+}", s.handlePostDetail)

		r.Group(func(r chi.Router) {
			r.Use(s.requireAuth)

			r.Get("/posts/create", s.handlePostCreate)
			r.Get("/posts/update/{id:[0-9]+}", s.handlePostUpdate)
			r.Post("/posts/update/{id:[0-9]+}", s.handlePostUpdate)
			r.Get("/posts/delete/{id:[0-9]+}", s.handlePostDelete)
			r.Post("/posts/delete/{id:[0-9]+}", s.handlePostDelete)

			r.Post("/posts/{id:[0-9]+}/like", s.handleLike)
			r.Post("/posts/{id:[0-9]+}/dislike", s.handleDislike)
			r.Get("/posts/{id:[0-9]+}/comment", s.handleComment)
			r.Post("/posts/{id:[0-9]+}/comment", s.handleComment)
			r.Get("/posts/{id:[0-9]+}/report", s.handleReport)
			r.Post("/posts/{id:[0-9]+}/report", s.handleReport)

			r.Get("/reports/", s.handleReportList)
		})
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.Store.Ping(ctx); err != nil {
		s.logger(r).WithError(err).Warn("health check failed")
		http.Error(w, "database unavailable", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

// ----------------------------
// Rendering and error pages
// ----------------------------

// pageData is what every template receives; handlers fill the parts they use.
type pageData struct {
	Title   string
	User    *models.User
	Message string

	Page     *models.PostPage
	PageURL  string
	Post     *models.Post
	Comments []models.Comment
	Reaction models.Reaction
	CanEdit  bool

	Reports []models.Report
	Themes  []models.ReportTheme
	Profile *models.User

	Form   any
	Errors forms.Errors
	Media  []mediaSlot
	Next   string
}

type mediaSlot struct {
	Index  int
	Form   forms.MediaForm
	Errors forms.Errors
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, data *pageData) {
	if data == nil {
		data = &pageData{}
	}
	data.User, _ = auth.UserFrom(r.Context())
	if err := s.views.Render(w, status, name, data); err != nil {
		s.logger(r).WithError(err).WithField("template", name).Error("render failed")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func (s *Server) errorPage(w http.ResponseWriter, r *http.Request, status int, msg string) {
	s.render(w, r, status, "error.html", &pageData{Title: http.StatusText(status), Message: msg})
}

func (s *Server) notFound(w http.ResponseWriter, r *http.Request) {
	s.errorPage(w, r, http.StatusNotFound, "The page you are looking for does not exist.")
}

func (s *Server) forbidden(w http.ResponseWriter, r *http.Request) {
	s.errorPage(w, r, http.StatusForbidden, "You are not allowed to do that.")
}

func (s *Server) methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	s.errorPage(w, r, http.StatusMethodNotAllowed, "This address does not accept "+r.Method+" requests.")
}

func (s *Server) tooManyRequests(w http.ResponseWriter, r *http.Request) {
	s.errorPage(w, r, http.StatusTooManyRequests, "Too many requests. Slow down and try again.")
}

func (s *Server) serverError(w http.ResponseWriter, r *http.Request, err error) {
	s.logger(r).WithError(err).Error("request failed")
	s.errorPage(w, r, http.StatusInternalServerError, "Something went wrong on our side.")
}

func (s *Server) logger(r *http.Request) logrus.FieldLogger {
	l := s.Log.WithField("request_id", middleware.GetReqID(r.Context()))
	if uid, ok := auth.UserIDFrom(r.Context()); ok {
		l = l.WithField("uid", uid)
	}
	return l
}

// idParam reads the numeric {id} route parameter; the route pattern
// already guarantees digits.
func idParam(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

func redirect(w http.ResponseWriter, r *http.Request, to string) {
	http.Redirect(w, r, to, http.StatusSeeOther)
}

func postURL(id int64) string { return "/posts/" + strconv.FormatInt(id, 10) }
