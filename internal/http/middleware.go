package httpx

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"blog/internal/auth"
)

const CookieName = "session_id"

// withSession resolves the session cookie to a user and puts it in the
// request context. Unknown or expired sessions are treated as anonymous and
// their cookie is cleared.
func (s *Server) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie(CookieName)
		if err != nil || c.Value == "" {
			next.ServeHTTP(w, r)
			return
		}
		u, exp, err := s.Auth.UserFromSession(r.Context(), c.Value)
		switch {
		case err == nil && exp.After(time.Now()):
			r = r.WithContext(auth.WithUser(r.Context(), u))
		case err == nil || errors.Is(err, auth.ErrNoSession):
			s.logger(r).Debug("stale session cookie")
			s.clearSessionCookie(w)
		default:
			s.logger(r).WithError(err).Warn("session lookup failed")
		}
		next.ServeHTTP(w, r)
	})
}

// requireAuth sends anonymous visitors to the login page, remembering where
// they were going.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := auth.UserIDFrom(r.Context()); !ok {
			redirect(w, r, "/auth/login?next="+url.QueryEscape(r.URL.RequestURI()))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) setSessionCookie(w http.ResponseWriter, sid string) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    sid,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.Cfg.SecureCookies,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Now().Add(s.Auth.Lifetime()),
	})
}

func (s *Server) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   s.Cfg.SecureCookies,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}

// ------------------------------------------------------------------------------
// ------------Access log--------------------------------------------------------

type statusRW struct {
	http.ResponseWriter
	status int
}

func (w *statusRW) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusRW) Unwrap() http.ResponseWriter { return w.ResponseWriter }

// withAccessLog logs METHOD PATH -> STATUS with its duration and request id.
func (s *Server) withAccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusRW{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		s.Log.WithFields(logrus.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     sw.status,
			"duration":   time.Since(start).Truncate(time.Microsecond).String(),
			"request_id": middleware.GetReqID(r.Context()),
			"remote":     r.RemoteAddr,
		}).Info("request")
	})
}

// withTimeout bounds the whole request by REQUEST_TIMEOUT.
func (s *Server) withTimeout(next http.Handler) http.Handler {
	if s.Cfg.RequestTimeout <= 0 {
		return next
	}
	return http.TimeoutHandler(next, s.Cfg.RequestTimeout, "request timeout")
}

// withUploadDeadline replaces the request timeout on the upload route. The
// connection read deadline bounds the multipart body and the context bounds
// the storage and database work that follows.
func (s *Server) withUploadDeadline(next http.Handler) http.Handler {
	d := s.Cfg.UploadTimeout
	if d <= 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		deadline := time.Now().Add(d)
		rc := http.NewResponseController(w)
		if err := rc.SetReadDeadline(deadline); err != nil && !errors.Is(err, http.ErrNotSupported) {
			s.logger(r).WithError(err).Warn("set upload read deadline")
		}
		if err := rc.SetWriteDeadline(deadline.Add(10 * time.Second)); err != nil && !errors.Is(err, http.ErrNotSupported) {
			s.logger(r).WithError(err).Warn("set upload write deadline")
		}
		ctx, cancel := context.WithDeadline(r.Context(), deadline)
		defer cancel()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ------------------------------------------------------------------------------
// ------------Write rate limit--------------------------------------------------

type visitor struct {
	lim  *rate.Limiter
	seen time.Time
}

// WriteLimiter applies a token bucket per user (or client address for
// anonymous requests) to state-changing requests. Reads are never limited.
type WriteLimiter struct {
	mu       sync.Mutex
	rate     rate.Limit
	burst    int
	visitors map[string]*visitor
}

func NewWriteLimiter(rps float64, burst int) *WriteLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &WriteLimiter{rate: rate.Limit(rps), burst: burst, visitors: make(map[string]*visitor)}
}

func (l *WriteLimiter) allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	v, ok := l.visitors[key]
	if !ok {
		v = &visitor{lim: rate.NewLimiter(l.rate, l.burst)}
		l.visitors[key] = v
	}
	v.seen = time.Now()
	return v.lim.Allow()
}

// Sweep forgets clients idle for longer than idle.
func (l *WriteLimiter) Sweep(idle time.Duration) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for k, v := range l.visitors {
		if time.Since(v.seen) > idle {
			delete(l.visitors, k)
			n++
		}
	}
	return n
}

func (l *WriteLimiter) Handler(onLimit http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if l.rate <= 0 || r.Method == http.MethodGet || r.Method == http.MethodHead {
				next.ServeHTTP(w, r)
				return
			}
			key := r.RemoteAddr
			if host, _, err := net.SplitHostPort(key); err == nil {
				key = host
			}
			if uid, ok := auth.UserIDFrom(r.Context()); ok {
				key = "user:" + strconv.FormatInt(uid, 10)
			}
			if !l.allow(key) {
				onLimit(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
