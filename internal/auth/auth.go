package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"blog/internal/models"
)

var (
	ErrUsernameTaken = errors.New("username already taken")
	ErrInvalidLogin  = errors.New("invalid username or password")
	ErrNoSession     = errors.New("session not found")
	ErrNoUser        = errors.New("user not found")
	ErrWrongPassword = errors.New("old password is incorrect")
	ErrThrottled     = errors.New("too many failed login attempts")
)

// Service owns users and their server-side sessions.
type Service struct {
	db       *sql.DB
	lifetime time.Duration
	limiter  Limiter
	log      logrus.FieldLogger
}

func NewService(db *sql.DB, lifetime time.Duration, limiter Limiter, log logrus.FieldLogger) *Service {
	if limiter == nil {
		limiter = NoLimit{}
	}
	return &Service{db: db, lifetime: lifetime, limiter: limiter, log: log}
}

// Lifetime is how long a new session stays valid.
func (s *Service) Lifetime() time.Duration { return s.lifetime }

// ----------------------------
// Context helpers
// ----------------------------

type ctxKeyUser struct{}

func WithUser(ctx context.Context, u *models.User) context.Context {
	return context.WithValue(ctx, ctxKeyUser{}, u)
}

func UserFrom(ctx context.Context) (*models.User, bool) {
	u, _ := ctx.Value(ctxKeyUser{}).(*models.User)
	return u, u != nil && u.ID != 0
}

func UserIDFrom(ctx context.Context) (int64, bool) {
	if u, ok := UserFrom(ctx); ok {
		return u.ID, true
	}
	return 0, false
}

// ----------------------------
// Register
// ----------------------------

// Register creates a user and returns its id. Field rules are checked by the
// form layer; this only normalises and stores.
func (s *Service) Register(ctx context.Context, username, email, password string) (int64, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(strings.ToLower(email))
	if username == "" || password == "" {
		return 0, errors.New("username and password are required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return 0, fmt.Errorf("hash password: %w", err)
	}

	var id int64
	err = s.db.QueryRowContext(ctx,
		`INSERT INTO users (username, email, password_hash) VALUES ($1, $2, $3) RETURNING id`,
		username, email, string(hash),
	).Scan(&id)
	if isUniqueErr(err) {
		return 0, ErrUsernameTaken
	}
	if err != nil {
		return 0, fmt.Errorf("insert user: %w", err)
	}
	s.log.WithFields(logrus.Fields{"uid": id, "username": username}).Info("user registered")
	return id, nil
}

// ----------------------------
// Login (new session with a random id and expiry)
// ----------------------------

func (s *Service) Login(ctx context.Context, username, password string) (string, int64, error) {
	username = strings.TrimSpace(username)
	log := s.log.WithField("username", username)

	blocked, err := s.limiter.Blocked(ctx, username)
	if err != nil {
		log.WithError(err).Warn("login limiter unavailable")
	}
	if blocked {
		log.Warn("login throttled")
		return "", 0, ErrThrottled
	}

	var (
		uid  int64
		hash string
	)
	err = s.db.QueryRowContext(ctx,
		`SELECT id, password_hash FROM users WHERE username = $1`, username,
	).Scan(&uid, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		s.fail(ctx, log, username)
		return "", 0, ErrInvalidLogin
	}
	if err != nil {
		return "", 0, fmt.Errorf("query user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		s.fail(ctx, log, username)
		return "", 0, ErrInvalidLogin
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM sessions WHERE user_id = $1 AND expires_at <= now()`, uid); err != nil {
		return "", 0, fmt.Errorf("delete stale sessions: %w", err)
	}

	sid := uuid.NewString()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO sessions (id, user_id, expires_at) VALUES ($1, $2, $3)`,
		sid, uid, time.Now().Add(s.lifetime),
	); err != nil {
		return "", 0, fmt.Errorf("insert session: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return "", 0, fmt.Errorf("commit: %w", err)
	}

	if err := s.limiter.Reset(ctx, username); err != nil {
		log.WithError(err).Warn("reset login limiter")
	}
	log.WithField("uid", uid).Info("login ok")
	return sid, uid, nil
}

func (s *Service) fail(ctx context.Context, log logrus.FieldLogger, username string) {
	log.Info("login failed")
	if err := s.limiter.Fail(ctx, username); err != nil {
		log.WithError(err).Warn("record failed login")
	}
}

// ----------------------------
// Logout
// ----------------------------

func (s *Service) Logout(ctx context.Context, sid string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = $1`, sid); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// ----------------------------
// UserFromSession: resolves a cookie value to its user and expiry
// ----------------------------

func (s *Service) UserFromSession(ctx context.Context, sid string) (*models.User, time.Time, error) {
	var (
		u   models.User
		exp time.Time
	)
	err := s.db.QueryRowContext(ctx, `
SELECT u.id, u.username, u.email, u.first_name, u.last_name, u.date_joined, s.expires_at
  FROM sessions s
  JOIN users u ON u.id = s.user_id
 WHERE s.id = $1`, sid,
	).Scan(&u.ID, &u.Username, &u.Email, &u.FirstName, &u.LastName, &u.DateJoined, &exp)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, time.Time{}, ErrNoSession
	}
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("query session: %w", err)
	}
	return &u, exp, nil
}

// CleanExpiredSessions deletes every session past its expiry.
func (s *Service) CleanExpiredSessions(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= now()`)
	if err != nil {
		return 0, fmt.Errorf("clean sessions: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// ----------------------------
// Helpers
// ----------------------------

func isUniqueErr(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
