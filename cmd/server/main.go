package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"blog/internal/app"
	"blog/internal/auth"
	"blog/internal/db"
	httpx "blog/internal/http"
	"blog/internal/media"
	"blog/internal/telemetry"
)

func main() {
	cfg, err := app.LoadConfig()
	app.Must(err)
	log := app.NewLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Init(ctx, cfg.OTLPEndpoint, cfg.ServiceName)
	app.Must(err)

	// Open retries until the database answers; migrations need it up.
	d, err := db.Open(ctx, cfg.DatabaseURL)
	app.Must(err)
	defer d.Close()
	app.Must(db.Migrate(cfg.DatabaseURL))
	log.Info("database ready")

	var limiter auth.Limiter = auth.NewMemoryLimiter(cfg.LoginMaxAttempts, cfg.LoginBlockWindow)
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		app.Must(rdb.Ping(ctx).Err())
		limiter = auth.NewRedisLimiter(rdb, cfg.LoginMaxAttempts, cfg.LoginBlockWindow)
		log.WithField("addr", cfg.RedisAddr).Info("login throttling backed by redis")
	}

	st, err := mediaStorage(ctx, cfg, log)
	app.Must(err)

	users := auth.NewService(d, cfg.SessionLifetime, limiter, log)
	srv, err := httpx.NewServer(cfg, db.NewStore(d), users, st, log)
	app.Must(err)

	var h http.Handler = srv
	if cfg.OTLPEndpoint != "" {
		h = telemetry.Wrap(h, cfg.ServiceName)
	}

	go housekeeping(ctx, users, srv.Limiter(), log)

	hs := &http.Server{
		Addr:              cfg.Addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.UploadTimeout + 10*time.Second,
		WriteTimeout:      cfg.UploadTimeout + 20*time.Second,
		IdleTimeout:       2 * time.Minute,
	}
	go func() {
		log.WithField("addr", cfg.Addr).Info("listening")
		if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server stopped")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := hs.Shutdown(sctx); err != nil {
		log.WithError(err).Warn("graceful shutdown")
	}
	if err := shutdownTracing(sctx); err != nil {
		log.WithError(err).Warn("flush traces")
	}
}

func mediaStorage(ctx context.Context, cfg app.Config, log logrus.FieldLogger) (media.Storage, error) {
	if !cfg.S3.Enabled() {
		log.WithField("dir", cfg.MediaDir).Info("media on local disk")
		return media.NewLocalStorage(cfg.MediaDir)
	}
	s3, err := media.NewS3Storage(media.S3Config{
		Endpoint:  cfg.S3.Endpoint,
		AccessKey: cfg.S3.AccessKey,
		SecretKey: cfg.S3.SecretKey,
		UseSSL:    cfg.S3.UseSSL,
		Bucket:    cfg.S3.Bucket,
	})
	if err != nil {
		return nil, err
	}
	if err := s3.EnsureBucket(ctx); err != nil {
		return nil, err
	}
	log.WithFields(logrus.Fields{"endpoint": cfg.S3.Endpoint, "bucket": cfg.S3.Bucket}).Info("media in s3 bucket")
	return s3, nil
}

// housekeeping drops expired sessions and idle rate-limit entries every hour.
func housekeeping(ctx context.Context, users *auth.Service, wl *httpx.WriteLimiter, log logrus.FieldLogger) {
	t := time.NewTicker(time.Hour)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := users.CleanExpiredSessions(ctx)
			if err != nil {
				log.WithError(err).Warn("clean expired sessions")
			} else if n > 0 {
				log.WithField("count", n).Info("expired sessions removed")
			}
			wl.Sweep(time.Hour)
		}
	}
}
