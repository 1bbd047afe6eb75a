package main

import (
	"context"
	crypto_rand "crypto/rand"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/clinic/clinic/internal/config"
	"github.com/clinic/clinic/internal/domain/account"
	"github.com/clinic/clinic/internal/domain/followups"
	"github.com/clinic/clinic/internal/domain/identity"
	"github.com/clinic/clinic/internal/domain/portal"
	"github.com/clinic/clinic/internal/domain/reports"
	"github.com/clinic/clinic/internal/domain/scheduling"
	"github.com/clinic/clinic/internal/domain/workshops"
	"github.com/clinic/clinic/internal/platform/auth"
	"github.com/clinic/clinic/internal/platform/blobstore"
	"github.com/clinic/clinic/internal/platform/db"
	"github.com/clinic/clinic/internal/platform/middleware"
	"github.com/clinic/clinic/internal/platform/notification"
	"github.com/clinic/clinic/internal/platform/sandbox"
	"github.com/clinic/clinic/internal/platform/store"
)

// app holds the backends and services shared by serve and seed.
type app struct {
	cfg    *config.Config
	logger zerolog.Logger

	pool     *pgxpool.Pool
	kv       store.KV
	revoked  *auth.TokenRevocationStore
	jwt      auth.JWTConfig
	notifier *notification.Manager
	kafka    *notification.KafkaPublisher
	blobs    blobstore.BlobStore

	people     *identity.Service
	accounts   *account.Service
	scheduling *scheduling.Service
	workshops  *workshops.Service
	followUps  *followups.Service
	reports    *reports.Service
	portal     *portal.Service
}

func newApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}
	if err := a.init(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) init(ctx context.Context) (err error) {
	cfg, logger := a.cfg, a.logger

	// Storage
	var opts []store.Option
	if cfg.StoreDriver == "postgres" {
		a.pool, err = db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		opts = append(opts, store.WithPool(a.pool))
	}
	if cfg.StorePrefix != "" {
		opts = append(opts, store.WithPrefix(cfg.StorePrefix))
	}
	dsn := cfg.DatabaseURL
	if cfg.StoreDriver == "redis" {
		dsn = cfg.RedisURL
	}
	a.kv, err = store.Open(ctx, cfg.StoreDriver, dsn, opts...)
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.StoreDriver, err)
	}
	logger.Info().Str("driver", cfg.StoreDriver).Msg("store ready")

	// Auth
	key, generated, err := resolveSigningKey(cfg.JWTSigningKey)
	if err != nil {
		return err
	}
	if generated {
		logger.Warn().Msg("JWT_SIGNING_KEY not set; using an ephemeral key, tokens will not survive a restart")
	}
	a.revoked = auth.NewTokenRevocationStore(10 * time.Minute)
	a.jwt = auth.JWTConfig{
		Issuer:     cfg.JWTIssuer,
		SigningKey: key,
		Revoked:    a.revoked,
		Skipper:    auth.AuthSkipper,
	}

	// Notifications
	var sender notification.EmailSender = notification.NewLogSender(logger)
	if cfg.SendGridAPIKey != "" {
		sender, err = notification.NewSendGridSender(cfg.SendGridAPIKey, cfg.NotifyFromEmail)
		if err != nil {
			return err
		}
	}
	notifyOpts := []notification.Option{notification.WithDelay(cfg.NotifyDelay)}
	if len(cfg.KafkaBrokers) > 0 {
		a.kafka = notification.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		notifyOpts = append(notifyOpts, notification.WithPublisher(a.kafka))
	}
	a.notifier = notification.NewManager(sender, notification.NewTemplateEngine(), logger, notifyOpts...)

	// Exports
	if cfg.ExportBucket != "" {
		a.blobs, err = blobstore.NewS3BlobStore(ctx, cfg.AWSRegion, cfg.ExportBucket, cfg.ExportPrefix)
		if err != nil {
			return err
		}
	} else {
		a.blobs = blobstore.NewInMemoryBlobStore()
	}

	// Domain services
	a.people = identity.NewService(
		identity.NewPatientRepoKV(a.kv),
		identity.NewProfessionalRepoKV(a.kv),
		identity.NewInsuranceProviderRepoKV(a.kv),
	)
	a.accounts = account.NewService(account.NewUserRepoKV(a.kv), a.jwt, cfg.JWTTTL, logger)
	a.scheduling = scheduling.NewService(scheduling.NewAppointmentRepoKV(a.kv), a.people, a.notifier, logger)
	a.workshops = workshops.NewService(workshops.NewWorkshopRepoKV(a.kv), a.people)
	a.followUps = followups.NewService(followups.NewFollowUpRepoKV(a.kv), a.people)
	a.reports = reports.NewService(reports.NewReportRepoKV(a.kv), a.people, a.notifier, a.blobs, logger)
	a.portal = portal.NewService(a.people, a.scheduling, a.reports, a.workshops, logger)
	return nil
}

func (a *app) seedServices() sandbox.Services {
	return sandbox.Services{
		People:     a.people,
		Accounts:   a.accounts,
		Scheduling: a.scheduling,
		Workshops:  a.workshops,
		Reports:    a.reports,
	}
}

// Router builds the HTTP server with the middleware chain and every route.
func (a *app) Router() *echo.Echo {
	cfg := a.cfg

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(a.logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(a.logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
	}))
	e.Use(middleware.BodyLimit(cfg.BodyLimit))
	if cfg.RequestTimeout > 0 {
		e.Use(middleware.RequestTimeout(cfg.RequestTimeout, "/api/v1/exports/"))
	}

	// Auth middleware
	if cfg.IsDev() {
		e.Use(auth.DevAuthMiddleware(a.jwt))
	} else {
		e.Use(auth.JWTMiddleware(a.jwt))
	}

	e.Use(middleware.RateLimit(middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}))
	e.Use(middleware.Audit(a.logger))

	// Health
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	var stats func() interface{}
	if a.pool != nil {
		stats = func() interface{} { return db.GetPoolStats(a.pool) }
	}
	e.GET("/health/db", db.HealthHandler(cfg.StoreDriver, a.kv, stats))

	apiV1 := e.Group("/api/v1")

	account.NewHandler(a.accounts).RegisterRoutes(apiV1)
	identity.NewHandler(a.people).RegisterRoutes(apiV1)
	scheduling.NewHandler(a.scheduling).RegisterRoutes(apiV1)
	workshops.NewHandler(a.workshops).RegisterRoutes(apiV1)
	followups.NewHandler(a.followUps).RegisterRoutes(apiV1)
	reports.NewHandler(a.reports).RegisterRoutes(apiV1)
	portal.NewHandler(a.portal).RegisterRoutes(apiV1)
	blobstore.NewBlobHandler(a.blobs).RegisterRoutes(apiV1)

	staff := apiV1.Group("", auth.RequireRole(auth.RoleSecretary))
	notification.NewHandler(a.notifier).RegisterRoutes(staff)

	return e
}

// Close releases every backend newApp opened. Pending notifications are
// given the chance to settle first.
func (a *app) Close() {
	if a.notifier != nil {
		a.notifier.Close()
	}
	if a.kafka != nil {
		if err := a.kafka.Close(); err != nil {
			a.logger.Error().Err(err).Msg("close kafka publisher")
		}
	}
	if a.revoked != nil {
		a.revoked.Close()
	}
	if a.kv != nil {
		if err := a.kv.Close(); err != nil {
			a.logger.Error().Err(err).Msg("close store")
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
}

// resolveSigningKey returns the configured JWT signing key, or a random one
// when none is configured. generated reports the latter.
func resolveSigningKey(configured string) (key []byte, generated bool, err error) {
	if configured != "" {
		return []byte(configured), false, nil
	}
	key = make([]byte, 32)
	if _, err := crypto_rand.Read(key); err != nil {
		return nil, false, fmt.Errorf("generate signing key: %w", err)
	}
	return key, true, nil
}
