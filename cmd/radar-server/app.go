package main

import (
	"context"
	"math/rand"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/healthgraph/radar/internal/config"
	"github.com/healthgraph/radar/internal/domain/analytics"
	"github.com/healthgraph/radar/internal/domain/dashboard"
	"github.com/healthgraph/radar/internal/domain/healthsystem"
	"github.com/healthgraph/radar/internal/domain/identity"
	"github.com/healthgraph/radar/internal/domain/issue"
	"github.com/healthgraph/radar/internal/domain/patient"
	"github.com/healthgraph/radar/internal/platform/auth"
	"github.com/healthgraph/radar/internal/platform/db"
	"github.com/healthgraph/radar/internal/platform/events"
	"github.com/healthgraph/radar/internal/platform/logging"
	"github.com/healthgraph/radar/internal/platform/middleware"
	"github.com/healthgraph/radar/internal/platform/synthetic"
	"github.com/healthgraph/radar/pkg/response"
)

// app is the process-wide context: configuration, connections and the
// domain services built on them. It is assembled once at startup and torn
// down by close.
type app struct {
	cfg       *config.Config
	logger    zerolog.Logger
	pool      *pgxpool.Pool
	registry  *prometheus.Registry
	publisher events.Publisher
	cache     auth.SessionCache
	synth     *synthetic.Random
	closers   []func() error

	identity  *identity.Service
	systems   *healthsystem.Service
	issues    *issue.Service
	patients  *patient.Service
	dashboard *dashboard.Service
	analytics *analytics.Service
}

func newLogger(cfg *config.Config) zerolog.Logger {
	return logging.New(logging.Options{
		Level:          cfg.LogLevel,
		Format:         cfg.LogFormat,
		Dev:            cfg.IsDev(),
		File:           cfg.LogFile,
		FileMaxSizeMB:  cfg.LogFileMaxSizeMB,
		FileMaxBackups: cfg.LogFileMaxBackups,
		FileMaxAgeDays: cfg.LogFileMaxAgeDays,
	})
}

// loadApp reads the configuration and connects to the database, the session
// cache and the event broker. Redis and Kafka are optional.
func loadApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := newLogger(cfg)

	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, err
	}
	logger.Info().Msg("connected to database")

	a := &app{
		cfg:       cfg,
		logger:    logger,
		pool:      pool,
		registry:  prometheus.NewRegistry(),
		publisher: events.Nop{},
		cache:     auth.NopSessionCache{},
		closers:   []func() error{func() error { pool.Close(); return nil }},
	}

	if len(cfg.KafkaBrokers) > 0 {
		p := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, logger, a.registry)
		a.publisher = p
		a.closers = append(a.closers, p.Close)
		logger.Info().Strs("brokers", cfg.KafkaBrokers).Str("topic", cfg.KafkaTopic).Msg("publishing domain events to kafka")
	}
	if cfg.RedisURL != "" {
		c, err := auth.NewRedisSessionCache(ctx, cfg.RedisURL, cfg.SessionCacheTTL, logger)
		if err != nil {
			a.close()
			return nil, err
		}
		a.cache = c
		a.closers = append(a.closers, c.Close)
		logger.Info().Msg("session cache enabled")
	}

	a.buildServices()
	return a, nil
}

// buildServices wires repositories and services on top of a.pool. A nil pool
// is accepted; repositories only touch it when called.
func (a *app) buildServices() {
	tx := db.NewTxRunner(a.pool)
	a.synth = synthetic.NewRandom(a.cfg.SyntheticSeed)

	var src rand.Source
	if a.cfg.SyntheticSeed != 0 {
		src = rand.NewSource(a.cfg.SyntheticSeed)
	}

	tokens := auth.NewTokenIssuer(a.cfg.JWTSecret, a.cfg.TokenTTL)
	a.identity = identity.NewService(identity.NewUserRepo(a.pool), identity.NewSessionRepo(a.pool), tx, tokens)
	a.identity.SetCache(a.cache)
	a.identity.SetLogger(a.logger.With().Str("component", "identity").Logger())

	a.systems = healthsystem.NewService(healthsystem.NewRepo(a.pool), tx, healthsystem.NewSimulatedConnector(src), a.synth)
	a.systems.SetPublisher(a.publisher)
	a.systems.SetLogger(a.logger.With().Str("component", "integrations").Logger())

	a.issues = issue.NewService(issue.NewRepo(a.pool), tx)
	a.issues.SetPublisher(a.publisher)
	a.issues.SetLogger(a.logger.With().Str("component", "issues").Logger())

	a.patients = patient.NewService(patient.NewRepo(a.pool), patient.NewRecordRepo(a.pool), a.issues, tx)
	a.patients.SetLogger(a.logger.With().Str("component", "patients").Logger())

	a.dashboard = dashboard.NewService(dashboard.NewRepo(a.pool), a.issues, a.systems, a.synth, tx)
	a.dashboard.SetLogger(a.logger.With().Str("component", "dashboard").Logger())

	a.analytics = analytics.NewService(a.synth)
	a.analytics.SetLogger(a.logger.With().Str("component", "analytics").Logger())

	if a.cfg.MetricsEnabled {
		a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		a.identity.RegisterMetrics(a.registry)
		a.systems.RegisterMetrics(a.registry)
		a.issues.RegisterMetrics(a.registry)
	}
}

// router builds the echo instance with the full middleware chain and every
// route mounted.
func (a *app) router() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.ErrorHandler(a.logger)
	e.Server.ReadTimeout = a.cfg.ReadTimeout
	e.Server.WriteTimeout = a.cfg.WriteTimeout

	// Global middleware
	e.Use(middleware.Recovery(a.logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(a.logger))
	if a.cfg.MetricsEnabled {
		e.Use(middleware.NewHTTPMetrics(a.registry).Middleware())
	}
	e.Use(middleware.SecurityHeaders(!a.cfg.IsDev()))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: a.cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))
	e.Use(echomw.BodyLimit("1M"))

	if a.cfg.MetricsEnabled {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{})))
	}

	api := e.Group("/api")
	api.GET("/health", a.health)
	api.GET("/health/db", db.HealthHandler(a.pool))

	authLimit := middleware.NewRateLimiter(middleware.RateLimitConfig{
		RequestsPerSecond: a.cfg.AuthRateLimitRPS,
		BurstSize:         a.cfg.AuthRateLimitBurst,
	})
	identityHandler := identity.NewHandler(a.identity)
	identityHandler.RegisterPublicRoutes(api, authLimit.Middleware())

	protected := api.Group("", auth.RequireAuth(a.identity))
	identityHandler.RegisterRoutes(protected)
	dashboard.NewHandler(a.dashboard).RegisterRoutes(protected)
	patient.NewHandler(a.patients).RegisterRoutes(protected)
	issue.NewHandler(a.issues).RegisterRoutes(protected)
	healthsystem.NewHandler(a.systems).RegisterRoutes(protected)
	analytics.NewHandler(a.analytics).RegisterRoutes(protected)

	return e
}

func (a *app) health(c echo.Context) error {
	return response.OK(c, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"service":   "healthgraph-radar",
		"timestamp": time.Now().UTC(),
	})
}

// close releases connections in reverse order of acquisition.
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn().Err(err).Msg("error during shutdown")
		}
	}
	a.closers = nil
}
