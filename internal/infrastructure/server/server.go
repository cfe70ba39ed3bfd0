package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/gzhttp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	handlers "github.com/GriffinCanCode/cronograma/backend/internal/api/http"
	"github.com/GriffinCanCode/cronograma/backend/internal/api/middleware"
	"github.com/GriffinCanCode/cronograma/backend/internal/infrastructure/cache"
	"github.com/GriffinCanCode/cronograma/backend/internal/infrastructure/config"
	"github.com/GriffinCanCode/cronograma/backend/internal/infrastructure/logging"
	"github.com/GriffinCanCode/cronograma/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/cronograma/backend/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/cronograma/backend/internal/providers/browser"
	"github.com/GriffinCanCode/cronograma/backend/internal/providers/cronograma"
)

// Server wraps the HTTP server and dependencies
type Server struct {
	router   *gin.Engine
	http     *http.Server
	browsers *browser.Provider
	tracer   *tracing.Tracer
	logger   *logging.Logger
	config   *config.Config
	metrics  *monitoring.Metrics
}

// Option customizes server construction.
type Option func(*options)

type options struct {
	source   cronograma.Source
	registry *prometheus.Registry
}

// WithSource replaces the browser-backed fetcher. The browser provider is
// not created when a source is supplied.
func WithSource(source cronograma.Source) Option {
	return func(o *options) { o.source = source }
}

// WithRegistry registers metrics on reg instead of a fresh registry.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(o *options) { o.registry = reg }
}

// NewServer creates a new server instance
func NewServer(cfg *config.Config, logger *logging.Logger, opts ...Option) (*Server, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.registry == nil {
		o.registry = prometheus.NewRegistry()
		o.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	logger.Info("Initializing cronograma server",
		zap.String("addr", cfg.Addr()),
		zap.String("portal", cfg.Portal.URL),
		zap.String("browser_profile", cfg.Browser.Profile),
		zap.Bool("browser_reuse", cfg.Browser.Reuse),
	)

	// Initialize metrics first (needed by other components)
	metrics := monitoring.NewMetrics(o.registry)

	tracer := tracing.New("cronograma", logger.Logger)

	var browsers *browser.Provider
	source := o.source
	if source == nil {
		browsers = browser.NewProvider(
			browser.NewChromeLauncher(cfg.Browser, logger.Logger, metrics),
			cfg.Browser.Reuse,
			logger.Logger,
		)
		source = cronograma.NewFetcher(
			browsers,
			cronograma.NewProtocol(cfg.Portal, cfg.Scrape),
			cronograma.FetchOptionsFromConfig(cfg.Browser, cfg.Scrape),
			logger.Logger,
			metrics,
			tracer,
		)
	}

	serviceOpts := []cronograma.ServiceOption{cronograma.WithMetrics(metrics)}
	if cfg.Scrape.BreakerEnabled {
		serviceOpts = append(serviceOpts, cronograma.WithBreaker(
			cronograma.NewPortalBreaker(cfg.Scrape.BreakerFailures, cfg.Scrape.BreakerCooldown, logger.Logger, metrics),
		))
	}
	svc := cronograma.NewService(source, cache.NewTTL[any](cfg.Cache.TTL), logger.Logger, serviceOpts...)

	defaults := cronograma.Query{
		Programa: cfg.Portal.DefaultPrograma,
		Sede:     cfg.Portal.DefaultSede,
		Recurso:  cfg.Portal.DefaultRecurso,
	}
	h := handlers.NewHandlers(svc, defaults, cfg.Browser.Profile, logger.Logger)

	// Create router
	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(tracing.HTTPMiddleware(tracer))
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
			zap.Duration("idle_ttl", cfg.RateLimit.IdleTTL),
		)
		router.Use(middleware.RateLimit(rateLimitConfig(cfg.RateLimit)))
	}

	if cfg.Server.StaticDir != "" {
		router.Static("/app", cfg.Server.StaticDir)
	}

	router.GET("/", h.Root)
	router.GET("/health", h.Health)
	router.POST("/cronograma", h.GetCronograma)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(o.registry, promhttp.HandlerOpts{})))

	logger.Info("Server initialized successfully")

	return &Server{
		router: router,
		http: &http.Server{
			Addr:              cfg.Addr(),
			Handler:           gzhttp.GzipHandler(router),
			ReadHeaderTimeout: 10 * time.Second,
		},
		browsers: browsers,
		tracer:   tracer,
		logger:   logger,
		config:   cfg,
		metrics:  metrics,
	}, nil
}

// rateLimitConfig overlays configured limits on the middleware defaults.
// Zero values keep the default.
func rateLimitConfig(cfg config.RateLimitConfig) middleware.RateLimitConfig {
	rl := middleware.DefaultRateLimitConfig()
	if cfg.RequestsPerSecond > 0 {
		rl.RequestsPerSecond = cfg.RequestsPerSecond
	}
	if cfg.Burst > 0 {
		rl.Burst = cfg.Burst
	}
	if cfg.IdleTTL > 0 {
		rl.IdleTTL = cfg.IdleTTL
	}
	return rl
}

// Handler returns the root HTTP handler, compression included.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Run serves HTTP until ctx is canceled, then drains in-flight requests for
// up to the configured shutdown timeout and releases the browser.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting HTTP server", zap.String("addr", s.http.Addr))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			s.Close()
			return fmt.Errorf("http server: %w", err)
		}
		return s.Close()
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
	defer cancel()

	s.logger.Info("Shutting down server...")
	shutdownErr := s.http.Shutdown(shutdownCtx)
	if shutdownErr != nil {
		s.logger.Error("Graceful shutdown failed", zap.Error(shutdownErr))
	}
	return errors.Join(shutdownErr, s.Close())
}

// Close releases the browser and flushes pending spans.
func (s *Server) Close() error {
	var err error
	if s.browsers != nil {
		if err = s.browsers.Close(); err != nil {
			s.logger.Error("Failed to close browser", zap.Error(err))
		} else {
			s.logger.Info("Closed browser")
		}
	}
	s.tracer.Close()

	// Sync logger before exit
	_ = s.logger.Sync()

	return err
}
