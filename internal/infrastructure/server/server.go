package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	apihttp "github.com/GriffinCanCode/focusgate/internal/api/http"
	"github.com/GriffinCanCode/focusgate/internal/api/middleware"
	"github.com/GriffinCanCode/focusgate/internal/api/ws"
	"github.com/GriffinCanCode/focusgate/internal/domain/authority"
	"github.com/GriffinCanCode/focusgate/internal/domain/foreground"
	"github.com/GriffinCanCode/focusgate/internal/domain/timer"
	"github.com/GriffinCanCode/focusgate/internal/infrastructure/config"
	"github.com/GriffinCanCode/focusgate/internal/infrastructure/logging"
	"github.com/GriffinCanCode/focusgate/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/focusgate/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/focusgate/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/focusgate/internal/shared/utils"
	"github.com/GriffinCanCode/focusgate/internal/storage"
	"github.com/GriffinCanCode/focusgate/internal/storage/memory"
	"github.com/GriffinCanCode/focusgate/internal/storage/redis"
	"github.com/GriffinCanCode/focusgate/internal/storage/sqlite"
)

// flushInterval is how often writes that failed earlier are retried.
const flushInterval = 15 * time.Second

// Server wraps the HTTP server and dependencies
type Server struct {
	config     *config.Config
	logger     *logging.Logger
	router     *gin.Engine
	httpServer *http.Server
	registry   *prometheus.Registry
	metrics    *monitoring.Metrics
	tracer     *tracing.Tracer
	store      storage.Store
	scheduler  *timer.Scheduler
	authority  *authority.Authority
	hub        *ws.Hub

	stopFlush chan struct{}
	flushDone chan struct{}
	closeOnce sync.Once
}

// NewServer opens the store, recovers arbitration state and builds the
// router. The returned server is not yet listening.
func NewServer(ctx context.Context, cfg *config.Config) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := logging.FromSettings(cfg.Logging.Level, cfg.Logging.Development)
	logger.Info("Initializing focusgate",
		zap.String("port", cfg.Server.Port),
		zap.String("store", cfg.Storage.Driver),
		zap.Int("quota_max", cfg.Authority.QuotaMax),
		zap.Duration("quota_window", cfg.Authority.QuotaWindow),
		zap.Duration("guard_ttl", cfg.Authority.SurfaceGuardTTL),
	)

	// Metrics first; every other component records into them.
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := monitoring.NewMetrics(registry)

	tracer := tracing.New("focusgate", logger.Component("trace"))

	store, err := OpenStore(ctx, cfg.Storage)
	if err != nil {
		tracer.Close()
		return nil, err
	}
	logger.Info("Store opened", zap.String("driver", cfg.Storage.Driver))

	classifier, err := foreground.NewClassifier(cfg.Authority.InfrastructureApps, cfg.Authority.MonitoredApps)
	if err != nil {
		_ = store.Close()
		tracer.Close()
		return nil, fmt.Errorf("invalid app patterns: %w", err)
	}

	storeLog := logger.Component("store")
	breaker := resilience.New("store", resilience.Settings{
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to resilience.State) {
			storeLog.Warn("Breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})

	scheduler := timer.New(nil, logger.Component("timer"))
	hub := ws.NewHub(ws.HubOptions{
		Logger:  logger.Component("ws"),
		Metrics: metrics,
		Tracer:  tracer,
	})

	auth, err := authority.New(authority.Options{
		Store:             store,
		Dispatcher:        hub,
		Scheduler:         scheduler,
		Classifier:        classifier,
		Tracker:           foreground.NewTracker(classifier),
		Breaker:           breaker,
		Logger:            logger.Component("authority"),
		Metrics:           metrics,
		QuotaMax:          cfg.Authority.QuotaMax,
		QuotaWindow:       cfg.Authority.QuotaWindow,
		GuardTTL:          cfg.Authority.SurfaceGuardTTL,
		QuickTaskDuration: cfg.Authority.QuickTaskDuration,
		ActivityLease:     cfg.Authority.ActivityLease,
	})
	if err != nil {
		_ = store.Close()
		tracer.Close()
		return nil, err
	}

	report, err := auth.Recover(ctx)
	if err != nil {
		scheduler.Stop()
		_ = store.Close()
		tracer.Close()
		return nil, fmt.Errorf("failed to recover state: %w", err)
	}
	logger.Info("State recovered",
		zap.Int("entries", report.Entries),
		zap.Strings("rescheduled", report.Rescheduled),
		zap.Strings("expired", report.Expired),
		zap.Strings("discarded", report.Discarded),
		zap.Int("intentions", report.Intentions),
		zap.Int("quota", report.Quota),
	)
	hub.Bind(auth)

	s := &Server{
		config:    cfg,
		logger:    logger,
		registry:  registry,
		metrics:   metrics,
		tracer:    tracer,
		store:     store,
		scheduler: scheduler,
		authority: auth,
		hub:       hub,
		stopFlush: make(chan struct{}),
		flushDone: make(chan struct{}),
	}
	s.router = s.buildRouter()
	s.httpServer = &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go s.flushLoop()

	logger.Info("Server initialized successfully")
	return s, nil
}

// OpenStore opens the store named by cfg.Driver.
func OpenStore(ctx context.Context, cfg config.StorageConfig) (storage.Store, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		st, err := sqlite.Open(ctx, cfg.Path)
		if err != nil {
			return nil, err
		}
		return st, nil
	case config.DriverRedis:
		st, err := redis.Open(ctx, cfg.RedisURL, cfg.RedisPrefix)
		if err != nil {
			return nil, err
		}
		return st, nil
	case config.DriverMemory:
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

func (s *Server) buildRouter() *gin.Engine {
	if !s.config.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(tracing.HTTPMiddleware(s.tracer))
	router.Use(monitoring.Middleware(s.metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	router.Use(middleware.BodyLimit(utils.MaxRequestSize))
	if s.config.RateLimit.Enabled {
		s.logger.Info("Rate limiting enabled",
			zap.Int("rps", s.config.RateLimit.RequestsPerSecond),
			zap.Int("burst", s.config.RateLimit.Burst),
		)
		rl := middleware.DefaultRateLimitConfig()
		rl.RequestsPerSecond = s.config.RateLimit.RequestsPerSecond
		rl.Burst = s.config.RateLimit.Burst
		router.Use(middleware.RateLimit(rl))
	}

	handlers := apihttp.NewHandlers(s.authority, s.hub, s.metrics, s.logger.Component("http"), s.config.Storage.Driver)
	handlers.Register(router)

	router.GET("/v1/surface", s.hub.HandleConnection)
	router.GET("/metrics", gin.WrapH(monitoring.Handler(s.registry)))

	return router
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Authority returns the decision authority.
func (s *Server) Authority() *authority.Authority {
	return s.authority
}

// Run serves HTTP until Shutdown is called.
func (s *Server) Run() error {
	s.logger.Info("Starting HTTP server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests, disconnects surfaces, stops the
// timers, flushes pending writes and closes the store.
func (s *Server) Shutdown(ctx context.Context) error {
	var errs []error
	s.closeOnce.Do(func() {
		s.logger.Info("Shutting down server...")

		if err := s.httpServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
		s.hub.Close()

		close(s.stopFlush)
		<-s.flushDone

		if err := s.authority.Close(ctx); err != nil {
			s.logger.Error("Failed to flush state", zap.Error(err))
			errs = append(errs, fmt.Errorf("flush state: %w", err))
		}
		if err := s.store.Close(); err != nil {
			s.logger.Error("Failed to close store", zap.Error(err))
			errs = append(errs, fmt.Errorf("close store: %w", err))
		}
		s.tracer.Close()
		s.logger.Info("Server stopped")
		_ = s.logger.Sync()
	})
	return errors.Join(errs...)
}

// flushLoop retries failed writes so a store that recovers catches up
// without waiting for the next mutation.
func (s *Server) flushLoop() {
	defer close(s.flushDone)
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopFlush:
			return
		case <-ticker.C:
			if len(s.authority.Snapshot().DirtyKeys) == 0 {
				continue
			}
			ctx, cancel := context.WithTimeout(context.Background(), flushInterval)
			if err := s.authority.Flush(ctx); err != nil {
				s.logger.Warn("Deferred writes still failing", zap.Error(err))
			}
			cancel()
		}
	}
}
