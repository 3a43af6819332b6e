package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"safetyrelay/internal/config"
	"safetyrelay/internal/constants"
	"safetyrelay/internal/delivery"
	"safetyrelay/internal/filtering"
	"safetyrelay/internal/intervals"
	"safetyrelay/internal/ledger"
	"safetyrelay/internal/logger"
	"safetyrelay/internal/media"
	"safetyrelay/internal/pipeline"
	"safetyrelay/internal/routing"
	"safetyrelay/internal/telemetry"
	"safetyrelay/internal/transport"
	"safetyrelay/internal/vehicles"
	"safetyrelay/pkg/bootstrap"
	"safetyrelay/pkg/circuitbreaker"
	"safetyrelay/pkg/health"
	"safetyrelay/pkg/metrics"
	"safetyrelay/pkg/middleware"
	"safetyrelay/pkg/ratelimit"
	"safetyrelay/pkg/tracing"
)

type App struct {
	*bootstrap.Base
	dbConnector *bootstrap.DatabaseConnector
	conns       *bootstrap.Connections
	directory   *vehicles.Directory
	fetcher     *intervals.Fetcher
	gate        *ledger.Gate
	scheduler   *pipeline.Scheduler
	server      *http.Server
}

func NewApp(cfg *config.Config, log logger.Logger) *App {
	return &App{
		Base:        bootstrap.NewBase(cfg, log),
		dbConnector: bootstrap.NewDatabaseConnector(cfg, log),
	}
}

func (a *App) Initialize(ctx context.Context) error {
	metrics.RegisterRelayMetrics()
	metrics.RegisterCircuitBreakerMetrics()
	metrics.RegisterRateLimitMetrics()

	if err := a.InitTracing(); err != nil {
		return err
	}

	conns, err := a.dbConnector.Open(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize databases: %w", err)
	}
	a.conns = conns

	if err := a.InitBroker(); err != nil {
		return fmt.Errorf("failed to initialize broker: %w", err)
	}

	if err := a.initRelay(ctx); err != nil {
		return fmt.Errorf("failed to initialize relay: %w", err)
	}

	a.initHTTPServer()
	return nil
}

func (a *App) initLedger() ledger.Store {
	mem := ledger.NewMemoryStore()

	var delivered ledger.DeliveredRepository = mem
	if a.conns.Postgres != nil {
		delivered = ledger.NewPostgresDeliveredRepository(a.conns.Postgres)
	} else {
		a.Logger.Warnw("PostgreSQL not configured, delivery ledger is in memory and will not survive restarts")
	}

	var processed ledger.ProcessedRepository = mem
	if a.conns.MongoDB != nil {
		processed = ledger.NewMongoProcessedRepository(a.conns.MongoDB)
	} else {
		a.Logger.Warnw("MongoDB not configured, processed log is in memory")
	}

	return ledger.NewCircuitBreakerStore(ledger.Compose(delivered, processed), a.Config.CircuitBreaker)
}

func (a *App) initRouting() *routing.Router {
	var store routing.Store = routing.NewMemoryStore()
	if a.conns.MongoDB != nil {
		collection := a.Config.Routing.Collection
		if collection == "" {
			collection = constants.VehicleRoutesCollection
		}
		store = routing.NewMongoStore(a.conns.MongoDB, collection)
	}
	return routing.NewRouter(store, a.Config.Routing.DefaultChatID, a.Logger)
}

func (a *App) initRelay(ctx context.Context) error {
	cfg := a.Config

	var api telemetry.API = telemetry.NewClient(cfg.Telemetry, a.Logger)
	if cfg.CircuitBreaker.Enabled {
		api = telemetry.WithCircuitBreaker(api, circuitbreaker.FromSettings("telemetry", cfg.CircuitBreaker))
	}

	var opts []vehicles.Option
	if a.conns.Redis != nil {
		opts = append(opts, vehicles.WithSharedCache(vehicles.NewRedisRosterCache(a.conns.Redis)))
	}
	a.directory = vehicles.NewDirectory(api, cfg.Vehicles, a.Logger, opts...)
	a.fetcher = intervals.NewFetcher(api, cfg.Telemetry, a.Logger)

	filter, err := filtering.NewService(cfg.Filtering, a.Logger)
	if err != nil {
		return err
	}

	archiver, err := media.NewArchiver(ctx, cfg.Media.Archive)
	if err != nil {
		return err
	}

	tr, err := transport.New(cfg.Transport, cfg.DryRun, a.Logger)
	if err != nil {
		return err
	}

	a.gate = ledger.NewGate(a.initLedger(), a.Logger)

	orchestrator := delivery.NewOrchestrator(delivery.Deps{
		Transport:  tr,
		Router:     a.initRouting(),
		Ledger:     a.gate,
		Resolver:   media.NewResolver(api, cfg.Media, a.Logger),
		Downloader: media.NewDownloader(cfg.Media, a.Logger),
		Archiver:   archiver,
		Formatter:  delivery.NewFormatter(cfg.Transport.Timezone),
	}, cfg.Media, cfg.DryRun, a.Logger)

	pipe := pipeline.New(pipeline.Deps{
		Safety:    api,
		Intervals: a.fetcher,
		Roster:    a.directory,
		Filter:    filter,
		Deliverer: orchestrator,
		Publisher: a.Publisher,
	}, cfg, a.Logger)

	a.scheduler = pipeline.NewScheduler(pipe, a.gate, cfg.Scheduler, a.Logger)
	return nil
}

func (a *App) healthRegistry() *health.CheckerRegistry {
	registry := health.NewCheckerRegistry()
	if a.conns.Postgres != nil {
		registry.Register(health.NewPostgreSQLChecker(a.conns.Postgres))
	}
	if a.conns.Mongo != nil {
		registry.Register(health.NewMongoDBChecker(a.conns.Mongo))
	}
	if a.conns.Redis != nil {
		registry.RegisterOptional(health.NewRedisChecker(a.conns.Redis))
	}
	registry.RegisterOptional(health.NewFuncChecker("telemetry", func(ctx context.Context) error {
		_, err := a.directory.Get(ctx)
		return err
	}))
	return registry
}

func (a *App) initHTTPServer() {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	if a.Config.Tracing.Enabled {
		router.Use(tracing.GinMiddleware(constants.ServiceName))
	}
	router.Use(middleware.RecoveryMiddleware(a.Logger))
	router.Use(middleware.LoggerMiddleware(a.Logger))
	router.Use(middleware.RequestIDMiddleware())

	registry := a.healthRegistry()
	router.GET("/health", func(c *gin.Context) {
		h := registry.Check(c.Request.Context())
		c.JSON(h.HTTPStatus(), h)
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	debug := router.Group("/debug")
	if rl := a.Config.Server.DebugRateLimit; rl.Enabled {
		debug.Use(ratelimit.RateLimitMiddleware(ratelimit.RateLimitConfig{
			RPS:             rl.RPS,
			Burst:           rl.Burst,
			CleanupInterval: time.Duration(rl.CleanupInterval) * time.Second,
			MaxAge:          time.Duration(rl.MaxAge) * time.Second,
		}))
	}
	debug.GET("/intervals", debugIntervalsHandler(a.Config, a.fetcher))

	a.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:      router,
		ReadTimeout:  a.Config.Server.ReadTimeoutSeconds,
		WriteTimeout: a.Config.Server.WriteTimeoutSeconds,
	}
}

// Run blocks until ctx is cancelled or the ops server fails. In-flight
// ticks are waited for before it returns.
func (a *App) Run(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Logger.InfowCtx(ctx, "HTTP server starting", "port", a.Config.Server.Port)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
		defer cancel()
		return a.server.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		return a.scheduler.Run(gCtx)
	})

	return g.Wait()
}

func (a *App) Shutdown(ctx context.Context) error {
	return a.Base.Shutdown(ctx, func(ctx context.Context) []error {
		return a.dbConnector.ShutdownDatabases(ctx, a.conns)
	})
}
