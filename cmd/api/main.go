package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/query-triage/internal/api/http"
	"github.com/spec-kit/query-triage/internal/api/http/handlers"
	"github.com/spec-kit/query-triage/internal/auth"
	"github.com/spec-kit/query-triage/internal/classifier"
	"github.com/spec-kit/query-triage/internal/config"
	"github.com/spec-kit/query-triage/internal/events"
	"github.com/spec-kit/query-triage/internal/observability"
	"github.com/spec-kit/query-triage/internal/persistence"
	"github.com/spec-kit/query-triage/internal/realtime"
	"github.com/spec-kit/query-triage/internal/repository"
	"github.com/spec-kit/query-triage/internal/service"
	"github.com/spec-kit/query-triage/internal/worker"
	"github.com/spec-kit/query-triage/migrations"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "triage-service",
		Short:         "Customer query triage service",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
	cmd.AddCommand(newServeCommand())
	cmd.AddCommand(newMigrateCommand())
	cmd.AddCommand(newClassifyCommand())
	return cmd
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and websocket server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
}

// bootstrap loads configuration and the logger shared by every command.
func bootstrap() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := observability.NewLogger(cfg.App, cfg.Logger)
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, logger, nil
}

func runServe(parent context.Context) error {
	cfg, logger, err := bootstrap()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(registry)

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pg.Close()

	if pg.Enabled() && cfg.Postgres.RunMigrations {
		if _, err := persistence.RunMigrations(ctx, pg.Pool, migrations.Files, logger); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
	}

	redis, err := persistence.NewRedis(ctx, cfg.Redis, logger)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer redis.Close()

	store, operators := buildStores(pg, redis, cfg.Redis)

	catalog, err := classifier.LoadCatalogFile(cfg.Catalog.File)
	if err != nil {
		return fmt.Errorf("load category catalog: %w", err)
	}
	cls := classifier.New(catalog)
	var reloader *classifier.Reloader
	if cfg.Catalog.File != "" {
		reloader = classifier.NewReloader(cfg.Catalog.File, cls, logger)
	}

	dispatcher := events.NewInMemoryDispatcher(logger)
	router := realtime.NewRouter(realtime.RouterOptions{
		SendBuffer:   cfg.Notification.SendBuffer,
		PingInterval: cfg.Notification.PingInterval(),
		Metrics:      metrics,
		Logger:       logger,
	})
	events.SubscribeAll(dispatcher, router.Publish)

	exporter := service.NewNotificationService(dispatcher, service.NewKafkaWriter(cfg.Kafka), logger, metrics)
	waitExporter := worker.StartNotificationWorker(ctx, exporter)
	waitRefresher := worker.StartCatalogRefresher(ctx, reloader, cfg.Catalog.RefreshInterval(), metrics, logger)

	lifecycle := service.NewLifecycleService(service.LifecycleDependencies{
		Store:      store,
		Classifier: cls,
		Operators:  operators,
		Publisher:  dispatcher,
		Metrics:    metrics,
		Logger:     logger,
	})

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL())
	authService := service.NewAuthService(operators, tokens)
	operatorService := service.NewOperatorService(operators, store, cfg.Auth.BcryptCost)
	if created, err := operatorService.EnsureAdmin(ctx, cfg.Auth.BootstrapEmail, cfg.Auth.BootstrapPassword); err != nil {
		return fmt.Errorf("bootstrap admin: %w", err)
	} else if created {
		logger.Info("bootstrap admin created", zap.String("email", cfg.Auth.BootstrapEmail))
	}
	authMiddleware := auth.NewAuthMiddleware(tokens, operators)
	gateway := realtime.NewGateway(authMiddleware, router, logger)

	app := httptransport.NewApp(cfg.App.Name)
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health: handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, map[string]handlers.Dependency{
			"postgres": pg,
			"redis":    redis,
		}, func() int { return router.Sessions("") }),
		Auth:           handlers.NewAuthHandler(authService),
		Queries:        handlers.NewQueriesHandler(lifecycle),
		Webhooks:       handlers.NewWebhooksHandler(lifecycle, logger),
		Categories:     handlers.NewCategoriesHandler(cls, reloader, metrics),
		Analytics:      handlers.NewAnalyticsHandler(lifecycle, operatorService),
		Operators:      handlers.NewOperatorsHandler(operatorService),
		AuthMiddleware: authMiddleware,
		Gatherer:       registry,
		Gateway:        gateway,
		WSSession: realtime.SessionOptions{
			WriteTimeout: cfg.Notification.WriteTimeout(),
			PongWait:     cfg.Notification.PongWait(),
		},
		Logger: logger,
	})

	listenErr := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.App.Addr()))
		listenErr <- app.Listen(cfg.App.Addr())
	}()

	select {
	case err = <-listenErr:
		logger.Error("fiber listen", zap.Error(err))
	case <-waitForShutdown(ctx, logger):
	}

	if shutdownErr := app.Shutdown(); shutdownErr != nil {
		logger.Warn("http shutdown", zap.Error(shutdownErr))
	}
	router.Close()
	cancel()
	waitExporter()
	waitRefresher()
	return err
}

// buildStores picks Postgres and Redis backed repositories when configured and
// falls back to memory otherwise.
func buildStores(pg *persistence.Postgres, redis *persistence.Redis, redisCfg config.RedisConfig) (repository.Store, repository.OperatorRepository) {
	memory := repository.NewMemoryStore()

	var loads repository.LoadCounter = memory
	if redis.Enabled() {
		loads = repository.NewRedisLoadCounter(redis.Client, redisCfg.LoadKey)
	}

	if !pg.Enabled() {
		return repository.NewStore(memory, loads), repository.NewMemoryOperators()
	}
	return repository.NewStore(repository.NewQueryRepository(pg.Pool), loads), repository.NewOperatorRepository(pg.Pool)
}

func waitForShutdown(ctx context.Context, logger *zap.Logger) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigCh)

		select {
		case sig := <-sigCh:
			logger.Info("shutting down", zap.String("signal", sig.String()))
		case <-ctx.Done():
		}
	}()
	return done
}
