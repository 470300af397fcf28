package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/ticket-tracker/internal/api/http"
	"github.com/spec-kit/ticket-tracker/internal/api/http/handlers"
	"github.com/spec-kit/ticket-tracker/internal/auth"
	"github.com/spec-kit/ticket-tracker/internal/config"
	"github.com/spec-kit/ticket-tracker/internal/events"
	"github.com/spec-kit/ticket-tracker/internal/observability"
	"github.com/spec-kit/ticket-tracker/internal/persistence"
	"github.com/spec-kit/ticket-tracker/internal/repository"
	"github.com/spec-kit/ticket-tracker/internal/repository/memory"
	"github.com/spec-kit/ticket-tracker/internal/router"
	"github.com/spec-kit/ticket-tracker/internal/screens"
	"github.com/spec-kit/ticket-tracker/internal/service"
	"github.com/spec-kit/ticket-tracker/internal/session"
	"github.com/spec-kit/ticket-tracker/internal/worker"
)

type repositories struct {
	identities repository.IdentityRepository
	profiles   repository.ProfileRepository
	tickets    repository.TicketRepository
	history    repository.TicketHistoryRepository
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metrics := observability.NewMetrics()

	var pg *persistence.Postgres
	repos := memoryRepositories()
	if cfg.Tracker.Backend == config.BackendPostgres {
		pg, err = persistence.NewPostgres(ctx, cfg.Postgres, logger)
		if err != nil {
			logger.Fatal("failed to connect postgres", zap.Error(err))
		}
		defer pg.Close()

		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
				logger.Fatal("failed to run migrations", zap.Error(err))
			}
		}
		repos = postgresRepositories(pg)
	}
	logger.Info("storage backend selected", zap.String("backend", cfg.Tracker.Backend))

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	var tokenCache session.TokenCache
	if redis.Enabled() {
		tokenCache = session.NewRedisTokenCache(redis.Client, cfg.Tracker.SessionKey)
	}
	defer redis.Close()

	sessions := session.NewStore(session.Options{
		BcryptCost:        cfg.Auth.BcryptCost,
		MinPasswordLength: cfg.Auth.MinPasswordLength,
	}, session.Dependencies{
		Identities: repos.identities,
		Tokens:     auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.SessionTTL()),
		Cache:      tokenCache,
		Logger:     logger,
	})
	if err := sessions.Restore(ctx); err != nil {
		logger.Warn("failed to restore session", zap.Error(err))
	}

	dispatcher := events.NewInMemoryDispatcher()
	notifier := worker.NewNotificationWorker(dispatcher,
		service.NewNotificationService(logger, cfg.Notification, nil),
		cfg.Notification.QueueSize, logger)
	notifier.Start(ctx)
	defer notifier.Stop()

	authService := service.NewAuthService(*cfg, service.AuthDependencies{
		Session:  sessions,
		Profiles: repos.profiles,
		Metrics:  metrics,
		Logger:   logger,
	})
	ticketService := service.NewTicketService(service.TicketDependencies{
		Session:     sessions,
		TicketRepo:  repos.tickets,
		HistoryRepo: repos.history,
		ProfileRepo: repos.profiles,
		Dispatcher:  dispatcher,
		Metrics:     metrics,
		Logger:      logger,
	})

	modes := router.New(sessions, authService, logger)
	shell := screens.NewShell(modes, ticketService, logger)
	shell.Start(ctx)
	defer shell.Stop()
	if err := modes.Start(ctx); err != nil {
		logger.Fatal("failed to start router", zap.Error(err))
	}
	defer modes.Stop()

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:   handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, cfg.Tracker.Backend, pg, redis),
		Auth:     handlers.NewAuthHandler(authService, modes, shell, cfg.App.RequestTimeout()),
		Tickets:  handlers.NewTicketsHandler(ticketService, shell),
		Admin:    handlers.NewAdminTicketsHandler(ticketService, shell),
		Modes:    modes,
		Registry: metrics.Registry(),
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func memoryRepositories() repositories {
	return repositories{
		identities: memory.NewIdentityStore(),
		profiles:   memory.NewProfileStore(),
		tickets:    memory.NewTicketStore(),
		history:    memory.NewHistoryStore(),
	}
}

func postgresRepositories(pg *persistence.Postgres) repositories {
	pool := pg.PoolHandle()
	return repositories{
		identities: repository.NewIdentityRepository(pool),
		profiles:   repository.NewProfileRepository(pool),
		tickets:    repository.NewTicketRepository(pool),
		history:    repository.NewTicketHistoryRepository(pool),
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
