package setup

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/squadhub/squadlink/internal/battlemetrics"
	"github.com/squadhub/squadlink/internal/database"
	"github.com/squadhub/squadlink/internal/database/migrations"
	"github.com/squadhub/squadlink/internal/redis"
	"github.com/squadhub/squadlink/internal/roles"
	"github.com/squadhub/squadlink/internal/setup/config"
	"github.com/squadhub/squadlink/internal/setup/telemetry"
	"github.com/uptrace/bun/migrate"
	"go.uber.org/zap"
)

// App bundles all core dependencies and services needed by the application.
// Each field represents a major subsystem that needs initialization and cleanup.
type App struct {
	Config       *config.Config        // Application configuration
	Logger       *zap.Logger           // Main application logger
	DBLogger     *zap.Logger           // Database-specific logger
	DB           database.Client       // Database connection pool
	BMClient     *battlemetrics.Client // Player-management API client
	RedisManager *redis.Manager        // Redis connection manager
	RoleMapping  *roles.Mapping        // Tracked role groups
	LogManager   *telemetry.Manager    // Log management system
	pprofServer  *pprofServer          // Debug HTTP server for pprof
}

// InitializeApp bootstraps all application dependencies in the correct order,
// ensuring each component has its required dependencies available.
func InitializeApp(ctx context.Context, serviceType telemetry.ServiceType, logDir, workerType string) (*App, error) {
	cfg, _, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}

	// Logging system is initialized next to capture setup issues
	logManager := telemetry.NewManager(serviceType, logDir, &cfg.Common.Debug, workerType)

	logger, dbLogger, err := logManager.GetLoggers()
	if err != nil {
		return nil, err
	}

	mapping, err := roles.NewMapping(cfg.Common.Roles)
	if err != nil {
		return nil, fmt.Errorf("invalid role configuration: %w", err)
	}

	redisManager := redis.NewManager(&cfg.Common.Redis, logger)

	// The sync service mirrors member access as a player flag, so the API
	// client exists before the database layer is wired.
	bmClient := battlemetrics.NewClient(
		cfg.Common.BattleMetrics.BaseURL,
		cfg.Common.BattleMetrics.Token,
		time.Duration(cfg.Common.BattleMetrics.RequestIntervalMS)*time.Millisecond,
		logger,
	)

	db, err := checkAndRunMigrations(ctx, &cfg.Common, mapping, bmClient, dbLogger)
	if err != nil {
		return nil, err
	}

	var pprofSrv *pprofServer

	if cfg.Common.Debug.EnablePprof {
		srv, err := startPprofServer(cfg.Common.Debug.PprofPort, logger)
		if err != nil {
			logger.Error("Failed to start pprof server", zap.Error(err))
		} else {
			pprofSrv = srv

			logger.Warn("pprof debugging endpoint enabled - this should not be used in production!")
		}
	}

	return &App{
		Config:       cfg,
		Logger:       logger,
		DBLogger:     dbLogger.Named("database"),
		DB:           db,
		BMClient:     bmClient,
		RedisManager: redisManager,
		RoleMapping:  mapping,
		LogManager:   logManager,
		pprofServer:  pprofSrv,
	}, nil
}

// Cleanup ensures graceful shutdown of all components in reverse initialization order.
// Logs but does not fail on cleanup errors to ensure all components get cleanup attempts.
func (s *App) Cleanup(ctx context.Context) {
	if s.pprofServer != nil {
		s.pprofServer.shutdown(ctx)
		s.pprofServer.listener.Close()
	}

	// Sync buffered logs before shutdown
	if err := s.Logger.Sync(); err != nil {
		log.Printf("Failed to sync logger: %v", err)
	}

	if err := s.DBLogger.Sync(); err != nil {
		log.Printf("Failed to sync DB logger: %v", err)
	}

	if err := s.DB.Close(); err != nil {
		log.Printf("Failed to close database connection: %v", err)
	}

	// Close Redis connections last as other components might need it during cleanup
	s.RedisManager.Close()
}

// checkAndRunMigrations runs database migrations if needed.
func checkAndRunMigrations(
	ctx context.Context, cfg *config.CommonConfig, mapping *roles.Mapping,
	bmClient *battlemetrics.Client, dbLogger *zap.Logger,
) (database.Client, error) {
	tempDB, err := database.NewConnection(ctx, cfg, mapping, bmClient, dbLogger, false)
	if err != nil {
		return nil, err
	}

	migrator := migrate.NewMigrator(tempDB.DB(), migrations.Migrations)

	ms, err := migrator.MigrationsWithStatus(ctx)
	if err != nil {
		tempDB.Close()
		return nil, fmt.Errorf("failed to check migration status: %w", err)
	}

	var db database.Client

	unapplied := ms.Unapplied()
	if len(unapplied) > 0 {
		log.Println("Database migrations are pending. Would you like to run them now? (y/N)")

		var response string

		_, _ = fmt.Scanln(&response)

		if response == "y" || response == "Y" {
			tempDB.Close()

			db, err = database.NewConnection(ctx, cfg, mapping, bmClient, dbLogger, true)
		} else {
			log.Fatalf("Closing program due to incomplete migrations")
		}
	} else {
		db = tempDB
	}

	return db, err
}
