package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ekaya-inc/ekaya-gateway/pkg/adapters/datasource"
	_ "github.com/ekaya-inc/ekaya-gateway/pkg/adapters/datasource/clickhouse"
	_ "github.com/ekaya-inc/ekaya-gateway/pkg/adapters/datasource/mssql"
	_ "github.com/ekaya-inc/ekaya-gateway/pkg/adapters/datasource/mysql"
	_ "github.com/ekaya-inc/ekaya-gateway/pkg/adapters/datasource/postgres"
	"github.com/ekaya-inc/ekaya-gateway/pkg/config"
	"github.com/ekaya-inc/ekaya-gateway/pkg/crypto"
	"github.com/ekaya-inc/ekaya-gateway/pkg/handlers"
	"github.com/ekaya-inc/ekaya-gateway/pkg/logging"
	"github.com/ekaya-inc/ekaya-gateway/pkg/middleware"
	"github.com/ekaya-inc/ekaya-gateway/pkg/planning"
	"github.com/ekaya-inc/ekaya-gateway/pkg/repositories"
	"github.com/ekaya-inc/ekaya-gateway/pkg/services"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	// .env is optional; real environment variables win.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("Ignoring unreadable .env: %v", err)
	}

	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Env, cfg.Debug)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("Gateway stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	logger.Info("Configuration loaded",
		zap.String("environment", cfg.Env),
		zap.String("listen_addr", cfg.ListenAddr()),
		zap.String("business_planning_url", cfg.BusinessPlanning.BaseURL),
		zap.String("store", cfg.Store.Driver),
		zap.Bool("in_docker", config.IsRunningInDocker()))

	connMgr := datasource.NewConnectionManager(datasource.ConnectionManagerConfig{
		TTLMinutes:     cfg.Datasource.ConnectionTTLMinutes,
		MaxConnections: cfg.Datasource.MaxConnections,
		PoolMaxConns:   cfg.Datasource.PoolMaxConns,
		PoolMinConns:   cfg.Datasource.PoolMinConns,
	}, logger)
	defer func() {
		if err := connMgr.Close(); err != nil {
			logger.Error("Failed to close connection manager", zap.Error(err))
		}
	}()

	repo, closeRepo, err := openRepository(cfg, logger)
	if err != nil {
		return err
	}
	defer closeRepo()

	databaseService := services.NewDatabaseService(
		repo,
		datasource.NewDatasourceAdapterFactory(connMgr),
		connMgr,
		cfg.Datasource.QueryTimeout,
		logger,
	)
	planningClient := planning.NewClient(cfg.BusinessPlanning.BaseURL, cfg.BusinessPlanning.Timeout, logger)

	mux := http.NewServeMux()
	handlers.NewHealthHandler(cfg, connMgr, logger).RegisterRoutes(mux)
	handlers.NewBusinessPlanningHandler(planningClient, logger.Named("business-planning")).RegisterRoutes(mux)
	handlers.NewDatabaseHandler(databaseService, logger.Named("database-routes")).RegisterRoutes(mux)

	server := &http.Server{
		Addr: cfg.ListenAddr(),
		Handler: middleware.Chain(mux,
			middleware.Recoverer(logger),
			middleware.RequestLogger(logger.Named("http")),
		),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Starting ekaya-gateway",
			zap.String("addr", server.Addr),
			zap.String("version", cfg.Version))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down", zap.Duration("timeout", cfg.ShutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

// openRepository builds the connection store selected by cfg.Store.Driver.
func openRepository(cfg *config.Config, logger *zap.Logger) (repositories.ConnectionRepository, func(), error) {
	if cfg.Store.Driver != "sqlite" {
		logger.Warn("Connections are kept in memory and lost on restart")
		return repositories.NewMemoryConnectionRepository(), func() {}, nil
	}

	enc, err := crypto.NewCredentialEncryptor(cfg.CredentialsKey)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create credential encryptor: %w", err)
	}

	db, err := repositories.OpenSQLite(cfg.Store.Path)
	if err != nil {
		return nil, nil, err
	}
	closeDB := func() { closeGorm(db, logger) }

	repo, err := repositories.NewGormConnectionRepository(db, enc)
	if err != nil {
		closeDB()
		return nil, nil, err
	}

	logger.Info("Connection store opened",
		zap.String("path", cfg.Store.Path),
		zap.String("key_fingerprint", enc.Fingerprint()))
	return repo, closeDB, nil
}

func closeGorm(db *gorm.DB, logger *zap.Logger) {
	sqlDB, err := db.DB()
	if err != nil {
		return
	}
	if err := sqlDB.Close(); err != nil {
		logger.Error("Failed to close connection store", zap.Error(err))
	}
}
