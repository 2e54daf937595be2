package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/bossom/bossom/internal/application"
	appanalysis "github.com/bossom/bossom/internal/application/analysis"
	appuploads "github.com/bossom/bossom/internal/application/uploads"
	"github.com/bossom/bossom/internal/config"
	"github.com/bossom/bossom/internal/domain/audit"
	"github.com/bossom/bossom/internal/infra/ai"
	mysqlp "github.com/bossom/bossom/internal/infra/db/mysql"
	"github.com/bossom/bossom/internal/infra/db/postgres"
	"github.com/bossom/bossom/internal/infra/httpserver"
	minioStore "github.com/bossom/bossom/internal/infra/storage"
	"github.com/bossom/bossom/internal/logging"
	"github.com/bossom/bossom/internal/middleware"
)

func main() {
	// path config.yaml
	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}

	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	clock := application.SystemClock{}
	checkers := map[string]middleware.HealthChecker{}

	// audit trail (optional)
	auditRepo, db, err := openAudit(ctx, cfg)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if db != nil {
		defer db.Close()
		checkers["database"] = &middleware.DatabaseHealthChecker{DB: db}
		logger.Info("audit trail enabled", zap.String("driver", cfg.Database.Driver))
	}

	gateway, err := ai.NewGateway(cfg)
	if err != nil {
		return err
	}
	analysisSvc := &appanalysis.Service{
		Gateway: gateway,
		Audit:   auditRepo,
		Clock:   clock,
		Logger:  logger.Named("analysis"),
	}

	// uploads need object storage
	var uploadSvc *appuploads.Service
	if cfg.StorageEnabled() {
		store, err := minioStore.New(ctx,
			cfg.Minio.Endpoint,
			cfg.Minio.Region,
			cfg.Minio.BucketName,
			cfg.Minio.AccessKey,
			cfg.Minio.SecretKey,
			cfg.Minio.UseSSL,
		)
		if err != nil {
			return fmt.Errorf("minio init: %w", err)
		}
		checkers["storage"] = store
		uploadSvc = &appuploads.Service{
			Collector:   appuploads.NewCollector(cfg.MaxUploadBytes(), cfg.Uploads.AllowedExtensions),
			Store:       store,
			Audit:       auditRepo,
			Clock:       clock,
			Logger:      logger.Named("uploads"),
			Concurrency: cfg.Uploads.Concurrency,
		}
		sweeper, err := startSweeper(cfg, uploadSvc.Collector, logger.Named("sweeper"))
		if err != nil {
			return err
		}
		defer sweeper.Stop()
	} else {
		logger.Warn("minio endpoint not set, upload endpoints disabled")
	}

	limiter := middleware.NewRateLimiter(cfg.RateLimit.Capacity, cfg.RateLimit.RefillPerSecond)
	defer limiter.Close()

	handler := httpserver.NewRouter(analysisSvc, uploadSvc, httpserver.Options{
		CORSOrigins:    cfg.Server.CORSOrigins,
		MaxUploadBytes: cfg.MaxUploadBytes(),
		MaxUploadFiles: cfg.Uploads.MaxFiles,
		RateLimiter:    limiter,
		Checkers:       checkers,
		AuditLog:       auditRepo,
		Logger:         logger.Named("http"),
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSeconds) * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server listening",
			zap.String("addr", addr),
			zap.String("provider", cfg.Inference.Provider))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	// graceful shutdown
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// startSweeper drops finished upload tasks on cfg.Uploads.SweepSchedule
func startSweeper(cfg *config.Config, collector *appuploads.Collector, logger *zap.Logger) (*cron.Cron, error) {
	c := cron.New()
	ttl := cfg.TaskTTL()
	if _, err := c.AddFunc(cfg.Uploads.SweepSchedule, func() {
		if n := collector.Sweep(ttl); n > 0 {
			logger.Info("swept upload tasks", zap.Int("removed", n), zap.Int("remaining", collector.Len()))
		}
	}); err != nil {
		return nil, fmt.Errorf("uploads.sweepSchedule: %w", err)
	}
	c.Start()
	return c, nil
}

// openAudit returns a nil repository when database.driver is empty
func openAudit(ctx context.Context, cfg *config.Config) (audit.Repository, *sql.DB, error) {
	if !cfg.DatabaseEnabled() {
		return nil, nil, nil
	}
	d := cfg.Database
	switch d.Driver {
	case "mysql":
		db, err := mysqlp.Connect(ctx, mysqlp.DSN(d.Host, d.Port, d.User, d.Password, d.Name))
		if err != nil {
			return nil, nil, err
		}
		repo := mysqlp.NewAuditRepository(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		return repo, db, nil
	case "postgres":
		db, err := postgres.Connect(ctx, postgres.DSN(d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode))
		if err != nil {
			return nil, nil, err
		}
		repo := postgres.NewAuditRepository(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		return repo, db, nil
	}
	return nil, nil, nil
}
