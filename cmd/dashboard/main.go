package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/andresuchdata/banking-pipeline/internal/api"
	"github.com/andresuchdata/banking-pipeline/internal/cache"
	"github.com/andresuchdata/banking-pipeline/internal/config"
	"github.com/andresuchdata/banking-pipeline/internal/reporting"
	"github.com/andresuchdata/banking-pipeline/internal/service"
	"github.com/andresuchdata/banking-pipeline/internal/warehouse"
	"github.com/andresuchdata/banking-pipeline/pkg/logger"
	"github.com/gin-gonic/gin"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	logger.Configure("dashboard", cfg.Log.Level, cfg.Log.Format)
	if cfg.Server.Mode == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx := context.Background()

	// Warehouse credentials come from the secrets file, falling back to env
	whCfg, found, err := config.LoadDashboardSecrets(cfg.Dashboard.SecretsFile, cfg.Warehouse)
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to read dashboard secrets")
	}
	if !found {
		logger.Log.Warn().Str("path", cfg.Dashboard.SecretsFile).Msg("Secrets file not found, using SNOWFLAKE_* environment")
	}

	// One warehouse session for the lifetime of the process
	db, err := warehouse.Open(ctx, whCfg)
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to connect to warehouse")
	}
	defer db.Close()

	dashboardCache := cache.NewNoopDashboardCache()
	if cfg.Cache.Enabled {
		rdb, err := cache.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			logger.Log.Warn().Err(err).Msg("Redis unavailable, dashboard cache disabled")
		} else {
			defer rdb.Close()
			dashboardCache = cache.NewDashboardCache(rdb, cfg.Cache.DashboardTTLSeconds)
		}
	}

	// Initialize services
	dashboardService := service.NewDashboardService(reporting.NewReader(db), dashboardCache, cfg.Dashboard.RowLimit)

	// Initialize HTTP server
	router := api.NewRouter(&api.Services{DashboardService: dashboardService}, cfg.Server.AllowedOrigins)
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Log.Info().Str("port", cfg.Server.Port).Msg("Starting dashboard server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Error().Err(err).Msg("Server forced to shutdown")
	}

	logger.Log.Info().Msg("Server exiting")
}
