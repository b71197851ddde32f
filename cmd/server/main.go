package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/andresuchdata/pharmstock/backend-go/internal/api"
	"github.com/andresuchdata/pharmstock/backend-go/internal/api/middleware"
	"github.com/andresuchdata/pharmstock/backend-go/internal/app"
	"github.com/andresuchdata/pharmstock/backend-go/internal/config"
	"github.com/andresuchdata/pharmstock/backend-go/internal/scheduler"
	"github.com/andresuchdata/pharmstock/backend-go/pkg/logger"
)

func main() {
	cfg := config.Load()

	logger.Configure(cfg.App.LogLevel, cfg.App.LogFormat)
	if cfg.Server.Mode == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx := context.Background()
	application, err := app.New(ctx, cfg)
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to initialize application")
	}
	defer application.Close()

	stop := make(chan struct{})
	var limiter *middleware.RateLimiter
	if cfg.Server.RateLimit > 0 {
		limiter = middleware.NewRateLimiter(float64(cfg.Server.RateLimit), cfg.Server.RateBurst)
		limiter.RunCleanup(30*time.Minute, stop)
	}

	router := api.NewRouter(application.Service, api.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		RateLimiter:    limiter,
		UploadDir:      cfg.App.UploadDir,
		MaxUpload:      cfg.Server.MaxUploadMB << 20,
	})
	router.MaxMultipartMemory = cfg.Server.MaxUploadMB << 20

	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		sched = scheduler.New(application.Service, cfg.Scheduler.SyncCron, 30*time.Minute)
		if err := sched.Start(); err != nil {
			logger.Log.Fatal().Err(err).Msg("Failed to start scheduler")
		}
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Log.Info().Str("port", cfg.Server.Port).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info().Msg("Shutting down server...")

	close(stop)
	if sched != nil {
		sched.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Error().Err(err).Msg("Server forced to shutdown")
	}

	logger.Log.Info().Msg("Server exiting")
}
