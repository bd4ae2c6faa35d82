// Package main is the entry point for the DocSight API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Shimizu-Technology/docsight-api/internal/config"
	"github.com/Shimizu-Technology/docsight-api/internal/database"
	"github.com/Shimizu-Technology/docsight-api/internal/handlers"
	"github.com/Shimizu-Technology/docsight-api/internal/logger"
	"github.com/Shimizu-Technology/docsight-api/internal/middleware"
	"github.com/Shimizu-Technology/docsight-api/internal/router"
	"github.com/Shimizu-Technology/docsight-api/internal/services/analysis"
	"github.com/Shimizu-Technology/docsight-api/internal/services/pdf"
	"github.com/Shimizu-Technology/docsight-api/internal/services/speech"
	"github.com/Shimizu-Technology/docsight-api/internal/services/summary"
	"github.com/Shimizu-Technology/docsight-api/internal/services/worker"
	"github.com/Shimizu-Technology/docsight-api/internal/session"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	// Step 1: Load Configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Step 2: Logger
	log := logger.New(logger.Options{FilePath: cfg.LogFile, Production: cfg.Production()})
	defer func() { _ = log.Sync() }()

	log.Info("DocSight API starting",
		zap.String("version", Version),
		zap.String("port", cfg.Port),
		zap.Int("workers", cfg.WorkerCount),
		zap.String("gin_mode", cfg.GinMode),
		zap.String("env", cfg.AppEnv))
	gin.SetMode(cfg.GinMode)

	// Step 3: Optional database for chat history and the run log
	var store handlers.Store
	if cfg.DatabaseURL != "" {
		db, err := database.New(cfg.DatabaseURL)
		if err != nil {
			log.Fatal("failed to connect to database", zap.Error(err))
		}
		defer db.Close()
		if err := db.RunMigrations(cfg.MigrationsPath, log); err != nil {
			log.Fatal("migration failed", zap.Error(err))
		}
		store = db
		log.Info("database connected")
	} else {
		log.Warn("no DATABASE_URL set; chat history and run log are disabled")
	}

	// Step 4: Create Services
	var gen summary.Generator
	gemini, err := summary.NewGemini(context.Background(), cfg.GeminiAPIKey)
	switch {
	case err == nil:
		defer gemini.Close()
		gen = gemini
		log.Info("LLM enabled", zap.String("model", cfg.GeminiModel))
	case errors.Is(err, summary.ErrNotConfigured):
		log.Warn("LLM disabled; set GEMINI_API_KEY to enable ask, facts and podcast")
	default:
		log.Fatal("failed to create Gemini client", zap.Error(err))
	}
	summarizer := summary.New(gen, cfg.GeminiModel, cfg.GeminiPodcastModel, log)

	synth := speech.New(cfg.AzureSpeechKey, cfg.AzureSpeechRegion, cfg.AzureSpeechVoice, log)
	if !synth.Configured() {
		log.Warn("speech disabled; set AZURE_SPEECH_KEY and AZURE_SPEECH_REGION to enable podcasts")
	}

	backend := analysis.New(cfg.OutlineBaseURL, cfg.AnalysisBaseURL, log)

	// Step 5: Create and Start Worker Pool
	wp := worker.NewPool(cfg.WorkerCount, cfg.JobQueueSize, log)
	wp.Start()
	defer wp.Stop()

	// Step 6: Session registry
	sessions := session.NewManager(cfg.SessionTTL, session.Options{
		Opener:         pdf.Opener(),
		Logger:         log,
		RequestTimeout: cfg.BackendTimeout,
	})
	defer sessions.Shutdown()

	rateLimiter := middleware.NewRateLimiter(cfg.RateLimitPerHour)
	defer rateLimiter.Stop()

	// Step 7: Setup HTTP Router
	h := handlers.NewHandler(handlers.Deps{
		Sessions: sessions,
		Analysis: backend,
		Summary:  summarizer,
		Speech:   synth,
		Worker:   wp,
		Store:    store,
		Logger:   log,
		Settings: handlers.Settings{
			Version:        Version,
			JWTSecret:      cfg.JWTSecret,
			TokenTTL:       cfg.SessionTTL,
			MaxUploadBytes: cfg.MaxUploadBytes,
			ViewerClientID: cfg.ViewerClientID(),
			Environment:    cfg.AppEnv,
			Model:          cfg.GeminiModel,
		},
	})
	r := router.Setup(h, router.Options{
		JWTSecret:      cfg.JWTSecret,
		AllowedOrigins: cfg.AllowedOrigins,
		RateLimiter:    rateLimiter,
		Logger:         log,
	})

	// Step 8: Start the HTTP Server
	// No WriteTimeout: the event stream and highlight waits hold responses open.
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("server listening",
			zap.String("addr", "http://localhost:"+cfg.Port),
			zap.String("docs", "http://localhost:"+cfg.Port+"/api/docs"))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	// Step 9: Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quit
	log.Info("shutting down", zap.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Warn("server forced to shutdown", zap.Error(err))
	}

	log.Info("server stopped")
}
