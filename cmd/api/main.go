// Package main is the entry point for the media download API.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/abujamalhack/Snapchat-pro/internal/config"
	"github.com/abujamalhack/Snapchat-pro/internal/infra/cache"
	"github.com/abujamalhack/Snapchat-pro/internal/infra/fs"
	"github.com/abujamalhack/Snapchat-pro/internal/infra/r2"
	"github.com/abujamalhack/Snapchat-pro/internal/infra/sqlite"
	"github.com/abujamalhack/Snapchat-pro/internal/service/admission"
	"github.com/abujamalhack/Snapchat-pro/internal/service/pipeline"
	"github.com/abujamalhack/Snapchat-pro/internal/service/process"
	"github.com/abujamalhack/Snapchat-pro/internal/service/scheduler"
	"github.com/abujamalhack/Snapchat-pro/internal/service/scrape"
	"github.com/abujamalhack/Snapchat-pro/internal/service/transfer"
	transporthttp "github.com/abujamalhack/Snapchat-pro/internal/transport/http"
	"github.com/abujamalhack/Snapchat-pro/internal/transport/http/middleware"
	"github.com/abujamalhack/Snapchat-pro/pkg/fetch"
	"github.com/abujamalhack/Snapchat-pro/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	format := "text"
	if cfg.IsProduction() {
		format = "json"
	}
	logger.Setup(&logger.Config{Level: cfg.LogLevel, Format: format})

	slog.Info("Starting media download API",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	// Outbound HTTP client shared by scraping and transfers
	client := fetch.New(&fetch.Config{
		Timeout:           cfg.RequestTimeout,
		RetryAttempts:     cfg.RetryAttempts,
		MaxInFlight:       cfg.MaxFetchInFlight,
		RequestsPerSecond: 5,
	})

	storyCache := cache.New(cfg.CacheTTL, 2*cfg.CacheTTL)

	scraper := scrape.New(&scrape.Config{
		StoryURL:     "https://story.snapchat.com/s/%s",
		SpotlightURL: "https://www.snapchat.com/spotlight/%s",
		MaxItems:     cfg.MaxStoryItems,
	}, client, storyCache)

	transfers := transfer.New(&transfer.Config{
		MaxConcurrent:  cfg.MaxConcurrentDownloads,
		MaxFileSize:    cfg.MaxFileSize,
		RequestTimeout: cfg.RequestTimeout,
		BatchTimeout:   cfg.BatchTimeout,
		TempDir:        cfg.TempDir,
	}, client)

	// Watermark removal is skipped when ffmpeg is not installed
	var processor pipeline.Processor
	remover := process.New(&process.Config{
		FFmpegPath: cfg.FFmpegPath,
		OutputDir:  cfg.TempDir,
		Timeout:    cfg.ProcessTimeout,
	})
	if err := remover.CheckFFmpeg(); err != nil {
		slog.Warn("ffmpeg not available, serving media unprocessed", "error", err)
	} else {
		processor = remover
	}

	// R2 result store is optional; without it large results stay on disk
	var store pipeline.ResultStore
	var remote fs.RemoteStore
	if cfg.R2AccountID != "" {
		r2Client, err := r2.NewClient(context.Background(), &r2.Config{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			BucketName:      cfg.R2BucketName,
			PublicURL:       cfg.R2PublicURL,
		})
		if err != nil {
			slog.Warn("R2 not configured, keeping results local", "error", err)
		} else {
			store = r2Client
			remote = r2Client
		}
	}

	repo, err := sqlite.NewRepository(cfg.DataDir)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer repo.Close()

	pipe := pipeline.New(&pipeline.Config{
		TempDir:       cfg.TempDir,
		MaxInlineSize: cfg.MaxInlineSize,
	}, scraper, transfers, processor, store)

	sched := scheduler.New(&scheduler.Config{
		MaxConcurrent: cfg.MaxConcurrentJobs,
	}, pipe.Execute, repo)
	sched.Start(context.Background())

	limiter := admission.New(&admission.Config{
		RequestsPerMinute: cfg.RateLimitRPM,
		Burst:             cfg.RateLimitBurst,
		CleanupInterval:   10 * time.Minute,
	})

	cleaner := fs.NewCleaner(&fs.CleanerConfig{
		LocalDir:       cfg.TempDir,
		LocalMaxAge:    cfg.LocalMaxAge,
		LocalInterval:  cfg.LocalCleanupInterval,
		Remote:         remote,
		RemoteMaxAge:   cfg.R2MaxFileAge,
		RemoteInterval: cfg.R2CleanupInterval,
	})
	cleaner.Start(context.Background())

	// Per-IP edge limiters
	submitLimiter := middleware.NewRateLimiter(&middleware.RateLimitConfig{
		RequestsPerMinute: cfg.EdgeRateLimitRPM,
		Burst:             cfg.EdgeRateLimitBurst,
		CleanupInterval:   10 * time.Minute,
	})
	statusLimiter := middleware.NewRateLimiter(&middleware.RateLimitConfig{
		RequestsPerMinute: cfg.EdgeRateLimitRPM * 4,
		Burst:             cfg.EdgeRateLimitBurst * 4,
		CleanupInterval:   10 * time.Minute,
	})

	handlers := transporthttp.NewHandlers(sched, limiter)
	router := transporthttp.NewRouter(cfg, handlers, &transporthttp.RateLimiters{
		Submit: submitLimiter,
		Status: statusLimiter,
	})
	server := transporthttp.NewServer(":"+cfg.Port, router)

	go func() {
		slog.Info("Server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		slog.Warn("Server shutdown error", "error", err)
	}

	// Stop intake first, then let active jobs wind down
	sched.Stop()
	cleaner.Stop()
	limiter.Stop()
	submitLimiter.Stop()
	statusLimiter.Stop()

	slog.Info("Shutdown complete")
}
