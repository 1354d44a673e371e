package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/meshychat/meshy/internal/bus"
	"github.com/meshychat/meshy/internal/cache"
	"github.com/meshychat/meshy/internal/consent"
	"github.com/meshychat/meshy/internal/orchestrator"
	"github.com/meshychat/meshy/internal/server"
	"github.com/meshychat/meshy/internal/stats"
	"github.com/meshychat/meshy/internal/store"
	"github.com/meshychat/meshy/internal/tracing"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the translation orchestrator",
		Long: `Start the HTTP and WebSocket server.

Required configuration:
  MESHY_POSTGRES_URL  PostgreSQL connection string

Optional configuration:
  MESHY_REDIS_URL      Redis URL for pending-task persistence
  CONSENT_SERVICE_URL  voice consent service; voice cloning is denied without it`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}
}

func runServer(ctx context.Context) error {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if cfg.Otel.Enabled {
		shutdown, err := tracing.Init("meshy")
		if err != nil {
			return fmt.Errorf("initialize tracing: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				slog.Error("tracing shutdown failed", "error", err)
			}
		}()
	}

	pool, err := store.Connect(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()

	st := store.New(pool)
	if err := st.InitSchema(ctx); err != nil {
		return fmt.Errorf("initialize schema: %w", err)
	}

	var rdb *redis.Client
	if cfg.IsRedisConfigured() {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			slog.Warn("invalid redis URL, pending tasks stay in memory", "error", err)
		} else {
			rdb = redis.NewClient(opts)
			defer rdb.Close()
		}
	}

	busHub := bus.NewHub()
	busHandler := bus.NewHandler(busHub, cfg)
	wsHub := server.NewHub()

	consentClient := consent.NewClient(cfg.Consent.URL, cfg.Consent.BypassVoiceConsentCheck)
	statsObj := stats.New()

	orch := orchestrator.New(st, busHub, wsHub, consentClient, statsObj, orchestrator.Options{
		Translations: cache.NewTranslationCache(cfg.Pipeline.TranslationCacheSize),
		Languages:    cache.NewLanguageCache(cfg.Pipeline.LanguageCacheSize, cfg.Pipeline.LanguageCacheTTL),
		Processed:    cache.NewProcessedTaskSet(cfg.Pipeline.ProcessedTasksSize),
		Pending:      cache.NewPendingTasks(rdb),
		UploadsRoot:  cfg.Files.UploadsRoot,
		SyncTimeout:  cfg.Pipeline.SyncTranslateTimeout,
	})

	srv := server.New(cfg, orch, wsHub, busHandler, statsObj, pool.Ping)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting server",
			"host", cfg.Server.Host,
			"port", cfg.Server.Port,
			"redis", cfg.IsRedisConfigured(),
			"consent", cfg.IsConsentConfigured(),
		)
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigCh:
		slog.Info("shutting down", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	slog.Info("server stopped")
	return nil
}
