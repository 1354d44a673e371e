package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/meshychat/meshy/internal/config"
)

// Version information (set via ldflags)
var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

var cfg *config.Config

func main() {
	rootCmd := &cobra.Command{
		Use:   "meshyd",
		Short: "Meshy translation orchestrator",
		Long: `meshyd sits between a chat platform and its translation worker pool.
It persists inbound messages, fans translation and voice work out to workers
over WebSocket and pushes finished results back to conversation subscribers.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// A missing .env file is fine; the environment wins either way.
			_ = godotenv.Load()
			cfg = config.Load()
		},
	}

	rootCmd.AddCommand(
		serveCmd(),
		translateCmd(),
		configCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// configCmd shows the effective configuration
func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("Server:")
			fmt.Printf("  Host:               %s\n", cfg.Server.Host)
			fmt.Printf("  Port:               %d\n", cfg.Server.Port)
			fmt.Printf("  Allowed Origins:    %s\n", strings.Join(cfg.Server.AllowedOrigins, ", "))
			fmt.Printf("  Allow Empty Origin: %t\n", cfg.Server.AllowEmptyOrigin)
			fmt.Printf("  Worker Secret:      %s\n", maskSecret(cfg.Server.WorkerSecret))
			fmt.Println()

			fmt.Println("Database:")
			fmt.Printf("  PostgreSQL: %s\n", maskSecret(cfg.Database.URL))
			fmt.Println()

			fmt.Println("Redis:")
			fmt.Printf("  URL:    %s\n", maskSecret(cfg.Redis.URL))
			fmt.Printf("  Status: %s\n", boolStatus(cfg.IsRedisConfigured()))
			fmt.Println()

			fmt.Println("Files:")
			fmt.Printf("  Uploads Root: %s\n", cfg.Files.UploadsRoot)
			fmt.Println()

			fmt.Println("Consent:")
			fmt.Printf("  URL:    %s\n", cfg.Consent.URL)
			fmt.Printf("  Bypass: %t\n", cfg.Consent.BypassVoiceConsentCheck)
			fmt.Printf("  Status: %s\n", boolStatus(cfg.IsConsentConfigured()))
			fmt.Println()

			fmt.Println("Pipeline:")
			fmt.Printf("  Translation Cache:   %d entries\n", cfg.Pipeline.TranslationCacheSize)
			fmt.Printf("  Language Cache:      %d entries, %s TTL\n", cfg.Pipeline.LanguageCacheSize, cfg.Pipeline.LanguageCacheTTL)
			fmt.Printf("  Processed Tasks:     %d entries\n", cfg.Pipeline.ProcessedTasksSize)
			fmt.Printf("  Sync Translate Wait: %s\n", cfg.Pipeline.SyncTranslateTimeout)
			fmt.Println()

			fmt.Println("OpenTelemetry:")
			fmt.Printf("  Enabled:     %t\n", cfg.Otel.Enabled)
			fmt.Printf("  Environment: %s\n", cfg.Otel.Environment)
			fmt.Println()

			fmt.Println("Environment variables:")
			fmt.Println("  MESHY_HOST, MESHY_PORT, MESHY_ALLOWED_ORIGINS, MESHY_ALLOW_EMPTY_ORIGIN")
			fmt.Println("  MESHY_WORKER_SECRET, MESHY_POSTGRES_URL, MESHY_REDIS_URL, UPLOADS_ROOT")
			fmt.Println("  CONSENT_SERVICE_URL, BYPASS_VOICE_CONSENT_CHECK")
			fmt.Println("  TRANSLATION_CACHE_SIZE, LANGUAGE_CACHE_SIZE, LANGUAGE_CACHE_TTL")
			fmt.Println("  PROCESSED_TASKS_SIZE, SYNC_TRANSLATE_TIMEOUT, OTEL_ENABLED")

			return nil
		},
	}
}

// versionCmd shows version information
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("meshyd %s\n", version)
			fmt.Printf("  Commit:     %s\n", commit)
			fmt.Printf("  Build Date: %s\n", buildDate)
		},
	}
}

// maskSecret masks a secret string for display
func maskSecret(s string) string {
	if s == "" {
		return "(not set)"
	}
	if len(s) <= 8 {
		return "(set)"
	}
	return s[:4] + "..." + s[len(s)-4:]
}

// boolStatus returns a status string for a boolean
func boolStatus(b bool) string {
	if b {
		return "configured"
	}
	return "not configured"
}
