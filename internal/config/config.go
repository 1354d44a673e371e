// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"strings"
	"time"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Files    FilesConfig
	Consent  ConsentConfig
	Pipeline PipelineConfig
	Otel     OtelConfig
}

type ServerConfig struct {
	Host             string
	Port             int
	AllowedOrigins   []string
	AllowEmptyOrigin bool
	// WorkerSecret authenticates worker WebSocket connections. Empty disables
	// the check, which is only acceptable on private networks.
	WorkerSecret string
}

type DatabaseConfig struct {
	URL string
}

type RedisConfig struct {
	URL string
}

type FilesConfig struct {
	UploadsRoot string
}

type ConsentConfig struct {
	URL string
	// BypassVoiceConsentCheck forces all consent capabilities to true.
	// Intended for tests only.
	BypassVoiceConsentCheck bool
}

type PipelineConfig struct {
	TranslationCacheSize int
	LanguageCacheSize    int
	LanguageCacheTTL     time.Duration
	ProcessedTasksSize   int
	SyncTranslateTimeout time.Duration
}

type OtelConfig struct {
	Enabled     bool
	Environment string
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host:             getEnvWithFallback("MESHY_HOST", "HOST", "0.0.0.0"),
			Port:             getEnvIntWithFallback("MESHY_PORT", "PORT", 8787),
			AllowedOrigins:   getEnvSlice("MESHY_ALLOWED_ORIGINS", []string{"*"}),
			AllowEmptyOrigin: getEnvBool("MESHY_ALLOW_EMPTY_ORIGIN", false),
			WorkerSecret:     getEnvWithFallback("MESHY_WORKER_SECRET", "WORKER_SECRET", ""),
		},
		Database: DatabaseConfig{
			URL: getEnvWithFallback("MESHY_POSTGRES_URL", "DATABASE_URL", "postgres://meshy@localhost:5432/meshy?sslmode=disable"),
		},
		Redis: RedisConfig{
			URL: getEnvWithFallback("MESHY_REDIS_URL", "REDIS_URL", ""),
		},
		Files: FilesConfig{
			UploadsRoot: getEnv("UPLOADS_ROOT", "./uploads"),
		},
		Consent: ConsentConfig{
			URL:                     getEnv("CONSENT_SERVICE_URL", ""),
			BypassVoiceConsentCheck: getEnvBool("BYPASS_VOICE_CONSENT_CHECK", false),
		},
		Pipeline: PipelineConfig{
			TranslationCacheSize: getEnvInt("TRANSLATION_CACHE_SIZE", 1000),
			LanguageCacheSize:    getEnvInt("LANGUAGE_CACHE_SIZE", 100),
			LanguageCacheTTL:     getEnvDuration("LANGUAGE_CACHE_TTL", 5*time.Minute),
			ProcessedTasksSize:   getEnvInt("PROCESSED_TASKS_SIZE", 1000),
			SyncTranslateTimeout: getEnvDuration("SYNC_TRANSLATE_TIMEOUT", 10*time.Second),
		},
		Otel: OtelConfig{
			Enabled:     getEnvBool("OTEL_ENABLED", false),
			Environment: getEnv("ENVIRONMENT", "development"),
		},
	}
}

func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("invalid server port: %d", c.Server.Port))
	}
	if c.Database.URL == "" {
		errs = append(errs, "database URL is required")
	}
	if c.Pipeline.TranslationCacheSize <= 0 {
		errs = append(errs, "translation cache size must be positive")
	}
	if c.Pipeline.LanguageCacheSize <= 0 {
		errs = append(errs, "language cache size must be positive")
	}
	if c.Pipeline.LanguageCacheTTL <= 0 {
		errs = append(errs, "language cache TTL must be positive")
	}
	if c.Pipeline.ProcessedTasksSize <= 0 {
		errs = append(errs, "processed tasks size must be positive")
	}
	if c.Pipeline.SyncTranslateTimeout <= 0 {
		errs = append(errs, "sync translate timeout must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) IsRedisConfigured() bool {
	return c.Redis.URL != ""
}

func (c *Config) IsConsentConfigured() bool {
	return c.Consent.URL != ""
}
