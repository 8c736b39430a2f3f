// Package config provides configuration management for the application.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Defaults for optional settings.
const (
	DefaultPasteURL       = "https://tmp.example.org"
	DefaultPasteDir       = "tmp"
	DefaultGenerateLength = 20
	DefaultGenerateTries  = 20
	DefaultTextBoundary   = 4096
	DefaultStreakLimit    = 5
	DefaultPort           = "8080"
	DefaultDownloadTime   = 60 * time.Second
)

// Config holds the application configuration.
type Config struct {
	Telegram TelegramConfig
	Upload   UploadConfig
	Server   ServerConfig
	Sessions SessionsConfig
	Store    StoreConfig
	Journal  JournalConfig
	Metrics  MetricsConfig
}

// TelegramConfig holds the messaging gateway settings.
type TelegramConfig struct {
	// Token is the bot API token. Required.
	Token string
	// Whitelist is the list of identities allowed to use the bot.
	// The first entry is the designated super-user unless SuperUser is set.
	Whitelist []string
	// SuperUser is the identity allowed to run the deletion workflow.
	SuperUser string
	// DownloadTimeout bounds one payload download.
	DownloadTimeout time.Duration
}

// UploadConfig holds the ingestion and naming settings.
type UploadConfig struct {
	// PasteURL is the public base URL stored objects are reachable at.
	PasteURL string
	// PasteDir is the content store root for the local backend.
	PasteDir string
	// GenerateLength is the identifier length in characters.
	GenerateLength int
	// GenerateTries bounds the unique-path retry loop.
	GenerateTries int
	// TextBoundary is the transport's maximum single-message capacity.
	// A text chunk of exactly this length signals truncation.
	TextBoundary int
	// StreakLimit is the unrecognized-input count that triggers one warning.
	StreakLimit int
	// DeletePassword enables the deletion workflow. Empty disables it.
	DeletePassword string
}

// ServerConfig holds the public HTTP server settings.
type ServerConfig struct {
	Port string
	// LogLevel is a slog level name: debug, info, warn, error.
	LogLevel string
}

// SessionsConfig selects the per-user session state backend.
type SessionsConfig struct {
	// Backend is "memory" or "redis".
	Backend string
	// RedisURL is the connection URL for the redis backend.
	RedisURL string
}

// StoreConfig selects the content store backend.
type StoreConfig struct {
	// Backend is "local" or "minio".
	Backend string

	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool
}

// JournalConfig holds the upload journal settings.
type JournalConfig struct {
	Enabled bool
	// Storage is "sqlite", "postgresql", or "mongodb".
	Storage       string
	SQLitePath    string
	PostgresURL   string
	PostgresConns int
	MongoURL      string
	MongoDatabase string
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Enabled  bool
	Endpoint string
}

// Load reads configuration from the environment, with an optional .env
// file. Call Validate before using the result.
func Load() (*Config, error) {
	// Optional; absence of a .env file is not an error.
	_ = godotenv.Load()

	cfg := buildDefaultConfig()
	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if cfg.Telegram.SuperUser == "" && len(cfg.Telegram.Whitelist) > 0 {
		cfg.Telegram.SuperUser = cfg.Telegram.Whitelist[0]
	}

	return cfg, nil
}

// buildDefaultConfig returns a Config with all defaults applied.
func buildDefaultConfig() *Config {
	return &Config{
		Telegram: TelegramConfig{
			DownloadTimeout: DefaultDownloadTime,
		},
		Upload: UploadConfig{
			PasteURL:       DefaultPasteURL,
			PasteDir:       DefaultPasteDir,
			GenerateLength: DefaultGenerateLength,
			GenerateTries:  DefaultGenerateTries,
			TextBoundary:   DefaultTextBoundary,
			StreakLimit:    DefaultStreakLimit,
		},
		Server: ServerConfig{
			Port:     DefaultPort,
			LogLevel: "info",
		},
		Sessions: SessionsConfig{
			Backend: "memory",
		},
		Store: StoreConfig{
			Backend:     "local",
			MinioBucket: "tmphost",
		},
		Journal: JournalConfig{
			Storage:       "sqlite",
			SQLitePath:    "data/tmphost.db",
			PostgresConns: 10,
			MongoDatabase: "tmphost",
		},
		Metrics: MetricsConfig{
			Endpoint: "/metrics",
		},
	}
}

// applyEnvOverrides applies TMPHOST_* environment variables on top of cfg.
func applyEnvOverrides(cfg *Config) error {
	setString(&cfg.Telegram.Token, "TMPHOST_TELEGRAM_TOKEN")
	if v, ok := lookup("TMPHOST_TELEGRAM_WHITELIST"); ok {
		cfg.Telegram.Whitelist = splitNonEmpty(v, ":")
	}
	setString(&cfg.Telegram.SuperUser, "TMPHOST_SUPER_USER")
	if err := setDuration(&cfg.Telegram.DownloadTimeout, "TMPHOST_DOWNLOAD_TIMEOUT"); err != nil {
		return err
	}

	setString(&cfg.Upload.PasteURL, "TMPHOST_PASTE_URL")
	setString(&cfg.Upload.PasteDir, "TMPHOST_PASTE_DIR")
	if err := setInt(&cfg.Upload.GenerateLength, "TMPHOST_GENERATE_LENGTH"); err != nil {
		return err
	}
	if err := setInt(&cfg.Upload.GenerateTries, "TMPHOST_GENERATE_TRIES"); err != nil {
		return err
	}
	if err := setInt(&cfg.Upload.TextBoundary, "TMPHOST_TEXT_BOUNDARY"); err != nil {
		return err
	}
	if err := setInt(&cfg.Upload.StreakLimit, "TMPHOST_STREAK_LIMIT"); err != nil {
		return err
	}
	setString(&cfg.Upload.DeletePassword, "TMPHOST_DELETE_PASSWORD")

	setString(&cfg.Server.Port, "PORT")
	setString(&cfg.Server.LogLevel, "TMPHOST_LOG_LEVEL")

	setString(&cfg.Sessions.Backend, "TMPHOST_SESSIONS_BACKEND")
	setString(&cfg.Sessions.RedisURL, "TMPHOST_REDIS_URL")

	setString(&cfg.Store.Backend, "TMPHOST_STORE_BACKEND")
	setString(&cfg.Store.MinioEndpoint, "TMPHOST_MINIO_ENDPOINT")
	setString(&cfg.Store.MinioAccessKey, "TMPHOST_MINIO_ACCESS_KEY")
	setString(&cfg.Store.MinioSecretKey, "TMPHOST_MINIO_SECRET_KEY")
	setString(&cfg.Store.MinioBucket, "TMPHOST_MINIO_BUCKET")
	if err := setBool(&cfg.Store.MinioUseSSL, "TMPHOST_MINIO_USE_SSL"); err != nil {
		return err
	}

	if err := setBool(&cfg.Journal.Enabled, "TMPHOST_JOURNAL_ENABLED"); err != nil {
		return err
	}
	setString(&cfg.Journal.Storage, "TMPHOST_JOURNAL_STORAGE")
	setString(&cfg.Journal.SQLitePath, "TMPHOST_SQLITE_PATH")
	setString(&cfg.Journal.PostgresURL, "TMPHOST_POSTGRES_URL")
	if err := setInt(&cfg.Journal.PostgresConns, "TMPHOST_POSTGRES_MAX_CONNS"); err != nil {
		return err
	}
	setString(&cfg.Journal.MongoURL, "TMPHOST_MONGO_URL")
	setString(&cfg.Journal.MongoDatabase, "TMPHOST_MONGO_DATABASE")

	if err := setBool(&cfg.Metrics.Enabled, "TMPHOST_METRICS_ENABLED"); err != nil {
		return err
	}
	setString(&cfg.Metrics.Endpoint, "TMPHOST_METRICS_ENDPOINT")

	return nil
}

// Validate checks that the configuration is usable. It fails fast so a
// misconfigured service never degrades at request time.
func (c *Config) Validate() error {
	if c.Telegram.Token == "" {
		return fmt.Errorf("TMPHOST_TELEGRAM_TOKEN is required")
	}
	if len(c.Telegram.Whitelist) == 0 {
		return fmt.Errorf("TMPHOST_TELEGRAM_WHITELIST must contain at least one identity")
	}
	if c.Upload.GenerateLength <= 0 {
		return fmt.Errorf("generate length must be positive, got %d", c.Upload.GenerateLength)
	}
	if c.Upload.GenerateTries <= 0 {
		return fmt.Errorf("generate tries must be positive, got %d", c.Upload.GenerateTries)
	}
	if c.Upload.TextBoundary <= 0 {
		return fmt.Errorf("text boundary must be positive, got %d", c.Upload.TextBoundary)
	}

	switch c.Store.Backend {
	case "local":
		info, err := os.Stat(c.Upload.PasteDir)
		if err != nil {
			return fmt.Errorf("paste dir %q is not usable: %w", c.Upload.PasteDir, err)
		}
		if !info.IsDir() {
			return fmt.Errorf("paste dir %q is not a directory", c.Upload.PasteDir)
		}
	case "minio":
		if c.Store.MinioEndpoint == "" {
			return fmt.Errorf("TMPHOST_MINIO_ENDPOINT is required for the minio store backend")
		}
	default:
		return fmt.Errorf("unknown store backend: %q (valid: local, minio)", c.Store.Backend)
	}

	switch c.Sessions.Backend {
	case "memory":
	case "redis":
		if c.Sessions.RedisURL == "" {
			return fmt.Errorf("TMPHOST_REDIS_URL is required for the redis sessions backend")
		}
	default:
		return fmt.Errorf("unknown sessions backend: %q (valid: memory, redis)", c.Sessions.Backend)
	}

	return nil
}

func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

func setString(dst *string, key string) {
	if v, ok := lookup(key); ok {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v, ok := lookup(key)
	if !ok {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: invalid integer %q", key, v)
	}
	*dst = n
	return nil
}

func setBool(dst *bool, key string) error {
	v, ok := lookup(key)
	if !ok {
		return nil
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		*dst = true
	case "0", "false", "no", "off":
		*dst = false
	default:
		return fmt.Errorf("%s: invalid boolean %q", key, v)
	}
	return nil
}

func setDuration(dst *time.Duration, key string) error {
	v, ok := lookup(key)
	if !ok {
		return nil
	}
	// Accept plain seconds or a Go duration string.
	if n, err := strconv.Atoi(v); err == nil {
		*dst = time.Duration(n) * time.Second
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: invalid duration %q", key, v)
	}
	*dst = d
	return nil
}

func splitNonEmpty(s, sep string) []string {
	var out []string
	for _, part := range strings.Split(s, sep) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
