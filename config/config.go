package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures runtime configuration for the finance bot service.
type Config struct {
	BotToken         string
	AuthorizedUserID int64

	DatabasePath    string
	DatabaseTimeout time.Duration
	MaxConnections  int

	MaxUserStates int
	StateTTL      time.Duration

	BackupEnabled       bool
	BackupRetentionDays int

	HTTPHost string
	HTTPPort int

	LogLevel       string
	LogFile        string
	MaxLogSize     int64
	LogBackupCount int
}

const (
	defaultDatabasePath    = "finanzas.db"
	defaultDatabaseTimeout = 30 * time.Second
	defaultMaxConnections  = 5
	defaultMaxUserStates   = 100
	defaultStateTTL        = 2 * time.Hour
	defaultRetentionDays   = 7
	defaultHTTPHost        = "0.0.0.0"
	defaultHTTPPort        = 5000
	defaultMaxLogSize      = 10 << 20
	defaultLogBackups      = 5
)

// FromEnv builds a configuration using environment variables. BOT_TOKEN and
// AUTHORIZED_USER_ID are required; everything else has a default.
func FromEnv() (Config, error) {
	cfg := Config{
		BotToken:            strings.TrimSpace(os.Getenv("BOT_TOKEN")),
		DatabasePath:        getenvDefault("DATABASE_PATH", defaultDatabasePath),
		DatabaseTimeout:     defaultDatabaseTimeout,
		MaxConnections:      defaultMaxConnections,
		MaxUserStates:       defaultMaxUserStates,
		StateTTL:            defaultStateTTL,
		BackupEnabled:       true,
		BackupRetentionDays: defaultRetentionDays,
		HTTPHost:            getenvDefault("FLASK_HOST", defaultHTTPHost),
		HTTPPort:            defaultHTTPPort,
		LogLevel:            getenvDefault("LOG_LEVEL", "info"),
		LogFile:             strings.TrimSpace(os.Getenv("LOG_FILE")),
		MaxLogSize:          defaultMaxLogSize,
		LogBackupCount:      defaultLogBackups,
	}

	if cfg.BotToken == "" {
		return Config{}, errors.New("BOT_TOKEN is required")
	}

	rawUser := strings.TrimSpace(os.Getenv("AUTHORIZED_USER_ID"))
	if rawUser == "" {
		return Config{}, errors.New("AUTHORIZED_USER_ID is required")
	}
	userID, err := strconv.ParseInt(rawUser, 10, 64)
	if err != nil {
		return Config{}, fmt.Errorf("parse AUTHORIZED_USER_ID: %w", err)
	}
	if userID <= 0 {
		return Config{}, errors.New("AUTHORIZED_USER_ID must be positive")
	}
	cfg.AuthorizedUserID = userID

	if raw := strings.TrimSpace(os.Getenv("DATABASE_TIMEOUT")); raw != "" {
		secs, err := strconv.Atoi(raw)
		if err != nil {
			return Config{}, fmt.Errorf("parse DATABASE_TIMEOUT: %w", err)
		}
		if secs <= 0 {
			return Config{}, errors.New("DATABASE_TIMEOUT must be positive")
		}
		cfg.DatabaseTimeout = time.Duration(secs) * time.Second
	}

	if err := parsePositiveInt("MAX_DB_CONNECTIONS", &cfg.MaxConnections); err != nil {
		return Config{}, err
	}
	if err := parsePositiveInt("MAX_USER_STATES", &cfg.MaxUserStates); err != nil {
		return Config{}, err
	}
	if err := parsePositiveInt("BACKUP_RETENTION_DAYS", &cfg.BackupRetentionDays); err != nil {
		return Config{}, err
	}
	if err := parsePositiveInt("PORT", &cfg.HTTPPort); err != nil {
		return Config{}, err
	}
	if err := parsePositiveInt("LOG_BACKUP_COUNT", &cfg.LogBackupCount); err != nil {
		return Config{}, err
	}

	if raw := strings.TrimSpace(os.Getenv("BACKUP_ENABLED")); raw != "" {
		cfg.BackupEnabled = strings.EqualFold(raw, "true") || raw == "1"
	}

	if raw := strings.TrimSpace(os.Getenv("MAX_LOG_SIZE")); raw != "" {
		size, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return Config{}, fmt.Errorf("parse MAX_LOG_SIZE: %w", err)
		}
		if size <= 0 {
			return Config{}, errors.New("MAX_LOG_SIZE must be positive")
		}
		cfg.MaxLogSize = size
	}

	return cfg, nil
}

// ListenAddress joins the configured HTTP host and port.
func (c Config) ListenAddress() string {
	return fmt.Sprintf("%s:%d", c.HTTPHost, c.HTTPPort)
}

func parsePositiveInt(name string, dst *int) error {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return nil
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("parse %s: %w", name, err)
	}
	if val <= 0 {
		return fmt.Errorf("%s must be positive", name)
	}
	*dst = val
	return nil
}

func getenvDefault(name, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(name)); value != "" {
		return value
	}
	return fallback
}
