package core

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// Config is the server configuration, read from the environment (and .env
// via godotenv in main).
type Config struct {
	Host string
	Port int

	DevMode  bool
	LogLevel string
	LogFile  string

	// DataDir holds the database and default output and log locations.
	DataDir      string
	DBPath       string
	OutputPath   string
	ModelRoot    string
	BackendsFile string

	// AllowedModels restricts ListModels; ".*" allows everything.
	AllowedModels string

	MaxParallel   int
	LeaseTimeout  time.Duration
	WSSendTimeout time.Duration
	SessionTTL    time.Duration

	HistoryRetentionDays int

	// ShutdownTimeout bounds the wait for in-flight dispatches on exit.
	ShutdownTimeout time.Duration
}

// LoadConfig reads the configuration from the process environment.
func LoadConfig() (*Config, error) {
	return LoadConfigFrom(OSEnv())
}

// LoadConfigFrom reads the configuration through env and validates it.
func LoadConfigFrom(env Env) (*Config, error) {
	dataDir := env.String("DATA_DIR", GetDataDirectory())

	cfg := &Config{
		Host:     env.String("T2I_HOST", "127.0.0.1"),
		Port:     env.Int("T2I_PORT", 7801),
		DevMode:  env.Bool("DEV_MODE", false),
		LogLevel: env.String("LOG_LEVEL", ""),
		LogFile:  env.String("LOG_FILE", filepath.Join(dataDir, "logs", "t2i.log")),

		DataDir:       dataDir,
		DBPath:        env.String("DB_PATH", filepath.Join(dataDir, "history.db")),
		OutputPath:    env.String("OUTPUT_PATH", filepath.Join(dataDir, "Output")),
		ModelRoot:     env.String("MODEL_ROOT", filepath.Join(dataDir, "Models")),
		BackendsFile:  env.String("BACKENDS_FILE", "backends.yaml"),
		AllowedModels: env.String("ALLOWED_MODELS", ".*"),

		MaxParallel:   env.Int("MAX_PARALLEL", 4),
		LeaseTimeout:  env.Seconds("LEASE_TIMEOUT_SECONDS", 120),
		WSSendTimeout: env.Seconds("WS_SEND_TIMEOUT_SECONDS", 60),
		SessionTTL:    time.Duration(env.Int("SESSION_TTL_HOURS", 24)) * time.Hour,

		HistoryRetentionDays: env.Int("HISTORY_RETENTION_DAYS", 30),
		ShutdownTimeout:      env.Seconds("SHUTDOWN_TIMEOUT_SECONDS", 30),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks ranges and returns the first problem as a *ConfigError.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return ErrInvalidValue("T2I_PORT", fmt.Sprint(c.Port), "must be between 1 and 65535")
	}
	if c.MaxParallel < 1 {
		return ErrInvalidValue("MAX_PARALLEL", fmt.Sprint(c.MaxParallel), "must be at least 1")
	}
	if c.LeaseTimeout <= 0 {
		return ErrInvalidValue("LEASE_TIMEOUT_SECONDS", c.LeaseTimeout.String(), "must be positive")
	}
	if c.WSSendTimeout <= 0 {
		return ErrInvalidValue("WS_SEND_TIMEOUT_SECONDS", c.WSSendTimeout.String(), "must be positive")
	}
	if c.SessionTTL <= 0 {
		return ErrInvalidValue("SESSION_TTL_HOURS", c.SessionTTL.String(), "must be positive")
	}
	if c.HistoryRetentionDays < 0 {
		return ErrInvalidValue("HISTORY_RETENTION_DAYS", fmt.Sprint(c.HistoryRetentionDays), "must not be negative")
	}
	if strings.TrimSpace(c.OutputPath) == "" {
		return ErrMissingConfig("OUTPUT_PATH")
	}
	if strings.TrimSpace(c.DBPath) == "" {
		return ErrMissingConfig("DB_PATH")
	}
	if _, err := regexp.Compile(c.AllowedModels); err != nil {
		return ErrInvalidValue("ALLOWED_MODELS", c.AllowedModels, err.Error())
	}
	return nil
}

// Addr is the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// AllowedModelsPattern compiles AllowedModels case-insensitively. It
// returns nil when every model is allowed.
func (c *Config) AllowedModelsPattern() *regexp.Regexp {
	if c.AllowedModels == "" || c.AllowedModels == ".*" {
		return nil
	}
	return regexp.MustCompile("(?i)" + c.AllowedModels)
}
