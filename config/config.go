/*
config.go - Server configuration

PURPOSE:
  Loads settings from (lowest to highest precedence) built-in defaults,
  an optional YAML file, and REVENUE_* environment variables. A .env file
  in the working directory is loaded into the environment first.

KEYS:
  db.path                  REVENUE_DB_PATH             revenue.db
  http.port                REVENUE_HTTP_PORT           8080
  http.allowed_origins     REVENUE_HTTP_ALLOWED_ORIGINS
  store.max_retries        REVENUE_STORE_MAX_RETRIES   3
  store.base_delay         REVENUE_STORE_BASE_DELAY    100ms
  store.reconnect_delay    REVENUE_STORE_RECONNECT_DELAY 1s
  log.level                REVENUE_LOG_LEVEL           info
  log.format               REVENUE_LOG_FORMAT          json | console

SEE ALSO:
  - cmd/server/main.go: Flags override these values
*/
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"github.com/warp/revenue-engine/store"
)

// Config is the full server configuration.
type Config struct {
	DB    DBConfig    `mapstructure:"db"`
	HTTP  HTTPConfig  `mapstructure:"http"`
	Store StoreConfig `mapstructure:"store"`
	Log   LogConfig   `mapstructure:"log"`
}

type DBConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

type HTTPConfig struct {
	Port           int      `mapstructure:"port" validate:"min=1,max=65535"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type StoreConfig struct {
	MaxRetries     int           `mapstructure:"max_retries" validate:"min=1"`
	BaseDelay      time.Duration `mapstructure:"base_delay"`
	ReconnectDelay time.Duration `mapstructure:"reconnect_delay"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format" validate:"oneof=json console"`
}

// Retry converts the store section for store.New.
func (c StoreConfig) Retry() store.Config {
	return store.Config{
		MaxRetries:     c.MaxRetries,
		BaseDelay:      c.BaseDelay,
		ReconnectDelay: c.ReconnectDelay,
	}
}

// ZerologLevel parses Level, defaulting to info.
func (c LogConfig) ZerologLevel() zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(c.Level))
	if err != nil || c.Level == "" {
		return zerolog.InfoLevel
	}
	return lvl
}

// Load reads the configuration. path may be empty.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("REVENUE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	retry := store.DefaultConfig()

	v.SetDefault("db.path", "revenue.db")
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.allowed_origins", []string{"http://localhost:5173", "http://localhost:8080"})
	v.SetDefault("store.max_retries", retry.MaxRetries)
	v.SetDefault("store.base_delay", retry.BaseDelay)
	v.SetDefault("store.reconnect_delay", retry.ReconnectDelay)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}
