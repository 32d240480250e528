package model

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// APIConfig holds connection settings for the portal REST API.
type APIConfig struct {
	// BaseURL is the root of the REST API (e.g., https://jonoseba.gov.bd/api).
	BaseURL string `mapstructure:"base_url" yaml:"base_url" validate:"required,url"`

	// WebsocketURL is the push endpoint. Empty disables realtime updates.
	WebsocketURL string `mapstructure:"websocket_url" yaml:"websocket_url" validate:"omitempty,url"`

	// TimeoutSec bounds every single network call.
	TimeoutSec int `mapstructure:"timeout_sec" yaml:"timeout_sec" validate:"min=1,max=300"`
}

// NotificationConfig holds notification sync preferences.
type NotificationConfig struct {
	PollIntervalSec int `mapstructure:"poll_interval_sec" yaml:"poll_interval_sec" validate:"min=10"`

	// DeleteOnServer makes remove/clear propagate to the server instead
	// of only hiding notifications locally.
	DeleteOnServer bool `mapstructure:"delete_on_server" yaml:"delete_on_server"`
}

// DisplayConfig holds UI/rendering preferences.
type DisplayConfig struct {
	PageSize int `mapstructure:"page_size" yaml:"page_size" validate:"min=1,max=100"`

	// FoldSearch switches table search to Unicode case folding.
	FoldSearch bool `mapstructure:"fold_search" yaml:"fold_search"`
}

// CacheConfig controls the local SQLite cache.
type CacheConfig struct {
	Path     string `mapstructure:"path" yaml:"path"`
	StaleSec int    `mapstructure:"stale_sec" yaml:"stale_sec" validate:"min=0"`
}

// LogConfig controls the file logger.
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	Path  string `mapstructure:"path" yaml:"path"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	API           APIConfig          `mapstructure:"api" yaml:"api"`
	Notifications NotificationConfig `mapstructure:"notifications" yaml:"notifications"`
	Display       DisplayConfig      `mapstructure:"display" yaml:"display"`
	Cache         CacheConfig        `mapstructure:"cache" yaml:"cache"`
	Log           LogConfig          `mapstructure:"log" yaml:"log"`
}

// ConfigDir returns ~/.config/jonoseba, falling back to the working directory.
func ConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "jonoseba")
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/jonoseba/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	return &AppConfig{
		API: APIConfig{
			BaseURL:    "http://localhost:3000/api",
			TimeoutSec: 15,
		},
		Notifications: NotificationConfig{
			PollIntervalSec: 120,
		},
		Display: DisplayConfig{
			PageSize: 10,
		},
		Cache: CacheConfig{
			Path:     filepath.Join(ConfigDir(), "cache.db"),
			StaleSec: 300,
		},
		Log: LogConfig{
			Level: "info",
			Path:  filepath.Join(ConfigDir(), "jonoseba.log"),
		},
	}
}

func setDefaults(v *viper.Viper) {
	d := defaultAppConfig()
	v.SetDefault("api.base_url", d.API.BaseURL)
	v.SetDefault("api.websocket_url", d.API.WebsocketURL)
	v.SetDefault("api.timeout_sec", d.API.TimeoutSec)
	v.SetDefault("notifications.poll_interval_sec", d.Notifications.PollIntervalSec)
	v.SetDefault("notifications.delete_on_server", false)
	v.SetDefault("display.page_size", d.Display.PageSize)
	v.SetDefault("display.fold_search", false)
	v.SetDefault("cache.path", d.Cache.Path)
	v.SetDefault("cache.stale_sec", d.Cache.StaleSec)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.path", d.Log.Path)
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// Values can be overridden by JONOSEBA_* environment variables, which are
// also read from a .env file in the working directory when present.
// A missing config file is not an error; defaults apply.
func LoadConfig(path string) (*AppConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("JONOSEBA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		var pathErr *os.PathError
		if !errors.As(err, &notFound) && !errors.As(err, &pathErr) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := defaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ValidateConfig checks field constraints declared in the struct tags.
func ValidateConfig(cfg *AppConfig) error {
	if err := validator.New().Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(fields, ", "))
		}
		return fmt.Errorf("validating config: %w", err)
	}
	return nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("api", cfg.API)
	v.Set("notifications", cfg.Notifications)
	v.Set("display", cfg.Display)
	v.Set("cache", cfg.Cache)
	v.Set("log", cfg.Log)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
