// Package config loads the coach configuration.
//
// Sources, lowest precedence first: built-in defaults, the TOML config file,
// a .env file in the working directory, and COACH_* environment variables
// (COACH_SYNC_BATCH_SIZE overrides sync.batch_size).
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "COACH"

// Config is the full configuration.
type Config struct {
	Data      DataConfig      `mapstructure:"data"`
	Remote    RemoteConfig    `mapstructure:"remote"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Sync      SyncConfig      `mapstructure:"sync"`
	Network   NetworkConfig   `mapstructure:"network"`
	AI        AIConfig        `mapstructure:"ai"`
	Log       LogConfig       `mapstructure:"log"`
	Dashboard DashboardConfig `mapstructure:"dashboard"`

	// File is the config file that was read, empty if none.
	File string `mapstructure:"-"`
}

type DataConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

type RemoteConfig struct {
	Driver   string `mapstructure:"driver" validate:"oneof=memory postgres libsql sqlite couchdb"`
	DSN      string `mapstructure:"dsn" validate:"required_if=Driver postgres,required_if=Driver libsql,required_if=Driver sqlite"`
	CouchURL string `mapstructure:"couch_url" validate:"required_if=Driver couchdb"`
	CouchDB  string `mapstructure:"couch_db" validate:"required_if=Driver couchdb"`
}

type AuthConfig struct {
	SessionFile string `mapstructure:"session_file"`
	Secret      string `mapstructure:"secret"`
	// UserID signs in statically, bypassing the session file.
	UserID string `mapstructure:"user_id"`
}

type SyncConfig struct {
	BatchSize      int           `mapstructure:"batch_size" validate:"gte=1"`
	MaxRetries     int           `mapstructure:"max_retries" validate:"gte=1"`
	Debounce       time.Duration `mapstructure:"debounce" validate:"gte=0"`
	StabilizeDelay time.Duration `mapstructure:"stabilize_delay" validate:"gte=0"`
	PollInterval   time.Duration `mapstructure:"poll_interval" validate:"gte=0"`
	OpTimeout      time.Duration `mapstructure:"op_timeout" validate:"gt=0"`
}

type NetworkConfig struct {
	// ProbeURL is polled to detect connectivity. Empty means always online.
	ProbeURL      string        `mapstructure:"probe_url" validate:"omitempty,url"`
	ProbeInterval time.Duration `mapstructure:"probe_interval" validate:"gt=0"`
}

type AIConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

type LogConfig struct {
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" validate:"gte=0"`
	MaxBackups int    `mapstructure:"max_backups" validate:"gte=0"`
	MaxAgeDays int    `mapstructure:"max_age_days" validate:"gte=0"`
	Compress   bool   `mapstructure:"compress"`
}

type DashboardConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port" validate:"gte=0,lte=65535"`
}

// DefaultPath returns $XDG_CONFIG_HOME/dailycoach/config.toml.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = filepath.Join(homeDir(), ".config")
	}
	return filepath.Join(dir, "dailycoach", "config.toml")
}

// DataDir returns $XDG_DATA_HOME/dailycoach.
func DataDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "dailycoach")
	}
	return filepath.Join(homeDir(), ".local", "share", "dailycoach")
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}

func setDefaults(v *viper.Viper) {
	data := DataDir()
	v.SetDefault("data.path", filepath.Join(data, "coach.db"))

	v.SetDefault("remote.driver", "memory")
	v.SetDefault("remote.dsn", "")
	v.SetDefault("remote.couch_url", "http://localhost:5984")
	v.SetDefault("remote.couch_db", "dailycoach")

	v.SetDefault("auth.session_file", filepath.Join(data, "session"))
	v.SetDefault("auth.secret", "")
	v.SetDefault("auth.user_id", "")

	v.SetDefault("sync.batch_size", 10)
	v.SetDefault("sync.max_retries", 3)
	v.SetDefault("sync.debounce", "500ms")
	v.SetDefault("sync.stabilize_delay", "1s")
	v.SetDefault("sync.poll_interval", "30s")
	v.SetDefault("sync.op_timeout", "15s")

	v.SetDefault("network.probe_url", "")
	v.SetDefault("network.probe_interval", "10s")

	v.SetDefault("ai.api_key", "")
	v.SetDefault("ai.model", "")

	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 28)
	v.SetDefault("log.compress", false)

	v.SetDefault("dashboard.host", "127.0.0.1")
	v.SetDefault("dashboard.port", 8080)
}

// Load reads the configuration. An empty path uses DefaultPath, which may
// be absent; an explicit path must exist.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetConfigType("toml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	v.SetConfigFile(path)

	var file string
	if err := v.ReadInConfig(); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	} else {
		file = path
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	cfg.File = file
	cfg.Data.Path = expandHome(cfg.Data.Path)
	cfg.Auth.SessionFile = expandHome(cfg.Auth.SessionFile)
	cfg.Log.File = expandHome(cfg.Log.File)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value constraints.
func (c *Config) Validate() error {
	err := validator.New().Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("invalid config: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

func expandHome(p string) string {
	if p == "~" {
		return homeDir()
	}
	if strings.HasPrefix(p, "~/") {
		return filepath.Join(homeDir(), p[2:])
	}
	return p
}
