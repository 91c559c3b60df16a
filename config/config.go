package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes every environment override, e.g. REQTEL_SERVER__PORT
const EnvPrefix = "REQTEL_"

// DefaultFile is read when no explicit config path is given and it exists
const DefaultFile = "reqtel.yaml"

type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Redis    RedisConfig    `koanf:"redis"`
	Tracker  TrackerConfig  `koanf:"tracker"`
	Audit    AuditConfig    `koanf:"audit"`
	Anomaly  AnomalyConfig  `koanf:"anomaly"`
	Auth     AuthConfig     `koanf:"auth"`
	Log      LogConfig      `koanf:"log"`
}

type ServerConfig struct {
	Port            int           `koanf:"port" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `koanf:"read_timeout" validate:"gt=0"`
	WriteTimeout    time.Duration `koanf:"write_timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
	TrustedProxies  int           `koanf:"trusted_proxies" validate:"min=0"`
	SecureCookies   bool          `koanf:"secure_cookies"`
	AllowedOrigins  []string      `koanf:"allowed_origins"`
}

type DatabaseConfig struct {
	Driver string `koanf:"driver" validate:"oneof=sqlite postgres"`
	Path   string `koanf:"path" validate:"required_if=Driver sqlite"`
	URL    string `koanf:"url" validate:"required_if=Driver postgres"`
}

// RedisConfig configures the optional audit stream mirror
type RedisConfig struct {
	Enabled bool   `koanf:"enabled"`
	URL     string `koanf:"url" validate:"required_if=Enabled true"`
	Stream  string `koanf:"stream" validate:"required_if=Enabled true"`
	MaxLen  int64  `koanf:"max_len" validate:"min=0"`
}

type TrackerConfig struct {
	Retention     time.Duration `koanf:"retention" validate:"gt=0"`
	SweepInterval time.Duration `koanf:"sweep_interval" validate:"gt=0"`
}

type AuditConfig struct {
	Enabled      bool          `koanf:"enabled"`
	WriteTimeout time.Duration `koanf:"write_timeout" validate:"gt=0"`
}

// AnomalyConfig holds classifier thresholds. Interval 0 disables the periodic run.
type AnomalyConfig struct {
	FailedAttemptThreshold int           `koanf:"failed_attempt_threshold" validate:"min=1"`
	FailureWindow          time.Duration `koanf:"failure_window" validate:"gt=0"`
	RequestRateThreshold   int           `koanf:"request_rate_threshold" validate:"min=1"`
	RequestRateWindow      time.Duration `koanf:"request_rate_window" validate:"gt=0"`
	Interval               time.Duration `koanf:"interval" validate:"min=0"`
	Lookback               time.Duration `koanf:"lookback" validate:"gt=0"`
	BatchLimit             int           `koanf:"batch_limit" validate:"min=1,max=1000"`
}

// AuthConfig configures admin single sign-on; an empty domain disables it
type AuthConfig struct {
	Domain        string   `koanf:"domain" validate:"omitempty,hostname_rfc1123"`
	ClientID      string   `koanf:"client_id" validate:"required_with=Domain"`
	ClientSecret  string   `koanf:"client_secret" validate:"required_with=Domain"`
	CallbackURL   string   `koanf:"callback_url" validate:"required_with=Domain"`
	AdminSubjects []string `koanf:"admin_subjects"`
}

// Enabled reports whether OIDC login is configured
func (a AuthConfig) Enabled() bool {
	return a.Domain != ""
}

type LogConfig struct {
	Level       string `koanf:"level" validate:"oneof=debug info warn error"`
	Development bool   `koanf:"development"`
	File        string `koanf:"file"`
	MaxSizeMB   int    `koanf:"max_size_mb" validate:"min=0"`
	MaxBackups  int    `koanf:"max_backups" validate:"min=0"`
	MaxAgeDays  int    `koanf:"max_age_days" validate:"min=0"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			Path:   "reqtel.db",
		},
		Redis: RedisConfig{
			Stream: "reqtel:audit",
			MaxLen: 100000,
		},
		Tracker: TrackerConfig{
			Retention:     time.Hour,
			SweepInterval: 5 * time.Minute,
		},
		Audit: AuditConfig{
			Enabled:      true,
			WriteTimeout: 5 * time.Second,
		},
		Anomaly: AnomalyConfig{
			FailedAttemptThreshold: 5,
			FailureWindow:          15 * time.Minute,
			RequestRateThreshold:   120,
			RequestRateWindow:      time.Minute,
			Interval:               10 * time.Minute,
			Lookback:               24 * time.Hour,
			BatchLimit:             500,
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 30,
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file and
// REQTEL_ environment variables, in that order. A nested key uses a double
// underscore: REQTEL_DATABASE__DRIVER=postgres.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	if path == "" {
		if _, err := os.Stat(DefaultFile); err == nil {
			path = DefaultFile
		}
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("loading environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envKey maps REQTEL_SERVER__TRUSTED_PROXIES to server.trusted_proxies
func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the configuration against its struct tags
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed on '%s'", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
