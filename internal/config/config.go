// Package config loads PlanWing settings from .planwing.yaml, PLANWING_*
// environment variables, .env and command-line flags.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	// ConfigName is the config file name without extension.
	ConfigName = ".planwing"
	// ProjectDir is the per-project directory searched first.
	ProjectDir = ".planwing"
	// EnvPrefix prefixes environment overrides, e.g. PLANWING_API_TOKEN.
	EnvPrefix = "PLANWING"
)

// Defaults.
const (
	DefaultTimeout      = 15 * time.Second
	DefaultPageSize     = 50
	DefaultWeekStartDay = 1
	DefaultLogLevel     = "warn"
	DefaultLogFormat    = "text"
)

// Config is the unmarshalled configuration.
type Config struct {
	API       APIConfig       `mapstructure:"api"`
	Project   ProjectConfig   `mapstructure:"project"`
	Planner   PlannerConfig   `mapstructure:"planner"`
	Memory    MemoryConfig    `mapstructure:"memory"`
	Policy    PolicyConfig    `mapstructure:"policy"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Log       LogConfig       `mapstructure:"log"`
}

// APIConfig points at the planner server.
type APIConfig struct {
	BaseURL string        `mapstructure:"base_url" yaml:"base_url" validate:"omitempty,url"`
	Token   string        `mapstructure:"token" yaml:"token,omitempty"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout" validate:"min=0"`
}

// ProjectConfig selects the project.
type ProjectConfig struct {
	ID int64 `mapstructure:"id" yaml:"id" validate:"min=0"`
}

// PlannerConfig holds planner fallbacks.
type PlannerConfig struct {
	// WeekStartDay is used when the server sends no metadata. 1 = Monday.
	WeekStartDay int `mapstructure:"week_start_day" yaml:"week_start_day" validate:"min=1,max=7"`
	PageSize     int `mapstructure:"page_size" yaml:"page_size" validate:"min=1,max=500"`
}

// MemoryConfig locates the local store.
type MemoryConfig struct {
	Path string `mapstructure:"path" yaml:"path,omitempty"`
}

// PolicyConfig locates role policies.
type PolicyConfig struct {
	Dir string `mapstructure:"dir" yaml:"dir,omitempty"`
}

// TelemetryConfig controls opt-in usage events.
type TelemetryConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	APIKey  string `mapstructure:"api_key" yaml:"api_key,omitempty"`
}

// LogConfig controls slog output.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	Format string `mapstructure:"format" yaml:"format" validate:"omitempty,oneof=text json"`
}

// ErrMissingBaseURL is returned by RequireServer when api.base_url is unset.
var ErrMissingBaseURL = errors.New("api.base_url is not configured (run 'planwing init' or set PLANWING_API_BASE_URL)")

// ErrMissingProject is returned by RequireServer when project.id is unset.
var ErrMissingProject = errors.New("project.id is not configured (use --project or set PLANWING_PROJECT_ID)")

// validate is a single instance of Validate, it caches struct info
var validate = validator.New()

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	// Every key needs a default so AutomaticEnv values reach Unmarshal.
	v.SetDefault("api.base_url", "")
	v.SetDefault("api.token", "")
	v.SetDefault("api.timeout", DefaultTimeout)
	v.SetDefault("project.id", 0)
	v.SetDefault("memory.path", "")
	v.SetDefault("telemetry.api_key", "")
	v.SetDefault("planner.week_start_day", DefaultWeekStartDay)
	v.SetDefault("planner.page_size", DefaultPageSize)
	v.SetDefault("policy.dir", "")
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("log.level", DefaultLogLevel)
	v.SetDefault("log.format", DefaultLogFormat)
}

// Init wires the config sources into v. cfgFile, when set, is the only
// file read. Otherwise ./.planwing/.planwing.yaml wins over ./.planwing.yaml
// and $HOME/.planwing.yaml. A missing file is not an error.
func Init(v *viper.Viper, cfgFile string) error {
	// It's okay if .env doesn't exist.
	_ = godotenv.Load()

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(ConfigName)
		v.SetConfigType("yaml")
		if info, err := os.Stat(ProjectDir); err == nil && info.IsDir() {
			v.AddConfigPath(ProjectDir)
		}
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) && cfgFile == "" {
			slog.Debug("no config file found, using defaults and environment")
			return nil
		}
		return fmt.Errorf("read config %s: %w", v.ConfigFileUsed(), err)
	}
	slog.Debug("using config file", "path", v.ConfigFileUsed())
	return nil
}

// Load unmarshals and validates the configuration held by v.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if cfg.API.Timeout == 0 {
		cfg.API.Timeout = DefaultTimeout
	}
	cfg.API.BaseURL = strings.TrimRight(cfg.API.BaseURL, "/")
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, e := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed '%s' (value: %v)", configKey(e.Namespace()), e.Tag(), e.Value()))
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// RequireServer reports which settings a server-backed command is missing.
func (c *Config) RequireServer() error {
	var errs []error
	if c.API.BaseURL == "" {
		errs = append(errs, ErrMissingBaseURL)
	}
	if c.Project.ID <= 0 {
		errs = append(errs, ErrMissingProject)
	}
	return errors.Join(errs...)
}

// configKey turns "Config.API.BaseURL" into "api.baseurl".
func configKey(namespace string) string {
	return strings.ToLower(strings.TrimPrefix(namespace, "Config."))
}
