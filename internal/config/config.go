// Package config loads swiftfs configuration from defaults, a YAML file,
// SWIFTFS_* environment variables and runtime overrides.
package config

import (
	"time"

	"gopkg.in/yaml.v3"

	"github.com/3leaps/swiftfs/pkg/storage"
)

// Config is the effective application configuration.
type Config struct {
	Server  ServerConfig   `mapstructure:"server" yaml:"server"`
	Logging LoggingConfig  `mapstructure:"logging" yaml:"logging"`
	Metrics MetricsConfig  `mapstructure:"metrics" yaml:"metrics"`
	Health  HealthConfig   `mapstructure:"health" yaml:"health"`
	Swift   SwiftConfig    `mapstructure:"swift" yaml:"swift"`
	S3      S3Config       `mapstructure:"s3" yaml:"s3"`
	Storage storage.Config `mapstructure:"storage" yaml:"storage"`
	List    ListConfig     `mapstructure:"list" yaml:"list"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Host            string        `mapstructure:"host" yaml:"host"`
	Port            int           `mapstructure:"port" yaml:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`

	// URI is the storage root served by /v1 routes (e.g. swift://container/base).
	URI string `mapstructure:"uri" yaml:"uri"`
}

// LoggingConfig configures the CLI logger.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	Port    int  `mapstructure:"port" yaml:"port"`
}

// HealthConfig configures the health endpoints.
type HealthConfig struct {
	Enabled bool          `mapstructure:"enabled" yaml:"enabled"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// SwiftConfig carries Swift connection settings. Credentials come from the
// OpenStack environment selected by EnvPrefix.
type SwiftConfig struct {
	EnvPrefix        string `mapstructure:"env_prefix" yaml:"env_prefix"`
	Region           string `mapstructure:"region" yaml:"region"`
	Interface        string `mapstructure:"interface" yaml:"interface"`
	SegmentContainer string `mapstructure:"segment_container" yaml:"segment_container"`
	CreateContainer  bool   `mapstructure:"create_container" yaml:"create_container"`
	PageSize         int    `mapstructure:"page_size" yaml:"page_size"`
	UserAgent        string `mapstructure:"user_agent" yaml:"user_agent"`
}

// S3Config carries S3 connection settings. Credentials come from the AWS
// default chain unless a profile is named.
type S3Config struct {
	Region         string `mapstructure:"region" yaml:"region"`
	Endpoint       string `mapstructure:"endpoint" yaml:"endpoint"`
	Profile        string `mapstructure:"profile" yaml:"profile"`
	ForcePathStyle bool   `mapstructure:"force_path_style" yaml:"force_path_style"`
	MaxKeys        int    `mapstructure:"max_keys" yaml:"max_keys"`
}

// ListConfig holds defaults for listing commands.
type ListConfig struct {
	Output        string  `mapstructure:"output" yaml:"output"`
	Concurrency   int     `mapstructure:"concurrency" yaml:"concurrency"`
	RateLimit     float64 `mapstructure:"rate_limit" yaml:"rate_limit"`
	IncludeHidden bool    `mapstructure:"include_hidden" yaml:"include_hidden"`
}

// YAML renders the configuration as YAML.
func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}
