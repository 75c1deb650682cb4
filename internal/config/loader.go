package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// Identity names the application for config files and environment.
type Identity struct {
	BinaryName string
	EnvPrefix  string
	ConfigName string
}

var defaultIdentity = &Identity{
	BinaryName: "swiftfs",
	EnvPrefix:  "SWIFTFS",
	ConfigName: "swiftfs",
}

var (
	configMu    sync.RWMutex
	appConfig   *Config
	appIdentity *Identity
	configFile  string
)

// envSpec maps one environment variable to a config path.
type envSpec struct {
	Name string
	Path string
}

// SetConfigFile selects an explicit config file for subsequent loads.
// Empty restores the default search (./swiftfs.yaml, then the user config
// directory).
func SetConfigFile(path string) {
	configMu.Lock()
	defer configMu.Unlock()
	configFile = path
}

// Load builds the configuration. Precedence, highest first: runtime
// overrides, SWIFTFS_* environment variables, config file, defaults.
//
// The loaded config becomes the value returned by GetConfig.
func Load(ctx context.Context, overrides ...map[string]any) (*Config, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	configMu.Lock()
	defer configMu.Unlock()

	appIdentity = defaultIdentity

	v := viper.New()
	SetDefaults(v)

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	for _, spec := range getEnvSpecs() {
		if err := v.BindEnv(spec.Path, spec.Name); err != nil {
			return nil, fmt.Errorf("bind %s: %w", spec.Name, err)
		}
	}

	for _, o := range overrides {
		for path, value := range flatten("", o) {
			v.Set(path, value)
		}
	}

	var cfg Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
		byteSizeHook(),
	))
	if err := v.Unmarshal(&cfg, hook); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Storage.Validate(); err != nil {
		return nil, err
	}

	appConfig = &cfg
	return &cfg, nil
}

// GetConfig returns the last loaded configuration, or nil before Load.
func GetConfig() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return appConfig
}

// GetIdentity returns the application identity, or nil before Load.
func GetIdentity() *Identity {
	configMu.RLock()
	defer configMu.RUnlock()
	return appIdentity
}

// SetDefaults registers the default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.uri", "")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9090)

	v.SetDefault("health.enabled", true)
	v.SetDefault("health.timeout", "5s")

	v.SetDefault("swift.env_prefix", "OS_")
	v.SetDefault("swift.region", "")
	v.SetDefault("swift.interface", "")
	v.SetDefault("swift.segment_container", "")
	v.SetDefault("swift.create_container", false)
	v.SetDefault("swift.page_size", 0)
	v.SetDefault("swift.user_agent", "")

	v.SetDefault("s3.region", "")
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.profile", "")
	v.SetDefault("s3.force_path_style", false)
	v.SetDefault("s3.max_keys", 0)

	v.SetDefault("storage.prefix", "")
	v.SetDefault("storage.large_object_threshold", "300MiB")
	v.SetDefault("storage.segment_size", "100MiB")
	v.SetDefault("storage.segment_container", "")
	v.SetDefault("storage.delete_rate_limit", 0)
	v.SetDefault("storage.page_size", 0)
	v.SetDefault("storage.spool_memory_bytes", "16MiB")

	v.SetDefault("list.output", "jsonl")
	v.SetDefault("list.concurrency", 4)
	v.SetDefault("list.rate_limit", 0)
	v.SetDefault("list.include_hidden", false)
}

func readConfigFile(v *viper.Viper) error {
	path := configFile
	if path == "" && appIdentity != nil {
		path = os.Getenv(appIdentity.EnvPrefix + "_CONFIG")
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", path, err)
		}
		return nil
	}

	v.SetConfigName(appIdentity.ConfigName)
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	for _, dir := range getUserConfigPaths() {
		v.AddConfigPath(dir)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

// getUserConfigPaths returns the per-user config directories to search.
func getUserConfigPaths() []string {
	if appIdentity == nil {
		return nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return nil
	}
	return []string{filepath.Join(dir, appIdentity.ConfigName)}
}

// getEnvSpecs lists the supported environment variables.
func getEnvSpecs() []envSpec {
	if appIdentity == nil {
		return nil
	}
	p := appIdentity.EnvPrefix + "_"
	return []envSpec{
		{Name: p + "HOST", Path: "server.host"},
		{Name: p + "PORT", Path: "server.port"},
		{Name: p + "READ_TIMEOUT", Path: "server.read_timeout"},
		{Name: p + "WRITE_TIMEOUT", Path: "server.write_timeout"},
		{Name: p + "IDLE_TIMEOUT", Path: "server.idle_timeout"},
		{Name: p + "SHUTDOWN_TIMEOUT", Path: "server.shutdown_timeout"},
		{Name: p + "URI", Path: "server.uri"},
		{Name: p + "LOG_LEVEL", Path: "logging.level"},
		{Name: p + "LOG_FORMAT", Path: "logging.format"},
		{Name: p + "METRICS_ENABLED", Path: "metrics.enabled"},
		{Name: p + "METRICS_PORT", Path: "metrics.port"},
		{Name: p + "HEALTH_ENABLED", Path: "health.enabled"},
		{Name: p + "SWIFT_ENV_PREFIX", Path: "swift.env_prefix"},
		{Name: p + "SWIFT_REGION", Path: "swift.region"},
		{Name: p + "SWIFT_INTERFACE", Path: "swift.interface"},
		{Name: p + "SWIFT_SEGMENT_CONTAINER", Path: "swift.segment_container"},
		{Name: p + "S3_REGION", Path: "s3.region"},
		{Name: p + "S3_ENDPOINT", Path: "s3.endpoint"},
		{Name: p + "S3_PROFILE", Path: "s3.profile"},
		{Name: p + "S3_FORCE_PATH_STYLE", Path: "s3.force_path_style"},
		{Name: p + "STORAGE_PREFIX", Path: "storage.prefix"},
		{Name: p + "LARGE_OBJECT_THRESHOLD", Path: "storage.large_object_threshold"},
		{Name: p + "SEGMENT_SIZE", Path: "storage.segment_size"},
		{Name: p + "DELETE_RATE_LIMIT", Path: "storage.delete_rate_limit"},
		{Name: p + "PAGE_SIZE", Path: "storage.page_size"},
		{Name: p + "LIST_OUTPUT", Path: "list.output"},
		{Name: p + "LIST_CONCURRENCY", Path: "list.concurrency"},
	}
}

// byteSizeHook decodes human-readable sizes ("300MiB", "16 MB") into
// int64 fields. Durations are handled earlier in the chain.
func byteSizeHook() mapstructure.DecodeHookFuncType {
	durationType := reflect.TypeOf(time.Duration(0))
	return func(from, to reflect.Type, data any) (any, error) {
		if from.Kind() != reflect.String || to.Kind() != reflect.Int64 || to == durationType {
			return data, nil
		}
		s := strings.TrimSpace(reflect.ValueOf(data).String())
		if s == "" {
			return int64(0), nil
		}
		n, err := humanize.ParseBytes(s)
		if err != nil {
			return nil, fmt.Errorf("invalid size %q: %w", s, err)
		}
		return int64(n), nil
	}
}

// flatten turns nested override maps into dotted viper keys.
func flatten(prefix string, m map[string]any) map[string]any {
	out := make(map[string]any)
	for k, val := range m {
		key := strings.ToLower(k)
		if prefix != "" {
			key = prefix + "." + key
		}
		if nested, ok := val.(map[string]any); ok {
			for nk, nv := range flatten(key, nested) {
				out[nk] = nv
			}
			continue
		}
		out[key] = val
	}
	return out
}
