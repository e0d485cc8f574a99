package config

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of environment variable overrides, e.g. AEGIS_SERVER_PORT
const EnvPrefix = "AEGIS"

// Loader reads configuration from defaults, an optional YAML file and the environment
type Loader struct {
	v    *viper.Viper
	path string
}

// NewLoader creates a loader. An empty path searches the default locations.
func NewLoader(configPath string) *Loader {
	v := viper.New()
	v.SetConfigType("yaml")

	// Environment variable overrides
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/aegis/")
		v.AddConfigPath("$HOME/.aegis/")
	}

	return &Loader{v: v, path: configPath}
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	return NewLoader(configPath).Load()
}

// Load reads and validates the configuration
func (l *Loader) Load() (*Config, error) {
	// Seed viper with the defaults so every key is known to AutomaticEnv
	defaults, err := yaml.Marshal(GetDefaults())
	if err != nil {
		return nil, fmt.Errorf("failed to encode defaults: %w", err)
	}
	if err := l.v.ReadConfig(bytes.NewReader(defaults)); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if err := l.v.MergeInConfig(); err != nil {
		// Config file not found is not an error - we'll use defaults
		var notFound viper.ConfigFileNotFoundError
		if l.path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return l.decode()
}

func (l *Loader) decode() (*Config, error) {
	cfg := GetDefaults()
	if err := l.v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Watch reloads the configuration file on change. Invalid edits are passed
// to onError and the previous configuration stays in effect.
func (l *Loader) Watch(callback func(*Config), onError func(error)) {
	l.v.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := l.decode()
		if err != nil {
			if onError != nil {
				onError(fmt.Errorf("reload %s: %w", e.Name, err))
			}
			return
		}
		callback(cfg)
	})
	l.v.WatchConfig()
}

// ConfigFile returns the file in use, or "" when running on defaults
func (l *Loader) ConfigFile() string {
	return l.v.ConfigFileUsed()
}

// Validate validates the loaded configuration
func Validate(config *Config) error {
	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	if len(config.Privacy.Detectors) == 0 {
		return fmt.Errorf("privacy.detectors must list at least one detector (or \"all\")")
	}

	switch config.Semantic.Type {
	case "heuristic", "onnx":
	default:
		return fmt.Errorf("invalid semantic type: %s (must be heuristic or onnx)", config.Semantic.Type)
	}

	if config.Semantic.Enabled && config.Semantic.Type == "onnx" {
		if config.Semantic.ModelPath == "" || config.Semantic.VocabPath == "" {
			return fmt.Errorf("semantic.model_path and semantic.vocab_path are required for onnx")
		}
		if config.Semantic.MaxLength < 8 {
			return fmt.Errorf("semantic.max_length must be at least 8")
		}
	}

	switch config.Store.Type {
	case "memory", "redis", "postgres", "file":
	default:
		return fmt.Errorf("invalid store type: %s (must be memory, redis, postgres, or file)", config.Store.Type)
	}

	if config.Store.Type == "postgres" && config.Store.Postgres.DatabaseURL == "" {
		return fmt.Errorf("store.postgres.database_url is required for the postgres store")
	}

	if config.Security.RateLimit.Enabled && config.Security.RateLimit.RequestsPerMin <= 0 {
		return fmt.Errorf("invalid rate limit: %d requests per minute", config.Security.RateLimit.RequestsPerMin)
	}

	if config.Logging.Level != "debug" && config.Logging.Level != "info" && config.Logging.Level != "warn" && config.Logging.Level != "error" {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", config.Logging.Level)
	}

	if config.Logging.Format != "json" && config.Logging.Format != "console" {
		return fmt.Errorf("invalid log format: %s (must be json or console)", config.Logging.Format)
	}

	if config.Batch.BatchSize <= 0 || config.Batch.WorkerCount <= 0 {
		return fmt.Errorf("batch.batch_size and batch.worker_count must be positive")
	}

	return nil
}
