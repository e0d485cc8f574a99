package config

import "time"

// Config represents the main configuration structure
type Config struct {
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Privacy   PrivacyConfig   `yaml:"privacy" mapstructure:"privacy"`
	Semantic  SemanticConfig  `yaml:"semantic" mapstructure:"semantic"`
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Security  SecurityConfig  `yaml:"security" mapstructure:"security"`
	Logging   LoggingConfig   `yaml:"logging" mapstructure:"logging"`
	Upstream  UpstreamConfig  `yaml:"upstream" mapstructure:"upstream"`
	WebSocket WebSocketConfig `yaml:"websocket" mapstructure:"websocket"`
	Batch     BatchConfig     `yaml:"batch" mapstructure:"batch"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port         int           `yaml:"port" mapstructure:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout"`
	MaxBodyBytes int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
}

// HeaderScrubbingConfig lists headers that never reach logs or events
type HeaderScrubbingConfig struct {
	Enabled bool     `yaml:"enabled" mapstructure:"enabled"`
	Headers []string `yaml:"headers" mapstructure:"headers"`
}

// PrivacyConfig contains structural PII detection configuration
type PrivacyConfig struct {
	Enabled          bool                  `yaml:"enabled" mapstructure:"enabled"`
	Detectors        []string              `yaml:"detectors" mapstructure:"detectors"`
	RestoreResponses bool                  `yaml:"restore_responses" mapstructure:"restore_responses"`
	HeaderScrubbing  HeaderScrubbingConfig `yaml:"header_scrubbing" mapstructure:"header_scrubbing"`
}

// SemanticConfig contains the optional entity-recognition source configuration
type SemanticConfig struct {
	Enabled        bool          `yaml:"enabled" mapstructure:"enabled"`
	Type           string        `yaml:"type" mapstructure:"type"` // heuristic or onnx
	ModelPath      string        `yaml:"model_path" mapstructure:"model_path"`
	VocabPath      string        `yaml:"vocab_path" mapstructure:"vocab_path"`
	Labels         []string      `yaml:"labels" mapstructure:"labels"`
	MaxLength      int           `yaml:"max_length" mapstructure:"max_length"`
	MinScore       float64       `yaml:"min_score" mapstructure:"min_score"`
	LowerCase      bool          `yaml:"lower_case" mapstructure:"lower_case"`
	Timeout        time.Duration `yaml:"timeout" mapstructure:"timeout"`
	PreloadOnStart bool          `yaml:"preload_on_start" mapstructure:"preload_on_start"`
}

// StoreConfig selects where scrub mappings are kept between scrub and restore
type StoreConfig struct {
	Type       string         `yaml:"type" mapstructure:"type"` // memory, redis, postgres or file
	KeyPrefix  string         `yaml:"key_prefix" mapstructure:"key_prefix"`
	TTL        time.Duration  `yaml:"ttl" mapstructure:"ttl"`
	DefaultKey string         `yaml:"default_key" mapstructure:"default_key"`
	Redis      RedisConfig    `yaml:"redis" mapstructure:"redis"`
	Postgres   PostgresConfig `yaml:"postgres" mapstructure:"postgres"`
	File       FileConfig     `yaml:"file" mapstructure:"file"`
}

// RedisConfig contains Redis connection configuration
type RedisConfig struct {
	URL          string `yaml:"url" mapstructure:"url"`
	PoolSize     int    `yaml:"pool_size" mapstructure:"pool_size"`
	MinIdleConns int    `yaml:"min_idle_conns" mapstructure:"min_idle_conns"`
}

// PostgresConfig contains database configuration
type PostgresConfig struct {
	DatabaseURL     string        `yaml:"database_url" mapstructure:"database_url"`
	Table           string        `yaml:"table" mapstructure:"table"`
	MaxOpenConns    int           `yaml:"max_open_conns" mapstructure:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns" mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" mapstructure:"conn_max_lifetime"`
}

// FileConfig contains the on-disk mapping store location
type FileConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// SecurityConfig contains request guardrails
type SecurityConfig struct {
	RateLimit RateLimitConfig `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// RateLimitConfig contains per-client rate limiting configuration
type RateLimitConfig struct {
	Enabled        bool          `yaml:"enabled" mapstructure:"enabled"`
	RequestsPerMin int           `yaml:"requests_per_min" mapstructure:"requests_per_min"`
	Burst          int           `yaml:"burst" mapstructure:"burst"`
	IdleTimeout    time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"` // json or console
	File   struct {
		Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
		Path    string `yaml:"path" mapstructure:"path"`
	} `yaml:"file" mapstructure:"file"`
}

// UpstreamConfig contains upstream LLM provider configuration
type UpstreamConfig struct {
	OpenAI    string        `yaml:"openai" mapstructure:"openai"`
	Anthropic string        `yaml:"anthropic" mapstructure:"anthropic"`
	Ollama    string        `yaml:"ollama" mapstructure:"ollama"`
	Timeout   time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// WebSocketConfig contains WebSocket configuration
type WebSocketConfig struct {
	Enabled  bool   `yaml:"enabled" mapstructure:"enabled"`
	Path     string `yaml:"path" mapstructure:"path"`
	Username string `yaml:"username" mapstructure:"username"`
	Password string `yaml:"password" mapstructure:"password"`
	Events   struct {
		BroadcastRequests    bool `yaml:"broadcast_requests" mapstructure:"broadcast_requests"`
		BroadcastDetections  bool `yaml:"broadcast_detections" mapstructure:"broadcast_detections"`
		BroadcastProgress    bool `yaml:"broadcast_progress" mapstructure:"broadcast_progress"`
		BroadcastConnections bool `yaml:"broadcast_connections" mapstructure:"broadcast_connections"`
	} `yaml:"events" mapstructure:"events"`
}

// BatchConfig contains dataset scrubbing configuration
type BatchConfig struct {
	BatchSize      int  `yaml:"batch_size" mapstructure:"batch_size"`
	WorkerCount    int  `yaml:"worker_count" mapstructure:"worker_count"`
	ProgressReport int  `yaml:"progress_report" mapstructure:"progress_report"`
	UseSemantic    bool `yaml:"use_semantic" mapstructure:"use_semantic"`
	SaveMappings   bool `yaml:"save_mappings" mapstructure:"save_mappings"`
}

// GetDefaults returns a configuration with sensible defaults
func GetDefaults() *Config {
	cfg := &Config{
		Server: ServerConfig{
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  60 * time.Second,
			MaxBodyBytes: 4 << 20,
		},
		Privacy: PrivacyConfig{
			Enabled:          true,
			Detectors:        []string{"all"},
			RestoreResponses: true,
			HeaderScrubbing: HeaderScrubbingConfig{
				Enabled: true,
				Headers: []string{"authorization", "x-api-key", "cookie", "x-auth-token"},
			},
		},
		Semantic: SemanticConfig{
			Enabled:   false,
			Type:      "heuristic",
			ModelPath: "./models/ner.onnx",
			VocabPath: "./models/vocab.txt",
			Labels:    []string{"O", "B-MISC", "I-MISC", "B-PER", "I-PER", "B-ORG", "I-ORG", "B-LOC", "I-LOC"},
			MaxLength: 256,
			MinScore:  0.5,
			Timeout:   5 * time.Second,
		},
		Store: StoreConfig{
			Type:       "memory",
			KeyPrefix:  "aegis:",
			TTL:        24 * time.Hour,
			DefaultKey: "aegis-pii-mapping",
			Redis: RedisConfig{
				URL:          "redis://localhost:6379/0",
				PoolSize:     10,
				MinIdleConns: 2,
			},
			Postgres: PostgresConfig{
				Table:           "pii_mappings",
				MaxOpenConns:    10,
				MaxIdleConns:    5,
				ConnMaxLifetime: 30 * time.Minute,
			},
			File: FileConfig{
				Dir: "./data/mappings",
			},
		},
		Security: SecurityConfig{
			RateLimit: RateLimitConfig{
				Enabled:        true,
				RequestsPerMin: 600,
				Burst:          50,
				IdleTimeout:    time.Hour,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Upstream: UpstreamConfig{
			OpenAI:    "https://api.openai.com",
			Anthropic: "https://api.anthropic.com",
			Ollama:    "http://localhost:11434",
			Timeout:   60 * time.Second,
		},
		WebSocket: WebSocketConfig{
			Enabled:  true,
			Path:     "/ws",
			Username: "admin",
			Password: "changeme",
		},
		Batch: BatchConfig{
			BatchSize:      500,
			WorkerCount:    4,
			ProgressReport: 1000,
			SaveMappings:   true,
		},
	}

	cfg.Logging.File.Path = "logs/aegis.log"
	cfg.WebSocket.Events.BroadcastRequests = true
	cfg.WebSocket.Events.BroadcastDetections = true
	cfg.WebSocket.Events.BroadcastProgress = true
	cfg.WebSocket.Events.BroadcastConnections = true

	return cfg
}
