package model

import "time"

// Config holds the complete callfacts configuration
type Config struct {
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Fetch    FetchConfig    `yaml:"fetch" mapstructure:"fetch"`
	LLM      LLMConfig      `yaml:"llm" mapstructure:"llm"`
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Pipeline PipelineConfig `yaml:"pipeline" mapstructure:"pipeline"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// ServerConfig configures the HTTP surface and the submission pool
type ServerConfig struct {
	Addr           string        `yaml:"addr" mapstructure:"addr"`
	PublicURL      string        `yaml:"public_url" mapstructure:"public_url"` // Base for redirect_url; derived from the request when empty
	Workers        int           `yaml:"workers" mapstructure:"workers"`
	QueueSize      int           `yaml:"queue_size" mapstructure:"queue_size"`
	SessionTTL     time.Duration `yaml:"session_ttl" mapstructure:"session_ttl"`
	SecureCookie   bool          `yaml:"secure_cookie" mapstructure:"secure_cookie"`
	AllowedOrigins []string      `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	AppKey         string        `yaml:"-" mapstructure:"-"` // From APP_KEY only
}

// FetchConfig configures document retrieval
type FetchConfig struct {
	Timeout       time.Duration `yaml:"timeout" mapstructure:"timeout"`
	UserAgent     string        `yaml:"user_agent" mapstructure:"user_agent"`
	MaxBytes      int64         `yaml:"max_bytes" mapstructure:"max_bytes"`
	RespectRobots bool          `yaml:"respect_robots" mapstructure:"respect_robots"`
	AllowHTML     bool          `yaml:"allow_html" mapstructure:"allow_html"`
	HTTPProxy     string        `yaml:"http_proxy" mapstructure:"http_proxy"`
	HTTPSProxy    string        `yaml:"https_proxy" mapstructure:"https_proxy"`
	NoProxy       string        `yaml:"no_proxy" mapstructure:"no_proxy"`
}

// LLMConfig configures the completion service
type LLMConfig struct {
	Provider    string  `yaml:"provider" mapstructure:"provider"` // openai, anthropic, ollama
	Model       string  `yaml:"model" mapstructure:"model"`
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	Timeout     int     `yaml:"timeout" mapstructure:"timeout"` // seconds
	MaxTokens   int     `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature float32 `yaml:"temperature" mapstructure:"temperature"`
	APIKey      string  `yaml:"-" mapstructure:"-"` // From environment only
}

// StoreConfig selects the session result store
type StoreConfig struct {
	Backend   string        `yaml:"backend" mapstructure:"backend"` // memory, redis
	TTL       time.Duration `yaml:"ttl" mapstructure:"ttl"`
	RedisAddr string        `yaml:"redis_addr" mapstructure:"redis_addr"`
	RedisDB   int           `yaml:"redis_db" mapstructure:"redis_db"`
}

// PipelineConfig configures the orchestration loop
type PipelineConfig struct {
	SubmissionTimeout time.Duration `yaml:"submission_timeout" mapstructure:"submission_timeout"`
	MarkFailed        bool          `yaml:"mark_failed" mapstructure:"mark_failed"` // Record aborted submissions as "failed"
}

// LogConfig configures structured logging
type LogConfig struct {
	Level      string `yaml:"level" mapstructure:"level"`
	File       string `yaml:"file" mapstructure:"file"` // Empty disables the rotating file
	MaxSizeMB  int    `yaml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups" mapstructure:"max_backups"`
	JSON       bool   `yaml:"json" mapstructure:"json"`
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:           ":8080",
			Workers:        4,
			QueueSize:      16,
			SessionTTL:     24 * time.Hour,
			AllowedOrigins: []string{"http://localhost:3000", "http://127.0.0.1:3000"},
		},
		Fetch: FetchConfig{
			Timeout:   10 * time.Second,
			UserAgent: "callfacts/0.1",
			MaxBytes:  2_000_000,
		},
		LLM: LLMConfig{
			Provider:    "openai",
			Model:       "gpt-4",
			Timeout:     30,
			MaxTokens:   100,
			Temperature: 0.1,
		},
		Store: StoreConfig{
			Backend:   "memory",
			TTL:       24 * time.Hour,
			RedisAddr: "localhost:6379",
		},
		Pipeline: PipelineConfig{
			SubmissionTimeout: 5 * time.Minute,
		},
		Log: LogConfig{
			Level:      "info",
			File:       "app.log",
			MaxSizeMB:  1,
			MaxBackups: 1,
		},
	}
}
