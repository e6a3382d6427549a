package model

import "time"

// Config holds the complete docverify configuration
type Config struct {
	LLM          LLMConfig          `yaml:"llm" mapstructure:"llm"`
	OCR          OCRConfig          `yaml:"ocr" mapstructure:"ocr"`
	Processing   ProcessingConfig   `yaml:"processing" mapstructure:"processing"`
	Cache        CacheConfig        `yaml:"cache" mapstructure:"cache"`
	Concurrency  ConcurrencyConfig  `yaml:"concurrency" mapstructure:"concurrency"`
	RateLimiting RateLimitingConfig `yaml:"rate_limiting" mapstructure:"rate_limiting"`
	Breaker      BreakerConfig      `yaml:"breaker" mapstructure:"breaker"`
	HTTP         HTTPConfig         `yaml:"http" mapstructure:"http"`
	Server       ServerConfig       `yaml:"server" mapstructure:"server"`
	Output       OutputConfig       `yaml:"output" mapstructure:"output"`
	Logging      LoggingConfig      `yaml:"logging" mapstructure:"logging"`
}

// LLMConfig configures the model used for classification and field extraction
type LLMConfig struct {
	Provider    string  `yaml:"provider" mapstructure:"provider"` // openai, anthropic, ollama, or empty for offline mode
	Model       string  `yaml:"model" mapstructure:"model"`
	APIKey      string  `yaml:"api_key,omitempty" mapstructure:"api_key"`
	BaseURL     string  `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Timeout     int     `yaml:"timeout" mapstructure:"timeout"` // seconds
	MaxTokens   int     `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature float32 `yaml:"temperature" mapstructure:"temperature"`
	MaxRetries  int     `yaml:"max_retries" mapstructure:"max_retries"`
}

// OCRConfig configures the external OCR tools
type OCRConfig struct {
	Enabled   bool   `yaml:"enabled" mapstructure:"enabled"`
	Tesseract string `yaml:"tesseract" mapstructure:"tesseract"`
	Pdftoppm  string `yaml:"pdftoppm" mapstructure:"pdftoppm"`
	Language  string `yaml:"language" mapstructure:"language"`
	DPI       int    `yaml:"dpi" mapstructure:"dpi"`
}

// ProcessingConfig configures document intake and extraction
type ProcessingConfig struct {
	CustomFields        []string `yaml:"custom_fields" mapstructure:"custom_fields"`
	ConfidenceThreshold float64  `yaml:"confidence_threshold" mapstructure:"confidence_threshold"`
	MaxFileBytes        int64    `yaml:"max_file_bytes" mapstructure:"max_file_bytes"`
	WarnFileBytes       int64    `yaml:"warn_file_bytes" mapstructure:"warn_file_bytes"`
	MinTextLength       int      `yaml:"min_text_length" mapstructure:"min_text_length"`
	ExtractTextLimit    int      `yaml:"extract_text_limit" mapstructure:"extract_text_limit"`
	ClassifyTextLimit   int      `yaml:"classify_text_limit" mapstructure:"classify_text_limit"`
}

// CacheConfig configures the extraction cache
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	Dir       string        `yaml:"dir" mapstructure:"dir"`
	MemoryTTL time.Duration `yaml:"memory_ttl" mapstructure:"memory_ttl"`
	DiskTTL   time.Duration `yaml:"disk_ttl" mapstructure:"disk_ttl"`
}

// ConcurrencyConfig configures batch processing
type ConcurrencyConfig struct {
	Workers int `yaml:"workers" mapstructure:"workers"`
}

// RateLimitingConfig limits calls to the LLM provider
type RateLimitingConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	BurstSize         int     `yaml:"burst_size" mapstructure:"burst_size"`
}

// BreakerConfig configures the circuit breaker around the LLM provider
type BreakerConfig struct {
	Enabled             bool          `yaml:"enabled" mapstructure:"enabled"`
	ConsecutiveFailures uint32        `yaml:"consecutive_failures" mapstructure:"consecutive_failures"`
	OpenTimeout         time.Duration `yaml:"open_timeout" mapstructure:"open_timeout"`
	HalfOpenRequests    uint32        `yaml:"half_open_requests" mapstructure:"half_open_requests"`
}

// HTTPConfig configures remote document fetching
type HTTPConfig struct {
	Timeout       time.Duration `yaml:"timeout" mapstructure:"timeout"`
	UserAgent     string        `yaml:"user_agent" mapstructure:"user_agent"`
	MaxBodyBytes  int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	RespectRobots bool          `yaml:"respect_robots" mapstructure:"respect_robots"`
	HTTPProxy     string        `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy    string        `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
	NoProxy       string        `yaml:"no_proxy,omitempty" mapstructure:"no_proxy"`
}

// ServerConfig configures the HTTP API
type ServerConfig struct {
	Addr string `yaml:"addr" mapstructure:"addr"`
}

// OutputConfig configures result rendering
type OutputConfig struct {
	Dir     string   `yaml:"dir" mapstructure:"dir"`
	Formats []string `yaml:"formats" mapstructure:"formats"` // json, md, xlsx
	Verbose bool     `yaml:"verbose" mapstructure:"verbose"`
}

// LoggingConfig configures structured logging
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`   // debug, info, warn, error
	Format string `yaml:"format" mapstructure:"format"` // text, json
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:    "",
			Model:       "gpt-4o",
			Timeout:     60,
			MaxTokens:   2000,
			Temperature: 0,
			MaxRetries:  3,
		},
		OCR: OCRConfig{
			Enabled:   true,
			Tesseract: "tesseract",
			Pdftoppm:  "pdftoppm",
			Language:  "eng",
			DPI:       300,
		},
		Processing: ProcessingConfig{
			CustomFields:        []string{},
			ConfidenceThreshold: 0.7,
			MaxFileBytes:        50 << 20,
			WarnFileBytes:       10 << 20,
			MinTextLength:       10,
			ExtractTextLimit:    4000,
			ClassifyTextLimit:   2000,
		},
		Cache: CacheConfig{
			Enabled:   true,
			Dir:       ".docverify-cache",
			MemoryTTL: 1 * time.Hour,
			DiskTTL:   24 * time.Hour,
		},
		Concurrency: ConcurrencyConfig{
			Workers: 4,
		},
		RateLimiting: RateLimitingConfig{
			RequestsPerSecond: 2.0,
			BurstSize:         4,
		},
		Breaker: BreakerConfig{
			Enabled:             true,
			ConsecutiveFailures: 5,
			OpenTimeout:         30 * time.Second,
			HalfOpenRequests:    1,
		},
		HTTP: HTTPConfig{
			Timeout:       30 * time.Second,
			UserAgent:     "docverify/0.1 (+https://github.com/ppiankov/docverify)",
			MaxBodyBytes:  50 << 20,
			RespectRobots: true,
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
		Output: OutputConfig{
			Dir:     "./docverify-results",
			Formats: []string{"json"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
