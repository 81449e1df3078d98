package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete service configuration
type Config struct {
	HTTP          HTTPConfig          `yaml:"http"`
	Storage       StorageConfig       `yaml:"storage"`
	Transcription TranscriptionConfig `yaml:"transcription"`
	Auth          AuthConfig          `yaml:"auth"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// HTTPConfig contains HTTP API server configuration
type HTTPConfig struct {
	Port          int    `yaml:"port"`
	Address       string `yaml:"address"`
	ReadTimeout   int    `yaml:"read_timeout"`   // seconds
	WriteTimeout  int    `yaml:"write_timeout"`  // seconds
	IdleTimeout   int    `yaml:"idle_timeout"`   // seconds
	ShutdownGrace int    `yaml:"shutdown_grace"` // seconds
}

// StorageConfig contains object storage configuration
type StorageConfig struct {
	Bucket       string `yaml:"bucket"`
	UploadURLTTL int    `yaml:"upload_url_ttl"` // seconds
}

// TranscriptionConfig contains speech recognition configuration
type TranscriptionConfig struct {
	LanguageCode    string `yaml:"language_code"`
	SampleRateHertz int    `yaml:"sample_rate_hertz"`
	Timeout         int    `yaml:"timeout"` // seconds
	MaxRetries      int    `yaml:"max_retries"`
	MaxConcurrent   int    `yaml:"max_concurrent"`
}

// AuthConfig contains JWT authentication configuration
type AuthConfig struct {
	JWTSecret     string `yaml:"jwt_secret"`
	TokenTTLHours int    `yaml:"token_ttl_hours"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads and parses the configuration file. The JWT secret may be
// supplied via the JWT_SECRET environment variable, which takes precedence
// over the file so the secret never has to live on disk.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		config.Auth.JWTSecret = secret
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// Validate performs comprehensive validation of the configuration
func (c *Config) Validate() error {
	if err := c.HTTP.Validate(); err != nil {
		return fmt.Errorf("http config: %w", err)
	}

	if err := c.Storage.Validate(); err != nil {
		return fmt.Errorf("storage config: %w", err)
	}

	if err := c.Transcription.Validate(); err != nil {
		return fmt.Errorf("transcription config: %w", err)
	}

	if err := c.Auth.Validate(); err != nil {
		return fmt.Errorf("auth config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate validates HTTP configuration
func (h *HTTPConfig) Validate() error {
	if h.Port < 1 || h.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", h.Port)
	}

	if h.Address == "" {
		return fmt.Errorf("address cannot be empty")
	}

	if h.ReadTimeout < 1 {
		return fmt.Errorf("read_timeout must be at least 1 second, got %d", h.ReadTimeout)
	}

	if h.WriteTimeout < 1 {
		return fmt.Errorf("write_timeout must be at least 1 second, got %d", h.WriteTimeout)
	}

	if h.IdleTimeout < 1 {
		return fmt.Errorf("idle_timeout must be at least 1 second, got %d", h.IdleTimeout)
	}

	if h.ShutdownGrace < 1 {
		return fmt.Errorf("shutdown_grace must be at least 1 second, got %d", h.ShutdownGrace)
	}

	return nil
}

// Validate validates storage configuration
func (s *StorageConfig) Validate() error {
	if s.Bucket == "" {
		return fmt.Errorf("bucket cannot be empty")
	}

	if s.UploadURLTTL < 1 {
		return fmt.Errorf("upload_url_ttl must be at least 1 second, got %d", s.UploadURLTTL)
	}

	return nil
}

// Validate validates transcription configuration
func (t *TranscriptionConfig) Validate() error {
	if t.LanguageCode == "" {
		return fmt.Errorf("language_code cannot be empty")
	}

	if t.SampleRateHertz != 16000 {
		return fmt.Errorf("sample_rate_hertz must be 16000 for recorded chunks, got %d", t.SampleRateHertz)
	}

	if t.Timeout < 1 {
		return fmt.Errorf("timeout must be at least 1 second, got %d", t.Timeout)
	}

	if t.MaxRetries < 0 {
		return fmt.Errorf("max_retries cannot be negative, got %d", t.MaxRetries)
	}

	if t.MaxConcurrent < 1 {
		return fmt.Errorf("max_concurrent must be at least 1, got %d", t.MaxConcurrent)
	}

	return nil
}

// Validate validates auth configuration
func (a *AuthConfig) Validate() error {
	if a.JWTSecret == "" {
		return fmt.Errorf("jwt_secret cannot be empty (set it in the config file or via JWT_SECRET)")
	}

	if a.TokenTTLHours < 1 {
		return fmt.Errorf("token_ttl_hours must be at least 1, got %d", a.TokenTTLHours)
	}

	return nil
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[l.Level] {
		return fmt.Errorf("level must be one of [debug, info, warn, error], got '%s'", l.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("format must be 'json' or 'text', got '%s'", l.Format)
	}

	return nil
}

// GetReadTimeout returns the HTTP read timeout as a time.Duration
func (h *HTTPConfig) GetReadTimeout() time.Duration {
	return time.Duration(h.ReadTimeout) * time.Second
}

// GetWriteTimeout returns the HTTP write timeout as a time.Duration
func (h *HTTPConfig) GetWriteTimeout() time.Duration {
	return time.Duration(h.WriteTimeout) * time.Second
}

// GetIdleTimeout returns the HTTP idle timeout as a time.Duration
func (h *HTTPConfig) GetIdleTimeout() time.Duration {
	return time.Duration(h.IdleTimeout) * time.Second
}

// GetShutdownGrace returns the graceful shutdown window as a time.Duration
func (h *HTTPConfig) GetShutdownGrace() time.Duration {
	return time.Duration(h.ShutdownGrace) * time.Second
}

// GetUploadURLTTL returns the signed upload URL lifetime as a time.Duration
func (s *StorageConfig) GetUploadURLTTL() time.Duration {
	return time.Duration(s.UploadURLTTL) * time.Second
}

// GetTimeoutDuration returns the transcription timeout as a time.Duration
func (t *TranscriptionConfig) GetTimeoutDuration() time.Duration {
	return time.Duration(t.Timeout) * time.Second
}

// GetTokenTTL returns the JWT lifetime as a time.Duration
func (a *AuthConfig) GetTokenTTL() time.Duration {
	return time.Duration(a.TokenTTLHours) * time.Hour
}
