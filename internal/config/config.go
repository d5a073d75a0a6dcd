package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/saligia28/meetstream/internal/protocol"
)

// Config represents the complete client configuration
type Config struct {
	Capture   CaptureConfig   `yaml:"capture"`
	Transport TransportConfig `yaml:"transport"`
	Detection DetectionConfig `yaml:"detection"`
	API       APIConfig       `yaml:"api"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// CaptureConfig contains microphone capture parameters
type CaptureConfig struct {
	TargetSampleRate int    `yaml:"target_sample_rate"` // rate sent to the backend
	FrameSize        int    `yaml:"frame_size"`         // samples per frame
	Device           string `yaml:"device"`             // empty selects the default input
}

// TransportConfig contains realtime streaming configuration
type TransportConfig struct {
	BaseURL          string `yaml:"base_url"`
	HandshakeTimeout int    `yaml:"handshake_timeout"` // seconds
	QueueCapacity    int    `yaml:"queue_capacity"`    // pre-ready chunk queue bound
}

// DetectionConfig contains server-side speech detection tuning
type DetectionConfig struct {
	Enabled        bool `yaml:"enabled"`
	Aggressiveness int  `yaml:"aggressiveness"`
	SpeechRatio    int  `yaml:"speech_ratio"` // percent
}

// APIConfig contains REST API configuration
type APIConfig struct {
	BaseURL    string `yaml:"base_url"`
	Timeout    int    `yaml:"timeout"` // seconds
	MaxRetries int    `yaml:"max_retries"`
}

// MetricsConfig contains the optional Prometheus listener configuration
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Default returns a configuration usable without a config file.
func Default() *Config {
	return &Config{
		Capture: CaptureConfig{
			TargetSampleRate: 16000,
			FrameSize:        4096,
		},
		Transport: TransportConfig{
			BaseURL:          "http://localhost:8000",
			HandshakeTimeout: 10,
			QueueCapacity:    40,
		},
		Detection: DetectionConfig{
			Enabled:        true,
			Aggressiveness: protocol.DefaultAggressiveness,
			SpeechRatio:    protocol.DefaultSpeechRatio,
		},
		API: APIConfig{
			BaseURL:    "http://localhost:8000",
			Timeout:    30,
			MaxRetries: 3,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Address: "localhost:9090",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// Validate performs comprehensive validation of the configuration
func (c *Config) Validate() error {
	if err := c.Capture.Validate(); err != nil {
		return fmt.Errorf("capture config: %w", err)
	}

	if err := c.Transport.Validate(); err != nil {
		return fmt.Errorf("transport config: %w", err)
	}

	if err := c.Detection.Validate(); err != nil {
		return fmt.Errorf("detection config: %w", err)
	}

	if err := c.API.Validate(); err != nil {
		return fmt.Errorf("api config: %w", err)
	}

	if err := c.Metrics.Validate(); err != nil {
		return fmt.Errorf("metrics config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate validates capture configuration
func (cc *CaptureConfig) Validate() error {
	if cc.TargetSampleRate < 8000 || cc.TargetSampleRate > 48000 {
		return fmt.Errorf("target_sample_rate must be between 8000 and 48000 Hz, got %d", cc.TargetSampleRate)
	}

	if cc.FrameSize < 256 || cc.FrameSize > 16384 {
		return fmt.Errorf("frame_size must be between 256 and 16384 samples, got %d", cc.FrameSize)
	}

	return nil
}

// Validate validates transport configuration
func (tc *TransportConfig) Validate() error {
	if tc.BaseURL == "" {
		return fmt.Errorf("base_url cannot be empty")
	}

	if tc.HandshakeTimeout < 1 {
		return fmt.Errorf("handshake_timeout must be at least 1 second, got %d", tc.HandshakeTimeout)
	}

	if tc.QueueCapacity < 1 {
		return fmt.Errorf("queue_capacity must be at least 1, got %d", tc.QueueCapacity)
	}

	return nil
}

// Validate validates detection configuration
func (d *DetectionConfig) Validate() error {
	if !d.Enabled {
		return nil
	}

	if d.Aggressiveness < protocol.MinAggressiveness || d.Aggressiveness > protocol.MaxAggressiveness {
		return fmt.Errorf("aggressiveness must be between %d and %d, got %d",
			protocol.MinAggressiveness, protocol.MaxAggressiveness, d.Aggressiveness)
	}

	if d.SpeechRatio < protocol.MinSpeechRatio || d.SpeechRatio > protocol.MaxSpeechRatio {
		return fmt.Errorf("speech_ratio must be between %d and %d percent, got %d",
			protocol.MinSpeechRatio, protocol.MaxSpeechRatio, d.SpeechRatio)
	}

	return nil
}

// Validate validates API configuration
func (a *APIConfig) Validate() error {
	if a.BaseURL == "" {
		return fmt.Errorf("base_url cannot be empty")
	}

	if a.Timeout < 1 {
		return fmt.Errorf("timeout must be at least 1 second, got %d", a.Timeout)
	}

	if a.MaxRetries < 0 {
		return fmt.Errorf("max_retries cannot be negative, got %d", a.MaxRetries)
	}

	return nil
}

// Validate validates metrics configuration
func (m *MetricsConfig) Validate() error {
	if m.Enabled && m.Address == "" {
		return fmt.Errorf("address cannot be empty when metrics are enabled")
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

// Protocol converts the detection section to its wire representation. Returns
// nil when detection tuning is disabled.
func (d *DetectionConfig) Protocol() *protocol.DetectionConfig {
	if !d.Enabled {
		return nil
	}
	return &protocol.DetectionConfig{
		Aggressiveness: d.Aggressiveness,
		SpeechRatio:    d.SpeechRatio,
	}
}

// GetHandshakeTimeoutDuration returns the handshake timeout as a time.Duration
func (tc *TransportConfig) GetHandshakeTimeoutDuration() time.Duration {
	return time.Duration(tc.HandshakeTimeout) * time.Second
}

// GetTimeoutDuration returns the API timeout as a time.Duration
func (a *APIConfig) GetTimeoutDuration() time.Duration {
	return time.Duration(a.Timeout) * time.Second
}
