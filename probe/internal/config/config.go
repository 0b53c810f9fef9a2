package config

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sockrelay/sockrelay/pkg/filewatch"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultTextPath        = "/textSocket"
	DefaultBinaryPath      = "/binSocket"
	DefaultInterval        = 15 * time.Second
	DefaultTimeout         = 5 * time.Second
	DefaultPayloadBytes    = 1024
	DefaultTextPayload     = 1024
	DefaultBaselineLatency = 250 * time.Millisecond
	DefaultLogLevel        = "info"

	// MaxPayloadBytes matches the relay's binary frame limit.
	MaxPayloadBytes = 10_000_000

	// MaxTextPayloadBytes matches the relay's default text frame limit.
	MaxTextPayloadBytes = 64 * 1024
)

// Config is the top-level probe configuration. Fields map 1:1 to the
// `probe:` section of config.yaml.
type Config struct {
	Probe ProbeConfig `yaml:"probe"`
}

// ProbeConfig holds all probe-side settings.
type ProbeConfig struct {
	// RelayURL is the websocket base URL of the relay (ws:// or wss://).
	RelayURL string `yaml:"relay_url"`

	// TextPath and BinaryPath are appended to RelayURL to reach each channel.
	TextPath   string `yaml:"text_path"`
	BinaryPath string `yaml:"binary_path"`

	// MetricsURL is the relay's Prometheus endpoint. Empty disables scraping.
	MetricsURL string `yaml:"metrics_url"`

	// HealthEndpoint is the relay's gRPC host:port. Empty disables the
	// health checker.
	HealthEndpoint string `yaml:"health_endpoint"`

	// Interval controls how often a probe cycle runs.
	Interval time.Duration `yaml:"interval"`

	// Timeout bounds each round trip, scrape, and health check.
	Timeout time.Duration `yaml:"timeout"`

	// PayloadBytes is the size of each binary round-trip payload.
	PayloadBytes int `yaml:"payload_bytes"`

	// TextPayloadBytes is the size of each text round-trip payload, capped at
	// the relay's default text frame limit.
	TextPayloadBytes int `yaml:"text_payload_bytes"`

	// BaselineLatency is the acceptable round-trip latency. Slower echoes
	// lower the score proportionally.
	BaselineLatency time.Duration `yaml:"baseline_latency"`

	// LogLevel is one of debug | info | warn | error. Applied live on reload.
	LogLevel string `yaml:"log_level"`
}

// TextURL returns the full websocket URL of the text channel.
func (p ProbeConfig) TextURL() string {
	return strings.TrimRight(p.RelayURL, "/") + p.TextPath
}

// BinaryURL returns the full websocket URL of the binary channel.
func (p ProbeConfig) BinaryURL() string {
	return strings.TrimRight(p.RelayURL, "/") + p.BinaryPath
}

// Level returns the slog level for LogLevel.
func (p ProbeConfig) Level() slog.Level {
	switch strings.ToLower(p.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Load reads and parses the YAML config file at path.
// Missing optional fields are filled with sensible defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// Watch calls onChange with the reloaded Config each time path is written.
// A reload that fails to parse or validate keeps the previous config.
func Watch(ctx context.Context, path string, onChange func(*Config)) error {
	return filewatch.Watch(ctx, path, Load, onChange)
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Probe: ProbeConfig{
			TextPath:         DefaultTextPath,
			BinaryPath:       DefaultBinaryPath,
			Interval:         DefaultInterval,
			Timeout:          DefaultTimeout,
			PayloadBytes:     DefaultPayloadBytes,
			TextPayloadBytes: DefaultTextPayload,
			BaselineLatency:  DefaultBaselineLatency,
			LogLevel:         DefaultLogLevel,
		},
	}
}

// validate checks required fields and structural constraints.
func validate(cfg *Config) error {
	p := cfg.Probe
	if p.RelayURL == "" {
		return fmt.Errorf("probe.relay_url is required")
	}
	u, err := url.Parse(p.RelayURL)
	if err != nil {
		return fmt.Errorf("probe.relay_url: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("probe.relay_url: scheme must be ws or wss, got %q", u.Scheme)
	}
	if !strings.HasPrefix(p.TextPath, "/") || !strings.HasPrefix(p.BinaryPath, "/") {
		return fmt.Errorf("probe: channel paths must start with /")
	}
	if p.MetricsURL != "" {
		m, err := url.Parse(p.MetricsURL)
		if err != nil || (m.Scheme != "http" && m.Scheme != "https") {
			return fmt.Errorf("probe.metrics_url must be an http(s) URL, got %q", p.MetricsURL)
		}
	}
	if p.Interval <= 0 {
		return fmt.Errorf("probe.interval must be positive")
	}
	if p.Timeout <= 0 {
		return fmt.Errorf("probe.timeout must be positive")
	}
	if p.Timeout > p.Interval {
		return fmt.Errorf("probe.timeout (%v) must not exceed probe.interval (%v)", p.Timeout, p.Interval)
	}
	if p.PayloadBytes <= 0 || p.PayloadBytes > MaxPayloadBytes {
		return fmt.Errorf("probe.payload_bytes must be in 1..%d", MaxPayloadBytes)
	}
	if p.TextPayloadBytes <= 0 || p.TextPayloadBytes > MaxTextPayloadBytes {
		return fmt.Errorf("probe.text_payload_bytes must be in 1..%d", MaxTextPayloadBytes)
	}
	if p.BaselineLatency < 0 {
		return fmt.Errorf("probe.baseline_latency must not be negative")
	}
	switch strings.ToLower(p.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("probe.log_level: unknown level %q", p.LogLevel)
	}
	return nil
}
