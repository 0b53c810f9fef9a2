package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sockrelay/sockrelay/pkg/filewatch"
)

// Default values for the server configuration.
const (
	DefaultHTTPPort           = 8080
	DefaultGRPCPort           = 50051
	DefaultLogLevel           = "info"
	DefaultTextPath           = "/textSocket"
	DefaultBinaryPath         = "/binSocket"
	DefaultTextMaxMessageSize = 64 * 1024
	DefaultSendBuffer         = 64
	DefaultWriteTimeout       = 10 * time.Second
	DefaultPongWait           = 60 * time.Second
)

// Config holds the server-side configuration parsed from the `server:` section
// of config.yaml.
type Config struct {
	Server ServerConfig `yaml:"server"`
}

// ServerConfig holds all server-side settings.
type ServerConfig struct {
	// HTTPPort serves both websocket channels, the REST API and /metrics.
	HTTPPort int `yaml:"http_port"`

	// GRPCPort is the port of the gRPC health service.
	GRPCPort int `yaml:"grpc_port"`

	// LogLevel is one of debug | info | warn | error. Applied live on reload.
	LogLevel string `yaml:"log_level"`

	Channels  ChannelsConfig  `yaml:"channels"`
	Transport TransportConfig `yaml:"transport"`
}

// ChannelsConfig holds the endpoint settings for the two relay channels.
type ChannelsConfig struct {
	Text   TextChannelConfig   `yaml:"text"`
	Binary BinaryChannelConfig `yaml:"binary"`
}

// TextChannelConfig configures the text channel endpoint.
type TextChannelConfig struct {
	Path string `yaml:"path"`

	// MaxMessageSize is the largest inbound text frame, in bytes.
	MaxMessageSize int64 `yaml:"max_message_size"`
}

// BinaryChannelConfig configures the binary channel endpoint.
type BinaryChannelConfig struct {
	Path string `yaml:"path"`
}

// TransportConfig tunes per-connection websocket behaviour.
type TransportConfig struct {
	SendBuffer   int           `yaml:"send_buffer"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	PongWait     time.Duration `yaml:"pong_wait"`
}

// Level returns the slog level for LogLevel. Unknown values map to info;
// validate rejects them before they get here.
func (s ServerConfig) Level() slog.Level {
	switch strings.ToLower(s.LogLevel) {
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

// Load reads and parses the config file at path, returning the server configuration.
// Missing fields are filled with defaults before validation.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("server config: read %q: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("server config: parse yaml: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("server config: %w", err)
	}

	return cfg, nil
}

// Watch reloads path on every change and passes the new Config to onChange.
// A file that fails to load is logged and skipped. Runs until ctx is cancelled.
func Watch(ctx context.Context, path string, onChange func(*Config)) error {
	return filewatch.Watch(ctx, path, Load, onChange)
}

// Default returns a Config pre-populated with default values.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort: DefaultHTTPPort,
			GRPCPort: DefaultGRPCPort,
			LogLevel: DefaultLogLevel,
			Channels: ChannelsConfig{
				Text: TextChannelConfig{
					Path:           DefaultTextPath,
					MaxMessageSize: DefaultTextMaxMessageSize,
				},
				Binary: BinaryChannelConfig{
					Path: DefaultBinaryPath,
				},
			},
			Transport: TransportConfig{
				SendBuffer:   DefaultSendBuffer,
				WriteTimeout: DefaultWriteTimeout,
				PongWait:     DefaultPongWait,
			},
		},
	}
}

// validate checks structural constraints on the parsed configuration.
func validate(cfg *Config) error {
	s := cfg.Server
	if s.HTTPPort <= 0 || s.HTTPPort > 65535 {
		return fmt.Errorf("server.http_port %d is out of range [1, 65535]", s.HTTPPort)
	}
	if s.GRPCPort <= 0 || s.GRPCPort > 65535 {
		return fmt.Errorf("server.grpc_port %d is out of range [1, 65535]", s.GRPCPort)
	}
	if s.HTTPPort == s.GRPCPort {
		return fmt.Errorf("server.http_port and server.grpc_port must differ (both %d)", s.HTTPPort)
	}
	switch strings.ToLower(s.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("server.log_level %q unknown: want debug|info|warn|error", s.LogLevel)
	}

	text, bin := s.Channels.Text.Path, s.Channels.Binary.Path
	if !strings.HasPrefix(text, "/") {
		return fmt.Errorf("server.channels.text.path %q must start with /", text)
	}
	if !strings.HasPrefix(bin, "/") {
		return fmt.Errorf("server.channels.binary.path %q must start with /", bin)
	}
	if text == bin {
		return fmt.Errorf("server.channels: text and binary share path %q", text)
	}
	if strings.HasPrefix(text, "/api/") || strings.HasPrefix(bin, "/api/") || text == "/metrics" || bin == "/metrics" {
		return fmt.Errorf("server.channels: paths must not overlap /api/ or /metrics")
	}
	if s.Channels.Text.MaxMessageSize <= 0 {
		return fmt.Errorf("server.channels.text.max_message_size must be positive")
	}

	if s.Transport.SendBuffer <= 0 {
		return fmt.Errorf("server.transport.send_buffer must be positive")
	}
	if s.Transport.WriteTimeout <= 0 {
		return fmt.Errorf("server.transport.write_timeout must be positive")
	}
	if s.Transport.PongWait <= 0 {
		return fmt.Errorf("server.transport.pong_wait must be positive")
	}
	return nil
}
