package bridge

import (
	"fmt"
	"net"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the configuration of the localhost bridge
type Config struct {
	// Addr is the loopback host:port to listen on
	Addr string `yaml:"addr" json:"addr"`

	// MaxConnections caps concurrently accepted connections
	MaxConnections int `yaml:"max_connections" json:"max_connections"`

	// AllowedOrigins lists extra browser origins allowed to call the bridge
	// (e.g., "tauri://localhost"). Loopback origins are always allowed.
	AllowedOrigins []string `yaml:"allowed_origins" json:"allowed_origins"`

	// EventBuffer is the number of events queued per WebSocket client
	// before further events are dropped for it
	EventBuffer int `yaml:"event_buffer" json:"event_buffer"`

	// MaxBodyBytes limits the size of invoke request bodies
	MaxBodyBytes int64 `yaml:"max_body_bytes" json:"max_body_bytes"`

	// ReadHeaderTimeout bounds how long a client may take to send headers
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout" json:"read_header_timeout"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Addr:              "127.0.0.1:7345",
		MaxConnections:    32,
		EventBuffer:       256,
		MaxBodyBytes:      1 << 20,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	host, _, err := net.SplitHostPort(c.Addr)
	if err != nil {
		return fmt.Errorf("invalid addr %q: %w", c.Addr, err)
	}
	if !isLoopbackHost(host) {
		return fmt.Errorf("addr %q is not a loopback address", c.Addr)
	}

	if c.MaxConnections <= 0 {
		return fmt.Errorf("max_connections must be positive")
	}

	if c.EventBuffer <= 0 {
		return fmt.Errorf("event_buffer must be positive")
	}

	if c.MaxBodyBytes <= 0 {
		return fmt.Errorf("max_body_bytes must be positive")
	}

	if c.ReadHeaderTimeout < 0 {
		return fmt.Errorf("read_header_timeout cannot be negative")
	}

	return nil
}

// LoadConfig reads a YAML file on top of the defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

func isLoopbackHost(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
