package config

import (
	"errors"
	"fmt"
	"time"
)

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`
	DatabasePath      string        `mapstructure:"database_path" yaml:"database_path"`
	EmptyRoomGrace    time.Duration `mapstructure:"empty_room_grace" yaml:"empty_room_grace"`
	AllowedOrigins    []string      `mapstructure:"allowed_origins" yaml:"allowed_origins"`
	MaxMessageBytes   int64         `mapstructure:"max_message_bytes" yaml:"max_message_bytes"`
	// InboundRateLimit caps client messages per minute per connection; 0
	// disables the limit.
	InboundRateLimit int `mapstructure:"inbound_rate_limit" yaml:"inbound_rate_limit"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":8080",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		LogLevel:          "info",
		DatabasePath:      "typeduel.db",
		EmptyRoomGrace:    30 * time.Second,
		AllowedOrigins:    []string{"*"},
		MaxMessageBytes:   64 << 10,
		InboundRateLimit:  600,
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
func (c *Config) UpdateFrom(other Config) {
	if other.Addr != "" {
		c.Addr = other.Addr
	}
	if other.ReadHeaderTimeout != 0 {
		c.ReadHeaderTimeout = other.ReadHeaderTimeout
	}
	if other.ShutdownTimeout != 0 {
		c.ShutdownTimeout = other.ShutdownTimeout
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.DatabasePath != "" {
		c.DatabasePath = other.DatabasePath
	}
	if other.EmptyRoomGrace != 0 {
		c.EmptyRoomGrace = other.EmptyRoomGrace
	}
	if len(other.AllowedOrigins) > 0 {
		c.AllowedOrigins = other.AllowedOrigins
	}
	if other.MaxMessageBytes != 0 {
		c.MaxMessageBytes = other.MaxMessageBytes
	}
	if other.InboundRateLimit != 0 {
		c.InboundRateLimit = other.InboundRateLimit
	}
}

// Validate reports every field that cannot run a server.
func (c Config) Validate() error {
	var errs []error
	if c.Addr == "" {
		errs = append(errs, errors.New("addr is required"))
	}
	if c.DatabasePath == "" {
		errs = append(errs, errors.New("database_path is required"))
	}
	if c.EmptyRoomGrace < 0 {
		errs = append(errs, fmt.Errorf("empty_room_grace must not be negative, got %v", c.EmptyRoomGrace))
	}
	if c.MaxMessageBytes < 0 {
		errs = append(errs, fmt.Errorf("max_message_bytes must not be negative, got %d", c.MaxMessageBytes))
	}
	if c.InboundRateLimit < 0 {
		errs = append(errs, fmt.Errorf("inbound_rate_limit must not be negative, got %d", c.InboundRateLimit))
	}
	return errors.Join(errs...)
}
