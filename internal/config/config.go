// Package config loads the pywiz YAML configuration.
package config

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/pywiz/internal/budget"
	"github.com/ppiankov/pywiz/internal/ratelimit"
)

// ServerConfig configures the network endpoints.
type ServerConfig struct {
	HTTPAddr       string   `yaml:"http_addr"`
	GRPCPort       int      `yaml:"grpc_port"` // 0 disables gRPC
	AllowedOrigins []string `yaml:"allowed_origins"`
	MaxBodyBytes   int64    `yaml:"max_body_bytes"`

	// RateLimits caps requests per transport; empty means unlimited.
	RateLimits ratelimit.Config `yaml:"rate_limits,omitempty"`
}

// AuditConfig configures the request log. An empty path disables it.
type AuditConfig struct {
	Path string `yaml:"path"`
}

// Config holds all configurable parameters.
type Config struct {
	Server ServerConfig  `yaml:"server"`
	Limits budget.Limits `yaml:"limits"`
	Audit  AuditConfig   `yaml:"audit"`
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPAddr:       ":8000",
			GRPCPort:       50051,
			AllowedOrigins: []string{"http://localhost:5173"},
			MaxBodyBytes:   1 << 20,
		},
		Limits: budget.Limits{
			MaxSteps:       100000,
			MaxDuration:    5 * time.Second,
			MaxOutputBytes: 1 << 20,
			MaxCallDepth:   1000,
			MaxTraceBytes:  16 << 20,
		},
	}
}

// DefaultPath returns ~/.pywiz/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".pywiz", "config.yaml"), nil
}

// Load loads configuration from a YAML file.
// Empty path falls back to ~/.pywiz/config.yaml.
// Missing file returns defaults. Invalid YAML returns an error.
func Load(path string) (*Config, error) {
	cfg, _, err := LoadWithHash(path)
	return cfg, err
}

// LoadWithHash loads configuration and returns the SHA-256 of the raw YAML
// bytes on disk, so audit entries can name the config a trace ran under.
// When no file exists (defaults used), the hash is the SHA-256 of empty input.
func LoadWithHash(path string) (*Config, string, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return DefaultConfig(), hashBytes(nil), nil
		}
		path = p
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), hashBytes(nil), nil
		}
		return nil, "", fmt.Errorf("failed to read config: %w", err)
	}

	// Start with defaults, YAML overwrites only specified fields
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", fmt.Errorf("invalid config %s: %w", path, err)
	}

	return cfg, hashBytes(data), nil
}

// Validate rejects values no component can run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.GRPCPort < 0 || c.Server.GRPCPort > 65535 {
		errs = append(errs, fmt.Errorf("server.grpc_port %d out of range", c.Server.GRPCPort))
	}
	if c.Server.MaxBodyBytes < 0 {
		errs = append(errs, errors.New("server.max_body_bytes must not be negative"))
	}
	for transport, rl := range c.Server.RateLimits {
		if rl != nil && (rl.MaxRequests < 0 || rl.Window < 0) {
			errs = append(errs, fmt.Errorf("server.rate_limits.%s must not be negative", transport))
		}
	}
	l := c.Limits
	if l.MaxSteps < 0 || l.MaxDuration < 0 || l.MaxOutputBytes < 0 || l.MaxCallDepth < 0 || l.MaxTraceBytes < 0 {
		errs = append(errs, errors.New("limits must not be negative"))
	}
	return errors.Join(errs...)
}

func hashBytes(data []byte) string {
	h := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(h[:])
}
