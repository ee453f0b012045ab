package config

import (
	"fmt"
	"strings"
)

// Config holds everything the proxy needs at runtime, grouped by domain.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Security  SecurityConfig  `yaml:"security"`
	Upstream  UpstreamConfig  `yaml:"upstream"`
	Storage   StorageConfig   `yaml:"storage"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// ServerConfig controls the client-facing HTTP listener.
type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

// SecurityConfig carries the shared client key and logging toggles.
type SecurityConfig struct {
	// NexusKey is the shared secret clients present. Empty disables auth.
	NexusKey string `yaml:"nexus_key"`
	// NexusKeyHash, when set, is a bcrypt hash checked instead of NexusKey.
	NexusKeyHash string `yaml:"nexus_key_hash"`
	Debug        bool   `yaml:"debug"`
	LogFile      string `yaml:"log_file"`
}

// UpstreamConfig controls the connection to the Code Assist endpoint.
type UpstreamConfig struct {
	// CodeAssist is the upstream base URL.
	CodeAssist string `yaml:"code_assist"`
	ProxyURL   string `yaml:"proxy_url"`

	DialTimeoutSec           int `yaml:"dial_timeout_sec"`
	TLSHandshakeTimeoutSec   int `yaml:"tls_handshake_timeout_sec"`
	ResponseHeaderTimeoutSec int `yaml:"response_header_timeout_sec"`
}

// StorageConfig selects and configures the credential repository.
type StorageConfig struct {
	// Backend is "postgres" (default) or "redis".
	Backend     string `yaml:"backend"`
	DatabaseURL string `yaml:"database_url"`

	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
	RedisPrefix   string `yaml:"redis_prefix"`

	// CredPath is an optional directory of Google credential JSON files
	// imported into the pool on startup and watched for changes.
	CredPath string `yaml:"cred_path"`
}

// RateLimitConfig controls per-key client rate limiting.
type RateLimitConfig struct {
	Enabled bool `yaml:"enabled"`
	RPS     int  `yaml:"rps"`
	Burst   int  `yaml:"burst"`
}

// Validate checks invariants that would otherwise surface as confusing
// runtime failures.
func (c *Config) Validate() error {
	switch strings.ToLower(strings.TrimSpace(c.Storage.Backend)) {
	case "", "postgres":
		if strings.TrimSpace(c.Storage.DatabaseURL) == "" {
			return fmt.Errorf("storage backend %q requires database_url", "postgres")
		}
	case "redis":
		if strings.TrimSpace(c.Storage.RedisAddr) == "" {
			return fmt.Errorf("storage backend %q requires redis_addr", "redis")
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	if c.Server.ListenAddr == "" {
		return fmt.Errorf("server listen_addr must not be empty")
	}
	return nil
}
