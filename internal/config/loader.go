package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Load builds the effective configuration: defaults, then the optional YAML
// file at path (missing files are tolerated), then environment overrides.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config file %s: %w", path, err)
			}
		case os.IsNotExist(err):
			log.Debugf("config file %s not found, using defaults", path)
		default:
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overlays environment variables onto cfg. Env always wins over
// file values so deployments can keep secrets out of config files.
func applyEnv(cfg *Config) {
	setString(&cfg.Server.ListenAddr, "LISTEN_ADDR")

	setString(&cfg.Security.NexusKey, "NEXUS_KEY")
	setString(&cfg.Security.NexusKeyHash, "NEXUS_KEY_HASH")
	setBool(&cfg.Security.Debug, "DEBUG")
	setString(&cfg.Security.LogFile, "LOG_FILE")

	setString(&cfg.Upstream.CodeAssist, "CODE_ASSIST_ENDPOINT")
	setString(&cfg.Upstream.ProxyURL, "PROXY_URL")
	setInt(&cfg.Upstream.DialTimeoutSec, "DIAL_TIMEOUT_SEC")
	setInt(&cfg.Upstream.TLSHandshakeTimeoutSec, "TLS_HANDSHAKE_TIMEOUT_SEC")
	setInt(&cfg.Upstream.ResponseHeaderTimeoutSec, "RESPONSE_HEADER_TIMEOUT_SEC")

	setString(&cfg.Storage.Backend, "STORAGE_BACKEND")
	setString(&cfg.Storage.DatabaseURL, "DATABASE_URL")
	setString(&cfg.Storage.RedisAddr, "REDIS_ADDR")
	setString(&cfg.Storage.RedisPassword, "REDIS_PASSWORD")
	setInt(&cfg.Storage.RedisDB, "REDIS_DB")
	setString(&cfg.Storage.RedisPrefix, "REDIS_PREFIX")
	setString(&cfg.Storage.CredPath, "CRED_PATH")

	setBool(&cfg.RateLimit.Enabled, "RATE_LIMIT_ENABLED")
	setInt(&cfg.RateLimit.RPS, "RATE_LIMIT_RPS")
	setInt(&cfg.RateLimit.Burst, "RATE_LIMIT_BURST")
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		*dst = strings.TrimSpace(v)
	}
}

func setInt(dst *int, key string) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		log.Warnf("ignoring %s=%q: not an integer", key, v)
		return
	}
	*dst = n
}

func setBool(dst *bool, key string) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		*dst = true
	case "0", "false", "no", "off":
		*dst = false
	default:
		log.Warnf("ignoring %s=%q: not a boolean", key, v)
	}
}
