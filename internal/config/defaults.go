package config

// DefaultCodeAssistEndpoint is the Code Assist base URL used when no
// override is configured.
const DefaultCodeAssistEndpoint = "https://cloudcode-pa.googleapis.com"

// Defaults returns a Config populated with baseline values. Loaders apply
// file and environment overrides on top of it.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddr: "0.0.0.0:8000",
		},
		Upstream: UpstreamConfig{
			CodeAssist:               DefaultCodeAssistEndpoint,
			DialTimeoutSec:           15,
			TLSHandshakeTimeoutSec:   10,
			ResponseHeaderTimeoutSec: 120,
		},
		Storage: StorageConfig{
			Backend:     "postgres",
			RedisPrefix: "nexus",
		},
		RateLimit: RateLimitConfig{
			RPS:   10,
			Burst: 20,
		},
	}
}
