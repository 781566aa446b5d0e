// Package config loads process configuration from environment
// variables, following a flat os.Getenv-with-defaults
// pattern rather than a struct-tag binding library.
package config

import (
	"os"
	"strconv"
	"strings"
)

// Config holds every environment-derived setting needed to wire the
// server, its storage backends, and its ambient middleware.
type Config struct {
	Port string

	LogLevel string
	JSONLogs bool

	LogPath       string
	TemplatesPath string
	APIKeysPath   string

	DatabaseURL string

	EnableHealth  bool
	EnableMetrics bool

	CORSOrigins  []string
	TrustedHosts []string

	EnableRateLimiting bool
	RateLimitRPM       int
	RateLimitBurst     int

	MaxRequestSizeMB int64
}

// Load reads Config from the environment, applying the same defaults
// a local development run would need.
func Load() *Config {
	return &Config{
		Port: getenv("PORT", "8080"),

		LogLevel: strings.ToUpper(getenv("LOG_LEVEL", "INFO")),
		JSONLogs: getbool("JSON_LOGS", true),

		LogPath:       getenv("LOG_PATH", "./data/audit.jsonl"),
		TemplatesPath: getenv("TEMPLATES_PATH", "./templates"),
		APIKeysPath:   getenv("API_KEYS_PATH", "./data/keys.yaml"),

		DatabaseURL: os.Getenv("DATABASE_URL"),

		EnableHealth:  getbool("ENABLE_HEALTH", true),
		EnableMetrics: getbool("ENABLE_METRICS", true),

		CORSOrigins:  getlist("CORS_ORIGINS", []string{"*"}),
		TrustedHosts: getlist("TRUSTED_HOSTS", nil),

		EnableRateLimiting: getbool("ENABLE_RATE_LIMITING", true),
		RateLimitRPM:       getint("RATE_LIMIT_RPM", 60),
		RateLimitBurst:     getint("RATE_LIMIT_BURST", 10),

		MaxRequestSizeMB: int64(getint("MAX_REQUEST_SIZE_MB", 5)),
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getbool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getint(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getlist(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
