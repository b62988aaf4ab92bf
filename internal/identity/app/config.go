package app

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/edumall/edumall/internal/identity/service"
	"github.com/edumall/edumall/pkg/jwtx"
)

type Config struct {
	Issuer               string        // Issuer claim for tokens (default: edumall-identity)
	Audience             []string      // Audience claim, comma separated (default: storefront)
	SigningKeyFile       string        // Optional: PEM Ed25519 key; generated in memory when empty
	DatabaseFile         string        // SQLite database file (default: identity.db)
	RedisURL             string        // Optional: keep OTP challenges in Redis instead of SQLite
	OTPTTL               time.Duration // OTP validity (default: 5m)
	OTPEcho              bool          // Return codes in /otp/send responses (ignored in prod)
	AccessTTL            time.Duration // Access token lifetime (default: 15m)
	RefreshTTL           time.Duration // Refresh token lifetime (default: 30 days)
	Env                  string        // Environment (dev, staging, prod) (default: dev)
	LogLevel             string        // Log level (debug, info, warn, error) (default: info)
	LogFormat            string        // Log format (json, text) (default: json)
	Port                 int           // HTTP server port (default: 8080)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Housekeeping interval (default: 1h)
}

func LoadConfig() Config {
	return Config{
		Issuer:               getEnvOrDefault("IDENTITY_ISSUER", "edumall-identity"),
		Audience:             splitList(getEnvOrDefault("IDENTITY_AUDIENCE", "storefront")),
		SigningKeyFile:       os.Getenv("IDENTITY_SIGNING_KEY_FILE"),
		DatabaseFile:         getEnvOrDefault("IDENTITY_DATABASE_FILE", "identity.db"),
		RedisURL:             os.Getenv("IDENTITY_REDIS_URL"),
		OTPTTL:               getEnvDurationOrDefault("IDENTITY_OTP_TTL", service.DefaultOTPTTL),
		OTPEcho:              getEnvBoolOrDefault("IDENTITY_OTP_ECHO", false),
		AccessTTL:            getEnvDurationOrDefault("IDENTITY_ACCESS_TTL", jwtx.DefaultAccessTokenTTL),
		RefreshTTL:           getEnvDurationOrDefault("IDENTITY_REFRESH_TTL", jwtx.DefaultRefreshTokenTTL),
		Env:                  getEnvOrDefault("ENV", "dev"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                 getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 1*time.Hour),
	}
}

// EchoCodes reports whether OTP codes may be returned to callers.
func (c Config) EchoCodes() bool {
	return c.OTPEcho && c.Env != "prod"
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if b, err := strconv.ParseBool(value); err == nil {
		return b
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Plain integers are minutes
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
