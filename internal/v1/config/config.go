// Package config loads and validates the process environment once at
// startup into a typed Config, the way the rest of this service's
// collaborators expect to receive it as an explicit value rather than
// reading os.Getenv scattered through the codebase.
package config

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/signalmesh/bootstrap-signaling/internal/v1/apierr"
)

// Config holds the validated environment for the bootstrap + signaling +
// rendezvous service (spec §6).
type Config struct {
	Port                       int
	SignalTokenSHA256          string // empty disables auth
	RateLimitMessagesPerMinute int
	RateLimitConnectionsPerIP  int
	PublicSignalingURL         string
	OTELExporterEndpoint       string // empty disables tracing
	Development                bool
}

const (
	defaultPort               = 8787
	defaultMessagesPerMinute  = 300
	defaultConnectionsPerIP   = 12
	defaultPublicSignalingURL = "wss://example.com/signal"
)

// Load reads and validates the process environment, returning a
// *apierr.Error wrapping apierr.ConfigurationFailure on any problem —
// the only fatal category in this service's error taxonomy.
func Load(getenv func(string) string) (*Config, error) {
	var problems []string
	cfg := &Config{
		Port:                       defaultPort,
		RateLimitMessagesPerMinute: defaultMessagesPerMinute,
		RateLimitConnectionsPerIP:  defaultConnectionsPerIP,
		PublicSignalingURL:         defaultPublicSignalingURL,
	}

	if raw := getenv("PORT"); raw != "" {
		port, err := strconv.Atoi(raw)
		if err != nil || port < 1 || port > 65535 {
			problems = append(problems, fmt.Sprintf("PORT must be a valid port number between 1 and 65535 (got %q)", raw))
		} else {
			cfg.Port = port
		}
	}

	if raw := getenv("SIGNAL_TOKEN_SHA256"); raw != "" {
		if _, err := hex.DecodeString(raw); err != nil || len(raw) != 64 {
			problems = append(problems, fmt.Sprintf("SIGNAL_TOKEN_SHA256 must be a 64-character hex SHA-256 digest (got %d chars)", len(raw)))
		} else {
			cfg.SignalTokenSHA256 = strings.ToLower(raw)
		}
	}

	if raw := getenv("RATE_LIMIT_MESSAGES_PER_MINUTE"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			problems = append(problems, fmt.Sprintf("RATE_LIMIT_MESSAGES_PER_MINUTE must be a positive integer (got %q)", raw))
		} else {
			cfg.RateLimitMessagesPerMinute = n
		}
	}

	if raw := getenv("RATE_LIMIT_CONNECTIONS_PER_IP"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			problems = append(problems, fmt.Sprintf("RATE_LIMIT_CONNECTIONS_PER_IP must be a positive integer (got %q)", raw))
		} else {
			cfg.RateLimitConnectionsPerIP = n
		}
	}

	if raw := getenv("PUBLIC_SIGNALING_URL"); raw != "" {
		cfg.PublicSignalingURL = raw
	}

	cfg.OTELExporterEndpoint = getenv("OTEL_EXPORTER_ENDPOINT")
	cfg.Development = getenv("GO_ENV") == "development"

	if len(problems) > 0 {
		return nil, apierr.Configuration(fmt.Errorf("environment validation failed:\n  - %s", strings.Join(problems, "\n  - ")))
	}

	return cfg, nil
}

// LogFields renders the validated config as zap fields with the token
// digest redacted, for the startup log line.
func (c *Config) LogFields() []zap.Field {
	return []zap.Field{
		zap.Int("port", c.Port),
		zap.Bool("auth_enabled", c.SignalTokenSHA256 != ""),
		zap.String("signal_token_sha256", redactSecret(c.SignalTokenSHA256)),
		zap.Int("rate_limit_messages_per_minute", c.RateLimitMessagesPerMinute),
		zap.Int("rate_limit_connections_per_ip", c.RateLimitConnectionsPerIP),
		zap.String("public_signaling_url", c.PublicSignalingURL),
		zap.Bool("tracing_enabled", c.OTELExporterEndpoint != ""),
	}
}

// redactSecret shows only the first 8 characters of a digest, matching
// the redaction style used for other secrets in this service's logs.
func redactSecret(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 8 {
		return "***"
	}
	return secret[:8] + "***"
}
