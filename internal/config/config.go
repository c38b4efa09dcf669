package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Transport names accepted by BOARDSYNC_TRANSPORT.
const (
	TransportWebSocket = "websocket"
	TransportNATS      = "nats"
	TransportRedis     = "redis"
)

type Config struct {
	APIURL    string // BOARDSYNC_API_URL (default "http://localhost:8000")
	Token     string // BOARDSYNC_TOKEN (bearer credential, optional)
	Actor     string // BOARDSYNC_ACTOR (local user id, used to suppress own echoes)
	Transport string // BOARDSYNC_TRANSPORT (websocket|nats|redis, default websocket)
	NATSURL   string // BOARDSYNC_NATS_URL (default "nats://127.0.0.1:4222")
	RedisAddr string // BOARDSYNC_REDIS_ADDR (default "127.0.0.1:6379")

	// Connection settings
	ReconnectAttempts int           // BOARDSYNC_RECONNECT_ATTEMPTS (default 10)
	ReconnectInterval time.Duration // BOARDSYNC_RECONNECT_INTERVAL (default 2s)
	HeartbeatInterval time.Duration // BOARDSYNC_HEARTBEAT_INTERVAL (default 30s)
	LivenessTimeout   time.Duration // BOARDSYNC_LIVENESS_TIMEOUT (default 0 = disabled)

	// Drag settings
	CommitTimeout time.Duration // BOARDSYNC_COMMIT_TIMEOUT (default 10s)
}

func Load() (*Config, error) {
	c := &Config{
		APIURL:    envOrDefault("BOARDSYNC_API_URL", "http://localhost:8000"),
		Token:     os.Getenv("BOARDSYNC_TOKEN"),
		Actor:     os.Getenv("BOARDSYNC_ACTOR"),
		Transport: envOrDefault("BOARDSYNC_TRANSPORT", TransportWebSocket),
		NATSURL:   envOrDefault("BOARDSYNC_NATS_URL", "nats://127.0.0.1:4222"),
		RedisAddr: envOrDefault("BOARDSYNC_REDIS_ADDR", "127.0.0.1:6379"),
	}

	attempts, err := strconv.Atoi(envOrDefault("BOARDSYNC_RECONNECT_ATTEMPTS", "10"))
	if err != nil {
		return nil, fmt.Errorf("BOARDSYNC_RECONNECT_ATTEMPTS: %w", err)
	}
	if attempts < 0 {
		return nil, fmt.Errorf("BOARDSYNC_RECONNECT_ATTEMPTS: must not be negative")
	}
	c.ReconnectAttempts = attempts

	for _, d := range []struct {
		key      string
		fallback string
		dst      *time.Duration
	}{
		{"BOARDSYNC_RECONNECT_INTERVAL", "2s", &c.ReconnectInterval},
		{"BOARDSYNC_HEARTBEAT_INTERVAL", "30s", &c.HeartbeatInterval},
		{"BOARDSYNC_LIVENESS_TIMEOUT", "0s", &c.LivenessTimeout},
		{"BOARDSYNC_COMMIT_TIMEOUT", "10s", &c.CommitTimeout},
	} {
		v, err := time.ParseDuration(envOrDefault(d.key, d.fallback))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", d.key, err)
		}
		if v < 0 {
			return nil, fmt.Errorf("%s: must not be negative", d.key)
		}
		*d.dst = v
	}
	if c.ReconnectInterval == 0 {
		return nil, fmt.Errorf("BOARDSYNC_RECONNECT_INTERVAL: must be positive")
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks fields that can be changed after Load (by a profile or a
// command-line flag).
func (c *Config) Validate() error {
	switch c.Transport {
	case TransportWebSocket, TransportNATS, TransportRedis:
	default:
		return fmt.Errorf("unknown transport %q (want websocket, nats or redis)", c.Transport)
	}
	if c.APIURL == "" {
		return fmt.Errorf("API URL is required")
	}
	return nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
