package config

import (
	"crypto/tls"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/redis/go-redis/v9"
)

type AppConfig struct {
	HTTPAddr string `envconfig:"HTTP_ADDR" default:":8080"`

	RedisURL    string `envconfig:"REDIS_URL"`
	DatabaseURL string `envconfig:"DATABASE_URL"`

	RelayURL     string        `envconfig:"RELAY_URL"`
	RelayToken   string        `envconfig:"RELAY_TOKEN"`
	RelayTimeout time.Duration `envconfig:"RELAY_TIMEOUT" default:"5s"`

	DefaultTimeControl string        `envconfig:"DEFAULT_TIME_CONTROL" default:"10+0"`
	ClockInterval      time.Duration `envconfig:"CLOCK_INTERVAL" default:"1s"`
	RoomTTL            time.Duration `envconfig:"ROOM_TTL" default:"24h"`
	ChatHistoryLimit   int           `envconfig:"CHAT_HISTORY_LIMIT" default:"200"`

	MessagesDir    string   `envconfig:"MESSAGES_DIR"`
	AllowedOrigins []string `envconfig:"ALLOWED_ORIGINS"`
}

// Load reads the environment and validates the result.
func Load() (*AppConfig, error) {
	cfg := &AppConfig{}
	if err := envconfig.Process("", cfg); err != nil {
		return nil, err
	}
	cfg.RedisURL = strings.TrimSpace(cfg.RedisURL)
	cfg.DatabaseURL = strings.TrimSpace(cfg.DatabaseURL)
	cfg.RelayURL = strings.TrimSpace(cfg.RelayURL)
	cfg.MessagesDir = strings.TrimSpace(cfg.MessagesDir)

	origins := cfg.AllowedOrigins[:0]
	for _, o := range cfg.AllowedOrigins {
		if s := strings.TrimSpace(o); s != "" {
			origins = append(origins, s)
		}
	}
	cfg.AllowedOrigins = origins

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *AppConfig) Validate() error {
	if c.RedisURL == "" {
		return errors.New("REDIS_URL is required")
	}
	if _, err := ParseRedisURL(c.RedisURL); err != nil {
		return fmt.Errorf("REDIS_URL: %w", err)
	}
	if c.RelayURL != "" {
		u, err := url.Parse(c.RelayURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("RELAY_URL must be an http(s) URL")
		}
	}
	if c.ClockInterval <= 0 {
		return errors.New("CLOCK_INTERVAL must be positive")
	}
	if c.RoomTTL < time.Minute {
		return errors.New("ROOM_TTL must be at least 1m")
	}
	if c.ChatHistoryLimit <= 0 {
		return errors.New("CHAT_HISTORY_LIMIT must be positive")
	}
	return nil
}

// ParseRedisURL accepts redis:// and rediss:// URLs with an optional /<db>.
func ParseRedisURL(raw string) (*redis.Options, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, err
	}
	if u.Scheme != "redis" && u.Scheme != "rediss" {
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	if u.Host == "" {
		return nil, errors.New("missing host")
	}
	db := 0
	if p := strings.TrimPrefix(u.Path, "/"); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid db %q", p)
		}
		db = n
	}
	pass, _ := u.User.Password()
	opts := &redis.Options{Addr: u.Host, Username: u.User.Username(), Password: pass, DB: db}
	if u.Scheme == "rediss" {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12, ServerName: u.Hostname()}
	}
	return opts, nil
}
