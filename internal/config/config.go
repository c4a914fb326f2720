// Package config loads and exposes application configuration (TOML).
package config

import (
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Default configuration values used when a field is missing in TOML.
const (
	DefaultConfigPath   = "config.toml"
	DefaultHTTPAddr     = ":8080"
	DefaultJWTExpiresIn = "24h"
	DefaultPGHost       = "127.0.0.1"
	DefaultPGPort       = 5432
	DefaultPGUser       = "postgres"
	DefaultPGDatabase   = "helpgate"
	DefaultPGSSLMode    = "disable"
	DefaultAnswerURL    = "http://127.0.0.1:8001"
)

// Config is the root application configuration loaded from TOML.
type Config struct {
	Log        LogConfig        `toml:"log"`
	Server     ServerConfig     `toml:"server"`
	Admin      AdminConfig      `toml:"admin"`
	Auth       AuthConfig       `toml:"auth"`
	Postgres   PostgresConfig   `toml:"postgres"`
	Answer     AnswerConfig     `toml:"answer"`
	Gateway    GatewayConfig    `toml:"gateway"`
	Escalation EscalationConfig `toml:"escalation"`
	Poller     PollerConfig     `toml:"poller"`
	RateLimit  RateLimitConfig  `toml:"rate_limit"`
	Matrix     MatrixConfig     `toml:"matrix"`
	TradeApp   TradeAppConfig   `toml:"tradeapp"`
}

// LogConfig holds logging level and format (e.g. level=info, format=text).
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// ServerConfig holds the HTTP server listen address.
type ServerConfig struct {
	Addr string `toml:"addr"`
}

// AdminConfig holds the initial admin staff account.
type AdminConfig struct {
	Username string `toml:"username"`
	Password string `toml:"password"`
	Email    string `toml:"email"`
}

// AuthConfig holds JWT secret and token expiry (e.g. 24h).
type AuthConfig struct {
	JWTSecret    string `toml:"jwt_secret"`
	JWTExpiresIn string `toml:"jwt_expires_in"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Database string `toml:"database"`
	SSLMode  string `toml:"sslmode"`
}

// AnswerConfig holds the RAG answer service endpoint.
type AnswerConfig struct {
	BaseURL        string `toml:"base_url"`
	APIKey         string `toml:"api_key"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Timeout returns the answer service timeout, defaulting to 30s.
func (c AnswerConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// GatewayConfig tunes the message pipeline.
type GatewayConfig struct {
	// Confidence band for the router when no learned threshold exists yet.
	AutoSendThreshold float64 `toml:"auto_send_threshold"`
	ReviewThreshold   float64 `toml:"review_threshold"`
}

// EscalationConfig tunes the human review queue.
type EscalationConfig struct {
	SupportHandle   string `toml:"support_handle"`
	ClaimTTLMinutes int    `toml:"claim_ttl_minutes"`
	AutoCloseHours  int    `toml:"auto_close_hours"`
	RetentionDays   int    `toml:"retention_days"`
	MaxDeliveries   int    `toml:"max_deliveries"`
}

// PollerConfig tunes poll-based channel ingestion.
type PollerConfig struct {
	IntervalSeconds int            `toml:"interval_seconds"`
	BackoffSeconds  int            `toml:"backoff_seconds"`
	PerChannel      map[string]int `toml:"per_channel"`
}

// RateLimitConfig bounds per-user inbound traffic.
type RateLimitConfig struct {
	PerMinute int `toml:"per_minute"`
	Burst     int `toml:"burst"`
}

// MatrixConfig holds the Matrix bot connection parameters.
type MatrixConfig struct {
	Enabled       bool   `toml:"enabled"`
	HomeserverURL string `toml:"homeserver_url"`
	UserID        string `toml:"user_id"`
	AccessToken   string `toml:"access_token"`
}

// TradeAppConfig holds the trading-app support API connection parameters.
type TradeAppConfig struct {
	Enabled        bool   `toml:"enabled"`
	BaseURL        string `toml:"base_url"`
	APIKey         string `toml:"api_key"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Load reads and parses the TOML config file at path and applies default values for missing fields.
func Load(path string) (Config, error) {
	cfg := Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Addr: DefaultHTTPAddr,
		},
		Admin: AdminConfig{
			Username: "admin",
			Password: "change-your-password-here",
			Email:    "you@example.com",
		},
		Auth: AuthConfig{
			JWTExpiresIn: DefaultJWTExpiresIn,
		},
		Postgres: PostgresConfig{
			Host:     DefaultPGHost,
			Port:     DefaultPGPort,
			User:     DefaultPGUser,
			Database: DefaultPGDatabase,
			SSLMode:  DefaultPGSSLMode,
		},
		Answer: AnswerConfig{
			BaseURL: DefaultAnswerURL,
		},
		Gateway: GatewayConfig{
			AutoSendThreshold: 0.9,
			ReviewThreshold:   0.5,
		},
		Escalation: EscalationConfig{
			SupportHandle:   "@support",
			ClaimTTLMinutes: 30,
			AutoCloseHours:  72,
			RetentionDays:   90,
			MaxDeliveries:   3,
		},
		Poller: PollerConfig{
			IntervalSeconds: 3,
			BackoffSeconds:  3,
		},
		RateLimit: RateLimitConfig{
			PerMinute: 20,
			Burst:     5,
		},
	}

	if path == "" {
		path = DefaultConfigPath
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}
