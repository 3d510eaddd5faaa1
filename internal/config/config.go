package config

import (
	"fmt"
	"net/url"
	"time"
)

// Config holds service configuration values shared by the gateway and the
// event subscriber.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`

	DatabasePath string `mapstructure:"database_path" yaml:"database_path"`

	// RedisURL takes precedence over the discrete redis_* fields when set.
	// Either way the bus ends up with a redis://[:password@]host:port/db URL,
	// so a password configured separately is never silently dropped.
	RedisURL       string        `mapstructure:"redis_url" yaml:"redis_url"`
	RedisHost      string        `mapstructure:"redis_host" yaml:"redis_host"`
	RedisPort      int           `mapstructure:"redis_port" yaml:"redis_port"`
	RedisPassword  string        `mapstructure:"redis_password" yaml:"redis_password"`
	RedisDB        int           `mapstructure:"redis_db" yaml:"redis_db"`
	RedisKeepAlive time.Duration `mapstructure:"redis_keepalive" yaml:"redis_keepalive"`

	JWTSecret   string `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	JWTIssuer   string `mapstructure:"jwt_issuer" yaml:"jwt_issuer"`
	JWTAudience string `mapstructure:"jwt_audience" yaml:"jwt_audience"`

	LogLevel  string `mapstructure:"log_level" yaml:"log_level"`
	LogFormat string `mapstructure:"log_format" yaml:"log_format"`

	MaxMessageBytes   int64 `mapstructure:"max_message_bytes" yaml:"max_message_bytes"`
	MessagesPerMinute int   `mapstructure:"messages_per_minute" yaml:"messages_per_minute"`

	WorkerConcurrency int `mapstructure:"worker_concurrency" yaml:"worker_concurrency"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":8080",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		DatabasePath:      "sparkle.db",
		RedisHost:         "localhost",
		RedisPort:         6379,
		RedisKeepAlive:    30 * time.Second,
		JWTIssuer:         "sparkle-realtime",
		JWTAudience:       "sparkle",
		LogLevel:          "info",
		LogFormat:         "console",
		MaxMessageBytes:   1 << 20,
		MessagesPerMinute: 120,
		WorkerConcurrency: 10,
	}
}

// ResolveRedisURL returns the broker connection URL. When redis_url is not set
// explicitly, it is composed from the discrete fields, embedding the password
// in the scheme://:password@host:port/db form the client expects.
func (c *Config) ResolveRedisURL() string {
	if c.RedisURL != "" {
		return c.RedisURL
	}
	u := url.URL{
		Scheme: "redis",
		Host:   fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort),
		Path:   fmt.Sprintf("/%d", c.RedisDB),
	}
	if c.RedisPassword != "" {
		u.User = url.UserPassword("", c.RedisPassword)
	}
	return u.String()
}

// UpdateFrom overwrites non-zero values from other config into receiver.
func (c *Config) UpdateFrom(other Config) {
	if other.Addr != "" {
		c.Addr = other.Addr
	}
	if other.ReadHeaderTimeout != 0 {
		c.ReadHeaderTimeout = other.ReadHeaderTimeout
	}
	if other.ShutdownTimeout != 0 {
		c.ShutdownTimeout = other.ShutdownTimeout
	}
	if other.DatabasePath != "" {
		c.DatabasePath = other.DatabasePath
	}
	if other.RedisURL != "" {
		c.RedisURL = other.RedisURL
	}
	if other.JWTSecret != "" {
		c.JWTSecret = other.JWTSecret
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
}
