package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// EnvPrefix is prepended to every variable name read by this package.
const EnvPrefix = "ROOMCHAT_"

// Store driver names.
const (
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
	DriverRedis  = "redis"
)

// ServerConfig holds settings for the websocket relay runtime.
type ServerConfig struct {
	ListenAddr      string         `env:"LISTEN_ADDR" envDefault:":3000"`
	StaticDir       string         `env:"STATIC_DIR" envDefault:"public"`
	AllowedOrigins  []string       `env:"ALLOWED_ORIGINS" envSeparator:","`
	ReadTimeout     time.Duration  `env:"READ_TIMEOUT" envDefault:"60s"`
	WriteTimeout    time.Duration  `env:"WRITE_TIMEOUT" envDefault:"10s"`
	MaxMessageBytes int64          `env:"MAX_MESSAGE_BYTES" envDefault:"65536"`
	SendQueueSize   int            `env:"SEND_QUEUE_SIZE" envDefault:"64"`
	HistoryLimit    int            `env:"HISTORY_LIMIT" envDefault:"50"`
	ShutdownTimeout time.Duration  `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`
	LogLevel        string         `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat       string         `env:"LOG_FORMAT" envDefault:"text"`
	MessageStore    string         `env:"MESSAGE_STORE" envDefault:"sqlite"`
	PresenceStore   string         `env:"PRESENCE_STORE" envDefault:"sqlite"`
	Database        DatabaseConfig `envPrefix:"DB_"`
	Redis           RedisConfig    `envPrefix:"REDIS_"`
}

// ClientConfig holds settings for the terminal client.
type ClientConfig struct {
	ServerURL     string `env:"SERVER_URL" envDefault:"ws://localhost:3000/ws"`
	CommandPrefix string `env:"COMMAND_PREFIX" envDefault:"/"`
}

// DatabaseConfig captures storage configuration.
type DatabaseConfig struct {
	Path string `env:"PATH" envDefault:"roomchat.db"`
}

// RedisConfig locates the redis presence backend.
type RedisConfig struct {
	Addr     string `env:"ADDR" envDefault:"localhost:6379"`
	Password string `env:"PASSWORD"`
	DB       int    `env:"DB" envDefault:"0"`
	Prefix   string `env:"PREFIX" envDefault:"roomchat:presence:"`
}

// ParseEnv loads configuration from prefixed environment variables.
func ParseEnv(target any) error {
	if err := env.ParseWithOptions(target, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// LoadServerConfig builds the server configuration from environment variables.
func LoadServerConfig() (ServerConfig, error) {
	var cfg ServerConfig
	if err := ParseEnv(&cfg); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadClientConfig builds the client configuration from environment variables.
func LoadClientConfig() (ClientConfig, error) {
	var cfg ClientConfig
	if err := ParseEnv(&cfg); err != nil {
		return cfg, err
	}
	if strings.TrimSpace(cfg.CommandPrefix) == "" {
		cfg.CommandPrefix = "/"
	}
	return cfg, nil
}

// Validate rejects settings the relay cannot run with.
func (c ServerConfig) Validate() error {
	switch c.MessageStore {
	case DriverSQLite, DriverMemory:
	default:
		return fmt.Errorf("unsupported message store %q", c.MessageStore)
	}
	switch c.PresenceStore {
	case DriverSQLite, DriverMemory, DriverRedis:
	default:
		return fmt.Errorf("unsupported presence store %q", c.PresenceStore)
	}
	if c.HistoryLimit <= 0 {
		return fmt.Errorf("history limit must be positive, got %d", c.HistoryLimit)
	}
	if c.SendQueueSize <= 0 {
		return fmt.Errorf("send queue size must be positive, got %d", c.SendQueueSize)
	}
	if c.ReadTimeout <= 0 || c.WriteTimeout <= 0 {
		return fmt.Errorf("read and write timeouts must be positive")
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Level resolves LogLevel to a slog level.
func (c ServerConfig) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log level %q: %w", c.LogLevel, err)
	}
	return level, nil
}

// PingPeriod is how often the server pings idle connections. It must stay
// below ReadTimeout so a healthy peer's pong arrives before the deadline.
func (c ServerConfig) PingPeriod() time.Duration {
	return c.ReadTimeout * 9 / 10
}
