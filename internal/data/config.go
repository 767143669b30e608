package data

import (
	"text/template"
	"time"

	"auftrag.chapter42.de/dispatch/internal/auth"
)

type DispatchConfig struct {
	Port     string         `mapstructure:"port"`
	Debug    bool           `mapstructure:"debug"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Cors     CorsConfig     `mapstructure:"cors"`
	Webhooks WebhookConfig  `mapstructure:"webhooks"`
	Log      LogConfig      `mapstructure:"log"`
}

type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// Leere Addr schaltet den Cache ab.
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	StatsTTL time.Duration `mapstructure:"stats_ttl"`
}

type CorsConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type WebhookConfig struct {
	Workers     int              `mapstructure:"workers"`
	QueueSize   int              `mapstructure:"queue_size"`
	Timeout     time.Duration    `mapstructure:"timeout"`
	MaxAttempts int              `mapstructure:"max_attempts"`
	MaxBackoff  time.Duration    `mapstructure:"max_backoff"`
	PersistFile string           `mapstructure:"persist_file"`
	UserAgent   string           `mapstructure:"user_agent"`
	Endpoints   []EndpointConfig `mapstructure:"endpoints"`
}

type EndpointConfig struct {
	Name   string          `mapstructure:"name"`
	URL    string          `mapstructure:"url"`
	Events []string        `mapstructure:"events"`
	Auth   auth.AuthConfig `mapstructure:"auth"`

	// Caching des vorbereiteten URL-Templates
	ParsedURLTpl *template.Template

	AuthProvider auth.AuthProvider
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	File       string `mapstructure:"file"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
}
