package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"auftrag.chapter42.de/dispatch/internal/auth"
	"auftrag.chapter42.de/dispatch/internal/data"
	"auftrag.chapter42.de/dispatch/internal/external"
	"auftrag.chapter42.de/dispatch/internal/tmpl"
	"github.com/spf13/viper"
)

const (
	DefaultPort string = "4224"
	ConfigName  string = "dispatch"
	EnvPrefix   string = "DISPATCH"
)

var Config *data.DispatchConfig

// InitConfig lädt die Konfiguration und legt sie global in Config ab.
func InitConfig(paths ...string) ([]string, error) {
	cfg, warnings, err := Load(paths...)
	if err != nil {
		return warnings, err
	}
	Config = cfg
	return warnings, nil
}

// Load liest dispatch.yaml aus den angegebenen Verzeichnissen (Standard: ./config
// und /app/config). Umgebungsvariablen mit Präfix DISPATCH_ haben Vorrang.
// Eine fehlende Datei ist kein Fehler und wird als Warnung zurückgegeben.
func Load(paths ...string) (*data.DispatchConfig, []string, error) {
	var warnings []string

	v := viper.New()
	setDefaults(v)
	v.SetConfigName(ConfigName)
	v.SetConfigType("yaml")
	if len(paths) == 0 {
		paths = []string{"./config", "/app/config"}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, warnings, fmt.Errorf("fehler beim Lesen der Konfigurationsdatei: %w", err)
		}
		warnings = append(warnings, "Konfigurationsdatei nicht gefunden, verwende Standardwerte")
	}

	var cfg data.DispatchConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, warnings, fmt.Errorf("fehler beim Auswerten der Konfiguration: %w", err)
	}

	warnings = append(warnings, normalizeWebhooks(&cfg.Webhooks)...)

	if err := tmpl.PrepareTemplates(&cfg); err != nil {
		return nil, warnings, fmt.Errorf("fehler beim Parsen der Templates: %w", err)
	}

	for i := range cfg.Webhooks.Endpoints {
		ep := &cfg.Webhooks.Endpoints[i]
		provider, err := auth.BuildAuthProvider(ep.Auth)
		if err != nil {
			return nil, warnings, fmt.Errorf("fehler beim Erzeugen des AuthProviders für %s: %w", ep.Name, err)
		}
		ep.AuthProvider = provider
	}

	return &cfg, warnings, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", DefaultPort)
	v.SetDefault("debug", false)

	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 30*time.Minute)
	v.SetDefault("database.auto_migrate", false)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.stats_ttl", time.Minute)

	v.SetDefault("cors.allowed_origins", []string{"*"})

	v.SetDefault("webhooks.workers", 4)
	v.SetDefault("webhooks.queue_size", 100)
	v.SetDefault("webhooks.timeout", 10*time.Second)
	v.SetDefault("webhooks.max_attempts", 1)
	v.SetDefault("webhooks.max_backoff", 30*time.Second)
	v.SetDefault("webhooks.persist_file", "pending_deliveries.json")
	v.SetDefault("webhooks.user_agent", external.DefaultUserAgent)

	v.SetDefault("log.level", "")
	v.SetDefault("log.format", "")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size", 50)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age", 30)
}

// normalizeWebhooks vergibt fehlende Namen, verwirft Endpunkte ohne URL und
// fasst doppelte URLs zusammen.
func normalizeWebhooks(w *data.WebhookConfig) []string {
	var warnings []string

	if w.Workers < 1 {
		w.Workers = 1
	}
	if w.QueueSize < 1 {
		w.QueueSize = 1
	}
	if w.MaxAttempts < 1 {
		w.MaxAttempts = 1
	}

	seen := map[string]bool{}
	endpoints := make([]data.EndpointConfig, 0, len(w.Endpoints))
	for i, ep := range w.Endpoints {
		if ep.Name == "" {
			ep.Name = fmt.Sprintf("endpoint-%d", i+1)
		}
		if ep.URL == "" {
			warnings = append(warnings, fmt.Sprintf("Webhook %s ohne URL wird ignoriert", ep.Name))
			continue
		}
		if seen[ep.URL] {
			warnings = append(warnings, fmt.Sprintf("Webhook %s doppelt, wird ignoriert", ep.Name))
			continue
		}
		seen[ep.URL] = true
		endpoints = append(endpoints, ep)
	}
	w.Endpoints = endpoints

	return warnings
}
