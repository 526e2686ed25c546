package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	AppEnv   string
	LogLevel slog.Level
	HTTPAddr string

	// WoTKitURL is the API base, e.g. http://wotkit.sensetecnic.com/api/v1.
	WoTKitURL     string
	WoTKitTimeout time.Duration
	ReadingsLimit int

	Driver          string
	DSN             string
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	LogSQL          bool

	// MQTTBroker empty disables view broadcasting.
	MQTTBroker      string
	MQTTPort        int
	MQTTClientID    string
	MQTTTopicPrefix string
}

func LoadFromEnv() (Config, error) {
	appEnv := envString("APP_ENV", "dev")
	switch appEnv {
	case "dev", "prod":
	default:
		return Config{}, fmt.Errorf("invalid APP_ENV %q (allowed: dev, prod)", appEnv)
	}

	level, err := parseLogLevel(envString("LOG_LEVEL", "info"))
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		AppEnv:          appEnv,
		LogLevel:        level,
		HTTPAddr:        envString("HTTP_ADDR", ":8080"),
		WoTKitURL:       strings.TrimRight(envString("WOTKIT_URL", "http://wotkit.sensetecnic.com/api/v1"), "/"),
		Driver:          envString("DB_DRIVER", "sqlite3"),
		DSN:             envString("DB_DSN", ""),
		Path:            envString("SQLITE_PATH", "../dev/sqlite/app.db"),
		MQTTBroker:      envString("MQTT_BROKER", ""),
		MQTTClientID:    envString("MQTT_CLIENT_ID", "wotkit-dashboard"),
		MQTTTopicPrefix: strings.Trim(envString("MQTT_TOPIC_PREFIX", "wotkit-dashboard"), "/"),
	}

	if u, err := url.Parse(cfg.WoTKitURL); err != nil || u.Scheme == "" || u.Host == "" {
		return Config{}, fmt.Errorf("invalid WOTKIT_URL %q (expected absolute http(s) URL)", cfg.WoTKitURL)
	}
	if cfg.WoTKitTimeout, err = envDuration("WOTKIT_TIMEOUT", "10s"); err != nil {
		return Config{}, err
	}
	if cfg.WoTKitTimeout <= 0 {
		return Config{}, fmt.Errorf("invalid WOTKIT_TIMEOUT %s: must be > 0", cfg.WoTKitTimeout)
	}
	if cfg.ReadingsLimit, err = envInt("READINGS_LIMIT", "10"); err != nil {
		return Config{}, err
	}
	if cfg.ReadingsLimit <= 0 {
		return Config{}, fmt.Errorf("invalid READINGS_LIMIT %d: must be > 0", cfg.ReadingsLimit)
	}
	if cfg.MaxOpenConns, err = envInt("DB_MAX_OPEN_CONNS", "1"); err != nil {
		return Config{}, err
	}
	if cfg.MaxIdleConns, err = envInt("DB_MAX_IDLE_CONNS", "1"); err != nil {
		return Config{}, err
	}
	if cfg.ConnMaxLifetime, err = envDuration("DB_CONN_MAX_LIFETIME", "0s"); err != nil {
		return Config{}, err
	}
	if cfg.LogSQL, err = envBool("LOG_SQL", "false"); err != nil {
		return Config{}, err
	}
	if cfg.MQTTPort, err = envInt("MQTT_PORT", "1883"); err != nil {
		return Config{}, err
	}
	if cfg.MQTTPort <= 0 || cfg.MQTTPort > 65535 {
		return Config{}, fmt.Errorf("invalid MQTT_PORT %d", cfg.MQTTPort)
	}

	return cfg, nil
}

// MQTTEnabled reports whether a broker is configured.
func (c Config) MQTTEnabled() bool { return c.MQTTBroker != "" }

func envString(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envInt(key, def string) (int, error) {
	s := envString(key, def)
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	return n, nil
}

func envDuration(key, def string) (time.Duration, error) {
	s := envString(key, def)
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	return d, nil
}

func envBool(key, def string) (bool, error) {
	s := envString(key, def)
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	return b, nil
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q (allowed: debug, info, warn, error)", s)
	}
}
