// Package config loads the consumer configuration from the environment and an
// optional .env file using Viper.
package config

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sosodev/duration"
	"github.com/spf13/viper"
)

const (
	DriverPostgres = "pgx"
	DriverSQLite   = "sqlite3"
)

type Config struct {
	AppEnv   string
	LogLevel slog.Level

	DBDriver   string
	DBDSN      string
	DBHost     string
	DBPort     int
	DBName     string
	DBUser     string
	DBPassword string
	DBSSLMode  string
	SQLitePath string

	// PollInterval is the pause between the end of one poll cycle and the next.
	PollInterval time.Duration
	// LookbackWindow is the trailing span of readings averaged on each cycle.
	LookbackWindow time.Duration

	// MQTTBroker enables publishing of poll results when non-empty.
	MQTTBroker   string
	MQTTPort     int
	MQTTClientID string
	MQTTTopic    string

	// OTLPEndpoint enables OTLP metric export when non-empty.
	OTLPEndpoint string
	OTLPInsecure bool
}

// MQTTEnabled reports whether poll results should be published to a broker.
func (c Config) MQTTEnabled() bool {
	return c.MQTTBroker != ""
}

// LoadFromEnv reads .env (if present) and the process environment. Environment
// variables override .env values.
func LoadFromEnv() (Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // missing .env is fine
	v.AutomaticEnv()

	appEnv := getString(v, "APP_ENV", "dev")
	switch appEnv {
	case "dev", "prod":
	default:
		return Config{}, fmt.Errorf("invalid APP_ENV %q (allowed: dev, prod)", appEnv)
	}

	level, err := parseLogLevel(getString(v, "LOG_LEVEL", "info"))
	if err != nil {
		return Config{}, err
	}

	driver := getString(v, "DB_DRIVER", DriverPostgres)
	switch driver {
	case DriverPostgres, DriverSQLite:
	default:
		return Config{}, fmt.Errorf("invalid DB_DRIVER %q (allowed: %s, %s)", driver, DriverPostgres, DriverSQLite)
	}

	dbPortStr := getString(v, "DB_PORT", "4343")
	dbPort, err := strconv.Atoi(dbPortStr)
	if err != nil {
		return Config{}, fmt.Errorf("invalid DB_PORT %q: %w", dbPortStr, err)
	}
	if dbPort <= 0 || dbPort > 65535 {
		return Config{}, fmt.Errorf("DB_PORT out of range: %d", dbPort)
	}

	pollIntervalStr := getString(v, "POLL_INTERVAL", "600s")
	pollInterval, err := ParseDuration(pollIntervalStr)
	if err != nil {
		return Config{}, fmt.Errorf("invalid POLL_INTERVAL %q: %w", pollIntervalStr, err)
	}
	if pollInterval <= 0 {
		return Config{}, fmt.Errorf("POLL_INTERVAL must be positive, got %v", pollInterval)
	}

	windowStr := getString(v, "LOOKBACK_WINDOW", "10m")
	window, err := ParseDuration(windowStr)
	if err != nil {
		return Config{}, fmt.Errorf("invalid LOOKBACK_WINDOW %q: %w", windowStr, err)
	}
	if window <= 0 {
		return Config{}, fmt.Errorf("LOOKBACK_WINDOW must be positive, got %v", window)
	}

	mqttPortStr := getString(v, "MQTT_PORT", "1883")
	mqttPort, err := strconv.Atoi(mqttPortStr)
	if err != nil {
		return Config{}, fmt.Errorf("invalid MQTT_PORT %q: %w", mqttPortStr, err)
	}

	mqttClientID := getString(v, "MQTT_CLIENT_ID", "")
	if mqttClientID == "" {
		mqttClientID = "temperature-consumer-" + uuid.NewString()
	}

	otlpInsecureStr := getString(v, "OTEL_EXPORTER_OTLP_INSECURE", "false")
	otlpInsecure, err := strconv.ParseBool(otlpInsecureStr)
	if err != nil {
		return Config{}, fmt.Errorf("invalid OTEL_EXPORTER_OTLP_INSECURE %q: %w", otlpInsecureStr, err)
	}

	return Config{
		AppEnv:         appEnv,
		LogLevel:       level,
		DBDriver:       driver,
		DBDSN:          getString(v, "DB_DSN", ""),
		DBHost:         getString(v, "DB_HOST", "localhost"),
		DBPort:         dbPort,
		DBName:         getString(v, "DB_NAME", "mydb"),
		DBUser:         getString(v, "DB_USER", "postgres"),
		DBPassword:     getString(v, "DB_PASSWORD", "postgrespw"),
		DBSSLMode:      getString(v, "DB_SSLMODE", "disable"),
		SQLitePath:     getString(v, "SQLITE_PATH", "data/readings.db"),
		PollInterval:   pollInterval,
		LookbackWindow: window,
		MQTTBroker:     getString(v, "MQTT_BROKER", ""),
		MQTTPort:       mqttPort,
		MQTTClientID:   mqttClientID,
		MQTTTopic:      getString(v, "MQTT_TOPIC", "temperature/average"),
		OTLPEndpoint:   getString(v, "OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OTLPInsecure:   otlpInsecure,
	}, nil
}

// ParseDuration accepts Go duration syntax ("600s", "10m") as well as
// ISO 8601 durations ("PT10M").
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(strings.ToUpper(s), "P") {
		d, err := duration.Parse(strings.ToUpper(s))
		if err != nil {
			return 0, err
		}
		return d.ToTimeDuration(), nil
	}
	return time.ParseDuration(s)
}

func getString(v *viper.Viper, key, def string) string {
	s := strings.TrimSpace(v.GetString(key))
	if s == "" {
		return def
	}
	return s
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
