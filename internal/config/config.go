// Package config loads service settings from the environment.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

var ErrMissing = errors.New("required environment variable not set")

// Common holds settings shared by every service.
type Common struct {
	OTLPEndpoint string
	KafkaBrokers []string
	HTTPTimeout  time.Duration
}

type Kiosk struct {
	Common
	HTTPAddr           string
	BackendURL         string
	StatusPollInterval time.Duration
	BridgeOpenTimeout  time.Duration
	AllowedOrigins     []string
}

type Console struct {
	Common
	HTTPAddr          string
	BackendURL        string
	ReconcileInterval time.Duration
	GroupID           string
	Timezone          *time.Location
}

type Backend struct {
	Common
	HTTPAddr           string
	PostgresURL        string
	MaxOpenConns       int
	PaymentRedirectURL string
}

type Migrate struct {
	PostgresURL    string
	MigrationsPath string
}

func loadCommon() Common {
	return Common{
		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		KafkaBrokers: parseList("KAFKA_BROKERS"),
		HTTPTimeout:  parseDuration("HTTP_TIMEOUT", 15*time.Second),
	}
}

func LoadKiosk() (Kiosk, error) {
	backendURL := getEnv("BACKEND_URL", "")
	if backendURL == "" {
		return Kiosk{}, missing("BACKEND_URL")
	}

	return Kiosk{
		Common:             loadCommon(),
		HTTPAddr:           getEnv("KIOSK_HTTP_ADDR", ":8090"),
		BackendURL:         strings.TrimRight(backendURL, "/"),
		StatusPollInterval: parseDuration("ORDER_STATUS_POLL_INTERVAL", 5*time.Second),
		BridgeOpenTimeout:  parseDuration("BRIDGE_OPEN_TIMEOUT", 15*time.Minute),
		AllowedOrigins:     parseList("KIOSK_ALLOWED_ORIGINS"),
	}, nil
}

func LoadConsole() (Console, error) {
	backendURL := getEnv("BACKEND_URL", "")
	if backendURL == "" {
		return Console{}, missing("BACKEND_URL")
	}

	loc := time.Local
	if tz := getEnv("CONSOLE_TIMEZONE", ""); tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			return Console{}, err
		}
		loc = l
	}

	return Console{
		Common:            loadCommon(),
		HTTPAddr:          getEnv("CONSOLE_HTTP_ADDR", ":8091"),
		BackendURL:        strings.TrimRight(backendURL, "/"),
		ReconcileInterval: parseDuration("RECONCILE_INTERVAL", 10*time.Second),
		GroupID:           getEnv("CONSOLE_GROUP_ID", "staff-console"),
		Timezone:          loc,
	}, nil
}

func LoadBackend() (Backend, error) {
	postgresURL := getEnv("POSTGRES_URL", "")
	if postgresURL == "" {
		return Backend{}, missing("POSTGRES_URL")
	}

	return Backend{
		Common:             loadCommon(),
		HTTPAddr:           getEnv("BACKEND_HTTP_ADDR", ":8081"),
		PostgresURL:        postgresURL,
		MaxOpenConns:       parseInt("POSTGRES_MAX_CONNS", 10),
		PaymentRedirectURL: strings.TrimRight(getEnv("PAYMENT_REDIRECT_BASE_URL", ""), "/"),
	}, nil
}

func LoadMigrate() (Migrate, error) {
	postgresURL := getEnv("POSTGRES_URL", "")
	if postgresURL == "" {
		return Migrate{}, missing("POSTGRES_URL")
	}

	return Migrate{
		PostgresURL:    postgresURL,
		MigrationsPath: getEnv("MIGRATIONS_PATH", "file://migrations"),
	}, nil
}

func missing(key string) error {
	return &MissingError{Key: key}
}

type MissingError struct {
	Key string
}

func (e *MissingError) Error() string {
	return e.Key + " environment variable is required"
}

func (e *MissingError) Is(target error) bool {
	return target == ErrMissing
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func parseDuration(key string, def time.Duration) time.Duration {
	raw := getEnv(key, "")
	if raw == "" {
		return def
	}
	if d, err := time.ParseDuration(raw); err == nil && d > 0 {
		return d
	}
	return def
}

func parseInt(key string, def int) int {
	raw := getEnv(key, "")
	if raw == "" {
		return def
	}
	if v, err := strconv.Atoi(raw); err == nil {
		return v
	}
	return def
}

func parseList(key string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
