package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Config struct {
	AppEnv string
	Port   int

	// STORE_DRIVER selects postgres (default) or the in-process memory store.
	StoreDriver string

	// Postgres (pgxpool DSN)
	DBDSN string

	// JWT verification (must match the identity provider's signing config)
	JWTSecret string
	JWTIssuer string

	// Redis; an empty address disables the discovery cache and redis limiter
	RedisAddr string
	RedisPass string
	RedisDB   int

	DiscoveryCacheTTL time.Duration
	CriteriaCacheTTL  time.Duration

	// Rate limit
	RLEnabled bool
	RLLimit   int
	RLWindow  time.Duration

	// RabbitMQ
	RabbitURL       string
	RabbitExchange  string
	OutboxEnabled   bool
	ConsumerEnabled bool

	CORSAllowedOrigins []string

	// calendar used for time-of-day criteria
	EventTimeZone *time.Location

	LogLevel  string
	LogFormat string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	cfg.AppEnv = getEnv("APP_ENV", "dev")
	cfg.Port = getInt("PORT", 8080)
	cfg.StoreDriver = strings.ToLower(getEnv("STORE_DRIVER", DriverPostgres))

	// prefer DATABASE_URL, else build from POSTGRES_*
	if dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL")); dbURL != "" {
		cfg.DBDSN = dbURL
	} else {
		cfg.DBDSN = buildPostgresURL(
			getEnv("POSTGRES_ADDR", ""),
			getEnv("POSTGRES_USER", ""),
			getEnv("POSTGRES_PASSWORD", ""),
			getEnv("POSTGRES_DB", ""),
			getEnv("POSTGRES_SSLMODE", "disable"),
		)
	}

	cfg.JWTSecret = getEnv("JWT_SECRET", "")
	cfg.JWTIssuer = getEnv("JWT_ISSUER", "")

	cfg.RedisAddr = strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	cfg.RedisPass = getEnv("REDIS_PASSWORD", "")
	cfg.RedisDB = getInt("REDIS_DB", 0)
	cfg.DiscoveryCacheTTL = getDuration("DISCOVERY_CACHE_TTL", 30*time.Second)
	cfg.CriteriaCacheTTL = getDuration("CRITERIA_CACHE_TTL", 10*time.Minute)

	cfg.RLEnabled = getBool("RL_ENABLED", true)
	cfg.RLLimit = getInt("RL_REQUESTS_LIMIT", 100)
	cfg.RLWindow = time.Duration(getInt("RL_WINDOW_SECONDS", 60)) * time.Second

	cfg.RabbitURL = firstNonEmpty(
		strings.TrimSpace(os.Getenv("RABBITMQ_URL")),
		strings.TrimSpace(os.Getenv("RABBIT_URL")),
	)
	cfg.RabbitExchange = firstNonEmpty(
		strings.TrimSpace(os.Getenv("RABBITMQ_EXCHANGE")),
		strings.TrimSpace(os.Getenv("RABBIT_EXCHANGE")),
		"city.events",
	)
	cfg.OutboxEnabled = getBool("OUTBOX_ENABLED", cfg.RabbitURL != "")
	cfg.ConsumerEnabled = getBool("CONSUMER_ENABLED", cfg.RabbitURL != "")

	cfg.CORSAllowedOrigins = splitList(getEnv("CORS_ALLOWED_ORIGINS", "*"))

	tz := getEnv("EVENT_TIME_ZONE", "UTC")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("invalid EVENT_TIME_ZONE %q: %w", tz, err)
	}
	cfg.EventTimeZone = loc

	cfg.LogLevel = getEnv("LOG_LEVEL", "info")
	cfg.LogFormat = getEnv("LOG_FORMAT", "json")

	// fail fast
	switch cfg.StoreDriver {
	case DriverPostgres:
		if cfg.DBDSN == "" {
			return nil, fmt.Errorf("missing database config: provide DATABASE_URL or POSTGRES_ADDR/POSTGRES_USER/POSTGRES_PASSWORD/POSTGRES_DB")
		}
	case DriverMemory:
		if cfg.OutboxEnabled {
			return nil, fmt.Errorf("OUTBOX_ENABLED requires STORE_DRIVER=postgres")
		}
	default:
		return nil, fmt.Errorf("invalid STORE_DRIVER %q (want postgres or memory)", cfg.StoreDriver)
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("missing JWT_SECRET")
	}
	if (cfg.OutboxEnabled || cfg.ConsumerEnabled) && cfg.RabbitURL == "" {
		return nil, fmt.Errorf("missing RABBITMQ_URL (required when OUTBOX_ENABLED or CONSUMER_ENABLED)")
	}
	if cfg.RLEnabled && (cfg.RLLimit <= 0 || cfg.RLWindow <= 0) {
		return nil, fmt.Errorf("RL_REQUESTS_LIMIT and RL_WINDOW_SECONDS must be > 0")
	}

	return cfg, nil
}

// buildPostgresURL builds a URL DSN, escaping special characters.
func buildPostgresURL(addr, user, pass, db, sslmode string) string {
	if strings.TrimSpace(addr) == "" || strings.TrimSpace(user) == "" || strings.TrimSpace(db) == "" {
		return ""
	}

	u := &url.URL{
		Scheme: "postgres",
		Host:   strings.TrimSpace(addr),
		Path:   "/" + strings.TrimPrefix(strings.TrimSpace(db), "/"),
	}
	if pass != "" {
		u.User = url.UserPassword(user, pass)
	} else {
		u.User = url.User(user)
	}

	q := url.Values{}
	if s := strings.TrimSpace(sslmode); s != "" {
		q.Set("sslmode", s)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func getEnv(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func getInt(k string, def int) int {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func getBool(k string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	switch strings.ToLower(v) {
	case "1", "true", "t", "yes", "y", "on":
		return true
	case "0", "false", "f", "no", "n", "off":
		return false
	default:
		panic(fmt.Errorf("invalid boolean env %s=%q", k, v))
	}
}

func getDuration(k string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
