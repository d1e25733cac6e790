// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes server timeouts,
// logging, database and Redis connectivity, the translation pipeline, auth,
// rate limiting and observability.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "chat")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// DBConfig selects the SQL backend.
type DBConfig struct {
	Driver string // DB_DRIVER: sqlite|postgres
	DSN    string // DB_DSN (postgres); sqlite uses DB_PATH when empty
}

// QueueConfig controls the translation job queue and its consumers.
type QueueConfig struct {
	Backend       string // QUEUE_BACKEND: memory|redis
	Prefix        string // QUEUE_PREFIX for redis keys
	BufferSize    int    // QUEUE_BUFFER (memory backend)
	Concurrency   int    // WORKER_CONCURRENCY
	WorkerEnabled bool   // WORKER_ENABLED: run consumers inside the API process
}

// AuthConfig configures bearer token verification.
type AuthConfig struct {
	JWTSecret string // AUTH_JWT_SECRET (HS256)
	Issuer    string // AUTH_ISSUER, optional
	Disabled  bool   // AUTH_DISABLED: trust X-User-ID (dev/tests only)
}

// ModelConfig configures the translation model endpoint.
type ModelConfig struct {
	BaseURL    string        // OPENAI_BASE_URL
	APIKey     string        // OPENAI_API_KEY
	Name       string        // MODEL_NAME
	Timeout    time.Duration // MODEL_TIMEOUT per call
	MaxRetries int           // MODEL_MAX_RETRIES
	RPS        float64       // MODEL_RPS, 0 disables limiting
}

// TranslationConfig holds fan-out and cache policy.
type TranslationConfig struct {
	SameLanguagePolicy string        // SAME_LANGUAGE_POLICY: skip|translate
	CacheTTL           time.Duration // CACHE_TTL for the redis hot tier
	ContextMessages    int           // TRANSLATION_CONTEXT_MESSAGES
	MaxMessageRunes    int           // MAX_MESSAGE_RUNES
}

// MeteringConfig points at the external usage metering endpoint.
type MeteringConfig struct {
	URL    string // METERING_URL, empty disables tracking
	APIKey string // METERING_API_KEY
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	SwaggerEnabled bool   // enable Swagger UI route
	APIBasePath    string // base path for API routes

	// Storage
	DBPath   string // SQLite path
	DB       DBConfig
	RedisURL string // REDIS_URL, e.g. redis://localhost:6379/0

	// Pipeline
	Queue       QueueConfig
	Model       ModelConfig
	Translation TranslationConfig
	Metering    MeteringConfig

	// Auth / realtime
	Auth        AuthConfig
	PresenceTTL time.Duration // PRESENCE_TTL

	// Rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Idempotency
	IdempotencyTTL time.Duration // how long a given Idempotency-Key is valid

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging / Docs
		LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:      getbool("LOG_PRETTY", false),
		SwaggerEnabled: getbool("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),

		// Storage
		DBPath: getenv("DB_PATH", "app.db"),
		DB: DBConfig{
			Driver: strings.ToLower(getenv("DB_DRIVER", "sqlite")),
			DSN:    getenv("DB_DSN", ""),
		},
		RedisURL: getenv("REDIS_URL", ""),

		// Pipeline
		Queue: QueueConfig{
			Backend:       strings.ToLower(getenv("QUEUE_BACKEND", "memory")),
			Prefix:        getenv("QUEUE_PREFIX", "chat:translate"),
			BufferSize:    getint("QUEUE_BUFFER", 1024),
			Concurrency:   getint("WORKER_CONCURRENCY", 4),
			WorkerEnabled: getbool("WORKER_ENABLED", true),
		},
		Model: ModelConfig{
			BaseURL:    getenv("OPENAI_BASE_URL", ""),
			APIKey:     getenv("OPENAI_API_KEY", ""),
			Name:       getenv("MODEL_NAME", "gpt-4o-mini"),
			Timeout:    getdur("MODEL_TIMEOUT", 30*time.Second),
			MaxRetries: getint("MODEL_MAX_RETRIES", 2),
			RPS:        getfloat("MODEL_RPS", 0),
		},
		Translation: TranslationConfig{
			SameLanguagePolicy: strings.ToLower(getenv("SAME_LANGUAGE_POLICY", "skip")),
			CacheTTL:           getdur("CACHE_TTL", 24*time.Hour),
			ContextMessages:    getint("TRANSLATION_CONTEXT_MESSAGES", 3),
			MaxMessageRunes:    getint("MAX_MESSAGE_RUNES", 4000),
		},
		Metering: MeteringConfig{
			URL:    getenv("METERING_URL", ""),
			APIKey: getenv("METERING_API_KEY", ""),
		},

		// Auth / realtime
		Auth: AuthConfig{
			JWTSecret: getenv("AUTH_JWT_SECRET", ""),
			Issuer:    getenv("AUTH_ISSUER", ""),
			Disabled:  getbool("AUTH_DISABLED", false),
		},
		PresenceTTL: getdur("PRESENCE_TTL", 30*time.Second),

		// Rate limiting
		RateRPS:   getfloat("RATE_RPS", 5.0),
		RateBurst: getint("RATE_BURST", 10),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		// Idempotency
		IdempotencyTTL: getdur("IDEMPOTENCY_TTL", 24*time.Hour),

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "chat"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}
	if cfg.DB.Driver == "postgresql" {
		cfg.DB.Driver = "postgres"
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		return cfg, errors.New("DB_PATH must not be empty")
	}
	switch cfg.DB.Driver {
	case "sqlite":
	case "postgres":
		if strings.TrimSpace(cfg.DB.DSN) == "" {
			return cfg, errors.New("DB_DSN is required when DB_DRIVER=postgres")
		}
	default:
		return cfg, errors.New("DB_DRIVER must be one of: sqlite, postgres")
	}
	switch cfg.Queue.Backend {
	case "memory":
	case "redis":
		if strings.TrimSpace(cfg.RedisURL) == "" {
			return cfg, errors.New("REDIS_URL is required when QUEUE_BACKEND=redis")
		}
	default:
		return cfg, errors.New("QUEUE_BACKEND must be one of: memory, redis")
	}
	if cfg.Queue.Concurrency < 1 {
		return cfg, errors.New("WORKER_CONCURRENCY must be >= 1")
	}
	if cfg.Queue.BufferSize < 1 {
		return cfg, errors.New("QUEUE_BUFFER must be >= 1")
	}
	if cfg.Model.Timeout <= 0 {
		return cfg, errors.New("MODEL_TIMEOUT must be > 0")
	}
	if cfg.Model.MaxRetries < 0 {
		return cfg, errors.New("MODEL_MAX_RETRIES must be >= 0")
	}
	if cfg.Model.RPS < 0 {
		return cfg, errors.New("MODEL_RPS must be >= 0")
	}
	switch cfg.Translation.SameLanguagePolicy {
	case "skip", "translate":
	default:
		return cfg, errors.New("SAME_LANGUAGE_POLICY must be one of: skip, translate")
	}
	if cfg.Translation.CacheTTL < 0 {
		return cfg, errors.New("CACHE_TTL must be >= 0")
	}
	if cfg.Translation.ContextMessages < 0 {
		return cfg, errors.New("TRANSLATION_CONTEXT_MESSAGES must be >= 0")
	}
	if cfg.Translation.MaxMessageRunes < 1 {
		return cfg, errors.New("MAX_MESSAGE_RUNES must be >= 1")
	}
	if !cfg.Auth.Disabled && strings.TrimSpace(cfg.Auth.JWTSecret) == "" {
		return cfg, errors.New("AUTH_JWT_SECRET is required unless AUTH_DISABLED=true")
	}
	if cfg.PresenceTTL <= 0 {
		return cfg, errors.New("PRESENCE_TTL must be > 0")
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.IdempotencyTTL <= 0 {
		return cfg, errors.New("IDEMPOTENCY_TTL must be > 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}
	return cfg, nil
}

// ---- helpers (no external deps) ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}
