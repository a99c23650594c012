// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes application settings
// such as server timeouts, logging, storage paths, classification, rate
// limiting, and observability.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/tbourn/go-attendance-backend/internal/sysutil"
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
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "go-attendance-backend")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// ClassifierConfig selects and tunes the message classifier.
//
// Mode "keyword" uses plain substring matching against the configured start
// and end word lists. Mode "remote" asks an OpenAI-compatible chat endpoint
// and degrades to "unclassified" when the call fails.
type ClassifierConfig struct {
	Mode        string        // CLASSIFIER_MODE: keyword|remote
	Concurrency int           // CLASSIFIER_CONCURRENCY: parallel remote calls
	Timeout     time.Duration // CLASSIFIER_TIMEOUT: per-call budget

	APIKey  string // OPENAI_API_KEY
	BaseURL string // OPENAI_BASE_URL (empty = api.openai.com)
	Model   string // OPENAI_MODEL
}

// UploadConfig configures delivery of finished workbooks to the chat server.
// An empty URL disables uploading.
type UploadConfig struct {
	URL   string // UPLOAD_URL
	Token string // UPLOAD_TOKEN (defaults to WEBHOOK_TOKEN)
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

	// Logging
	LogLevel  string // debug|info|warn|error|fatal|panic
	LogPretty bool   // pretty console logs in dev

	// App
	DataDir   string // partition directory
	ReportDir string // workbook output directory
	DBPath    string // SQLite run ledger path
	Timezone  string // IANA zone used to bucket messages (e.g. Asia/Tokyo)

	// Webhook
	WebhookToken string // shared secret; empty disables auth

	// Classification
	ClockInWords  []string // CLOCK_IN_KEYWORDS, CSV
	ClockOutWords []string // CLOCK_OUT_KEYWORDS, CSV
	PrivilegedTag string   // tag that forces clock-in regardless of body
	Classifier    ClassifierConfig

	// Upload
	Upload UploadConfig

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

		// Logging
		LogLevel:  strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty: getbool("LOG_PRETTY", false),

		// App
		DataDir:   getenv("DATA_DIR", "data"),
		ReportDir: getenv("REPORT_DIR", "reports"),
		DBPath:    getenv("DB_PATH", "ledger.db"),
		Timezone:  getenv("TIMEZONE", "Asia/Tokyo"),

		// Webhook
		WebhookToken: getenv("WEBHOOK_TOKEN", ""),

		// Classification
		ClockInWords:  splitCSV(getenv("CLOCK_IN_KEYWORDS", "開始")),
		ClockOutWords: splitCSV(getenv("CLOCK_OUT_KEYWORDS", "終了")),
		PrivilegedTag: getenv("PRIVILEGED_TAG", ""),
		Classifier: ClassifierConfig{
			Mode:        strings.ToLower(getenv("CLASSIFIER_MODE", "keyword")),
			Concurrency: getint("CLASSIFIER_CONCURRENCY", 4),
			Timeout:     getdur("CLASSIFIER_TIMEOUT", 15*time.Second),
			APIKey:      getenv("OPENAI_API_KEY", ""),
			BaseURL:     getenv("OPENAI_BASE_URL", ""),
			Model:       getenv("OPENAI_MODEL", ""),
		},

		// Upload
		Upload: UploadConfig{
			URL:   getenv("UPLOAD_URL", ""),
			Token: getenv("UPLOAD_TOKEN", ""),
		},

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
			ServiceName: getenv("OTEL_SERVICE_NAME", "go-attendance-backend"),
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
	cfg.Upload.Token = sysutil.FirstNonEmpty(cfg.Upload.Token, cfg.WebhookToken)

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
	if strings.TrimSpace(cfg.DataDir) == "" {
		return cfg, errors.New("DATA_DIR must not be empty")
	}
	if strings.TrimSpace(cfg.ReportDir) == "" {
		return cfg, errors.New("REPORT_DIR must not be empty")
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		return cfg, errors.New("DB_PATH must not be empty")
	}
	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		return cfg, errors.New("TIMEZONE must be a valid IANA zone name")
	}
	switch cfg.Classifier.Mode {
	case "keyword", "remote":
	default:
		return cfg, errors.New("CLASSIFIER_MODE must be keyword or remote")
	}
	if cfg.Classifier.Mode == "remote" && cfg.Classifier.APIKey == "" {
		return cfg, errors.New("OPENAI_API_KEY is required when CLASSIFIER_MODE=remote")
	}
	if cfg.Classifier.Concurrency < 1 {
		return cfg, errors.New("CLASSIFIER_CONCURRENCY must be >= 1")
	}
	if cfg.Classifier.Timeout <= 0 {
		return cfg, errors.New("CLASSIFIER_TIMEOUT must be > 0")
	}
	if len(cfg.ClockInWords) == 0 || len(cfg.ClockOutWords) == 0 {
		return cfg, errors.New("CLOCK_IN_KEYWORDS and CLOCK_OUT_KEYWORDS must not be empty")
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

// Location resolves the configured timezone. Load already validated the name,
// so failures here only happen when the zone database changed underfoot; UTC
// is a safe fallback.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
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
