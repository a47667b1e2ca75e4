package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Sink names accepted by SURVEY_SINK.
const (
	SinkRemote = "remote"
	SinkXLSX   = "xlsx"
)

// Config holds all application configuration.
type Config struct {
	ServerPort string
	GinMode    string
	LogLevel   string
	LogFormat  string

	// DefinitionPath points at a YAML survey definition.
	// Empty means the built-in medical survey.
	DefinitionPath string
	// EndpointURL overrides the endpoint declared by the definition.
	EndpointURL string
	Sink        string
	XLSXPath    string
	// HTTPTimeout of zero leaves the transport default in place.
	HTTPTimeout time.Duration

	RedisURL       string
	FormTTL        time.Duration
	SubmitLockTTL  time.Duration
	FormSecret     string
	FormTokenTTL   time.Duration
	DatabaseURL    string
	MaxDBConns     int32
	SubmitRateRPM  int
	AllowedOrigins []string
}

// Load reads configuration from environment variables with sensible defaults.
// It loads .env file if present but does not fail if missing.
func Load() *Config {
	_ = godotenv.Load()

	formTTL := time.Duration(getEnvInt("FORM_TTL_MINUTES", 120)) * time.Minute

	cfg := &Config{
		ServerPort:     getEnv("SERVER_PORT", "8080"),
		GinMode:        getEnv("GIN_MODE", "debug"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      getEnv("LOG_FORMAT", "pretty"),
		DefinitionPath: getEnv("SURVEY_DEFINITION_PATH", ""),
		EndpointURL:    getEnv("SURVEY_ENDPOINT_URL", ""),
		Sink:           strings.ToLower(getEnv("SURVEY_SINK", SinkRemote)),
		XLSXPath:       getEnv("SURVEY_XLSX_PATH", "./responses.xlsx"),
		HTTPTimeout:    time.Duration(getEnvInt("SURVEY_HTTP_TIMEOUT_SECONDS", 0)) * time.Second,
		RedisURL:       getEnv("REDIS_URL", "redis://localhost:6379/0"),
		FormTTL:        formTTL,
		SubmitLockTTL:  time.Duration(getEnvInt("SUBMIT_LOCK_SECONDS", 60)) * time.Second,
		FormSecret:     getEnv("FORM_TOKEN_SECRET", "change-this-to-a-secure-random-string"),
		FormTokenTTL:   formTTL,
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		MaxDBConns:     int32(getEnvInt("MAX_DB_CONNS", 4)),
		SubmitRateRPM:  getEnvInt("SUBMIT_RATE_LIMIT_PER_MINUTE", 10),
		AllowedOrigins: parseOrigins(getEnv("ALLOWED_ORIGINS", "")),
	}

	// The submit gate must outlast a request that runs into the HTTP timeout.
	if cfg.HTTPTimeout > 0 && cfg.SubmitLockTTL <= cfg.HTTPTimeout {
		cfg.SubmitLockTTL = cfg.HTTPTimeout + submitLockMargin
	}
	return cfg
}

const submitLockMargin = 10 * time.Second

// AuditEnabled reports whether delivery records should be written to PostgreSQL.
func (c *Config) AuditEnabled() bool {
	return c.DatabaseURL != ""
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

// parseOrigins splits a comma-separated origins string into a trimmed slice.
// Returns nil (allow-all) if the input is empty.
func parseOrigins(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}
