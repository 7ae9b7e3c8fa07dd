package config

import (
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/Mindburn-Labs/conformance/pkg/explainer"
	"github.com/Mindburn-Labs/conformance/pkg/observability"
)

// Config holds runtime configuration.
type Config struct {
	LogLevel  string
	LogFormat string

	MaxLength       int
	MinimalSolution bool
	CheckMultiple   bool
	MaxEditDistance int
	MaxCandidates   int

	DBDriver string
	DBDSN    string

	OTelEnabled  bool
	OTelEndpoint string
}

// Load loads configuration from environment variables. Malformed numbers
// fall back to their defaults.
func Load() *Config {
	logLevel := os.Getenv("CONFORM_LOG_LEVEL")
	if logLevel == "" {
		logLevel = "INFO"
	}

	logFormat := os.Getenv("CONFORM_LOG_FORMAT")
	if logFormat == "" {
		logFormat = "text"
	}

	driver := os.Getenv("CONFORM_DB_DRIVER")
	if driver == "" {
		driver = "sqlite"
	}

	dsn := os.Getenv("CONFORM_DB_DSN")
	if dsn == "" {
		// Default to a local SQLite file
		dsn = "file:conform.db"
	}

	endpoint := os.Getenv("CONFORM_OTEL_ENDPOINT")
	if endpoint == "" {
		endpoint = "localhost:4317"
	}

	return &Config{
		LogLevel:        logLevel,
		LogFormat:       logFormat,
		MaxLength:       envInt("CONFORM_MAX_LENGTH", explainer.DefaultMaxLength),
		MinimalSolution: os.Getenv("CONFORM_MINIMAL_SOLUTION") == "true",
		CheckMultiple:   os.Getenv("CONFORM_CHECK_MULTIPLE") == "true",
		MaxEditDistance: envInt("CONFORM_MAX_EDIT_DISTANCE", 0),
		MaxCandidates:   envInt("CONFORM_MAX_CANDIDATES", explainer.DefaultMaxCandidates),
		DBDriver:        driver,
		DBDSN:           dsn,
		OTelEnabled:     os.Getenv("CONFORM_OTEL_ENABLED") == "true",
		OTelEndpoint:    endpoint,
	}
}

func envInt(key string, def int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil || v < 0 {
		return def
	}
	return v
}

// Explainer returns the search configuration.
func (c *Config) Explainer() explainer.Config {
	return explainer.Config{
		MinimalSolution: c.MinimalSolution,
		MaxLength:       c.MaxLength,
		CheckMultiple:   c.CheckMultiple,
		MaxEditDistance: c.MaxEditDistance,
		MaxCandidates:   c.MaxCandidates,
	}
}

// Observability returns the telemetry configuration.
func (c *Config) Observability() *observability.Config {
	oc := observability.DefaultConfig()
	oc.Enabled = c.OTelEnabled
	oc.OTLPEndpoint = c.OTelEndpoint
	return oc
}

// Level parses LogLevel, defaulting to INFO.
func (c *Config) Level() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToUpper(c.LogLevel))); err != nil {
		return slog.LevelInfo
	}
	return l
}

// NewLogger builds a slog logger writing to w in the configured format.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.Level()}
	if strings.EqualFold(c.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
