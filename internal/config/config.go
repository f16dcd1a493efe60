package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/aed-placement/internal/domain"
	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/joho/godotenv"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	RegionsPath    string
	FacilitiesPath string
	OutputPath     string

	GridSpacingMeters     float64
	CoverageRadiusMeters  float64
	ExclusionRadiusMeters float64
	TargetCount           int
	Workers               int

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
	ExitAfterRun    bool
	SinkMaxAttempts int

	KafkaBrokers   []string
	KafkaSinkTopic string
	KafkaEnabled   bool

	// SQLitePath enables the run-history sink when set.
	SQLitePath string

	// Mapbox reverse geocoding configuration.
	MapboxToken     string
	MapboxEnabled   bool
	MapboxTimeout   time.Duration
	MapboxCacheSize int

	TracingEnabled     bool
	TracingServiceName string
}

// Load reads configuration from environment variables, applying defaults
// where unset. If ENV_FILE names a dotenv file it is read first; variables
// already in the environment take precedence over the file.
func Load() (*Config, error) {
	if path := os.Getenv("ENV_FILE"); path != "" {
		if err := godotenv.Load(path); err != nil {
			return nil, fmt.Errorf("invalid ENV_FILE: %w", err)
		}
	}

	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	mapboxTimeout, err := time.ParseDuration(sharedcfg.EnvOrDefault("MAPBOX_TIMEOUT", "5s"))
	if err != nil || mapboxTimeout <= 0 {
		return nil, errors.New("invalid MAPBOX_TIMEOUT")
	}

	cfg := &Config{
		RegionsPath:        os.Getenv("REGIONS_PATH"),
		FacilitiesPath:     os.Getenv("FACILITIES_PATH"),
		OutputPath:         sharedcfg.EnvOrDefault("OUTPUT_PATH", "recommendations.csv"),
		HTTPAddr:           sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:           sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:          sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout:    shutdownTimeout,
		KafkaBrokers:       sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSinkTopic:     sharedcfg.EnvOrDefault("KAFKA_SINK_TOPIC", "aed-recommendations"),
		SQLitePath:         os.Getenv("SQLITE_PATH"),
		MapboxToken:        os.Getenv("MAPBOX_TOKEN"),
		MapboxTimeout:      mapboxTimeout,
		TracingServiceName: sharedcfg.EnvOrDefault("TRACING_SERVICE_NAME", "aed-placement"),
	}

	if cfg.GridSpacingMeters, err = parsePositiveFloat("GRID_SPACING_M", 50); err != nil {
		return nil, err
	}
	if cfg.CoverageRadiusMeters, err = parsePositiveFloat("COVERAGE_RADIUS_M", 300); err != nil {
		return nil, err
	}
	if cfg.ExclusionRadiusMeters, err = parsePositiveFloat("EXCLUSION_RADIUS_M", 500); err != nil {
		return nil, err
	}
	if cfg.TargetCount, err = parsePositiveInt("TARGET_COUNT", 20); err != nil {
		return nil, err
	}
	if cfg.Workers, err = parsePositiveInt("WORKERS", runtime.NumCPU()); err != nil {
		return nil, err
	}
	if cfg.SinkMaxAttempts, err = parsePositiveInt("SINK_MAX_ATTEMPTS", 3); err != nil {
		return nil, err
	}
	if cfg.MapboxCacheSize, err = parsePositiveInt("MAPBOX_CACHE_SIZE", 1000); err != nil {
		return nil, err
	}
	if cfg.ExitAfterRun, err = parseBool("EXIT_AFTER_RUN", false); err != nil {
		return nil, err
	}
	if cfg.TracingEnabled, err = parseBool("TRACING_ENABLED", false); err != nil {
		return nil, err
	}
	// Kafka and Mapbox switch on when their connection settings are given.
	if cfg.KafkaEnabled, err = parseBool("KAFKA_ENABLED", os.Getenv("KAFKA_BROKERS") != ""); err != nil {
		return nil, err
	}
	if cfg.MapboxEnabled, err = parseBool("MAPBOX_ENABLED", cfg.MapboxToken != ""); err != nil {
		return nil, err
	}

	if cfg.RegionsPath == "" {
		return nil, errors.New("REGIONS_PATH is required")
	}
	if cfg.FacilitiesPath == "" {
		return nil, errors.New("FACILITIES_PATH is required")
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is empty")
	}
	if cfg.KafkaEnabled && cfg.KafkaSinkTopic == "" {
		return nil, errors.New("KAFKA_SINK_TOPIC is required")
	}
	if cfg.MapboxEnabled && cfg.MapboxToken == "" {
		return nil, errors.New("MAPBOX_ENABLED is true but MAPBOX_TOKEN is not set")
	}

	return cfg, nil
}

// Params returns the engine parameters.
func (c *Config) Params() domain.Params {
	return domain.Params{
		GridSpacingMeters:     c.GridSpacingMeters,
		CoverageRadiusMeters:  c.CoverageRadiusMeters,
		ExclusionRadiusMeters: c.ExclusionRadiusMeters,
		TargetCount:           c.TargetCount,
		Workers:               c.Workers,
	}
}

// OutputJSON reports whether the file sink should write JSON instead of CSV.
func (c *Config) OutputJSON() bool {
	return strings.EqualFold(filepath.Ext(c.OutputPath), ".json")
}

func parsePositiveFloat(key string, fallback float64) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || !(f > 0) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("invalid %s: must be a positive number", key)
	}
	return f, nil
}

func parsePositiveInt(key string, fallback int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid %s: must be a positive integer", key)
	}
	return n, nil
}

func parseBool(key string, fallback bool) (bool, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid %s: must be true or false", key)
	}
	return b, nil
}
