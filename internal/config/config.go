package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/joho/godotenv"
)

// DefaultEndpoints are the upstream documents collected when ENDPOINTS is unset.
var DefaultEndpoints = []string{
	"https://my.weather.gov.hk/json/DYN_DAT_MINDS_RHRREAD.json",
	"https://my.weather.gov.hk/wxinfo/json/one_json_uc.xml",
}

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Collection.
	Endpoints      []string
	CandidatesFile string
	DiscoveryPages []string
	CollectDays    int
	ProbeStride    int
	QueryParams    []string
	RequestDelay   time.Duration
	Location       *time.Location

	// Fetching.
	FetchTimeout   time.Duration
	FetchCacheSize int

	// Scheduling.
	CollectInterval time.Duration
	RunOnce         bool

	SnapshotPath string

	KafkaEnabled bool
	KafkaBrokers []string
	KafkaTopic   string
}

// LogSettings returns the logger level and format.
func (c *Config) LogSettings() (level, format string) {
	return c.LogLevel, c.LogFormat
}

// Load reads configuration from environment variables, applying defaults where unset.
// A .env file in the working directory is read first when present; variables
// already set in the environment win.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read .env: %w", err)
	}

	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	collectDays, err := parsePositiveInt("COLLECT_DAYS", 90)
	if err != nil {
		return nil, err
	}
	probeStride, err := parsePositiveInt("PROBE_STRIDE", 7)
	if err != nil {
		return nil, err
	}
	cacheSize, err := parsePositiveInt("FETCH_CACHE_SIZE", 1024)
	if err != nil {
		return nil, err
	}

	requestDelay, err := parseDuration("REQUEST_DELAY", "150ms", true)
	if err != nil {
		return nil, err
	}
	fetchTimeout, err := parseDuration("FETCH_TIMEOUT", "12s", false)
	if err != nil {
		return nil, err
	}
	collectInterval, err := parseDuration("COLLECT_INTERVAL", "24h", false)
	if err != nil {
		return nil, err
	}

	runOnce, err := parseBool("RUN_ONCE", false)
	if err != nil {
		return nil, err
	}
	kafkaEnabled, err := parseBool("KAFKA_ENABLED", false)
	if err != nil {
		return nil, err
	}

	loc, err := time.LoadLocation(sharedcfg.EnvOrDefault("TIMEZONE", "Asia/Hong_Kong"))
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE: %w", err)
	}

	endpoints := DefaultEndpoints
	if v, ok := os.LookupEnv("ENDPOINTS"); ok {
		endpoints = splitList(v)
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		Endpoints:      endpoints,
		CandidatesFile: os.Getenv("CANDIDATES_FILE"),
		DiscoveryPages: splitList(os.Getenv("DISCOVERY_PAGES")),
		CollectDays:    collectDays,
		ProbeStride:    probeStride,
		QueryParams:    splitList(sharedcfg.EnvOrDefault("QUERY_PARAMS", "date,d,time")),
		RequestDelay:   requestDelay,
		Location:       loc,

		FetchTimeout:   fetchTimeout,
		FetchCacheSize: cacheSize,

		CollectInterval: collectInterval,
		RunOnce:         runOnce,

		SnapshotPath: sharedcfg.EnvOrDefault("SNAPSHOT_PATH", "data/rain_by_station.csv"),

		KafkaEnabled: kafkaEnabled,
		KafkaBrokers: sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:   sharedcfg.EnvOrDefault("KAFKA_TOPIC", "rainfall-observations"),
	}

	if len(cfg.Endpoints) == 0 && cfg.CandidatesFile == "" && len(cfg.DiscoveryPages) == 0 {
		return nil, errors.New("ENDPOINTS is empty and neither CANDIDATES_FILE nor DISCOVERY_PAGES is set")
	}
	if cfg.SnapshotPath == "" {
		return nil, errors.New("SNAPSHOT_PATH is required")
	}
	if cfg.KafkaEnabled {
		if len(cfg.KafkaBrokers) == 0 {
			return nil, errors.New("KAFKA_BROKERS is required when KAFKA_ENABLED is true")
		}
		if cfg.KafkaTopic == "" {
			return nil, errors.New("KAFKA_TOPIC is required when KAFKA_ENABLED is true")
		}
	}

	return cfg, nil
}

func parsePositiveInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s: must be a positive integer", key)
	}
	return n, nil
}

func parseDuration(key, def string, allowZero bool) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d < 0 || (d == 0 && !allowZero) {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseBool(key string, def bool) (bool, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %q", key, s)
	}
	return b, nil
}

// splitList splits a comma-separated list, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
