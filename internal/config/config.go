package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	LogLevel        slog.Level
	HTTPAddr        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration

	TransportBaseURL string
	DeviationsURL    string
	SLAPIKey         string
	AuthorityID      int
	RequestTimeout   time.Duration
	RefreshInterval  time.Duration

	StrictRadiusMeters  float64
	BroadRadiusMeters   float64
	MaxNearbySites      int
	SampleStep          int
	DepartureWindow     time.Duration
	MinStayDuration     time.Duration
	KeepUndeviatedLines bool
	FetchConcurrency    int
	SortByExpected      bool

	GTFSFallbackEnabled bool
	GTFSURL             string

	RedisEnabled     bool
	RedisAddr        string
	RedisPassword    string
	RedisDB          int
	DepartureTTL     time.Duration
	SnapshotInterval time.Duration
	SnapshotTTL      time.Duration

	RateLimitPerWindow int
	RateLimitWindow    time.Duration
}

func Load() (*Config, error) {
	// Pick up a local .env when present; real deployments set the
	// environment directly.
	_ = godotenv.Load()

	strictRadius := getFloatEnv("STRICT_RADIUS_M", 150)
	if strictRadius <= 0 {
		return nil, fmt.Errorf("STRICT_RADIUS_M must be positive")
	}
	broadRadius := getFloatEnv("BROAD_RADIUS_M", 1000)
	if broadRadius <= 0 {
		return nil, fmt.Errorf("BROAD_RADIUS_M must be positive")
	}

	return &Config{
		LogLevel:        getLogLevelEnv("LOG_LEVEL", slog.LevelInfo),
		HTTPAddr:        getEnv("HTTP_ADDR", ":8080"),
		ReadTimeout:     getDurationEnv("READ_TIMEOUT", 10*time.Second),
		WriteTimeout:    getDurationEnv("WRITE_TIMEOUT", 30*time.Second),
		ShutdownTimeout: getDurationEnv("SHUTDOWN_TIMEOUT", 30*time.Second),

		TransportBaseURL: getEnv("SL_TRANSPORT_URL", "https://transport.integration.sl.se"),
		DeviationsURL:    getEnv("SL_DEVIATIONS_URL", "https://deviations.integration.sl.se/v1/messages"),
		SLAPIKey:         os.Getenv("SL_API_KEY"),
		AuthorityID:      getIntEnv("SL_AUTHORITY_ID", 1),
		RequestTimeout:   getDurationEnv("REQUEST_TIMEOUT", 10*time.Second),
		RefreshInterval:  getDurationEnv("REFRESH_INTERVAL", 10*time.Minute),

		StrictRadiusMeters:  strictRadius,
		BroadRadiusMeters:   broadRadius,
		MaxNearbySites:      getIntEnv("MAX_NEARBY_SITES", 3),
		SampleStep:          getIntEnv("SAMPLE_STEP", 15),
		DepartureWindow:     getDurationEnv("DEPARTURE_WINDOW", 60*time.Minute),
		MinStayDuration:     getDurationEnv("MIN_STAY_DURATION", time.Hour),
		KeepUndeviatedLines: getBoolEnv("KEEP_UNDEVIATED_LINES", true),
		FetchConcurrency:    getIntEnv("FETCH_CONCURRENCY", 4),
		SortByExpected:      getBoolEnv("SORT_BY_EXPECTED", false),

		GTFSFallbackEnabled: getBoolEnv("GTFS_FALLBACK_ENABLED", false),
		GTFSURL:             getEnv("GTFS_URL", "https://opendata.samtrafiken.se/gtfs/sl/sl.zip"),

		RedisEnabled:     getBoolEnv("REDIS_ENABLED", false),
		RedisAddr:        getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:    getEnv("REDIS_PASSWORD", ""),
		RedisDB:          getIntEnv("REDIS_DB", 0),
		DepartureTTL:     getDurationEnv("DEPARTURE_CACHE_TTL", 30*time.Second),
		SnapshotInterval: getDurationEnv("SNAPSHOT_INTERVAL", 10*time.Minute),
		SnapshotTTL:      getDurationEnv("SNAPSHOT_TTL", time.Hour),

		RateLimitPerWindow: getIntEnv("RATE_LIMIT_PER_WINDOW", 120),
		RateLimitWindow:    getDurationEnv("RATE_LIMIT_WINDOW", time.Minute),
	}, nil
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getDurationEnv(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}

func getIntEnv(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getFloatEnv(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getBoolEnv(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultVal
}

func getLogLevelEnv(key string, defaultVal slog.Level) slog.Level {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}

	switch strings.ToLower(v) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return defaultVal
	}
}
