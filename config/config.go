// Package config loads the deal engine's configuration from the
// environment (and an optional .env file), and computes the derived
// durations/values the rest of the process consumes.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every configuration value recognized by the deal engine.
type Config struct {
	// Server
	Addr            string
	Env             string
	GracefulTimeout time.Duration

	// Storage
	DatabaseURL string

	// Metro-area index
	AirportTablePath string

	// Cache (optional; degrades gracefully if unset/unreachable)
	RedisURL string

	// Upstream fare provider
	FareProviderURL string
	FareProviderRPS float64
	FareProviderName string

	// Push notification channel
	PushHost string
	PushRPS  float64

	// Harvester
	ScanCooldown      time.Duration
	LookupHorizon     time.Duration
	MaxHarvestWorkers int

	// Matcher
	HourTolerance         int
	NearbyAirportRadiusKm float64

	// Orchestration
	UpdateInterval time.Duration
	MaxWorkers     int

	// Pruning
	FlightStalenessHours int

	// Digest
	DigestHourLocal int

	// Logging
	LogLevel string
}

// Load reads configuration from environment variables and an optional
// .env file, falling back to the documented defaults for anything unset.
func Load() *Config {
	_ = godotenv.Load()

	gracefulSec := getEnvInt("GRACEFUL_TIMEOUT_SEC", 15)

	return &Config{
		Addr:            getEnv("ADDR", ":8080"),
		Env:             getEnv("ENV", "development"),
		GracefulTimeout: time.Duration(gracefulSec) * time.Second,

		DatabaseURL: getEnv("DATABASE_URL", "./data/dealengine.db"),

		AirportTablePath: getEnv("AIRPORT_TABLE_PATH", "./data/airports.csv"),

		RedisURL: getEnv("REDIS_URL", ""),

		FareProviderURL:  getEnv("FARE_PROVIDER_URL", "http://localhost:9000"),
		FareProviderRPS:  getEnvFloat("FARE_PROVIDER_RPS", 2.0),
		FareProviderName: getEnv("FARE_PROVIDER_NAME", "default"),

		PushHost: getEnv("PUSH_HOST", "https://ntfy.sh"),
		PushRPS:  getEnvFloat("PUSH_RPS", 5.0),

		ScanCooldown:      time.Duration(getEnvInt("SCAN_COOLDOWN_MINUTES", 30)) * time.Minute,
		LookupHorizon:     time.Duration(getEnvInt("LOOKUP_HORIZON_DAYS", 120)) * 24 * time.Hour,
		MaxHarvestWorkers: getEnvInt("MAX_HARVEST_WORKERS", 5),

		HourTolerance:         getEnvInt("HOUR_TOLERANCE", 1),
		NearbyAirportRadiusKm: getEnvFloat("NEARBY_AIRPORT_RADIUS_KM", 100),

		UpdateInterval: time.Duration(getEnvInt("UPDATE_INTERVAL_MINUTES", 180)) * time.Minute,
		MaxWorkers:     getEnvInt("MAX_WORKERS", 3),

		FlightStalenessHours: getEnvInt("FLIGHT_STALENESS_HOURS", 24),

		DigestHourLocal: getEnvInt("DIGEST_HOUR_LOCAL", 7),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}
