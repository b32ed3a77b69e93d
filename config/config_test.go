package config_test

import (
	"os"
	"testing"
	"time"

	"github.com/lesgoski/dealengine/config"
	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"ADDR", "ENV", "SCAN_COOLDOWN_MINUTES", "MAX_WORKERS", "NEARBY_AIRPORT_RADIUS_KM"} {
		os.Unsetenv(key)
	}

	cfg := config.Load()
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "development", cfg.Env)
	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, 30*time.Minute, cfg.ScanCooldown)
	assert.Equal(t, 3, cfg.MaxWorkers)
	assert.Equal(t, 100.0, cfg.NearbyAirportRadiusKm)
}

func TestLoadReadsEnvOverrides(t *testing.T) {
	os.Setenv("MAX_WORKERS", "9")
	os.Setenv("ENV", "production")
	defer os.Unsetenv("MAX_WORKERS")
	defer os.Unsetenv("ENV")

	cfg := config.Load()
	assert.Equal(t, 9, cfg.MaxWorkers)
	assert.False(t, cfg.IsDevelopment())
}
