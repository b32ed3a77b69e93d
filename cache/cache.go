// Package cache provides an optional Redis-backed second-level cache
// for the metro-area index. It is never a correctness dependency: any
// Redis error degrades to a cache miss and the index falls back to its
// own computation.
package cache

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lesgoski/dealengine/config"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// nearbyTTL bounds how long a memoized nearby-set survives in Redis;
// the airport table is effectively static, but a generous TTL still
// lets a stale entry self-heal if the table is ever edited.
const nearbyTTL = 24 * time.Hour

// MetroMirror implements metro.Mirror against a Redis client.
type MetroMirror struct {
	rdb *redis.Client
	log zerolog.Logger
}

// New creates a Redis client from cfg.RedisURL. A blank RedisURL is
// not an error: the caller should treat a nil *MetroMirror (pass it as
// a nil metro.Mirror) as "no mirror configured".
func New(cfg *config.Config, log zerolog.Logger) (*MetroMirror, error) {
	if cfg.RedisURL == "" {
		return nil, nil
	}
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("cache: invalid REDIS_URL: %w", err)
	}
	return &MetroMirror{rdb: redis.NewClient(opt), log: log.With().Str("component", "cache").Logger()}, nil
}

// Ping verifies connectivity at startup; failure here is logged and
// does not abort the process, since the mirror is purely an optimization.
func (m *MetroMirror) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return m.rdb.Ping(ctx).Err()
}

// Close releases the underlying connection pool.
func (m *MetroMirror) Close() error {
	return m.rdb.Close()
}

func nearbyKey(iata string, radiusKm float64) string {
	return fmt.Sprintf("metro:nearby:%s:%s", iata, strconv.FormatFloat(radiusKm, 'f', 1, 64))
}

// GetNearby returns a cached nearby-set, or (nil, false) on any miss or
// Redis error — a transient Redis outage degrades silently to "compute
// it locally" rather than failing the matcher.
func (m *MetroMirror) GetNearby(iata string, radiusKm float64) ([]string, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	val, err := m.rdb.Get(ctx, nearbyKey(iata, radiusKm)).Result()
	if err != nil {
		if err != redis.Nil {
			m.log.Debug().Err(err).Str("iata", iata).Msg("cache: nearby lookup failed, falling back")
		}
		return nil, false
	}
	if val == "" {
		return nil, false
	}
	return strings.Split(val, ","), true
}

// SetNearby stores a freshly computed nearby-set. Failures are logged
// and ignored; the index already has the result in its in-process memo.
func (m *MetroMirror) SetNearby(iata string, radiusKm float64, result []string) {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	if err := m.rdb.Set(ctx, nearbyKey(iata, radiusKm), strings.Join(result, ","), nearbyTTL).Err(); err != nil {
		m.log.Debug().Err(err).Str("iata", iata).Msg("cache: nearby store failed")
	}
}
