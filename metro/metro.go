// Package metro answers "how close is airport X to airport Y" using
// great-circle distance, so the matcher can treat nearby airports
// (e.g. BCN and GRO) as interchangeable for a round trip.
package metro

import (
	"math"
	"sync"

	"github.com/rs/zerolog"
)

// earthRadiusKm is the sphere radius used for the haversine formula.
const earthRadiusKm = 6371.0

// Airport is the subset of airport metadata the index needs. Loading
// the full airport table from its source of record stays an external
// concern; this package only consumes coordinates.
type Airport struct {
	IATA string
	Lat  float64
	Lon  float64
}

// Mirror is an optional second-level cache for nearby-set lookups, so
// a freshly restarted process can warm its memo table without
// recomputing every pair. Nil-safe: a nil Mirror is simply not used.
type Mirror interface {
	GetNearby(iata string, radiusKm float64) ([]string, bool)
	SetNearby(iata string, radiusKm float64, result []string)
}

// Index is a read-only, concurrency-safe nearness index over a fixed
// set of airports. Build it once at startup with Load; the airport
// table never changes afterward and the nearby-set memo is a sync.Map,
// so it is safe to share across every orchestration goroutine without
// further locking.
type Index struct {
	airports map[string]Airport
	log      zerolog.Logger
	mirror   Mirror

	memo sync.Map // cacheKey -> []string
}

type cacheKey struct {
	iata   string
	radius float64
}

// Load builds an Index from a fixed airport table. The table is
// assumed small enough (a few thousand rows) that nearby() can scan it
// linearly; that scan only happens once per (iata, radius) pair
// because results are memoized.
func Load(airports []Airport, log zerolog.Logger, mirror Mirror) *Index {
	m := make(map[string]Airport, len(airports))
	for _, a := range airports {
		m[a.IATA] = a
	}
	return &Index{airports: m, log: log.With().Str("component", "metro").Logger(), mirror: mirror}
}

// Nearby returns the set of IATA codes within radiusKm of iata,
// inclusive of iata itself. An unknown code or a non-positive radius
// degrades to the singleton {iata} rather than failing the caller.
func (idx *Index) Nearby(iata string, radiusKm float64) []string {
	if radiusKm <= 0 {
		return []string{iata}
	}

	origin, ok := idx.airports[iata]
	if !ok {
		idx.log.Warn().Str("iata", iata).Msg("metro: unknown airport, treating as isolated")
		return []string{iata}
	}

	key := cacheKey{iata: iata, radius: radiusKm}
	if cached, ok := idx.memo.Load(key); ok {
		return cached.([]string)
	}
	if idx.mirror != nil {
		if cached, ok := idx.mirror.GetNearby(iata, radiusKm); ok {
			idx.memo.Store(key, cached)
			return cached
		}
	}

	var result []string
	for code, a := range idx.airports {
		if haversineKm(origin, a) <= radiusKm {
			result = append(result, code)
		}
	}
	// Nearby(x) always contains x, even if x were somehow absent from
	// its own distance-0 comparison due to floating point noise.
	if !contains(result, iata) {
		result = append(result, iata)
	}

	idx.memo.Store(key, result)
	if idx.mirror != nil {
		idx.mirror.SetNearby(iata, radiusKm, result)
	}
	return result
}

// AreNearby reports whether b is within radiusKm of a. It is symmetric
// by construction: both directions reduce to the same haversine call.
func (idx *Index) AreNearby(a, b string, radiusKm float64) bool {
	if a == b {
		return true
	}
	for _, code := range idx.Nearby(a, radiusKm) {
		if code == b {
			return true
		}
	}
	return false
}

func haversineKm(a, b Airport) float64 {
	dLat := degToRad(b.Lat - a.Lat)
	dLon := degToRad(b.Lon - a.Lon)

	sinLat := math.Sin(dLat / 2)
	sinLon := math.Sin(dLon / 2)

	h := sinLat*sinLat + math.Cos(degToRad(a.Lat))*math.Cos(degToRad(b.Lat))*sinLon*sinLon
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(h))
}

func degToRad(deg float64) float64 {
	return deg * (math.Pi / 180.0)
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
