package metro_test

import (
	"testing"

	"github.com/lesgoski/dealengine/metro"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func testAirports() []metro.Airport {
	return []metro.Airport{
		{IATA: "BCN", Lat: 41.2974, Lon: 2.0833},
		{IATA: "GRO", Lat: 41.9009, Lon: 2.7606}, // ~88km from BCN
		{IATA: "REU", Lat: 41.1474, Lon: 1.1672}, // ~80km from BCN
		{IATA: "PSA", Lat: 43.6839, Lon: 10.3927},
		{IATA: "FLR", Lat: 43.8100, Lon: 11.2051}, // ~67km from PSA
	}
}

func newIndex() *metro.Index {
	return metro.Load(testAirports(), zerolog.Nop(), nil)
}

func TestNearbyIncludesSelf(t *testing.T) {
	idx := newIndex()
	near := idx.Nearby("BCN", 100)
	assert.Contains(t, near, "BCN")
}

func TestNearbyWithinRadius(t *testing.T) {
	idx := newIndex()
	near := idx.Nearby("BCN", 100)
	assert.Contains(t, near, "GRO")
	assert.Contains(t, near, "REU")
	assert.NotContains(t, near, "PSA")
}

func TestNearbyZeroRadiusIsSingleton(t *testing.T) {
	idx := newIndex()
	near := idx.Nearby("BCN", 0)
	assert.Equal(t, []string{"BCN"}, near)
}

func TestNearbyUnknownAirportIsSingleton(t *testing.T) {
	idx := newIndex()
	near := idx.Nearby("ZZZ", 100)
	assert.Equal(t, []string{"ZZZ"}, near)
}

func TestAreNearbySymmetric(t *testing.T) {
	idx := newIndex()
	assert.True(t, idx.AreNearby("BCN", "GRO", 100))
	assert.True(t, idx.AreNearby("GRO", "BCN", 100))
	assert.False(t, idx.AreNearby("BCN", "PSA", 100))
}

func TestAreNearbySameCode(t *testing.T) {
	idx := newIndex()
	assert.True(t, idx.AreNearby("PSA", "PSA", 0))
}

type fakeMirror struct {
	store map[string][]string
	gets  int
	sets  int
}

func newFakeMirror() *fakeMirror {
	return &fakeMirror{store: make(map[string][]string)}
}

func (m *fakeMirror) key(iata string, radiusKm float64) string {
	return iata
}

func (m *fakeMirror) GetNearby(iata string, radiusKm float64) ([]string, bool) {
	m.gets++
	v, ok := m.store[m.key(iata, radiusKm)]
	return v, ok
}

func (m *fakeMirror) SetNearby(iata string, radiusKm float64, result []string) {
	m.sets++
	m.store[m.key(iata, radiusKm)] = result
}

func TestMirrorIsPopulatedOnMiss(t *testing.T) {
	mirror := newFakeMirror()
	idx := metro.Load(testAirports(), zerolog.Nop(), mirror)

	idx.Nearby("BCN", 100)
	assert.Equal(t, 1, mirror.sets)

	// A second Index instance (simulating a fresh process) should hit
	// the mirror instead of recomputing.
	idx2 := metro.Load(testAirports(), zerolog.Nop(), mirror)
	near := idx2.Nearby("BCN", 100)
	assert.Contains(t, near, "GRO")
	assert.GreaterOrEqual(t, mirror.gets, 1)
}
