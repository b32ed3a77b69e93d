package harvester_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/lesgoski/dealengine/fareprovider"
	"github.com/lesgoski/dealengine/harvester"
	"github.com/lesgoski/dealengine/model"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	name       string
	outbound   map[string][]fareprovider.Leg
	inbound    map[string][]fareprovider.Leg
	failInbound map[string]bool

	mu    sync.Mutex
	calls []string
}

func (p *fakeProvider) Name() string { return p.name }

func (p *fakeProvider) Cheapest(ctx context.Context, origin string, partySize int, start, end time.Time, destination string) ([]fareprovider.Leg, error) {
	p.mu.Lock()
	p.calls = append(p.calls, origin+">"+destination)
	p.mu.Unlock()

	if destination == "" {
		return p.outbound[origin], nil
	}
	if p.failInbound[origin] {
		return nil, assertErr
	}
	return p.inbound[origin], nil
}

var assertErr = errDummy{}

type errDummy struct{}

func (errDummy) Error() string { return "upstream failure" }

type fakeStore struct {
	mu         sync.Mutex
	scanned    map[string]time.Time
	upserted   []model.Flight
	cooldownOK bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{scanned: make(map[string]time.Time)}
}

func (s *fakeStore) RecentlyScanned(ctx context.Context, origin string, partySize int, cooldown time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.scanned[origin]
	if !ok {
		return false, nil
	}
	return time.Since(t) < cooldown, nil
}

func (s *fakeStore) RecordScan(ctx context.Context, origin string, partySize int, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scanned[origin] = at
	return nil
}

func (s *fakeStore) UpsertFlights(ctx context.Context, flights []model.Flight) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upserted = append(s.upserted, flights...)
	return nil
}

func TestHarvestFetchesOutboundAndFansOutInbound(t *testing.T) {
	dep := time.Now().Add(24 * time.Hour)
	provider := &fakeProvider{
		name: "test",
		outbound: map[string][]fareprovider.Leg{
			"PSA": {{Origin: "PSA", Destination: "BCN", DepartureInstant: dep, Price: 50, Currency: "EUR"}},
		},
		inbound: map[string][]fareprovider.Leg{
			"BCN": {{Origin: "BCN", Destination: "PSA", DepartureInstant: dep.Add(48 * time.Hour), Price: 60, Currency: "EUR"}},
		},
	}
	st := newFakeStore()
	h := harvester.New(provider, st, zerolog.Nop(), time.Hour, 30*24*time.Hour, 4)

	err := h.Harvest(context.Background(), "PSA", 2)
	require.NoError(t, err)

	require.Len(t, st.upserted, 2)
	assert.Equal(t, 1, len(st.scanned))
}

func TestHarvestSkipsWithinCooldown(t *testing.T) {
	provider := &fakeProvider{name: "test", outbound: map[string][]fareprovider.Leg{}}
	st := newFakeStore()
	st.scanned["PSA"] = time.Now()

	h := harvester.New(provider, st, zerolog.Nop(), time.Hour, 30*24*time.Hour, 4)
	err := h.Harvest(context.Background(), "PSA", 2)
	require.NoError(t, err)
	assert.Empty(t, st.upserted)
	assert.Empty(t, provider.calls)
}

func TestHarvestSkipsFailedInboundDestination(t *testing.T) {
	dep := time.Now().Add(24 * time.Hour)
	provider := &fakeProvider{
		name: "test",
		outbound: map[string][]fareprovider.Leg{
			"PSA": {
				{Origin: "PSA", Destination: "BCN", DepartureInstant: dep, Price: 50, Currency: "EUR"},
				{Origin: "PSA", Destination: "MAD", DepartureInstant: dep, Price: 55, Currency: "EUR"},
			},
		},
		inbound: map[string][]fareprovider.Leg{
			"MAD": {{Origin: "MAD", Destination: "PSA", DepartureInstant: dep.Add(48 * time.Hour), Price: 65, Currency: "EUR"}},
		},
		failInbound: map[string]bool{"BCN": true},
	}
	st := newFakeStore()
	h := harvester.New(provider, st, zerolog.Nop(), time.Hour, 30*24*time.Hour, 4)

	err := h.Harvest(context.Background(), "PSA", 2)
	require.NoError(t, err, "a single failed destination must not fail the whole harvest")

	// 2 outbound + 1 successful inbound (MAD); BCN's inbound failed and was skipped.
	assert.Len(t, st.upserted, 3)
}
