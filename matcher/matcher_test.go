package matcher_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/lesgoski/dealengine/matcher"
	"github.com/lesgoski/dealengine/metro"
	"github.com/lesgoski/dealengine/model"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	mu         sync.Mutex
	byOrigin   map[string][]model.Flight
	deals      map[string]model.Deal // keyed by (out,in) pair
	pruneCalls int
}

func newFakeStore() *fakeStore {
	return &fakeStore{byOrigin: make(map[string][]model.Flight), deals: make(map[string]model.Deal)}
}

func (s *fakeStore) addFlight(f model.Flight) {
	s.byOrigin[f.Origin] = append(s.byOrigin[f.Origin], f)
}

func (s *fakeStore) FlightsFrom(ctx context.Context, origin string, partySize int) ([]model.Flight, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Flight
	for _, f := range s.byOrigin[origin] {
		if f.PartySize == partySize {
			out = append(out, f)
		}
	}
	return out, nil
}

func (s *fakeStore) UpsertDeal(ctx context.Context, d model.Deal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := model.DealPairKey(d.OutboundFlightID, d.InboundFlightID)
	s.deals[key] = d
	return nil
}

func (s *fakeStore) PruneStaleDeals(ctx context.Context, profileID string, currentPairs map[string]bool) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneCalls++
	var deleted int64
	for k, d := range s.deals {
		if d.ProfileID != profileID {
			continue
		}
		if !currentPairs[k] {
			delete(s.deals, k)
			deleted++
		}
	}
	return deleted, nil
}

func newIDSeq() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("deal-%d", n)
	}
}

func weekendStrategy() model.Strategy {
	return model.Strategy{
		OutDays:   map[int]model.HourWindow{5: {Lo: 16, Hi: 24}}, // Friday
		InDays:    map[int]model.HourWindow{0: {Lo: 14, Hi: 22}}, // Sunday
		MinNights: 2,
		MaxNights: 3,
	}
}

func fridayAt(hour int) time.Time {
	// 2025-09-05 is a Friday.
	return time.Date(2025, 9, 5, hour, 0, 0, 0, time.UTC)
}

func sundayAt(hour int) time.Time {
	// 2025-09-07 is the Sunday two days later.
	return time.Date(2025, 9, 7, hour, 0, 0, 0, time.UTC)
}

func TestMatchExactPair(t *testing.T) {
	st := newFakeStore()
	out := model.Flight{ID: "out1", Origin: "PSA", Destination: "BCN", DepartureInstant: fridayAt(18), ArrivalInstant: fridayAt(20), Price: 50, PartySize: 1}
	in := model.Flight{ID: "in1", Origin: "BCN", Destination: "PSA", DepartureInstant: sundayAt(16), ArrivalInstant: sundayAt(18), Price: 50, PartySize: 1}
	st.addFlight(out)
	st.addFlight(in)

	idx := metro.Load(nil, zerolog.Nop(), nil)
	m := matcher.New(st, idx, zerolog.Nop(), 0, 1, newIDSeq())

	p := model.Profile{ID: "p1", Origins: []string{"PSA"}, PartySize: 1, MaxPricePP: 100, Strategy: weekendStrategy()}
	count, err := m.Match(context.Background(), p, nil, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Len(t, st.deals, 1)
}

func TestMatchMetroAreaPairRequiresRadius(t *testing.T) {
	airports := []metro.Airport{
		{IATA: "BCN", Lat: 41.2974, Lon: 2.0833},
		{IATA: "GRO", Lat: 41.9009, Lon: 2.7606},
		{IATA: "PSA", Lat: 43.6839, Lon: 10.3927},
	}

	out := model.Flight{ID: "out1", Origin: "PSA", Destination: "GRO", DepartureInstant: fridayAt(18), ArrivalInstant: fridayAt(20), Price: 25, PartySize: 1}
	in := model.Flight{ID: "in1", Origin: "BCN", Destination: "PSA", DepartureInstant: sundayAt(16), ArrivalInstant: sundayAt(18), Price: 25, PartySize: 1}

	run := func(radius float64) int {
		st := newFakeStore()
		st.addFlight(out)
		st.addFlight(in)
		idx := metro.Load(airports, zerolog.Nop(), nil)
		m := matcher.New(st, idx, zerolog.Nop(), radius, 1, newIDSeq())
		p := model.Profile{ID: "p1", Origins: []string{"PSA"}, PartySize: 1, MaxPricePP: 100, Strategy: weekendStrategy()}
		count, err := m.Match(context.Background(), p, nil, time.Now())
		require.NoError(t, err)
		return count
	}

	assert.Equal(t, 0, run(0), "radius 0 disables pass 2")
	assert.Equal(t, 1, run(100), "within metro radius should match")
}

func TestMatchRejectsBudgetOverrun(t *testing.T) {
	st := newFakeStore()
	out := model.Flight{ID: "out1", Origin: "PSA", Destination: "BCN", DepartureInstant: fridayAt(18), ArrivalInstant: fridayAt(20), Price: 100, PartySize: 1}
	in := model.Flight{ID: "in1", Origin: "BCN", Destination: "PSA", DepartureInstant: sundayAt(16), ArrivalInstant: sundayAt(18), Price: 60, PartySize: 1}
	st.addFlight(out)
	st.addFlight(in)

	idx := metro.Load(nil, zerolog.Nop(), nil)
	m := matcher.New(st, idx, zerolog.Nop(), 0, 1, newIDSeq())

	// sum = 160 > 100 * 1.25
	p := model.Profile{ID: "p1", Origins: []string{"PSA"}, PartySize: 1, MaxPricePP: 100, Strategy: weekendStrategy()}
	count, err := m.Match(context.Background(), p, nil, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestMatchExcludedDestination(t *testing.T) {
	st := newFakeStore()
	out := model.Flight{ID: "out1", Origin: "PSA", Destination: "BCN", DepartureInstant: fridayAt(18), ArrivalInstant: fridayAt(20), Price: 50, PartySize: 1}
	in := model.Flight{ID: "in1", Origin: "BCN", Destination: "PSA", DepartureInstant: sundayAt(16), ArrivalInstant: sundayAt(18), Price: 50, PartySize: 1}
	st.addFlight(out)
	st.addFlight(in)

	idx := metro.Load(nil, zerolog.Nop(), nil)
	m := matcher.New(st, idx, zerolog.Nop(), 0, 1, newIDSeq())

	p := model.Profile{ID: "p1", Origins: []string{"PSA"}, PartySize: 1, MaxPricePP: 100, Strategy: weekendStrategy()}
	count, err := m.Match(context.Background(), p, []string{"BCN"}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestMatchPrunesStaleDeal(t *testing.T) {
	st := newFakeStore()
	out := model.Flight{ID: "out1", Origin: "PSA", Destination: "BCN", DepartureInstant: fridayAt(18), ArrivalInstant: fridayAt(20), Price: 50, PartySize: 1}
	in := model.Flight{ID: "in1", Origin: "BCN", Destination: "PSA", DepartureInstant: sundayAt(16), ArrivalInstant: sundayAt(18), Price: 50, PartySize: 1}
	st.addFlight(out)
	st.addFlight(in)

	idx := metro.Load(nil, zerolog.Nop(), nil)
	m := matcher.New(st, idx, zerolog.Nop(), 0, 1, newIDSeq())
	p := model.Profile{ID: "p1", Origins: []string{"PSA"}, PartySize: 1, MaxPricePP: 100, Strategy: weekendStrategy()}

	count, err := m.Match(context.Background(), p, nil, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// Remove the inbound leg entirely and re-run: the deal should be pruned.
	st.byOrigin["BCN"] = nil
	count, err = m.Match(context.Background(), p, nil, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 0, count)
	assert.Empty(t, st.deals)
}

func TestMatchEmptyStrategyDaysNeverMatches(t *testing.T) {
	st := newFakeStore()
	out := model.Flight{ID: "out1", Origin: "PSA", Destination: "BCN", DepartureInstant: fridayAt(18), ArrivalInstant: fridayAt(20), Price: 50, PartySize: 1}
	in := model.Flight{ID: "in1", Origin: "BCN", Destination: "PSA", DepartureInstant: sundayAt(16), ArrivalInstant: sundayAt(18), Price: 50, PartySize: 1}
	st.addFlight(out)
	st.addFlight(in)

	idx := metro.Load(nil, zerolog.Nop(), nil)
	m := matcher.New(st, idx, zerolog.Nop(), 0, 1, newIDSeq())

	p := model.Profile{ID: "p1", Origins: []string{"PSA"}, PartySize: 1, MaxPricePP: 100, Strategy: model.Strategy{MinNights: 0, MaxNights: 10}}
	count, err := m.Match(context.Background(), p, nil, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}
