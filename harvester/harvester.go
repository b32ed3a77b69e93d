// Package harvester fetches fresh fares for a profile's origins and
// writes them to the store, respecting a per-origin cooldown so the
// same (origin, party_size) pair is not hammered every dispatch tick.
package harvester

import (
	"context"
	"fmt"
	"time"

	"github.com/lesgoski/dealengine/fareprovider"
	"github.com/lesgoski/dealengine/model"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Store is the subset of store.Store the harvester needs.
type Store interface {
	RecentlyScanned(ctx context.Context, origin string, partySize int, cooldown time.Duration) (bool, error)
	RecordScan(ctx context.Context, origin string, partySize int, at time.Time) error
	UpsertFlights(ctx context.Context, flights []model.Flight) error
}

// Harvester fetches and persists fresh fares for a single origin at a
// time; the orchestrator calls it once per origin in a profile.
type Harvester struct {
	provider       fareprovider.Provider
	store          Store
	log            zerolog.Logger
	cooldown       time.Duration
	lookupHorizon  time.Duration
	maxWorkers     int
}

// New builds a Harvester. maxWorkers bounds how many inbound
// (destination) fetches run concurrently for one outbound sweep.
func New(provider fareprovider.Provider, store Store, log zerolog.Logger, cooldown, lookupHorizon time.Duration, maxWorkers int) *Harvester {
	if maxWorkers <= 0 {
		maxWorkers = 1
	}
	return &Harvester{
		provider:      provider,
		store:         store,
		log:           log.With().Str("component", "harvester").Logger(),
		cooldown:      cooldown,
		lookupHorizon: lookupHorizon,
		maxWorkers:    maxWorkers,
	}
}

// Harvest fetches outbound legs from origin, then fans out one inbound
// fetch per discovered destination to pick up return legs, skipping
// the whole pair if origin was scanned within the cooldown window.
func (h *Harvester) Harvest(ctx context.Context, origin string, partySize int) error {
	skip, err := h.store.RecentlyScanned(ctx, origin, partySize, h.cooldown)
	if err != nil {
		return fmt.Errorf("harvester: cooldown check: %w", err)
	}
	if skip {
		h.log.Debug().Str("origin", origin).Int("party_size", partySize).Msg("skipping, within cooldown")
		return nil
	}

	now := time.Now()
	start, end := now, now.Add(h.lookupHorizon)

	outbound, err := h.provider.Cheapest(ctx, origin, partySize, start, end, "")
	if err != nil {
		return fmt.Errorf("harvester: outbound fetch for %s: %w", origin, err)
	}

	destinations := uniqueDestinations(outbound)

	flights := legsToFlights(outbound, partySize, h.provider.Name(), now)

	inbound := h.fanOutInbound(ctx, destinations, origin, partySize, start, end, now)
	flights = append(flights, inbound...)

	if err := h.store.UpsertFlights(ctx, flights); err != nil {
		return fmt.Errorf("harvester: persist flights: %w", err)
	}

	if err := h.store.RecordScan(ctx, origin, partySize, now); err != nil {
		return fmt.Errorf("harvester: record scan: %w", err)
	}

	h.log.Info().Str("origin", origin).Int("party_size", partySize).
		Int("outbound_legs", len(outbound)).Int("destinations", len(destinations)).
		Msg("harvest complete")
	return nil
}

// fanOutInbound fetches the return leg for every destination found on
// the outbound sweep. Each destination is fetched independently; a
// failure for one destination is logged and skipped rather than
// aborting the whole harvest, since a single upstream hiccup shouldn't
// cost every other destination its inbound fares.
func (h *Harvester) fanOutInbound(ctx context.Context, destinations []string, origin string, partySize int, start, end time.Time, now time.Time) []model.Flight {
	sem := make(chan struct{}, h.maxWorkers)
	g, gctx := errgroup.WithContext(ctx)

	results := make([][]model.Flight, len(destinations))
	for i, dest := range destinations {
		i, dest := i, dest
		g.Go(func() error {
			sem <- struct{}{}
			defer func() { <-sem }()

			legs, err := h.provider.Cheapest(gctx, dest, partySize, start, end, origin)
			if err != nil {
				h.log.Warn().Err(err).Str("destination", dest).Msg("inbound fetch failed, skipping")
				return nil
			}
			results[i] = legsToFlights(legs, partySize, h.provider.Name(), now)
			return nil
		})
	}
	// errgroup here never actually returns an error (failures are
	// logged and absorbed above); the group only provides the wait.
	_ = g.Wait()

	var flights []model.Flight
	for _, r := range results {
		flights = append(flights, r...)
	}
	return flights
}

func uniqueDestinations(legs []fareprovider.Leg) []string {
	seen := make(map[string]bool)
	var out []string
	for _, l := range legs {
		if !seen[l.Destination] {
			seen[l.Destination] = true
			out = append(out, l.Destination)
		}
	}
	return out
}

func legsToFlights(legs []fareprovider.Leg, partySize int, sourceAPI string, updatedAt time.Time) []model.Flight {
	flights := make([]model.Flight, 0, len(legs))
	for _, l := range legs {
		f := model.Flight{
			Origin:              l.Origin,
			Destination:         l.Destination,
			OriginFullName:      l.OriginFullName,
			DestinationFullName: l.DestinationFullName,
			DepartureInstant:    l.DepartureInstant,
			ArrivalInstant:      l.ArrivalInstant,
			FlightNumber:        l.FlightNumber,
			Price:               l.Price,
			Currency:            l.Currency,
			PartySize:           partySize,
			SourceAPI:           sourceAPI,
			UpdatedAt:           updatedAt,
		}
		f.ID = model.FingerprintFlight(f)
		flights = append(flights, f)
	}
	return flights
}
