// Package matcher reconstructs round trips from one-way legs in the
// store, filters them against a profile's strategy and budget, and
// reconciles the resulting deals.
package matcher

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/lesgoski/dealengine/metro"
	"github.com/lesgoski/dealengine/model"
	"github.com/rs/zerolog"
)

// Store is the subset of store.Store the matcher needs.
type Store interface {
	FlightsFrom(ctx context.Context, origin string, partySize int) ([]model.Flight, error)
	UpsertDeal(ctx context.Context, d model.Deal) error
	PruneStaleDeals(ctx context.Context, profileID string, currentIDs map[string]bool) (int64, error)
}

// IDGen produces a new unique deal ID; defaults to uuid.NewString in
// production and is overridden by tests for deterministic output.
type IDGen func() string

// Matcher reconstructs and reconciles deals for one profile at a time.
type Matcher struct {
	store         Store
	metro         *metro.Index
	log           zerolog.Logger
	radiusKm      float64
	hourTolerance int
	newID         IDGen
}

// New builds a Matcher. radiusKm and hourTolerance are the
// configuration constants R and τ from the matching algorithm.
func New(store Store, idx *metro.Index, log zerolog.Logger, radiusKm float64, hourTolerance int, newID IDGen) *Matcher {
	return &Matcher{
		store:         store,
		metro:         idx,
		log:           log.With().Str("component", "matcher").Logger(),
		radiusKm:      radiusKm,
		hourTolerance: hourTolerance,
		newID:         newID,
	}
}

// excludedDestinations lets the caller pass the owning user's
// exclusion list without the matcher needing its own User lookup.
func (m *Matcher) Match(ctx context.Context, profile model.Profile, excludedDestinations []string, now time.Time) (int, error) {
	if err := profile.Strategy.Validate(); err != nil {
		return 0, fmt.Errorf("matcher: invalid strategy for profile %s: %w", profile.ID, err)
	}

	excluded := toSet(excludedDestinations)
	allowed := toSet(profile.AllowedDestinations)

	outbound, err := m.loadOutboundCandidates(ctx, profile)
	if err != nil {
		return 0, err
	}

	seen := make(map[string]bool)    // (Out.id,In.id) dedup across passes
	matched := make(map[string]bool) // (outbound,inbound) pair keys produced this run
	count := 0

	for _, out := range outbound {
		if len(allowed) > 0 && !allowed[out.Destination] {
			continue
		}
		if excluded[out.Destination] {
			continue
		}

		pairs, err := m.pairsForOutbound(ctx, profile, out, seen)
		if err != nil {
			return count, err
		}

		for _, in := range pairs {
			if !validMatch(out, in, profile.Strategy, m.hourTolerance) {
				continue
			}
			totalPP := roundMoney((out.Price + in.Price) / float64(profile.PartySize))
			if err := m.upsert(ctx, profile.ID, out.ID, in.ID, totalPP, now); err != nil {
				return count, err
			}
			matched[model.DealPairKey(out.ID, in.ID)] = true
			count++
		}
	}

	pruned, err := m.store.PruneStaleDeals(ctx, profile.ID, matched)
	if err != nil {
		return count, fmt.Errorf("matcher: prune stale deals: %w", err)
	}
	if pruned > 0 {
		m.log.Info().Str("profile_id", profile.ID).Int64("pruned", pruned).Msg("pruned stale deals")
	}
	return count, nil
}

func (m *Matcher) loadOutboundCandidates(ctx context.Context, profile model.Profile) ([]model.Flight, error) {
	budget := profile.MaxPricePP * float64(profile.PartySize) * 1.25

	var candidates []model.Flight
	for _, origin := range profile.Origins {
		legs, err := m.store.FlightsFrom(ctx, origin, profile.PartySize)
		if err != nil {
			return nil, fmt.Errorf("matcher: load outbound from %s: %w", origin, err)
		}
		for _, l := range legs {
			if l.Price <= budget {
				candidates = append(candidates, l)
			}
		}
	}
	return candidates, nil
}

// pairsForOutbound runs both passes against a single outbound leg,
// returning inbound legs that survive the coarse budget and pass-2
// dedup, in the order Pass 1 then Pass 2.
func (m *Matcher) pairsForOutbound(ctx context.Context, profile model.Profile, out model.Flight, seen map[string]bool) ([]model.Flight, error) {
	budget := profile.MaxPricePP * float64(profile.PartySize) * 1.25
	originSet := toSet(profile.Origins)

	var results []model.Flight

	// Pass 1: exact pairing.
	exact, err := m.store.FlightsFrom(ctx, out.Destination, profile.PartySize)
	if err != nil {
		return nil, fmt.Errorf("matcher: load inbound from %s: %w", out.Destination, err)
	}
	for _, in := range exact {
		if !originSet[in.Destination] {
			continue
		}
		if !coarsePairValid(out, in, budget) {
			continue
		}
		key := out.ID + "|" + in.ID
		seen[key] = true
		results = append(results, in)
	}

	if m.radiusKm <= 0 {
		return results, nil
	}

	// Pass 2: metro-area pairing, excluding anything Pass 1 already produced.
	nearOrigins := make(map[string]bool)
	if profile.AllowNearbyOrigins {
		for _, o := range profile.Origins {
			for _, code := range m.metro.Nearby(o, m.radiusKm) {
				nearOrigins[code] = true
			}
		}
	} else {
		nearOrigins = originSet
	}

	for _, code := range m.metro.Nearby(out.Destination, m.radiusKm) {
		legs, err := m.store.FlightsFrom(ctx, code, profile.PartySize)
		if err != nil {
			return nil, fmt.Errorf("matcher: load metro inbound from %s: %w", code, err)
		}
		for _, in := range legs {
			if !nearOrigins[in.Destination] {
				continue
			}
			key := out.ID + "|" + in.ID
			if seen[key] {
				continue
			}
			if !coarsePairValid(out, in, budget) {
				continue
			}
			seen[key] = true
			results = append(results, in)
		}
	}

	return results, nil
}

func coarsePairValid(out, in model.Flight, budget float64) bool {
	if !in.DepartureInstant.After(out.ArrivalInstant) {
		return false
	}
	return out.Price+in.Price <= budget
}

// validMatch implements spec.md's acceptance predicate: nights range
// plus weekday+tolerance-window checks on both legs.
func validMatch(out, in model.Flight, strategy model.Strategy, tolerance int) bool {
	nights := daysBetween(out.DepartureInstant, in.DepartureInstant)
	if nights < strategy.MinNights || nights > strategy.MaxNights {
		return false
	}
	if !withinStrategyWindow(out.DepartureInstant, strategy.OutDays, tolerance) {
		return false
	}
	if !withinStrategyWindow(in.DepartureInstant, strategy.InDays, tolerance) {
		return false
	}
	return true
}

func withinStrategyWindow(t time.Time, days map[int]model.HourWindow, tolerance int) bool {
	if len(days) == 0 {
		return false
	}
	wd := int(t.Weekday())
	win, ok := days[wd]
	if !ok {
		return false
	}
	lo := maxInt(0, win.Lo-tolerance)
	hi := minInt(24, win.Hi+tolerance)
	hour := t.Hour()
	return hour >= lo && hour < hi
}

func daysBetween(out, in time.Time) int {
	outDate := time.Date(out.Year(), out.Month(), out.Day(), 0, 0, 0, 0, out.Location())
	inDate := time.Date(in.Year(), in.Month(), in.Day(), 0, 0, 0, 0, in.Location())
	return int(inDate.Sub(outDate).Hours() / 24)
}

func roundMoney(v float64) float64 {
	return math.Round(v*100) / 100
}

func (m *Matcher) upsert(ctx context.Context, profileID, outID, inID string, totalPP float64, now time.Time) error {
	d := model.Deal{
		ID:               m.newID(),
		ProfileID:        profileID,
		OutboundFlightID: outID,
		InboundFlightID:  inID,
		TotalPricePP:     totalPP,
		UpdatedAt:        now,
	}
	if err := m.store.UpsertDeal(ctx, d); err != nil {
		return fmt.Errorf("matcher: upsert deal: %w", err)
	}
	return nil
}

func toSet(vs []string) map[string]bool {
	m := make(map[string]bool, len(vs))
	for _, v := range vs {
		m[v] = true
	}
	return m
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
