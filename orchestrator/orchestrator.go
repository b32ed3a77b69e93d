// Package orchestrator runs the per-profile pipeline the scheduler
// dispatches: harvest fresh fares, match them into deals, alert the
// owner, and stamp the profile as processed — all inside one
// transaction so a failure midway leaves no partial state behind.
package orchestrator

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lesgoski/dealengine/fareprovider"
	"github.com/lesgoski/dealengine/harvester"
	"github.com/lesgoski/dealengine/matcher"
	"github.com/lesgoski/dealengine/metro"
	"github.com/lesgoski/dealengine/notifier"
	"github.com/lesgoski/dealengine/store"
	"github.com/rs/zerolog"
)

// Metrics is the subset of metrics.Registry the orchestrator reports to.
type Metrics interface {
	TrackHarvest(origin string, legs int, err error)
	TrackMatch(profileID string, deals int, err error)
	TrackOrchestration(err error)
}

// Orchestrator wires one Harvester, Matcher, and Notifier per run,
// scoped to the transaction-backed *store.Store handed to it by
// Store.WithTx. It depends on the concrete store type rather than an
// interface because WithTx's callback is itself scoped to *store.Store.
type Orchestrator struct {
	store    *store.Store
	provider fareprovider.Provider
	push     *notifier.PushClient
	metro    *metro.Index
	log      zerolog.Logger
	metrics  Metrics
	newID    matcher.IDGen

	cooldown       time.Duration
	lookupHorizon  time.Duration
	harvestWorkers int
	radiusKm       float64
	hourTolerance  int
}

// Config bundles the tunables a single Orchestrator run needs; it
// mirrors the matching fields of config.Config so main.go can build one
// without reaching into orchestrator internals.
type Config struct {
	ScanCooldown          time.Duration
	LookupHorizon         time.Duration
	MaxHarvestWorkers     int
	NearbyAirportRadiusKm float64
	HourTolerance         int
}

// New builds an Orchestrator.
func New(s *store.Store, provider fareprovider.Provider, push *notifier.PushClient, idx *metro.Index,
	log zerolog.Logger, metrics Metrics, newID matcher.IDGen, cfg Config) *Orchestrator {
	return &Orchestrator{
		store:          s,
		provider:       provider,
		push:           push,
		metro:          idx,
		log:            log.With().Str("component", "orchestrator").Logger(),
		metrics:        metrics,
		newID:          newID,
		cooldown:       cfg.ScanCooldown,
		lookupHorizon:  cfg.LookupHorizon,
		harvestWorkers: cfg.MaxHarvestWorkers,
		radiusKm:       cfg.NearbyAirportRadiusKm,
		hourTolerance:  cfg.HourTolerance,
	}
}

// RunProfile executes the full pipeline for one profile. A missing or
// inactive profile is a no-op, not an error. excludedDestinations and
// channel come from the profile's owning User, which the scheduler
// resolves before calling in (the orchestrator has no User lookup of
// its own).
func (o *Orchestrator) RunProfile(ctx context.Context, profileID string, excludedDestinations []string, channel string) error {
	now := time.Now()

	err := o.store.WithTx(ctx, func(tx *store.Store) error {
		profile, err := tx.ProfileByID(ctx, profileID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil
			}
			return fmt.Errorf("orchestrator: load profile %s: %w", profileID, err)
		}
		if !profile.IsActive {
			return nil
		}

		// Each origin is harvested independently; a failure for one
		// origin is logged and skipped rather than aborting the whole
		// profile, since a single upstream hiccup shouldn't cost every
		// other origin its matching and notification pass.
		h := harvester.New(o.provider, tx, o.log, o.cooldown, o.lookupHorizon, o.harvestWorkers)
		for _, origin := range profile.Origins {
			if err := h.Harvest(ctx, origin, profile.PartySize); err != nil {
				o.metrics.TrackHarvest(origin, 0, err)
				o.log.Warn().Err(err).Str("origin", origin).Str("profile_id", profile.ID).
					Msg("harvest failed, skipping origin")
				continue
			}
			o.metrics.TrackHarvest(origin, 0, nil)
		}

		m := matcher.New(tx, o.metro, o.log, o.radiusKm, o.hourTolerance, o.newID)
		deals, err := m.Match(ctx, profile, excludedDestinations, now)
		o.metrics.TrackMatch(profile.ID, deals, err)
		if err != nil {
			return fmt.Errorf("orchestrator: match: %w", err)
		}

		if channel != "" {
			n := notifier.New(o.push, tx, o.log)
			if err := n.Alert(ctx, profile, channel); err != nil {
				return fmt.Errorf("orchestrator: alert: %w", err)
			}
		}

		return tx.StampProfileUpdated(ctx, profile.ID, now)
	})

	o.metrics.TrackOrchestration(err)
	if err != nil {
		o.log.Error().Err(err).Str("profile_id", profileID).Msg("orchestration failed, rolled back")
	}
	return err
}
