// Package scheduler runs the single long-lived process loop: dispatch
// due profile orchestrations to a bounded worker pool, prune stale
// state hourly, and send the daily digest at a fixed local hour.
package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lesgoski/dealengine/model"
	"github.com/rs/zerolog"
)

const (
	dispatchInterval = 5 * time.Minute
	pruneInterval    = time.Hour
	digestPollPeriod = 10 * time.Second
)

// Metrics is the subset of metrics.Registry the scheduler reports to.
type Metrics interface {
	SetActiveWorkers(n int)
}

// Store is the subset of store.Store the scheduler needs: selecting
// and stamping profiles, resolving their owners, and the three prune
// operations.
type Store interface {
	ListActiveProfiles(ctx context.Context) ([]model.Profile, error)
	UserByID(ctx context.Context, id string) (model.User, error)
	PruneStaleFlights(ctx context.Context, olderThanHours int) (int64, error)
	PruneOrphanDeals(ctx context.Context) (int64, error)
	PruneScanLog(ctx context.Context) (int64, error)
}

// Orchestrator runs the per-profile pipeline. Satisfied by
// *orchestrator.Orchestrator.
type Orchestrator interface {
	RunProfile(ctx context.Context, profileID string, excludedDestinations []string, channel string) error
}

// Notifier sends the daily digest. Satisfied by *notifier.Notifier.
type Notifier interface {
	Digest(ctx context.Context, profile model.Profile, channel string) error
}

// Config bundles the scheduler's own tunables (as opposed to the
// orchestrator's, which it also holds but doesn't interpret directly).
type Config struct {
	UpdateInterval       time.Duration
	MaxWorkers           int
	FlightStalenessHours int
	DigestHourLocal      int
}

// Scheduler owns the three periodic tasks described in the spec:
// dispatch, prune, and digest.
type Scheduler struct {
	store   Store
	orch    Orchestrator
	notif   Notifier
	log     zerolog.Logger
	metrics Metrics
	cfg     Config

	pool   semaphore
	active int64

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds a Scheduler. notif operates against the plain store (not
// a transaction), since the digest task is a read-then-push pass with
// no write that needs all-or-nothing semantics.
func New(s Store, orch Orchestrator, notif Notifier, log zerolog.Logger, metrics Metrics, cfg Config) *Scheduler {
	return &Scheduler{
		store:   s,
		orch:    orch,
		notif:   notif,
		log:     log.With().Str("component", "scheduler").Logger(),
		metrics: metrics,
		cfg:     cfg,
		pool:    newSemaphore(cfg.MaxWorkers),
	}
}

// Start launches the three ticker loops in the background. Call Stop
// to request a graceful shutdown.
func (s *Scheduler) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(3)
	go s.dispatchLoop(ctx)
	go s.pruneLoop(ctx)
	go s.digestLoop(ctx)

	s.log.Info().
		Dur("dispatch_interval", dispatchInterval).
		Dur("prune_interval", pruneInterval).
		Int("digest_hour_local", s.cfg.DigestHourLocal).
		Msg("scheduler started")
}

// Stop cancels the main loop and waits for in-flight orchestration
// tasks to finish before returning.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	s.log.Info().Msg("scheduler stopped")
}

func (s *Scheduler) dispatchLoop(ctx context.Context) {
	defer s.wg.Done()

	s.dispatch(ctx)

	ticker := time.NewTicker(dispatchInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.dispatch(ctx)
		}
	}
}

// dispatch selects due profiles and submits one orchestration task per
// profile to the bounded worker pool. A failing task is logged and
// never affects its siblings.
func (s *Scheduler) dispatch(ctx context.Context) {
	profiles, err := s.store.ListActiveProfiles(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("dispatch: list active profiles")
		return
	}

	now := time.Now()
	var due []model.Profile
	for _, p := range profiles {
		if now.Sub(p.UpdatedAt) >= s.cfg.UpdateInterval {
			due = append(due, p)
		}
	}
	if len(due) == 0 {
		return
	}
	s.log.Debug().Int("due", len(due)).Msg("dispatching orchestration tasks")

	var tasks sync.WaitGroup
	for _, p := range due {
		p := p
		s.pool.acquire()
		tasks.Add(1)
		go func() {
			defer tasks.Done()
			defer s.pool.release()
			s.metrics.SetActiveWorkers(int(atomic.AddInt64(&s.active, 1)))
			defer func() { s.metrics.SetActiveWorkers(int(atomic.AddInt64(&s.active, -1))) }()
			s.runOne(ctx, p)
		}()
	}
	tasks.Wait()
}

func (s *Scheduler) runOne(ctx context.Context, p model.Profile) {
	var excluded []string
	var channel string
	if p.OwnerUserID != "" {
		owner, err := s.store.UserByID(ctx, p.OwnerUserID)
		if err != nil {
			s.log.Warn().Err(err).Str("profile_id", p.ID).Str("owner_user_id", p.OwnerUserID).
				Msg("dispatch: owner lookup failed, running without exclusions or alerts")
		} else {
			excluded = owner.ExcludedDestinations
			channel = owner.NotifyChannel
		}
	}

	if err := s.orch.RunProfile(ctx, p.ID, excluded, channel); err != nil {
		s.log.Error().Err(err).Str("profile_id", p.ID).Msg("orchestration failed")
	}
}

func (s *Scheduler) pruneLoop(ctx context.Context) {
	defer s.wg.Done()

	s.prune(ctx)

	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.prune(ctx)
		}
	}
}

func (s *Scheduler) prune(ctx context.Context) {
	flights, err := s.store.PruneStaleFlights(ctx, s.cfg.FlightStalenessHours)
	if err != nil {
		s.log.Error().Err(err).Msg("prune: stale flights")
	}
	orphans, err := s.store.PruneOrphanDeals(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("prune: orphan deals")
	}
	scans, err := s.store.PruneScanLog(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("prune: scan log")
	}
	s.log.Info().Int64("flights", flights).Int64("orphan_deals", orphans).Int64("scan_log", scans).Msg("prune complete")
}

func (s *Scheduler) digestLoop(ctx context.Context) {
	defer s.wg.Done()

	var lastRun time.Time
	ticker := time.NewTicker(digestPollPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := time.Now()
			if now.Hour() != s.cfg.DigestHourLocal {
				continue
			}
			if sameDay(lastRun, now) {
				continue
			}
			s.digest(ctx)
			lastRun = now
		}
	}
}

func (s *Scheduler) digest(ctx context.Context) {
	profiles, err := s.store.ListActiveProfiles(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("digest: list active profiles")
		return
	}
	for _, p := range profiles {
		if p.OwnerUserID == "" {
			continue
		}
		owner, err := s.store.UserByID(ctx, p.OwnerUserID)
		if err != nil || owner.NotifyChannel == "" {
			continue
		}
		if err := s.notif.Digest(ctx, p, owner.NotifyChannel); err != nil {
			s.log.Warn().Err(err).Str("profile_id", p.ID).Msg("digest failed")
		}
	}
	s.log.Info().Int("profiles", len(profiles)).Msg("digest pass complete")
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
