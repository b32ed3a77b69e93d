package main

import (
	"context"
	"encoding/csv"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/lesgoski/dealengine/cache"
	"github.com/lesgoski/dealengine/config"
	"github.com/lesgoski/dealengine/fareprovider"
	"github.com/lesgoski/dealengine/logger"
	"github.com/lesgoski/dealengine/metrics"
	"github.com/lesgoski/dealengine/metro"
	"github.com/lesgoski/dealengine/notifier"
	"github.com/lesgoski/dealengine/orchestrator"
	"github.com/lesgoski/dealengine/scheduler"
	"github.com/lesgoski/dealengine/store"
	"github.com/lesgoski/dealengine/view"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg)

	log.Info().Str("env", cfg.Env).Msg("dealengine starting")

	db, err := store.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open store")
	}
	defer db.Close()

	airports, err := loadAirports(cfg.AirportTablePath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.AirportTablePath).Msg("failed to load airport table")
	}
	log.Info().Int("airports", len(airports)).Msg("airport table loaded")

	var mirror metro.Mirror
	mm, err := cache.New(cfg, log)
	if err != nil {
		log.Warn().Err(err).Msg("redis cache init failed — continuing without metro mirror")
	} else if mm != nil {
		mirror = mm
		defer mm.Close()
		if err := mm.Ping(context.Background()); err != nil {
			log.Warn().Err(err).Msg("redis ping failed — metro mirror lookups will fall back to local computation")
		} else {
			log.Info().Msg("redis metro mirror connected")
		}
	}
	metroIdx := metro.Load(airports, log, mirror)

	provider := fareprovider.NewHTTPProvider(cfg.FareProviderName, cfg.FareProviderURL, cfg.FareProviderRPS, int(cfg.FareProviderRPS)+1)
	push := notifier.NewPushClient(cfg.PushHost, cfg.PushRPS, int(cfg.PushRPS)+1)
	reg := metrics.New()

	orch := orchestrator.New(db, provider, push, metroIdx, log, reg, uuid.NewString, orchestrator.Config{
		ScanCooldown:          cfg.ScanCooldown,
		LookupHorizon:         cfg.LookupHorizon,
		MaxHarvestWorkers:     cfg.MaxHarvestWorkers,
		NearbyAirportRadiusKm: cfg.NearbyAirportRadiusKm,
		HourTolerance:         cfg.HourTolerance,
	})
	notif := notifier.New(push, db, log)

	sched := scheduler.New(db, orch, notif, log, reg, scheduler.Config{
		UpdateInterval:       cfg.UpdateInterval,
		MaxWorkers:           cfg.MaxWorkers,
		FlightStalenessHours: cfg.FlightStalenessHours,
		DigestHourLocal:      cfg.DigestHourLocal,
	})
	sched.Start()

	viewHandler := view.New(db, metroIdx, cfg.NearbyAirportRadiusKm, log)
	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      viewHandler.Router(reg),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Info().Str("addr", cfg.Addr).Msg("view server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-done
	log.Info().Msg("shutdown signal received")

	sched.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.GracefulTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	} else {
		log.Info().Msg("dealengine stopped gracefully")
	}
}

// loadAirports reads a CSV of iata,lat,lon rows. Airport metadata
// loading is an external concern the spec treats as out of scope; this
// is the minimal reader main needs to turn a static table into
// metro.Airport values, not a general-purpose importer.
func loadAirports(path string) ([]metro.Airport, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	var out []metro.Airport
	first := true
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if first {
			first = false
			if _, err := strconv.ParseFloat(rec[1], 64); err != nil {
				continue // header row
			}
		}
		if len(rec) < 3 {
			continue
		}
		lat, err := strconv.ParseFloat(rec[1], 64)
		if err != nil {
			continue
		}
		lon, err := strconv.ParseFloat(rec[2], 64)
		if err != nil {
			continue
		}
		out = append(out, metro.Airport{IATA: rec[0], Lat: lat, Lon: lon})
	}
	return out, nil
}
