// Package view exposes the engine's read-only HTTP surface: deals for
// a profile, a per-destination aggregation of those deals, liveness,
// and the in-process metrics registry. It owns no write path — every
// mutation happens in the orchestrator/scheduler.
package view

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/lesgoski/dealengine/metro"
	"github.com/lesgoski/dealengine/model"
	"github.com/rs/zerolog"
)

// Store is the subset of store.Store the view needs.
type Store interface {
	DealsForProfile(ctx context.Context, profileID string) ([]model.Deal, error)
	FlightByID(ctx context.Context, id string) (model.Flight, error)
	ProfileByID(ctx context.Context, id string) (model.Profile, error)
}

// Metrics is the subset of metrics.Registry the view exposes directly.
type Metrics interface {
	Handler() http.HandlerFunc
}

// Handler bundles the view's dependencies and builds the router.
type Handler struct {
	store    Store
	metro    *metro.Index
	radiusKm float64
	log      zerolog.Logger
}

// New builds a Handler. radiusKm is the same nearby-airport radius the
// matcher uses, so "by destination" grouping here agrees with what the
// matcher already treats as equivalent.
func New(store Store, idx *metro.Index, radiusKm float64, log zerolog.Logger) *Handler {
	return &Handler{store: store, metro: idx, radiusKm: radiusKm, log: log.With().Str("component", "view").Logger()}
}

// Router builds the chi router exposing this package's routes.
func (h *Handler) Router(metrics Metrics) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(h.requestLogger)
	r.Use(h.withTimeout)

	r.Get("/healthz", h.healthz)
	r.Get("/deals", h.listDeals)
	r.Get("/deals/by-destination", h.dealsByDestination)
	if metrics != nil {
		r.Get("/metrics", metrics.Handler())
	}
	return r
}

func (h *Handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(rw, r)
		h.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("req_id", chimw.GetReqID(r.Context())).
			Int("status", rw.Status()).
			Dur("duration", time.Since(start)).
			Msg("request completed")
	})
}

func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// dealView is the wire shape for a single deal, joined with its two
// flights for display.
type dealView struct {
	ID           string    `json:"id"`
	ProfileID    string    `json:"profile_id"`
	Origin       string    `json:"origin"`
	Destination  string    `json:"destination"`
	Outbound     time.Time `json:"outbound_departure"`
	Inbound      time.Time `json:"inbound_departure"`
	TotalPricePP float64   `json:"total_price_pp"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// resolveDeal joins a deal with its two flights, reporting ok=false
// when either flight reference is missing — an inconsistency the
// scheduler's prune pass will eventually clear, but which a reader
// must skip rather than surface as an error (spec §7).
func (h *Handler) resolveDeal(ctx context.Context, d model.Deal) (dealView, bool) {
	out, err := h.store.FlightByID(ctx, d.OutboundFlightID)
	if err != nil {
		h.log.Debug().Err(err).Str("deal_id", d.ID).Msg("deal references missing outbound flight, skipping")
		return dealView{}, false
	}
	in, err := h.store.FlightByID(ctx, d.InboundFlightID)
	if err != nil {
		h.log.Debug().Err(err).Str("deal_id", d.ID).Msg("deal references missing inbound flight, skipping")
		return dealView{}, false
	}
	return dealView{
		ID:           d.ID,
		ProfileID:    d.ProfileID,
		Origin:       out.Origin,
		Destination:  out.Destination,
		Outbound:     out.DepartureInstant,
		Inbound:      in.DepartureInstant,
		TotalPricePP: d.TotalPricePP,
		UpdatedAt:    d.UpdatedAt,
	}, true
}

// listDeals handles GET /deals?profile_id=... — every live deal for a
// profile, cheapest first, flight-joined.
func (h *Handler) listDeals(w http.ResponseWriter, r *http.Request) {
	profileID := r.URL.Query().Get("profile_id")
	if profileID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "profile_id is required"})
		return
	}

	deals, err := h.store.DealsForProfile(r.Context(), profileID)
	if err != nil {
		h.log.Error().Err(err).Str("profile_id", profileID).Msg("list deals")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	views := make([]dealView, 0, len(deals))
	for _, d := range deals {
		if dv, ok := h.resolveDeal(r.Context(), d); ok {
			views = append(views, dv)
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"profile_id": profileID,
		"deals":      views,
	})
}

// destinationGroup is the cheapest deal representing a cluster of
// metro-equivalent destinations.
type destinationGroup struct {
	Destinations []string `json:"destinations"`
	Cheapest     dealView `json:"cheapest"`
}

// dealsByDestination handles GET /deals/by-destination?profile_id=...
// — deals grouped by metro-area equivalence (§4.A), keeping only the
// cheapest deal per group.
func (h *Handler) dealsByDestination(w http.ResponseWriter, r *http.Request) {
	profileID := r.URL.Query().Get("profile_id")
	if profileID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "profile_id is required"})
		return
	}

	deals, err := h.store.DealsForProfile(r.Context(), profileID)
	if err != nil {
		h.log.Error().Err(err).Str("profile_id", profileID).Msg("list deals by destination")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	var views []dealView
	for _, d := range deals {
		if dv, ok := h.resolveDeal(r.Context(), d); ok {
			views = append(views, dv)
		}
	}
	sort.Slice(views, func(i, j int) bool { return views[i].TotalPricePP < views[j].TotalPricePP })

	var groups []destinationGroup
	for _, dv := range views {
		placed := false
		for gi := range groups {
			if h.metro.AreNearby(groups[gi].Cheapest.Destination, dv.Destination, h.radiusKm) {
				if !contains(groups[gi].Destinations, dv.Destination) {
					groups[gi].Destinations = append(groups[gi].Destinations, dv.Destination)
				}
				placed = true
				break
			}
		}
		if !placed {
			groups = append(groups, destinationGroup{
				Destinations: []string{dv.Destination},
				Cheapest:     dv,
			})
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"profile_id": profileID,
		"groups":     groups,
	})
}

func contains(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
