package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lesgoski/dealengine/model"
)

// csv helpers: origins/allowed/notify destinations are stored as a
// simple comma-joined list rather than a join table, since they are
// always read and written as a whole with the owning profile.
func joinCSV(vs []string) string { return strings.Join(vs, ",") }

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

// ListActiveProfiles returns every profile currently eligible for the
// orchestrator's dispatch loop.
func (s *Store) ListActiveProfiles(ctx context.Context) ([]model.Profile, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, owner_user_id, name, origins, party_size, max_price_pp, strategy_blob,
			allowed_destinations, notify_destinations, allow_nearby_origins, is_active, updated_at
		FROM search_profiles WHERE is_active = 1`)
	if err != nil {
		return nil, fmt.Errorf("store: list active profiles: %w", err)
	}
	defer rows.Close()
	return scanProfiles(rows)
}

// ProfileByID loads a single profile by its ID.
func (s *Store) ProfileByID(ctx context.Context, id string) (model.Profile, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, owner_user_id, name, origins, party_size, max_price_pp, strategy_blob,
			allowed_destinations, notify_destinations, allow_nearby_origins, is_active, updated_at
		FROM search_profiles WHERE id = ?`, id)

	p, err := scanProfileRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Profile{}, fmt.Errorf("store: profile %s: %w", id, err)
	}
	return p, err
}

// SaveProfile inserts or fully replaces a profile row.
func (s *Store) SaveProfile(ctx context.Context, p model.Profile) error {
	if err := p.Strategy.Validate(); err != nil {
		return fmt.Errorf("store: save profile: %w", err)
	}
	strategyBlob, err := p.Strategy.MarshalBlob()
	if err != nil {
		return fmt.Errorf("store: save profile: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO search_profiles (
			id, owner_user_id, name, origins, party_size, max_price_pp, strategy_blob,
			allowed_destinations, notify_destinations, allow_nearby_origins, is_active, updated_at
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET
			owner_user_id=excluded.owner_user_id,
			name=excluded.name,
			origins=excluded.origins,
			party_size=excluded.party_size,
			max_price_pp=excluded.max_price_pp,
			strategy_blob=excluded.strategy_blob,
			allowed_destinations=excluded.allowed_destinations,
			notify_destinations=excluded.notify_destinations,
			allow_nearby_origins=excluded.allow_nearby_origins,
			is_active=excluded.is_active,
			updated_at=excluded.updated_at`,
		p.ID, p.OwnerUserID, p.Name, joinCSV(p.Origins), p.PartySize, p.MaxPricePP, strategyBlob,
		joinCSV(p.AllowedDestinations), joinCSV(p.NotifyDestinations), p.AllowNearbyOrigins, p.IsActive, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("store: save profile: %w", err)
	}
	return nil
}

// StampProfileUpdated records that the orchestrator finished a pass
// for this profile, independent of whether any deal changed.
func (s *Store) StampProfileUpdated(ctx context.Context, id string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `UPDATE search_profiles SET updated_at = ? WHERE id = ?`, at, id)
	if err != nil {
		return fmt.Errorf("store: stamp profile updated: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProfileRow(row rowScanner) (model.Profile, error) {
	var p model.Profile
	var origins, allowed, notify, strategyBlob sql.NullString
	err := row.Scan(&p.ID, &p.OwnerUserID, &p.Name, &origins, &p.PartySize, &p.MaxPricePP, &strategyBlob,
		&allowed, &notify, &p.AllowNearbyOrigins, &p.IsActive, &p.UpdatedAt)
	if err != nil {
		return model.Profile{}, err
	}
	p.Origins = splitCSV(origins.String)
	p.AllowedDestinations = splitCSV(allowed.String)
	p.NotifyDestinations = splitCSV(notify.String)
	p.Strategy, err = model.UnmarshalBlob(strategyBlob.String)
	if err != nil {
		return model.Profile{}, fmt.Errorf("store: decode strategy: %w", err)
	}
	return p, nil
}

func scanProfiles(rows *sql.Rows) ([]model.Profile, error) {
	var out []model.Profile
	for rows.Next() {
		p, err := scanProfileRow(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan profile: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
