package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lesgoski/dealengine/model"
)

// UpsertDeal inserts a matched round trip, or refreshes its price and
// clears Notified when the price has changed, so a cheaper (or
// pricier) re-match triggers a fresh alert.
func (s *Store) UpsertDeal(ctx context.Context, d model.Deal) error {
	var existingPrice float64
	var existingID string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, total_price_pp FROM deals
		WHERE profile_id = ? AND outbound_flight_id = ? AND inbound_flight_id = ?`,
		d.ProfileID, d.OutboundFlightID, d.InboundFlightID).Scan(&existingID, &existingPrice)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err = s.db.ExecContext(ctx, `
			INSERT INTO deals (id, profile_id, outbound_flight_id, inbound_flight_id, total_price_pp, updated_at, notified)
			VALUES (?,?,?,?,?,?,0)`,
			d.ID, d.ProfileID, d.OutboundFlightID, d.InboundFlightID, d.TotalPricePP, d.UpdatedAt)
		if err != nil {
			return fmt.Errorf("store: insert deal: %w", err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("store: upsert deal: %w", err)
	}

	priceChanged := existingPrice != d.TotalPricePP
	_, err = s.db.ExecContext(ctx, `
		UPDATE deals SET total_price_pp = ?, updated_at = ?, notified = CASE WHEN ? THEN 0 ELSE notified END
		WHERE id = ?`, d.TotalPricePP, d.UpdatedAt, priceChanged, existingID)
	if err != nil {
		return fmt.Errorf("store: update deal: %w", err)
	}
	return nil
}

// MarkNotified flips the notified flag, independent of whether a push
// actually went out, so the next matcher pass doesn't re-offer the
// same unchanged deal for a notification decision.
func (s *Store) MarkNotified(ctx context.Context, dealID string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE deals SET notified = 1 WHERE id = ?`, dealID)
	if err != nil {
		return fmt.Errorf("store: mark notified: %w", err)
	}
	return nil
}

// DealsForProfile returns every live deal belonging to a profile,
// cheapest first.
func (s *Store) DealsForProfile(ctx context.Context, profileID string) ([]model.Deal, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, profile_id, outbound_flight_id, inbound_flight_id, total_price_pp, updated_at, notified
		FROM deals WHERE profile_id = ? ORDER BY total_price_pp ASC`, profileID)
	if err != nil {
		return nil, fmt.Errorf("store: deals for profile: %w", err)
	}
	defer rows.Close()
	return scanDeals(rows)
}

// UnnotifiedDealsForProfile returns deals awaiting a realtime alert
// decision, cheapest first.
func (s *Store) UnnotifiedDealsForProfile(ctx context.Context, profileID string) ([]model.Deal, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, profile_id, outbound_flight_id, inbound_flight_id, total_price_pp, updated_at, notified
		FROM deals WHERE profile_id = ? AND notified = 0 ORDER BY total_price_pp ASC`, profileID)
	if err != nil {
		return nil, fmt.Errorf("store: unnotified deals: %w", err)
	}
	defer rows.Close()
	return scanDeals(rows)
}

// PruneStaleDeals removes deals for a profile whose (outbound,inbound)
// pair is absent from currentPairs, the set the latest matcher pass
// actually produced. A round trip that no longer validates — a leg
// expired, a price moved outside budget — should stop being offered
// even though nothing explicitly deleted it.
func (s *Store) PruneStaleDeals(ctx context.Context, profileID string, currentPairs map[string]bool) (int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, outbound_flight_id, inbound_flight_id FROM deals WHERE profile_id = ?`, profileID)
	if err != nil {
		return 0, fmt.Errorf("store: prune stale deals: %w", err)
	}
	var stale []string
	for rows.Next() {
		var id, outID, inID string
		if err := rows.Scan(&id, &outID, &inID); err != nil {
			rows.Close()
			return 0, fmt.Errorf("store: prune stale deals: %w", err)
		}
		if !currentPairs[model.DealPairKey(outID, inID)] {
			stale = append(stale, id)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	var deleted int64
	for _, id := range stale {
		res, err := s.db.ExecContext(ctx, `DELETE FROM deals WHERE id = ?`, id)
		if err != nil {
			return deleted, fmt.Errorf("store: prune stale deals: %w", err)
		}
		n, _ := res.RowsAffected()
		deleted += n
	}
	return deleted, nil
}

// PruneOrphanDeals deletes deals whose outbound or inbound flight row
// no longer exists, the reconciliation pass spec.md's scheduler runs
// hourly alongside flight pruning. Deletion order between a flight
// prune and this pass is not guaranteed across concurrent tasks, so
// reads elsewhere must still treat a missing flight defensively.
func (s *Store) PruneOrphanDeals(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM deals WHERE
			outbound_flight_id NOT IN (SELECT id FROM flights) OR
			inbound_flight_id NOT IN (SELECT id FROM flights)`)
	if err != nil {
		return 0, fmt.Errorf("store: prune orphan deals: %w", err)
	}
	return res.RowsAffected()
}

func scanDeals(rows *sql.Rows) ([]model.Deal, error) {
	var out []model.Deal
	for rows.Next() {
		var d model.Deal
		if err := rows.Scan(&d.ID, &d.ProfileID, &d.OutboundFlightID, &d.InboundFlightID,
			&d.TotalPricePP, &d.UpdatedAt, &d.Notified); err != nil {
			return nil, fmt.Errorf("store: scan deal: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
