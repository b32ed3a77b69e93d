package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// RecentlyScanned reports whether (origin, partySize) was harvested
// within the last cooldown window, so the harvester can skip an
// origin it just polled.
func (s *Store) RecentlyScanned(ctx context.Context, origin string, partySize int, cooldown time.Duration) (bool, error) {
	var scannedAt time.Time
	err := s.db.QueryRowContext(ctx,
		`SELECT scanned_at FROM scan_log WHERE origin = ? AND party_size = ?`,
		origin, partySize).Scan(&scannedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("store: recently scanned: %w", err)
	}
	return time.Since(scannedAt) < cooldown, nil
}

// RecordScan stamps (origin, partySize) as scanned at the given time.
func (s *Store) RecordScan(ctx context.Context, origin string, partySize int, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO scan_log (origin, party_size, scanned_at) VALUES (?, ?, ?)
		ON CONFLICT(origin, party_size) DO UPDATE SET scanned_at = excluded.scanned_at`,
		origin, partySize, at)
	if err != nil {
		return fmt.Errorf("store: record scan: %w", err)
	}
	return nil
}

// PruneScanLog deletes entries older than a week; the scan log only
// needs to answer "was this scanned recently", not hold history.
func (s *Store) PruneScanLog(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM scan_log WHERE scanned_at < datetime('now', '-7 days')`)
	if err != nil {
		return 0, fmt.Errorf("store: prune scan log: %w", err)
	}
	return res.RowsAffected()
}
