package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lesgoski/dealengine/model"
)

// SaveUser inserts or fully replaces a user row.
func (s *Store) SaveUser(ctx context.Context, u model.User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, excluded_destinations, notify_channel) VALUES (?,?,?)
		ON CONFLICT(id) DO UPDATE SET
			excluded_destinations=excluded.excluded_destinations,
			notify_channel=excluded.notify_channel`,
		u.ID, joinCSV(u.ExcludedDestinations), u.NotifyChannel)
	if err != nil {
		return fmt.Errorf("store: save user: %w", err)
	}
	return nil
}

// UserByID loads a single user. A profile with a blank OwnerUserID has
// no corresponding row; callers should treat that case as "no
// exclusions, no notify channel" rather than calling this at all.
func (s *Store) UserByID(ctx context.Context, id string) (model.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, excluded_destinations, notify_channel FROM users WHERE id = ?`, id)

	var u model.User
	var excluded, channel sql.NullString
	if err := row.Scan(&u.ID, &excluded, &channel); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, fmt.Errorf("store: user %s: %w", id, err)
		}
		return model.User{}, fmt.Errorf("store: user by id: %w", err)
	}
	u.ExcludedDestinations = splitCSV(excluded.String)
	u.NotifyChannel = channel.String
	return u, nil
}
