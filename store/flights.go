package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lesgoski/dealengine/model"
)

// UpsertFlights writes a batch of legs, keyed by their fingerprint ID.
// An existing row is refreshed (price, updated_at, departure_instant,
// arrival_instant) rather than duplicated, since the same leg is
// routinely re-observed across scans with a corrected price or
// schedule. No other column is touched on conflict. Rows are written
// in chunks of batchSize to keep each round trip within SQLite's bound
// parameter limit.
func (s *Store) UpsertFlights(ctx context.Context, flights []model.Flight) error {
	if len(flights) == 0 {
		return nil
	}

	for _, r := range chunk(len(flights), batchSize) {
		if err := s.upsertFlightChunk(ctx, flights[r[0]:r[1]]); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) upsertFlightChunk(ctx context.Context, flights []model.Flight) error {
	var sb strings.Builder
	sb.WriteString(`INSERT INTO flights (
		id, origin, destination, origin_full_name, destination_full_name,
		departure_instant, arrival_instant, flight_number, price, currency,
		party_size, source_api, updated_at
	) VALUES `)

	args := make([]interface{}, 0, len(flights)*13)
	for i, f := range flights {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString("(?,?,?,?,?,?,?,?,?,?,?,?,?)")
		args = append(args,
			f.ID, f.Origin, f.Destination, f.OriginFullName, f.DestinationFullName,
			f.DepartureInstant, f.ArrivalInstant, f.FlightNumber, f.Price, f.Currency,
			f.PartySize, f.SourceAPI, f.UpdatedAt,
		)
	}

	sb.WriteString(` ON CONFLICT(id) DO UPDATE SET
		price=excluded.price,
		updated_at=excluded.updated_at,
		departure_instant=excluded.departure_instant,
		arrival_instant=excluded.arrival_instant`)

	_, err := s.db.ExecContext(ctx, sb.String(), args...)
	if err != nil {
		return fmt.Errorf("store: upsert flights: %w", err)
	}
	return nil
}

// FlightsFrom returns every known leg departing origin for partySize
// passengers, regardless of destination. The matcher narrows this
// further by time window and metro-area grouping.
func (s *Store) FlightsFrom(ctx context.Context, origin string, partySize int) ([]model.Flight, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, origin, destination, origin_full_name, destination_full_name,
			departure_instant, arrival_instant, flight_number, price, currency,
			party_size, source_api, updated_at
		FROM flights WHERE origin = ? AND party_size = ?`, origin, partySize)
	if err != nil {
		return nil, fmt.Errorf("store: flights from: %w", err)
	}
	defer rows.Close()
	return scanFlights(rows)
}

// FlightsTo returns every known leg arriving at destination for
// partySize passengers, used to build the inbound side of a round trip.
func (s *Store) FlightsTo(ctx context.Context, destination string, partySize int) ([]model.Flight, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, origin, destination, origin_full_name, destination_full_name,
			departure_instant, arrival_instant, flight_number, price, currency,
			party_size, source_api, updated_at
		FROM flights WHERE destination = ? AND party_size = ?`, destination, partySize)
	if err != nil {
		return nil, fmt.Errorf("store: flights to: %w", err)
	}
	defer rows.Close()
	return scanFlights(rows)
}

// FlightByID fetches a single leg, used by the view layer to hydrate
// a deal's outbound/inbound pointers. A missing flight returns
// sql.ErrNoRows, which callers treat as "deal references a pruned leg".
func (s *Store) FlightByID(ctx context.Context, id string) (model.Flight, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, origin, destination, origin_full_name, destination_full_name,
			departure_instant, arrival_instant, flight_number, price, currency,
			party_size, source_api, updated_at
		FROM flights WHERE id = ?`, id)

	var f model.Flight
	err := row.Scan(&f.ID, &f.Origin, &f.Destination, &f.OriginFullName, &f.DestinationFullName,
		&f.DepartureInstant, &f.ArrivalInstant, &f.FlightNumber, &f.Price, &f.Currency,
		&f.PartySize, &f.SourceAPI, &f.UpdatedAt)
	if err != nil {
		return model.Flight{}, err
	}
	return f, nil
}

// PruneStaleFlights deletes legs whose updated_at is older than
// olderThanHours, so the table tracks only recently-observed fares.
func (s *Store) PruneStaleFlights(ctx context.Context, olderThanHours int) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM flights WHERE updated_at < datetime('now', ?)`,
		fmt.Sprintf("-%d hours", olderThanHours))
	if err != nil {
		return 0, fmt.Errorf("store: prune stale flights: %w", err)
	}
	return res.RowsAffected()
}

func scanFlights(rows *sql.Rows) ([]model.Flight, error) {
	var out []model.Flight
	for rows.Next() {
		var f model.Flight
		if err := rows.Scan(&f.ID, &f.Origin, &f.Destination, &f.OriginFullName, &f.DestinationFullName,
			&f.DepartureInstant, &f.ArrivalInstant, &f.FlightNumber, &f.Price, &f.Currency,
			&f.PartySize, &f.SourceAPI, &f.UpdatedAt); err != nil {
			return nil, fmt.Errorf("store: scan flight: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}
