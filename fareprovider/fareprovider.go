// Package fareprovider talks to the upstream fare source and turns
// its responses into Leg values, which the harvester converts to
// model.Flight records. The harvester depends only on
// the Provider interface, so a mock or a different upstream can be
// substituted without touching matching logic.
package fareprovider

import (
	"context"
	"time"
)

// Leg is a single one-way fare as returned by the upstream source,
// before it is assigned a fingerprint ID and written to the store.
type Leg struct {
	Origin               string
	Destination          string
	OriginFullName       string
	DestinationFullName  string
	DepartureInstant     time.Time
	ArrivalInstant       time.Time
	FlightNumber         string
	Price                float64
	Currency             string
}

// Provider is the upstream fare source. Cheapest returns the cheapest
// leg for every distinct (date, destination) combination the upstream
// found between start and end; when destination is empty, the
// provider searches every destination it knows about from origin.
type Provider interface {
	Cheapest(ctx context.Context, origin string, partySize int, start, end time.Time, destination string) ([]Leg, error)

	// Name identifies the upstream integration that produced a leg,
	// propagated into model.Flight.SourceAPI.
	Name() string
}
