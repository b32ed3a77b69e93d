// Package model holds the domain types shared across the deal engine:
// flights, search profiles, the matching strategy, deals, and the
// scan log. Storage and matching packages operate on these types but
// never define their own copies.
package model

import "time"

// Flight is a single one-way leg, shared across every profile whose
// party size matches (the fingerprint embeds party size).
type Flight struct {
	ID                 string
	Origin             string
	Destination        string
	OriginFullName     string
	DestinationFullName string
	DepartureInstant   time.Time
	ArrivalInstant     time.Time
	FlightNumber       string
	Price              float64
	Currency           string
	PartySize          int
	SourceAPI          string
	UpdatedAt          time.Time
}

// ScanLogEntry records that (Origin, PartySize) was harvested at ScannedAt.
type ScanLogEntry struct {
	Origin    string
	PartySize int
	ScannedAt time.Time
}

// Profile describes one tenant's weekend-break search intent.
type Profile struct {
	ID                   string
	OwnerUserID          string // empty means unowned
	Name                 string
	Origins              []string
	PartySize            int
	MaxPricePP           float64
	Strategy             Strategy
	AllowedDestinations  []string // empty means any
	NotifyDestinations   []string
	AllowNearbyOrigins   bool
	IsActive             bool
	UpdatedAt            time.Time
}

// Deal is a matched round trip satisfying a profile's predicates.
type Deal struct {
	ID               string
	ProfileID        string
	OutboundFlightID string
	InboundFlightID  string
	TotalPricePP     float64
	UpdatedAt        time.Time
	Notified         bool
}

// User is the external owner of zero or more profiles.
type User struct {
	ID                   string
	ExcludedDestinations []string
	NotifyChannel        string // e.g. an ntfy topic URL
}
