package model

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Fingerprint deterministically identifies a one-way leg by its
// origin, destination, departure time, and party size. It is computed
// by the harvester before handing legs to the store, which upserts on
// this value without recomputing it. A cryptographic digest (rather
// than, say, a random UUID) is required here because the same leg
// fetched twice — by two concurrent harvests, or on a later scan —
// must resolve to the same row.
func Fingerprint(origin, destination string, departureInstant int64, partySize int) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%d|%d", origin, destination, departureInstant, partySize)
	return hex.EncodeToString(h.Sum(nil))
}

// FingerprintFlight is a convenience wrapper computing the fingerprint
// for a Flight from its own fields.
func FingerprintFlight(f Flight) string {
	return Fingerprint(f.Origin, f.Destination, f.DepartureInstant.Unix(), f.PartySize)
}

// DealPairKey identifies a deal by its (outbound, inbound) leg pair.
// The matcher always knows this pair without needing to learn the
// store-assigned deal ID of a row it may only just have updated.
func DealPairKey(outboundFlightID, inboundFlightID string) string {
	return outboundFlightID + "|" + inboundFlightID
}
