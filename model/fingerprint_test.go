package model_test

import (
	"testing"
	"time"

	"github.com/lesgoski/dealengine/model"
	"github.com/stretchr/testify/assert"
)

func TestFingerprintDeterministic(t *testing.T) {
	dep := time.Date(2025, 7, 4, 18, 0, 0, 0, time.UTC).Unix()

	a := model.Fingerprint("PSA", "BCN", dep, 1)
	b := model.Fingerprint("PSA", "BCN", dep, 1)
	assert.Equal(t, a, b)

	c := model.Fingerprint("PSA", "BCN", dep, 2)
	assert.NotEqual(t, a, c, "party size must change the fingerprint")

	d := model.Fingerprint("BCN", "PSA", dep, 1)
	assert.NotEqual(t, a, d, "direction must change the fingerprint")
}

func TestFingerprintFlightMatchesFingerprint(t *testing.T) {
	dep := time.Date(2025, 7, 4, 18, 0, 0, 0, time.UTC)
	f := model.Flight{Origin: "PSA", Destination: "BCN", DepartureInstant: dep, PartySize: 2}

	want := model.Fingerprint("PSA", "BCN", dep.Unix(), 2)
	assert.Equal(t, want, model.FingerprintFlight(f))
}
