package cache

import "testing"

func TestNearbyKeyIsStableAndDistinct(t *testing.T) {
	a := nearbyKey("BCN", 100)
	b := nearbyKey("BCN", 100)
	if a != b {
		t.Fatalf("expected stable key, got %q and %q", a, b)
	}

	c := nearbyKey("BCN", 50)
	if a == c {
		t.Fatalf("expected distinct keys for distinct radii, both were %q", a)
	}

	d := nearbyKey("GRO", 100)
	if a == d {
		t.Fatalf("expected distinct keys for distinct airports, both were %q", a)
	}
}
