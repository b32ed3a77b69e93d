package model

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// HourWindow is a half-open hour range [Lo, Hi).
type HourWindow struct {
	Lo int `yaml:"lo"`
	Hi int `yaml:"hi"`
}

// Strategy is the calendar-and-clock acceptance predicate for a profile.
// It is persisted as a serialized YAML blob inside the owning profile
// row, so it can evolve without a schema migration; the tradeoff is
// that it can't be queried on directly, which is fine since matching
// always loads the full profile anyway.
type Strategy struct {
	OutDays   map[int]HourWindow `yaml:"out_days"`
	InDays    map[int]HourWindow `yaml:"in_days"`
	MinNights int                `yaml:"min_nights"`
	MaxNights int                `yaml:"max_nights"`
}

// Validate rejects strategies that violate the invariants from the spec:
// unknown weekday keys, malformed hour windows, or an inverted night range.
// Called at profile save time so an invalid Strategy never reaches the
// matcher.
func (s Strategy) Validate() error {
	if s.MinNights < 0 || s.MaxNights < 0 {
		return fmt.Errorf("strategy: nights must be non-negative (min=%d max=%d)", s.MinNights, s.MaxNights)
	}
	if s.MinNights > s.MaxNights {
		return fmt.Errorf("strategy: min_nights (%d) > max_nights (%d)", s.MinNights, s.MaxNights)
	}
	if err := validateDayWindows(s.OutDays); err != nil {
		return fmt.Errorf("strategy: out_days: %w", err)
	}
	if err := validateDayWindows(s.InDays); err != nil {
		return fmt.Errorf("strategy: in_days: %w", err)
	}
	return nil
}

func validateDayWindows(days map[int]HourWindow) error {
	for wd, win := range days {
		if wd < 0 || wd > 6 {
			return fmt.Errorf("unknown weekday key %d", wd)
		}
		if win.Lo < 0 || win.Hi > 24 || win.Lo > win.Hi {
			return fmt.Errorf("weekday %d: invalid hour window [%d,%d)", wd, win.Lo, win.Hi)
		}
	}
	return nil
}

// MarshalBlob serializes the strategy for storage in the profile row.
func (s Strategy) MarshalBlob() (string, error) {
	b, err := yaml.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("marshal strategy: %w", err)
	}
	return string(b), nil
}

// UnmarshalBlob decodes a strategy previously written by MarshalBlob.
func UnmarshalBlob(blob string) (Strategy, error) {
	var s Strategy
	if blob == "" {
		return s, nil
	}
	if err := yaml.Unmarshal([]byte(blob), &s); err != nil {
		return s, fmt.Errorf("unmarshal strategy: %w", err)
	}
	return s, nil
}
