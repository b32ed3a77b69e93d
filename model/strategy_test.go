package model_test

import (
	"testing"

	"github.com/lesgoski/dealengine/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStrategyValidate(t *testing.T) {
	cases := []struct {
		name    string
		s       model.Strategy
		wantErr bool
	}{
		{
			name: "valid",
			s: model.Strategy{
				OutDays:   map[int]model.HourWindow{4: {Lo: 17, Hi: 24}},
				InDays:    map[int]model.HourWindow{6: {Lo: 15, Hi: 23}},
				MinNights: 2,
				MaxNights: 3,
			},
		},
		{
			name:    "min greater than max",
			s:       model.Strategy{MinNights: 4, MaxNights: 2},
			wantErr: true,
		},
		{
			name:    "negative nights",
			s:       model.Strategy{MinNights: -1, MaxNights: 2},
			wantErr: true,
		},
		{
			name:    "unknown weekday",
			s:       model.Strategy{OutDays: map[int]model.HourWindow{7: {Lo: 0, Hi: 24}}},
			wantErr: true,
		},
		{
			name:    "inverted hour window",
			s:       model.Strategy{OutDays: map[int]model.HourWindow{0: {Lo: 20, Hi: 5}}},
			wantErr: true,
		},
		{
			name:    "empty day maps is not an error",
			s:       model.Strategy{OutDays: map[int]model.HourWindow{}, InDays: map[int]model.HourWindow{}},
			wantErr: false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.s.Validate()
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestStrategyBlobRoundTrip(t *testing.T) {
	s := model.Strategy{
		OutDays:   map[int]model.HourWindow{4: {Lo: 17, Hi: 24}, 1: {Lo: 0, Hi: 6}},
		InDays:    map[int]model.HourWindow{6: {Lo: 15, Hi: 23}},
		MinNights: 2,
		MaxNights: 5,
	}

	blob, err := s.MarshalBlob()
	require.NoError(t, err)

	got, err := model.UnmarshalBlob(blob)
	require.NoError(t, err)

	assert.Equal(t, s.MinNights, got.MinNights)
	assert.Equal(t, s.MaxNights, got.MaxNights)
	assert.Equal(t, s.OutDays[4], got.OutDays[4])
	assert.Equal(t, s.OutDays[1], got.OutDays[1])
	assert.Equal(t, s.InDays[6], got.InDays[6])

	// Integer weekday keys must survive the round trip, not turn into strings.
	for wd := range got.OutDays {
		assert.IsType(t, 0, wd)
	}
}

func TestUnmarshalBlobEmpty(t *testing.T) {
	s, err := model.UnmarshalBlob("")
	require.NoError(t, err)
	assert.Nil(t, s.OutDays)
}
