package pgtype

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntervalToISO(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "P0Y0M0DT0H0M0S"},
		{"1 year 2 mons 3 days 04:05:06.7", "P1Y2M3DT4H5M6.7S"},
		{"3 years", "P3Y0M0DT0H0M0S"},
		{"1 mon", "P0Y1M0DT0H0M0S"},
		{"5 days", "P0Y0M5DT0H0M0S"},
		{"-1 days", "P0Y0M-1DT0H0M0S"},
		{"00:00:01", "P0Y0M0DT0H0M1S"},
		{"12:34:56.789", "P0Y0M0DT12H34M56.789S"},
		{"00:00:00.000001", "P0Y0M0DT0H0M0.000001S"},
		{"00:00:00.120000", "P0Y0M0DT0H0M0.12S"},
		{"-04:05:06", "P0Y0M0DT-4H-5M-6S"},
		{"1 year -2 mons 3 days -04:05:06", "P1Y-2M3DT-4H-5M-6S"},
		{"-00:00:00.5", "P0Y0M0DT0H0M-0.5S"},
		{"100:00:00", "P0Y0M0DT100H0M0S"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := IntervalToISO(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseInterval_NegativeClockLeavesDateParts(t *testing.T) {
	iv, err := ParseInterval("2 years 3 mons 4 days -04:05:06")
	require.NoError(t, err)

	assert.Equal(t, Interval{
		Years:         2,
		Months:        3,
		Days:          4,
		Hours:         -4,
		Minutes:       -5,
		Seconds:       -6,
		NegativeClock: true,
	}, iv)
}

func TestParseInterval_FractionPaddedToMicroseconds(t *testing.T) {
	for frac, want := range map[string]int64{
		"7":      700000,
		"25":     250000,
		"123456": 123456,
		"000100": 100,
	} {
		iv, err := ParseInterval("00:00:00." + frac)
		require.NoError(t, err)
		assert.Equal(t, want, iv.Microseconds, "fraction %q", frac)
	}
}

func TestIntervalDecoder(t *testing.T) {
	v, err := IntervalDecoder("1 day")
	require.NoError(t, err)
	assert.Equal(t, "P0Y0M1DT0H0M0S", v)
}
