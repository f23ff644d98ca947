package license

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestComputeExpiry(t *testing.T) {
	tests := []struct {
		name     string
		issuedOn time.Time
		days     int
		want     string
	}{
		{"one day", date(2024, 1, 1), 1, "2024-01-02"},
		{"full year", date(2024, 1, 1), 365, "2024-12-31"},
		{"non leap year", date(2023, 1, 1), 365, "2024-01-01"},
		{"month boundary", date(2024, 1, 31), 1, "2024-02-01"},
		{"multi year", date(2024, 6, 15), 730, "2026-06-15"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ComputeExpiry(tt.issuedOn, tt.days)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestComputeExpiryRejectsNonPositiveWindows(t *testing.T) {
	_, err := ComputeExpiry(date(2024, 1, 1), 0)
	assert.ErrorIs(t, err, ErrInvalidValidity)
	_, err = ComputeExpiry(date(2024, 1, 1), -5)
	assert.ErrorIs(t, err, ErrInvalidValidity)
}

func TestIsExpired(t *testing.T) {
	tests := []struct {
		name    string
		expiry  string
		now     time.Time
		expired bool
	}{
		{"day before expiry", "2024-12-31", date(2024, 12, 30), false},
		{"on expiry date", "2024-12-31", date(2024, 12, 31), false},
		{"late on expiry date", "2024-12-31", time.Date(2024, 12, 31, 23, 59, 59, 0, time.UTC), false},
		{"day after expiry", "2024-12-31", date(2025, 1, 1), true},
		{"long past", "2020-06-01", date(2024, 1, 1), true},
		{"malformed date", "31.12.2024", date(2024, 1, 1), true},
		{"garbage", "never", date(2024, 1, 1), true},
		{"empty", "", date(2024, 1, 1), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expired, IsExpired(tt.expiry, tt.now))
		})
	}
}
