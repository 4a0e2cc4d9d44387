package types_test

import (
	"testing"
	"time"

	"github.com/squadhub/squadlink/internal/database/types"
	"github.com/squadhub/squadlink/internal/database/types/enum"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func TestAddCalendarMonths(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		start  time.Time
		months int
		want   time.Time
	}{
		{
			name:   "mid month",
			start:  time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC),
			months: 1,
			want:   time.Date(2024, 4, 15, 10, 30, 0, 0, time.UTC),
		},
		{
			name:   "january 31 clamps to leap february",
			start:  time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
			months: 1,
			want:   time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC),
		},
		{
			name:   "january 31 clamps to non-leap february",
			start:  time.Date(2023, 1, 31, 0, 0, 0, 0, time.UTC),
			months: 1,
			want:   time.Date(2023, 2, 28, 0, 0, 0, 0, time.UTC),
		},
		{
			name:   "year rollover",
			start:  time.Date(2024, 11, 30, 0, 0, 0, 0, time.UTC),
			months: 3,
			want:   time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC),
		},
		{
			name:   "multiple months keep day",
			start:  time.Date(2024, 5, 10, 23, 59, 59, 0, time.UTC),
			months: 6,
			want:   time.Date(2024, 11, 10, 23, 59, 59, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := types.AddCalendarMonths(tt.start, tt.months)
			assert.True(t, got.Equal(tt.want), "got %s, want %s", got, tt.want)
		})
	}
}

func TestWhitelistEntryIsActive(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		entry types.WhitelistEntry
		want  bool
	}{
		{
			name:  "permanent entry",
			entry: types.WhitelistEntry{GrantedAt: now.AddDate(-1, 0, 0)},
			want:  true,
		},
		{
			name: "unexpired day duration",
			entry: types.WhitelistEntry{
				GrantedAt:     now.AddDate(0, 0, -5),
				DurationValue: intPtr(30),
				DurationType:  enum.DurationTypeDays,
			},
			want: true,
		},
		{
			name: "expired day duration",
			entry: types.WhitelistEntry{
				GrantedAt:     now.AddDate(0, 0, -40),
				DurationValue: intPtr(30),
				DurationType:  enum.DurationTypeDays,
			},
			want: false,
		},
		{
			name: "unexpired month duration",
			entry: types.WhitelistEntry{
				GrantedAt:     now.AddDate(0, 0, -20),
				DurationValue: intPtr(1),
				DurationType:  enum.DurationTypeMonths,
			},
			want: true,
		},
		{
			name: "zero duration placeholder never active",
			entry: types.WhitelistEntry{
				GrantedAt:     now,
				DurationValue: intPtr(0),
				DurationType:  enum.DurationTypeDays,
			},
			want: false,
		},
		{
			name: "revoked entry",
			entry: types.WhitelistEntry{
				GrantedAt: now.AddDate(0, 0, -1),
				Revoked:   true,
			},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.entry.IsActive(now))
		})
	}
}

func TestWhitelistEntryExpiresAt(t *testing.T) {
	t.Parallel()

	granted := time.Date(2024, 1, 31, 8, 0, 0, 0, time.UTC)

	permanent := types.WhitelistEntry{GrantedAt: granted}
	assert.Nil(t, permanent.ExpiresAt())

	monthly := types.WhitelistEntry{
		GrantedAt:     granted,
		DurationValue: intPtr(1),
		DurationType:  enum.DurationTypeMonths,
	}

	expiry := monthly.ExpiresAt()
	require.NotNil(t, expiry)
	assert.Equal(t, time.Date(2024, 2, 29, 8, 0, 0, 0, time.UTC), *expiry)
}

func TestComputeWhitelistStatus(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	t.Run("no entries", func(t *testing.T) {
		t.Parallel()

		status := types.ComputeWhitelistStatus(nil, now)
		assert.False(t, status.HasWhitelist)
		assert.Equal(t, 0, status.ActiveEntries)
		assert.Equal(t, "No active whitelist", status.Status)
	})

	t.Run("stacked entries use furthest expiration", func(t *testing.T) {
		t.Parallel()

		entries := []*types.WhitelistEntry{
			{
				SteamID:       "76561198000000001",
				GrantedAt:     now.AddDate(0, 0, -10),
				DurationValue: intPtr(30),
				DurationType:  enum.DurationTypeDays,
			},
			{
				SteamID:       "76561198000000001",
				GrantedAt:     now.AddDate(0, 0, -2),
				DurationValue: intPtr(3),
				DurationType:  enum.DurationTypeMonths,
			},
		}

		status := types.ComputeWhitelistStatus(entries, now)
		require.True(t, status.HasWhitelist)
		assert.Equal(t, 2, status.ActiveEntries)
		assert.False(t, status.Permanent)

		require.NotNil(t, status.ExpiresAt)
		assert.Equal(t, types.AddCalendarMonths(now.AddDate(0, 0, -2), 3), *status.ExpiresAt)
	})

	t.Run("permanent entry wins over expiring entries", func(t *testing.T) {
		t.Parallel()

		entries := []*types.WhitelistEntry{
			{
				SteamID:       "76561198000000001",
				GrantedAt:     now.AddDate(0, 0, -1),
				DurationValue: intPtr(7),
				DurationType:  enum.DurationTypeDays,
			},
			{SteamID: "76561198000000001", GrantedAt: now.AddDate(-1, 0, 0)},
		}

		status := types.ComputeWhitelistStatus(entries, now)
		require.True(t, status.HasWhitelist)
		assert.True(t, status.Permanent)
		assert.Nil(t, status.ExpiresAt)
		assert.Equal(t, 2, status.ActiveEntries)
	})

	t.Run("expired and revoked entries are ignored", func(t *testing.T) {
		t.Parallel()

		entries := []*types.WhitelistEntry{
			{
				SteamID:       "76561198000000001",
				GrantedAt:     now.AddDate(0, 0, -60),
				DurationValue: intPtr(30),
				DurationType:  enum.DurationTypeDays,
			},
			{SteamID: "76561198000000001", GrantedAt: now, Revoked: true},
		}

		status := types.ComputeWhitelistStatus(entries, now)
		assert.False(t, status.HasWhitelist)
		assert.Equal(t, 0, status.ActiveEntries)
	})
}
