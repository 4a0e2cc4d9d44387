package types_test

import (
	"testing"
	"time"

	"github.com/squadhub/squadlink/internal/database/types"
	"github.com/stretchr/testify/assert"
)

func TestIsValidSteamID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		steamID string
		want    bool
	}{
		{name: "valid", steamID: "76561198012345678", want: true},
		{name: "too short", steamID: "7656119801234567", want: false},
		{name: "too long", steamID: "765611980123456789", want: false},
		{name: "wrong prefix", steamID: "86561198012345678", want: false},
		{name: "letters", steamID: "7656119801234567a", want: false},
		{name: "empty", steamID: "", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, types.IsValidSteamID(tt.steamID))
		})
	}
}

func TestIsValidEOSID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		eosID string
		want  bool
	}{
		{name: "valid", eosID: "0002a1b2c3d4e5f60718293a4b5c6d7e", want: true},
		{name: "uppercase rejected", eosID: "0002A1B2C3D4E5F60718293A4B5C6D7E", want: false},
		{name: "too short", eosID: "0002a1b2c3d4e5f6", want: false},
		{name: "non-hex", eosID: "0002a1b2c3d4e5f60718293a4b5c6d7g", want: false},
		{name: "empty", eosID: "", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, types.IsValidEOSID(tt.eosID))
		})
	}
}

func TestRelinkBlockedUntil(t *testing.T) {
	t.Parallel()

	unlinkedAt := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	cooldown := 30 * 24 * time.Hour

	record := &types.UnlinkRecord{
		DiscordUserID: 1000,
		SteamID:       "76561198000000001",
		UnlinkedAt:    unlinkedAt,
	}

	t.Run("different steam ID blocked until cooldown", func(t *testing.T) {
		t.Parallel()

		until := record.RelinkBlockedUntil("76561198000000002", cooldown)
		assert.Equal(t, unlinkedAt.Add(cooldown), until)
	})

	t.Run("same steam ID exempt", func(t *testing.T) {
		t.Parallel()

		until := record.RelinkBlockedUntil("76561198000000001", cooldown)
		assert.True(t, until.IsZero())
	})

	t.Run("nil record never blocks", func(t *testing.T) {
		t.Parallel()

		var none *types.UnlinkRecord

		until := none.RelinkBlockedUntil("76561198000000002", cooldown)
		assert.True(t, until.IsZero())
	})
}
