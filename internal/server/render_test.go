package server_test

import (
	"strings"
	"testing"
	"time"

	"github.com/squadhub/squadlink/internal/database/types"
	"github.com/squadhub/squadlink/internal/database/types/enum"
	"github.com/squadhub/squadlink/internal/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderAdminsCfg(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("empty whitelist still renders header", func(t *testing.T) {
		t.Parallel()

		output := server.RenderAdminsCfg(nil, now)

		assert.Contains(t, output, "// Generated 2024-06-01T12:00:00Z")
		assert.Contains(t, output, "Group=Whitelist:reserve")
		assert.NotContains(t, output, "Admin=")
	})

	t.Run("one line per entry", func(t *testing.T) {
		t.Parallel()

		entries := []*types.WhitelistEntry{
			{
				SteamID:  "76561198000000001",
				Username: "PlayerOne",
				Reason:   enum.WhitelistReasonDonation,
			},
			{
				SteamID: "76561198000000002",
				Reason:  enum.WhitelistReasonMemberRole,
			},
		}

		output := server.RenderAdminsCfg(entries, now)

		assert.Contains(t, output, "Admin=76561198000000001:Whitelist // PlayerOne - donation")
		assert.Contains(t, output, "Admin=76561198000000002:Whitelist // member-role")
	})

	t.Run("stacked entries collapse to one line", func(t *testing.T) {
		t.Parallel()

		entries := []*types.WhitelistEntry{
			{SteamID: "76561198000000001", Username: "PlayerOne", Reason: enum.WhitelistReasonDonation},
			{SteamID: "76561198000000001", Username: "PlayerOne", Reason: enum.WhitelistReasonMemberRole},
		}

		output := server.RenderAdminsCfg(entries, now)

		lines := 0
		for _, line := range strings.Split(output, "\n") {
			if strings.HasPrefix(line, "Admin=") {
				lines++
			}
		}

		require.Equal(t, 1, lines)
		assert.Contains(t, output, "PlayerOne - donation", "first entry's reason wins")
	})

	t.Run("deterministic for a given entry order", func(t *testing.T) {
		t.Parallel()

		entries := []*types.WhitelistEntry{
			{SteamID: "76561198000000001", Reason: enum.WhitelistReasonDonation},
			{SteamID: "76561198000000002", Reason: enum.WhitelistReasonImport},
		}

		assert.Equal(t, server.RenderAdminsCfg(entries, now), server.RenderAdminsCfg(entries, now))
	})
}
