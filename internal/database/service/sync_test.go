package service_test

import (
	"testing"
	"time"

	"github.com/squadhub/squadlink/internal/database/service"
	"github.com/squadhub/squadlink/internal/database/types"
	"github.com/squadhub/squadlink/internal/database/types/enum"
	"github.com/squadhub/squadlink/internal/roles"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	staffRoleID  = uint64(100)
	memberRoleID = uint64(200)
)

func testMapping(t *testing.T) *roles.Mapping {
	t.Helper()

	mapping, err := roles.NewMapping([]roles.GroupConfig{
		{Name: "Admin", RoleID: staffRoleID, Tier: "staff", Priority: 100},
		{Name: "Member", RoleID: memberRoleID, Tier: "member", Priority: 10},
	})
	require.NoError(t, err)

	return mapping
}

func verifiedLink() *types.PlayerLink {
	return &types.PlayerLink{
		DiscordUserID: 1000,
		SteamID:       "76561198000000001",
		Source:        enum.LinkSourceSelfVerified,
		Confidence:    enum.LinkSourceSelfVerified.Confidence(),
		IsPrimary:     true,
	}
}

func adminLink() *types.PlayerLink {
	link := verifiedLink()
	link.Source = enum.LinkSourceManualAdmin
	link.Confidence = enum.LinkSourceManualAdmin.Confidence()

	return link
}

func TestPlanMemberSync(t *testing.T) {
	t.Parallel()

	mapping := testMapping(t)
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	t.Run("no tracked group", func(t *testing.T) {
		t.Parallel()

		decision := service.PlanMemberSync(verifiedLink(), nil, []uint64{999}, nil, mapping, now)
		assert.Equal(t, enum.SyncOutcomeNone, decision.Outcome)
		assert.Empty(t, decision.RevokeIDs)
	})

	t.Run("tracked group without link", func(t *testing.T) {
		t.Parallel()

		group := mapping.ByRoleID(memberRoleID)
		decision := service.PlanMemberSync(nil, group, []uint64{memberRoleID}, nil, mapping, now)
		assert.Equal(t, enum.SyncOutcomeNoLink, decision.Outcome)
	})

	t.Run("member tier grants at any confidence", func(t *testing.T) {
		t.Parallel()

		group := mapping.ByRoleID(memberRoleID)
		decision := service.PlanMemberSync(adminLink(), group, []uint64{memberRoleID}, nil, mapping, now)
		assert.Equal(t, enum.SyncOutcomeGranted, decision.Outcome)
	})

	t.Run("staff tier blocked below full confidence", func(t *testing.T) {
		t.Parallel()

		group := mapping.ByRoleID(staffRoleID)
		decision := service.PlanMemberSync(adminLink(), group, []uint64{staffRoleID}, nil, mapping, now)

		assert.Equal(t, enum.SyncOutcomeBlocked, decision.Outcome)
		assert.InDelta(t, 0.7, decision.ActualConfidence, 0.001)
		assert.InDelta(t, roles.MinStaffConfidence, decision.RequiredConfidence, 0.001)
	})

	t.Run("staff tier grants at full confidence", func(t *testing.T) {
		t.Parallel()

		group := mapping.ByRoleID(staffRoleID)
		decision := service.PlanMemberSync(verifiedLink(), group, []uint64{staffRoleID}, nil, mapping, now)
		assert.Equal(t, enum.SyncOutcomeGranted, decision.Outcome)
	})

	t.Run("existing active entry kept", func(t *testing.T) {
		t.Parallel()

		group := mapping.ByRoleID(memberRoleID)
		entries := []*types.WhitelistEntry{
			{
				ID:        1,
				SteamID:   "76561198000000001",
				Reason:    enum.WhitelistReasonMemberRole,
				GrantedAt: now.AddDate(0, 0, -1),
			},
		}

		decision := service.PlanMemberSync(verifiedLink(), group, []uint64{memberRoleID}, entries, mapping, now)
		assert.Equal(t, enum.SyncOutcomeKept, decision.Outcome)
		assert.Empty(t, decision.RevokeIDs)
	})

	t.Run("expired role entry triggers regrant", func(t *testing.T) {
		t.Parallel()

		expired := 0
		group := mapping.ByRoleID(memberRoleID)
		entries := []*types.WhitelistEntry{
			{
				ID:            1,
				SteamID:       "76561198000000001",
				Reason:        enum.WhitelistReasonMemberRole,
				GrantedAt:     now.AddDate(0, -2, 0),
				DurationValue: &expired,
				DurationType:  enum.DurationTypeDays,
			},
		}

		decision := service.PlanMemberSync(verifiedLink(), group, []uint64{memberRoleID}, entries, mapping, now)
		assert.Equal(t, enum.SyncOutcomeGranted, decision.Outcome)
		assert.Empty(t, decision.RevokeIDs, "inactive entries are not revoked")
	})

	t.Run("role-derived entry without backing role revoked", func(t *testing.T) {
		t.Parallel()

		entries := []*types.WhitelistEntry{
			{
				ID:        7,
				SteamID:   "76561198000000001",
				Reason:    enum.WhitelistReasonStaffRole,
				GrantedAt: now.AddDate(0, 0, -1),
			},
			{
				ID:        8,
				SteamID:   "76561198000000001",
				Reason:    enum.WhitelistReasonDonation,
				GrantedAt: now.AddDate(0, 0, -1),
			},
		}

		decision := service.PlanMemberSync(verifiedLink(), nil, []uint64{999}, entries, mapping, now)

		assert.Equal(t, enum.SyncOutcomeNone, decision.Outcome)
		assert.Equal(t, []uint64{7}, decision.RevokeIDs, "independent grants are never touched")
	})

	t.Run("demotion revokes staff entry and grants member entry", func(t *testing.T) {
		t.Parallel()

		group := mapping.ByRoleID(memberRoleID)
		entries := []*types.WhitelistEntry{
			{
				ID:        3,
				SteamID:   "76561198000000001",
				Reason:    enum.WhitelistReasonStaffRole,
				GrantedAt: now.AddDate(0, 0, -1),
			},
		}

		decision := service.PlanMemberSync(verifiedLink(), group, []uint64{memberRoleID}, entries, mapping, now)

		assert.Equal(t, enum.SyncOutcomeGranted, decision.Outcome)
		assert.Equal(t, []uint64{3}, decision.RevokeIDs)
	})
}

func TestPlanSupersededRevocations(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	primary := verifiedLink()
	old := &types.PlayerLink{
		DiscordUserID: 1000,
		SteamID:       "76561198000000002",
		Source:        enum.LinkSourceManualAdmin,
		Confidence:    enum.LinkSourceManualAdmin.Confidence(),
	}

	entries := map[string][]*types.WhitelistEntry{
		primary.SteamID: {
			{ID: 1, SteamID: primary.SteamID, Reason: enum.WhitelistReasonMemberRole, GrantedAt: now.AddDate(0, 0, -1)},
		},
		old.SteamID: {
			{ID: 2, SteamID: old.SteamID, Reason: enum.WhitelistReasonMemberRole, GrantedAt: now.AddDate(0, -1, 0)},
			{ID: 3, SteamID: old.SteamID, Reason: enum.WhitelistReasonDonation, GrantedAt: now.AddDate(0, -1, 0)},
			{ID: 4, SteamID: old.SteamID, Reason: enum.WhitelistReasonStaffRole, GrantedAt: now.AddDate(0, -1, 0), Revoked: true},
		},
	}

	revocations := service.PlanSupersededRevocations([]*types.PlayerLink{primary, old}, entries, now)

	require.Len(t, revocations, 1)
	assert.Equal(t, old.SteamID, revocations[0].SteamID)
	assert.Equal(t, []uint64{2}, revocations[0].IDs,
		"primary identity, independent grants, and revoked rows stay untouched")

	assert.Empty(t, service.PlanSupersededRevocations([]*types.PlayerLink{primary}, entries, now),
		"a lone primary link has nothing to supersede")
}
