package service_test

import (
	"testing"

	"github.com/squadhub/squadlink/internal/database/service"
	"github.com/squadhub/squadlink/internal/database/types"
	"github.com/squadhub/squadlink/internal/database/types/enum"
	"github.com/squadhub/squadlink/internal/roles"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveAuthority(t *testing.T) {
	t.Parallel()

	mapping := testMapping(t)
	staffGroup := mapping.ByRoleID(staffRoleID)
	memberGroup := mapping.ByRoleID(memberRoleID)

	activeDB := &types.WhitelistStatus{HasWhitelist: true, ActiveEntries: 1}
	inactiveDB := &types.WhitelistStatus{}

	t.Run("database grant alone", func(t *testing.T) {
		t.Parallel()

		status := service.ResolveAuthority(verifiedLink(), activeDB, nil)
		require.True(t, status.Whitelisted)
		assert.Equal(t, enum.WhitelistSourceDatabase, status.PrimarySource)
	})

	t.Run("role alone", func(t *testing.T) {
		t.Parallel()

		status := service.ResolveAuthority(verifiedLink(), inactiveDB, memberGroup)
		require.True(t, status.Whitelisted)
		assert.Equal(t, enum.WhitelistSourceRole, status.PrimarySource)
	})

	t.Run("both signals prefer database for display", func(t *testing.T) {
		t.Parallel()

		status := service.ResolveAuthority(verifiedLink(), activeDB, memberGroup)
		require.True(t, status.Whitelisted)
		assert.Equal(t, enum.WhitelistSourceDatabase, status.PrimarySource)
	})

	t.Run("no link", func(t *testing.T) {
		t.Parallel()

		status := service.ResolveAuthority(nil, nil, memberGroup)
		require.False(t, status.Whitelisted)
		assert.Equal(t, enum.DenyReasonNoLink, status.DenyReason)
	})

	t.Run("staff role blocked on low confidence", func(t *testing.T) {
		t.Parallel()

		status := service.ResolveAuthority(adminLink(), inactiveDB, staffGroup)

		require.False(t, status.Whitelisted)
		assert.Equal(t, enum.DenyReasonInsufficientConfidence, status.DenyReason)
		assert.InDelta(t, 0.7, status.ActualConfidence, 0.001)
		assert.InDelta(t, roles.MinStaffConfidence, status.RequiredConfidence, 0.001)
	})

	t.Run("database grant overrides blocked staff role", func(t *testing.T) {
		t.Parallel()

		status := service.ResolveAuthority(adminLink(), activeDB, staffGroup)
		require.True(t, status.Whitelisted)
		assert.Equal(t, enum.WhitelistSourceDatabase, status.PrimarySource)
	})

	t.Run("linked with no basis", func(t *testing.T) {
		t.Parallel()

		status := service.ResolveAuthority(verifiedLink(), inactiveDB, nil)
		require.False(t, status.Whitelisted)
		assert.Equal(t, enum.DenyReasonNoActiveGrant, status.DenyReason)
	})
}
