// Package roles maps tracked Discord role IDs to named access groups with a
// priority ordering. The mapping is built once from config at startup and is
// read-only afterwards.
package roles

import (
	"errors"
	"fmt"
	"sort"

	"github.com/squadhub/squadlink/internal/database/types/enum"
)

var (
	ErrDuplicateRole = errors.New("role ID mapped to more than one group")
	ErrNoGroups      = errors.New("no role groups configured")
)

// MinStaffConfidence is the link confidence required before a staff-tier
// group may produce any whitelist grant.
const MinStaffConfidence = 1.0

// Group is one tracked Discord role and the access it confers.
type Group struct {
	Name          string
	RoleID        uint64
	Tier          enum.GroupTier
	Priority      int // higher wins when a user holds several tracked roles
	Reason        enum.WhitelistReason
	DurationValue *int // nil = permanent while the role is held
	DurationType  enum.DurationType
}

// GroupConfig is the raw config shape a Group is parsed from.
type GroupConfig struct {
	Name          string `koanf:"name"`
	RoleID        uint64 `koanf:"role_id"`
	Tier          string `koanf:"tier"`
	Priority      int    `koanf:"priority"`
	Reason        string `koanf:"reason"`
	DurationValue *int   `koanf:"duration_value"`
	DurationType  string `koanf:"duration_type"`
}

// Mapping resolves Discord role IDs to groups.
type Mapping struct {
	groups []*Group
	byRole map[uint64]*Group
}

// NewMapping validates and indexes the configured role groups.
func NewMapping(configs []GroupConfig) (*Mapping, error) {
	if len(configs) == 0 {
		return nil, ErrNoGroups
	}

	groups := make([]*Group, 0, len(configs))
	byRole := make(map[uint64]*Group, len(configs))

	for _, cfg := range configs {
		tier, err := enum.GroupTierString(cfg.Tier)
		if err != nil {
			return nil, fmt.Errorf("group %q: %w", cfg.Name, err)
		}

		reason := enum.WhitelistReasonMemberRole
		if tier == enum.GroupTierStaff {
			reason = enum.WhitelistReasonStaffRole
		}

		if cfg.Reason != "" {
			reason, err = enum.WhitelistReasonString(cfg.Reason)
			if err != nil {
				return nil, fmt.Errorf("group %q: %w", cfg.Name, err)
			}
		}

		durationType := enum.DurationTypeDays
		if cfg.DurationType != "" {
			durationType, err = enum.DurationTypeString(cfg.DurationType)
			if err != nil {
				return nil, fmt.Errorf("group %q: %w", cfg.Name, err)
			}
		}

		group := &Group{
			Name:          cfg.Name,
			RoleID:        cfg.RoleID,
			Tier:          tier,
			Priority:      cfg.Priority,
			Reason:        reason,
			DurationValue: cfg.DurationValue,
			DurationType:  durationType,
		}

		if _, exists := byRole[group.RoleID]; exists {
			return nil, fmt.Errorf("%w: %d", ErrDuplicateRole, group.RoleID)
		}

		byRole[group.RoleID] = group
		groups = append(groups, group)
	}

	// Highest priority first for stable selection
	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].Priority > groups[j].Priority
	})

	return &Mapping{groups: groups, byRole: byRole}, nil
}

// ByRoleID returns the group a role ID maps to, or nil when untracked.
func (m *Mapping) ByRoleID(roleID uint64) *Group {
	return m.byRole[roleID]
}

// Highest returns the highest-priority tracked group among the held roles,
// or nil when none of them are tracked.
func (m *Mapping) Highest(roleIDs []uint64) *Group {
	held := make(map[uint64]struct{}, len(roleIDs))
	for _, id := range roleIDs {
		held[id] = struct{}{}
	}

	for _, group := range m.groups {
		if _, ok := held[group.RoleID]; ok {
			return group
		}
	}

	return nil
}

// Groups returns all tracked groups, highest priority first.
func (m *Mapping) Groups() []*Group {
	return m.groups
}

// HoldsGroupWithReason checks whether any held role maps to a tracked group
// granting entries of the given reason. Used by sync to decide whether a
// role-derived entry still has a backing role.
func (m *Mapping) HoldsGroupWithReason(roleIDs []uint64, reason enum.WhitelistReason) bool {
	for _, id := range roleIDs {
		if group, ok := m.byRole[id]; ok && group.Reason == reason {
			return true
		}
	}

	return false
}
