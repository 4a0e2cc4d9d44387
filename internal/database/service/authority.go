package service

import (
	"context"
	"errors"
	"time"

	"github.com/squadhub/squadlink/internal/database/models"
	"github.com/squadhub/squadlink/internal/database/types"
	"github.com/squadhub/squadlink/internal/database/types/enum"
	"github.com/squadhub/squadlink/internal/roles"
	"go.uber.org/zap"
)

// AuthorityService answers the one question everything else asks: is this
// user whitelisted, and if not, exactly why not. It is a pure read-side
// aggregator over the link store, whitelist store, and live role membership.
type AuthorityService struct {
	entries *models.WhitelistModel
	links   *models.LinkModel
	mapping *roles.Mapping
	logger  *zap.Logger
}

// NewAuthority creates a new authority service.
func NewAuthority(
	entries *models.WhitelistModel, links *models.LinkModel,
	mapping *roles.Mapping, logger *zap.Logger,
) *AuthorityService {
	return &AuthorityService{
		entries: entries,
		links:   links,
		mapping: mapping,
		logger:  logger.Named("authority_service"),
	}
}

// EffectiveStatus is the single merged answer for one user.
type EffectiveStatus struct {
	Whitelisted   bool
	PrimarySource enum.WhitelistSource
	Database      *types.WhitelistStatus
	RoleGroup     *roles.Group
	Link          *types.PlayerLink

	// Set when Whitelisted is false.
	DenyReason         enum.DenyReason
	ActualConfidence   float64
	RequiredConfidence float64
}

// ResolveAuthority merges the database signal and the role signal into one
// effective status. Whitelisted is true when either signal is true. When both
// are, PrimarySource prefers the database signal for display only, since an
// explicit grant is more intentional than a role-derived default; the
// preference never changes the boolean. When neither is, the deny reason
// distinguishes unlinked users, confidence-blocked staff, and linked users
// with simply no active basis.
func ResolveAuthority(
	link *types.PlayerLink, dbStatus *types.WhitelistStatus, group *roles.Group,
) EffectiveStatus {
	status := EffectiveStatus{
		Database:  dbStatus,
		RoleGroup: group,
		Link:      link,
	}

	dbActive := dbStatus != nil && dbStatus.HasWhitelist

	roleActive := false
	roleBlocked := false

	if group != nil && link != nil {
		if group.Tier == enum.GroupTierStaff && link.Confidence < roles.MinStaffConfidence {
			roleBlocked = true
		} else {
			roleActive = true
		}
	}

	if dbActive || roleActive {
		status.Whitelisted = true

		if dbActive {
			status.PrimarySource = enum.WhitelistSourceDatabase
		} else {
			status.PrimarySource = enum.WhitelistSourceRole
		}

		return status
	}

	switch {
	case link == nil:
		status.DenyReason = enum.DenyReasonNoLink
	case roleBlocked:
		status.DenyReason = enum.DenyReasonInsufficientConfidence
		status.ActualConfidence = link.Confidence
		status.RequiredConfidence = roles.MinStaffConfidence
	default:
		status.DenyReason = enum.DenyReasonNoActiveGrant
	}

	return status
}

// GetWhitelistStatus loads the user's primary link, their raw whitelist rows,
// and their highest tracked group, then resolves them into one answer.
func (s *AuthorityService) GetWhitelistStatus(
	ctx context.Context, discordUserID uint64, roleIDs []uint64,
) (*EffectiveStatus, error) {
	link, err := s.links.GetPrimaryByDiscordID(ctx, discordUserID)
	if err != nil && !errors.Is(err, types.ErrLinkNotFound) {
		return nil, err
	}

	var dbStatus *types.WhitelistStatus

	if link != nil {
		entries, err := s.entries.GetBySteamID(ctx, link.SteamID, false)
		if err != nil {
			return nil, err
		}

		dbStatus = types.ComputeWhitelistStatus(entries, time.Now())
	}

	status := ResolveAuthority(link, dbStatus, s.mapping.Highest(roleIDs))

	s.logger.Debug("Resolved whitelist authority",
		zap.Uint64("discordUserID", discordUserID),
		zap.Bool("whitelisted", status.Whitelisted),
		zap.String("primarySource", status.PrimarySource.String()),
		zap.String("denyReason", status.DenyReason.String()))

	return &status, nil
}
