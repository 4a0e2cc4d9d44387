package service

import (
	"context"
	"fmt"
	"time"

	"github.com/squadhub/squadlink/internal/database/models"
	"github.com/squadhub/squadlink/internal/database/types"
	"github.com/squadhub/squadlink/internal/database/types/enum"
	"go.uber.org/zap"
)

// LinkService handles account-link business logic: validation, the re-link
// cooldown, the source-determined confidence table, and the audited admin
// override path.
type LinkService struct {
	links          *models.LinkModel
	audit          *models.AuditModel
	relinkCooldown time.Duration
	logger         *zap.Logger
}

// NewLink creates a new link service.
func NewLink(
	links *models.LinkModel, audit *models.AuditModel,
	relinkCooldown time.Duration, logger *zap.Logger,
) *LinkService {
	return &LinkService{
		links:          links,
		audit:          audit,
		relinkCooldown: relinkCooldown,
		logger:         logger.Named("link_service"),
	}
}

// LinkParams describes a link request from any source.
type LinkParams struct {
	DiscordUserID uint64
	SteamID       string
	EOSID         string
	Username      string
	Source        enum.LinkSource
	ActorID       uint64 // 0 for self-service or system paths
	Metadata      map[string]any
}

// Link creates or upgrades the user's primary link. Confidence is always
// derived from the source; callers cannot choose a score. Returns the stored
// link and whether a new row was created.
func (s *LinkService) Link(ctx context.Context, params LinkParams) (*types.PlayerLink, bool, error) {
	if !types.IsValidSteamID(params.SteamID) {
		return nil, false, fmt.Errorf("%w: %s", types.ErrInvalidSteamID, params.SteamID)
	}

	if params.EOSID != "" && !types.IsValidEOSID(params.EOSID) {
		return nil, false, fmt.Errorf("%w: %s", types.ErrInvalidEOSID, params.EOSID)
	}

	if err := s.checkRelinkCooldown(ctx, params.DiscordUserID, params.SteamID); err != nil {
		return nil, false, err
	}

	link := &types.PlayerLink{
		DiscordUserID: params.DiscordUserID,
		SteamID:       params.SteamID,
		EOSID:         params.EOSID,
		Username:      params.Username,
		Source:        params.Source,
		Confidence:    params.Source.Confidence(),
		IsPrimary:     true,
		Metadata:      params.Metadata,
	}

	stored, created, err := s.links.CreateOrUpdate(ctx, link)

	action := enum.AuditActionLinkUpdate
	if created {
		action = enum.AuditActionLinkCreate
	}

	s.audit.Log(ctx, &types.AuditLog{
		Action:          action,
		ActorID:         params.ActorID,
		TargetDiscordID: params.DiscordUserID,
		TargetSteamID:   params.SteamID,
		After: map[string]any{
			"source":     params.Source.String(),
			"confidence": params.Source.Confidence(),
		},
		Success: err == nil,
		Error:   errString(err),
	})

	if err != nil {
		return nil, false, err
	}

	s.logger.Info("Linked player",
		zap.Uint64("discordUserID", params.DiscordUserID),
		zap.String("steamID", params.SteamID),
		zap.String("source", params.Source.String()),
		zap.Bool("created", created))

	return stored, created, nil
}

// checkRelinkCooldown blocks linking a different Steam ID within the cooldown
// window after an unlink. Re-linking the unlinked Steam ID itself is exempt.
func (s *LinkService) checkRelinkCooldown(ctx context.Context, discordUserID uint64, steamID string) error {
	record, err := s.links.LatestUnlink(ctx, discordUserID)
	if err != nil {
		return err
	}

	until := record.RelinkBlockedUntil(steamID, s.relinkCooldown)
	if !until.IsZero() && time.Now().Before(until) {
		return fmt.Errorf("%w: a different Steam ID may be linked after %s",
			types.ErrRelinkCooldown, until.Format("2006-01-02"))
	}

	return nil
}

// OverrideConfidence upgrades a link to maximum confidence. This is the only
// path that sets a score the source table does not; it requires an explicit
// actor and reason and is always audited.
func (s *LinkService) OverrideConfidence(
	ctx context.Context, discordUserID uint64, steamID string, actorID uint64, reason string,
) error {
	if reason == "" {
		return types.ErrReasonRequired
	}

	previous, err := s.links.OverrideConfidence(ctx, discordUserID, steamID, enum.LinkSourceSelfVerified.Confidence())

	s.audit.Log(ctx, &types.AuditLog{
		Action:          enum.AuditActionConfidenceOverride,
		ActorID:         actorID,
		TargetDiscordID: discordUserID,
		TargetSteamID:   steamID,
		Before:          map[string]any{"confidence": previous},
		After:           map[string]any{"confidence": 1.0, "reason": reason},
		Success:         err == nil,
		Error:           errString(err),
	})

	if err != nil {
		return err
	}

	s.logger.Info("Overrode link confidence",
		zap.Uint64("discordUserID", discordUserID),
		zap.String("steamID", steamID),
		zap.Uint64("actorID", actorID),
		zap.Float64("previous", previous))

	return nil
}

// Unlink removes the pair's links and records history, starting the re-link
// cooldown for other Steam IDs.
func (s *LinkService) Unlink(
	ctx context.Context, discordUserID uint64, steamID string, actorID uint64, reason string,
) error {
	removed, err := s.links.Unlink(ctx, discordUserID, steamID, reason)

	s.audit.Log(ctx, &types.AuditLog{
		Action:          enum.AuditActionLinkUnlink,
		ActorID:         actorID,
		TargetDiscordID: discordUserID,
		TargetSteamID:   steamID,
		After:           map[string]any{"removed": removed, "reason": reason},
		Success:         err == nil,
		Error:           errString(err),
	})

	return err
}

// PrimaryLink returns the user's primary link.
func (s *LinkService) PrimaryLink(ctx context.Context, discordUserID uint64) (*types.PlayerLink, error) {
	return s.links.GetPrimaryByDiscordID(ctx, discordUserID)
}

// LinksForUser returns all links recorded for a Discord user, primary first.
func (s *LinkService) LinksForUser(ctx context.Context, discordUserID uint64) ([]*types.PlayerLink, error) {
	return s.links.GetByDiscordID(ctx, discordUserID)
}

// LinksForSteamID returns all links recorded for a Steam ID.
func (s *LinkService) LinksForSteamID(ctx context.Context, steamID string) ([]*types.PlayerLink, error) {
	return s.links.GetBySteamID(ctx, steamID)
}

func errString(err error) string {
	if err == nil {
		return ""
	}

	return err.Error()
}
