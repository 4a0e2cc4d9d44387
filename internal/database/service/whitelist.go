package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/squadhub/squadlink/internal/battlemetrics"
	"github.com/squadhub/squadlink/internal/database/models"
	"github.com/squadhub/squadlink/internal/database/types"
	"github.com/squadhub/squadlink/internal/database/types/enum"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// importConcurrency bounds concurrent per-player imports during a migration
// pass.
const importConcurrency = 4

// FlagSource lists players carrying a flag on the external player-management
// API, for whitelist migration.
type FlagSource interface {
	PlayersWithFlag(ctx context.Context, flagID string) ([]battlemetrics.Player, error)
}

// WhitelistService handles whitelist grant business logic. Grants stack:
// extending inserts a new entry rather than mutating one, and effective
// status is always computed from raw rows.
type WhitelistService struct {
	entries *models.WhitelistModel
	links   *models.LinkModel
	audit   *models.AuditModel
	logger  *zap.Logger
}

// NewWhitelist creates a new whitelist service.
func NewWhitelist(
	entries *models.WhitelistModel, links *models.LinkModel,
	audit *models.AuditModel, logger *zap.Logger,
) *WhitelistService {
	return &WhitelistService{
		entries: entries,
		links:   links,
		audit:   audit,
		logger:  logger.Named("whitelist_service"),
	}
}

// GrantParams describes a whitelist grant.
type GrantParams struct {
	SteamID       string
	EOSID         string
	Username      string
	Reason        enum.WhitelistReason
	DurationValue *int // nil = permanent
	DurationType  enum.DurationType
	GrantedBy     uint64
	Note          string
	Metadata      map[string]any

	// DiscordUserID, when set, links the grantee at whitelist-created
	// confidence if they have no primary link yet.
	DiscordUserID uint64
}

// Grant inserts a new non-revoked entry. Duplicate checking is deliberately
// absent here; callers that want to skip stacking do so themselves.
func (s *WhitelistService) Grant(ctx context.Context, params GrantParams) (*types.WhitelistEntry, error) {
	if !types.IsValidSteamID(params.SteamID) {
		return nil, fmt.Errorf("%w: %s", types.ErrInvalidSteamID, params.SteamID)
	}

	if params.DurationValue != nil && *params.DurationValue < 0 {
		return nil, fmt.Errorf("%w: %d", types.ErrInvalidDuration, *params.DurationValue)
	}

	entry := &types.WhitelistEntry{
		SteamID:       params.SteamID,
		EOSID:         params.EOSID,
		Username:      params.Username,
		Reason:        params.Reason,
		GrantedAt:     time.Now(),
		DurationValue: params.DurationValue,
		DurationType:  params.DurationType,
		GrantedBy:     params.GrantedBy,
		Note:          params.Note,
		Metadata:      params.Metadata,
	}

	err := s.entries.Insert(ctx, entry)

	s.audit.Log(ctx, &types.AuditLog{
		Action:          enum.AuditActionWhitelistGrant,
		ActorID:         params.GrantedBy,
		TargetDiscordID: params.DiscordUserID,
		TargetSteamID:   params.SteamID,
		After: map[string]any{
			"reason":         params.Reason.String(),
			"duration_value": params.DurationValue,
			"duration_type":  params.DurationType.String(),
		},
		Success: err == nil,
		Error:   errString(err),
	})

	if err != nil {
		return nil, err
	}

	if params.DiscordUserID != 0 {
		s.ensureLink(ctx, params)
	}

	s.logger.Info("Granted whitelist",
		zap.String("steamID", params.SteamID),
		zap.String("reason", params.Reason.String()),
		zap.Uint64("grantedBy", params.GrantedBy))

	return entry, nil
}

// ensureLink creates a whitelist-created link for grantees with no primary
// link, so the new entry is attributable to a Discord user. An existing
// primary link of any source is left alone. A link failure does not undo the
// grant; a whitelisted-but-unlinked player is preferable to none.
func (s *WhitelistService) ensureLink(ctx context.Context, params GrantParams) {
	_, err := s.links.GetPrimaryByDiscordID(ctx, params.DiscordUserID)
	if err == nil {
		return
	}

	if !errors.Is(err, types.ErrLinkNotFound) {
		s.logger.Warn("Failed to check for existing link", zap.Error(err))
		return
	}

	link := &types.PlayerLink{
		DiscordUserID: params.DiscordUserID,
		SteamID:       params.SteamID,
		EOSID:         params.EOSID,
		Username:      params.Username,
		Source:        enum.LinkSourceWhitelistCreated,
		Confidence:    enum.LinkSourceWhitelistCreated.Confidence(),
		IsPrimary:     true,
		Metadata:      map[string]any{"created_by_grant": params.Reason.String()},
	}

	if _, _, err := s.links.CreateOrUpdate(ctx, link); err != nil {
		s.logger.Warn("Failed to create whitelist-created link",
			zap.Uint64("discordUserID", params.DiscordUserID),
			zap.String("steamID", params.SteamID),
			zap.Error(err))

		return
	}

	s.audit.Log(ctx, &types.AuditLog{
		Action:          enum.AuditActionLinkCreate,
		ActorID:         params.GrantedBy,
		TargetDiscordID: params.DiscordUserID,
		TargetSteamID:   params.SteamID,
		After: map[string]any{
			"source":     enum.LinkSourceWhitelistCreated.String(),
			"confidence": enum.LinkSourceWhitelistCreated.Confidence(),
		},
		Success: true,
	})
}

// Extend inserts a new stacked entry for the Steam ID rather than mutating an
// existing one, so each extension stays a discrete auditable event.
func (s *WhitelistService) Extend(
	ctx context.Context, steamID string, months int, grantedBy uint64,
) (*types.WhitelistEntry, error) {
	if months <= 0 {
		return nil, fmt.Errorf("%w: %d months", types.ErrInvalidDuration, months)
	}

	if !types.IsValidSteamID(steamID) {
		return nil, fmt.Errorf("%w: %s", types.ErrInvalidSteamID, steamID)
	}

	entry := &types.WhitelistEntry{
		SteamID:       steamID,
		Reason:        enum.WhitelistReasonDonation,
		GrantedAt:     time.Now(),
		DurationValue: &months,
		DurationType:  enum.DurationTypeMonths,
		GrantedBy:     grantedBy,
		Note:          fmt.Sprintf("extended by %d months", months),
	}

	err := s.entries.Insert(ctx, entry)

	s.audit.Log(ctx, &types.AuditLog{
		Action:        enum.AuditActionWhitelistExtend,
		ActorID:       grantedBy,
		TargetSteamID: steamID,
		After:         map[string]any{"months": months},
		Success:       err == nil,
		Error:         errString(err),
	})

	if err != nil {
		return nil, err
	}

	return entry, nil
}

// Revoke soft-deletes all currently-active entries for the Steam ID and
// returns the count. Revoking with zero active entries is a reported no-op,
// not an error.
func (s *WhitelistService) Revoke(
	ctx context.Context, steamID, reason string, revokedBy uint64,
) (int64, error) {
	count, err := s.entries.RevokeActive(ctx, steamID, revokedBy, reason)

	s.audit.Log(ctx, &types.AuditLog{
		Action:        enum.AuditActionWhitelistRevoke,
		ActorID:       revokedBy,
		TargetSteamID: steamID,
		After:         map[string]any{"revoked": count, "reason": reason},
		Success:       err == nil,
		Error:         errString(err),
	})

	if err != nil {
		return 0, err
	}

	if count == 0 {
		s.logger.Debug("Revoke was a no-op", zap.String("steamID", steamID))
	}

	return count, nil
}

// Status computes the current whitelist status for a Steam ID from raw rows.
func (s *WhitelistService) Status(ctx context.Context, steamID string) (*types.WhitelistStatus, error) {
	entries, err := s.entries.GetBySteamID(ctx, steamID, false)
	if err != nil {
		return nil, err
	}

	return types.ComputeWhitelistStatus(entries, time.Now()), nil
}

// Entries returns the raw entries for a Steam ID.
func (s *WhitelistService) Entries(
	ctx context.Context, steamID string, includeRevoked bool,
) ([]*types.WhitelistEntry, error) {
	return s.entries.GetBySteamID(ctx, steamID, includeRevoked)
}

// ActiveEntries returns every currently-active entry with a valid Steam ID,
// the stable query backing the whitelist-serving endpoint.
func (s *WhitelistService) ActiveEntries(ctx context.Context) ([]*types.WhitelistEntry, error) {
	candidates, err := s.entries.GetActiveCandidates(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	active := make([]*types.WhitelistEntry, 0, len(candidates))

	for _, entry := range candidates {
		if entry.IsActive(now) && types.IsValidSteamID(entry.SteamID) {
			active = append(active, entry)
		}
	}

	return active, nil
}

// ImportReport summarizes one migration pass from the player-management API.
type ImportReport struct {
	mu sync.Mutex

	Imported int
	Skipped  int
	Failed   int
}

func (r *ImportReport) add(field *int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	*field++
}

// ImportFromFlag migrates players carrying the given flag on the external
// player-management API into permanent import entries. Players that already
// hold an active import entry are skipped, so the migration can be re-run.
// Per-player failures are counted rather than aborting the pass.
func (s *WhitelistService) ImportFromFlag(
	ctx context.Context, source FlagSource, flagID string, importedBy uint64,
) (*ImportReport, error) {
	players, err := source.PlayersWithFlag(ctx, flagID)
	if err != nil {
		return nil, err
	}

	report := &ImportReport{}
	sem := semaphore.NewWeighted(importConcurrency)

	var wg sync.WaitGroup

	for _, player := range players {
		if !types.IsValidSteamID(player.SteamID) {
			report.add(&report.Skipped)
			continue
		}

		if err := sem.Acquire(ctx, 1); err != nil {
			return report, err
		}

		wg.Add(1)

		go func() {
			defer sem.Release(1)
			defer wg.Done()

			s.importPlayer(ctx, player, flagID, importedBy, report)
		}()
	}

	wg.Wait()

	s.audit.Log(ctx, &types.AuditLog{
		Action:  enum.AuditActionWhitelistImport,
		ActorID: importedBy,
		After: map[string]any{
			"imported": report.Imported,
			"skipped":  report.Skipped,
			"failed":   report.Failed,
		},
		Success: true,
	})

	s.logger.Info("Imported whitelist entries",
		zap.Int("imported", report.Imported),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed))

	return report, nil
}

// importPlayer imports a single flagged player, skipping those that already
// hold an active import entry.
func (s *WhitelistService) importPlayer(
	ctx context.Context, player battlemetrics.Player, flagID string,
	importedBy uint64, report *ImportReport,
) {
	exists, err := s.entries.HasActiveEntryWithReason(ctx, player.SteamID, enum.WhitelistReasonImport)
	if err != nil {
		s.logger.Error("Failed to check existing import entry",
			zap.String("steamID", player.SteamID), zap.Error(err))
		report.add(&report.Failed)

		return
	}

	if exists {
		report.add(&report.Skipped)
		return
	}

	entry := &types.WhitelistEntry{
		SteamID:   player.SteamID,
		Username:  player.Name,
		Reason:    enum.WhitelistReasonImport,
		GrantedAt: time.Now(),
		GrantedBy: importedBy,
		Metadata:  map[string]any{"bm_player_id": player.ID, "bm_flag_id": flagID},
	}

	if err := s.entries.Insert(ctx, entry); err != nil {
		s.logger.Error("Failed to insert import entry",
			zap.String("steamID", player.SteamID), zap.Error(err))
		report.add(&report.Failed)

		return
	}

	report.add(&report.Imported)
}
