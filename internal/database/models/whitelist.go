package models

import (
	"context"
	"fmt"
	"time"

	"github.com/squadhub/squadlink/internal/database/dbretry"
	"github.com/squadhub/squadlink/internal/database/types"
	"github.com/squadhub/squadlink/internal/database/types/enum"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// WhitelistModel handles database operations for whitelist entries.
type WhitelistModel struct {
	db     *bun.DB
	logger *zap.Logger
}

// NewWhitelist creates a new whitelist model instance.
func NewWhitelist(db *bun.DB, logger *zap.Logger) *WhitelistModel {
	return &WhitelistModel{
		db:     db,
		logger: logger.Named("db_whitelist"),
	}
}

// Insert stores a new whitelist entry. Stacking is intentional: no duplicate
// check happens here, callers decide whether to skip.
func (m *WhitelistModel) Insert(ctx context.Context, entry *types.WhitelistEntry) error {
	return dbretry.NoResult(ctx, func(ctx context.Context) error {
		if _, err := m.db.NewInsert().Model(entry).Exec(ctx); err != nil {
			return fmt.Errorf("failed to insert whitelist entry: %w", err)
		}

		return nil
	})
}

// GetBySteamID returns entries for a Steam ID, newest grant first. Revoked
// entries are included only when requested (audit views).
func (m *WhitelistModel) GetBySteamID(
	ctx context.Context, steamID string, includeRevoked bool,
) ([]*types.WhitelistEntry, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) ([]*types.WhitelistEntry, error) {
		var entries []*types.WhitelistEntry

		query := m.db.NewSelect().
			Model(&entries).
			Where("steam_id = ?", steamID).
			Order("granted_at DESC")

		if !includeRevoked {
			query = query.Where("NOT revoked")
		}

		if err := query.Scan(ctx); err != nil {
			return nil, fmt.Errorf("failed to get whitelist entries: %w", err)
		}

		return entries, nil
	})
}

// RevokeActive soft-deletes every currently-active entry for a Steam ID and
// returns the count. Zero active entries is a no-op, not an error. Expiry is
// calendar-aware and computed in Go, so candidates are selected and filtered
// before the update, all inside one transaction.
func (m *WhitelistModel) RevokeActive(
	ctx context.Context, steamID string, revokedBy uint64, note string,
) (int64, error) {
	now := time.Now()

	var revoked int64

	err := dbretry.Transaction(ctx, m.db, func(ctx context.Context, tx bun.Tx) error {
		var candidates []*types.WhitelistEntry

		err := tx.NewSelect().
			Model(&candidates).
			Where("steam_id = ? AND NOT revoked", steamID).
			For("UPDATE").
			Scan(ctx)
		if err != nil {
			return fmt.Errorf("failed to select revoke candidates: %w", err)
		}

		ids := make([]uint64, 0, len(candidates))
		for _, entry := range candidates {
			if entry.IsActive(now) {
				ids = append(ids, entry.ID)
			}
		}

		if len(ids) == 0 {
			return nil
		}

		if err := m.revokeByIDs(ctx, tx, ids, revokedBy, note, now); err != nil {
			return err
		}

		revoked = int64(len(ids))

		return nil
	})
	if err != nil {
		return 0, err
	}

	m.logger.Debug("Revoked active whitelist entries",
		zap.String("steamID", steamID),
		zap.Int64("count", revoked))

	return revoked, nil
}

// RevokeByIDs soft-deletes specific entries.
func (m *WhitelistModel) RevokeByIDs(
	ctx context.Context, ids []uint64, revokedBy uint64, note string,
) error {
	if len(ids) == 0 {
		return nil
	}

	return dbretry.NoResult(ctx, func(ctx context.Context) error {
		return m.revokeByIDs(ctx, m.db, ids, revokedBy, note, time.Now())
	})
}

func (m *WhitelistModel) revokeByIDs(
	ctx context.Context, tx bun.IDB, ids []uint64, revokedBy uint64, note string, now time.Time,
) error {
	if _, err := m.revokeQuery(tx, ids, revokedBy, note, now).Exec(ctx); err != nil {
		return fmt.Errorf("failed to revoke whitelist entries: %w", err)
	}

	return nil
}

// revokeQuery builds the soft-delete update. The revocation note goes to its
// own column; the grant-time note stays untouched for audit history.
func (m *WhitelistModel) revokeQuery(
	tx bun.IDB, ids []uint64, revokedBy uint64, note string, now time.Time,
) *bun.UpdateQuery {
	return tx.NewUpdate().
		Model((*types.WhitelistEntry)(nil)).
		Set("revoked = TRUE").
		Set("revoked_at = ?", now).
		Set("revoked_by = ?", revokedBy).
		Set("revoke_note = ?", note).
		Where("id IN (?)", bun.In(ids))
}

// GetActiveCandidates returns all non-revoked entries. Callers apply the
// calendar-aware activity filter.
func (m *WhitelistModel) GetActiveCandidates(ctx context.Context) ([]*types.WhitelistEntry, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) ([]*types.WhitelistEntry, error) {
		var entries []*types.WhitelistEntry

		err := m.db.NewSelect().
			Model(&entries).
			Where("NOT revoked").
			Order("steam_id ASC", "granted_at DESC").
			Scan(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get active candidates: %w", err)
		}

		return entries, nil
	})
}

// HasActiveEntryWithReason checks whether a Steam ID already holds an active
// entry of the given reason, used to keep imports and sync grants idempotent.
func (m *WhitelistModel) HasActiveEntryWithReason(
	ctx context.Context, steamID string, reason enum.WhitelistReason,
) (bool, error) {
	entries, err := m.GetBySteamID(ctx, steamID, false)
	if err != nil {
		return false, err
	}

	now := time.Now()

	for _, entry := range entries {
		if entry.Reason == reason && entry.IsActive(now) {
			return true, nil
		}
	}

	return false, nil
}
