package models

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/squadhub/squadlink/internal/database/dbretry"
	"github.com/squadhub/squadlink/internal/database/types"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// pgUniqueViolation is the PostgreSQL error code for unique_violation.
const pgUniqueViolation = "23505"

// isPrimaryConflict reports whether err is a unique violation of the
// one-primary-per-user index. The demote-then-write sequence runs inside one
// transaction, so this only fires when two transactions promote a primary
// link for the same user concurrently.
func isPrimaryConflict(err error) bool {
	var pgErr interface{ Field(field byte) string }
	if !errors.As(err, &pgErr) {
		return false
	}

	return pgErr.Field('C') == pgUniqueViolation &&
		strings.Contains(pgErr.Field('n'), "one_primary")
}

// LinkModel handles database operations for Discord-to-Steam account links.
type LinkModel struct {
	db     *bun.DB
	logger *zap.Logger
}

// NewLink creates a new link model instance.
func NewLink(db *bun.DB, logger *zap.Logger) *LinkModel {
	return &LinkModel{
		db:     db,
		logger: logger.Named("db_link"),
	}
}

// ApplyTx upserts a link inside an existing transaction. When link.IsPrimary
// is set, any other primary link for the same Discord user is demoted first;
// demotion and insert happen in the caller's transaction so a concurrent link
// can never observe two primaries. An existing row for the same
// (discord_user_id, steam_id) pair is updated in place, but its confidence is
// only raised, never lowered, by a weaker source re-linking the same pair.
// Returns the stored link and whether a new row was created.
func (m *LinkModel) ApplyTx(
	ctx context.Context, tx bun.IDB, link *types.PlayerLink,
) (*types.PlayerLink, bool, error) {
	now := time.Now()

	var existing types.PlayerLink

	err := tx.NewSelect().
		Model(&existing).
		Where("discord_user_id = ? AND steam_id = ?", link.DiscordUserID, link.SteamID).
		For("UPDATE").
		Scan(ctx)

	switch {
	case err == nil:
		// Re-link of a known pair: refresh identity fields, upgrade
		// confidence/source only when the new source is at least as trusted.
		existing.Username = link.Username
		if link.EOSID != "" {
			existing.EOSID = link.EOSID
		}

		if link.Confidence >= existing.Confidence {
			existing.Confidence = link.Confidence
			existing.Source = link.Source
		}

		if link.Metadata != nil {
			existing.Metadata = link.Metadata
		}

		existing.UpdatedAt = now

		if link.IsPrimary && !existing.IsPrimary {
			if err := m.demoteOthersTx(ctx, tx, link.DiscordUserID, link.SteamID, now); err != nil {
				return nil, false, err
			}

			existing.IsPrimary = true
		}

		if _, err := tx.NewUpdate().Model(&existing).WherePK().Exec(ctx); err != nil {
			if isPrimaryConflict(err) {
				return nil, false, fmt.Errorf("%w: %w", types.ErrDuplicatePrimary, err)
			}

			return nil, false, fmt.Errorf("failed to update link: %w", err)
		}

		return &existing, false, nil

	case errors.Is(err, sql.ErrNoRows):
		if link.IsPrimary {
			if err := m.demoteOthersTx(ctx, tx, link.DiscordUserID, link.SteamID, now); err != nil {
				return nil, false, err
			}
		}

		link.CreatedAt = now
		link.UpdatedAt = now

		if _, err := tx.NewInsert().Model(link).Exec(ctx); err != nil {
			if isPrimaryConflict(err) {
				return nil, false, fmt.Errorf("%w: %w", types.ErrDuplicatePrimary, err)
			}

			return nil, false, fmt.Errorf("failed to insert link: %w", err)
		}

		return link, true, nil

	default:
		return nil, false, fmt.Errorf("failed to look up link: %w", err)
	}
}

// demoteOthersTx clears the primary flag on every other link the Discord user
// holds. Superseded links stay in place for audit history.
func (m *LinkModel) demoteOthersTx(
	ctx context.Context, tx bun.IDB, discordUserID uint64, steamID string, now time.Time,
) error {
	_, err := tx.NewUpdate().
		Model((*types.PlayerLink)(nil)).
		Set("is_primary = FALSE").
		Set("updated_at = ?", now).
		Where("discord_user_id = ? AND is_primary AND steam_id <> ?", discordUserID, steamID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to demote prior primary link: %w", err)
	}

	return nil
}

// CreateOrUpdate upserts a link in its own transaction.
func (m *LinkModel) CreateOrUpdate(
	ctx context.Context, link *types.PlayerLink,
) (*types.PlayerLink, bool, error) {
	var (
		stored  *types.PlayerLink
		created bool
	)

	err := dbretry.Transaction(ctx, m.db, func(ctx context.Context, tx bun.Tx) error {
		var err error
		stored, created, err = m.ApplyTx(ctx, tx, link)

		return err
	})
	if err != nil {
		return nil, false, err
	}

	m.logger.Debug("Upserted player link",
		zap.Uint64("discordUserID", link.DiscordUserID),
		zap.String("steamID", link.SteamID),
		zap.Bool("created", created))

	return stored, created, nil
}

// GetPrimaryByDiscordID returns the user's primary link.
func (m *LinkModel) GetPrimaryByDiscordID(ctx context.Context, discordUserID uint64) (*types.PlayerLink, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) (*types.PlayerLink, error) {
		var link types.PlayerLink

		err := m.db.NewSelect().
			Model(&link).
			Where("discord_user_id = ? AND is_primary", discordUserID).
			Scan(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, types.ErrLinkNotFound
			}

			return nil, fmt.Errorf("failed to get primary link: %w", err)
		}

		return &link, nil
	})
}

// GetBySteamID returns all links recorded for a Steam ID, newest first.
func (m *LinkModel) GetBySteamID(ctx context.Context, steamID string) ([]*types.PlayerLink, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) ([]*types.PlayerLink, error) {
		var links []*types.PlayerLink

		err := m.db.NewSelect().
			Model(&links).
			Where("steam_id = ?", steamID).
			Order("updated_at DESC").
			Scan(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get links by Steam ID: %w", err)
		}

		return links, nil
	})
}

// GetByDiscordID returns all links for a Discord user, primary first.
func (m *LinkModel) GetByDiscordID(ctx context.Context, discordUserID uint64) ([]*types.PlayerLink, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) ([]*types.PlayerLink, error) {
		var links []*types.PlayerLink

		err := m.db.NewSelect().
			Model(&links).
			Where("discord_user_id = ?", discordUserID).
			Order("is_primary DESC", "updated_at DESC").
			Scan(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get links by Discord ID: %w", err)
		}

		return links, nil
	})
}

// OverrideConfidence sets a link's confidence score, returning the previous
// value. This is the admin upgrade path; callers are responsible for
// recording actor and reason.
func (m *LinkModel) OverrideConfidence(
	ctx context.Context, discordUserID uint64, steamID string, confidence float64,
) (float64, error) {
	var previous float64

	err := dbretry.Transaction(ctx, m.db, func(ctx context.Context, tx bun.Tx) error {
		var link types.PlayerLink

		err := tx.NewSelect().
			Model(&link).
			Where("discord_user_id = ? AND steam_id = ?", discordUserID, steamID).
			For("UPDATE").
			Scan(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return types.ErrLinkNotFound
			}

			return fmt.Errorf("failed to look up link: %w", err)
		}

		previous = link.Confidence

		_, err = tx.NewUpdate().
			Model((*types.PlayerLink)(nil)).
			Set("confidence = ?", confidence).
			Set("updated_at = ?", time.Now()).
			Where("id = ?", link.ID).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to override confidence: %w", err)
		}

		return nil
	})
	if err != nil {
		return 0, err
	}

	return previous, nil
}

// Unlink removes all links for the (discord user, steam) pair and records the
// unlink in history, in one transaction. Returns the number of removed links.
func (m *LinkModel) Unlink(
	ctx context.Context, discordUserID uint64, steamID, reason string,
) (int64, error) {
	var removed int64

	err := dbretry.Transaction(ctx, m.db, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewDelete().
			Model((*types.PlayerLink)(nil)).
			Where("discord_user_id = ? AND steam_id = ?", discordUserID, steamID).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to delete links: %w", err)
		}

		removed, err = res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read affected rows: %w", err)
		}

		if removed == 0 {
			return types.ErrLinkNotFound
		}

		record := &types.UnlinkRecord{
			DiscordUserID: discordUserID,
			SteamID:       steamID,
			Reason:        reason,
			UnlinkedAt:    time.Now(),
		}

		if _, err := tx.NewInsert().Model(record).Exec(ctx); err != nil {
			return fmt.Errorf("failed to record unlink history: %w", err)
		}

		return nil
	})
	if err != nil {
		return 0, err
	}

	m.logger.Debug("Unlinked player",
		zap.Uint64("discordUserID", discordUserID),
		zap.String("steamID", steamID),
		zap.Int64("removed", removed))

	return removed, nil
}

// LatestUnlink returns the most recent unlink record for a Discord user, or
// nil when the user has never unlinked.
func (m *LinkModel) LatestUnlink(ctx context.Context, discordUserID uint64) (*types.UnlinkRecord, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) (*types.UnlinkRecord, error) {
		var record types.UnlinkRecord

		err := m.db.NewSelect().
			Model(&record).
			Where("discord_user_id = ?", discordUserID).
			Order("unlinked_at DESC").
			Limit(1).
			Scan(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, nil
			}

			return nil, fmt.Errorf("failed to get unlink history: %w", err)
		}

		return &record, nil
	})
}
