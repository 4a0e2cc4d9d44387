package models

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/squadhub/squadlink/internal/database/dbretry"
	"github.com/squadhub/squadlink/internal/database/types"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// AuditModel handles database operations for the append-only audit log.
type AuditModel struct {
	db     *bun.DB
	logger *zap.Logger
}

// NewAudit creates a new audit model instance.
func NewAudit(db *bun.DB, logger *zap.Logger) *AuditModel {
	return &AuditModel{
		db:     db,
		logger: logger.Named("db_audit"),
	}
}

// Log stores an audit record. Audit writes are best-effort: a failure is
// logged but never propagated, so a dropped record cannot fail the mutation
// it describes.
func (m *AuditModel) Log(ctx context.Context, log *types.AuditLog) {
	if log.CorrelationID == uuid.Nil {
		log.CorrelationID = uuid.New()
	}

	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now()
	}

	err := dbretry.NoResult(ctx, func(ctx context.Context) error {
		if _, err := m.db.NewInsert().Model(log).Exec(ctx); err != nil {
			return fmt.Errorf("failed to insert audit log: %w", err)
		}

		return nil
	})
	if err != nil {
		m.logger.Error("Failed to write audit log",
			zap.Error(err),
			zap.String("action", log.Action.String()),
			zap.Uint64("actorID", log.ActorID),
			zap.Uint64("targetDiscordID", log.TargetDiscordID),
			zap.String("targetSteamID", log.TargetSteamID))

		return
	}

	m.logger.Debug("Wrote audit log",
		zap.String("action", log.Action.String()),
		zap.Uint64("actorID", log.ActorID),
		zap.Uint64("targetDiscordID", log.TargetDiscordID),
		zap.String("targetSteamID", log.TargetSteamID),
		zap.Bool("success", log.Success))
}

// GetRecentByTarget returns recent audit records for a Steam ID, newest first.
func (m *AuditModel) GetRecentByTarget(
	ctx context.Context, steamID string, limit int,
) ([]*types.AuditLog, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) ([]*types.AuditLog, error) {
		var logs []*types.AuditLog

		err := m.db.NewSelect().
			Model(&logs).
			Where("target_steam_id = ?", steamID).
			Order("created_at DESC").
			Limit(limit).
			Scan(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get audit logs: %w", err)
		}

		return logs, nil
	})
}
