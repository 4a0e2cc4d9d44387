package models

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/squadhub/squadlink/internal/database/dbretry"
	"github.com/squadhub/squadlink/internal/database/types"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// VerificationModel handles database operations for verification codes.
type VerificationModel struct {
	db     *bun.DB
	logger *zap.Logger
}

// NewVerification creates a new verification model instance.
func NewVerification(db *bun.DB, logger *zap.Logger) *VerificationModel {
	return &VerificationModel{
		db:     db,
		logger: logger.Named("db_verification"),
	}
}

// Insert stores a freshly generated code. Codes are unique among all stored
// rows; a collision with an existing (possibly expired but unswept) code
// returns ErrCodeCollision so the caller can generate a new one.
func (m *VerificationModel) Insert(ctx context.Context, code *types.VerificationCode) error {
	return dbretry.NoResult(ctx, func(ctx context.Context) error {
		res, err := m.db.NewInsert().
			Model(code).
			On("CONFLICT (code) DO NOTHING").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to insert verification code: %w", err)
		}

		rows, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read affected rows: %w", err)
		}

		if rows == 0 {
			return types.ErrCodeCollision
		}

		return nil
	})
}

// GetActiveByUser returns the user's outstanding unexpired code, if any.
func (m *VerificationModel) GetActiveByUser(
	ctx context.Context, discordUserID uint64, now time.Time,
) (*types.VerificationCode, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) (*types.VerificationCode, error) {
		var code types.VerificationCode

		err := m.db.NewSelect().
			Model(&code).
			Where("discord_user_id = ? AND expires_at > ?", discordUserID, now).
			Order("expires_at DESC").
			Limit(1).
			Scan(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, types.ErrCodeNotFoundOrExpired
			}

			return nil, fmt.Errorf("failed to get active code: %w", err)
		}

		return &code, nil
	})
}

// ConsumeTx atomically deletes an unexpired code inside the caller's
// transaction and returns it. A missing, expired, or already-consumed code
// returns ErrCodeNotFoundOrExpired; the compare-and-delete guarantees a
// double-delivered redemption can only succeed once.
func (m *VerificationModel) ConsumeTx(
	ctx context.Context, tx bun.IDB, code string, now time.Time,
) (*types.VerificationCode, error) {
	var consumed types.VerificationCode

	err := tx.NewDelete().
		Model(&consumed).
		Where("code = ? AND expires_at > ?", code, now).
		Returning("*").
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, types.ErrCodeNotFoundOrExpired
		}

		return nil, fmt.Errorf("failed to consume verification code: %w", err)
	}

	return &consumed, nil
}

// PurgeExpired removes codes past their expiry. Best-effort cleanup; redeem
// re-checks expiry itself.
func (m *VerificationModel) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) (int64, error) {
		res, err := m.db.NewDelete().
			Model((*types.VerificationCode)(nil)).
			Where("expires_at <= ?", now).
			Exec(ctx)
		if err != nil {
			return 0, fmt.Errorf("failed to purge expired codes: %w", err)
		}

		purged, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("failed to read affected rows: %w", err)
		}

		if purged > 0 {
			m.logger.Debug("Purged expired verification codes", zap.Int64("count", purged))
		}

		return purged, nil
	})
}
