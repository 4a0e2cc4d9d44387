package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/squadhub/squadlink/internal/database/dbretry"
	"github.com/squadhub/squadlink/internal/database/types"
	"github.com/squadhub/squadlink/internal/database/types/enum"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// codeAlphabet excludes ambiguous characters (0/O, 1/I/L) since players
// retype the code from a Discord message into in-game chat.
const codeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

// maxGenerateAttempts bounds retries when a generated code collides with an
// existing row.
const maxGenerateAttempts = 5

// codeStore holds verification codes. ConsumeTx must be a compare-and-delete:
// a code that is missing, expired, or already consumed returns
// ErrCodeNotFoundOrExpired.
type codeStore interface {
	GetActiveByUser(ctx context.Context, discordUserID uint64, now time.Time) (*types.VerificationCode, error)
	Insert(ctx context.Context, code *types.VerificationCode) error
	ConsumeTx(ctx context.Context, tx bun.IDB, code string, now time.Time) (*types.VerificationCode, error)
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

// linkApplier upserts a link inside the caller's transaction.
type linkApplier interface {
	ApplyTx(ctx context.Context, tx bun.IDB, link *types.PlayerLink) (*types.PlayerLink, bool, error)
}

// VerificationService issues and redeems time-boxed verification codes.
// Redemption arrives out-of-band from the game server and atomically upgrades
// the player's link to maximum confidence.
type VerificationService struct {
	db     *bun.DB
	codes  codeStore
	links  linkApplier
	audit  auditSink
	length int
	ttl    time.Duration
	logger *zap.Logger
}

// NewVerification creates a new verification service.
func NewVerification(
	db *bun.DB, codes codeStore, links linkApplier,
	audit auditSink, codeLength int, codeTTL time.Duration, logger *zap.Logger,
) *VerificationService {
	return &VerificationService{
		db:     db,
		codes:  codes,
		links:  links,
		audit:  audit,
		length: codeLength,
		ttl:    codeTTL,
		logger: logger.Named("verification_service"),
	}
}

// IssueCode returns a verification code for the user. An outstanding
// unexpired code is returned as-is so repeated requests don't invalidate a
// code the player is about to type in-game.
func (s *VerificationService) IssueCode(ctx context.Context, discordUserID uint64) (*types.VerificationCode, error) {
	now := time.Now()

	existing, err := s.codes.GetActiveByUser(ctx, discordUserID, now)
	if err == nil {
		return existing, nil
	}

	if !errors.Is(err, types.ErrCodeNotFoundOrExpired) {
		return nil, err
	}

	for attempt := range maxGenerateAttempts {
		value, err := generateCode(s.length)
		if err != nil {
			return nil, err
		}

		code := &types.VerificationCode{
			Code:          value,
			DiscordUserID: discordUserID,
			CreatedAt:     now,
			ExpiresAt:     now.Add(s.ttl),
		}

		err = s.codes.Insert(ctx, code)
		if err == nil {
			s.audit.Log(ctx, &types.AuditLog{
				Action:          enum.AuditActionCodeIssue,
				TargetDiscordID: discordUserID,
				After:           map[string]any{"expires_at": code.ExpiresAt},
				Success:         true,
			})

			s.logger.Debug("Issued verification code",
				zap.Uint64("discordUserID", discordUserID),
				zap.Int("attempt", attempt+1),
				zap.Time("expiresAt", code.ExpiresAt))

			return code, nil
		}

		if !errors.Is(err, types.ErrCodeCollision) {
			return nil, err
		}
	}

	return nil, types.ErrCodeGeneration
}

// Redeem consumes a code observed in-game and upgrades the issuing user's
// link to self-verified confidence, in a single transaction. Redeeming an
// already-consumed or expired code fails with ErrCodeNotFoundOrExpired and
// never mutates a link, so double-delivery of the same confirmation is safe.
func (s *VerificationService) Redeem(
	ctx context.Context, code, observedSteamID, username string,
) (*types.PlayerLink, error) {
	if !types.IsValidSteamID(observedSteamID) {
		return nil, fmt.Errorf("%w: %s", types.ErrInvalidSteamID, observedSteamID)
	}

	var link *types.PlayerLink

	err := dbretry.Transaction(ctx, s.db, func(ctx context.Context, tx bun.Tx) error {
		var err error
		link, err = s.redeemTx(ctx, tx, code, observedSteamID, username)

		return err
	})

	var discordUserID uint64
	if link != nil {
		discordUserID = link.DiscordUserID
	}

	s.audit.Log(ctx, &types.AuditLog{
		Action:          enum.AuditActionCodeRedeem,
		TargetDiscordID: discordUserID,
		TargetSteamID:   observedSteamID,
		Success:         err == nil,
		Error:           errString(err),
	})

	if err != nil {
		return nil, err
	}

	s.logger.Info("Redeemed verification code",
		zap.Uint64("discordUserID", link.DiscordUserID),
		zap.String("steamID", observedSteamID))

	return link, nil
}

// redeemTx consumes the code and applies the upgraded link inside tx. The
// consume is a compare-and-delete, so a second redemption of the same code
// fails before any link write happens.
func (s *VerificationService) redeemTx(
	ctx context.Context, tx bun.IDB, code, observedSteamID, username string,
) (*types.PlayerLink, error) {
	consumed, err := s.codes.ConsumeTx(ctx, tx, code, time.Now())
	if err != nil {
		return nil, err
	}

	link, _, err := s.links.ApplyTx(ctx, tx, &types.PlayerLink{
		DiscordUserID: consumed.DiscordUserID,
		SteamID:       observedSteamID,
		Username:      username,
		Source:        enum.LinkSourceSelfVerified,
		Confidence:    enum.LinkSourceSelfVerified.Confidence(),
		IsPrimary:     true,
		Metadata:      map[string]any{"verified_via": "in-game code"},
	})

	return link, err
}

// PurgeExpired removes codes past expiry.
func (s *VerificationService) PurgeExpired(ctx context.Context) (int64, error) {
	return s.codes.PurgeExpired(ctx, time.Now())
}

// generateCode builds a random code from the unambiguous alphabet.
func generateCode(length int) (string, error) {
	buf := make([]byte, length)

	for i := range buf {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(codeAlphabet))))
		if err != nil {
			return "", fmt.Errorf("failed to generate verification code: %w", err)
		}

		buf[i] = codeAlphabet[n.Int64()]
	}

	return string(buf), nil
}
