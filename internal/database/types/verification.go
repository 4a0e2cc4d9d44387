package types

import (
	"errors"
	"time"
)

var (
	ErrCodeNotFoundOrExpired = errors.New("verification code not found or expired")
	ErrCodeCollision         = errors.New("verification code already exists")
	ErrCodeGeneration        = errors.New("could not generate a unique verification code")
)

// VerificationCode is a short-lived, single-use code issued to a Discord user.
// Typing the code in-game proves control of the Steam account and upgrades
// the link to maximum confidence.
type VerificationCode struct {
	Code          string    `bun:",pk"`
	DiscordUserID uint64    `bun:",notnull"`
	CreatedAt     time.Time `bun:",notnull"`
	ExpiresAt     time.Time `bun:",notnull"`
}

// IsExpired checks whether the code is past its expiry.
func (c *VerificationCode) IsExpired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}
