package types

import (
	"errors"
	"regexp"
	"time"

	"github.com/squadhub/squadlink/internal/database/types/enum"
)

var (
	ErrLinkNotFound     = errors.New("link not found")
	ErrInvalidSteamID   = errors.New("invalid Steam ID")
	ErrInvalidEOSID     = errors.New("invalid EOS ID")
	ErrDuplicatePrimary = errors.New("user already has a primary link")
	ErrRelinkCooldown   = errors.New("re-link cooldown active")
	ErrReasonRequired   = errors.New("a reason is required")
)

var (
	steamIDPattern = regexp.MustCompile(`^7656119\d{10}$`)
	eosIDPattern   = regexp.MustCompile(`^[0-9a-f]{32}$`)
)

// IsValidSteamID reports whether s is a well-formed SteamID64.
func IsValidSteamID(s string) bool {
	return steamIDPattern.MatchString(s)
}

// IsValidEOSID reports whether s is a well-formed Epic Online Services ID.
func IsValidEOSID(s string) bool {
	return eosIDPattern.MatchString(s)
}

// PlayerLink maps a Discord user to a Steam identity with a trust rating.
// A Discord user may accumulate several links over time but at most one is
// primary; superseded links are kept non-primary for audit history.
type PlayerLink struct {
	ID            uint64          `bun:",pk,autoincrement"`
	DiscordUserID uint64          `bun:",notnull"`
	SteamID       string          `bun:",notnull"`
	EOSID         string          `bun:"eos_id,nullzero"`
	Username      string          `bun:",nullzero"`
	Source        enum.LinkSource `bun:",notnull"`
	Confidence    float64         `bun:",notnull"`    // 0.0-1.0, determined by Source
	IsPrimary     bool            `bun:",notnull"`    // at most one per Discord user
	Metadata      map[string]any  `bun:",type:jsonb"` // free-form provenance
	CreatedAt     time.Time       `bun:",notnull"`
	UpdatedAt     time.Time       `bun:",notnull"`
}

// UnlinkRecord is one row of unlink history. It drives the re-link cooldown:
// after unlinking, the same Steam ID may be re-linked immediately but a
// different one is blocked until the cooldown elapses.
type UnlinkRecord struct {
	ID            uint64    `bun:",pk,autoincrement"`
	DiscordUserID uint64    `bun:",notnull"`
	SteamID       string    `bun:",notnull"`
	Reason        string    `bun:",nullzero"`
	UnlinkedAt    time.Time `bun:",notnull"`
}

// RelinkBlockedUntil returns the instant before which linking steamID is
// blocked by this unlink, or the zero time when it is not blocked at all.
// Re-linking the Steam ID that was just unlinked is always allowed.
func (r *UnlinkRecord) RelinkBlockedUntil(steamID string, cooldown time.Duration) time.Time {
	if r == nil || r.SteamID == steamID {
		return time.Time{}
	}

	return r.UnlinkedAt.Add(cooldown)
}
