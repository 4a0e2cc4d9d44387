package types

import (
	"errors"
	"fmt"
	"time"

	"github.com/squadhub/squadlink/internal/database/types/enum"
)

var ErrInvalidDuration = errors.New("invalid whitelist duration")

// WhitelistEntry is one time-bounded (or permanent) whitelist grant for a
// Steam ID. Multiple non-revoked entries may stack for the same Steam ID;
// effective expiration is the furthest-out of all active entries. Entries are
// soft-deleted only, never removed.
type WhitelistEntry struct {
	ID            uint64               `bun:",pk,autoincrement"`
	SteamID       string               `bun:",notnull"`
	EOSID         string               `bun:"eos_id,nullzero"`
	Username      string               `bun:",nullzero"`
	Reason        enum.WhitelistReason `bun:",notnull"`
	GrantedAt     time.Time            `bun:",notnull"`
	DurationValue *int                 `bun:",nullzero"` // nil = permanent, 0 = placeholder (never active)
	DurationType  enum.DurationType    `bun:",nullzero"`
	GrantedBy     uint64               `bun:",nullzero"`
	Revoked       bool                 `bun:",notnull"`
	RevokedAt     *time.Time           `bun:",nullzero"`
	RevokedBy     uint64               `bun:",nullzero"`
	Note          string               `bun:",nullzero"` // set at grant time, never rewritten
	RevokeNote    string               `bun:",nullzero"`
	Metadata      map[string]any       `bun:",type:jsonb"`
}

// IsPermanent checks whether the entry never expires.
func (e *WhitelistEntry) IsPermanent() bool {
	return e.DurationValue == nil
}

// ExpiresAt computes the entry's expiration instant, or nil for permanent
// entries. Month durations use calendar-aware addition, not fixed-length
// blocks.
func (e *WhitelistEntry) ExpiresAt() *time.Time {
	if e.DurationValue == nil {
		return nil
	}

	var expiry time.Time

	switch e.DurationType {
	case enum.DurationTypeMonths:
		expiry = AddCalendarMonths(e.GrantedAt, *e.DurationValue)
	case enum.DurationTypeDays:
		expiry = e.GrantedAt.AddDate(0, 0, *e.DurationValue)
	default:
		expiry = e.GrantedAt
	}

	return &expiry
}

// IsActive checks whether the entry currently grants access. A zero duration
// marks an already-expired placeholder and is never active.
func (e *WhitelistEntry) IsActive(now time.Time) bool {
	if e.Revoked {
		return false
	}

	if e.DurationValue == nil {
		return true
	}

	if *e.DurationValue <= 0 {
		return false
	}

	return now.Before(*e.ExpiresAt())
}

// AddCalendarMonths adds whole calendar months to t, clamping the day to the
// last day of the target month instead of letting it normalize into the next
// one (2024-01-31 +1 month is 2024-02-29, not 2024-03-02).
func AddCalendarMonths(t time.Time, months int) time.Time {
	year, month, day := t.Date()
	hour, minute, sec := t.Clock()

	firstOfTarget := time.Date(year, month+time.Month(months), 1, 0, 0, 0, 0, t.Location())
	lastDay := firstOfTarget.AddDate(0, 1, -1).Day()

	if day > lastDay {
		day = lastDay
	}

	return time.Date(firstOfTarget.Year(), firstOfTarget.Month(), day,
		hour, minute, sec, t.Nanosecond(), t.Location())
}

// WhitelistStatus is the computed read-side view over a Steam ID's entries.
// There is no materialized status column to drift; this is always derived
// from raw rows.
type WhitelistStatus struct {
	HasWhitelist  bool
	Permanent     bool
	ExpiresAt     *time.Time // furthest-out expiration; nil when permanent or inactive
	ActiveEntries int
	Status        string
}

// ComputeWhitelistStatus derives the current status from all non-revoked
// entries for one Steam ID. Stacked entries contribute their furthest
// expiration, never a sum.
func ComputeWhitelistStatus(entries []*WhitelistEntry, now time.Time) *WhitelistStatus {
	status := &WhitelistStatus{}

	var furthest *time.Time

	for _, entry := range entries {
		if !entry.IsActive(now) {
			continue
		}

		status.ActiveEntries++

		if entry.IsPermanent() {
			status.Permanent = true
			continue
		}

		expiry := entry.ExpiresAt()
		if furthest == nil || expiry.After(*furthest) {
			furthest = expiry
		}
	}

	status.HasWhitelist = status.ActiveEntries > 0

	switch {
	case !status.HasWhitelist:
		status.Status = "No active whitelist"
	case status.Permanent:
		status.Status = fmt.Sprintf("Permanent whitelist (%d active entries)", status.ActiveEntries)
	default:
		status.ExpiresAt = furthest
		status.Status = fmt.Sprintf("Whitelisted until %s (%d active entries)",
			furthest.Format("2006-01-02"), status.ActiveEntries)
	}

	return status
}
