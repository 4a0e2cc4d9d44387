package enum

import "fmt"

// WhitelistSource identifies which signal produced an effective whitelist status.
type WhitelistSource int

const (
	WhitelistSourceNone WhitelistSource = iota
	// WhitelistSourceDatabase means an explicit grant in the whitelist store.
	WhitelistSourceDatabase
	// WhitelistSourceRole means access derived from a tracked Discord role.
	WhitelistSourceRole
)

// String returns the source name.
func (s WhitelistSource) String() string {
	switch s {
	case WhitelistSourceDatabase:
		return "database"
	case WhitelistSourceRole:
		return "role"
	case WhitelistSourceNone:
		return "none"
	default:
		return fmt.Sprintf("WhitelistSource(%d)", int(s))
	}
}

// DenyReason explains why a user is not whitelisted.
type DenyReason int

const (
	DenyReasonNone DenyReason = iota
	// DenyReasonNoLink means no Steam account is linked to the Discord user.
	DenyReasonNoLink
	// DenyReasonInsufficientConfidence means a staff-tier grant was blocked by
	// the link's confidence score.
	DenyReasonInsufficientConfidence
	// DenyReasonNoActiveGrant means the user is linked but holds no active basis.
	DenyReasonNoActiveGrant
)

var denyReasonNames = map[DenyReason]string{
	DenyReasonNone:                   "none",
	DenyReasonNoLink:                 "no_steam_account_linked",
	DenyReasonInsufficientConfidence: "security_blocked_insufficient_confidence",
	DenyReasonNoActiveGrant:          "no_active_grant",
}

// String returns the canonical reason tag.
func (r DenyReason) String() string {
	if name, ok := denyReasonNames[r]; ok {
		return name
	}

	return fmt.Sprintf("DenyReason(%d)", int(r))
}
