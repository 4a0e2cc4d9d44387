package enum

import "fmt"

// LinkSource identifies how a Discord-to-Steam account link was established.
type LinkSource int

const (
	// LinkSourceSelfVerified means the player redeemed a verification code in-game.
	LinkSourceSelfVerified LinkSource = iota
	// LinkSourceManualAdmin means an admin linked the accounts by command.
	LinkSourceManualAdmin
	// LinkSourceWhitelistCreated means the link was created as a side effect of a whitelist grant.
	LinkSourceWhitelistCreated
	// LinkSourceTicketDetected means the Steam ID was auto-detected from a ticket.
	LinkSourceTicketDetected
)

var linkSourceNames = map[LinkSource]string{
	LinkSourceSelfVerified:     "self-verified",
	LinkSourceManualAdmin:      "manual-admin",
	LinkSourceWhitelistCreated: "whitelist-created",
	LinkSourceTicketDetected:   "ticket-detected",
}

// String returns the canonical name for the link source.
func (s LinkSource) String() string {
	if name, ok := linkSourceNames[s]; ok {
		return name
	}

	return fmt.Sprintf("LinkSource(%d)", int(s))
}

// Confidence returns the source-determined confidence score for the link.
// Scores are fixed per source; the only override path is an explicit,
// audited admin upgrade to 1.0.
func (s LinkSource) Confidence() float64 {
	switch s {
	case LinkSourceSelfVerified:
		return 1.0
	case LinkSourceManualAdmin:
		return 0.7
	case LinkSourceWhitelistCreated:
		return 0.5
	case LinkSourceTicketDetected:
		return 0.3
	default:
		return 0.0
	}
}

// LinkSourceString converts a canonical name back to a LinkSource.
func LinkSourceString(s string) (LinkSource, error) {
	for source, name := range linkSourceNames {
		if name == s {
			return source, nil
		}
	}

	return 0, fmt.Errorf("%s does not belong to LinkSource values", s) //nolint:err113
}
