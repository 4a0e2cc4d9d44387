package enum

import "fmt"

// SyncOutcome is the decision taken for one member during role-whitelist sync.
type SyncOutcome int

const (
	// SyncOutcomeNone means the member holds no tracked role and no role-based entries.
	SyncOutcomeNone SyncOutcome = iota
	// SyncOutcomeGranted means a new role-based whitelist entry was created.
	SyncOutcomeGranted
	// SyncOutcomeKept means an active role-based entry already covers the role.
	SyncOutcomeKept
	// SyncOutcomeBlocked means a staff-tier grant was withheld due to link confidence.
	SyncOutcomeBlocked
	// SyncOutcomeNoLink means the member has no primary link to grant against.
	SyncOutcomeNoLink
)

var syncOutcomeNames = map[SyncOutcome]string{
	SyncOutcomeNone:    "none",
	SyncOutcomeGranted: "granted",
	SyncOutcomeKept:    "kept",
	SyncOutcomeBlocked: "blocked_insufficient_confidence",
	SyncOutcomeNoLink:  "no_link",
}

// String returns the outcome name.
func (o SyncOutcome) String() string {
	if name, ok := syncOutcomeNames[o]; ok {
		return name
	}

	return fmt.Sprintf("SyncOutcome(%d)", int(o))
}
