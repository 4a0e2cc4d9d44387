package server

import (
	"fmt"
	"strings"
	"time"

	"github.com/squadhub/squadlink/internal/database/types"
)

// whitelistGroup is the admin group name the game server maps reserved-slot
// access to in its Admins.cfg.
const whitelistGroup = "Whitelist"

// RenderAdminsCfg renders active entries in the Squad Admins.cfg format the
// game server consumes. One line per Steam ID; stacked entries collapse to a
// single line carrying the first entry's reason. Output is deterministic for
// a given entry order so cached renders stay byte-stable.
func RenderAdminsCfg(entries []*types.WhitelistEntry, now time.Time) string {
	var b strings.Builder

	fmt.Fprintf(&b, "// Generated %s - do not edit by hand\n", now.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "Group=%s:reserve\n\n", whitelistGroup)

	seen := make(map[string]struct{}, len(entries))

	for _, entry := range entries {
		if _, ok := seen[entry.SteamID]; ok {
			continue
		}

		seen[entry.SteamID] = struct{}{}

		comment := entry.Reason.String()
		if entry.Username != "" {
			comment = entry.Username + " - " + comment
		}

		fmt.Fprintf(&b, "Admin=%s:%s // %s\n", entry.SteamID, whitelistGroup, comment)
	}

	return b.String()
}
