package types

// RoleChangedEvent is the single inbound shape for Discord role changes.
// The bot layer translates platform events into this before handing them to
// role-whitelist sync, keeping sync logic independent of the SDK event shape.
type RoleChangedEvent struct {
	GuildID       uint64
	DiscordUserID uint64
	AddedRoles    []uint64
	RemovedRoles  []uint64
}

// MemberRoles is a point-in-time snapshot of one guild member's roles.
type MemberRoles struct {
	DiscordUserID uint64
	Username      string
	RoleIDs       []uint64
}
