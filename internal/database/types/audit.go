package types

import (
	"time"

	"github.com/google/uuid"
	"github.com/squadhub/squadlink/internal/database/types/enum"
)

// AuditLog is one append-only record of a mutating action, written regardless
// of whether the action succeeded. ActorID 0 means the system acted on its
// own (sync pass, import, in-game redemption).
type AuditLog struct {
	ID              uint64           `bun:",pk,autoincrement"`
	CorrelationID   uuid.UUID        `bun:",type:uuid,notnull"`
	Action          enum.AuditAction `bun:",notnull"`
	ActorID         uint64           `bun:",nullzero"`
	TargetDiscordID uint64           `bun:",nullzero"`
	TargetSteamID   string           `bun:",nullzero"`
	Before          map[string]any   `bun:",type:jsonb"`
	After           map[string]any   `bun:",type:jsonb"`
	Success         bool             `bun:",notnull"`
	Error           string           `bun:",nullzero"`
	CreatedAt       time.Time        `bun:",notnull"`
}
