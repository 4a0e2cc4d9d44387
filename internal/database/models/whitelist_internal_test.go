package models

import (
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"go.uber.org/zap"
)

// The soft-delete must never rewrite the grant-time note; the revocation
// reason has its own column.
func TestRevokeQueryPreservesGrantNote(t *testing.T) {
	t.Parallel()

	db := bun.NewDB(sql.OpenDB(pgdriver.NewConnector()), pgdialect.New())
	model := NewWhitelist(db, zap.NewNop())

	now := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	query := model.revokeQuery(db, []uint64{3, 7}, 42, "backing role removed", now).String()

	assert.Contains(t, query, "revoked = TRUE")
	assert.Contains(t, query, "revoke_note = 'backing role removed'")
	assert.Contains(t, query, "IN (3, 7)")
	assert.NotContains(t, query, ", note =")
	assert.NotContains(t, query, "SET note")
}
