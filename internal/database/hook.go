package database

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// slowQueryThreshold is where a query stops being routine. The whitelist
// endpoint is polled by the game server, so anything this slow is worth a
// warning even when it succeeds.
const slowQueryThreshold = 250 * time.Millisecond

// queryHook logs every bun query with its duration. Implements bun.QueryHook.
type queryHook struct {
	logger *zap.Logger
}

func newQueryHook(logger *zap.Logger) *queryHook {
	return &queryHook{logger: logger.Named("query")}
}

func (h *queryHook) BeforeQuery(ctx context.Context, _ *bun.QueryEvent) context.Context {
	return ctx
}

func (h *queryHook) AfterQuery(_ context.Context, event *bun.QueryEvent) {
	elapsed := time.Since(event.StartTime)

	switch {
	case event.Err != nil && !errors.Is(event.Err, sql.ErrNoRows):
		h.logger.Error("Query failed",
			zap.String("operation", event.Operation()),
			zap.Duration("duration", elapsed),
			zap.Error(event.Err))
	case elapsed >= slowQueryThreshold:
		h.logger.Warn("Slow query",
			zap.String("query", event.Query),
			zap.Duration("duration", elapsed))
	default:
		h.logger.Debug("Query executed",
			zap.String("operation", event.Operation()),
			zap.Duration("duration", elapsed))
	}
}
