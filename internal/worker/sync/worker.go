// Package sync runs the scheduled full-guild reconciliation that catches
// anything the live role-change listener missed: members who changed roles
// while the bot was offline, expired role-derived entries, and manual
// database edits.
package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/snowflake/v2"
	"github.com/squadhub/squadlink/internal/database"
	"github.com/squadhub/squadlink/internal/database/service"
	"github.com/squadhub/squadlink/internal/database/types"
	"github.com/squadhub/squadlink/internal/setup"
	"go.uber.org/zap"
)

const memberPageSize = 1000

// Worker periodically reconciles guild role membership against the whitelist.
type Worker struct {
	db       database.Client
	rest     rest.Rest
	guildID  snowflake.ID
	interval time.Duration
	logger   *zap.Logger
}

// New creates a new sync worker.
func New(app *setup.App, logger *zap.Logger) *Worker {
	return &Worker{
		db:       app.DB,
		rest:     rest.New(rest.NewClient(app.Config.Bot.Discord.Token)),
		guildID:  snowflake.ID(app.Config.Common.Sync.GuildID),
		interval: time.Duration(app.Config.Worker.SyncIntervalMinutes) * time.Minute,
		logger:   logger,
	}
}

// Start begins the sync worker's main loop. Each cycle is independent; a
// failed cycle logs and waits for the next tick.
func (w *Worker) Start(ctx context.Context) {
	w.logger.Info("Sync worker started",
		zap.Uint64("guildID", uint64(w.guildID)),
		zap.Duration("interval", w.interval))

	for {
		if err := w.runCycle(ctx); err != nil {
			w.logger.Error("Sync cycle failed", zap.Error(err))
		}

		select {
		case <-time.After(w.interval):
		case <-ctx.Done():
			w.logger.Info("Sync worker stopped")
			return
		}
	}
}

// runCycle fetches all guild members and runs one bulk reconciliation.
func (w *Worker) runCycle(ctx context.Context) error {
	start := time.Now()

	members, err := w.fetchAllMembers(ctx)
	if err != nil {
		return err
	}

	report, err := w.db.Service().Sync().BulkSync(ctx, members, service.SyncOptions{
		Source: "scheduled_sync",
	})
	if err != nil {
		return err
	}

	w.logger.Info("Completed sync cycle",
		zap.Int("members", report.Total),
		zap.Int("errors", report.Errors),
		zap.Duration("duration", time.Since(start)))

	return nil
}

// fetchAllMembers pages through the guild member list.
func (w *Worker) fetchAllMembers(ctx context.Context) ([]types.MemberRoles, error) {
	var (
		members []types.MemberRoles
		after   snowflake.ID
	)

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page, err := w.rest.GetMembers(w.guildID, memberPageSize, after)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch guild members: %w", err)
		}

		if len(page) == 0 {
			break
		}

		for _, member := range page {
			roleIDs := make([]uint64, 0, len(member.RoleIDs))
			for _, id := range member.RoleIDs {
				roleIDs = append(roleIDs, uint64(id))
			}

			members = append(members, types.MemberRoles{
				DiscordUserID: uint64(member.User.ID),
				Username:      member.User.Username,
				RoleIDs:       roleIDs,
			})

			if member.User.ID > after {
				after = member.User.ID
			}
		}

		if len(page) < memberPageSize {
			break
		}
	}

	return members, nil
}
