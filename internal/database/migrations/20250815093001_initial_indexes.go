package migrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		_, err := db.NewRaw(`
			-- At most one primary link per Discord user, enforced at the store
			CREATE UNIQUE INDEX IF NOT EXISTS idx_player_links_one_primary
			ON player_links (discord_user_id)
			WHERE is_primary;

			CREATE UNIQUE INDEX IF NOT EXISTS idx_player_links_pair
			ON player_links (discord_user_id, steam_id);

			CREATE INDEX IF NOT EXISTS idx_player_links_steam
			ON player_links (steam_id);

			-- Re-link cooldown lookup reads only the newest record per user
			CREATE INDEX IF NOT EXISTS idx_unlink_records_user_time
			ON unlink_records (discord_user_id, unlinked_at DESC);

			CREATE INDEX IF NOT EXISTS idx_verification_codes_user
			ON verification_codes (discord_user_id, expires_at DESC);

			CREATE INDEX IF NOT EXISTS idx_verification_codes_expiry
			ON verification_codes (expires_at);

			CREATE INDEX IF NOT EXISTS idx_whitelist_entries_steam
			ON whitelist_entries (steam_id, granted_at DESC)
			WHERE NOT revoked;

			CREATE INDEX IF NOT EXISTS idx_audit_logs_target_time
			ON audit_logs (target_discord_id, created_at DESC);

			CREATE INDEX IF NOT EXISTS idx_audit_logs_steam_time
			ON audit_logs (target_steam_id, created_at DESC);
		`).Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to create initial indexes: %w", err)
		}

		return nil
	}, func(ctx context.Context, db *bun.DB) error {
		_, err := db.NewRaw(`
			DROP INDEX IF EXISTS idx_audit_logs_steam_time;
			DROP INDEX IF EXISTS idx_audit_logs_target_time;
			DROP INDEX IF EXISTS idx_whitelist_entries_steam;
			DROP INDEX IF EXISTS idx_verification_codes_expiry;
			DROP INDEX IF EXISTS idx_verification_codes_user;
			DROP INDEX IF EXISTS idx_unlink_records_user_time;
			DROP INDEX IF EXISTS idx_player_links_steam;
			DROP INDEX IF EXISTS idx_player_links_pair;
			DROP INDEX IF EXISTS idx_player_links_one_primary;
		`).Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to drop initial indexes: %w", err)
		}

		return nil
	})
}
