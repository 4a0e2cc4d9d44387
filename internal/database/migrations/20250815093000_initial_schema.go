package migrations

import (
	"context"
	"fmt"

	"github.com/squadhub/squadlink/internal/database/types"
	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		models := []any{
			(*types.PlayerLink)(nil),
			(*types.UnlinkRecord)(nil),
			(*types.VerificationCode)(nil),
			(*types.WhitelistEntry)(nil),
			(*types.AuditLog)(nil),
		}

		for _, model := range models {
			_, err := db.NewCreateTable().
				Model(model).
				IfNotExists().
				Exec(ctx)
			if err != nil {
				return fmt.Errorf("failed to create table %T: %w", model, err)
			}
		}

		return nil
	}, func(ctx context.Context, db *bun.DB) error {
		models := []any{
			(*types.AuditLog)(nil),
			(*types.WhitelistEntry)(nil),
			(*types.VerificationCode)(nil),
			(*types.UnlinkRecord)(nil),
			(*types.PlayerLink)(nil),
		}

		for _, model := range models {
			_, err := db.NewDropTable().
				Model(model).
				IfExists().
				Exec(ctx)
			if err != nil {
				return fmt.Errorf("failed to drop table %T: %w", model, err)
			}
		}

		return nil
	})
}
