package database

import (
	"github.com/squadhub/squadlink/internal/database/models"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// Repository provides access to all database models.
type Repository struct {
	link         *models.LinkModel
	verification *models.VerificationModel
	whitelist    *models.WhitelistModel
	audit        *models.AuditModel
}

// NewRepository creates a new repository instance with all models.
func NewRepository(db *bun.DB, logger *zap.Logger) *Repository {
	return &Repository{
		link:         models.NewLink(db, logger),
		verification: models.NewVerification(db, logger),
		whitelist:    models.NewWhitelist(db, logger),
		audit:        models.NewAudit(db, logger),
	}
}

// Link returns the player link model repository.
func (r *Repository) Link() *models.LinkModel {
	return r.link
}

// Verification returns the verification code model repository.
func (r *Repository) Verification() *models.VerificationModel {
	return r.verification
}

// Whitelist returns the whitelist entry model repository.
func (r *Repository) Whitelist() *models.WhitelistModel {
	return r.whitelist
}

// Audit returns the audit log model repository.
func (r *Repository) Audit() *models.AuditModel {
	return r.audit
}
