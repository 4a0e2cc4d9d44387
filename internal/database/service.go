package database

import (
	"time"

	"github.com/squadhub/squadlink/internal/database/service"
	"github.com/squadhub/squadlink/internal/roles"
	"github.com/squadhub/squadlink/internal/setup/config"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// Service provides access to all business logic services.
type Service struct {
	link         *service.LinkService
	verification *service.VerificationService
	whitelist    *service.WhitelistService
	sync         *service.SyncService
	authority    *service.AuthorityService
}

// NewService creates a new service instance with all services. tagger may be
// nil when no player-management API is available, such as migration tooling.
func NewService(
	db *bun.DB, repository *Repository, cfg *config.CommonConfig,
	mapping *roles.Mapping, tagger service.MemberTagger, logger *zap.Logger,
) *Service {
	linkModel := repository.Link()
	verificationModel := repository.Verification()
	whitelistModel := repository.Whitelist()
	auditModel := repository.Audit()

	return &Service{
		link: service.NewLink(
			linkModel, auditModel,
			time.Duration(cfg.Link.RelinkCooldownDays)*24*time.Hour, logger),
		verification: service.NewVerification(
			db, verificationModel, linkModel, auditModel,
			cfg.Verification.CodeLength,
			time.Duration(cfg.Verification.CodeTTLMinutes)*time.Minute, logger),
		whitelist: service.NewWhitelist(whitelistModel, linkModel, auditModel, logger),
		sync: service.NewSync(
			whitelistModel, linkModel, auditModel, mapping,
			tagger, cfg.BattleMetrics.MemberFlagID,
			cfg.Sync.BatchSize,
			time.Duration(cfg.Sync.BatchDelaySeconds)*time.Second, logger),
		authority: service.NewAuthority(whitelistModel, linkModel, mapping, logger),
	}
}

// Link returns the account link service.
func (s *Service) Link() *service.LinkService {
	return s.link
}

// Verification returns the verification code service.
func (s *Service) Verification() *service.VerificationService {
	return s.verification
}

// Whitelist returns the whitelist grant service.
func (s *Service) Whitelist() *service.WhitelistService {
	return s.whitelist
}

// Sync returns the role-whitelist sync service.
func (s *Service) Sync() *service.SyncService {
	return s.sync
}

// Authority returns the whitelist authority service.
func (s *Service) Authority() *service.AuthorityService {
	return s.authority
}
