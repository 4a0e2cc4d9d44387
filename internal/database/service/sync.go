package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sourcegraph/conc/pool"
	"github.com/squadhub/squadlink/internal/battlemetrics"
	"github.com/squadhub/squadlink/internal/database/types"
	"github.com/squadhub/squadlink/internal/database/types/enum"
	"github.com/squadhub/squadlink/internal/roles"
	"go.uber.org/zap"
)

// membersPerWorker bounds concurrency inside one sync batch; batches
// themselves run sequentially with a fixed delay between them.
const membersPerWorker = 4

// syncEntryStore is the slice of the whitelist store the sync writes through.
type syncEntryStore interface {
	GetBySteamID(ctx context.Context, steamID string, includeRevoked bool) ([]*types.WhitelistEntry, error)
	Insert(ctx context.Context, entry *types.WhitelistEntry) error
	RevokeByIDs(ctx context.Context, ids []uint64, revokedBy uint64, note string) error
}

// syncLinkStore reads every link a member holds, not just the primary, so
// entries left on superseded identities can be cleaned up.
type syncLinkStore interface {
	GetByDiscordID(ctx context.Context, discordUserID uint64) ([]*types.PlayerLink, error)
}

// auditSink records audit events. Writes are best-effort by contract.
type auditSink interface {
	Log(ctx context.Context, log *types.AuditLog)
}

// MemberTagger maintains the community-member flag on the external
// player-management API.
type MemberTagger interface {
	SearchPlayerBySteamID(ctx context.Context, steamID string) (*battlemetrics.Player, error)
	AddFlag(ctx context.Context, playerID, flagID string) error
	RemoveFlag(ctx context.Context, playerID, flagID string) error
}

// SyncService reconciles Discord role membership against the link and
// whitelist stores. Role-derived entries are created, kept, or revoked so the
// two stay consistent; independently-granted entries are never touched. When
// a tagger and flag ID are configured, member-tier access is mirrored as a
// player flag on the player-management API.
type SyncService struct {
	entries      syncEntryStore
	links        syncLinkStore
	audit        auditSink
	mapping      *roles.Mapping
	tagger       MemberTagger
	memberFlagID string
	batchSize    int
	batchDelay   time.Duration
	logger       *zap.Logger
}

// NewSync creates a new sync service. tagger may be nil to disable flag
// mirroring.
func NewSync(
	entries syncEntryStore, links syncLinkStore, audit auditSink, mapping *roles.Mapping,
	tagger MemberTagger, memberFlagID string, batchSize int, batchDelay time.Duration,
	logger *zap.Logger,
) *SyncService {
	return &SyncService{
		entries:      entries,
		links:        links,
		audit:        audit,
		mapping:      mapping,
		tagger:       tagger,
		memberFlagID: memberFlagID,
		batchSize:    batchSize,
		batchDelay:   batchDelay,
		logger:       logger.Named("sync_service"),
	}
}

// SyncDecision is the planned action for one member.
type SyncDecision struct {
	Outcome    enum.SyncOutcome
	Group      *roles.Group
	RevokeIDs  []uint64               // active role-derived entries that lost their backing role
	Superseded []SupersededRevocation // role-derived entries stranded on non-primary identities

	// Confidence gate details when Outcome is SyncOutcomeBlocked.
	ActualConfidence   float64
	RequiredConfidence float64
}

// revokedCount is the total number of entries the decision will revoke.
func (d *SyncDecision) revokedCount() int {
	count := len(d.RevokeIDs)
	for _, stale := range d.Superseded {
		count += len(stale.IDs)
	}

	return count
}

// SupersededRevocation marks active role-derived entries left on a Steam ID
// the member no longer holds as primary.
type SupersededRevocation struct {
	SteamID string
	IDs     []uint64
}

// PlanSupersededRevocations collects active role-derived entries attached to
// non-primary links. Role-derived access follows the primary identity only,
// so these are revoked regardless of which roles the member still holds;
// independently granted entries on the old identity are left alone.
func PlanSupersededRevocations(
	links []*types.PlayerLink, entriesBySteamID map[string][]*types.WhitelistEntry, now time.Time,
) []SupersededRevocation {
	var revocations []SupersededRevocation

	for _, link := range links {
		if link.IsPrimary {
			continue
		}

		var ids []uint64

		for _, entry := range entriesBySteamID[link.SteamID] {
			if entry.Reason.IsRoleDerived() && entry.IsActive(now) {
				ids = append(ids, entry.ID)
			}
		}

		if len(ids) > 0 {
			revocations = append(revocations, SupersededRevocation{SteamID: link.SteamID, IDs: ids})
		}
	}

	return revocations
}

// PlanMemberSync decides what sync should do for one member, given their
// primary link, highest tracked group, held roles, and current non-revoked
// entries. Pure function; all reads happen before, all writes after.
//
// Member-tier groups grant at any link confidence; staff-tier groups are
// gated on maximum confidence and a blocked grant is surfaced, not silently
// skipped. An unlinked identity can never be whitelisted. Active role-derived
// entries whose backing role is gone are marked for revocation regardless of
// the grant outcome.
func PlanMemberSync(
	link *types.PlayerLink, group *roles.Group, heldRoles []uint64,
	entries []*types.WhitelistEntry, mapping *roles.Mapping, now time.Time,
) SyncDecision {
	decision := SyncDecision{Group: group}

	for _, entry := range entries {
		if !entry.Reason.IsRoleDerived() || !entry.IsActive(now) {
			continue
		}

		if !mapping.HoldsGroupWithReason(heldRoles, entry.Reason) {
			decision.RevokeIDs = append(decision.RevokeIDs, entry.ID)
		}
	}

	if group == nil {
		decision.Outcome = enum.SyncOutcomeNone
		return decision
	}

	if link == nil {
		decision.Outcome = enum.SyncOutcomeNoLink
		return decision
	}

	if group.Tier == enum.GroupTierStaff && link.Confidence < roles.MinStaffConfidence {
		decision.Outcome = enum.SyncOutcomeBlocked
		decision.ActualConfidence = link.Confidence
		decision.RequiredConfidence = roles.MinStaffConfidence

		return decision
	}

	for _, entry := range entries {
		if entry.Reason == group.Reason && entry.IsActive(now) {
			decision.Outcome = enum.SyncOutcomeKept
			return decision
		}
	}

	decision.Outcome = enum.SyncOutcomeGranted

	return decision
}

// SyncOptions adjust a single-member sync.
type SyncOptions struct {
	Source string // what triggered the sync, recorded in entry metadata
	DryRun bool
}

// SyncMember reconciles one member's role-derived whitelist state. Running it
// twice in a row produces no further writes. Reads happen at approximately
// one instant; a role change racing the sync is resolved on the next pass.
func (s *SyncService) SyncMember(
	ctx context.Context, member types.MemberRoles, opts SyncOptions,
) (*SyncDecision, error) {
	links, err := s.links.GetByDiscordID(ctx, member.DiscordUserID)
	if err != nil {
		return nil, err
	}

	var link *types.PlayerLink

	for _, candidate := range links {
		if candidate.IsPrimary {
			link = candidate
			break
		}
	}

	now := time.Now()

	var entries []*types.WhitelistEntry
	if link != nil {
		entries, err = s.entries.GetBySteamID(ctx, link.SteamID, false)
		if err != nil {
			return nil, err
		}
	}

	staleEntries := make(map[string][]*types.WhitelistEntry)

	for _, candidate := range links {
		if candidate.IsPrimary {
			continue
		}

		staleEntries[candidate.SteamID], err = s.entries.GetBySteamID(ctx, candidate.SteamID, false)
		if err != nil {
			return nil, err
		}
	}

	group := s.mapping.Highest(member.RoleIDs)
	decision := PlanMemberSync(link, group, member.RoleIDs, entries, s.mapping, now)
	decision.Superseded = PlanSupersededRevocations(links, staleEntries, now)

	switch decision.Outcome {
	case enum.SyncOutcomeNoLink:
		if group.Tier == enum.GroupTierStaff {
			s.logger.Warn("Staff member has no linked Steam account",
				zap.Uint64("discordUserID", member.DiscordUserID),
				zap.String("group", group.Name))
		}
	case enum.SyncOutcomeBlocked:
		s.logger.Warn("Blocked staff whitelist grant on low link confidence",
			zap.Uint64("discordUserID", member.DiscordUserID),
			zap.String("group", group.Name),
			zap.Float64("confidence", decision.ActualConfidence),
			zap.Float64("required", decision.RequiredConfidence))
	}

	if opts.DryRun {
		return &decision, nil
	}

	if err := s.execute(ctx, member, link, &decision, opts.Source); err != nil {
		return nil, err
	}

	return &decision, nil
}

// execute applies a planned decision: revocations first, then the grant.
// Flag mirroring on the player-management API happens after each store write
// and never fails the sync.
func (s *SyncService) execute(
	ctx context.Context, member types.MemberRoles, link *types.PlayerLink,
	decision *SyncDecision, source string,
) error {
	for _, stale := range decision.Superseded {
		if err := s.entries.RevokeByIDs(ctx, stale.IDs, 0, "superseded identity"); err != nil {
			return err
		}

		s.audit.Log(ctx, &types.AuditLog{
			Action:          enum.AuditActionRoleSyncRevoke,
			TargetDiscordID: member.DiscordUserID,
			TargetSteamID:   stale.SteamID,
			After:           map[string]any{"revoked": len(stale.IDs), "source": source, "superseded": true},
			Success:         true,
		})

		s.setMemberFlag(ctx, stale.SteamID, false)
	}

	if len(decision.RevokeIDs) > 0 {
		note := "backing role removed"
		if err := s.entries.RevokeByIDs(ctx, decision.RevokeIDs, 0, note); err != nil {
			return err
		}

		s.audit.Log(ctx, &types.AuditLog{
			Action:          enum.AuditActionRoleSyncRevoke,
			TargetDiscordID: member.DiscordUserID,
			TargetSteamID:   link.SteamID,
			After:           map[string]any{"revoked": len(decision.RevokeIDs), "source": source},
			Success:         true,
		})

		if decision.Outcome != enum.SyncOutcomeGranted && decision.Outcome != enum.SyncOutcomeKept {
			s.setMemberFlag(ctx, link.SteamID, false)
		}
	}

	if decision.Outcome != enum.SyncOutcomeGranted {
		return nil
	}

	group := decision.Group
	entry := &types.WhitelistEntry{
		SteamID:       link.SteamID,
		EOSID:         link.EOSID,
		Username:      member.Username,
		Reason:        group.Reason,
		GrantedAt:     time.Now(),
		DurationValue: group.DurationValue,
		DurationType:  group.DurationType,
		Metadata:      map[string]any{"group": group.Name, "sync_source": source},
	}

	err := s.entries.Insert(ctx, entry)

	s.audit.Log(ctx, &types.AuditLog{
		Action:          enum.AuditActionRoleSyncGrant,
		TargetDiscordID: member.DiscordUserID,
		TargetSteamID:   link.SteamID,
		After:           map[string]any{"group": group.Name, "reason": group.Reason.String(), "source": source},
		Success:         err == nil,
		Error:           errString(err),
	})

	if err == nil && group.Tier == enum.GroupTierMember {
		s.setMemberFlag(ctx, link.SteamID, true)
	}

	return err
}

// setMemberFlag reconciles the member flag on the player-management API. The
// whitelist store is authoritative; a failed flag write is logged and left
// for the next sync pass to retry.
func (s *SyncService) setMemberFlag(ctx context.Context, steamID string, present bool) {
	if s.tagger == nil || s.memberFlagID == "" {
		return
	}

	player, err := s.tagger.SearchPlayerBySteamID(ctx, steamID)
	if err != nil {
		if errors.Is(err, battlemetrics.ErrPlayerNotFound) {
			s.logger.Debug("No player record to tag", zap.String("steamID", steamID))
			return
		}

		s.logger.Warn("Failed to look up player for member flag",
			zap.String("steamID", steamID), zap.Error(err))

		return
	}

	if present {
		err = s.tagger.AddFlag(ctx, player.ID, s.memberFlagID)
	} else {
		err = s.tagger.RemoveFlag(ctx, player.ID, s.memberFlagID)
	}

	if err != nil {
		s.logger.Warn("Failed to update member flag",
			zap.String("steamID", steamID),
			zap.Bool("present", present),
			zap.Error(err))
	}
}

// SyncReport aggregates the outcomes of a bulk pass.
type SyncReport struct {
	mu sync.Mutex

	Total    int
	Outcomes map[enum.SyncOutcome]int
	Revoked  int
	Errors   int
}

func newSyncReport() *SyncReport {
	return &SyncReport{Outcomes: make(map[enum.SyncOutcome]int)}
}

func (r *SyncReport) record(decision *SyncDecision, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.Total++

	if err != nil {
		r.Errors++
		return
	}

	r.Outcomes[decision.Outcome]++
	r.Revoked += decision.revokedCount()
}

// BulkSync reconciles every supplied guild member in sequential batches with
// bounded per-batch concurrency. Individual member failures are counted and
// skipped so one bad row cannot abort a full pass.
func (s *SyncService) BulkSync(
	ctx context.Context, members []types.MemberRoles, opts SyncOptions,
) (*SyncReport, error) {
	report := newSyncReport()

	batchSize := s.batchSize
	if batchSize <= 0 {
		batchSize = len(members)
	}

	for start := 0; start < len(members); start += batchSize {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		end := min(start+batchSize, len(members))

		p := pool.New().WithContext(ctx).WithMaxGoroutines(membersPerWorker)

		for _, member := range members[start:end] {
			p.Go(func(ctx context.Context) error {
				decision, err := s.SyncMember(ctx, member, opts)
				if err != nil {
					s.logger.Error("Failed to sync member",
						zap.Uint64("discordUserID", member.DiscordUserID),
						zap.Error(err))
				}

				report.record(decision, err)

				return nil
			})
		}

		if err := p.Wait(); err != nil {
			return report, err
		}

		if end < len(members) && s.batchDelay > 0 {
			select {
			case <-time.After(s.batchDelay):
			case <-ctx.Done():
				return report, ctx.Err()
			}
		}
	}

	s.logger.Info("Completed bulk sync",
		zap.Int("total", report.Total),
		zap.Int("granted", report.Outcomes[enum.SyncOutcomeGranted]),
		zap.Int("kept", report.Outcomes[enum.SyncOutcomeKept]),
		zap.Int("blocked", report.Outcomes[enum.SyncOutcomeBlocked]),
		zap.Int("revoked", report.Revoked),
		zap.Int("errors", report.Errors),
		zap.Bool("dryRun", opts.DryRun))

	return report, nil
}

// HandleRoleChange processes a single member's role-change event. Events for
// members with no tracked roles in either direction are ignored before any
// database read.
func (s *SyncService) HandleRoleChange(
	ctx context.Context, event types.RoleChangedEvent, member types.MemberRoles,
) (*SyncDecision, error) {
	tracked := false

	for _, id := range append(append([]uint64{}, event.AddedRoles...), event.RemovedRoles...) {
		if s.mapping.ByRoleID(id) != nil {
			tracked = true
			break
		}
	}

	if !tracked {
		return nil, nil
	}

	return s.SyncMember(ctx, member, SyncOptions{Source: "role_change"})
}
