package service

import (
	"context"
	"errors"
	"testing"

	"github.com/squadhub/squadlink/internal/battlemetrics"
	"github.com/squadhub/squadlink/internal/database/types"
	"github.com/squadhub/squadlink/internal/database/types/enum"
	"github.com/squadhub/squadlink/internal/roles"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeEntryStore struct {
	entries     map[string][]*types.WhitelistEntry
	inserted    []*types.WhitelistEntry
	revokedIDs  [][]uint64
	revokeNotes []string
}

func (f *fakeEntryStore) GetBySteamID(_ context.Context, steamID string, _ bool) ([]*types.WhitelistEntry, error) {
	return f.entries[steamID], nil
}

func (f *fakeEntryStore) Insert(_ context.Context, entry *types.WhitelistEntry) error {
	f.inserted = append(f.inserted, entry)
	return nil
}

func (f *fakeEntryStore) RevokeByIDs(_ context.Context, ids []uint64, _ uint64, note string) error {
	f.revokedIDs = append(f.revokedIDs, ids)
	f.revokeNotes = append(f.revokeNotes, note)

	return nil
}

type fakeLinkStore struct {
	links []*types.PlayerLink
}

func (f *fakeLinkStore) GetByDiscordID(context.Context, uint64) ([]*types.PlayerLink, error) {
	return f.links, nil
}

type fakeAudit struct {
	logs []*types.AuditLog
}

func (f *fakeAudit) Log(_ context.Context, log *types.AuditLog) {
	f.logs = append(f.logs, log)
}

type fakeTagger struct {
	players map[string]string // Steam ID to player ID
	added   [][2]string       // player ID, flag ID
	removed [][2]string
	flagErr error
}

func (f *fakeTagger) SearchPlayerBySteamID(_ context.Context, steamID string) (*battlemetrics.Player, error) {
	id, ok := f.players[steamID]
	if !ok {
		return nil, battlemetrics.ErrPlayerNotFound
	}

	return &battlemetrics.Player{ID: id, SteamID: steamID}, nil
}

func (f *fakeTagger) AddFlag(_ context.Context, playerID, flagID string) error {
	if f.flagErr != nil {
		return f.flagErr
	}

	f.added = append(f.added, [2]string{playerID, flagID})

	return nil
}

func (f *fakeTagger) RemoveFlag(_ context.Context, playerID, flagID string) error {
	if f.flagErr != nil {
		return f.flagErr
	}

	f.removed = append(f.removed, [2]string{playerID, flagID})

	return nil
}

const (
	testStaffRoleID  = uint64(100)
	testMemberRoleID = uint64(200)
	testMemberFlag   = "flag-members"
	steamPrimary     = "76561198000000001"
	steamOld         = "76561198000000002"
)

func newTestSync(
	t *testing.T, entries *fakeEntryStore, links *fakeLinkStore, tagger *fakeTagger,
) (*SyncService, *fakeAudit) {
	t.Helper()

	mapping, err := roles.NewMapping([]roles.GroupConfig{
		{Name: "Admin", RoleID: testStaffRoleID, Tier: "staff", Priority: 100},
		{Name: "Member", RoleID: testMemberRoleID, Tier: "member", Priority: 10},
	})
	require.NoError(t, err)

	audit := &fakeAudit{}

	return &SyncService{
		entries:      entries,
		links:        links,
		audit:        audit,
		mapping:      mapping,
		tagger:       tagger,
		memberFlagID: testMemberFlag,
		logger:       zap.NewNop(),
	}, audit
}

func primaryLink(steamID string, confidence float64) *types.PlayerLink {
	return &types.PlayerLink{
		DiscordUserID: 1000,
		SteamID:       steamID,
		Confidence:    confidence,
		IsPrimary:     true,
	}
}

func TestSyncMemberGrantTagsMemberFlag(t *testing.T) {
	t.Parallel()

	entries := &fakeEntryStore{entries: map[string][]*types.WhitelistEntry{}}
	links := &fakeLinkStore{links: []*types.PlayerLink{primaryLink(steamPrimary, 0.7)}}
	tagger := &fakeTagger{players: map[string]string{steamPrimary: "p1"}}

	svc, _ := newTestSync(t, entries, links, tagger)

	member := types.MemberRoles{DiscordUserID: 1000, Username: "player", RoleIDs: []uint64{testMemberRoleID}}

	decision, err := svc.SyncMember(t.Context(), member, SyncOptions{Source: "manual_sync"})
	require.NoError(t, err)
	assert.Equal(t, enum.SyncOutcomeGranted, decision.Outcome)

	require.Len(t, entries.inserted, 1)
	assert.Equal(t, enum.WhitelistReasonMemberRole, entries.inserted[0].Reason)
	assert.Equal(t, [][2]string{{"p1", testMemberFlag}}, tagger.added)
}

func TestSyncMemberStaffGrantDoesNotTag(t *testing.T) {
	t.Parallel()

	entries := &fakeEntryStore{entries: map[string][]*types.WhitelistEntry{}}
	links := &fakeLinkStore{links: []*types.PlayerLink{primaryLink(steamPrimary, 1.0)}}
	tagger := &fakeTagger{players: map[string]string{steamPrimary: "p1"}}

	svc, _ := newTestSync(t, entries, links, tagger)

	member := types.MemberRoles{DiscordUserID: 1000, RoleIDs: []uint64{testStaffRoleID}}

	decision, err := svc.SyncMember(t.Context(), member, SyncOptions{Source: "manual_sync"})
	require.NoError(t, err)
	assert.Equal(t, enum.SyncOutcomeGranted, decision.Outcome)

	require.Len(t, entries.inserted, 1)
	assert.Empty(t, tagger.added, "the member flag tracks member-tier access only")
}

func TestSyncMemberUntagsWhenRoleLost(t *testing.T) {
	t.Parallel()

	entries := &fakeEntryStore{entries: map[string][]*types.WhitelistEntry{
		steamPrimary: {
			{ID: 5, SteamID: steamPrimary, Reason: enum.WhitelistReasonMemberRole},
		},
	}}
	links := &fakeLinkStore{links: []*types.PlayerLink{primaryLink(steamPrimary, 1.0)}}
	tagger := &fakeTagger{players: map[string]string{steamPrimary: "p1"}}

	svc, audit := newTestSync(t, entries, links, tagger)

	member := types.MemberRoles{DiscordUserID: 1000, RoleIDs: []uint64{999}}

	decision, err := svc.SyncMember(t.Context(), member, SyncOptions{Source: "role_change"})
	require.NoError(t, err)
	assert.Equal(t, enum.SyncOutcomeNone, decision.Outcome)

	require.Len(t, entries.revokedIDs, 1)
	assert.Equal(t, []uint64{5}, entries.revokedIDs[0])
	assert.Equal(t, [][2]string{{"p1", testMemberFlag}}, tagger.removed)
	assert.NotEmpty(t, audit.logs)
}

func TestSyncMemberRevokesSupersededIdentity(t *testing.T) {
	t.Parallel()

	entries := &fakeEntryStore{entries: map[string][]*types.WhitelistEntry{
		steamPrimary: {
			{ID: 1, SteamID: steamPrimary, Reason: enum.WhitelistReasonMemberRole},
		},
		steamOld: {
			{ID: 9, SteamID: steamOld, Reason: enum.WhitelistReasonMemberRole},
			{ID: 10, SteamID: steamOld, Reason: enum.WhitelistReasonDonation},
		},
	}}
	links := &fakeLinkStore{links: []*types.PlayerLink{
		primaryLink(steamPrimary, 1.0),
		{DiscordUserID: 1000, SteamID: steamOld, Confidence: 0.7},
	}}
	tagger := &fakeTagger{players: map[string]string{steamPrimary: "p1", steamOld: "p2"}}

	svc, _ := newTestSync(t, entries, links, tagger)

	member := types.MemberRoles{DiscordUserID: 1000, RoleIDs: []uint64{testMemberRoleID}}

	decision, err := svc.SyncMember(t.Context(), member, SyncOptions{Source: "manual_sync"})
	require.NoError(t, err)
	assert.Equal(t, enum.SyncOutcomeKept, decision.Outcome)

	// Only the role-derived entry on the superseded identity is revoked,
	// even though the backing role is still held.
	require.Len(t, entries.revokedIDs, 1)
	assert.Equal(t, []uint64{9}, entries.revokedIDs[0])
	assert.Equal(t, []string{"superseded identity"}, entries.revokeNotes)
	assert.Equal(t, [][2]string{{"p2", testMemberFlag}}, tagger.removed)
	assert.Empty(t, tagger.added)
}

func TestSyncMemberTaggerFailureDoesNotFailSync(t *testing.T) {
	t.Parallel()

	entries := &fakeEntryStore{entries: map[string][]*types.WhitelistEntry{}}
	links := &fakeLinkStore{links: []*types.PlayerLink{primaryLink(steamPrimary, 0.7)}}
	tagger := &fakeTagger{
		players: map[string]string{steamPrimary: "p1"},
		flagErr: errors.New("api unavailable"),
	}

	svc, _ := newTestSync(t, entries, links, tagger)

	member := types.MemberRoles{DiscordUserID: 1000, RoleIDs: []uint64{testMemberRoleID}}

	decision, err := svc.SyncMember(t.Context(), member, SyncOptions{Source: "manual_sync"})
	require.NoError(t, err)
	assert.Equal(t, enum.SyncOutcomeGranted, decision.Outcome)
	assert.Len(t, entries.inserted, 1, "the store write stands even when tagging fails")
}

func TestSyncMemberDryRunWritesNothing(t *testing.T) {
	t.Parallel()

	entries := &fakeEntryStore{entries: map[string][]*types.WhitelistEntry{
		steamOld: {
			{ID: 9, SteamID: steamOld, Reason: enum.WhitelistReasonMemberRole},
		},
	}}
	links := &fakeLinkStore{links: []*types.PlayerLink{
		primaryLink(steamPrimary, 0.7),
		{DiscordUserID: 1000, SteamID: steamOld, Confidence: 0.7},
	}}
	tagger := &fakeTagger{players: map[string]string{steamPrimary: "p1", steamOld: "p2"}}

	svc, audit := newTestSync(t, entries, links, tagger)

	member := types.MemberRoles{DiscordUserID: 1000, RoleIDs: []uint64{testMemberRoleID}}

	decision, err := svc.SyncMember(t.Context(), member, SyncOptions{Source: "manual_sync", DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, enum.SyncOutcomeGranted, decision.Outcome)
	require.Len(t, decision.Superseded, 1)

	assert.Empty(t, entries.inserted)
	assert.Empty(t, entries.revokedIDs)
	assert.Empty(t, tagger.added)
	assert.Empty(t, tagger.removed)
	assert.Empty(t, audit.logs)
}
