package service

import (
	"context"
	"testing"
	"time"

	"github.com/squadhub/squadlink/internal/database/types"
	"github.com/squadhub/squadlink/internal/database/types/enum"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

type fakeCodeStore struct {
	codes map[string]*types.VerificationCode
}

func (f *fakeCodeStore) GetActiveByUser(
	_ context.Context, discordUserID uint64, now time.Time,
) (*types.VerificationCode, error) {
	for _, code := range f.codes {
		if code.DiscordUserID == discordUserID && code.ExpiresAt.After(now) {
			return code, nil
		}
	}

	return nil, types.ErrCodeNotFoundOrExpired
}

func (f *fakeCodeStore) Insert(_ context.Context, code *types.VerificationCode) error {
	if _, exists := f.codes[code.Code]; exists {
		return types.ErrCodeCollision
	}

	f.codes[code.Code] = code

	return nil
}

func (f *fakeCodeStore) ConsumeTx(
	_ context.Context, _ bun.IDB, code string, now time.Time,
) (*types.VerificationCode, error) {
	stored, ok := f.codes[code]
	if !ok || !stored.ExpiresAt.After(now) {
		return nil, types.ErrCodeNotFoundOrExpired
	}

	delete(f.codes, code)

	return stored, nil
}

func (f *fakeCodeStore) PurgeExpired(_ context.Context, now time.Time) (int64, error) {
	var purged int64

	for key, code := range f.codes {
		if !code.ExpiresAt.After(now) {
			delete(f.codes, key)
			purged++
		}
	}

	return purged, nil
}

type fakeLinkApplier struct {
	applied []*types.PlayerLink
}

func (f *fakeLinkApplier) ApplyTx(
	_ context.Context, _ bun.IDB, link *types.PlayerLink,
) (*types.PlayerLink, bool, error) {
	f.applied = append(f.applied, link)
	return link, true, nil
}

func newTestVerification(codes *fakeCodeStore, links *fakeLinkApplier) *VerificationService {
	return &VerificationService{
		codes:  codes,
		links:  links,
		audit:  &fakeAudit{},
		length: 6,
		ttl:    15 * time.Minute,
		logger: zap.NewNop(),
	}
}

func TestRedeemTxConsumesCodeOnce(t *testing.T) {
	t.Parallel()

	const steamID = "76561198000000042"

	codes := &fakeCodeStore{codes: map[string]*types.VerificationCode{
		"ABCD23": {
			Code:          "ABCD23",
			DiscordUserID: 1000,
			CreatedAt:     time.Now(),
			ExpiresAt:     time.Now().Add(10 * time.Minute),
		},
	}}
	links := &fakeLinkApplier{}
	svc := newTestVerification(codes, links)

	link, err := svc.redeemTx(t.Context(), bun.Tx{}, "ABCD23", steamID, "player")
	require.NoError(t, err)

	assert.Equal(t, uint64(1000), link.DiscordUserID)
	assert.Equal(t, steamID, link.SteamID)
	assert.Equal(t, enum.LinkSourceSelfVerified, link.Source)
	assert.InDelta(t, 1.0, link.Confidence, 0.001)
	assert.True(t, link.IsPrimary)
	require.Len(t, links.applied, 1)

	// A duplicate delivery of the same confirmation must be a no-op: the
	// compare-and-delete fails and no second link write happens.
	_, err = svc.redeemTx(t.Context(), bun.Tx{}, "ABCD23", steamID, "player")
	assert.ErrorIs(t, err, types.ErrCodeNotFoundOrExpired)
	assert.Len(t, links.applied, 1)
}

func TestRedeemTxRejectsExpiredCode(t *testing.T) {
	t.Parallel()

	codes := &fakeCodeStore{codes: map[string]*types.VerificationCode{
		"STALE9": {
			Code:          "STALE9",
			DiscordUserID: 1000,
			CreatedAt:     time.Now().Add(-time.Hour),
			ExpiresAt:     time.Now().Add(-30 * time.Minute),
		},
	}}
	links := &fakeLinkApplier{}
	svc := newTestVerification(codes, links)

	_, err := svc.redeemTx(t.Context(), bun.Tx{}, "STALE9", "76561198000000042", "player")
	assert.ErrorIs(t, err, types.ErrCodeNotFoundOrExpired)
	assert.Empty(t, links.applied, "an expired code never mutates a link")
}

func TestIssueCodeReturnsOutstandingCode(t *testing.T) {
	t.Parallel()

	existing := &types.VerificationCode{
		Code:          "KEEP42",
		DiscordUserID: 1000,
		CreatedAt:     time.Now(),
		ExpiresAt:     time.Now().Add(10 * time.Minute),
	}
	codes := &fakeCodeStore{codes: map[string]*types.VerificationCode{"KEEP42": existing}}
	svc := newTestVerification(codes, &fakeLinkApplier{})

	code, err := svc.IssueCode(t.Context(), 1000)
	require.NoError(t, err)

	assert.Equal(t, "KEEP42", code.Code, "an unexpired code is reissued, not replaced")
	assert.Len(t, codes.codes, 1)
}
