package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"RewardLedger/internal/apperr"
	"RewardLedger/internal/model"
	"RewardLedger/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestComputeClaimability(t *testing.T) {
	rows := []repository.WalletRewardRow{
		{EpochID: "e1", RewardLamports: 500, EpochStatus: model.EpochSettled},
		{EpochID: "e2", RewardLamports: 300, Claimed: true, EpochStatus: model.EpochSettled},
		{EpochID: "e3", RewardLamports: 200, EpochStatus: model.EpochOpen},
	}
	out, err := ComputeClaimability(rows, 1000)
	require.NoError(t, err)

	assert.Equal(t, model.Lamports(500), out.AvailableLamports)
	assert.Equal(t, model.Lamports(200), out.PendingLamports)
	assert.Equal(t, []string{"e1"}, out.AvailableEpochIDs)
	assert.Equal(t, 1, out.AvailableRewardCount)
	assert.Equal(t, 1, out.PendingRewardCount)
	assert.True(t, out.Available)
	assert.False(t, out.ThresholdMet)
	assert.Equal(t, "0.0000005", out.AvailableSOL)
}

func TestComputeClaimabilityThreshold(t *testing.T) {
	tests := []struct {
		available model.Lamports
		met       bool
	}{
		{400, false},
		{1000, true},
		{1200, true},
	}
	for _, tt := range tests {
		rows := []repository.WalletRewardRow{{EpochID: "e1", RewardLamports: tt.available, EpochStatus: model.EpochSettled}}
		out, err := ComputeClaimability(rows, 1000)
		require.NoError(t, err)
		assert.Equal(t, tt.met, out.ThresholdMet, "available=%d", tt.available)
		assert.True(t, out.Available)
	}
}

func TestComputeClaimabilityEpochIDsUnique(t *testing.T) {
	rows := []repository.WalletRewardRow{
		{EpochID: "e2", RewardLamports: 1, EpochStatus: model.EpochSettled},
		{EpochID: "e1", RewardLamports: 2, EpochStatus: model.EpochSettled},
		{EpochID: "e2", RewardLamports: 3, EpochStatus: model.EpochSettled},
		{EpochID: "e4", RewardLamports: 0, EpochStatus: model.EpochSettled},
	}
	out, err := ComputeClaimability(rows, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"e2", "e1"}, out.AvailableEpochIDs)
	assert.Equal(t, model.Lamports(6), out.AvailableLamports)
}

func TestComputeClaimabilityEmpty(t *testing.T) {
	out, err := ComputeClaimability(nil, 100)
	require.NoError(t, err)
	assert.False(t, out.Available)
	assert.False(t, out.ThresholdMet)

	b, err := json.Marshal(out)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"availableEpochIds":[]`)
	assert.Contains(t, string(b), `"pendingLamports":"0"`)
	assert.Contains(t, string(b), `"thresholdLamports":"100"`)
}

func TestComputeClaimabilityOverflow(t *testing.T) {
	rows := []repository.WalletRewardRow{
		{EpochID: "e1", RewardLamports: ^model.Lamports(0), EpochStatus: model.EpochSettled},
		{EpochID: "e2", RewardLamports: 1, EpochStatus: model.EpochSettled},
	}
	_, err := ComputeClaimability(rows, 0)
	assert.ErrorIs(t, err, model.ErrLamportsOverflow)
}

func newClaimFixture(t *testing.T, threshold model.Lamports) (*ClaimabilityService, *gorm.DB, string) {
	db := newLedgerDB(t)
	wallet := testWallet(7)
	mustCreate(t, db,
		&model.Campaign{ID: "c1", TokenMint: "mintA", CreatedAtUnix: 1},
		&model.Campaign{ID: "c2", TokenMint: "mintB", CreatedAtUnix: 2},
		&model.Epoch{ID: "e1", CampaignID: "c1", EpochNumber: 1, Status: model.EpochSettled, SettledAtUnix: i64(10)},
		&model.Epoch{ID: "e2", CampaignID: "c1", EpochNumber: 2, Status: model.EpochSettled, SettledAtUnix: i64(20)},
		&model.Epoch{ID: "e3", CampaignID: "c1", EpochNumber: 3, Status: model.EpochOpen},
		&model.Epoch{ID: "e4", CampaignID: "c2", EpochNumber: 1, Status: model.EpochSettled, SettledAtUnix: i64(30)},
		&model.EpochReward{EpochID: "e1", WalletPubkey: wallet, RewardLamports: 500},
		&model.EpochReward{EpochID: "e2", WalletPubkey: wallet, RewardLamports: 300},
		&model.EpochReward{EpochID: "e3", WalletPubkey: wallet, RewardLamports: 200},
		&model.EpochReward{EpochID: "e4", WalletPubkey: wallet, RewardLamports: 400},
		event("c1", wallet, f64(1), 1),
		event("c1", wallet, f64(2), 2),
		event("c2", wallet, f64(3), 3),
		&model.EngagementEvent{CampaignID: "c2", WalletPubkey: wallet, FinalScore: f64(3), IsSpam: true, CreatedAtUnix: 4},
	)

	svc := NewClaimabilityService(
		repository.NewRewardSourceDetector(db, testTimeout),
		repository.NewClaimRepository(db, testTimeout),
		repository.NewEngagementRepository(db, testTimeout),
		threshold,
		testLogger(),
	)
	svc.now = func() time.Time { return time.Unix(1_700_000_000, 0) }
	return svc, db, wallet
}

func TestClaimableFromStore(t *testing.T) {
	svc, _, wallet := newClaimFixture(t, 1000)

	out, err := svc.Claimable(context.Background(), wallet)
	require.NoError(t, err)
	assert.Equal(t, model.Lamports(1200), out.AvailableLamports)
	assert.Equal(t, model.Lamports(200), out.PendingLamports)
	assert.Equal(t, []string{"e1", "e4", "e2"}, out.AvailableEpochIDs)
	assert.True(t, out.ThresholdMet)
}

func TestClaimableValidation(t *testing.T) {
	svc, _, _ := newClaimFixture(t, 0)
	for _, wallet := range []string{"", "not-base58-0OIl", testWallet(1)[:20]} {
		_, err := svc.Claimable(context.Background(), wallet)
		assert.True(t, apperr.Is(err, apperr.CodeValidation), "wallet=%q", wallet)
	}
}

func TestClaimabilityRequiresPersistentStore(t *testing.T) {
	svc := NewClaimabilityService(nil, nil, nil, 0, testLogger())
	_, err := svc.Claimable(context.Background(), testWallet(1))
	assert.True(t, apperr.Is(err, apperr.CodeUnavailable))
	_, err = svc.HolderStats(context.Background(), testWallet(1))
	assert.True(t, apperr.Is(err, apperr.CodeUnavailable))
}

func TestRecordClaimThenStats(t *testing.T) {
	svc, _, wallet := newClaimFixture(t, 700)
	ctx := context.Background()

	res, err := svc.RecordClaim(ctx, wallet, ClaimRequest{EpochIDs: []string{"e1", "e2", "e1", " "}})
	require.NoError(t, err)
	assert.Equal(t, model.Lamports(800), res.TotalLamports)
	require.Len(t, res.Claims, 2)
	assert.Equal(t, int64(1_700_000_000), res.ClaimedAtUnix)

	out, err := svc.Claimable(ctx, wallet)
	require.NoError(t, err)
	assert.Equal(t, model.Lamports(400), out.AvailableLamports)
	assert.Equal(t, []string{"e4"}, out.AvailableEpochIDs)
	assert.False(t, out.ThresholdMet)

	stats, err := svc.HolderStats(ctx, wallet)
	require.NoError(t, err)
	assert.Equal(t, model.Lamports(1400), stats.TotalEarned)
	assert.Equal(t, model.Lamports(800), stats.TotalClaimed)
	assert.Equal(t, model.Lamports(600), stats.TotalPending)
	assert.Equal(t, stats.TotalEarned, stats.TotalClaimed+stats.TotalPending)
	assert.Equal(t, int64(2), stats.CampaignsJoined)
	assert.Equal(t, int64(3), stats.TotalEngagements)
}

func TestRecordClaimErrors(t *testing.T) {
	svc, _, wallet := newClaimFixture(t, 700)
	ctx := context.Background()

	_, err := svc.RecordClaim(ctx, wallet, ClaimRequest{})
	assert.True(t, apperr.Is(err, apperr.CodeValidation))

	bad := "bad-signature"
	_, err = svc.RecordClaim(ctx, wallet, ClaimRequest{EpochIDs: []string{"e1"}, TxSig: &bad})
	assert.True(t, apperr.Is(err, apperr.CodeValidation))

	_, err = svc.RecordClaim(ctx, wallet, ClaimRequest{EpochIDs: []string{"e1"}})
	assert.True(t, apperr.Is(err, apperr.CodeConflict), "below threshold")
	assert.ErrorIs(t, err, repository.ErrBelowThreshold)

	_, err = svc.RecordClaim(ctx, wallet, ClaimRequest{EpochIDs: []string{"e1", "e3"}})
	assert.True(t, apperr.Is(err, apperr.CodeConflict), "unsettled epoch")
	assert.ErrorIs(t, err, repository.ErrRewardNotSettled)

	_, err = svc.RecordClaim(ctx, wallet, ClaimRequest{EpochIDs: []string{"missing"}})
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))

	// 以上失败都没有留下部分领取
	out, err := svc.Claimable(ctx, wallet)
	require.NoError(t, err)
	assert.Equal(t, model.Lamports(1200), out.AvailableLamports)
}

func TestHolderStatsClaimedExceedsEarned(t *testing.T) {
	svc, db, wallet := newClaimFixture(t, 0)
	mustCreate(t, db, &model.RewardClaim{ID: "legacy", EpochID: "gone", WalletPubkey: wallet, AmountLamports: 5000, ClaimedAtUnix: 1})

	stats, err := svc.HolderStats(context.Background(), wallet)
	require.NoError(t, err)
	assert.Equal(t, model.Lamports(5000), stats.TotalEarned)
	assert.Equal(t, model.Lamports(5000), stats.TotalClaimed)
	assert.Zero(t, stats.TotalPending)
}
