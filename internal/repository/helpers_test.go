package repository

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"RewardLedger/internal/config"
	"RewardLedger/internal/model"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testTimeout = 5 * time.Second

// newTestDB 每个测试独立的 sqlite 文件库
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := OpenDatabase(config.DatabaseConfig{
		Driver: "sqlite",
		DSN:    filepath.Join(t.TempDir(), "ledger.db"),
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func newMigratedDB(t *testing.T) *gorm.DB {
	t.Helper()
	db := newTestDB(t)
	require.NoError(t, Migrate(db))
	return db
}

func settledAt(ts int64) *int64 { return &ts }

func seedCampaign(t *testing.T, db *gorm.DB, id, mint string, createdAt int64) {
	t.Helper()
	require.NoError(t, db.Create(&model.Campaign{ID: id, TokenMint: mint, Name: id, CreatedAtUnix: createdAt}).Error)
}

func seedEpoch(t *testing.T, db *gorm.DB, id, campaignID string, number int, status model.EpochStatus, settled *int64) {
	t.Helper()
	require.NoError(t, db.Create(&model.Epoch{
		ID:            id,
		CampaignID:    campaignID,
		EpochNumber:   number,
		Status:        status,
		SettledAtUnix: settled,
	}).Error)
}

func seedReward(t *testing.T, db *gorm.DB, epochID, wallet string, amount model.Lamports, claimed bool) {
	t.Helper()
	require.NoError(t, db.Create(&model.EpochReward{
		EpochID:        epochID,
		WalletPubkey:   wallet,
		RewardLamports: amount,
		Claimed:        claimed,
	}).Error)
}

// recordDeadlines 记录之后每条 Raw/Row 语句执行时上下文是否带截止时间
func recordDeadlines(t *testing.T, db *gorm.DB) func() []bool {
	t.Helper()
	var (
		mu   sync.Mutex
		seen []bool
	)
	record := func(tx *gorm.DB) {
		_, ok := tx.Statement.Context.Deadline()
		mu.Lock()
		seen = append(seen, ok)
		mu.Unlock()
	}
	require.NoError(t, db.Callback().Raw().Before("gorm:raw").Register("test:deadline_raw", record))
	require.NoError(t, db.Callback().Row().Before("gorm:row").Register("test:deadline_row", record))
	return func() []bool {
		mu.Lock()
		defer mu.Unlock()
		return append([]bool(nil), seen...)
	}
}
