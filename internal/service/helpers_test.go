package service

import (
	"bytes"
	"io"
	"path/filepath"
	"testing"
	"time"

	"RewardLedger/internal/config"
	"RewardLedger/internal/model"
	"RewardLedger/internal/repository"

	"github.com/mr-tron/base58"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testTimeout = 5 * time.Second

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newLedgerDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := repository.OpenDatabase(config.DatabaseConfig{
		Driver: "sqlite",
		DSN:    filepath.Join(t.TempDir(), "ledger.db"),
	}, nil)
	require.NoError(t, err)
	require.NoError(t, repository.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// testWallet 由固定字节生成的合法 base58 公钥
func testWallet(b byte) string {
	return base58.Encode(bytes.Repeat([]byte{b}, 32))
}

func f64(v float64) *float64 { return &v }

func i64(v int64) *int64 { return &v }

func mustCreate(t *testing.T, db *gorm.DB, values ...interface{}) {
	t.Helper()
	for _, v := range values {
		require.NoError(t, db.Create(v).Error)
	}
}

func event(campaignID, wallet string, score *float64, at int64) *model.EngagementEvent {
	return &model.EngagementEvent{CampaignID: campaignID, WalletPubkey: wallet, FinalScore: score, CreatedAtUnix: at}
}
