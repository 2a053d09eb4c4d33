package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"RewardLedger/internal/model"

	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
)

// ErrNoRewardTable 新旧奖励表都不存在
var ErrNoRewardTable = errors.New("no reward table (epoch_rewards / epoch_scores) present")

// WalletRewardRow 钱包在某个周期的奖励行，附带周期结算状态
type WalletRewardRow struct {
	EpochID        string
	EpochNumber    int
	CampaignID     string
	RewardLamports model.Lamports
	Claimed        bool
	EpochStatus    model.EpochStatus
}

// Settled 所属周期是否已结算
func (r WalletRewardRow) Settled() bool {
	return r.EpochStatus == model.EpochSettled
}

// RewardSource 奖励表能力接口，屏蔽 epoch_rewards / epoch_scores 两代表结构的差异
type RewardSource interface {
	Name() string
	// WalletRewards 钱包在所有周期的奖励行，按周期序号排序
	WalletRewards(ctx context.Context, wallet string) ([]WalletRewardRow, error)
	// WalletRewardForEpoch 在事务内读取单个周期的奖励行
	WalletRewardForEpoch(tx *gorm.DB, epochID, wallet string) (*WalletRewardRow, bool, error)
	// PayoutTotals 已结算周期中正数奖励按 token_mint 汇总；sinceUnix>0 时只统计该时间之后结算的周期
	PayoutTotals(ctx context.Context, sinceUnix int64) (map[string]model.Lamports, error)
	// MarkClaimed 在事务内把未领取行标记为已领取，返回受影响行数
	MarkClaimed(tx *gorm.DB, epochID, wallet string, txSig *string, atUnix int64) (int64, error)
}

// EpochRewardTable 当前版本 epoch_rewards
type EpochRewardTable struct {
	db      *gorm.DB
	timeout time.Duration
}

// NewEpochRewardTable 创建新版奖励表数据源
func NewEpochRewardTable(db *gorm.DB, timeout time.Duration) *EpochRewardTable {
	return &EpochRewardTable{db: db, timeout: timeout}
}

func (t *EpochRewardTable) Name() string { return model.EpochReward{}.TableName() }

func (t *EpochRewardTable) WalletRewards(ctx context.Context, wallet string) ([]WalletRewardRow, error) {
	qctx, cancel := withTimeout(ctx, t.timeout)
	defer cancel()
	return walletRewards(t.db.WithContext(qctx), t.Name(), wallet, "")
}

func (t *EpochRewardTable) WalletRewardForEpoch(tx *gorm.DB, epochID, wallet string) (*WalletRewardRow, bool, error) {
	return walletRewardForEpoch(tx, t.Name(), epochID, wallet)
}

func (t *EpochRewardTable) PayoutTotals(ctx context.Context, sinceUnix int64) (map[string]model.Lamports, error) {
	qctx, cancel := withTimeout(ctx, t.timeout)
	defer cancel()

	db := t.db.WithContext(qctx).
		Table("epoch_rewards AS r").
		Select("c.token_mint AS token_mint, r.reward_lamports AS reward_lamports").
		Joins("JOIN epochs e ON e.id = r.epoch_id").
		Joins("JOIN campaigns c ON c.id = e.campaign_id").
		Where("e.status = ? AND r.reward_lamports > 0", model.EpochSettled)
	if sinceUnix > 0 {
		db = db.Where("e.settled_at_unix >= ?", sinceUnix)
	}
	rows, err := db.Rows()
	if err != nil {
		return nil, fmt.Errorf("查询已结算奖励失败: %w", err)
	}
	defer rows.Close()

	totals := make(map[string]model.Lamports)
	for rows.Next() {
		var mint string
		var amount model.Lamports
		if err := rows.Scan(&mint, &amount); err != nil {
			return nil, err
		}
		sum, err := totals[mint].Add(amount)
		if err != nil {
			return nil, fmt.Errorf("token %s 奖励汇总: %w", mint, err)
		}
		totals[mint] = sum
	}
	return totals, rows.Err()
}

func (t *EpochRewardTable) MarkClaimed(tx *gorm.DB, epochID, wallet string, txSig *string, atUnix int64) (int64, error) {
	res := tx.Model(&model.EpochReward{}).
		Where("epoch_id = ? AND wallet_pubkey = ? AND claimed = ?", epochID, wallet, false).
		Updates(map[string]interface{}{
			"claimed":         true,
			"claimed_at_unix": atUnix,
			"tx_sig":          txSig,
		})
	return res.RowsAffected, res.Error
}

// EpochScoreTable 旧版 epoch_scores：没有可靠的打款金额口径，排行榜打款汇总恒为 0
type EpochScoreTable struct {
	db      *gorm.DB
	timeout time.Duration
}

// NewEpochScoreTable 创建旧版奖励表数据源
func NewEpochScoreTable(db *gorm.DB, timeout time.Duration) *EpochScoreTable {
	return &EpochScoreTable{db: db, timeout: timeout}
}

func (t *EpochScoreTable) Name() string { return model.EpochScore{}.TableName() }

func (t *EpochScoreTable) WalletRewards(ctx context.Context, wallet string) ([]WalletRewardRow, error) {
	qctx, cancel := withTimeout(ctx, t.timeout)
	defer cancel()
	return walletRewards(t.db.WithContext(qctx), t.Name(), wallet, "")
}

func (t *EpochScoreTable) WalletRewardForEpoch(tx *gorm.DB, epochID, wallet string) (*WalletRewardRow, bool, error) {
	return walletRewardForEpoch(tx, t.Name(), epochID, wallet)
}

func (t *EpochScoreTable) PayoutTotals(context.Context, int64) (map[string]model.Lamports, error) {
	return map[string]model.Lamports{}, nil
}

func (t *EpochScoreTable) MarkClaimed(tx *gorm.DB, epochID, wallet string, _ *string, _ int64) (int64, error) {
	res := tx.Model(&model.EpochScore{}).
		Where("epoch_id = ? AND wallet_pubkey = ? AND claimed = ?", epochID, wallet, false).
		Update("claimed", true)
	return res.RowsAffected, res.Error
}

// walletRewards 两代表共有 epoch_id / wallet_pubkey / reward_lamports / claimed 列。
// 周期记录缺失的奖励行按未结算处理
func walletRewards(db *gorm.DB, table, wallet, epochID string) ([]WalletRewardRow, error) {
	q := db.Table(table+" AS r").
		Select(`r.epoch_id AS epoch_id, COALESCE(e.epoch_number, 0) AS epoch_number,
			COALESCE(e.campaign_id, '') AS campaign_id, r.reward_lamports AS reward_lamports,
			r.claimed AS claimed, COALESCE(e.status, ?) AS epoch_status`, model.EpochOpen).
		Joins("LEFT JOIN epochs e ON e.id = r.epoch_id").
		Where("r.wallet_pubkey = ?", wallet)
	if epochID != "" {
		q = q.Where("r.epoch_id = ?", epochID)
	}
	var rows []WalletRewardRow
	if err := q.Order("epoch_number ASC").Order("r.epoch_id ASC").Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("查询钱包奖励失败(%s): %w", table, err)
	}
	return rows, nil
}

func walletRewardForEpoch(tx *gorm.DB, table, epochID, wallet string) (*WalletRewardRow, bool, error) {
	rows, err := walletRewards(tx, table, wallet, epochID)
	if err != nil {
		return nil, false, err
	}
	if len(rows) == 0 {
		return nil, false, nil
	}
	return &rows[0], true, nil
}

// RewardSourceDetector 每个进程检测一次奖励表结构：优先 epoch_rewards，其次 epoch_scores。
// 检测成功后缓存，失败不缓存；并发检测经 singleflight 合并，查询受 timeout 约束
type RewardSourceDetector struct {
	db      *gorm.DB
	timeout time.Duration
	group   singleflight.Group

	mu     sync.RWMutex
	source RewardSource
}

// NewRewardSourceDetector 创建检测器
func NewRewardSourceDetector(db *gorm.DB, timeout time.Duration) *RewardSourceDetector {
	return &RewardSourceDetector{db: db, timeout: timeout}
}

// Resolve 返回当前进程使用的奖励数据源
func (d *RewardSourceDetector) Resolve(ctx context.Context) (RewardSource, error) {
	if src := d.cached(); src != nil {
		return src, nil
	}
	v, err, _ := d.group.Do("detect", func() (interface{}, error) {
		if src := d.cached(); src != nil {
			return src, nil
		}
		src, err := d.detect(ctx)
		if err != nil {
			return nil, err
		}
		d.mu.Lock()
		d.source = src
		d.mu.Unlock()
		return src, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(RewardSource), nil
}

func (d *RewardSourceDetector) cached() RewardSource {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.source
}

func (d *RewardSourceDetector) detect(ctx context.Context) (RewardSource, error) {
	qctx, cancel := withTimeout(ctx, d.timeout)
	defer cancel()

	m := d.db.WithContext(qctx).Migrator()
	switch {
	case m.HasTable(&model.EpochReward{}):
		return NewEpochRewardTable(d.db, d.timeout), nil
	case m.HasTable(&model.EpochScore{}):
		return NewEpochScoreTable(d.db, d.timeout), nil
	}
	// HasTable 吞掉查询错误，超时不能当作缺表
	if err := qctx.Err(); err != nil {
		return nil, fmt.Errorf("检测奖励表超时: %w", err)
	}
	return nil, ErrNoRewardTable
}
