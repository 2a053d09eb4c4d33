package repository

import (
	"context"
	"fmt"
	"time"

	"RewardLedger/internal/model"

	"gorm.io/gorm"
)

// ScoredEvent 参与排行统计的单条互动（已过滤重复与垃圾），mint 经 campaign 关联得到
type ScoredEvent struct {
	TokenMint     string
	WalletPubkey  string
	FinalScore    *float64
	CreatedAtUnix int64
}

// WalletEngagement 钱包互动统计
type WalletEngagement struct {
	TotalEngagements int64
	CampaignsJoined  int64
}

// EngagementRepository 互动事件与活动的只读查询
type EngagementRepository interface {
	// ScanScoredEvents 按 e.id 顺序逐行回调有效互动；sinceUnix>0 时只包含该时间之后的事件
	ScanScoredEvents(ctx context.Context, sinceUnix int64, fn func(ScoredEvent) error) error
	// LatestCampaigns 每个 mint 最新活动（created_at_unix 最大）的 id
	LatestCampaigns(ctx context.Context, mints []string) (map[string]string, error)
	// Profiles 项目展示信息，缺失的 mint 不在结果中
	Profiles(ctx context.Context, mints []string) (map[string]model.ProjectProfile, error)
	// WalletEngagement 钱包有效互动数与参与活动数
	WalletEngagement(ctx context.Context, wallet string) (*WalletEngagement, error)
	// TokenMints 所有活动涉及的 mint（去重）
	TokenMints(ctx context.Context) ([]string, error)
}

type engagementRepository struct {
	db      *gorm.DB
	timeout time.Duration
}

// NewEngagementRepository 创建 EngagementRepository 实例
func NewEngagementRepository(db *gorm.DB, timeout time.Duration) EngagementRepository {
	return &engagementRepository{db: db, timeout: timeout}
}

func (r *engagementRepository) ScanScoredEvents(ctx context.Context, sinceUnix int64, fn func(ScoredEvent) error) error {
	qctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	db := r.db.WithContext(qctx).
		Table("engagement_events AS e").
		Select("c.token_mint, e.wallet_pubkey, e.final_score, e.created_at_unix").
		Joins("JOIN campaigns c ON c.id = e.campaign_id").
		Where("e.is_duplicate = ? AND e.is_spam = ?", false, false)
	if sinceUnix > 0 {
		db = db.Where("e.created_at_unix >= ?", sinceUnix)
	}
	rows, err := db.Order("e.id ASC").Rows()
	if err != nil {
		return fmt.Errorf("查询互动事件失败: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ev ScoredEvent
		if err := rows.Scan(&ev.TokenMint, &ev.WalletPubkey, &ev.FinalScore, &ev.CreatedAtUnix); err != nil {
			return fmt.Errorf("读取互动事件失败: %w", err)
		}
		if err := fn(ev); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (r *engagementRepository) LatestCampaigns(ctx context.Context, mints []string) (map[string]string, error) {
	out := make(map[string]string, len(mints))
	if len(mints) == 0 {
		return out, nil
	}
	qctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	var campaigns []model.Campaign
	err := r.db.WithContext(qctx).
		Where("token_mint IN ?", mints).
		Order("created_at_unix DESC").Order("id DESC").
		Find(&campaigns).Error
	if err != nil {
		return nil, fmt.Errorf("查询最新活动失败: %w", err)
	}
	for _, c := range campaigns {
		if _, ok := out[c.TokenMint]; !ok {
			out[c.TokenMint] = c.ID
		}
	}
	return out, nil
}

func (r *engagementRepository) Profiles(ctx context.Context, mints []string) (map[string]model.ProjectProfile, error) {
	out := make(map[string]model.ProjectProfile, len(mints))
	if len(mints) == 0 {
		return out, nil
	}
	qctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	var profiles []model.ProjectProfile
	if err := r.db.WithContext(qctx).Where("token_mint IN ?", mints).Find(&profiles).Error; err != nil {
		return nil, fmt.Errorf("查询项目信息失败: %w", err)
	}
	for _, p := range profiles {
		out[p.TokenMint] = p
	}
	return out, nil
}

func (r *engagementRepository) WalletEngagement(ctx context.Context, wallet string) (*WalletEngagement, error) {
	qctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	var stats WalletEngagement
	err := r.db.WithContext(qctx).
		Model(&model.EngagementEvent{}).
		Select("COUNT(*) AS total_engagements, COUNT(DISTINCT campaign_id) AS campaigns_joined").
		Where("wallet_pubkey = ? AND is_duplicate = ? AND is_spam = ?", wallet, false, false).
		Scan(&stats).Error
	if err != nil {
		return nil, fmt.Errorf("查询钱包互动统计失败: %w", err)
	}
	return &stats, nil
}

func (r *engagementRepository) TokenMints(ctx context.Context) ([]string, error) {
	qctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	var mints []string
	err := r.db.WithContext(qctx).
		Model(&model.Campaign{}).
		Distinct("token_mint").
		Order("token_mint ASC").
		Pluck("token_mint", &mints).Error
	if err != nil {
		return nil, fmt.Errorf("查询活动 mint 失败: %w", err)
	}
	return mints, nil
}
