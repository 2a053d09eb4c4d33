package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"RewardLedger/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgconn"
	"gorm.io/gorm"
)

var (
	ErrRewardNotFound       = errors.New("reward row not found")
	ErrRewardNotSettled     = errors.New("epoch not settled")
	ErrRewardAlreadyClaimed = errors.New("reward already claimed")
	ErrRewardEmpty          = errors.New("reward amount is zero")
	ErrBelowThreshold       = errors.New("claim total below threshold")
)

// ClaimRecord 一次打款对应的领取登记
type ClaimRecord struct {
	Wallet    string
	EpochIDs  []string
	TxSig     *string
	Threshold model.Lamports
	AtUnix    int64
}

// ClaimRepository reward_claims 读写
type ClaimRepository interface {
	// SumClaimed 钱包历史已领取总额
	SumClaimed(ctx context.Context, wallet string) (model.Lamports, error)
	// Record 单事务内校验并登记所有周期的领取，任一周期失败则整体回滚
	Record(ctx context.Context, source RewardSource, rec ClaimRecord) ([]model.RewardClaim, error)
}

type claimRepository struct {
	db      *gorm.DB
	timeout time.Duration
}

// NewClaimRepository 创建 ClaimRepository 实例
func NewClaimRepository(db *gorm.DB, timeout time.Duration) ClaimRepository {
	return &claimRepository{db: db, timeout: timeout}
}

func (r *claimRepository) SumClaimed(ctx context.Context, wallet string) (model.Lamports, error) {
	qctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	var amounts []model.Lamports
	err := r.db.WithContext(qctx).
		Model(&model.RewardClaim{}).
		Where("wallet_pubkey = ?", wallet).
		Pluck("amount_lamports", &amounts).Error
	if err != nil {
		return 0, fmt.Errorf("查询已领取金额失败: %w", err)
	}
	return model.SumLamports(amounts...)
}

func (r *claimRepository) Record(ctx context.Context, source RewardSource, rec ClaimRecord) ([]model.RewardClaim, error) {
	qctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	var claims []model.RewardClaim
	err := r.db.WithContext(qctx).Transaction(func(tx *gorm.DB) error {
		claims = claims[:0]
		var total model.Lamports
		for _, epochID := range rec.EpochIDs {
			row, found, err := source.WalletRewardForEpoch(tx, epochID, rec.Wallet)
			if err != nil {
				return err
			}
			switch {
			case !found:
				return fmt.Errorf("epoch %s: %w", epochID, ErrRewardNotFound)
			case !row.Settled():
				return fmt.Errorf("epoch %s: %w", epochID, ErrRewardNotSettled)
			case row.Claimed:
				return fmt.Errorf("epoch %s: %w", epochID, ErrRewardAlreadyClaimed)
			case row.RewardLamports == 0:
				return fmt.Errorf("epoch %s: %w", epochID, ErrRewardEmpty)
			}
			if total, err = total.Add(row.RewardLamports); err != nil {
				return err
			}
			claims = append(claims, model.RewardClaim{
				ID:             uuid.NewString(),
				EpochID:        epochID,
				WalletPubkey:   rec.Wallet,
				AmountLamports: row.RewardLamports,
				TxSig:          rec.TxSig,
				ClaimedAtUnix:  rec.AtUnix,
			})
		}
		if total < rec.Threshold {
			return fmt.Errorf("%w: %s < %s", ErrBelowThreshold, total, rec.Threshold)
		}

		for i := range claims {
			affected, err := source.MarkClaimed(tx, claims[i].EpochID, rec.Wallet, rec.TxSig, rec.AtUnix)
			if err != nil {
				return fmt.Errorf("标记领取失败: %w", err)
			}
			// 并发领取时后提交者在 claimed=false 条件下更新不到行
			if affected == 0 {
				return fmt.Errorf("epoch %s: %w", claims[i].EpochID, ErrRewardAlreadyClaimed)
			}
			if err := tx.Create(&claims[i]).Error; err != nil {
				if isUniqueViolation(err) {
					return fmt.Errorf("epoch %s: %w", claims[i].EpochID, ErrRewardAlreadyClaimed)
				}
				return fmt.Errorf("写入领取记录失败: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claims, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(err.Error(), "UNIQUE constraint failed")
}
