package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"RewardLedger/internal/apperr"
	"RewardLedger/internal/model"
	"RewardLedger/internal/repository"

	"github.com/mr-tron/base58"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	walletPubkeyLen = 32
	txSignatureLen  = 64
)

// ValidateWallet 钱包地址必须是 32 字节的 base58 公钥
func ValidateWallet(wallet string) error {
	if wallet == "" {
		return apperr.Validation("wallet is required")
	}
	raw, err := base58.Decode(wallet)
	if err != nil || len(raw) != walletPubkeyLen {
		return apperr.Validation("invalid wallet address %q", wallet)
	}
	return nil
}

func validateTxSig(sig string) error {
	raw, err := base58.Decode(sig)
	if err != nil || len(raw) != txSignatureLen {
		return apperr.Validation("invalid transaction signature %q", sig)
	}
	return nil
}

// Claimability 钱包可领取汇总
type Claimability struct {
	PendingLamports      model.Lamports `json:"pendingLamports"`
	AvailableLamports    model.Lamports `json:"availableLamports"`
	ThresholdLamports    model.Lamports `json:"thresholdLamports"`
	ThresholdMet         bool           `json:"thresholdMet"`
	Available            bool           `json:"available"`
	PendingRewardCount   int            `json:"pendingRewardCount"`
	AvailableRewardCount int            `json:"availableRewardCount"`
	AvailableEpochIDs    []string       `json:"availableEpochIds"`
	PendingSOL           string         `json:"pendingSol"`
	AvailableSOL         string         `json:"availableSol"`
}

// ComputeClaimability 未结算周期的奖励计入 pending；已结算且未领取的正数奖励计入 available。
// availableEpochIds 按周期顺序去重
func ComputeClaimability(rows []repository.WalletRewardRow, threshold model.Lamports) (*Claimability, error) {
	out := &Claimability{ThresholdLamports: threshold, AvailableEpochIDs: []string{}}
	seen := make(map[string]struct{})
	var err error
	for _, row := range rows {
		if row.RewardLamports == 0 {
			continue
		}
		switch {
		case !row.Settled():
			if out.PendingLamports, err = out.PendingLamports.Add(row.RewardLamports); err != nil {
				return nil, err
			}
			out.PendingRewardCount++
		case !row.Claimed:
			if out.AvailableLamports, err = out.AvailableLamports.Add(row.RewardLamports); err != nil {
				return nil, err
			}
			out.AvailableRewardCount++
			if _, ok := seen[row.EpochID]; !ok {
				seen[row.EpochID] = struct{}{}
				out.AvailableEpochIDs = append(out.AvailableEpochIDs, row.EpochID)
			}
		}
	}
	out.ThresholdMet = out.AvailableLamports >= threshold
	out.Available = out.AvailableLamports > 0
	out.PendingSOL = out.PendingLamports.SOL()
	out.AvailableSOL = out.AvailableLamports.SOL()
	return out, nil
}

// HolderStats 钱包生涯统计，TotalClaimed + TotalPending == TotalEarned
type HolderStats struct {
	Wallet           string         `json:"wallet"`
	TotalEarned      model.Lamports `json:"totalEarnedLamports"`
	TotalClaimed     model.Lamports `json:"totalClaimedLamports"`
	TotalPending     model.Lamports `json:"totalPendingLamports"`
	TotalEarnedSOL   string         `json:"totalEarnedSol"`
	CampaignsJoined  int64          `json:"campaignsJoined"`
	TotalEngagements int64          `json:"totalEngagements"`
}

// ClaimRequest 登记一次已打款的领取
type ClaimRequest struct {
	EpochIDs []string `json:"epochIds"`
	TxSig    *string  `json:"txSig"`
}

// ClaimedEpoch 单个周期的领取记录
type ClaimedEpoch struct {
	ClaimID        string         `json:"claimId"`
	EpochID        string         `json:"epochId"`
	AmountLamports model.Lamports `json:"amountLamports"`
}

// ClaimResult 领取登记结果
type ClaimResult struct {
	Wallet        string         `json:"wallet"`
	TotalLamports model.Lamports `json:"totalLamports"`
	TxSig         *string        `json:"txSig"`
	ClaimedAtUnix int64          `json:"claimedAtUnix"`
	Claims        []ClaimedEpoch `json:"claims"`
}

// ClaimabilityService 钱包奖励查询与领取登记
type ClaimabilityService struct {
	rewards    RewardSourceResolver
	claims     repository.ClaimRepository
	engagement repository.EngagementRepository
	threshold  model.Lamports
	logger     *logrus.Logger
	now        func() time.Time
}

// NewClaimabilityService 依赖为 nil 表示未配置持久化存储，所有操作返回不可用
func NewClaimabilityService(rewards RewardSourceResolver, claims repository.ClaimRepository, engagement repository.EngagementRepository, threshold model.Lamports, logger *logrus.Logger) *ClaimabilityService {
	return &ClaimabilityService{
		rewards:    rewards,
		claims:     claims,
		engagement: engagement,
		threshold:  threshold,
		logger:     logger,
		now:        time.Now,
	}
}

func (s *ClaimabilityService) source(ctx context.Context) (repository.RewardSource, error) {
	if s.rewards == nil || s.claims == nil || s.engagement == nil {
		return nil, apperr.Unavailable("claimability requires a persistent store", nil)
	}
	src, err := s.rewards.Resolve(ctx)
	if err != nil {
		return nil, apperr.Unavailable("reward table unavailable", err)
	}
	return src, nil
}

// Claimable 钱包当前 pending / available 汇总
func (s *ClaimabilityService) Claimable(ctx context.Context, wallet string) (*Claimability, error) {
	if err := ValidateWallet(wallet); err != nil {
		return nil, err
	}
	src, err := s.source(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := src.WalletRewards(ctx, wallet)
	if err != nil {
		return nil, apperr.Internal("failed to load wallet rewards", err)
	}
	out, err := ComputeClaimability(rows, s.threshold)
	if err != nil {
		return nil, apperr.Internal("failed to sum wallet rewards", err)
	}
	return out, nil
}

// HolderStats 钱包生涯收益与参与统计
func (s *ClaimabilityService) HolderStats(ctx context.Context, wallet string) (*HolderStats, error) {
	if err := ValidateWallet(wallet); err != nil {
		return nil, err
	}
	src, err := s.source(ctx)
	if err != nil {
		return nil, err
	}

	var (
		rows       []repository.WalletRewardRow
		claimed    model.Lamports
		engagement *repository.WalletEngagement
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		rows, err = src.WalletRewards(gctx, wallet)
		return err
	})
	g.Go(func() (err error) {
		claimed, err = s.claims.SumClaimed(gctx, wallet)
		return err
	})
	g.Go(func() (err error) {
		engagement, err = s.engagement.WalletEngagement(gctx, wallet)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, apperr.Internal("failed to load holder stats", err)
	}

	var earned model.Lamports
	for _, row := range rows {
		if earned, err = earned.Add(row.RewardLamports); err != nil {
			return nil, apperr.Internal("failed to sum wallet rewards", err)
		}
	}
	// 奖励行被清理或迁移后可能出现 claimed > earned，以已领取为下限保持对账
	if claimed > earned {
		s.logger.WithFields(logrus.Fields{
			"wallet":  wallet,
			"earned":  earned.String(),
			"claimed": claimed.String(),
		}).Warn("已领取金额超过累计收益")
		earned = claimed
	}

	return &HolderStats{
		Wallet:           wallet,
		TotalEarned:      earned,
		TotalClaimed:     claimed,
		TotalPending:     earned.Sub(claimed),
		TotalEarnedSOL:   earned.SOL(),
		CampaignsJoined:  engagement.CampaignsJoined,
		TotalEngagements: engagement.TotalEngagements,
	}, nil
}

// RecordClaim 打款成功后登记领取；所有周期在同一事务中写入，任一失败整体不生效
func (s *ClaimabilityService) RecordClaim(ctx context.Context, wallet string, req ClaimRequest) (*ClaimResult, error) {
	if err := ValidateWallet(wallet); err != nil {
		return nil, err
	}
	epochIDs := dedupeEpochIDs(req.EpochIDs)
	if len(epochIDs) == 0 {
		return nil, apperr.Validation("epochIds is required")
	}
	if req.TxSig != nil {
		if err := validateTxSig(*req.TxSig); err != nil {
			return nil, err
		}
	}
	src, err := s.source(ctx)
	if err != nil {
		return nil, err
	}

	at := s.now().Unix()
	claims, err := s.claims.Record(ctx, src, repository.ClaimRecord{
		Wallet:    wallet,
		EpochIDs:  epochIDs,
		TxSig:     req.TxSig,
		Threshold: s.threshold,
		AtUnix:    at,
	})
	if err != nil {
		return nil, claimError(err)
	}

	result := &ClaimResult{Wallet: wallet, TxSig: req.TxSig, ClaimedAtUnix: at, Claims: make([]ClaimedEpoch, 0, len(claims))}
	for _, c := range claims {
		// Record 已做过溢出校验
		result.TotalLamports += c.AmountLamports
		result.Claims = append(result.Claims, ClaimedEpoch{ClaimID: c.ID, EpochID: c.EpochID, AmountLamports: c.AmountLamports})
	}
	s.logger.WithFields(logrus.Fields{
		"wallet": wallet,
		"epochs": len(claims),
		"total":  result.TotalLamports.String(),
	}).Info("奖励领取已登记")
	return result, nil
}

func claimError(err error) error {
	switch {
	case errors.Is(err, repository.ErrRewardNotFound):
		return apperr.New(apperr.CodeNotFound, err.Error(), err)
	case errors.Is(err, repository.ErrRewardNotSettled),
		errors.Is(err, repository.ErrRewardAlreadyClaimed),
		errors.Is(err, repository.ErrRewardEmpty),
		errors.Is(err, repository.ErrBelowThreshold):
		return apperr.Conflict(err.Error(), err)
	default:
		return apperr.Internal("failed to record claim", err)
	}
}

func dedupeEpochIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
