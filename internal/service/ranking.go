package service

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	"RewardLedger/internal/apperr"
	"RewardLedger/internal/model"
	"RewardLedger/internal/repository"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultRankingLimit = 50
	MaxRankingLimit     = 100

	trendWindow = 7 * 24 * time.Hour
)

// Period 排行统计窗口
type Period string

const (
	PeriodAll Period = "all"
	Period24h Period = "24h"
	Period7d  Period = "7d"
)

// ParsePeriod 大小写不敏感；无法识别的取值按 all 处理
func ParsePeriod(s string) Period {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "24h", "day", "1d":
		return Period24h
	case "7d", "week", "1w":
		return Period7d
	default:
		return PeriodAll
	}
}

// Window 窗口长度，all 返回 0
func (p Period) Window() time.Duration {
	switch p {
	case Period24h:
		return 24 * time.Hour
	case Period7d:
		return 7 * 24 * time.Hour
	default:
		return 0
	}
}

// TrendPct 最近 7 天相对前 7 天的变化百分比。prev 为 0 时有新增记 100，否则记 0
func TrendPct(cur, prev float64) float64 {
	switch {
	case prev > 0:
		return (cur - prev) / prev * 100
	case cur > 0:
		return 100
	default:
		return 0
	}
}

// coerceScore 缺失或非有限值按 0 计入
func coerceScore(v *float64) float64 {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return 0
	}
	return *v
}

// RewardSourceResolver 返回当前可用的奖励表数据源
type RewardSourceResolver interface {
	Resolve(ctx context.Context) (repository.RewardSource, error)
}

// RankingQuery 排行查询参数，Limit 为 0 时取默认值
type RankingQuery struct {
	Period Period
	Limit  int
}

// RankingEntry 单个 token 的排行结果
type RankingEntry struct {
	Rank                int            `json:"rank"`
	TokenMint           string         `json:"tokenMint"`
	CampaignID          *string        `json:"campaignId"`
	Name                *string        `json:"name"`
	Symbol              *string        `json:"symbol"`
	ImageURL            *string        `json:"imageUrl"`
	ExposureScore       float64        `json:"exposureScore"`
	UniqueEngagers      int            `json:"uniqueEngagers"`
	TotalEarnedLamports model.Lamports `json:"totalEarnedLamports"`
	TrendPct            float64        `json:"trendPct"`
	PriceUSD            *float64       `json:"priceUsd"`
}

// RankingResult 排行响应
type RankingResult struct {
	Period  Period         `json:"period"`
	Limit   int            `json:"limit"`
	Entries []RankingEntry `json:"entries"`
}

// RankingService 曝光度排行聚合
type RankingService struct {
	engagement repository.EngagementRepository
	rewards    RewardSourceResolver
	prices     repository.PriceCache
	logger     *logrus.Logger
	now        func() time.Time
}

// NewRankingService engagement 或 rewards 为 nil 表示未配置持久化存储，Rank 返回不可用
func NewRankingService(engagement repository.EngagementRepository, rewards RewardSourceResolver, prices repository.PriceCache, logger *logrus.Logger) *RankingService {
	return &RankingService{
		engagement: engagement,
		rewards:    rewards,
		prices:     prices,
		logger:     logger,
		now:        time.Now,
	}
}

// tokenAgg 单个 mint 的累加状态
type tokenAgg struct {
	mint     string
	order    int
	inWindow bool
	exposure float64
	wallets  map[string]struct{}
	cur      float64
	prev     float64
}

// Rank 按曝光度降序返回 token 排行
func (s *RankingService) Rank(ctx context.Context, q RankingQuery) (*RankingResult, error) {
	if q.Limit == 0 {
		q.Limit = DefaultRankingLimit
	}
	if q.Limit < 1 || q.Limit > MaxRankingLimit {
		return nil, apperr.Validation("limit must be between 1 and %d", MaxRankingLimit)
	}
	q.Period = ParsePeriod(string(q.Period))
	if s.engagement == nil || s.rewards == nil {
		return nil, apperr.Unavailable("rankings require a persistent store", nil)
	}

	now := s.now().Unix()
	curStart := now - int64(trendWindow/time.Second)
	prevStart := curStart - int64(trendWindow/time.Second)
	var windowStart, scanSince int64
	if w := q.Period.Window(); w > 0 {
		windowStart = now - int64(w/time.Second)
		scanSince = min(windowStart, prevStart)
	}

	aggs := make(map[string]*tokenAgg)
	var ordered []*tokenAgg
	var payouts map[string]model.Lamports

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.engagement.ScanScoredEvents(gctx, scanSince, func(ev repository.ScoredEvent) error {
			score := coerceScore(ev.FinalScore)
			agg, ok := aggs[ev.TokenMint]
			if !ok {
				agg = &tokenAgg{mint: ev.TokenMint, wallets: make(map[string]struct{})}
				aggs[ev.TokenMint] = agg
			}
			if ev.CreatedAtUnix >= windowStart {
				if !agg.inWindow {
					agg.inWindow = true
					agg.order = len(ordered)
					ordered = append(ordered, agg)
				}
				agg.exposure += score
				agg.wallets[ev.WalletPubkey] = struct{}{}
			}
			if ev.CreatedAtUnix >= curStart {
				agg.cur += score
			} else if ev.CreatedAtUnix >= prevStart {
				agg.prev += score
			}
			return nil
		})
	})
	g.Go(func() error {
		payouts = s.payoutTotals(gctx, windowStart)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, apperr.Internal("failed to aggregate engagement", err)
	}

	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].exposure > ordered[j].exposure
	})
	if len(ordered) > q.Limit {
		ordered = ordered[:q.Limit]
	}

	mints := make([]string, len(ordered))
	for i, agg := range ordered {
		mints[i] = agg.mint
	}
	campaigns, profiles := s.decorations(ctx, mints)

	entries := make([]RankingEntry, 0, len(ordered))
	for i, agg := range ordered {
		entry := RankingEntry{
			Rank:                i + 1,
			TokenMint:           agg.mint,
			ExposureScore:       agg.exposure,
			UniqueEngagers:      len(agg.wallets),
			TotalEarnedLamports: payouts[agg.mint],
			TrendPct:            TrendPct(agg.cur, agg.prev),
		}
		if id, ok := campaigns[agg.mint]; ok {
			entry.CampaignID = &id
		}
		if p, ok := profiles[agg.mint]; ok {
			entry.Name, entry.Symbol, entry.ImageURL = p.Name, p.Symbol, p.ImageURL
		}
		if s.prices != nil {
			if price, ok := s.prices.GetAllowStale(ctx, agg.mint); ok {
				entry.PriceUSD = &price
			}
		}
		entries = append(entries, entry)
	}
	return &RankingResult{Period: q.Period, Limit: q.Limit, Entries: entries}, nil
}

// payoutTotals 打款汇总失败时降级为 0
func (s *RankingService) payoutTotals(ctx context.Context, sinceUnix int64) map[string]model.Lamports {
	source, err := s.rewards.Resolve(ctx)
	if err != nil {
		s.logger.WithError(err).Warn("奖励表不可用，打款汇总按 0 处理")
		return nil
	}
	totals, err := source.PayoutTotals(ctx, sinceUnix)
	if err != nil {
		s.logger.WithError(err).WithField("source", source.Name()).Warn("查询打款汇总失败，按 0 处理")
		return nil
	}
	return totals
}

// decorations 最新活动与项目信息，查询失败时对应字段为 null
func (s *RankingService) decorations(ctx context.Context, mints []string) (map[string]string, map[string]model.ProjectProfile) {
	if len(mints) == 0 {
		return nil, nil
	}
	var campaigns map[string]string
	var profiles map[string]model.ProjectProfile

	var g errgroup.Group
	g.Go(func() error {
		var err error
		if campaigns, err = s.engagement.LatestCampaigns(ctx, mints); err != nil {
			s.logger.WithError(err).Warn("查询最新活动失败")
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if profiles, err = s.engagement.Profiles(ctx, mints); err != nil {
			s.logger.WithError(err).Warn("查询项目信息失败")
		}
		return nil
	})
	_ = g.Wait()
	return campaigns, profiles
}
