package service

import (
	"context"
	"strings"
	"time"

	"RewardLedger/internal/apperr"
	"RewardLedger/internal/interfaces"
	"RewardLedger/internal/repository"

	"github.com/sirupsen/logrus"
)

const defaultFetchTimeout = 5 * time.Second

// 价格来源
const (
	PriceSourceCache = "cache"
	PriceSourceFeed  = "feed"
	PriceSourceStale = "stale"
)

// PriceQuote 价格查询结果
type PriceQuote struct {
	Mint     string  `json:"mint"`
	PriceUSD float64 `json:"priceUsd"`
	Source   string  `json:"source"`
}

// MintLister 列出需要定时刷新价格的 mint
type MintLister interface {
	TokenMints(ctx context.Context) ([]string, error)
}

// PriceService 价格读穿缓存：fresh 命中 -> 数据源拉取 -> stale 兜底
type PriceService struct {
	cache        repository.PriceCache
	fetcher      interfaces.PriceFetcher
	mints        MintLister
	fetchTimeout time.Duration
	logger       *logrus.Logger
}

// NewPriceService fetcher 为 nil 时只读缓存；mints 为 nil 时 RefreshAll 不做任何事
func NewPriceService(cache repository.PriceCache, fetcher interfaces.PriceFetcher, mints MintLister, fetchTimeout time.Duration, logger *logrus.Logger) *PriceService {
	if fetchTimeout <= 0 {
		fetchTimeout = defaultFetchTimeout
	}
	return &PriceService{
		cache:        cache,
		fetcher:      fetcher,
		mints:        mints,
		fetchTimeout: fetchTimeout,
		logger:       logger,
	}
}

// Price 数据源失败只记录日志，不向调用方传播
func (s *PriceService) Price(ctx context.Context, mint string) (*PriceQuote, error) {
	mint = strings.TrimSpace(mint)
	if mint == "" {
		return nil, apperr.Validation("mint is required")
	}
	if p, ok := s.cache.Get(ctx, mint); ok {
		return &PriceQuote{Mint: mint, PriceUSD: p, Source: PriceSourceCache}, nil
	}

	if p, ok := s.fetch(ctx, mint); ok {
		return &PriceQuote{Mint: mint, PriceUSD: p, Source: PriceSourceFeed}, nil
	}

	if p, ok := s.cache.GetAllowStale(ctx, mint); ok {
		return &PriceQuote{Mint: mint, PriceUSD: p, Source: PriceSourceStale}, nil
	}
	return nil, apperr.NotFound("no price for %s", mint)
}

func (s *PriceService) fetch(ctx context.Context, mint string) (float64, bool) {
	if s.fetcher == nil {
		return 0, false
	}
	fctx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	defer cancel()

	prices, err := s.fetcher.FetchPrices(fctx, []string{mint})
	if err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{"mint": mint, "feed": s.fetcher.Name()}).Warn("拉取价格失败")
		return 0, false
	}
	p, ok := prices[mint]
	if !ok {
		return 0, false
	}
	if err := s.cache.Set(ctx, mint, p); err != nil {
		s.logger.WithError(err).WithField("mint", mint).Warn("写入价格缓存失败")
	}
	return p, true
}

// RefreshAll 刷新所有活动 mint 的价格，返回写入缓存的数量
func (s *PriceService) RefreshAll(ctx context.Context) (int, error) {
	if s.fetcher == nil || s.mints == nil {
		return 0, nil
	}
	mints, err := s.mints.TokenMints(ctx)
	if err != nil {
		return 0, err
	}
	if len(mints) == 0 {
		return 0, nil
	}

	fctx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	defer cancel()
	prices, err := s.fetcher.FetchPrices(fctx, mints)
	if err != nil {
		return 0, err
	}

	updated := 0
	for mint, p := range prices {
		if err := s.cache.Set(ctx, mint, p); err != nil {
			s.logger.WithError(err).WithField("mint", mint).Warn("写入价格缓存失败")
			continue
		}
		updated++
	}
	return updated, nil
}
