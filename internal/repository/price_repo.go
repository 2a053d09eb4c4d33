package repository

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"RewardLedger/internal/model"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PriceTTL 价格缓存新鲜度配置。Now 为空时使用 time.Now
type PriceTTL struct {
	Fresh time.Duration
	Stale time.Duration
	Now   func() time.Time
}

func (t PriceTTL) now() time.Time {
	if t.Now != nil {
		return t.Now()
	}
	return time.Now()
}

// within 条目年龄不超过 ttl（秒级精度）
func (t PriceTTL) within(updatedAtUnix int64, ttl time.Duration) bool {
	age := t.now().Unix() - updatedAtUnix
	return age <= int64(ttl/time.Second)
}

// PriceCache mint -> USD 价格缓存
type PriceCache interface {
	// Get 仅返回 fresh TTL 内的价格
	Get(ctx context.Context, mint string) (float64, bool)
	// GetAllowStale 返回 stale TTL 内的价格
	GetAllowStale(ctx context.Context, mint string) (float64, bool)
	// Set 后写覆盖，不保留历史
	Set(ctx context.Context, mint string, priceUSD float64) error
	Kind() string
}

type persistentPriceCache struct {
	db      *gorm.DB
	schema  *SchemaGate
	ttl     PriceTTL
	timeout time.Duration
	logger  *logrus.Logger
}

// NewPersistentPriceCache 基于 token_price_cache 表的实现。读失败降级为缺失并记录日志
func NewPersistentPriceCache(db *gorm.DB, ttl PriceTTL, timeout time.Duration, logger *logrus.Logger) PriceCache {
	return &persistentPriceCache{
		db:      db,
		schema:  NewSchemaGate(db, "token_price_cache", priceCacheDDL, timeout),
		ttl:     ttl,
		timeout: timeout,
		logger:  logger,
	}
}

func (c *persistentPriceCache) Kind() string { return "persistent" }

func (c *persistentPriceCache) Get(ctx context.Context, mint string) (float64, bool) {
	return c.lookup(ctx, mint, c.ttl.Fresh)
}

func (c *persistentPriceCache) GetAllowStale(ctx context.Context, mint string) (float64, bool) {
	return c.lookup(ctx, mint, c.ttl.Stale)
}

func (c *persistentPriceCache) lookup(ctx context.Context, mint string, ttl time.Duration) (float64, bool) {
	if err := c.schema.Ensure(ctx); err != nil {
		c.logger.WithError(err).Warn("价格缓存建表失败，按缓存缺失处理")
		return 0, false
	}
	qctx, cancel := withTimeout(ctx, c.timeout)
	defer cancel()

	var entry model.TokenPriceCacheEntry
	err := c.db.WithContext(qctx).Where("mint = ?", mint).Take(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, false
	}
	if err != nil {
		c.logger.WithError(err).WithField("mint", mint).Warn("读取价格缓存失败")
		return 0, false
	}
	if !c.ttl.within(entry.UpdatedAtUnix, ttl) {
		return 0, false
	}
	return entry.PriceUSD, true
}

func (c *persistentPriceCache) Set(ctx context.Context, mint string, priceUSD float64) error {
	if math.IsNaN(priceUSD) || math.IsInf(priceUSD, 0) {
		return errors.New("price must be finite")
	}
	if err := c.schema.Ensure(ctx); err != nil {
		return err
	}
	qctx, cancel := withTimeout(ctx, c.timeout)
	defer cancel()

	entry := &model.TokenPriceCacheEntry{
		Mint:          mint,
		PriceUSD:      priceUSD,
		UpdatedAtUnix: c.ttl.now().Unix(),
	}
	return c.db.WithContext(qctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "mint"}},
		DoUpdates: clause.AssignmentColumns([]string{"price_usd", "updated_at_unix"}),
	}).Create(entry).Error
}

// LocalPriceCache 进程内实现，TTL 语义与持久化版本一致
type LocalPriceCache struct {
	mu      sync.RWMutex
	entries map[string]model.TokenPriceCacheEntry
	ttl     PriceTTL
}

// NewLocalPriceCache 创建进程内价格缓存
func NewLocalPriceCache(ttl PriceTTL) *LocalPriceCache {
	return &LocalPriceCache{entries: make(map[string]model.TokenPriceCacheEntry), ttl: ttl}
}

func (c *LocalPriceCache) Kind() string { return "local" }

func (c *LocalPriceCache) Get(_ context.Context, mint string) (float64, bool) {
	return c.lookup(mint, c.ttl.Fresh)
}

func (c *LocalPriceCache) GetAllowStale(_ context.Context, mint string) (float64, bool) {
	return c.lookup(mint, c.ttl.Stale)
}

func (c *LocalPriceCache) lookup(mint string, ttl time.Duration) (float64, bool) {
	c.mu.RLock()
	entry, ok := c.entries[mint]
	c.mu.RUnlock()
	if !ok || !c.ttl.within(entry.UpdatedAtUnix, ttl) {
		return 0, false
	}
	return entry.PriceUSD, true
}

func (c *LocalPriceCache) Set(_ context.Context, mint string, priceUSD float64) error {
	if math.IsNaN(priceUSD) || math.IsInf(priceUSD, 0) {
		return errors.New("price must be finite")
	}
	c.mu.Lock()
	c.entries[mint] = model.TokenPriceCacheEntry{Mint: mint, PriceUSD: priceUSD, UpdatedAtUnix: c.ttl.now().Unix()}
	c.mu.Unlock()
	return nil
}
