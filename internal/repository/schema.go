package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/jackc/pgconn"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
)

// milestoneDDL 里程碑确认表，列集合与主键固定
var milestoneDDL = []string{
	`CREATE TABLE IF NOT EXISTS market_cap_milestone_confirmations (
		commitment_id VARCHAR(128) NOT NULL,
		milestone_id VARCHAR(128) NOT NULL,
		token_mint VARCHAR(64) NOT NULL,
		confirmed_at_unix BIGINT NOT NULL,
		total_funded_lamports NUMERIC(20,0) NOT NULL,
		unlock_lamports NUMERIC(20,0) NOT NULL,
		threshold_usd DOUBLE PRECISION NOT NULL,
		chain_id VARCHAR(32) NOT NULL,
		pair_address VARCHAR(128) NOT NULL,
		dex_id VARCHAR(64) NOT NULL,
		evidence_json TEXT NOT NULL,
		PRIMARY KEY (commitment_id, milestone_id)
	)`,
}

// priceCacheDDL 价格缓存表，每个 mint 一行
var priceCacheDDL = []string{
	`CREATE TABLE IF NOT EXISTS token_price_cache (
		mint VARCHAR(64) NOT NULL PRIMARY KEY,
		price_usd DOUBLE PRECISION NOT NULL,
		updated_at_unix BIGINT NOT NULL
	)`,
}

// SchemaGate 懒加载建表：每个进程成功一次后不再执行；失败不缓存，下次调用重试。
// 并发调用经 singleflight 合并，其他进程并发建表导致的 "already exists" 视为成功
type SchemaGate struct {
	db      *gorm.DB
	name    string
	ddl     []string
	timeout time.Duration
	ready   atomic.Bool
	group   singleflight.Group
}

// NewSchemaGate 创建建表门，timeout 约束整组 DDL
func NewSchemaGate(db *gorm.DB, name string, ddl []string, timeout time.Duration) *SchemaGate {
	return &SchemaGate{db: db, name: name, ddl: ddl, timeout: timeout}
}

// Ensure 确保表已存在
func (g *SchemaGate) Ensure(ctx context.Context) error {
	if g.ready.Load() {
		return nil
	}
	_, err, _ := g.group.Do(g.name, func() (interface{}, error) {
		if g.ready.Load() {
			return nil, nil
		}
		qctx, cancel := withTimeout(ctx, g.timeout)
		defer cancel()
		for _, stmt := range g.ddl {
			if err := g.db.WithContext(qctx).Exec(stmt).Error; err != nil && !isAlreadyExists(err) {
				return nil, fmt.Errorf("创建表 %s 失败: %w", g.name, err)
			}
		}
		g.ready.Store(true)
		return nil, nil
	})
	return err
}

// Ready 是否已成功建表
func (g *SchemaGate) Ready() bool {
	return g.ready.Load()
}

// isAlreadyExists postgres 并发 CREATE TABLE IF NOT EXISTS 可能报 42P07 或 pg_type 的 23505
func isAlreadyExists(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "42P07" || pgErr.Code == "23505"
	}
	return strings.Contains(strings.ToLower(err.Error()), "already exists")
}
