package repository

import (
	"context"
	"fmt"
	"time"

	"RewardLedger/internal/config"
	"RewardLedger/internal/model"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// defaultQueryTimeout 未配置时单次查询的超时
const defaultQueryTimeout = 5 * time.Second

// OpenDatabase 按配置打开 postgres 或 sqlite 连接并设置连接池
func OpenDatabase(cfg config.DatabaseConfig, gormLogger logger.Interface) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	case "postgres", "":
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("不支持的数据库驱动: %s", cfg.Driver)
	}
	if gormLogger == nil {
		gormLogger = logger.Default.LogMode(logger.Silent)
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormLogger})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("获取SQL DB失败: %w", err)
	}
	if cfg.Driver == "sqlite" {
		// sqlite 单写者；:memory: 库在多连接下各自独立
		sqlDB.SetMaxOpenConns(1)
	} else {
		if cfg.MaxOpenConns > 0 {
			sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		}
		if cfg.MaxIdleConns > 0 {
			sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
		}
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	return db, nil
}

// Migrate 库表不存在则自动创建（按依赖顺序迁移）。
// 奖励表只在新旧两种表都不存在时创建新版 epoch_rewards，不会同时存在两种表结构
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.Campaign{},
		&model.Epoch{},
		&model.EngagementEvent{},
		&model.ProjectProfile{},
		&model.RewardClaim{},
	); err != nil {
		return fmt.Errorf("数据库表结构迁移失败: %w", err)
	}
	m := db.Migrator()
	if !m.HasTable(&model.EpochReward{}) && !m.HasTable(&model.EpochScore{}) {
		if err := db.AutoMigrate(&model.EpochReward{}); err != nil {
			return fmt.Errorf("创建 epoch_rewards 失败: %w", err)
		}
	}
	return nil
}

// withTimeout 为单次存储调用设置超时
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = defaultQueryTimeout
	}
	return context.WithTimeout(ctx, d)
}
