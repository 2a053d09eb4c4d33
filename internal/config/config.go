package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 全局配置结构体（匹配 config.yaml）
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`      // 服务器配置
	Database   DatabaseConfig   `mapstructure:"database"`    // 数据库配置
	Rewards    RewardsConfig    `mapstructure:"rewards"`     // 奖励领取配置
	PriceCache PriceCacheConfig `mapstructure:"price_cache"` // 价格缓存 TTL
	PriceFeed  PriceFeedConfig  `mapstructure:"price_feed"`  // 行情数据源
	Logging    LoggingConfig    `mapstructure:"logging"`     // 日志
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Port int    `mapstructure:"port"` // 服务端口
	Mode string `mapstructure:"mode"` // Gin运行模式：debug/release/test
}

// DatabaseConfig 数据库配置。DSN 为空时里程碑与价格缓存退化为进程内存储，排行与领取查询返回不可用
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`            // postgres / sqlite
	DSN             string        `mapstructure:"dsn"`               // 连接DSN
	MaxOpenConns    int           `mapstructure:"max_open_conns"`    // 最大打开连接数
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`    // 最大空闲连接数
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"` // 连接最大存活时间
	QueryTimeout    time.Duration `mapstructure:"query_timeout"`     // 单次查询超时
	LogSQL          bool          `mapstructure:"log_sql"`           // 是否输出 SQL 日志
}

// Persistent 是否配置了持久化存储
func (d *DatabaseConfig) Persistent() bool {
	return strings.TrimSpace(d.DSN) != ""
}

// RewardsConfig 奖励领取配置
type RewardsConfig struct {
	ThresholdLamports uint64 `mapstructure:"threshold_lamports"` // 最低领取额度
}

// PriceCacheConfig 价格缓存新鲜度
type PriceCacheConfig struct {
	FreshTTL time.Duration `mapstructure:"fresh_ttl"` // get 可接受的最大年龄
	StaleTTL time.Duration `mapstructure:"stale_ttl"` // getAllowStale 可接受的最大年龄
}

// PriceFeedConfig 行情数据源配置
type PriceFeedConfig struct {
	BaseURL     string `mapstructure:"base_url"`     // API基础地址
	APIKey      string `mapstructure:"api_key"`      // 可选 API Key
	Timeout     int    `mapstructure:"timeout"`      // 请求超时（秒）
	Proxy       string `mapstructure:"proxy"`        // 代理地址
	RefreshCron string `mapstructure:"refresh_cron"` // 价格刷新 Cron 表达式，空则不启动
}

// LoggingConfig 日志配置
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // text / json
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.query_timeout", 5*time.Second)
	v.SetDefault("rewards.threshold_lamports", uint64(100_000_000))
	v.SetDefault("price_cache.fresh_ttl", 60*time.Second)
	v.SetDefault("price_cache.stale_ttl", 900*time.Second)
	v.SetDefault("price_feed.base_url", "https://lite-api.jup.ag/price/v3")
	v.SetDefault("price_feed.timeout", 5)
	v.SetDefault("price_feed.refresh_cron", "*/1 * * * *")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// LoadConfig 加载配置文件（config/config.yaml），敏感项从 .env 覆盖（不提交 git）
func LoadConfig() (*Config, error) {
	// .env 可不存在
	_ = godotenv.Load()
	return LoadConfigFrom("./config/config.yaml")
}

// LoadConfigFrom 从指定路径加载配置；文件不存在时只使用默认值与环境变量
func LoadConfigFrom(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		if _, statErr := os.Stat(path); statErr == nil {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	// 敏感字段：env > yaml
	overrideFromEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// overrideFromEnv 用环境变量覆盖敏感配置
func overrideFromEnv(cfg *Config) {
	if v := os.Getenv("DATABASE_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("DATABASE_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("PRICE_FEED_API_KEY"); v != "" {
		cfg.PriceFeed.APIKey = v
	}
	if v := os.Getenv("PRICE_FEED_PROXY"); v != "" {
		cfg.PriceFeed.Proxy = v
	}
}

// Validate 校验配置取值
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("不支持的数据库驱动: %s", c.Database.Driver)
	}
	if c.PriceCache.FreshTTL <= 0 || c.PriceCache.StaleTTL <= 0 {
		return fmt.Errorf("price_cache TTL 必须为正数")
	}
	if c.PriceCache.StaleTTL < c.PriceCache.FreshTTL {
		return fmt.Errorf("price_cache.stale_ttl(%s) 不能小于 fresh_ttl(%s)", c.PriceCache.StaleTTL, c.PriceCache.FreshTTL)
	}
	return nil
}
