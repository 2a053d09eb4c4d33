package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/sirupsen/logrus"
)

// refreshJobTimeout 单次刷新任务的整体超时
const refreshJobTimeout = 30 * time.Second

// PriceScheduler 定时刷新价格缓存
type PriceScheduler struct {
	sched  gocron.Scheduler
	prices *PriceService
	logger *logrus.Logger
}

// NewPriceScheduler 按 cron 表达式注册刷新任务；同一任务不会并发执行
func NewPriceScheduler(prices *PriceService, cronExpr string, logger *logrus.Logger) (*PriceScheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("创建调度器失败: %w", err)
	}
	s := &PriceScheduler{sched: sched, prices: prices, logger: logger}
	_, err = sched.NewJob(
		gocron.CronJob(cronExpr, false),
		gocron.NewTask(s.refresh),
		gocron.WithName("price-refresh"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = sched.Shutdown()
		return nil, fmt.Errorf("注册价格刷新任务失败(%s): %w", cronExpr, err)
	}
	return s, nil
}

func (s *PriceScheduler) refresh() {
	ctx, cancel := context.WithTimeout(context.Background(), refreshJobTimeout)
	defer cancel()

	start := time.Now()
	n, err := s.prices.RefreshAll(ctx)
	if err != nil {
		s.logger.WithError(err).Warn("价格刷新失败")
		return
	}
	s.logger.WithFields(logrus.Fields{
		"updated": n,
		"elapsed": time.Since(start).String(),
	}).Debug("价格刷新完成")
}

// Start 启动调度
func (s *PriceScheduler) Start() {
	s.sched.Start()
}

// Stop 停止调度并等待运行中的任务结束
func (s *PriceScheduler) Stop() error {
	return s.sched.Shutdown()
}
