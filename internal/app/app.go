package app

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/d60-Lab/fansync/config"
	"github.com/d60-Lab/fansync/internal/activity"
	"github.com/d60-Lab/fansync/internal/api/handler"
	"github.com/d60-Lab/fansync/internal/cache"
	"github.com/d60-Lab/fansync/internal/llm"
	"github.com/d60-Lab/fansync/internal/pacer"
	"github.com/d60-Lab/fansync/internal/profile"
	"github.com/d60-Lab/fansync/internal/repository"
	"github.com/d60-Lab/fansync/internal/scheduler"
	"github.com/d60-Lab/fansync/internal/service"
	"github.com/d60-Lab/fansync/internal/upstream"
	"github.com/d60-Lab/fansync/pkg/database"
	"github.com/d60-Lab/fansync/pkg/logger"
)

const activityKey = "fansync:activity"

// App 组装好的进程依赖
type App struct {
	DB         *gorm.DB
	Redis      *redis.Client
	Activity   activity.Log
	Syncer     *service.Syncer
	Dispatcher *service.Dispatcher
	Nudger     *service.NudgeProcessor
	Fans       *service.FanService
	Settings   *service.Settings
	Scheduler  *scheduler.Scheduler
	Handler    *handler.Handler
}

// Build 打开数据库/Redis 并装配各组件
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	db, err := database.InitDB(cfg)
	if err != nil {
		return nil, err
	}
	a := &App{DB: db}

	var summaries service.SummaryCache
	if cfg.Redis.Enabled {
		a.Redis = redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err := a.Redis.Ping(ctx).Err(); err != nil {
			a.Close()
			return nil, fmt.Errorf("connect redis %s: %w", cfg.Redis.Addr, err)
		}
		a.Activity = activity.NewRedisLog(a.Redis, activityKey, cfg.Pipeline.ActivityLogSize)
		summaries = cache.NewFanSummaries(a.Redis, cfg.Redis.CacheTTL)
	} else {
		a.Activity = activity.NewMemoryLog(cfg.Pipeline.ActivityLogSize)
	}

	fanRepo := repository.NewFanRepository(db)
	msgRepo := repository.NewMessageRepository(db)
	txnRepo := repository.NewTransactionRepository(db)
	queueRepo := repository.NewQueueRepository(db)

	up := upstream.NewClient(cfg.Upstream)
	gen := llm.NewClient(cfg.LLM)
	accounts := service.NewAccountResolver(up, cfg.Upstream.AccountID)
	a.Settings = service.NewSettings(repository.NewSettingRepository(db))
	sendPacer := pacer.NewInterval(cfg.Pipeline.SendInterval)

	a.Syncer = service.NewSyncer(service.SyncDeps{
		Upstream:     up,
		Accounts:     accounts,
		Fans:         service.NewFanUpserter(fanRepo, profile.NewDisplayNamer()),
		FanRepo:      fanRepo,
		Messages:     msgRepo,
		Transactions: txnRepo,
		Summarizer:   profile.NewSummarizer(),
		Activity:     a.Activity,
		Cache:        summaries,
	}, cfg.Pipeline.BackfillMaxPages)

	a.Dispatcher = service.NewDispatcher(service.OutboxDeps{
		Upstream:  up,
		Accounts:  accounts,
		Queue:     queueRepo,
		Messages:  msgRepo,
		Settings:  a.Settings,
		Sentiment: gen,
		Pacer:     sendPacer,
		Activity:  a.Activity,
	})

	a.Nudger = service.NewNudgeProcessor(service.NudgeDeps{
		Upstream: up,
		Accounts: accounts,
		Messages: msgRepo,
		Settings: a.Settings,
		Writer:   gen,
		Pacer:    sendPacer,
		Activity: a.Activity,
	})

	a.Fans = service.NewFanService(fanRepo, msgRepo, txnRepo, summaries, a.Activity)

	a.Scheduler = scheduler.New()
	jobs := []scheduler.Job{
		{Name: scheduler.JobSync, Schedule: cfg.Pipeline.SyncSchedule, Run: func(ctx context.Context) error {
			return a.Syncer.FullSync(ctx, 0)
		}},
		{Name: scheduler.JobBackfill, Run: a.Syncer.Backfill},
		{Name: scheduler.JobOutbox, Schedule: cfg.Pipeline.OutboxSchedule, Run: func(ctx context.Context) error {
			_, err := a.Dispatcher.Drain(ctx)
			return err
		}},
		{Name: scheduler.JobNudge, Schedule: cfg.Pipeline.NudgeSchedule, Run: func(ctx context.Context) error {
			_, err := a.Nudger.Scan(ctx)
			return err
		}},
	}
	for _, j := range jobs {
		if err := a.Scheduler.Register(j); err != nil {
			a.Close()
			return nil, err
		}
	}

	a.Handler = handler.NewHandler(a.Syncer, a.Dispatcher, a.Fans, a.Settings, a.Scheduler, a.Activity)
	return a, nil
}

// Close 释放数据库与 Redis 连接
func (a *App) Close() {
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			logger.Warn("close redis", zap.Error(err))
		}
	}
	if a.DB != nil {
		if sqlDB, err := a.DB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
}
