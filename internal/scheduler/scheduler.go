package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/d60-Lab/fansync/pkg/errreport"
	"github.com/d60-Lab/fansync/pkg/logger"
)

// 任务名
const (
	JobSync     = "sync"
	JobBackfill = "backfill"
	JobOutbox   = "outbox"
	JobNudge    = "nudge"
)

var (
	ErrUnknownJob = errors.New("unknown job")
	ErrJobRunning = errors.New("job already running")
)

// Job 一个流水线入口；Schedule 为空表示只能手动触发
type Job struct {
	Name     string
	Schedule string
	Run      func(ctx context.Context) error
}

type entry struct {
	job     Job
	running atomic.Bool
}

// Scheduler cron 调度 + 手动触发，同一任务不会并发执行
type Scheduler struct {
	cron *cron.Cron
	jobs map[string]*entry
}

func New() *Scheduler {
	l := cronLogger{}
	return &Scheduler{
		cron: cron.New(cron.WithLogger(l), cron.WithChain(cron.Recover(l), cron.SkipIfStillRunning(l))),
		jobs: map[string]*entry{},
	}
}

// Register 添加任务，表达式非法时返回错误
func (s *Scheduler) Register(job Job) error {
	if _, dup := s.jobs[job.Name]; dup {
		return fmt.Errorf("job %q registered twice", job.Name)
	}
	e := &entry{job: job}
	if job.Schedule != "" {
		if _, err := s.cron.AddFunc(job.Schedule, func() { _ = s.run(context.Background(), e, "cron") }); err != nil {
			return fmt.Errorf("schedule %s %q: %w", job.Name, job.Schedule, err)
		}
	}
	s.jobs[job.Name] = e
	return nil
}

// Start 启动 cron；返回的停止函数等待正在执行的任务结束或 ctx 超时
func (s *Scheduler) Start() func(context.Context) error {
	s.cron.Start()
	logger.Info("scheduler started", zap.Strings("jobs", s.Names()))
	return func(ctx context.Context) error {
		done := s.cron.Stop()
		select {
		case <-done.Done():
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Run 立即执行一次
func (s *Scheduler) Run(ctx context.Context, name string) error {
	e, ok := s.jobs[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	return s.run(ctx, e, "manual")
}

func (s *Scheduler) Names() []string {
	names := make([]string, 0, len(s.jobs))
	for n := range s.jobs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (s *Scheduler) run(ctx context.Context, e *entry, trigger string) error {
	if !e.running.CompareAndSwap(false, true) {
		logger.Warn("job still running, skipped", zap.String("job", e.job.Name), zap.String("trigger", trigger))
		return ErrJobRunning
	}
	defer e.running.Store(false)

	runID := uuid.NewString()
	log := logger.L().With(zap.String("job", e.job.Name), zap.String("run_id", runID), zap.String("trigger", trigger))
	start := time.Now()
	log.Info("job started")

	err := e.job.Run(ctx)
	if err != nil {
		log.Error("job failed", zap.Duration("elapsed", time.Since(start)), zap.Error(err))
		errreport.Capture(err, map[string]string{"job": e.job.Name, "run_id": runID, "trigger": trigger})
		return err
	}
	log.Info("job finished", zap.Duration("elapsed", time.Since(start)))
	return nil
}

// cronLogger 把 cron 内部日志转到 zap
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	logger.L().Sugar().Debugw(msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	logger.L().Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
