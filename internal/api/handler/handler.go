package handler

import (
	"context"
	"errors"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/fansync/internal/activity"
	"github.com/d60-Lab/fansync/internal/model"
	"github.com/d60-Lab/fansync/internal/scheduler"
	"github.com/d60-Lab/fansync/internal/service"
	"github.com/d60-Lab/fansync/pkg/response"
)

// Syncer 由 *service.Syncer 实现
type Syncer interface {
	FullSync(ctx context.Context, limit int) error
	RefreshFan(ctx context.Context, fanID int64) error
	Backfill(ctx context.Context) error
}

// Drafts 由 *service.Dispatcher 实现
type Drafts interface {
	Enqueue(ctx context.Context, fanID int64, text string, publishAt time.Time) (*model.QueueItem, error)
}

// Fans 由 *service.FanService 实现
type Fans interface {
	ListFans(ctx context.Context, limit int) ([]model.FanSummary, error)
	ExportAndDelete(ctx context.Context, fanID int64) (*service.FanExport, error)
}

// Settings 由 *service.Settings 实现
type Settings interface {
	Flags(ctx context.Context) (map[string]bool, error)
	Set(ctx context.Context, key, value string) error
}

// Jobs 由 *scheduler.Scheduler 实现
type Jobs interface {
	Run(ctx context.Context, name string) error
}

// Handler HTTP 接口
type Handler struct {
	syncer   Syncer
	drafts   Drafts
	fans     Fans
	settings Settings
	jobs     Jobs
	activity activity.Log
}

func NewHandler(syncer Syncer, drafts Drafts, fans Fans, settings Settings, jobs Jobs, log activity.Log) *Handler {
	return &Handler{syncer: syncer, drafts: drafts, fans: fans, settings: settings, jobs: jobs, activity: log}
}

// detached 手动触发的任务不随客户端断开而中止
func detached(c *gin.Context) context.Context {
	return context.WithoutCancel(c.Request.Context())
}

// fail 按错误类别映射状态码
func fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrUpstreamUnavailable):
		_ = c.Error(err)
		response.ServiceUnavailable(c, err)
	case errors.Is(err, service.ErrFanNotFound), errors.Is(err, scheduler.ErrUnknownJob):
		response.NotFound(c, err.Error())
	case errors.Is(err, scheduler.ErrJobRunning):
		response.Conflict(c, err.Error())
	default:
		response.InternalError(c, err)
	}
}
