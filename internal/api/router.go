package api

import (
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	_ "github.com/d60-Lab/fansync/docs"
	"github.com/d60-Lab/fansync/internal/api/handler"
	"github.com/d60-Lab/fansync/pkg/middleware"
)

// Options 路由选项
type Options struct {
	Mode        string
	ServiceName string
	JWTSecret   string
}

// NewRouter 注册全部路由
func NewRouter(h *handler.Handler, opts Options) *gin.Engine {
	if opts.Mode != "" {
		gin.SetMode(opts.Mode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), middleware.Logger(), gzip.Gzip(gzip.DefaultCompression))
	if opts.ServiceName != "" {
		r.Use(otelgin.Middleware(opts.ServiceName))
	}

	r.GET("/healthz", h.Healthz)
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	auth := middleware.JWTAuth(opts.JWTSecret)

	apiGroup := r.Group("/api", auth)
	{
		apiGroup.POST("/sync", h.Sync)
		apiGroup.POST("/fans/:id/sync", h.RefreshFan)
		apiGroup.GET("/fans", h.ListFans)
		apiGroup.POST("/messages/backfill", h.Backfill)
		apiGroup.GET("/log", h.ActivityLog)
		apiGroup.GET("/settings", h.GetSettings)
		apiGroup.POST("/settings", h.UpdateSetting)
		apiGroup.POST("/queue/drafts", h.EnqueueDraft)
		apiGroup.POST("/jobs/:name/run", h.RunJob)
	}

	gdpr := r.Group("/gdpr", auth)
	gdpr.DELETE("/export/:fanId", h.ExportAndDelete)

	return r
}
