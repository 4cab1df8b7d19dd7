package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/fansync/pkg/response"
)

// Sync 全量同步
// @Summary 全量同步 fans、消息与交易
// @Tags 同步
// @Produce json
// @Param max query int false "只处理前 max 个 fan"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 503 {object} response.Response
// @Router /api/sync [post]
func (h *Handler) Sync(c *gin.Context) {
	limit := 0
	if v := c.Query("max"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			response.BadRequest(c, "max must be a non-negative integer")
			return
		}
		limit = n
	}
	if err := h.syncer.FullSync(detached(c), limit); err != nil {
		fail(c, err)
		return
	}
	response.Success(c, gin.H{"status": "ok"})
}

// RefreshFan 刷新单个 fan
// @Summary 刷新单个 fan
// @Tags 同步
// @Produce json
// @Param id path int true "fan id"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Router /api/fans/{id}/sync [post]
func (h *Handler) RefreshFan(c *gin.Context) {
	fanID, ok := fanIDParam(c, "id")
	if !ok {
		return
	}
	if err := h.syncer.RefreshFan(detached(c), fanID); err != nil {
		fail(c, err)
		return
	}
	response.Success(c, gin.H{"status": "ok", "fan_id": fanID})
}

// Backfill 回填全部历史消息
// @Summary 回填历史消息
// @Tags 同步
// @Produce json
// @Success 200 {object} response.Response
// @Router /api/messages/backfill [post]
func (h *Handler) Backfill(c *gin.Context) {
	if err := h.syncer.Backfill(detached(c)); err != nil {
		fail(c, err)
		return
	}
	response.Success(c, gin.H{"status": "ok"})
}

// RunJob 手动执行 outbox/nudge 等任务
// @Summary 立即执行任务
// @Tags 任务
// @Produce json
// @Param name path string true "任务名" Enums(sync, backfill, outbox, nudge)
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /api/jobs/{name}/run [post]
func (h *Handler) RunJob(c *gin.Context) {
	name := c.Param("name")
	if err := h.jobs.Run(detached(c), name); err != nil {
		fail(c, err)
		return
	}
	response.Success(c, gin.H{"job": name, "status": "ok"})
}

// ActivityLog 最近的进度日志
// @Summary 活动日志（旧到新）
// @Tags 同步
// @Produce json
// @Success 200 {object} response.Response{data=[]string}
// @Router /api/log [get]
func (h *Handler) ActivityLog(c *gin.Context) {
	entries, err := h.activity.All(c.Request.Context())
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Success(c, entries)
}

func fanIDParam(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		response.BadRequest(c, "invalid fan id")
		return 0, false
	}
	return id, true
}
