package handler

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/fansync/pkg/response"
)

// ListFans fan 列表
// @Summary fan 列表（含消费总额与消息数）
// @Tags fan
// @Produce json
// @Param limit query int false "条数" default(100)
// @Success 200 {object} response.Response{data=[]model.FanSummary}
// @Router /api/fans [get]
func (h *Handler) ListFans(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if err != nil || limit <= 0 {
		response.BadRequest(c, "limit must be a positive integer")
		return
	}
	list, err := h.fans.ListFans(c.Request.Context(), limit)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, list)
}

// ExportAndDelete GDPR 导出并删除
// @Summary 导出 fan 全部数据后删除
// @Tags fan
// @Produce json
// @Param fanId path int true "fan id"
// @Success 200 {object} response.Response{data=service.FanExport}
// @Failure 404 {object} response.Response
// @Router /gdpr/export/{fanId} [delete]
func (h *Handler) ExportAndDelete(c *gin.Context) {
	fanID, ok := fanIDParam(c, "fanId")
	if !ok {
		return
	}
	export, err := h.fans.ExportAndDelete(detached(c), fanID)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, export)
}

type draftRequest struct {
	FanID     int64      `json:"fan_id" binding:"required,gt=0"`
	Text      string     `json:"text" binding:"required,max=4000"`
	PublishAt *time.Time `json:"publish_at"`
}

// EnqueueDraft 添加待发送草稿
// @Summary 添加草稿到外发队列
// @Tags 外发
// @Accept json
// @Produce json
// @Param request body draftRequest true "草稿"
// @Success 200 {object} response.Response{data=model.QueueItem}
// @Failure 400 {object} response.Response
// @Router /api/queue/drafts [post]
func (h *Handler) EnqueueDraft(c *gin.Context) {
	var req draftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	var at time.Time
	if req.PublishAt != nil {
		at = *req.PublishAt
	}
	item, err := h.drafts.Enqueue(c.Request.Context(), req.FanID, req.Text, at)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, item)
}
