package handler

import (
	"bytes"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"

	"github.com/d60-Lab/fansync/pkg/response"
)

// GetSettings 功能开关
// @Summary 读取设置（按布尔值）
// @Tags 设置
// @Produce json
// @Success 200 {object} response.Response{data=map[string]bool}
// @Router /api/settings [get]
func (h *Handler) GetSettings(c *gin.Context) {
	flags, err := h.settings.Flags(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, flags)
}

type settingRequest struct {
	Key   string          `json:"key" binding:"required,max=64"`
	Value json.RawMessage `json:"value"`
}

// settingValue 按字面量保存：字符串去引号，数字和布尔保留原文
func settingValue(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return "", errors.New("value is required")
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return s, nil
	case '{', '[':
		return "", errors.New("value must be a string, number or boolean")
	}
	return string(raw), nil
}

// UpdateSetting 写入一个设置
// @Summary 写入设置
// @Tags 设置
// @Accept json
// @Produce json
// @Param request body settingRequest true "key/value"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Router /api/settings [post]
func (h *Handler) UpdateSetting(c *gin.Context) {
	var req settingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	value, err := settingValue(req.Value)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if err := h.settings.Set(c.Request.Context(), req.Key, value); err != nil {
		fail(c, err)
		return
	}
	response.Success(c, gin.H{"key": req.Key})
}

// Healthz 存活检查
// @Summary 健康检查
// @Tags 系统
// @Success 200 {object} response.Response
// @Router /healthz [get]
func (h *Handler) Healthz(c *gin.Context) {
	response.Success(c, gin.H{"status": "ok"})
}
