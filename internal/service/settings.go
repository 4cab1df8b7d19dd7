package service

import (
	"context"
	"fmt"
	"math"
	"strconv"

	"go.uber.org/zap"

	"github.com/d60-Lab/fansync/internal/model"
	"github.com/d60-Lab/fansync/internal/repository"
	"github.com/d60-Lab/fansync/pkg/logger"
)

const (
	defaultReplyTemp = 0.7
	minReplyTemp     = 0.1
	maxReplyTemp     = 1.0
	replyTempStep    = 0.05
)

// Settings 功能开关与持久化任务状态（replyTemp、nudge 水位）
type Settings struct {
	repo repository.SettingRepository
}

func NewSettings(repo repository.SettingRepository) *Settings { return &Settings{repo: repo} }

// Enabled 值为 "true" 时开启
func (s *Settings) Enabled(ctx context.Context, flag string) (bool, error) {
	v, _, err := s.repo.Get(ctx, flag)
	if err != nil {
		return false, dbErr("read flag "+flag, err)
	}
	return v == "true", nil
}

func (s *Settings) Set(ctx context.Context, key, value string) error {
	if err := s.repo.Set(ctx, key, value); err != nil {
		return dbErr("write setting "+key, err)
	}
	return nil
}

// Flags 所有 key 按布尔值解读
func (s *Settings) Flags(ctx context.Context) (map[string]bool, error) {
	rows, err := s.repo.All(ctx)
	if err != nil {
		return nil, dbErr("list settings", err)
	}
	out := make(map[string]bool, len(rows))
	for _, r := range rows {
		out[r.Key] = r.Value == "true"
	}
	return out, nil
}

// ReplyTemp 当前语气参数，未设置或无法解析时为 0.7
func (s *Settings) ReplyTemp(ctx context.Context) (float64, error) {
	v, ok, err := s.repo.Get(ctx, model.SettingReplyTemp)
	if err != nil {
		return 0, dbErr("read replyTemp", err)
	}
	if !ok {
		return defaultReplyTemp, nil
	}
	temp, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(temp) {
		logger.Warn("invalid replyTemp, using default", zap.String("value", v))
		return defaultReplyTemp, nil
	}
	return temp, nil
}

// AdjustReplyTemp temp' = clamp(temp + sentiment*0.05, 0.1, 1.0)，立即持久化
func (s *Settings) AdjustReplyTemp(ctx context.Context, sentiment float64) (float64, error) {
	temp, err := s.ReplyTemp(ctx)
	if err != nil {
		return 0, err
	}
	next := clamp(temp+sentiment*replyTempStep, minReplyTemp, maxReplyTemp)
	if err := s.Set(ctx, model.SettingReplyTemp, strconv.FormatFloat(next, 'f', -1, 64)); err != nil {
		return 0, err
	}
	return next, nil
}

// Watermark nudge 已处理的最大交易 id；存储值无法解析时返回错误，避免从 0 重扫
func (s *Settings) Watermark(ctx context.Context) (int64, error) {
	v, ok, err := s.repo.Get(ctx, model.SettingSpendNudgeLastTxn)
	if err != nil {
		return 0, dbErr("read watermark", err)
	}
	if !ok {
		return 0, nil
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid watermark %q: %v", ErrDatastore, v, err)
	}
	return id, nil
}

// AdvanceWatermark 只前进不后退
func (s *Settings) AdvanceWatermark(ctx context.Context, id int64) error {
	if err := s.repo.SetIfGreater(ctx, model.SettingSpendNudgeLastTxn, id); err != nil {
		return dbErr("advance watermark", err)
	}
	return nil
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}
