package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/d60-Lab/fansync/internal/activity"
	"github.com/d60-Lab/fansync/internal/model"
	"github.com/d60-Lab/fansync/internal/repository"
	"github.com/d60-Lab/fansync/pkg/logger"
)

// DefaultFanListLimit GET /api/fans 默认条数
const DefaultFanListLimit = 100

// ErrFanNotFound GDPR 导出时 fan 不存在
var ErrFanNotFound = errors.New("fan not found")

// FanExport GDPR 导出内容
type FanExport struct {
	Fan          *model.Fan          `json:"fan"`
	Messages     []model.Message     `json:"messages"`
	Transactions []model.Transaction `json:"transactions"`
}

// FanService fan 列表查询与 GDPR 导出删除
type FanService struct {
	fans  repository.FanRepository
	msgs  repository.MessageRepository
	txns  repository.TransactionRepository
	cache SummaryCache
	log   activity.Log
}

func NewFanService(fans repository.FanRepository, msgs repository.MessageRepository, txns repository.TransactionRepository, cache SummaryCache, log activity.Log) *FanService {
	return &FanService{fans: fans, msgs: msgs, txns: txns, cache: cache, log: log}
}

// ListFans 按 fan_id 排序，命中缓存时不查库
func (s *FanService) ListFans(ctx context.Context, limit int) ([]model.FanSummary, error) {
	if limit <= 0 {
		limit = DefaultFanListLimit
	}
	if s.cache != nil {
		if list, ok := s.cache.Get(ctx, limit); ok {
			return list, nil
		}
	}
	list, err := s.fans.ListSummaries(ctx, limit)
	if err != nil {
		return nil, dbErr("list fans", err)
	}
	if s.cache != nil {
		s.cache.Set(ctx, limit, list)
	}
	return list, nil
}

// ExportAndDelete 返回 fan 的全部数据后删除
func (s *FanService) ExportAndDelete(ctx context.Context, fanID int64) (*FanExport, error) {
	fan, err := s.fans.Get(ctx, fanID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrFanNotFound
	}
	if err != nil {
		return nil, dbErr(fmt.Sprintf("get fan %d", fanID), err)
	}
	msgs, err := s.msgs.ListByFan(ctx, fanID)
	if err != nil {
		return nil, dbErr(fmt.Sprintf("export messages for fan %d", fanID), err)
	}
	txns, err := s.txns.ListByFan(ctx, fanID)
	if err != nil {
		return nil, dbErr(fmt.Sprintf("export transactions for fan %d", fanID), err)
	}

	if err := s.msgs.DeleteByFan(ctx, fanID); err != nil {
		return nil, dbErr(fmt.Sprintf("delete messages for fan %d", fanID), err)
	}
	if err := s.txns.DeleteByFan(ctx, fanID); err != nil {
		return nil, dbErr(fmt.Sprintf("delete transactions for fan %d", fanID), err)
	}
	if err := s.fans.Delete(ctx, fanID); err != nil {
		return nil, dbErr(fmt.Sprintf("delete fan %d", fanID), err)
	}
	if s.cache != nil {
		s.cache.Invalidate(ctx)
	}

	logger.Info("fan exported and deleted", zap.Int64("fan_id", fanID), zap.Int("messages", len(msgs)), zap.Int("transactions", len(txns)))
	s.log.Append(ctx, fmt.Sprintf("GDPR export and delete for fan %d", fanID))
	return &FanExport{Fan: fan, Messages: msgs, Transactions: txns}, nil
}
