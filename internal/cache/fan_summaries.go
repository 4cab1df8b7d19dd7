package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/d60-Lab/fansync/internal/model"
	"github.com/d60-Lab/fansync/pkg/logger"
)

const (
	keyPrefix = "fansync:fans:summary"
	indexKey  = keyPrefix + ":keys"
)

// FanSummaries 缓存 GET /api/fans 的结果，按 limit 分 key；sync/refresh/GDPR 后整体失效。
// Redis 出错时退化为未命中，不影响主流程。
type FanSummaries struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewFanSummaries(rdb *redis.Client, ttl time.Duration) *FanSummaries {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &FanSummaries{rdb: rdb, ttl: ttl}
}

func listKey(limit int) string { return fmt.Sprintf("%s:%d", keyPrefix, limit) }

func (c *FanSummaries) Get(ctx context.Context, limit int) ([]model.FanSummary, bool) {
	data, err := c.rdb.Get(ctx, listKey(limit)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.Warn("fan summary cache read failed", zap.Error(err))
		}
		return nil, false
	}
	var out []model.FanSummary
	if err := json.Unmarshal(data, &out); err != nil {
		logger.Warn("fan summary cache corrupt", zap.Int("limit", limit), zap.Error(err))
		return nil, false
	}
	return out, true
}

func (c *FanSummaries) Set(ctx context.Context, limit int, list []model.FanSummary) {
	payload, err := json.Marshal(list)
	if err != nil {
		return
	}
	key := listKey(limit)
	pipe := c.rdb.TxPipeline()
	pipe.Set(ctx, key, payload, c.ttl)
	pipe.SAdd(ctx, indexKey, key)
	pipe.Expire(ctx, indexKey, c.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		logger.Warn("fan summary cache write failed", zap.Error(err))
	}
}

// Invalidate 删除所有已缓存的 limit 变体
func (c *FanSummaries) Invalidate(ctx context.Context) {
	keys, err := c.rdb.SMembers(ctx, indexKey).Result()
	if err != nil {
		logger.Warn("fan summary cache index read failed", zap.Error(err))
		return
	}
	keys = append(keys, indexKey)
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		logger.Warn("fan summary cache invalidate failed", zap.Error(err))
	}
}
