package activity

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/d60-Lab/fansync/pkg/logger"
)

// DefaultSize 保留最近的条数
const DefaultSize = 100

// Log 有界的进度日志，读取时按时间从旧到新
type Log interface {
	Append(ctx context.Context, msg string)
	All(ctx context.Context) ([]string, error)
}

func format(now time.Time, msg string) string {
	return fmt.Sprintf("%s %s", now.UTC().Format(time.RFC3339Nano), msg)
}

// MemoryLog 进程内环形缓冲
type MemoryLog struct {
	mu    sync.Mutex
	buf   []string
	start int
	size  int
	now   func() time.Time
}

func NewMemoryLog(size int) *MemoryLog {
	if size <= 0 {
		size = DefaultSize
	}
	return &MemoryLog{buf: make([]string, 0, size), size: size, now: time.Now}
}

func (l *MemoryLog) Append(_ context.Context, msg string) {
	entry := format(l.now(), msg)
	logger.Info(msg, zap.String("source", "activity"))

	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.buf) < l.size {
		l.buf = append(l.buf, entry)
		return
	}
	l.buf[l.start] = entry
	l.start = (l.start + 1) % l.size
}

func (l *MemoryLog) All(_ context.Context) ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, 0, len(l.buf))
	out = append(out, l.buf[l.start:]...)
	out = append(out, l.buf[:l.start]...)
	return out, nil
}

// RedisLog 用 Redis list 保存，多实例共享且进程重启后保留
type RedisLog struct {
	rdb  *redis.Client
	key  string
	size int64
	now  func() time.Time
}

func NewRedisLog(rdb *redis.Client, key string, size int) *RedisLog {
	if size <= 0 {
		size = DefaultSize
	}
	if key == "" {
		key = "fansync:activity"
	}
	return &RedisLog{rdb: rdb, key: key, size: int64(size), now: time.Now}
}

// Append 写入失败只记日志，进度日志不应中断任务
func (l *RedisLog) Append(ctx context.Context, msg string) {
	entry := format(l.now(), msg)
	logger.Info(msg, zap.String("source", "activity"))

	pipe := l.rdb.TxPipeline()
	pipe.RPush(ctx, l.key, entry)
	pipe.LTrim(ctx, l.key, -l.size, -1)
	if _, err := pipe.Exec(ctx); err != nil {
		logger.Warn("activity log append failed", zap.Error(err))
	}
}

func (l *RedisLog) All(ctx context.Context) ([]string, error) {
	return l.rdb.LRange(ctx, l.key, 0, -1).Result()
}
