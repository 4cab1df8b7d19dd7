package service

import (
	"context"

	"github.com/d60-Lab/fansync/internal/model"
	"github.com/d60-Lab/fansync/internal/upstream"
)

// Upstream 上游平台接口，由 *upstream.Client 实现
type Upstream interface {
	Accounts(ctx context.Context) ([]upstream.Account, error)
	ActiveFans(ctx context.Context, accountID string, limit, offset int) ([]upstream.Fan, error)
	ExpiredFans(ctx context.Context, accountID string, limit, offset int) ([]upstream.Fan, error)
	Chats(ctx context.Context, accountID string) ([]upstream.Chat, error)
	ChatMessages(ctx context.Context, accountID string, fanID int64, q upstream.MessageQuery) ([]upstream.Message, error)
	Transactions(ctx context.Context, accountID string, limit int) ([]upstream.Transaction, error)
	User(ctx context.Context, fanID int64) (*upstream.Fan, error)
	SendMessage(ctx context.Context, accountID string, fanID int64, text string) (*upstream.Message, error)
}

type DisplayNamer interface {
	DisplayName(ctx context.Context, raw string) (string, error)
}

// Summarizer 根据最近消息和交易（新到旧）生成 character profile
type Summarizer interface {
	Summarize(ctx context.Context, msgs []model.Message, txns []model.Transaction) (string, error)
}

type SentimentRater interface {
	RateSentiment(ctx context.Context, text string) (float64, error)
}

type NudgeWriter interface {
	WriteNudge(ctx context.Context, amount float64) (string, error)
}

// SummaryCache fan 列表缓存，数据变更后失效
type SummaryCache interface {
	Get(ctx context.Context, limit int) ([]model.FanSummary, bool)
	Set(ctx context.Context, limit int, list []model.FanSummary)
	Invalidate(ctx context.Context)
}
