package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/d60-Lab/fansync/internal/activity"
	"github.com/d60-Lab/fansync/internal/model"
	"github.com/d60-Lab/fansync/internal/profile"
	"github.com/d60-Lab/fansync/internal/repository"
	"github.com/d60-Lab/fansync/internal/upstream"
)

type sentMessage struct {
	Account string
	FanID   int64
	Text    string
}

// fakeUpstream 内存版上游，按 offset/limit 切片返回消息
type fakeUpstream struct {
	mu sync.Mutex

	accounts []upstream.Account
	active   []upstream.Fan
	expired  []upstream.Fan
	chats    []upstream.Chat
	messages map[int64][]upstream.Message
	txns     []upstream.Transaction
	users    map[int64]upstream.Fan

	// endless 时每页都返回满页
	endless bool
	sendErr error
	nextID  int64

	sent         []sentMessage
	messageCalls int
}

func newFakeUpstream() *fakeUpstream {
	return &fakeUpstream{
		accounts: []upstream.Account{{ID: "acct_1", Username: "creator"}},
		messages: map[int64][]upstream.Message{},
		users:    map[int64]upstream.Fan{},
		nextID:   9000,
	}
}

func (f *fakeUpstream) Accounts(context.Context) ([]upstream.Account, error) {
	return f.accounts, nil
}

func (f *fakeUpstream) ActiveFans(_ context.Context, _ string, limit, offset int) ([]upstream.Fan, error) {
	return page(f.active, limit, offset), nil
}

func (f *fakeUpstream) ExpiredFans(_ context.Context, _ string, limit, offset int) ([]upstream.Fan, error) {
	return page(f.expired, limit, offset), nil
}

func (f *fakeUpstream) Chats(context.Context, string) ([]upstream.Chat, error) {
	return f.chats, nil
}

func (f *fakeUpstream) ChatMessages(_ context.Context, _ string, fanID int64, q upstream.MessageQuery) ([]upstream.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messageCalls++
	if f.endless {
		out := make([]upstream.Message, q.Limit)
		for i := range out {
			out[i] = upstream.Message{ID: upstream.Int64(fanID*1_000_000 + int64(q.Offset+i) + 1), Text: "again"}
		}
		return out, nil
	}
	msgs := append([]upstream.Message(nil), f.messages[fanID]...)
	sort.Slice(msgs, func(i, j int) bool {
		if q.Order == upstream.OrderDesc {
			return msgs[i].CreatedAt.After(msgs[j].CreatedAt)
		}
		return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
	})
	return page(msgs, q.Limit, q.Offset), nil
}

func (f *fakeUpstream) Transactions(_ context.Context, _ string, limit int) ([]upstream.Transaction, error) {
	return page(f.txns, limit, 0), nil
}

func (f *fakeUpstream) User(_ context.Context, fanID int64) (*upstream.Fan, error) {
	u, ok := f.users[fanID]
	if !ok {
		return nil, &upstream.Error{Method: "GET", Path: "/api/users", StatusCode: 404}
	}
	return &u, nil
}

func (f *fakeUpstream) SendMessage(_ context.Context, acct string, fanID int64, text string) (*upstream.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	f.sent = append(f.sent, sentMessage{Account: acct, FanID: fanID, Text: text})
	f.nextID++
	return &upstream.Message{ID: upstream.Int64(f.nextID), Text: text, IsOpened: true}, nil
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	end := len(items)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return items[offset:end]
}

type fakeSentiment struct {
	score float64
	err   error
	seen  []string
}

func (f *fakeSentiment) RateSentiment(_ context.Context, text string) (float64, error) {
	f.seen = append(f.seen, text)
	return f.score, f.err
}

type fakeNudgeWriter struct {
	err     error
	amounts []float64
}

func (f *fakeNudgeWriter) WriteNudge(_ context.Context, amount float64) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.amounts = append(f.amounts, amount)
	return "thank you!", nil
}

type failingNamer struct{}

func (failingNamer) DisplayName(context.Context, string) (string, error) {
	return "", errors.New("model offline")
}

// countingCache 记录失效次数的内存缓存
type countingCache struct {
	lists       map[int][]model.FanSummary
	invalidated int
}

func newCountingCache() *countingCache {
	return &countingCache{lists: map[int][]model.FanSummary{}}
}

func (c *countingCache) Get(_ context.Context, limit int) ([]model.FanSummary, bool) {
	l, ok := c.lists[limit]
	return l, ok
}

func (c *countingCache) Set(_ context.Context, limit int, list []model.FanSummary) {
	c.lists[limit] = list
}

func (c *countingCache) Invalidate(context.Context) {
	c.lists = map[int][]model.FanSummary{}
	c.invalidated++
}

type env struct {
	db       *gorm.DB
	up       *fakeUpstream
	log      *activity.MemoryLog
	cache    *countingCache
	fans     repository.FanRepository
	msgs     repository.MessageRepository
	txns     repository.TransactionRepository
	queue    repository.QueueRepository
	settings *Settings
	accounts *AccountResolver
}

func setupEnv(t *testing.T) *env {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&model.Fan{}, &model.Message{}, &model.Transaction{}, &model.QueueItem{}, &model.Setting{}))
	t.Cleanup(func() { _ = sqlDB.Close() })

	up := newFakeUpstream()
	return &env{
		db:       db,
		up:       up,
		log:      activity.NewMemoryLog(activity.DefaultSize),
		cache:    newCountingCache(),
		fans:     repository.NewFanRepository(db),
		msgs:     repository.NewMessageRepository(db),
		txns:     repository.NewTransactionRepository(db),
		queue:    repository.NewQueueRepository(db),
		settings: NewSettings(repository.NewSettingRepository(db)),
		accounts: NewAccountResolver(up, ""),
	}
}

func (e *env) syncer(maxPages int) *Syncer {
	return NewSyncer(SyncDeps{
		Upstream:     e.up,
		Accounts:     e.accounts,
		Fans:         NewFanUpserter(e.fans, profile.NewDisplayNamer()),
		FanRepo:      e.fans,
		Messages:     e.msgs,
		Transactions: e.txns,
		Summarizer:   profile.NewSummarizer(),
		Activity:     e.log,
		Cache:        e.cache,
	}, maxPages)
}

func (e *env) dispatcher(sentiment SentimentRater) *Dispatcher {
	return NewDispatcher(OutboxDeps{
		Upstream:  e.up,
		Accounts:  e.accounts,
		Queue:     e.queue,
		Messages:  e.msgs,
		Settings:  e.settings,
		Sentiment: sentiment,
		Activity:  e.log,
	})
}

func (e *env) nudger(writer NudgeWriter, now time.Time) *NudgeProcessor {
	n := NewNudgeProcessor(NudgeDeps{
		Upstream: e.up,
		Accounts: e.accounts,
		Messages: e.msgs,
		Settings: e.settings,
		Writer:   writer,
		Activity: e.log,
	})
	n.now = func() time.Time { return now }
	return n
}

func (e *env) enable(t *testing.T, flag string) {
	t.Helper()
	require.NoError(t, e.settings.Set(context.Background(), flag, "true"))
}

func uid(v int64) *upstream.Int64 {
	id := upstream.Int64(v)
	return &id
}
