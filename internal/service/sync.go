package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/d60-Lab/fansync/internal/activity"
	"github.com/d60-Lab/fansync/internal/model"
	"github.com/d60-Lab/fansync/internal/repository"
	"github.com/d60-Lab/fansync/internal/upstream"
	"github.com/d60-Lab/fansync/pkg/logger"
)

const (
	fanPageSize         = 50
	chatMessageLimit    = 25
	transactionLimit    = 50
	profileMessageLimit = 30
	profileTxnLimit     = 10
	backfillPageSize    = 50

	// DefaultBackfillMaxPages 单个会话回填的页数上限
	DefaultBackfillMaxPages = 200
)

var tracer = otel.Tracer("github.com/d60-Lab/fansync/internal/service")

// SyncDeps Syncer 依赖
type SyncDeps struct {
	Upstream     Upstream
	Accounts     *AccountResolver
	Fans         *FanUpserter
	FanRepo      repository.FanRepository
	Messages     repository.MessageRepository
	Transactions repository.TransactionRepository
	Summarizer   Summarizer
	Activity     activity.Log
	Cache        SummaryCache
}

// Syncer 全量同步、单 fan 刷新与消息回填
type Syncer struct {
	up         Upstream
	accounts   *AccountResolver
	fans       *FanUpserter
	fanRepo    repository.FanRepository
	msgs       repository.MessageRepository
	txns       repository.TransactionRepository
	summarizer Summarizer
	log        activity.Log
	cache      SummaryCache
	maxPages   int
	now        func() time.Time
}

func NewSyncer(deps SyncDeps, backfillMaxPages int) *Syncer {
	if backfillMaxPages <= 0 {
		backfillMaxPages = DefaultBackfillMaxPages
	}
	return &Syncer{
		up:         deps.Upstream,
		accounts:   deps.Accounts,
		fans:       deps.Fans,
		fanRepo:    deps.FanRepo,
		msgs:       deps.Messages,
		txns:       deps.Transactions,
		summarizer: deps.Summarizer,
		log:        deps.Activity,
		cache:      deps.Cache,
		maxPages:   backfillMaxPages,
		now:        time.Now,
	}
}

// FullSync 拉取 fans/会话/交易并重建 character profile；limit > 0 时只处理前 limit 个 fan
func (s *Syncer) FullSync(ctx context.Context, limit int) (err error) {
	ctx, span := tracer.Start(ctx, "Syncer.FullSync", trace.WithAttributes(attribute.Int("limit", limit)))
	defer func() { endSpan(span, err) }()

	s.log.Append(ctx, "Starting full sync...")
	started := s.now()

	acct, err := s.accounts.Resolve(ctx)
	if errors.Is(err, ErrNoAccount) {
		s.log.Append(ctx, "No connected account, sync skipped")
		return nil
	}
	if err != nil {
		return s.fail(ctx, "Sync", err)
	}

	active, err := s.up.ActiveFans(ctx, acct, fanPageSize, 0)
	if err != nil {
		return s.fail(ctx, "Sync", upstreamErr("fetch active fans", err))
	}
	expired, err := s.up.ExpiredFans(ctx, acct, fanPageSize, 0)
	if err != nil {
		return s.fail(ctx, "Sync", upstreamErr("fetch expired fans", err))
	}
	s.log.Append(ctx, fmt.Sprintf("Fetched %d active fans, %d expired fans", len(active), len(expired)))

	activeIDs := make(map[int64]struct{}, len(active))
	for _, f := range active {
		activeIDs[int64(f.ID)] = struct{}{}
	}
	working := workingSet(active, expired, limit)
	inWorking := make(map[int64]struct{}, len(working))
	for _, f := range working {
		inWorking[int64(f.ID)] = struct{}{}
		status := model.StatusExpired
		if _, ok := activeIDs[int64(f.ID)]; ok {
			status = model.StatusActive
		}
		if err := s.fans.Upsert(ctx, f, status); err != nil {
			return s.fail(ctx, "Sync", err)
		}
	}

	chats, err := s.up.Chats(ctx, acct)
	if err != nil {
		return s.fail(ctx, "Sync", upstreamErr("fetch chats", err))
	}
	msgCount := 0
	for _, chat := range chats {
		fanID := chat.FanID()
		if limit > 0 {
			if _, ok := inWorking[fanID]; !ok {
				continue
			}
		}
		msgs, err := s.up.ChatMessages(ctx, acct, fanID, upstream.MessageQuery{Limit: chatMessageLimit, Order: upstream.OrderDesc})
		if err != nil {
			return s.fail(ctx, "Sync", upstreamErr(fmt.Sprintf("fetch messages for chat %d", fanID), err))
		}
		n, err := s.storeMessages(ctx, fanID, msgs)
		if err != nil {
			return s.fail(ctx, "Sync", err)
		}
		msgCount += n
	}

	txns, err := s.up.Transactions(ctx, acct, transactionLimit)
	if err != nil {
		return s.fail(ctx, "Sync", upstreamErr("fetch transactions", err))
	}
	txnCount, err := s.storeTransactions(ctx, txns)
	if err != nil {
		return s.fail(ctx, "Sync", err)
	}
	s.log.Append(ctx, fmt.Sprintf("Inserted %d messages, %d transactions", msgCount, txnCount))

	for _, f := range working {
		if err := s.rebuildProfile(ctx, int64(f.ID)); err != nil {
			return s.fail(ctx, "Sync", err)
		}
	}
	s.invalidate(ctx)

	s.log.Append(ctx, fmt.Sprintf("Sync complete (%d ms)", s.now().Sub(started).Milliseconds()))
	return nil
}

// RefreshFan 只刷新一个 fan 的记录、最近消息、交易与 profile
func (s *Syncer) RefreshFan(ctx context.Context, fanID int64) (err error) {
	ctx, span := tracer.Start(ctx, "Syncer.RefreshFan", trace.WithAttributes(attribute.Int64("fan_id", fanID)))
	defer func() { endSpan(span, err) }()

	s.log.Append(ctx, fmt.Sprintf("Refreshing fan %d...", fanID))
	started := s.now()

	acct, err := s.accounts.Resolve(ctx)
	if errors.Is(err, ErrNoAccount) {
		s.log.Append(ctx, "No connected account, refresh skipped")
		return nil
	}
	if err != nil {
		return s.fail(ctx, "Refresh", err)
	}

	fan, err := s.up.User(ctx, fanID)
	if err != nil {
		return s.fail(ctx, "Refresh", upstreamErr(fmt.Sprintf("fetch fan %d", fanID), err))
	}
	if fan.ID == 0 {
		fan.ID = upstream.Int64(fanID)
	}
	if err := s.fans.Upsert(ctx, *fan, fan.SubscriptionStatus); err != nil {
		return s.fail(ctx, "Refresh", err)
	}

	msgs, err := s.up.ChatMessages(ctx, acct, fanID, upstream.MessageQuery{Limit: chatMessageLimit, Order: upstream.OrderDesc})
	if err != nil {
		return s.fail(ctx, "Refresh", upstreamErr(fmt.Sprintf("fetch messages for fan %d", fanID), err))
	}
	if _, err := s.storeMessages(ctx, fanID, msgs); err != nil {
		return s.fail(ctx, "Refresh", err)
	}

	txns, err := s.up.Transactions(ctx, acct, transactionLimit)
	if err != nil {
		return s.fail(ctx, "Refresh", upstreamErr("fetch transactions", err))
	}
	own := txns[:0:0]
	for _, t := range txns {
		if id := t.FanID(); id != nil && *id == fanID {
			own = append(own, t)
		}
	}
	if _, err := s.storeTransactions(ctx, own); err != nil {
		return s.fail(ctx, "Refresh", err)
	}

	if err := s.rebuildProfile(ctx, fanID); err != nil {
		return s.fail(ctx, "Refresh", err)
	}
	s.invalidate(ctx)

	s.log.Append(ctx, fmt.Sprintf("Fan %d refreshed (%d ms)", fanID, s.now().Sub(started).Milliseconds()))
	return nil
}

// Backfill 按升序分页拉取每个会话的全部历史消息
func (s *Syncer) Backfill(ctx context.Context) (err error) {
	ctx, span := tracer.Start(ctx, "Syncer.Backfill")
	defer func() { endSpan(span, err) }()

	s.log.Append(ctx, "Backfilling all messages...")
	started := s.now()

	acct, err := s.accounts.Resolve(ctx)
	if errors.Is(err, ErrNoAccount) {
		s.log.Append(ctx, "No connected account, backfill skipped")
		return nil
	}
	if err != nil {
		return s.fail(ctx, "Backfill", err)
	}

	chats, err := s.up.Chats(ctx, acct)
	if err != nil {
		return s.fail(ctx, "Backfill", upstreamErr("fetch chats", err))
	}

	inserted := 0
	for _, chat := range chats {
		fanID := chat.FanID()
		for page := 0; ; page++ {
			if page >= s.maxPages {
				s.log.Append(ctx, fmt.Sprintf("Backfill of chat %d stopped at page limit %d", fanID, s.maxPages))
				logger.Warn("backfill page limit reached", zap.Int64("fan_id", fanID), zap.Int("pages", page))
				break
			}
			msgs, err := s.up.ChatMessages(ctx, acct, fanID, upstream.MessageQuery{
				Limit:  backfillPageSize,
				Offset: page * backfillPageSize,
				Order:  upstream.OrderAsc,
			})
			if err != nil {
				return s.fail(ctx, "Backfill", upstreamErr(fmt.Sprintf("fetch messages for chat %d page %d", fanID, page), err))
			}
			if len(msgs) == 0 {
				break
			}
			n, err := s.storeMessages(ctx, fanID, msgs)
			if err != nil {
				return s.fail(ctx, "Backfill", err)
			}
			inserted += n
			if len(msgs) < backfillPageSize {
				break
			}
		}
	}
	s.invalidate(ctx)

	s.log.Append(ctx, fmt.Sprintf("Backfill complete: %d new messages (%d ms)", inserted, s.now().Sub(started).Milliseconds()))
	return nil
}

// workingSet active ∪ expired，保持上游顺序并去重，再按位置截断
func workingSet(active, expired []upstream.Fan, limit int) []upstream.Fan {
	seen := make(map[int64]struct{}, len(active)+len(expired))
	out := make([]upstream.Fan, 0, len(active)+len(expired))
	for _, list := range [][]upstream.Fan{active, expired} {
		for _, f := range list {
			if _, dup := seen[int64(f.ID)]; dup {
				continue
			}
			seen[int64(f.ID)] = struct{}{}
			out = append(out, f)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func direction(opened bool) string {
	if opened {
		return model.DirectionOut
	}
	return model.DirectionIn
}

func (s *Syncer) storeMessages(ctx context.Context, fanID int64, msgs []upstream.Message) (int, error) {
	inserted := 0
	for _, m := range msgs {
		if m.ID == 0 {
			logger.Debug("skip message without id", zap.Int64("fan_id", fanID))
			continue
		}
		ok, err := s.msgs.InsertIgnore(ctx, &model.Message{
			MsgID:     strconv.FormatInt(int64(m.ID), 10),
			FanID:     fanID,
			Direction: direction(m.IsOpened),
			Text:      m.Text,
			CreatedAt: m.CreatedAt.UTC(),
		})
		if err != nil {
			return inserted, dbErr(fmt.Sprintf("insert message %d", m.ID), err)
		}
		if ok {
			inserted++
		}
	}
	return inserted, nil
}

func (s *Syncer) storeTransactions(ctx context.Context, txns []upstream.Transaction) (int, error) {
	inserted := 0
	for _, t := range txns {
		if t.ID == 0 {
			continue
		}
		ok, err := s.txns.InsertIgnore(ctx, toTransaction(t))
		if err != nil {
			return inserted, dbErr(fmt.Sprintf("insert transaction %d", t.ID), err)
		}
		if ok {
			inserted++
		}
	}
	return inserted, nil
}

func (s *Syncer) rebuildProfile(ctx context.Context, fanID int64) error {
	msgs, err := s.msgs.Recent(ctx, fanID, profileMessageLimit)
	if err != nil {
		return dbErr(fmt.Sprintf("recent messages for fan %d", fanID), err)
	}
	txns, err := s.txns.Recent(ctx, fanID, profileTxnLimit)
	if err != nil {
		return dbErr(fmt.Sprintf("recent transactions for fan %d", fanID), err)
	}
	blob, err := s.summarizer.Summarize(ctx, msgs, txns)
	if err != nil {
		return genErr(fmt.Sprintf("summarize fan %d", fanID), err)
	}
	if err := s.fanRepo.UpdateProfile(ctx, fanID, blob); err != nil {
		return dbErr(fmt.Sprintf("update profile for fan %d", fanID), err)
	}
	return nil
}

func (s *Syncer) invalidate(ctx context.Context) {
	if s.cache != nil {
		s.cache.Invalidate(ctx)
	}
}

func (s *Syncer) fail(ctx context.Context, op string, err error) error {
	s.log.Append(ctx, fmt.Sprintf("%s failed: %v", op, err))
	return err
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
