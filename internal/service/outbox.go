package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/d60-Lab/fansync/internal/activity"
	"github.com/d60-Lab/fansync/internal/model"
	"github.com/d60-Lab/fansync/internal/pacer"
	"github.com/d60-Lab/fansync/internal/repository"
	"github.com/d60-Lab/fansync/internal/upstream"
	"github.com/d60-Lab/fansync/pkg/logger"
)

// OutboxBatchSize 每次 drain 最多发送的草稿数
const OutboxBatchSize = 5

// OutboxDeps Dispatcher 依赖
type OutboxDeps struct {
	Upstream  Upstream
	Accounts  *AccountResolver
	Queue     repository.QueueRepository
	Messages  repository.MessageRepository
	Settings  *Settings
	Sentiment SentimentRater
	Pacer     pacer.Pacer
	Activity  activity.Log
}

// Dispatcher 发送到期的草稿并根据发送文本的情绪调整 replyTemp
type Dispatcher struct {
	up        Upstream
	accounts  *AccountResolver
	queue     repository.QueueRepository
	msgs      repository.MessageRepository
	settings  *Settings
	sentiment SentimentRater
	pacer     pacer.Pacer
	log       activity.Log
	batchSize int
	now       func() time.Time
}

func NewDispatcher(deps OutboxDeps) *Dispatcher {
	p := deps.Pacer
	if p == nil {
		p = pacer.Noop{}
	}
	return &Dispatcher{
		up:        deps.Upstream,
		accounts:  deps.Accounts,
		queue:     deps.Queue,
		msgs:      deps.Messages,
		settings:  deps.Settings,
		sentiment: deps.Sentiment,
		pacer:     p,
		log:       deps.Activity,
		batchSize: OutboxBatchSize,
		now:       time.Now,
	}
}

// Enqueue 写入一条草稿，publishAt 为零值时立即到期
func (d *Dispatcher) Enqueue(ctx context.Context, fanID int64, text string, publishAt time.Time) (*model.QueueItem, error) {
	if publishAt.IsZero() {
		publishAt = d.now()
	}
	item, err := model.NewDraft(fanID, text, publishAt)
	if err != nil {
		return nil, fmt.Errorf("encode draft: %w", err)
	}
	if err := d.queue.Enqueue(ctx, item); err != nil {
		return nil, dbErr("enqueue draft", err)
	}
	return item, nil
}

// Drain 处理一批到期草稿，返回实际发送条数；开关关闭或无账号时为 no-op
func (d *Dispatcher) Drain(ctx context.Context) (sent int, err error) {
	ctx, span := tracer.Start(ctx, "Dispatcher.Drain")
	defer func() {
		span.SetAttributes(attribute.Int("sent", sent))
		endSpan(span, err)
	}()

	on, err := d.settings.Enabled(ctx, model.FlagGenerateReplies)
	if err != nil {
		return 0, d.fail(ctx, err)
	}
	if !on {
		logger.Debug("outbox disabled", zap.String("flag", model.FlagGenerateReplies))
		return 0, nil
	}

	acct, err := d.accounts.Resolve(ctx)
	if errors.Is(err, ErrNoAccount) {
		return 0, nil
	}
	if err != nil {
		return 0, d.fail(ctx, err)
	}

	due, err := d.queue.ListDue(ctx, model.QueueTypeDraft, d.now(), d.batchSize)
	if err != nil {
		return 0, d.fail(ctx, dbErr("list due drafts", err))
	}

	for _, item := range due {
		ok, err := d.send(ctx, span, acct, item)
		if err != nil {
			return sent, d.fail(ctx, err)
		}
		if ok {
			sent++
		}
	}
	if sent > 0 {
		d.log.Append(ctx, fmt.Sprintf("Outbox sent %d drafts", sent))
	}
	return sent, nil
}

// send 先删除队列行再发送；删除失败或已被删除则跳过
func (d *Dispatcher) send(ctx context.Context, span trace.Span, acct string, item model.QueueItem) (bool, error) {
	claimed, err := d.queue.Claim(ctx, item.QueueID)
	if err != nil {
		return false, dbErr(fmt.Sprintf("claim queue item %d", item.QueueID), err)
	}
	if !claimed {
		logger.Debug("queue item already claimed", zap.Int64("queue_id", item.QueueID))
		return false, nil
	}

	payload, err := item.DecodePayload()
	if err != nil {
		logger.Warn("dropping undecodable draft", zap.Int64("queue_id", item.QueueID), zap.Error(err))
		return false, nil
	}
	fanID := int64(payload.FanID)
	if fanID <= 0 || payload.Text == "" {
		logger.Warn("dropping invalid draft", zap.Int64("queue_id", item.QueueID))
		return false, nil
	}

	if err := d.pacer.Wait(ctx); err != nil {
		return false, err
	}
	resp, err := d.up.SendMessage(ctx, acct, fanID, payload.Text)
	if err != nil {
		return false, upstreamErr(fmt.Sprintf("send draft %d to fan %d", item.QueueID, fanID), err)
	}
	span.AddEvent("draft sent", trace.WithAttributes(
		attribute.Int64("queue_id", item.QueueID),
		attribute.Int64("fan_id", fanID),
	))

	if err := recordOutbound(ctx, d.msgs, fanID, payload.Text, resp, d.now()); err != nil {
		return true, err
	}

	score, err := d.sentiment.RateSentiment(ctx, payload.Text)
	if err != nil {
		return true, genErr(fmt.Sprintf("rate sentiment for draft %d", item.QueueID), err)
	}
	temp, err := d.settings.AdjustReplyTemp(ctx, score)
	if err != nil {
		return true, err
	}
	logger.Info("draft sent",
		zap.Int64("queue_id", item.QueueID),
		zap.Int64("fan_id", fanID),
		zap.Float64("sentiment", score),
		zap.Float64("reply_temp", temp),
	)
	return true, nil
}

func (d *Dispatcher) fail(ctx context.Context, err error) error {
	d.log.Append(ctx, fmt.Sprintf("Outbox failed: %v", err))
	return err
}

// recordOutbound 记录一条已发出的消息；上游未返回 id 时使用本地 id
func recordOutbound(ctx context.Context, msgs repository.MessageRepository, fanID int64, text string, resp *upstream.Message, now time.Time) error {
	msg := &model.Message{
		MsgID:     "local-" + uuid.NewString(),
		FanID:     fanID,
		Direction: model.DirectionOut,
		Text:      text,
		CreatedAt: now.UTC(),
	}
	if resp != nil && resp.ID != 0 {
		msg.MsgID = strconv.FormatInt(int64(resp.ID), 10)
		if !resp.CreatedAt.IsZero() {
			msg.CreatedAt = resp.CreatedAt.UTC()
		}
	}
	if _, err := msgs.InsertIgnore(ctx, msg); err != nil {
		return dbErr(fmt.Sprintf("record outbound message for fan %d", fanID), err)
	}
	return nil
}
