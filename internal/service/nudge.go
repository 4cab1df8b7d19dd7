package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/d60-Lab/fansync/internal/activity"
	"github.com/d60-Lab/fansync/internal/model"
	"github.com/d60-Lab/fansync/internal/pacer"
	"github.com/d60-Lab/fansync/internal/repository"
	"github.com/d60-Lab/fansync/internal/upstream"
	"github.com/d60-Lab/fansync/pkg/logger"
)

const (
	nudgeScanLimit = 50
	nudgeMinAmount = 100.0
	nudgeWindow    = 24 * time.Hour
)

// NudgeDeps NudgeProcessor 依赖
type NudgeDeps struct {
	Upstream Upstream
	Accounts *AccountResolver
	Messages repository.MessageRepository
	Settings *Settings
	Writer   NudgeWriter
	Pacer    pacer.Pacer
	Activity activity.Log
}

// NudgeProcessor 对大额打赏发送感谢/追加消息，按交易 id 水位保证只处理一次
type NudgeProcessor struct {
	up       Upstream
	accounts *AccountResolver
	msgs     repository.MessageRepository
	settings *Settings
	writer   NudgeWriter
	pacer    pacer.Pacer
	log      activity.Log
	now      func() time.Time
}

func NewNudgeProcessor(deps NudgeDeps) *NudgeProcessor {
	p := deps.Pacer
	if p == nil {
		p = pacer.Noop{}
	}
	return &NudgeProcessor{
		up:       deps.Upstream,
		accounts: deps.Accounts,
		msgs:     deps.Messages,
		settings: deps.Settings,
		writer:   deps.Writer,
		pacer:    p,
		log:      deps.Activity,
		now:      time.Now,
	}
}

// Scan 处理一轮，返回发送的 nudge 数
func (n *NudgeProcessor) Scan(ctx context.Context) (sent int, err error) {
	ctx, span := tracer.Start(ctx, "NudgeProcessor.Scan")
	defer func() {
		span.SetAttributes(attribute.Int("sent", sent))
		endSpan(span, err)
	}()

	on, err := n.settings.Enabled(ctx, model.FlagSpendTierNudger)
	if err != nil {
		return 0, n.fail(ctx, err)
	}
	if !on {
		logger.Debug("nudger disabled", zap.String("flag", model.FlagSpendTierNudger))
		return 0, nil
	}

	acct, err := n.accounts.Resolve(ctx)
	if errors.Is(err, ErrNoAccount) {
		return 0, nil
	}
	if err != nil {
		return 0, n.fail(ctx, err)
	}

	watermark, err := n.settings.Watermark(ctx)
	if err != nil {
		return 0, n.fail(ctx, err)
	}
	txns, err := n.up.Transactions(ctx, acct, nudgeScanLimit)
	if err != nil {
		return 0, n.fail(ctx, upstreamErr("fetch transactions", err))
	}
	span.SetAttributes(attribute.Int64("watermark", watermark))

	for _, t := range qualifying(txns, watermark, n.now()) {
		fanID := t.FanID()
		if fanID == nil {
			logger.Debug("skip nudge without fan", zap.Int64("txn_id", int64(t.ID)))
			continue
		}
		if err := n.nudge(ctx, acct, *fanID, t); err != nil {
			return sent, n.fail(ctx, err)
		}
		sent++
	}
	if sent > 0 {
		n.log.Append(ctx, fmt.Sprintf("Sent %d spend-tier nudges", sent))
	}
	return sent, nil
}

func (n *NudgeProcessor) nudge(ctx context.Context, acct string, fanID int64, t upstream.Transaction) error {
	txnID := int64(t.ID)
	text, err := n.writer.WriteNudge(ctx, float64(t.Amount))
	if err != nil {
		return genErr(fmt.Sprintf("write nudge for transaction %d", txnID), err)
	}
	if err := n.pacer.Wait(ctx); err != nil {
		return err
	}
	resp, err := n.up.SendMessage(ctx, acct, fanID, text)
	if err != nil {
		return upstreamErr(fmt.Sprintf("send nudge for transaction %d", txnID), err)
	}
	if err := n.settings.AdvanceWatermark(ctx, txnID); err != nil {
		return err
	}
	logger.Info("nudge sent", zap.Int64("txn_id", txnID), zap.Int64("fan_id", fanID), zap.Float64("amount", float64(t.Amount)))
	return recordOutbound(ctx, n.msgs, fanID, text, resp, n.now())
}

// qualifying id > watermark、tip、金额 > 100、24 小时内，按 id 升序
func qualifying(txns []upstream.Transaction, watermark int64, now time.Time) []upstream.Transaction {
	out := make([]upstream.Transaction, 0, len(txns))
	for _, t := range txns {
		if int64(t.ID) <= watermark {
			continue
		}
		if txnType(t) != model.TxnTip {
			continue
		}
		if float64(t.Amount) <= nudgeMinAmount {
			continue
		}
		if now.Sub(t.Date) > nudgeWindow {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func txnType(t upstream.Transaction) string {
	if t.Type != "" {
		return Classify(t.Type)
	}
	return Classify(t.Description)
}

func (n *NudgeProcessor) fail(ctx context.Context, err error) error {
	n.log.Append(ctx, fmt.Sprintf("Nudge scan failed: %v", err))
	return err
}
