package profile

import (
	"context"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/goccy/go-json"

	"github.com/d60-Lab/fansync/internal/model"
)

// Character 由最近消息与交易推导出的行为摘要，以 JSON 文本存入 fans.character_profile
type Character struct {
	MessageCount      int        `json:"message_count"`
	InboundCount      int        `json:"inbound_count"`
	OutboundCount     int        `json:"outbound_count"`
	AvgInboundLength  float64    `json:"avg_inbound_length"`
	LastInboundAt     *time.Time `json:"last_inbound_at,omitempty"`
	TotalSpend        float64    `json:"total_spend"`
	TipCount          int        `json:"tip_count"`
	TipTotal          float64    `json:"tip_total"`
	SubscriptionCount int        `json:"subscription_count"`
	SpendTier         string     `json:"spend_tier"`
	TopTerms          []string   `json:"top_terms"`
}

var stopwords = map[string]struct{}{
	"that": {}, "this": {}, "with": {}, "have": {}, "just": {}, "what": {}, "your": {},
	"from": {}, "will": {}, "would": {}, "about": {}, "there": {}, "they": {}, "when": {},
	"like": {}, "really": {}, "been": {}, "were": {}, "then": {}, "them": {},
}

// Summarizer 本地确定性实现，输入按 store 顺序（新到旧）
type Summarizer struct{}

func NewSummarizer() *Summarizer { return &Summarizer{} }

func (s *Summarizer) Summarize(_ context.Context, msgs []model.Message, txns []model.Transaction) (string, error) {
	b, err := json.Marshal(Build(msgs, txns))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Build 计算摘要
func Build(msgs []model.Message, txns []model.Transaction) Character {
	c := Character{MessageCount: len(msgs), TopTerms: []string{}}

	inboundChars := 0
	terms := map[string]int{}
	for _, m := range msgs {
		if m.Direction != model.DirectionIn {
			c.OutboundCount++
			continue
		}
		c.InboundCount++
		inboundChars += len([]rune(m.Text))
		if c.LastInboundAt == nil || m.CreatedAt.After(*c.LastInboundAt) {
			at := m.CreatedAt
			c.LastInboundAt = &at
		}
		for _, w := range strings.FieldsFunc(strings.ToLower(m.Text), func(r rune) bool { return !unicode.IsLetter(r) }) {
			if len([]rune(w)) < 4 {
				continue
			}
			if _, skip := stopwords[w]; skip {
				continue
			}
			terms[w]++
		}
	}
	if c.InboundCount > 0 {
		c.AvgInboundLength = float64(inboundChars) / float64(c.InboundCount)
	}

	for _, t := range txns {
		c.TotalSpend += t.Amount
		switch t.Type {
		case model.TxnTip:
			c.TipCount++
			c.TipTotal += t.Amount
		case model.TxnSubscription:
			c.SubscriptionCount++
		}
	}
	c.SpendTier = tier(c.TotalSpend)
	c.TopTerms = topTerms(terms, 5)
	return c
}

func tier(total float64) string {
	switch {
	case total >= 500:
		return "whale"
	case total >= 100:
		return "high"
	case total > 0:
		return "regular"
	default:
		return "none"
	}
}

func topTerms(counts map[string]int, n int) []string {
	words := make([]string, 0, len(counts))
	for w := range counts {
		words = append(words, w)
	}
	sort.Slice(words, func(i, j int) bool {
		if counts[words[i]] != counts[words[j]] {
			return counts[words[i]] > counts[words[j]]
		}
		return words[i] < words[j]
	})
	if len(words) > n {
		words = words[:n]
	}
	return words
}
