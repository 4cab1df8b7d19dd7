package service

import (
	"strings"

	"github.com/d60-Lab/fansync/internal/model"
	"github.com/d60-Lab/fansync/internal/upstream"
)

// Classify 按描述关键字归类：tip > sub/rebill > other，不区分大小写
func Classify(desc string) string {
	d := strings.ToLower(desc)
	switch {
	case strings.Contains(d, "tip"):
		return model.TxnTip
	case strings.Contains(d, "sub"), strings.Contains(d, "rebill"):
		return model.TxnSubscription
	default:
		return model.TxnOther
	}
}

func toTransaction(t upstream.Transaction) *model.Transaction {
	return &model.Transaction{
		TxnID:     int64(t.ID),
		FanID:     t.FanID(),
		Type:      Classify(t.Description),
		Amount:    float64(t.Amount),
		CreatedAt: t.Date.UTC(),
	}
}
