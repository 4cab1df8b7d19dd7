package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/d60-Lab/fansync/pkg/logger"
)

// AccountResolver 确定本次任务操作的上游账号
type AccountResolver struct {
	up        Upstream
	accountID string
}

// NewAccountResolver accountID 为空时退化为取账号列表的第一个
func NewAccountResolver(up Upstream, accountID string) *AccountResolver {
	return &AccountResolver{up: up, accountID: accountID}
}

func (r *AccountResolver) Resolve(ctx context.Context) (string, error) {
	accounts, err := r.up.Accounts(ctx)
	if err != nil {
		return "", upstreamErr("list accounts", err)
	}
	if r.accountID == "" {
		if len(accounts) == 0 {
			return "", ErrNoAccount
		}
		return accounts[0].ID, nil
	}
	for _, a := range accounts {
		if a.ID == r.accountID {
			return a.ID, nil
		}
	}
	logger.Warn("configured account not linked", zap.String("account_id", r.accountID), zap.Int("linked", len(accounts)))
	return "", ErrNoAccount
}
