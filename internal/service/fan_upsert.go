package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/d60-Lab/fansync/internal/model"
	"github.com/d60-Lab/fansync/internal/repository"
	"github.com/d60-Lab/fansync/internal/upstream"
)

// FanUpserter 规范化并写入单个 fan
type FanUpserter struct {
	fans  repository.FanRepository
	namer DisplayNamer
}

func NewFanUpserter(fans repository.FanRepository, namer DisplayNamer) *FanUpserter {
	return &FanUpserter{fans: fans, namer: namer}
}

// Upsert 展示名生成失败时不写入
func (u *FanUpserter) Upsert(ctx context.Context, f upstream.Fan, status string) error {
	display, err := u.namer.DisplayName(ctx, f.Name)
	if err != nil {
		return genErr(fmt.Sprintf("display name for fan %d", f.ID), err)
	}
	row := &model.Fan{
		FanID:              int64(f.ID),
		Name:               f.Name,
		DisplayName:        display,
		Username:           f.Username,
		SubscriptionStatus: normalizeStatus(status),
	}
	if err := u.fans.Upsert(ctx, row); err != nil {
		return dbErr(fmt.Sprintf("upsert fan %d", f.ID), err)
	}
	return nil
}

func normalizeStatus(s string) string {
	if strings.EqualFold(strings.TrimSpace(s), model.StatusActive) {
		return model.StatusActive
	}
	return model.StatusExpired
}
