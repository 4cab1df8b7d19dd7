package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/d60-Lab/fansync/internal/model"
)

// ErrNotFound 记录不存在
var ErrNotFound = errors.New("record not found")

type FanRepository interface {
	// Upsert 按 fan_id 插入或整体覆盖 name/display_name/username/status
	Upsert(ctx context.Context, fan *model.Fan) error
	UpdateProfile(ctx context.Context, fanID int64, profile string) error
	Get(ctx context.Context, fanID int64) (*model.Fan, error)
	// ListSummaries 按 fan_id 排序，附带 spend_total 与 msg_total
	ListSummaries(ctx context.Context, limit int) ([]model.FanSummary, error)
	Delete(ctx context.Context, fanID int64) error
}

type fanRepository struct{ db *gorm.DB }

func NewFanRepository(db *gorm.DB) FanRepository { return &fanRepository{db: db} }

func (r *fanRepository) Upsert(ctx context.Context, fan *model.Fan) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "fan_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "display_name", "username", "subscription_status", "updated_at"}),
	}).Create(fan).Error
}

func (r *fanRepository) UpdateProfile(ctx context.Context, fanID int64, profile string) error {
	return r.db.WithContext(ctx).
		Model(&model.Fan{}).
		Where("fan_id = ?", fanID).
		Updates(map[string]any{"character_profile": profile, "updated_at": time.Now()}).Error
}

func (r *fanRepository) Get(ctx context.Context, fanID int64) (*model.Fan, error) {
	var fan model.Fan
	err := r.db.WithContext(ctx).Where("fan_id = ?", fanID).First(&fan).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &fan, nil
}

func (r *fanRepository) ListSummaries(ctx context.Context, limit int) ([]model.FanSummary, error) {
	var res []model.FanSummary
	err := r.db.WithContext(ctx).Raw(`
		SELECT f.fan_id, f.display_name, f.username, f.subscription_status,
			COALESCE((SELECT SUM(t.amount) FROM transactions t WHERE t.fan_id = f.fan_id), 0) AS spend_total,
			COALESCE((SELECT COUNT(*) FROM messages m WHERE m.fan_id = f.fan_id), 0) AS msg_total
		FROM fans f
		ORDER BY f.fan_id
		LIMIT ?
	`, limit).Scan(&res).Error
	return res, err
}

func (r *fanRepository) Delete(ctx context.Context, fanID int64) error {
	return r.db.WithContext(ctx).Where("fan_id = ?", fanID).Delete(&model.Fan{}).Error
}
