package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/d60-Lab/fansync/internal/model"
)

type QueueRepository interface {
	Enqueue(ctx context.Context, item *model.QueueItem) error
	// ListDue 返回 publish_at 已到期的项，按 queue_id 升序
	ListDue(ctx context.Context, typ string, now time.Time, limit int) ([]model.QueueItem, error)
	// Claim 删除一行；返回 false 表示已被其他执行方删除
	Claim(ctx context.Context, queueID int64) (bool, error)
	Count(ctx context.Context) (int64, error)
}

type queueRepository struct{ db *gorm.DB }

func NewQueueRepository(db *gorm.DB) QueueRepository { return &queueRepository{db: db} }

func (r *queueRepository) Enqueue(ctx context.Context, item *model.QueueItem) error {
	item.PublishAt = item.PublishAt.UTC()
	return r.db.WithContext(ctx).Create(item).Error
}

func (r *queueRepository) ListDue(ctx context.Context, typ string, now time.Time, limit int) ([]model.QueueItem, error) {
	var res []model.QueueItem
	err := r.db.WithContext(ctx).
		Where("type = ? AND publish_at <= ?", typ, now.UTC()).
		Order("queue_id").
		Limit(limit).
		Find(&res).Error
	return res, err
}

func (r *queueRepository) Claim(ctx context.Context, queueID int64) (bool, error) {
	res := r.db.WithContext(ctx).Where("queue_id = ?", queueID).Delete(&model.QueueItem{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *queueRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.QueueItem{}).Count(&count).Error
	return count, err
}
