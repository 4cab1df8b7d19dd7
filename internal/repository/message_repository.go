package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/d60-Lab/fansync/internal/model"
)

type MessageRepository interface {
	// InsertIgnore 写入一次：msg_id 已存在时不覆盖，返回是否新插入
	InsertIgnore(ctx context.Context, m *model.Message) (bool, error)
	// Recent 最近 limit 条，按 created_at 倒序
	Recent(ctx context.Context, fanID int64, limit int) ([]model.Message, error)
	ListByFan(ctx context.Context, fanID int64) ([]model.Message, error)
	DeleteByFan(ctx context.Context, fanID int64) error
	Count(ctx context.Context) (int64, error)
}

type messageRepository struct{ db *gorm.DB }

func NewMessageRepository(db *gorm.DB) MessageRepository { return &messageRepository{db: db} }

func (r *messageRepository) InsertIgnore(ctx context.Context, m *model.Message) (bool, error) {
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(m)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *messageRepository) Recent(ctx context.Context, fanID int64, limit int) ([]model.Message, error) {
	var res []model.Message
	err := r.db.WithContext(ctx).
		Where("fan_id = ?", fanID).
		Order("created_at DESC").
		Limit(limit).
		Find(&res).Error
	return res, err
}

func (r *messageRepository) ListByFan(ctx context.Context, fanID int64) ([]model.Message, error) {
	var res []model.Message
	err := r.db.WithContext(ctx).Where("fan_id = ?", fanID).Order("created_at").Find(&res).Error
	return res, err
}

func (r *messageRepository) DeleteByFan(ctx context.Context, fanID int64) error {
	return r.db.WithContext(ctx).Where("fan_id = ?", fanID).Delete(&model.Message{}).Error
}

func (r *messageRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Message{}).Count(&count).Error
	return count, err
}
