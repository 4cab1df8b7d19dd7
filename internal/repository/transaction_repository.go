package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/d60-Lab/fansync/internal/model"
)

type TransactionRepository interface {
	// InsertIgnore 写入一次：txn_id 已存在时不覆盖，返回是否新插入
	InsertIgnore(ctx context.Context, t *model.Transaction) (bool, error)
	Recent(ctx context.Context, fanID int64, limit int) ([]model.Transaction, error)
	ListByFan(ctx context.Context, fanID int64) ([]model.Transaction, error)
	DeleteByFan(ctx context.Context, fanID int64) error
	Count(ctx context.Context) (int64, error)
}

type transactionRepository struct{ db *gorm.DB }

func NewTransactionRepository(db *gorm.DB) TransactionRepository {
	return &transactionRepository{db: db}
}

func (r *transactionRepository) InsertIgnore(ctx context.Context, t *model.Transaction) (bool, error) {
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(t)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *transactionRepository) Recent(ctx context.Context, fanID int64, limit int) ([]model.Transaction, error) {
	var res []model.Transaction
	err := r.db.WithContext(ctx).
		Where("fan_id = ?", fanID).
		Order("created_at DESC").
		Limit(limit).
		Find(&res).Error
	return res, err
}

func (r *transactionRepository) ListByFan(ctx context.Context, fanID int64) ([]model.Transaction, error) {
	var res []model.Transaction
	err := r.db.WithContext(ctx).Where("fan_id = ?", fanID).Order("created_at").Find(&res).Error
	return res, err
}

func (r *transactionRepository) DeleteByFan(ctx context.Context, fanID int64) error {
	return r.db.WithContext(ctx).Where("fan_id = ?", fanID).Delete(&model.Transaction{}).Error
}

func (r *transactionRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Transaction{}).Count(&count).Error
	return count, err
}
