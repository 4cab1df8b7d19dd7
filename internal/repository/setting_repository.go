package repository

import (
	"context"
	"errors"
	"strconv"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/d60-Lab/fansync/internal/model"
)

type SettingRepository interface {
	// Get 返回值以及 key 是否存在
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	// SetIfGreater 写入整数值，已有值不小于 value 时保持不变
	SetIfGreater(ctx context.Context, key string, value int64) error
	All(ctx context.Context) ([]model.Setting, error)
}

type settingRepository struct{ db *gorm.DB }

func NewSettingRepository(db *gorm.DB) SettingRepository { return &settingRepository{db: db} }

func (r *settingRepository) Get(ctx context.Context, key string) (string, bool, error) {
	var s model.Setting
	err := r.db.WithContext(ctx).Where("key = ?", key).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return s.Value, true, nil
}

func (r *settingRepository) Set(ctx context.Context, key, value string) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Create(&model.Setting{Key: key, Value: value}).Error
}

func (r *settingRepository) SetIfGreater(ctx context.Context, key string, value int64) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
		Where: clause.Where{Exprs: []clause.Expression{
			clause.Expr{SQL: "CAST(settings.value AS BIGINT) < CAST(excluded.value AS BIGINT)"},
		}},
	}).Create(&model.Setting{Key: key, Value: strconv.FormatInt(value, 10)}).Error
}

func (r *settingRepository) All(ctx context.Context) ([]model.Setting, error) {
	var res []model.Setting
	err := r.db.WithContext(ctx).Order("key").Find(&res).Error
	return res, err
}
