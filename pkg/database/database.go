package database

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/d60-Lab/fansync/config"
	"github.com/d60-Lab/fansync/internal/model"
	"github.com/d60-Lab/fansync/pkg/logger"
)

// sleep 重试间隔，测试中替换
var sleep = func() { time.Sleep(3 * time.Second) }

// InitDB 按配置打开数据库连接并迁移表结构，连接失败时按 connect_retries 重试
func InitDB(cfg *config.Config) (*gorm.DB, error) {
	dbCfg := cfg.Database

	var dialector gorm.Dialector
	switch dbCfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(dbCfg.DSN)
	default:
		dialector = postgres.Open(dbCfg.DSN)
	}

	attempts := dbCfg.ConnectRetries
	if attempts <= 0 {
		attempts = 1
	}

	var (
		db  *gorm.DB
		err error
	)
	for i := 0; i < attempts; i++ {
		db, err = gorm.Open(dialector, &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Warn)})
		if err == nil {
			break
		}
		if i == attempts-1 {
			break
		}
		logger.Warn("database connect failed, retrying", zap.Int("attempt", i+1), zap.Error(err))
		sleep()
	}
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if dbCfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(dbCfg.MaxOpenConns)
	}
	if dbCfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(dbCfg.MaxIdleConns)
	}
	if dbCfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(dbCfg.ConnMaxLifetime)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate 创建/更新 fans、messages、transactions、queue、settings 五张表
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.Fan{},
		&model.Message{},
		&model.Transaction{},
		&model.QueueItem{},
		&model.Setting{},
	); err != nil {
		return fmt.Errorf("failed to migrate tables: %w", err)
	}
	return nil
}
