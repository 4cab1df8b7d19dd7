package model

import "time"

// 交易类型
const (
	TxnTip          = "tip"
	TxnSubscription = "subscription"
	TxnOther        = "other"
)

// Transaction 交易记录，txn_id 为去重键；部分交易没有可归属的 fan
type Transaction struct {
	TxnID     int64     `json:"txn_id" gorm:"primaryKey;autoIncrement:false"`
	FanID     *int64    `json:"fan_id" gorm:"index:idx_txn_fan_created"`
	Type      string    `json:"type" gorm:"type:varchar(16);not null"`
	Amount    float64   `json:"amount" gorm:"type:decimal(12,2);not null"`
	CreatedAt time.Time `json:"created_at" gorm:"index:idx_txn_fan_created"`
}

func (Transaction) TableName() string { return "transactions" }
