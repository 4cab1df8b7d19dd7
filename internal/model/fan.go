package model

import "time"

// 订阅状态
const (
	StatusActive  = "active"
	StatusExpired = "expired"
)

// Fan 订阅者（上游 fan_id 为主键，每个 fan 只有一行）
type Fan struct {
	FanID              int64     `json:"fan_id" gorm:"primaryKey;autoIncrement:false"`
	Name               string    `json:"name" gorm:"type:varchar(255)"`
	DisplayName        string    `json:"display_name" gorm:"type:varchar(255);not null;default:''"`
	Username           string    `json:"username" gorm:"type:varchar(255);index"`
	SubscriptionStatus string    `json:"subscription_status" gorm:"type:varchar(16);index;not null"`
	CharacterProfile   *string   `json:"character_profile,omitempty" gorm:"type:text"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

func (Fan) TableName() string { return "fans" }

// FanSummary 列表视图，附带消费总额与消息数
type FanSummary struct {
	FanID              int64   `json:"fan_id"`
	DisplayName        string  `json:"display_name"`
	Username           string  `json:"username"`
	SubscriptionStatus string  `json:"subscription_status"`
	SpendTotal         float64 `json:"spend_total"`
	MsgTotal           int64   `json:"msg_total"`
}
