package model

import "time"

// 消息方向
const (
	DirectionIn  = "in"
	DirectionOut = "out"
)

// Message 会话消息，msg_id 为去重键，写入后不再覆盖
type Message struct {
	MsgID     string    `json:"msg_id" gorm:"primaryKey;type:varchar(64)"`
	FanID     int64     `json:"fan_id" gorm:"index:idx_msg_fan_created;not null"`
	Direction string    `json:"direction" gorm:"type:varchar(3);not null"`
	Text      string    `json:"text" gorm:"type:text"`
	CreatedAt time.Time `json:"created_at" gorm:"index:idx_msg_fan_created"`
}

func (Message) TableName() string { return "messages" }
