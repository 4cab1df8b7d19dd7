package model

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
)

// QueueTypeDraft 待外发的草稿消息
const QueueTypeDraft = "draft"

// QueuePayload 队列负载：目标 fan 与文本
type QueuePayload struct {
	FanID FanRef `json:"fanId"`
	Text  string `json:"text"`
}

// QueueItem 外发队列，由 dispatcher 消费并删除。
// Payload 以原始 JSON 文本保存，逐行解码，坏行不影响其他行的读取。
type QueueItem struct {
	QueueID   int64     `json:"queue_id" gorm:"primaryKey;autoIncrement"`
	Type      string    `json:"type" gorm:"type:varchar(32);index:idx_queue_type_publish;not null"`
	PublishAt time.Time `json:"publish_at" gorm:"index:idx_queue_type_publish;not null"`
	Payload   string    `json:"payload" gorm:"type:text;not null"`
	CreatedAt time.Time `json:"created_at"`
}

func (QueueItem) TableName() string { return "queue" }

// NewDraft 构造一条草稿
func NewDraft(fanID int64, text string, publishAt time.Time) (*QueueItem, error) {
	b, err := json.Marshal(QueuePayload{FanID: FanRef(fanID), Text: text})
	if err != nil {
		return nil, err
	}
	return &QueueItem{Type: QueueTypeDraft, PublishAt: publishAt, Payload: string(b)}, nil
}

// DecodePayload 解析负载
func (q QueueItem) DecodePayload() (QueuePayload, error) {
	var p QueuePayload
	if err := json.Unmarshal([]byte(q.Payload), &p); err != nil {
		return QueuePayload{}, fmt.Errorf("queue item %d: decode payload: %w", q.QueueID, err)
	}
	return p, nil
}
