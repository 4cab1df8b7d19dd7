package upstream

import (
	"bytes"
	"strconv"
	"time"
)

// Int64 接受 JSON 数字或数字字符串（上游在不同接口中两种形式都会出现）
type Int64 int64

func (v *Int64) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(b, `"`)
	if len(b) == 0 || string(b) == "null" {
		*v = 0
		return nil
	}
	n, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return err
	}
	*v = Int64(n)
	return nil
}

// Float64 同 Int64，用于金额
type Float64 float64

func (v *Float64) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(b, `"`)
	if len(b) == 0 || string(b) == "null" {
		*v = 0
		return nil
	}
	f, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return err
	}
	*v = Float64(f)
	return nil
}

type envelope[T any] struct {
	Data T `json:"data"`
}

// Account 已连接的创作者账号
type Account struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// Fan 上游订阅者记录
type Fan struct {
	ID                 Int64  `json:"id"`
	Name               string `json:"name"`
	Username           string `json:"username"`
	SubscriptionStatus string `json:"subscription_status"`
}

type chatUser struct {
	ID Int64 `json:"id"`
}

// Chat 会话；旧接口只返回 id（即 fan id），新接口带 withUser
type Chat struct {
	ID       Int64     `json:"id"`
	WithUser *chatUser `json:"withUser,omitempty"`
}

// FanID 会话对应的 fan
func (c Chat) FanID() int64 {
	if c.WithUser != nil && c.WithUser.ID != 0 {
		return int64(c.WithUser.ID)
	}
	return int64(c.ID)
}

// Message 会话消息；IsOpened 为 true 表示由创作者发出
type Message struct {
	ID        Int64     `json:"id"`
	Text      string    `json:"text"`
	IsOpened  bool      `json:"isOpened"`
	CreatedAt time.Time `json:"created_at"`
}

// Transaction 收入流水
type Transaction struct {
	ID          Int64     `json:"id"`
	UserID      *Int64    `json:"user_id"`
	Type        string    `json:"type"`
	Description string    `json:"description"`
	Amount      Float64   `json:"amount"`
	Date        time.Time `json:"date"`
}

// FanID 可归属的 fan，没有时返回 nil
func (t Transaction) FanID() *int64 {
	if t.UserID == nil || *t.UserID == 0 {
		return nil
	}
	id := int64(*t.UserID)
	return &id
}

// Order 消息排序
type Order string

const (
	OrderAsc  Order = "asc"
	OrderDesc Order = "desc"
)

// MessageQuery 分页参数
type MessageQuery struct {
	Limit  int
	Offset int
	Order  Order
}

type sendMessageRequest struct {
	Text       string   `json:"text"`
	MediaFiles []string `json:"mediaFiles,omitempty"`
}
