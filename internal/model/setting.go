package model

// 持久化状态与开关的 key
const (
	SettingReplyTemp         = "replyTemp"
	SettingSpendNudgeLastTxn = "spendNudgeLastTxn"
	FlagGenerateReplies      = "generateRepliesEnabled"
	FlagSpendTierNudger      = "spendTierNudgerEnabled"
)

// Setting 键值对，既作功能开关也保存任务状态
type Setting struct {
	Key   string `json:"key" gorm:"primaryKey;type:varchar(64)"`
	Value string `json:"value" gorm:"type:text;not null"`
}

func (Setting) TableName() string { return "settings" }
