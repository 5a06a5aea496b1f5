package model

import (
	"time"
)

const (
	OutboxStatusPending = "PENDING"
	OutboxStatusSent    = "SENT"
	OutboxStatusFailed  = "FAILED"
)

// 账本事件类型
const (
	LedgerEventCredited = "ledger.credited"
)

// OutboxMessage 待投递到 kafka 的账本事件
// 与余额变更在同一个数据库事务内写入
type OutboxMessage struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	MessageKey string    `gorm:"type:varchar(64);not null" json:"message_key"`
	Topic      string    `gorm:"type:varchar(64);not null" json:"topic"`
	EventType  string    `gorm:"type:varchar(32);not null" json:"event_type"`
	Payload    string    `gorm:"type:text;not null" json:"payload"`
	Status     string    `gorm:"type:varchar(20);index;not null;default:PENDING" json:"status"`
	RetryCount int       `gorm:"not null;default:0" json:"retry_count"`
	CreatedAt  time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (OutboxMessage) TableName() string {
	return "outbox_message"
}

// LedgerEvent 账本事件消息体
type LedgerEvent struct {
	Event         string `json:"event"`
	UserID        string `json:"user_id"`
	Amount        string `json:"amount"`
	Type          string `json:"type"`
	Source        string `json:"source,omitempty"`
	Balance       string `json:"balance"`
	TransactionID int64  `json:"transaction_id"`
	OccurredAt    string `json:"occurred_at"`
}
