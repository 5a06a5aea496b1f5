package model

import "time"

// ChatMessage 聊天记录
// Username 为发送时的昵称快照，不随用户改名变化
type ChatMessage struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    string    `gorm:"type:varchar(64);index" json:"user_id"`
	Username  string    `gorm:"type:varchar(128)" json:"username"`
	Message   string    `gorm:"type:text" json:"message"`
	Timestamp time.Time `gorm:"autoCreateTime;index" json:"timestamp"`
}

func (ChatMessage) TableName() string {
	return "chat_messages"
}
