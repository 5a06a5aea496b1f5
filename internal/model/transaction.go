package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	TransactionTypeReward = "reward"
)

// 交易状态，本服务只写入 pending
const (
	TransactionStatusPending   = "pending"
	TransactionStatusConfirmed = "confirmed"
	TransactionStatusFailed    = "failed"
)

// Transaction 余额流水表
// 只追加，每笔余额变动对应一条流水
type Transaction struct {
	ID        int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    string          `gorm:"type:varchar(64);index;not null" json:"user_id"`
	Amount    decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"amount"` // 正数入账，负数出账
	Type      string          `gorm:"type:varchar(32);not null" json:"type"`
	Status    string          `gorm:"type:varchar(16);not null;default:pending" json:"status"`
	TxHash    string          `gorm:"type:varchar(128)" json:"tx_hash"` // 外部链上引用，原样保存
	CreatedAt time.Time       `gorm:"autoCreateTime;index" json:"created_at"`
}

func (Transaction) TableName() string {
	return "transactions"
}
