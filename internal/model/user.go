package model

import (
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// 余额以 JSON 数字输出，兼容现有前端
	decimal.MarshalJSONWithoutQuotes = true
}

// BalanceScale 余额和金额的小数位数，与列定义 decimal(20,8) 一致
const BalanceScale = 8

// User 用户表
// 余额只允许通过账本服务修改
type User struct {
	ID        string          `gorm:"primaryKey;type:varchar(64)" json:"id"`
	Username  string          `gorm:"type:varchar(128)" json:"username"`
	Balance   decimal.Decimal `gorm:"type:decimal(20,8);not null;default:0" json:"balance"`
	Wallet    string          `gorm:"type:varchar(128)" json:"wallet"`
	CreatedAt time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

func (User) TableName() string {
	return "users"
}
