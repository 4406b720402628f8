package models

import (
	"gorm.io/datatypes"
)

// 账务类型
const (
	TxTypeDebit  = "debit"
	TxTypeCredit = "credit"
)

// Wallet 账户余额表
type Wallet struct {
	BaseModel
	AccountID   string `gorm:"uniqueIndex;size:64;not null" json:"account_id"`
	Balance     int64  `gorm:"default:0" json:"balance"` // 最小货币单位
	TotalDebit  int64  `gorm:"default:0" json:"total_debit"`
	TotalCredit int64  `gorm:"default:0" json:"total_credit"`
}

// TableName 指定表名
func (Wallet) TableName() string {
	return "wallets"
}

// Transaction 账务流水，OrderNo 即幂等键
type Transaction struct {
	BaseModel
	AccountID     string         `gorm:"size:64;not null;index" json:"account_id"`
	OrderNo       string         `gorm:"uniqueIndex;size:128;not null" json:"order_no"`
	Type          string         `gorm:"size:16;not null;index" json:"type"` // debit, credit
	Amount        int64          `gorm:"not null" json:"amount"`
	BeforeBalance int64          `json:"before_balance"`
	AfterBalance  int64          `json:"after_balance"`
	Status        string         `gorm:"size:20;default:'success'" json:"status"`
	RefID         string         `gorm:"size:100;index" json:"ref_id"` // 房间ID
	RefType       string         `gorm:"size:50" json:"ref_type"`      // escrow, payout, commission, refund
	Description   string         `gorm:"size:500" json:"description"`
	Metadata      datatypes.JSON `json:"metadata,omitempty"`
}

// TableName 指定表名
func (Transaction) TableName() string {
	return "transactions"
}
