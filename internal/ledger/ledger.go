// Package ledger 账务能力边界：按幂等键扣款与入账
package ledger

import (
	"context"
	"strings"

	"gorm.io/gorm"
)

// Ref 幂等键与关联信息
type Ref struct {
	Key     string // 幂等键，唯一
	RoomID  string
	RefType string // escrow, payout, commission, refund
	Note    string
}

// Ledger 钱包扣款/入账能力，重复的幂等键不会重复记账
type Ledger interface {
	Debit(ctx context.Context, account string, amount int64, ref Ref) error
	Credit(ctx context.Context, account string, amount int64, ref Ref) error
	Balance(ctx context.Context, account string) (int64, error)
}

// Transactional 支持加入外部数据库事务的账本
type Transactional interface {
	Ledger
	WithTx(tx *gorm.DB) Ledger
}

// Bind 账本支持事务时绑定到 tx，否则原样返回
func Bind(l Ledger, tx *gorm.DB) (Ledger, bool) {
	if t, ok := l.(Transactional); ok && tx != nil {
		return t.WithTx(tx), true
	}
	return l, false
}

// Key 生成幂等键，如 payout:{room}
func Key(parts ...string) string {
	return strings.Join(parts, ":")
}
