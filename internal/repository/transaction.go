package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/wfunc/wager-engine/internal/errors"
)

// TransactionManager 事务管理器接口
type TransactionManager interface {
	// WithTransaction 在事务中执行函数，返回错误时整体回滚
	WithTransaction(ctx context.Context, fn func(tx *Transaction) error) error
}

// Transaction 事务包装器，仓储按需创建并绑定到同一个事务
type Transaction struct {
	tx  *gorm.DB
	ctx context.Context

	rooms        RoomRepository
	sessions     SessionRepository
	actionLogs   ActionLogRepository
	wallets      WalletRepository
	transactions TransactionRepository
}

// txManager 事务管理器实现
type txManager struct {
	db *gorm.DB
}

// NewTransactionManager 创建事务管理器
func NewTransactionManager(db *gorm.DB) TransactionManager {
	return &txManager{db: db}
}

// WithTransaction 在事务中执行函数
func (m *txManager) WithTransaction(ctx context.Context, fn func(tx *Transaction) error) error {
	err := m.db.WithContext(ctx).Transaction(func(gtx *gorm.DB) error {
		return fn(&Transaction{tx: gtx, ctx: ctx})
	})
	if err == nil {
		return nil
	}
	if _, ok := errors.As(err); ok {
		return err
	}
	return errors.Wrap(err, errors.ErrTransaction)
}

// GetDB 获取事务中的数据库实例
func (t *Transaction) GetDB() *gorm.DB {
	return t.tx
}

// Context 事务上下文
func (t *Transaction) Context() context.Context {
	return t.ctx
}

// Rooms 获取事务中的房间仓储
func (t *Transaction) Rooms() RoomRepository {
	if t.rooms == nil {
		t.rooms = &roomRepo{BaseRepo: &BaseRepo{db: t.tx}}
	}
	return t.rooms
}

// Sessions 获取事务中的座位仓储
func (t *Transaction) Sessions() SessionRepository {
	if t.sessions == nil {
		t.sessions = &sessionRepo{BaseRepo: &BaseRepo{db: t.tx}}
	}
	return t.sessions
}

// ActionLogs 获取事务中的操作日志仓储
func (t *Transaction) ActionLogs() ActionLogRepository {
	if t.actionLogs == nil {
		t.actionLogs = &actionLogRepo{BaseRepo: &BaseRepo{db: t.tx}}
	}
	return t.actionLogs
}

// Wallets 获取事务中的钱包仓储
func (t *Transaction) Wallets() WalletRepository {
	if t.wallets == nil {
		t.wallets = &walletRepo{BaseRepo: &BaseRepo{db: t.tx}}
	}
	return t.wallets
}

// Transactions 获取事务中的交易记录仓储
func (t *Transaction) Transactions() TransactionRepository {
	if t.transactions == nil {
		t.transactions = &transactionRepo{BaseRepo: &BaseRepo{db: t.tx}}
	}
	return t.transactions
}
