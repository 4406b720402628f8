package ledger

import (
	"context"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/wfunc/wager-engine/internal/errors"
	"github.com/wfunc/wager-engine/internal/models"
	"github.com/wfunc/wager-engine/internal/repository"
)

// GormLedger 基于 wallets/transactions 表的账本实现
type GormLedger struct {
	db  *gorm.DB
	log *zap.Logger
}

// NewGormLedger 创建账本
func NewGormLedger(db *gorm.DB, log *zap.Logger) *GormLedger {
	if log == nil {
		log = zap.NewNop()
	}
	return &GormLedger{db: db, log: log}
}

// WithTx 绑定到外部事务
func (l *GormLedger) WithTx(tx *gorm.DB) Ledger {
	return &GormLedger{db: tx, log: l.log}
}

// Debit 扣款，余额不足返回 ErrInsufficientFunds
func (l *GormLedger) Debit(ctx context.Context, account string, amount int64, ref Ref) error {
	return l.apply(ctx, models.TxTypeDebit, account, amount, ref)
}

// Credit 入账
func (l *GormLedger) Credit(ctx context.Context, account string, amount int64, ref Ref) error {
	return l.apply(ctx, models.TxTypeCredit, account, amount, ref)
}

// Balance 账户余额，未开户视为0
func (l *GormLedger) Balance(ctx context.Context, account string) (int64, error) {
	wallet, err := repository.NewWalletRepository(l.db).FindByAccount(ctx, account)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return wallet.Balance, nil
}

func (l *GormLedger) apply(ctx context.Context, txType, account string, amount int64, ref Ref) error {
	if amount < 0 {
		return errors.Newf(errors.ErrInvalidParam, "negative amount %d", amount)
	}
	if ref.Key == "" {
		return errors.New(errors.ErrInvalidParam, "missing idempotency key")
	}

	// 外层是事务时这里会变成保存点
	return l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txns := repository.NewTransactionRepository(tx)
		wallets := repository.NewWalletRepository(tx)

		existing, err := txns.FindByOrderNo(ctx, ref.Key)
		if err != nil {
			return err
		}
		if existing != nil {
			l.log.Debug("重复的账务请求，忽略",
				zap.String("order_no", ref.Key),
				zap.String("account", account),
			)
			return nil
		}

		var after int64
		switch txType {
		case models.TxTypeDebit:
			if amount == 0 {
				after, err = l.balanceOf(ctx, wallets, account)
			} else {
				after, err = wallets.DeductBalance(ctx, account, amount)
			}
		default:
			after, err = wallets.AddBalance(ctx, account, amount)
		}
		if err != nil {
			return err
		}

		before := after + amount
		if txType == models.TxTypeCredit {
			before = after - amount
		}

		return txns.Create(ctx, &models.Transaction{
			AccountID:     account,
			OrderNo:       ref.Key,
			Type:          txType,
			Amount:        amount,
			BeforeBalance: before,
			AfterBalance:  after,
			Status:        "success",
			RefID:         ref.RoomID,
			RefType:       ref.RefType,
			Description:   ref.Note,
		})
	})
}

func (l *GormLedger) balanceOf(ctx context.Context, wallets repository.WalletRepository, account string) (int64, error) {
	wallet, err := wallets.Ensure(ctx, account)
	if err != nil {
		return 0, err
	}
	return wallet.Balance, nil
}
