package repository

import (
	"context"
	stderrors "errors"

	"gorm.io/gorm"

	"github.com/wfunc/wager-engine/internal/errors"
	"github.com/wfunc/wager-engine/internal/models"
)

// WalletRepository 钱包仓储接口
type WalletRepository interface {
	BaseRepository
	Create(ctx context.Context, wallet *models.Wallet) error
	FindByAccount(ctx context.Context, accountID string) (*models.Wallet, error)
	Ensure(ctx context.Context, accountID string) (*models.Wallet, error)
	AddBalance(ctx context.Context, accountID string, amount int64) (int64, error)
	DeductBalance(ctx context.Context, accountID string, amount int64) (int64, error)
}

// walletRepo 钱包仓储实现
type walletRepo struct {
	*BaseRepo
}

// NewWalletRepository 创建钱包仓储
func NewWalletRepository(db *gorm.DB) WalletRepository {
	return &walletRepo{
		BaseRepo: &BaseRepo{db: db},
	}
}

// Create 创建钱包
func (r *walletRepo) Create(ctx context.Context, wallet *models.Wallet) error {
	if err := r.db.WithContext(ctx).Create(wallet).Error; err != nil {
		return errors.Wrap(err, errors.ErrDatabaseInsert, "wallet")
	}
	return nil
}

// FindByAccount 根据账户查找钱包
func (r *walletRepo) FindByAccount(ctx context.Context, accountID string) (*models.Wallet, error) {
	var wallet models.Wallet
	err := r.db.WithContext(ctx).Where("account_id = ?", accountID).First(&wallet).Error
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New(errors.ErrNotFound, "钱包不存在")
		}
		return nil, errors.Wrap(err, errors.ErrDatabaseQuery)
	}
	return &wallet, nil
}

// Ensure 查找钱包，不存在时创建零余额钱包
func (r *walletRepo) Ensure(ctx context.Context, accountID string) (*models.Wallet, error) {
	var wallet models.Wallet
	err := r.db.WithContext(ctx).
		Where(models.Wallet{AccountID: accountID}).
		FirstOrCreate(&wallet).Error
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrDatabaseInsert, "wallet")
	}
	return &wallet, nil
}

// AddBalance 增加余额，返回变更后的余额
func (r *walletRepo) AddBalance(ctx context.Context, accountID string, amount int64) (int64, error) {
	if _, err := r.Ensure(ctx, accountID); err != nil {
		return 0, err
	}

	err := r.db.WithContext(ctx).
		Model(&models.Wallet{}).
		Where("account_id = ?", accountID).
		Updates(map[string]interface{}{
			"balance":      gorm.Expr("balance + ?", amount),
			"total_credit": gorm.Expr("total_credit + ?", amount),
		}).Error
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrDatabaseUpdate, "wallet")
	}

	return r.balance(ctx, accountID)
}

// DeductBalance 条件扣减余额，余额不足返回 ErrInsufficientFunds
func (r *walletRepo) DeductBalance(ctx context.Context, accountID string, amount int64) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Wallet{}).
		Where("account_id = ? AND balance >= ?", accountID, amount).
		Updates(map[string]interface{}{
			"balance":     gorm.Expr("balance - ?", amount),
			"total_debit": gorm.Expr("total_debit + ?", amount),
		})

	if result.Error != nil {
		return 0, errors.Wrap(result.Error, errors.ErrDatabaseUpdate, "wallet")
	}

	if result.RowsAffected == 0 {
		return 0, errors.New(errors.ErrInsufficientFunds)
	}

	return r.balance(ctx, accountID)
}

func (r *walletRepo) balance(ctx context.Context, accountID string) (int64, error) {
	var balance int64
	err := r.db.WithContext(ctx).
		Model(&models.Wallet{}).
		Where("account_id = ?", accountID).
		Select("balance").
		Scan(&balance).Error
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrDatabaseQuery)
	}
	return balance, nil
}

// TransactionRepository 交易记录仓储接口
type TransactionRepository interface {
	BaseRepository
	Create(ctx context.Context, transaction *models.Transaction) error
	FindByOrderNo(ctx context.Context, orderNo string) (*models.Transaction, error)
	FindByAccount(ctx context.Context, accountID string, pagination *Pagination) ([]*models.Transaction, error)
	FindByRef(ctx context.Context, refID string) ([]*models.Transaction, error)
}

// transactionRepo 交易记录仓储实现
type transactionRepo struct {
	*BaseRepo
}

// NewTransactionRepository 创建交易记录仓储
func NewTransactionRepository(db *gorm.DB) TransactionRepository {
	return &transactionRepo{
		BaseRepo: &BaseRepo{db: db},
	}
}

// Create 创建交易记录
func (r *transactionRepo) Create(ctx context.Context, transaction *models.Transaction) error {
	if err := r.db.WithContext(ctx).Create(transaction).Error; err != nil {
		return errors.Wrap(err, errors.ErrDatabaseInsert, "transaction")
	}
	return nil
}

// FindByOrderNo 根据幂等键查找，不存在返回 nil, nil
func (r *transactionRepo) FindByOrderNo(ctx context.Context, orderNo string) (*models.Transaction, error) {
	var txn models.Transaction
	err := r.db.WithContext(ctx).Where("order_no = ?", orderNo).First(&txn).Error
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, errors.Wrap(err, errors.ErrDatabaseQuery)
	}
	return &txn, nil
}

// FindByAccount 分页查询账户流水
func (r *transactionRepo) FindByAccount(ctx context.Context, accountID string, pagination *Pagination) ([]*models.Transaction, error) {
	var txns []*models.Transaction
	query := r.db.WithContext(ctx).Model(&models.Transaction{}).Where("account_id = ?", accountID)

	if pagination != nil {
		if err := query.Count(&pagination.Total).Error; err != nil {
			return nil, errors.Wrap(err, errors.ErrDatabaseQuery)
		}
		query = query.Scopes(Paginate(pagination))
	}

	if err := query.Order("id DESC").Find(&txns).Error; err != nil {
		return nil, errors.Wrap(err, errors.ErrDatabaseQuery)
	}
	return txns, nil
}

// FindByRef 查询房间相关的全部流水
func (r *transactionRepo) FindByRef(ctx context.Context, refID string) ([]*models.Transaction, error) {
	var txns []*models.Transaction
	err := r.db.WithContext(ctx).
		Where("ref_id = ?", refID).
		Order("id ASC").
		Find(&txns).Error
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrDatabaseQuery)
	}
	return txns, nil
}
