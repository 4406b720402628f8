package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/wfunc/wager-engine/internal/models"
	"github.com/wfunc/wager-engine/internal/repository"
)

// BalanceReader 余额查询
type BalanceReader interface {
	Balance(ctx context.Context, account string) (int64, error)
}

// WalletHandler 钱包处理器，只读
type WalletHandler struct {
	ledger       BalanceReader
	transactions repository.TransactionRepository
	logger       *zap.Logger
}

// NewWalletHandler 创建钱包处理器
func NewWalletHandler(db *gorm.DB, ledger BalanceReader, logger *zap.Logger) *WalletHandler {
	return &WalletHandler{
		ledger:       ledger,
		transactions: repository.NewTransactionRepository(db),
		logger:       logger,
	}
}

// BalanceResponse 余额响应
type BalanceResponse struct {
	AccountID string `json:"account_id"`
	Balance   int64  `json:"balance"`
}

// TransactionListResponse 交易列表响应
type TransactionListResponse struct {
	Transactions []*models.Transaction  `json:"transactions"`
	Pagination   *repository.Pagination `json:"pagination"`
}

// GetBalance 获取余额
// @Summary 获取余额
// @Tags Wallet
// @Security Bearer
// @Produce json
// @Success 200 {object} Response
// @Failure 401 {object} ErrorResponse
// @Router /api/v1/wallet/balance [get]
func (h *WalletHandler) GetBalance(c *gin.Context) {
	account := playerID(c)
	balance, err := h.ledger.Balance(c.Request.Context(), account)
	if err != nil {
		fail(c, err)
		return
	}
	success(c, http.StatusOK, BalanceResponse{AccountID: account, Balance: balance})
}

// GetTransactions 交易流水
// @Summary 交易流水
// @Description 报名费、派奖与退款记录
// @Tags Wallet
// @Security Bearer
// @Produce json
// @Param page query int false "页码"
// @Param page_size query int false "每页数量"
// @Success 200 {object} Response
// @Router /api/v1/wallet/transactions [get]
func (h *WalletHandler) GetTransactions(c *gin.Context) {
	p := repository.NewPagination(queryInt(c, "page", 1), queryInt(c, "page_size", 20))
	txns, err := h.transactions.FindByAccount(c.Request.Context(), playerID(c), p)
	if err != nil {
		fail(c, err)
		return
	}
	success(c, http.StatusOK, TransactionListResponse{Transactions: txns, Pagination: p})
}
