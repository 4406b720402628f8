// Package settlement 报名费托管、派奖抽成与退款
package settlement

import (
	"context"
	"strconv"

	"github.com/coder/quartz"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/wfunc/wager-engine/internal/errors"
	"github.com/wfunc/wager-engine/internal/eventlog"
	"github.com/wfunc/wager-engine/internal/game"
	"github.com/wfunc/wager-engine/internal/ledger"
	"github.com/wfunc/wager-engine/internal/logger"
	"github.com/wfunc/wager-engine/internal/models"
	"github.com/wfunc/wager-engine/internal/repository"
)

// 账务类型
const (
	RefEscrow     = "escrow"
	RefPayout     = "payout"
	RefCommission = "commission"
	RefRefund     = "refund"
)

// Accounts 平台账户
type Accounts struct {
	House      string // 机器人报名费出资与机器人奖金回收
	Commission string
}

// Result 一次派奖
type Result struct {
	RoomID     string `json:"room_id"`
	WinnerID   string `json:"winner_id"`
	Account    string `json:"account"`
	Pot        int64  `json:"pot"`
	Payout     int64  `json:"payout"`
	Commission int64  `json:"commission"`
}

// Report 恢复任务的处理结果
type Report struct {
	Paid     int
	Refunded int
	Failed   int
}

// Service 结算服务
type Service struct {
	db       *gorm.DB
	tm       repository.TransactionManager
	ledger   ledger.Ledger
	accounts Accounts
	recorder *eventlog.Recorder
	clock    quartz.Clock
	log      *zap.Logger
}

// NewService 创建结算服务
func NewService(db *gorm.DB, l ledger.Ledger, accounts Accounts, recorder *eventlog.Recorder, clock quartz.Clock, log *zap.Logger) *Service {
	if clock == nil {
		clock = quartz.NewReal()
	}
	if log == nil {
		log = zap.NewNop()
	}
	if recorder == nil {
		recorder = eventlog.NewRecorder(log)
	}
	return &Service{
		db:       db,
		tm:       repository.NewTransactionManager(db),
		ledger:   l,
		accounts: accounts,
		recorder: recorder,
		clock:    clock,
		log:      log,
	}
}

// Split 派奖金额与抽成，抽成向下取整
func Split(pot int64, commissionBps int) (payout, commission int64) {
	commission = pot * int64(commissionBps) / 10000
	return pot - commission, commission
}

// AccountOf 座位对应的资金账户，机器人走平台账户
func (s *Service) AccountOf(session *models.PlayerSession) string {
	if session.IsBot {
		return s.accounts.House
	}
	return session.PlayerID
}

// Escrow 在房间事务内扣除报名费并计入奖池，余额不足时整个事务回滚
func (s *Service) Escrow(tx *repository.Transaction, room *models.Room, session *models.PlayerSession) error {
	l, _ := ledger.Bind(s.ledger, tx.GetDB())
	err := l.Debit(tx.Context(), s.AccountOf(session), room.EntryFee, ledger.Ref{
		Key:     ledger.Key(RefEscrow, room.ID, session.PlayerID),
		RoomID:  room.ID,
		RefType: RefEscrow,
	})
	if err != nil {
		logger.LogSettlement(s.log, RefEscrow, room.ID, room.EntryFee, err)
		return surface(err, "escrow")
	}
	session.EscrowAmount = room.EntryFee
	room.Pot += room.EntryFee
	return nil
}

// surface 对外只暴露余额不足或通用结算失败
func surface(err error, stage string) error {
	switch errors.GetCode(err) {
	case errors.ErrInsufficientFunds, errors.ErrSettlementAlreadyCompleted,
		errors.ErrWinnerMismatch, errors.ErrVersionConflict, errors.ErrRoomNotFound,
		errors.ErrInvalidTransition:
		return err
	}
	return errors.New(errors.ErrSettlementFailed, stage).WithCause(err)
}

// Settle 第二阶段：给赢家派奖、给平台记抽成并归档房间
func (s *Service) Settle(ctx context.Context, roomID, winnerID string) (*Result, error) {
	var result *Result
	err := s.tm.WithTransaction(ctx, func(tx *repository.Transaction) error {
		room, err := tx.Rooms().FindByID(ctx, roomID)
		if err != nil {
			return err
		}
		if room.PayoutStatus == models.PayoutPaid {
			return errors.New(errors.ErrSettlementAlreadyCompleted, roomID)
		}
		if room.Status != models.RoomStatusCompleted || room.PayoutStatus != models.PayoutPending {
			return errors.Newf(errors.ErrInvalidTransition, "room %s is %s/%s", roomID, room.Status, room.PayoutStatus)
		}
		if room.Winner() != winnerID {
			return errors.Newf(errors.ErrWinnerMismatch, "room %s", roomID)
		}

		session, err := tx.Sessions().FindByRoomAndPlayer(ctx, roomID, winnerID)
		if err != nil {
			return err
		}

		payout, commission := Split(room.Pot, room.CommissionBps)
		result = &Result{
			RoomID:     roomID,
			WinnerID:   winnerID,
			Account:    s.AccountOf(session),
			Pot:        room.Pot,
			Payout:     payout,
			Commission: commission,
		}

		l, _ := ledger.Bind(s.ledger, tx.GetDB())
		if err := l.Credit(ctx, result.Account, payout, ledger.Ref{
			Key:     ledger.Key(RefPayout, roomID),
			RoomID:  roomID,
			RefType: RefPayout,
			Note:    winnerID,
		}); err != nil {
			return err
		}
		if commission > 0 {
			if err := l.Credit(ctx, s.accounts.Commission, commission, ledger.Ref{
				Key:     ledger.Key(RefCommission, roomID),
				RoomID:  roomID,
				RefType: RefCommission,
			}); err != nil {
				return err
			}
		}

		now := s.clock.Now().UTC()
		room.PayoutStatus = models.PayoutPaid
		room.ArchivedAt = &now
		if err := tx.Rooms().UpdateVersioned(ctx, room); err != nil {
			return err
		}

		_, err = s.recorder.Append(tx, eventlog.Record{
			RoomID:    roomID,
			ActorID:   winnerID,
			ActorSeat: session.Seat,
			Type:      game.EventSettle,
			Delta:     result,
			TurnSeq:   room.TurnSeq,
		})
		return err
	})
	if err != nil {
		if !errors.Is(err, errors.ErrSettlementAlreadyCompleted) {
			logger.LogSettlement(s.log, RefPayout, roomID, 0, err)
		}
		return nil, surface(err, "payout")
	}

	logger.LogSettlement(s.log, RefPayout, roomID, result.Payout, nil)
	return result, nil
}

// Refund 已取消房间逐个座位退还报名费，每个座位只退一次
func (s *Service) Refund(ctx context.Context, roomID string) (int, error) {
	room, err := repository.NewRoomRepository(s.db).FindByID(ctx, roomID)
	if err != nil {
		return 0, err
	}
	if room.Status != models.RoomStatusCancelled {
		return 0, errors.Newf(errors.ErrInvalidTransition, "refund needs a cancelled room, got %s", room.Status)
	}

	sessions, err := repository.NewSessionRepository(s.db).FindByRoom(ctx, roomID)
	if err != nil {
		return 0, err
	}

	refunded := 0
	for _, session := range sessions {
		if session.Refunded || session.EscrowAmount == 0 {
			continue
		}
		done := false
		err := s.tm.WithTransaction(ctx, func(tx *repository.Transaction) error {
			changed, err := tx.Sessions().MarkRefunded(ctx, session.ID)
			if err != nil || !changed {
				return err
			}
			done = true
			l, _ := ledger.Bind(s.ledger, tx.GetDB())
			return l.Credit(ctx, s.AccountOf(session), session.EscrowAmount, ledger.Ref{
				Key:     ledger.Key(RefRefund, roomID, strconv.Itoa(session.Seat)),
				RoomID:  roomID,
				RefType: RefRefund,
				Note:    session.PlayerID,
			})
		})
		if err != nil {
			logger.LogSettlement(s.log, RefRefund, roomID, session.EscrowAmount, err)
			return refunded, surface(err, "refund")
		}
		if done {
			refunded++
			logger.LogSettlement(s.log, RefRefund, roomID, session.EscrowAmount, nil)
		}
	}
	return refunded, nil
}

// Recover 从数据库状态重新推导未完成的派奖与退款
func (s *Service) Recover(ctx context.Context) (Report, error) {
	var report Report
	rooms := repository.NewRoomRepository(s.db)

	pending, err := rooms.FindPendingPayout(ctx)
	if err != nil {
		return report, err
	}
	for _, room := range pending {
		if _, err := s.Settle(ctx, room.ID, room.Winner()); err != nil && !errors.Is(err, errors.ErrSettlementAlreadyCompleted) {
			report.Failed++
			continue
		}
		report.Paid++
	}

	cancelled, err := rooms.FindCancelledUnrefunded(ctx)
	if err != nil {
		return report, err
	}
	for _, room := range cancelled {
		n, err := s.Refund(ctx, room.ID)
		report.Refunded += n
		if err != nil {
			report.Failed++
		}
	}

	if report.Paid+report.Refunded+report.Failed > 0 {
		s.log.Info("settlement recovery",
			zap.Int("paid", report.Paid),
			zap.Int("refunded", report.Refunded),
			zap.Int("failed", report.Failed),
		)
	}
	return report, nil
}
