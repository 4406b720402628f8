package settlement

import (
	"context"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/wfunc/wager-engine/internal/errors"
	"github.com/wfunc/wager-engine/internal/ledger"
	"github.com/wfunc/wager-engine/internal/models"
	"github.com/wfunc/wager-engine/internal/repository"
)

type SettlementTestSuite struct {
	suite.Suite
	db    *gorm.DB
	svc   *Service
	clock *quartz.Mock
	ctx   context.Context
}

func (s *SettlementTestSuite) SetupTest() {
	s.db = repository.SetupTestDB()
	s.clock = quartz.NewMock(s.T())
	s.clock.Set(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	s.ctx = context.Background()
	s.svc = NewService(s.db, ledger.NewGormLedger(s.db, zap.NewNop()),
		Accounts{House: "house", Commission: "commission"}, nil, s.clock, zap.NewNop())
}

func (s *SettlementTestSuite) TearDownTest() {
	repository.CleanupTestDB(s.db)
}

func (s *SettlementTestSuite) seedRoom(status, payout string, winner string, sessions ...*models.PlayerSession) *models.Room {
	room := &models.Room{
		ID:            "room-" + status,
		Variant:       "race",
		Status:        status,
		SeatCount:     len(sessions),
		EntryFee:      100,
		Pot:           100 * int64(len(sessions)),
		CommissionBps: 1000,
		PayoutStatus:  payout,
		CreatedBy:     sessions[0].PlayerID,
	}
	if winner != "" {
		room.WinnerID = &winner
	}
	s.Require().NoError(repository.NewRoomRepository(s.db).Create(s.ctx, room))
	for _, session := range sessions {
		session.RoomID = room.ID
		session.EscrowAmount = 100
		s.Require().NoError(repository.NewSessionRepository(s.db).Create(s.ctx, session))
	}
	return room
}

func (s *SettlementTestSuite) balance(account string) int64 {
	b, err := s.svc.ledger.Balance(s.ctx, account)
	s.Require().NoError(err)
	return b
}

func (s *SettlementTestSuite) TestSplit() {
	payout, commission := Split(200, 1000)
	s.Equal(int64(180), payout)
	s.Equal(int64(20), commission)

	payout, commission = Split(199, 1000)
	s.Equal(int64(180), payout, "commission rounds down")
	s.Equal(int64(19), commission)

	payout, commission = Split(500, 0)
	s.Equal(int64(500), payout)
	s.Zero(commission)
}

func (s *SettlementTestSuite) TestEscrow() {
	repository.SeedWallet(s.T(), s.db, "alice", 150)
	room := &models.Room{ID: "escrow-room", Variant: "race", Status: models.RoomStatusWaiting, SeatCount: 2, EntryFee: 100, CreatedBy: "alice"}
	session := &models.PlayerSession{RoomID: room.ID, Seat: 0, PlayerID: "alice"}

	err := s.svc.tm.WithTransaction(s.ctx, func(tx *repository.Transaction) error {
		if err := s.svc.Escrow(tx, room, session); err != nil {
			return err
		}
		if err := tx.Rooms().Create(s.ctx, room); err != nil {
			return err
		}
		return tx.Sessions().Create(s.ctx, session)
	})
	s.Require().NoError(err)
	s.Equal(int64(50), s.balance("alice"))
	s.Equal(int64(100), room.Pot)
	s.Equal(int64(100), session.EscrowAmount)

	// 第二次扣款余额不足，整个事务回滚
	other := &models.Room{ID: "escrow-room-2", Variant: "race", Status: models.RoomStatusWaiting, SeatCount: 2, EntryFee: 100, CreatedBy: "alice"}
	err = s.svc.tm.WithTransaction(s.ctx, func(tx *repository.Transaction) error {
		if err := tx.Rooms().Create(s.ctx, other); err != nil {
			return err
		}
		return s.svc.Escrow(tx, other, &models.PlayerSession{RoomID: other.ID, PlayerID: "alice"})
	})
	s.True(errors.Is(err, errors.ErrInsufficientFunds))
	s.Equal(int64(50), s.balance("alice"))
	_, err = repository.NewRoomRepository(s.db).FindByID(s.ctx, other.ID)
	s.True(errors.Is(err, errors.ErrRoomNotFound))
}

func (s *SettlementTestSuite) TestSettleIsIdempotent() {
	room := s.seedRoom(models.RoomStatusCompleted, models.PayoutPending, "alice",
		&models.PlayerSession{Seat: 0, PlayerID: "alice"},
		&models.PlayerSession{Seat: 1, PlayerID: "bob"},
	)

	res, err := s.svc.Settle(s.ctx, room.ID, "alice")
	s.Require().NoError(err)
	s.Equal(int64(180), res.Payout)
	s.Equal(int64(20), res.Commission)
	s.Equal(int64(180), s.balance("alice"))
	s.Equal(int64(20), s.balance("commission"))

	_, err = s.svc.Settle(s.ctx, room.ID, "alice")
	s.True(errors.Is(err, errors.ErrSettlementAlreadyCompleted))
	s.Equal(int64(180), s.balance("alice"))

	stored, err := repository.NewRoomRepository(s.db).FindByID(s.ctx, room.ID)
	s.Require().NoError(err)
	s.Equal(models.PayoutPaid, stored.PayoutStatus)
	s.Require().NotNil(stored.ArchivedAt)
	s.True(stored.ArchivedAt.Equal(s.clock.Now()))

	entries, err := repository.NewActionLogRepository(s.db).ListByRoom(s.ctx, room.ID)
	s.Require().NoError(err)
	s.Require().Len(entries, 1)
	s.Equal("settle", entries[0].ActionType)
}

func (s *SettlementTestSuite) TestSettleRejectsWrongWinner() {
	room := s.seedRoom(models.RoomStatusCompleted, models.PayoutPending, "alice",
		&models.PlayerSession{Seat: 0, PlayerID: "alice"},
		&models.PlayerSession{Seat: 1, PlayerID: "bob"},
	)
	_, err := s.svc.Settle(s.ctx, room.ID, "bob")
	s.True(errors.Is(err, errors.ErrWinnerMismatch))
	s.Zero(s.balance("bob"))

	_, err = s.svc.Settle(s.ctx, "missing", "bob")
	s.True(errors.Is(err, errors.ErrRoomNotFound))
}

func (s *SettlementTestSuite) TestSettleRequiresCompletedRoom() {
	room := s.seedRoom(models.RoomStatusActive, models.PayoutNone, "",
		&models.PlayerSession{Seat: 0, PlayerID: "alice"},
	)
	_, err := s.svc.Settle(s.ctx, room.ID, "alice")
	s.True(errors.Is(err, errors.ErrInvalidTransition))
}

func (s *SettlementTestSuite) TestBotWinnerPaysHouse() {
	room := s.seedRoom(models.RoomStatusCompleted, models.PayoutPending, "bot-1",
		&models.PlayerSession{Seat: 0, PlayerID: "alice"},
		&models.PlayerSession{Seat: 1, PlayerID: "bot-1", IsBot: true},
	)
	res, err := s.svc.Settle(s.ctx, room.ID, "bot-1")
	s.Require().NoError(err)
	s.Equal("house", res.Account)
	s.Equal(int64(180), s.balance("house"))
}

func (s *SettlementTestSuite) TestRefundOncePerSeat() {
	room := s.seedRoom(models.RoomStatusCancelled, models.PayoutNone, "",
		&models.PlayerSession{Seat: 0, PlayerID: "alice"},
		&models.PlayerSession{Seat: 1, PlayerID: "bot-1", IsBot: true},
	)

	n, err := s.svc.Refund(s.ctx, room.ID)
	s.Require().NoError(err)
	s.Equal(2, n)
	s.Equal(int64(100), s.balance("alice"))
	s.Equal(int64(100), s.balance("house"))

	n, err = s.svc.Refund(s.ctx, room.ID)
	s.Require().NoError(err)
	s.Zero(n)
	s.Equal(int64(100), s.balance("alice"))

	waiting := s.seedRoom(models.RoomStatusWaiting, models.PayoutNone, "", &models.PlayerSession{Seat: 0, PlayerID: "carol"})
	_, err = s.svc.Refund(s.ctx, waiting.ID)
	s.True(errors.Is(err, errors.ErrInvalidTransition))
}

func (s *SettlementTestSuite) TestRecover() {
	s.seedRoom(models.RoomStatusCompleted, models.PayoutPending, "alice",
		&models.PlayerSession{Seat: 0, PlayerID: "alice"},
		&models.PlayerSession{Seat: 1, PlayerID: "bob"},
	)
	s.seedRoom(models.RoomStatusCancelled, models.PayoutNone, "",
		&models.PlayerSession{Seat: 0, PlayerID: "carol"},
	)

	report, err := s.svc.Recover(s.ctx)
	s.Require().NoError(err)
	s.Equal(Report{Paid: 1, Refunded: 1}, report)
	s.Equal(int64(180), s.balance("alice"))
	s.Equal(int64(100), s.balance("carol"))

	report, err = s.svc.Recover(s.ctx)
	s.Require().NoError(err)
	s.Equal(Report{}, report)
}

func TestSettlementSuite(t *testing.T) {
	suite.Run(t, new(SettlementTestSuite))
}
