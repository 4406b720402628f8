package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/wfunc/wager-engine/internal/errors"
	"github.com/wfunc/wager-engine/internal/models"
)

// RoomRepositoryTestSuite 房间仓储测试套件
type RoomRepositoryTestSuite struct {
	suite.Suite
	db       *gorm.DB
	rooms    RoomRepository
	sessions SessionRepository
	logs     ActionLogRepository
}

func (suite *RoomRepositoryTestSuite) SetupTest() {
	suite.db = SetupTestDB()
	suite.rooms = NewRoomRepository(suite.db)
	suite.sessions = NewSessionRepository(suite.db)
	suite.logs = NewActionLogRepository(suite.db)
}

func (suite *RoomRepositoryTestSuite) TearDownTest() {
	CleanupTestDB(suite.db)
}

func (suite *RoomRepositoryTestSuite) createRoom(id, status string) *models.Room {
	room := &models.Room{
		ID:           id,
		Variant:      "race",
		Status:       status,
		SeatCount:    2,
		EntryFee:     100,
		CurrentSeat:  models.NoSeat,
		PayoutStatus: models.PayoutNone,
		CreatedBy:    "alice",
	}
	suite.Require().NoError(suite.rooms.Create(context.Background(), room))
	return room
}

// 测试乐观锁
func (suite *RoomRepositoryTestSuite) TestUpdateVersioned() {
	ctx := context.Background()
	room := suite.createRoom("r1", models.RoomStatusWaiting)

	stale := *room

	room.Status = models.RoomStatusActive
	room.State = datatypes.JSON(`{"phase":"awaiting-roll"}`)
	suite.Require().NoError(suite.rooms.UpdateVersioned(ctx, room))
	suite.Equal(int64(2), room.Version)

	// 旧版本写入被拒绝
	stale.Status = models.RoomStatusCancelled
	err := suite.rooms.UpdateVersioned(ctx, &stale)
	suite.True(errors.Is(err, errors.ErrVersionConflict))

	found, err := suite.rooms.FindByID(ctx, "r1")
	suite.Require().NoError(err)
	suite.Equal(models.RoomStatusActive, found.Status)
	suite.JSONEq(`{"phase":"awaiting-roll"}`, string(found.State))
}

// 测试房间不存在
func (suite *RoomRepositoryTestSuite) TestFindByIDNotFound() {
	_, err := suite.rooms.FindByID(context.Background(), "missing")
	suite.True(errors.Is(err, errors.ErrRoomNotFound))
}

// 测试扫描查询
func (suite *RoomRepositoryTestSuite) TestSweepQueries() {
	ctx := context.Background()
	now := time.Now()
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	expired := suite.createRoom("expired", models.RoomStatusActive)
	expired.TurnDeadline = &past
	suite.Require().NoError(suite.rooms.UpdateVersioned(ctx, expired))

	live := suite.createRoom("live", models.RoomStatusActive)
	live.TurnDeadline = &future
	suite.Require().NoError(suite.rooms.UpdateVersioned(ctx, live))

	waiting := suite.createRoom("waiting", models.RoomStatusWaiting)
	waiting.FillDeadline = &past
	suite.Require().NoError(suite.rooms.UpdateVersioned(ctx, waiting))

	turnExpired, err := suite.rooms.FindTurnExpired(ctx, now)
	suite.Require().NoError(err)
	suite.Len(turnExpired, 1)
	suite.Equal("expired", turnExpired[0].ID)

	fillExpired, err := suite.rooms.FindFillExpired(ctx, now)
	suite.Require().NoError(err)
	suite.Len(fillExpired, 1)
	suite.Equal("waiting", fillExpired[0].ID)

	pending := suite.createRoom("pending", models.RoomStatusCompleted)
	pending.PayoutStatus = models.PayoutPending
	suite.Require().NoError(suite.rooms.UpdateVersioned(ctx, pending))

	payouts, err := suite.rooms.FindPendingPayout(ctx)
	suite.Require().NoError(err)
	suite.Len(payouts, 1)

	cancelled := suite.createRoom("cancelled", models.RoomStatusCancelled)
	suite.Require().NoError(suite.sessions.Create(ctx, &models.PlayerSession{RoomID: cancelled.ID, Seat: 0, PlayerID: "alice", EscrowAmount: 100}))
	unrefunded, err := suite.rooms.FindCancelledUnrefunded(ctx)
	suite.Require().NoError(err)
	suite.Len(unrefunded, 1)

	p := NewPagination(1, 10)
	active, err := suite.rooms.ListByStatus(ctx, models.RoomStatusActive, p)
	suite.Require().NoError(err)
	suite.Len(active, 2)
	suite.Equal(int64(2), p.Total)
}

// 测试座位唯一与不可修改
func (suite *RoomRepositoryTestSuite) TestSessions() {
	ctx := context.Background()
	room := suite.createRoom("r2", models.RoomStatusWaiting)

	s0 := &models.PlayerSession{RoomID: room.ID, Seat: 0, PlayerID: "alice", EscrowAmount: 100}
	suite.Require().NoError(suite.sessions.Create(ctx, s0))

	// 同一座位
	err := suite.sessions.Create(ctx, &models.PlayerSession{RoomID: room.ID, Seat: 0, PlayerID: "bob"})
	suite.Error(err)
	// 同一玩家
	err = suite.sessions.Create(ctx, &models.PlayerSession{RoomID: room.ID, Seat: 1, PlayerID: "alice"})
	suite.Error(err)

	err = suite.sessions.Update(ctx, s0.ID, map[string]interface{}{"seat": 3})
	suite.True(errors.Is(err, errors.ErrInvalidParam))

	changed, err := suite.sessions.MarkRefunded(ctx, s0.ID)
	suite.Require().NoError(err)
	suite.True(changed)
	changed, err = suite.sessions.MarkRefunded(ctx, s0.ID)
	suite.Require().NoError(err)
	suite.False(changed)

	deadline := time.Now().Add(time.Minute)
	suite.Require().NoError(suite.sessions.SetTurnDeadline(ctx, room.ID, 0, &deadline))
	found, err := suite.sessions.FindByRoomAndPlayer(ctx, room.ID, "alice")
	suite.Require().NoError(err)
	suite.NotNil(found.TurnDeadline)
	suite.True(found.Refunded)
}

// 测试日志序号与不可修改
func (suite *RoomRepositoryTestSuite) TestActionLog() {
	ctx := context.Background()
	room := suite.createRoom("r3", models.RoomStatusActive)

	for i := 0; i < 3; i++ {
		entry := &models.ActionLogEntry{RoomID: room.ID, ActorID: "alice", ActionType: "roll"}
		suite.Require().NoError(suite.logs.Append(ctx, entry))
		suite.Equal(int64(i+1), entry.Seq)
	}

	entries, err := suite.logs.ListByRoom(ctx, room.ID)
	suite.Require().NoError(err)
	suite.Len(entries, 3)

	entries[0].ActionType = "move"
	err = suite.db.Save(entries[0]).Error
	suite.True(errors.Is(err, errors.ErrLogImmutable))

	err = suite.db.Delete(entries[1]).Error
	suite.True(errors.Is(err, errors.ErrLogImmutable))

	again, err := suite.logs.ListByRoom(ctx, room.ID)
	suite.Require().NoError(err)
	suite.Len(again, 3)
	suite.Equal("roll", again[0].ActionType)
}

// 测试机器人回合查询
func (suite *RoomRepositoryTestSuite) TestFindBotTurns() {
	ctx := context.Background()
	room := suite.createRoom("bots", models.RoomStatusActive)
	suite.Require().NoError(suite.sessions.Create(ctx, &models.PlayerSession{RoomID: room.ID, Seat: 0, PlayerID: "alice"}))
	suite.Require().NoError(suite.sessions.Create(ctx, &models.PlayerSession{RoomID: room.ID, Seat: 1, PlayerID: "bot-1", IsBot: true}))

	room.CurrentSeat = 0
	suite.Require().NoError(suite.rooms.UpdateVersioned(ctx, room))
	rooms, err := suite.rooms.FindBotTurns(ctx)
	suite.Require().NoError(err)
	suite.Empty(rooms)

	room.CurrentSeat = 1
	suite.Require().NoError(suite.rooms.UpdateVersioned(ctx, room))
	rooms, err = suite.rooms.FindBotTurns(ctx)
	suite.Require().NoError(err)
	suite.Require().Len(rooms, 1)
	suite.Equal("bots", rooms[0].ID)
}

func TestRoomRepositorySuite(t *testing.T) {
	suite.Run(t, new(RoomRepositoryTestSuite))
}
