package service

import (
	"context"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/wfunc/wager-engine/internal/config"
	"github.com/wfunc/wager-engine/internal/presence"
	"github.com/wfunc/wager-engine/internal/repository"
	"github.com/wfunc/wager-engine/internal/room"
	"github.com/wfunc/wager-engine/internal/utils"
)

func newServices(t *testing.T) (*Services, *config.Config, *gorm.DB) {
	db := repository.TestDB(t)
	cfg := config.Default()
	s, err := New(context.Background(), cfg, db, Options{Clock: quartz.NewMock(t)})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, cfg, db
}

func TestNewWiresServices(t *testing.T) {
	s, _, db := newServices(t)
	ctx := context.Background()
	repository.SeedWallet(t, db, "alice", 1000)

	r, err := s.Rooms.CreateRoom(ctx, room.CreateRequest{CreatorID: "alice", Variant: "race", SeatCount: 2, EntryFee: 100})
	require.NoError(t, err)

	balance, err := s.Ledger.Balance(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(900), balance)

	require.NoError(t, s.Presence.Heartbeat(ctx, r.ID, "alice"))

	token, err := s.Tokens.GenerateAccessToken("alice", utils.RolePlayer)
	require.NoError(t, err)
	claims, err := s.Tokens.ValidateAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.PlayerID())

	balance, err = s.Ledger.Balance(ctx, "nobody")
	require.NoError(t, err)
	assert.Zero(t, balance)

	// 未入座的玩家心跳被拒绝
	assert.Error(t, s.Presence.Heartbeat(ctx, r.ID, "bob"))
}

func TestUpdateConfig(t *testing.T) {
	s, cfg, _ := newServices(t)

	next := *cfg
	next.Game.Turn.Timeout = 45 * time.Second
	next.Game.Room.FillPolicy = presence.FillPolicyBots
	s.UpdateConfig(&next)

	got := s.Rooms.Config()
	assert.Equal(t, 45*time.Second, got.Turn.Timeout)
	assert.Equal(t, presence.FillPolicyBots, got.Room.FillPolicy)
	// 原配置不受影响
	assert.Equal(t, 30*time.Second, cfg.Game.Turn.Timeout)
}

func TestRunStopsWithContext(t *testing.T) {
	s, _, _ := newServices(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop")
	}
}

func TestRunEvictsPresenceOfCancelledRooms(t *testing.T) {
	s, _, db := newServices(t)
	ctx := context.Background()
	repository.SeedWallet(t, db, "alice", 1000)

	r, err := s.Rooms.CreateRoom(ctx, room.CreateRequest{CreatorID: "alice", Variant: "race", SeatCount: 2, EntryFee: 100})
	require.NoError(t, err)
	require.NoError(t, s.Presence.Heartbeat(ctx, r.ID, "alice"))
	require.Equal(t, 1, s.Presence.Rooms())

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- s.Run(runCtx) }()
	defer func() {
		cancel()
		<-done
	}()

	// Hub 与心跳清理各持有一个全量订阅
	require.Eventually(t, func() bool { return s.Rooms.Feed().Subscribers("") >= 2 }, time.Second, 5*time.Millisecond)

	_, err = s.Rooms.CancelRoom(ctx, r.ID, "alice")
	require.NoError(t, err)
	assert.Eventually(t, func() bool { return s.Presence.Rooms() == 0 }, time.Second, 5*time.Millisecond)
}
