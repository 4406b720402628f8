package presence

import (
	"context"
	"sync"

	"github.com/coder/quartz"

	"github.com/wfunc/wager-engine/internal/errors"
	"github.com/wfunc/wager-engine/internal/eventlog"
	"github.com/wfunc/wager-engine/internal/models"
)

// SeatChecker 查询玩家是否入座
type SeatChecker interface {
	Seated(ctx context.Context, roomID, playerID string) (bool, error)
}

// Tracker 处理心跳，入座关系缓存在内存中，不进入房间锁
type Tracker struct {
	store Store
	seats SeatChecker
	clock quartz.Clock

	mu     sync.RWMutex
	seated map[string]map[string]struct{} // room -> players
}

// NewTracker 创建心跳处理器
func NewTracker(store Store, seats SeatChecker, clock quartz.Clock) *Tracker {
	if clock == nil {
		clock = quartz.NewReal()
	}
	return &Tracker{store: store, seats: seats, clock: clock, seated: make(map[string]map[string]struct{})}
}

// Heartbeat 记录玩家心跳，重复调用无副作用
func (t *Tracker) Heartbeat(ctx context.Context, roomID, playerID string) error {
	ok, err := t.isSeated(ctx, roomID, playerID)
	if err != nil {
		return err
	}
	if !ok {
		return errors.New(errors.ErrNotFound, "player not seated")
	}
	return t.store.Touch(ctx, roomID, playerID, t.clock.Now().UTC())
}

func (t *Tracker) isSeated(ctx context.Context, roomID, playerID string) (bool, error) {
	t.mu.RLock()
	_, ok := t.seated[roomID][playerID]
	t.mu.RUnlock()
	if ok {
		return true, nil
	}

	ok, err := t.seats.Seated(ctx, roomID, playerID)
	if err != nil || !ok {
		return false, err
	}
	// 座位一经分配不再变化，只缓存已入座的结果
	t.mu.Lock()
	players := t.seated[roomID]
	if players == nil {
		players = make(map[string]struct{})
		t.seated[roomID] = players
	}
	players[playerID] = struct{}{}
	t.mu.Unlock()
	return true, nil
}

// Rooms 缓存中的房间数
func (t *Tracker) Rooms() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.seated)
}

// Evict 房间结束后清理缓存与心跳
func (t *Tracker) Evict(ctx context.Context, roomID string) {
	t.mu.Lock()
	players := t.seated[roomID]
	delete(t.seated, roomID)
	t.mu.Unlock()

	for id := range players {
		_ = t.store.Forget(ctx, roomID, id)
	}
}

// Watch 订阅房间变更，房间完成或取消时清理，直到 ctx 结束
func (t *Tracker) Watch(ctx context.Context, feed *eventlog.Feed) error {
	sub := feed.SubscribeAll()
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-sub.C:
			if !ok {
				return nil
			}
			if ev.Status == models.RoomStatusCompleted || ev.Status == models.RoomStatusCancelled {
				t.Evict(ctx, ev.RoomID)
			}
		}
	}
}
