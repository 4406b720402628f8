package eventlog

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Event 已提交的房间变更
type Event struct {
	RoomID  string    `json:"room_id"`
	Seq     int64     `json:"seq"`
	Type    string    `json:"type"`
	Status  string    `json:"status"`
	TurnSeq int64     `json:"turn_seq"`
	At      time.Time `json:"at"`
}

// Subscription 订阅，C 关闭表示订阅结束
type Subscription struct {
	C <-chan Event

	ch     chan Event
	roomID string
	feed   *Feed
	once   sync.Once
}

// Close 取消订阅
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.feed.remove(s)
	})
}

// Feed 进程内按房间的发布订阅，只在事务提交后发布
type Feed struct {
	mu     sync.RWMutex
	rooms  map[string]map[*Subscription]struct{}
	all    map[*Subscription]struct{}
	buffer int
	log    *zap.Logger
}

// NewFeed 创建变更广播
func NewFeed(buffer int, log *zap.Logger) *Feed {
	if buffer <= 0 {
		buffer = 64
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Feed{
		rooms:  make(map[string]map[*Subscription]struct{}),
		all:    make(map[*Subscription]struct{}),
		buffer: buffer,
		log:    log,
	}
}

func (f *Feed) newSubscription(roomID string) *Subscription {
	ch := make(chan Event, f.buffer)
	return &Subscription{C: ch, ch: ch, roomID: roomID, feed: f}
}

// Subscribe 订阅单个房间
func (f *Feed) Subscribe(roomID string) *Subscription {
	sub := f.newSubscription(roomID)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.rooms[roomID] == nil {
		f.rooms[roomID] = make(map[*Subscription]struct{})
	}
	f.rooms[roomID][sub] = struct{}{}
	return sub
}

// SubscribeAll 订阅所有房间
func (f *Feed) SubscribeAll() *Subscription {
	sub := f.newSubscription("")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.all[sub] = struct{}{}
	return sub
}

func (f *Feed) remove(sub *Subscription) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if sub.roomID == "" {
		delete(f.all, sub)
	} else if subs, ok := f.rooms[sub.roomID]; ok {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(f.rooms, sub.roomID)
		}
	}
	close(sub.ch)
}

// Publish 非阻塞投递，订阅者缓冲满时丢弃并记录
func (f *Feed) Publish(ev Event) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	deliver := func(sub *Subscription) {
		select {
		case sub.ch <- ev:
		default:
			f.log.Warn("feed subscriber lagging, event dropped",
				zap.String("room_id", ev.RoomID),
				zap.Int64("seq", ev.Seq),
			)
		}
	}
	for sub := range f.rooms[ev.RoomID] {
		deliver(sub)
	}
	for sub := range f.all {
		deliver(sub)
	}
}

// Subscribers 房间当前订阅数，roomID 为空时返回全量订阅数
func (f *Feed) Subscribers(roomID string) int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if roomID == "" {
		return len(f.all)
	}
	return len(f.rooms[roomID])
}
