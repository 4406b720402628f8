// Package presence 在线心跳、回合超时与补位调度
package presence

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/coder/quartz"
)

// Store 心跳存储，只记录最后一次心跳时间
type Store interface {
	Touch(ctx context.Context, roomID, playerID string, at time.Time) error
	LastSeen(ctx context.Context, roomID, playerID string) (time.Time, bool, error)
	Forget(ctx context.Context, roomID, playerID string) error
}

// Key 心跳键，如 presence:{room}:{player}
func Key(roomID, playerID string) string {
	return fmt.Sprintf("presence:%s:%s", roomID, playerID)
}

// MemoryStore 进程内心跳存储，过期条目在读取时丢弃
type MemoryStore struct {
	mu    sync.RWMutex
	seen  map[string]time.Time
	ttl   time.Duration
	clock quartz.Clock
}

// NewMemoryStore 创建内存存储
func NewMemoryStore(ttl time.Duration, clock quartz.Clock) *MemoryStore {
	if clock == nil {
		clock = quartz.NewReal()
	}
	return &MemoryStore{seen: make(map[string]time.Time), ttl: ttl, clock: clock}
}

// Touch 记录心跳
func (m *MemoryStore) Touch(_ context.Context, roomID, playerID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := Key(roomID, playerID)
	if prev, ok := m.seen[key]; ok && prev.After(at) {
		return nil
	}
	m.seen[key] = at
	return nil
}

// LastSeen 最后心跳时间
func (m *MemoryStore) LastSeen(_ context.Context, roomID, playerID string) (time.Time, bool, error) {
	key := Key(roomID, playerID)
	m.mu.RLock()
	at, ok := m.seen[key]
	m.mu.RUnlock()
	if !ok {
		return time.Time{}, false, nil
	}
	if m.ttl > 0 && m.clock.Since(at) > m.ttl {
		m.mu.Lock()
		delete(m.seen, key)
		m.mu.Unlock()
		return time.Time{}, false, nil
	}
	return at, true, nil
}

// Forget 删除心跳
func (m *MemoryStore) Forget(_ context.Context, roomID, playerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.seen, Key(roomID, playerID))
	return nil
}

// Len 当前条目数
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.seen)
}
