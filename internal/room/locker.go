package room

import "sync"

// Locker 按房间的互斥锁表，同一房间只有一个写者
type Locker struct {
	mu    sync.Mutex
	locks map[string]*roomLock
}

type roomLock struct {
	sync.Mutex
	refs int
}

// NewLocker 创建锁表
func NewLocker() *Locker {
	return &Locker{locks: make(map[string]*roomLock)}
}

// Lock 加锁并返回解锁函数，无人持有时回收条目
func (l *Locker) Lock(roomID string) func() {
	l.mu.Lock()
	lk, ok := l.locks[roomID]
	if !ok {
		lk = &roomLock{}
		l.locks[roomID] = lk
	}
	lk.refs++
	l.mu.Unlock()

	lk.Lock()
	return func() {
		lk.Unlock()
		l.mu.Lock()
		lk.refs--
		if lk.refs == 0 {
			delete(l.locks, roomID)
		}
		l.mu.Unlock()
	}
}

// Len 当前持有或等待中的房间数
func (l *Locker) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
