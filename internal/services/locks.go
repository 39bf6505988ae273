package services

import "sync"

// roomLocks hands out one mutex per room so events of a room leave in commit order
// while different rooms proceed in parallel.
type roomLocks struct {
	mu    sync.Mutex
	locks map[int]*roomLock
}

type roomLock struct {
	sync.Mutex
	refs int
}

func newRoomLocks() *roomLocks {
	return &roomLocks{locks: make(map[int]*roomLock)}
}

// Lock blocks until roomID is free and returns the matching unlock.
func (l *roomLocks) Lock(roomID int) func() {
	l.mu.Lock()
	lock, ok := l.locks[roomID]
	if !ok {
		lock = &roomLock{}
		l.locks[roomID] = lock
	}
	lock.refs++
	l.mu.Unlock()

	lock.Lock()
	return func() {
		lock.Unlock()
		l.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(l.locks, roomID)
		}
		l.mu.Unlock()
	}
}
