package repayment

import "sync"

// entityLocks hands out one mutex per entity ID, discarding it once no caller holds or waits on
// it.
type entityLocks struct {
	mu    sync.Mutex
	locks map[string]*entityLock
}

type entityLock struct {
	sync.Mutex
	refs int
}

// lock blocks until the entity is free, returning the unlock func.
func (el *entityLocks) lock(id string) (unlock func()) {
	el.mu.Lock()
	if el.locks == nil {
		el.locks = make(map[string]*entityLock)
	}
	l, ok := el.locks[id]
	if !ok {
		l = &entityLock{}
		el.locks[id] = l
	}
	l.refs++
	el.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		el.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(el.locks, id)
		}
		el.mu.Unlock()
	}
}

// size returns the number of live entity locks.
func (el *entityLocks) size() int {
	el.mu.Lock()
	defer el.mu.Unlock()
	return len(el.locks)
}
