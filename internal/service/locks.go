package service

import "sync"

// itemLocks hands out one mutex per (group, item). Entries are dropped once
// nobody holds or waits on them.
type itemLocks struct {
	mu    sync.Mutex
	locks map[string]*itemLock
}

type itemLock struct {
	mu   sync.Mutex
	refs int
}

func newItemLocks() *itemLocks {
	return &itemLocks{locks: make(map[string]*itemLock)}
}

func (l *itemLocks) lock(groupID, itemID string) (unlock func()) {
	key := groupID + "\x00" + itemID

	l.mu.Lock()
	entry, ok := l.locks[key]
	if !ok {
		entry = &itemLock{}
		l.locks[key] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, key)
		}
		l.mu.Unlock()
	}
}

func (l *itemLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
