package order

import "sync"

// userLock is one per-user mutex with a reference count so idle entries can
// be dropped from the map.
type userLock struct {
	mu   sync.Mutex
	refs int
}

// keyedMutex serializes the check-then-commit sequence per user. Two
// concurrent purchases by the same user must not both read the ledger before
// either commits; purchases by different users proceed in parallel.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[int64]*userLock
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[int64]*userLock)}
}

// lock acquires the mutex for key and returns the matching unlock func.
func (k *keyedMutex) lock(key int64) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &userLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
