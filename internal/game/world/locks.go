package world

import "sync"

// keyedMutex hands out one mutex per key. Entries are reference counted and
// dropped once no caller holds or waits on them.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[visitKey]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[visitKey]*keyLock)}
}

// lock blocks until key is held and returns the matching unlock.
func (k *keyedMutex) lock(key visitKey) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyLock{}
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

func (k *keyedMutex) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
