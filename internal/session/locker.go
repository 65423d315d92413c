package session

import "sync"

// Locker serializes requests that share a session id. Entries are removed
// once no request holds or waits for them.
type Locker struct {
	mu    sync.Mutex
	locks map[string]*refLock
}

type refLock struct {
	mu   sync.Mutex
	refs int
}

func NewLocker() *Locker {
	return &Locker{locks: make(map[string]*refLock)}
}

// Lock blocks until the session is free and returns its unlock func.
func (l *Locker) Lock(sessionID string) (unlock func()) {
	l.mu.Lock()
	lk, ok := l.locks[sessionID]
	if !ok {
		lk = &refLock{}
		l.locks[sessionID] = lk
	}
	lk.refs++
	l.mu.Unlock()

	lk.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			lk.mu.Unlock()
			l.mu.Lock()
			lk.refs--
			if lk.refs == 0 {
				delete(l.locks, sessionID)
			}
			l.mu.Unlock()
		})
	}
}

// Active returns the number of sessions currently locked or waited on.
func (l *Locker) Active() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
