package match

import "sync"

// lockTable hands out one mutex per game id so state transitions for a
// single game are strictly serialized while unrelated games never block
// each other. Entries are created lazily and kept for the process
// lifetime; a finished game's mutex is a few dozen idle bytes.
type lockTable struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newLockTable() *lockTable {
	return &lockTable{locks: make(map[string]*sync.Mutex)}
}

// lock acquires the mutex for id and returns its unlock function.
func (t *lockTable) lock(id string) func() {
	t.mu.Lock()
	l, ok := t.locks[id]
	if !ok {
		l = &sync.Mutex{}
		t.locks[id] = l
	}
	t.mu.Unlock()

	l.Lock()
	return l.Unlock
}
