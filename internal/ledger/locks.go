package ledger

import "sync"

// accountLocks hands out one mutex per account id. Every balance or lot
// mutation on an account happens under its lock, whatever the origin:
// interactive request, subscription settlement, or auto-invest tick.
type accountLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newAccountLocks() *accountLocks {
	return &accountLocks{locks: make(map[string]*sync.Mutex)}
}

func (l *accountLocks) get(accountID string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.locks[accountID]; !exists {
		l.locks[accountID] = &sync.Mutex{}
	}
	return l.locks[accountID]
}

// lockPair acquires both account locks in ascending id order so two opposing
// transfers between the same accounts cannot deadlock. Equal ids share one
// mutex, which is locked once. The returned func releases what was taken.
func (l *accountLocks) lockPair(a, b string) func() {
	if a == b {
		mu := l.get(a)
		mu.Lock()
		return mu.Unlock
	}

	first, second := l.get(a), l.get(b)
	if a > b {
		first, second = second, first
	}
	first.Lock()
	second.Lock()
	return func() {
		second.Unlock()
		first.Unlock()
	}
}
