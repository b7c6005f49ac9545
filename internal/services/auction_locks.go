package services

import "sync"

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// AuctionLocks hands out one mutex per auction id. Entries are reference
// counted and removed once nobody holds or waits on them.
type AuctionLocks struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

func NewAuctionLocks() *AuctionLocks {
	return &AuctionLocks{locks: make(map[string]*lockEntry)}
}

// Lock blocks until the auction's critical section is free and returns
// the matching unlock function.
func (l *AuctionLocks) Lock(auctionID string) func() {
	l.mu.Lock()
	entry, ok := l.locks[auctionID]
	if !ok {
		entry = &lockEntry{}
		l.locks[auctionID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()

		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, auctionID)
		}
		l.mu.Unlock()
	}
}

func (l *AuctionLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
