package services

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAuctionLocks_SerializesSameAuction(t *testing.T) {
	locks := NewAuctionLocks()

	var (
		wg      sync.WaitGroup
		inside  int
		maxSeen int
		mu      sync.Mutex
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.Lock("auction_1")
			defer unlock()

			mu.Lock()
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			inside--
			mu.Unlock()
		}()
	}
	wg.Wait()

	require.Equal(t, 1, maxSeen)
	require.Equal(t, 0, locks.size())
}

func TestAuctionLocks_IndependentAuctions(t *testing.T) {
	locks := NewAuctionLocks()

	unlockA := locks.Lock("auction_a")
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlock := locks.Lock("auction_b")
		unlock()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on auction_b blocked behind auction_a")
	}
	require.Equal(t, 1, locks.size())
}
