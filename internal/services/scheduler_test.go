package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"live-auction/internal/domain"
	"live-auction/internal/infrastructure/leader"
	"live-auction/pkg/logger"
)

type staticLeader struct {
	leader bool
	err    error
}

func (s staticLeader) BecomeLeader(ctx context.Context, instanceID string) (bool, error) {
	return s.leader, s.err
}

func (s staticLeader) IsLeader(ctx context.Context, instanceID string) (bool, error) {
	return s.leader, s.err
}

func (s staticLeader) ReleaseLeadership(ctx context.Context, instanceID string) error {
	return nil
}

func TestExpiryScheduler_Sweep(t *testing.T) {
	tests := []struct {
		name         string
		election     domain.LeaderElection
		expectClosed bool
	}{
		{"leader closes due auctions", leader.Local{}, true},
		{"follower does nothing", staticLeader{leader: false}, false},
		{"election error skips sweep", staticLeader{err: errors.New("redis down")}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			auction := f.createAuction(t, "100")
			f.clock.Advance(time.Minute)

			scheduler := NewExpiryScheduler("@every 1s", f.manager, tt.election, "instance-1", logger.NewNop())
			scheduler.Sweep(context.Background())

			got, err := f.store.GetAuction(context.Background(), auction.ID)
			require.NoError(t, err)
			require.Equal(t, tt.expectClosed, got.IsClosed())
		})
	}
}

func TestExpiryScheduler_StartRunsSweeps(t *testing.T) {
	f := newFixture(t)
	auction := f.createAuction(t, "100")
	f.clock.Advance(time.Minute)

	scheduler := NewExpiryScheduler("@every 1s", f.manager, leader.Local{}, "instance-1", logger.NewNop())
	require.NoError(t, scheduler.Start(context.Background()))
	defer scheduler.Stop()

	require.Eventually(t, func() bool {
		got, err := f.store.GetAuction(context.Background(), auction.ID)
		return err == nil && got.IsClosed()
	}, 3*time.Second, 20*time.Millisecond)
	require.Len(t, f.publisher.ofType(domain.EventClosed), 1)
}

func TestExpiryScheduler_InvalidSpec(t *testing.T) {
	f := newFixture(t)
	scheduler := NewExpiryScheduler("every now and then", f.manager, leader.Local{}, "instance-1", logger.NewNop())
	require.Error(t, scheduler.Start(context.Background()))
}
