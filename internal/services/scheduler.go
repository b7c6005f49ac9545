package services

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"

	"live-auction/internal/domain"
	"live-auction/pkg/logger"
)

// ExpiryScheduler periodically closes auctions whose deadline has passed.
// Only the instance holding leadership sweeps; closing stays correct
// without it because CloseAuction is idempotent.
type ExpiryScheduler struct {
	cron           *cron.Cron
	spec           string
	auctionMgr     *AuctionManager
	leaderElection domain.LeaderElection
	instanceID     string
	log            logger.Logger
}

func NewExpiryScheduler(spec string, auctionMgr *AuctionManager, leaderElection domain.LeaderElection,
	instanceID string, log logger.Logger) *ExpiryScheduler {
	return &ExpiryScheduler{
		cron:           cron.New(cron.WithSeconds()),
		spec:           spec,
		auctionMgr:     auctionMgr,
		leaderElection: leaderElection,
		instanceID:     instanceID,
		log:            log,
	}
}

func (s *ExpiryScheduler) Start(ctx context.Context) error {
	s.log.Info("Starting expiry scheduler", "spec", s.spec)

	_, err := s.cron.AddFunc(s.spec, func() {
		s.Sweep(ctx)
	})
	if err != nil {
		return fmt.Errorf("schedule expiry sweep: %w", err)
	}

	s.cron.Start()
	return nil
}

// Stop waits for a running sweep to finish.
func (s *ExpiryScheduler) Stop() {
	s.log.Info("Stopping expiry scheduler")
	<-s.cron.Stop().Done()
}

// Sweep runs one expiry pass if this instance is the leader.
func (s *ExpiryScheduler) Sweep(ctx context.Context) {
	isLeader, err := s.leaderElection.IsLeader(ctx, s.instanceID)
	if err != nil {
		s.log.Error("Failed to check leadership", "error", err)
		return
	}
	if !isLeader {
		return
	}

	closed, err := s.auctionMgr.ExpireDue(ctx)
	if err != nil {
		s.log.Error("Expiry sweep failed", "error", err)
		return
	}
	if closed > 0 {
		s.log.Info("Expiry sweep closed auctions", "count", closed)
	}
}
