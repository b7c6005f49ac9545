package leader

import (
	"context"

	"live-auction/internal/domain"
)

var _ domain.LeaderElection = Local{}

// Local is used when a single instance runs without Redis; it is always
// the leader.
type Local struct{}

func (Local) BecomeLeader(ctx context.Context, instanceID string) (bool, error) {
	return true, nil
}

func (Local) IsLeader(ctx context.Context, instanceID string) (bool, error) {
	return true, nil
}

func (Local) ReleaseLeadership(ctx context.Context, instanceID string) error {
	return nil
}
