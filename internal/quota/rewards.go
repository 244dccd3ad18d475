package quota

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/pantry-receipts/internal/entity"
)

// ErrRewardCapReached is returned when the window already holds the maximum
// number of bonus events.
var ErrRewardCapReached = errors.New("quota: reward cap reached for current window")

type RewardStore interface {
	RewardCounter
	RecordReward(ctx context.Context, ev entity.RewardEvent) error
}

// Rewards grants bonus events and enforces the per-window cap. The ledger
// only reads these events.
type Rewards struct {
	store  RewardStore
	policy Policy
	now    func() time.Time
}

func NewRewards(store RewardStore, policy Policy, now func() time.Time) *Rewards {
	if now == nil {
		now = time.Now
	}
	return &Rewards{store: store, policy: policy, now: now}
}

func (r *Rewards) Grant(ctx context.Context, userID, kind string) (entity.RewardEvent, error) {
	if kind == "" {
		kind = entity.RewardKindAdWatch
	}
	now := r.now()
	start, end := r.policy.Window(now)
	n, err := r.store.CountRewards(ctx, userID, start, end)
	if err != nil {
		return entity.RewardEvent{}, fmt.Errorf("count rewards: %w", err)
	}
	if n >= r.policy.MaxBonusEvents {
		return entity.RewardEvent{}, ErrRewardCapReached
	}
	ev := entity.RewardEvent{ID: uuid.New(), UserID: userID, Kind: kind, Timestamp: now}
	if err := r.store.RecordReward(ctx, ev); err != nil {
		return entity.RewardEvent{}, fmt.Errorf("record reward: %w", err)
	}
	return ev, nil
}
