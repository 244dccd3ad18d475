package quota

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// State is a user's quota position, derived per request and never stored.
type State struct {
	Tier           Tier      `json:"tier"`
	BaseLimit      int       `json:"baseLimit"`
	BonusEvents    int       `json:"bonusEvents"`
	BonusCredits   int       `json:"bonusCredits"`
	EffectiveLimit int       `json:"effectiveLimit"`
	Used           int       `json:"used"`
	Remaining      int       `json:"remaining"`
	WindowStart    time.Time `json:"windowStart"`
	WindowEnd      time.Time `json:"windowEnd"`
}

type Reservation struct {
	Admitted bool
	State    State
}

// ScanCounter counts recorded scan events for a user in [from, to).
type ScanCounter interface {
	CountScans(ctx context.Context, userID string, from, to time.Time) (int, error)
}

// RewardCounter counts bonus-granting events for a user in [from, to).
type RewardCounter interface {
	CountRewards(ctx context.Context, userID string, from, to time.Time) (int, error)
}

// Ledger computes quota from the persisted event log. It holds no counters
// of its own: admission is a read, recording is an append done by the
// caller, so two concurrent requests may both be admitted before either
// records. That over-admission is accepted.
type Ledger struct {
	scans   ScanCounter
	rewards RewardCounter
	policy  Policy
	now     func() time.Time
	logger  *slog.Logger
}

type Option func(*Ledger)

func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

func NewLedger(scans ScanCounter, rewards RewardCounter, policy Policy, logger *slog.Logger, opts ...Option) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	l := &Ledger{
		scans:   scans,
		rewards: rewards,
		policy:  policy,
		now:     time.Now,
		logger:  logger,
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

func (l *Ledger) Policy() Policy { return l.policy }

// Usage reports the current state without admitting anything.
func (l *Ledger) Usage(ctx context.Context, userID string, tier Tier) (State, error) {
	start, end := l.policy.Window(l.now())

	used, err := l.scans.CountScans(ctx, userID, start, end)
	if err != nil {
		return State{}, fmt.Errorf("quota: count scans: %w", err)
	}
	bonusEvents := 0
	if l.rewards != nil {
		bonusEvents, err = l.rewards.CountRewards(ctx, userID, start, end)
		if err != nil {
			return State{}, fmt.Errorf("quota: count rewards: %w", err)
		}
	}

	base := l.policy.BaseLimit(tier)
	credits := l.policy.BonusCredits(bonusEvents)
	effective := base + credits
	remaining := effective - used
	if remaining < 0 {
		remaining = 0
	}
	return State{
		Tier:           tier,
		BaseLimit:      base,
		BonusEvents:    bonusEvents,
		BonusCredits:   credits,
		EffectiveLimit: effective,
		Used:           used,
		Remaining:      remaining,
		WindowStart:    start,
		WindowEnd:      end,
	}, nil
}

// CheckAndReserve admits the request iff used < effectiveLimit. Admission
// does not record usage.
func (l *Ledger) CheckAndReserve(ctx context.Context, userID string, tier Tier) (Reservation, error) {
	st, err := l.Usage(ctx, userID, tier)
	if err != nil {
		return Reservation{}, err
	}
	admitted := st.Used < st.EffectiveLimit
	if !admitted {
		l.logger.Info("quota.reserve.rejected",
			"user_id", userID,
			"tier", tier,
			"used", st.Used,
			"effective_limit", st.EffectiveLimit,
		)
	} else {
		l.logger.Debug("quota.reserve.admitted", "user_id", userID, "tier", tier, "used", st.Used, "effective_limit", st.EffectiveLimit)
	}
	return Reservation{Admitted: admitted, State: st}, nil
}
