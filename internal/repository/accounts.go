package repository

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/pantry-receipts/internal/entity"
)

const (
	tableRewardEvents  = "reward_events"
	tableSubscriptions = "subscriptions"
)

type RewardRepository interface {
	RecordReward(ctx context.Context, ev entity.RewardEvent) error
	CountRewards(ctx context.Context, userID string, from, to time.Time) (int, error)
}

type SubscriptionRepository interface {
	GetSubscription(ctx context.Context, userID string) (*entity.Subscription, error)
	SaveSubscription(ctx context.Context, sub entity.Subscription) error
}

type rewardRepository struct {
	db     *DB
	logger *slog.Logger
}

func NewRewardRepository(db *DB, logger *slog.Logger) RewardRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &rewardRepository{db: db, logger: logger}
}

func (r *rewardRepository) RecordReward(ctx context.Context, ev entity.RewardEvent) error {
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	q, args := r.db.builder().Insert(tableRewardEvents).
		Columns("id", "user_id", "kind", "ts_ms").
		Values(ev.ID.String(), ev.UserID, ev.Kind, toMillis(ev.Timestamp)).
		Query()
	if err := r.db.exec(ctx, q, args); err != nil {
		r.logger.Error("repository.reward.record_failed", "user_id", ev.UserID, "error", err)
		return fmt.Errorf("record reward: %w", err)
	}
	return nil
}

func (r *rewardRepository) CountRewards(ctx context.Context, userID string, from, to time.Time) (int, error) {
	sel := r.db.builder().Select(entsql.Count("*")).
		From(r.db.builder().Table(tableRewardEvents)).
		Where(inWindow(userID, from, to))
	n, err := r.db.count(ctx, sel)
	if err != nil {
		return 0, fmt.Errorf("count rewards: %w", err)
	}
	return n, nil
}

type subscriptionRepository struct {
	db     *DB
	logger *slog.Logger
}

func NewSubscriptionRepository(db *DB, logger *slog.Logger) SubscriptionRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &subscriptionRepository{db: db, logger: logger}
}

// GetSubscription returns (nil, nil) when the user has no record.
func (r *subscriptionRepository) GetSubscription(ctx context.Context, userID string) (*entity.Subscription, error) {
	q, args := r.db.builder().
		Select("user_id", "active", "expires_at_ms", "updated_at_ms").
		From(r.db.builder().Table(tableSubscriptions)).
		Where(entsql.EQ("user_id", userID)).
		Limit(1).
		Query()
	rows, err := r.db.query(ctx, q, args)
	if err != nil {
		return nil, fmt.Errorf("get subscription: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	var (
		sub       entity.Subscription
		expires   entsql.NullInt64
		updatedMs int64
	)
	if err := rows.Scan(&sub.UserID, &sub.Active, &expires, &updatedMs); err != nil {
		return nil, fmt.Errorf("scan subscription: %w", err)
	}
	if expires.Valid {
		t := fromMillis(expires.Int64)
		sub.ExpiresAt = &t
	}
	sub.UpdatedAt = fromMillis(updatedMs)
	return &sub, nil
}

func (r *subscriptionRepository) SaveSubscription(ctx context.Context, sub entity.Subscription) error {
	var expires any
	if sub.ExpiresAt != nil {
		expires = toMillis(*sub.ExpiresAt)
	}
	if sub.UpdatedAt.IsZero() {
		sub.UpdatedAt = time.Now()
	}
	q, args := r.db.builder().Insert(tableSubscriptions).
		Columns("user_id", "active", "expires_at_ms", "updated_at_ms").
		Values(sub.UserID, sub.Active, expires, toMillis(sub.UpdatedAt)).
		OnConflict(
			entsql.ConflictColumns("user_id"),
			entsql.ResolveWithNewValues(),
		).
		Query()
	if err := r.db.exec(ctx, q, args); err != nil {
		r.logger.Error("repository.subscription.save_failed", "user_id", sub.UserID, "error", err)
		return fmt.Errorf("save subscription: %w", err)
	}
	return nil
}
