package entity

import (
	"time"

	"github.com/google/uuid"
)

const RewardKindAdWatch = "ad_watch"

// RewardEvent is a bonus-granting action (e.g. a watched ad).
type RewardEvent struct {
	ID        uuid.UUID `json:"id"`
	UserID    string    `json:"user_id"`
	Kind      string    `json:"kind"`
	Timestamp time.Time `json:"timestamp"`
}

// Subscription is the persisted subscription record for a user.
type Subscription struct {
	UserID    string     `json:"user_id"`
	Active    bool       `json:"active"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	UpdatedAt time.Time  `json:"updated_at"`
}
