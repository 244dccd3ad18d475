package entity

import (
	"time"

	"github.com/google/uuid"
)

// ScanMode names the stage that produced the terminal outcome of a scan.
type ScanMode string

const (
	ModeVision        ScanMode = "vision"
	ModeAssisted      ScanMode = "assisted"
	ModeDeterministic ScanMode = "deterministic"
)

// ScanOutcome is the terminal classification recorded alongside a scan.
type ScanOutcome string

const (
	OutcomeOK          ScanOutcome = "ok"
	OutcomeEmpty       ScanOutcome = "empty"
	OutcomeNotReceipt  ScanOutcome = "not_receipt"
	OutcomeUnreadable  ScanOutcome = "unreadable"
	OutcomeNoFoodItems ScanOutcome = "no_food_items"
)

// ScanEvent is the immutable audit/usage record written once per accepted scan.
type ScanEvent struct {
	ID        uuid.UUID       `json:"id"`
	UserID    string          `json:"user_id"`
	Timestamp time.Time       `json:"timestamp"`
	Mode      ScanMode        `json:"mode"`
	Outcome   ScanOutcome     `json:"outcome"`
	RawText   *string         `json:"raw_text,omitempty"`
	Items     []ExtractedItem `json:"items"`
}
