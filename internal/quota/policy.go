package quota

import (
	"fmt"
	"time"
)

type Tier string

const (
	TierFree    Tier = "free"
	TierPremium Tier = "premium"
)

// Policy fixes the limits and the window boundary. The window is the
// calendar day in Location, applied to scans, rewards and reporting alike.
type Policy struct {
	FreeDailyLimit    int
	PremiumDailyLimit int
	BonusCredit       int
	MaxBonusEvents    int
	Location          *time.Location
}

func DefaultPolicy() Policy {
	loc, err := time.LoadLocation("Asia/Seoul")
	if err != nil {
		loc = time.FixedZone("KST", 9*60*60)
	}
	return Policy{
		FreeDailyLimit:    5,
		PremiumDailyLimit: 50,
		BonusCredit:       1,
		MaxBonusEvents:    3,
		Location:          loc,
	}
}

func (p Policy) Validate() error {
	if p.FreeDailyLimit < 0 || p.PremiumDailyLimit < 0 {
		return fmt.Errorf("quota: limits must be non-negative")
	}
	if p.BonusCredit < 0 || p.MaxBonusEvents < 0 {
		return fmt.Errorf("quota: bonus settings must be non-negative")
	}
	return nil
}

func (p Policy) BaseLimit(t Tier) int {
	if t == TierPremium {
		return p.PremiumDailyLimit
	}
	return p.FreeDailyLimit
}

// Window returns [start of day, start of next day) around now.
func (p Policy) Window(now time.Time) (time.Time, time.Time) {
	loc := p.Location
	if loc == nil {
		loc = time.UTC
	}
	t := now.In(loc)
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1)
}

// BonusCredits applies the per-window event cap.
func (p Policy) BonusCredits(events int) int {
	if events > p.MaxBonusEvents {
		events = p.MaxBonusEvents
	}
	if events < 0 {
		events = 0
	}
	return events * p.BonusCredit
}
