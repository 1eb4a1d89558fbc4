package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Subscription is a pre-authorized recurring charge against one account.
// Created active; deactivated when the account cannot cover a due charge or
// by explicit cancellation, never reactivated automatically.
type Subscription struct {
	ID        string          `json:"id"`
	AccountID string          `json:"account_id"`
	Amount    decimal.Decimal `json:"amount"`
	Interval  time.Duration   `json:"interval"`
	Active    bool            `json:"active"`
	CreatedAt time.Time       `json:"created_at"`
	NextDueAt time.Time       `json:"next_due_at"`
}

// Due reports whether the subscription should be charged at the given instant.
// A non-positive interval means every settlement tick.
func (s *Subscription) Due(now time.Time) bool {
	if !s.Active {
		return false
	}
	if s.Interval <= 0 {
		return true
	}
	return !now.Before(s.NextDueAt)
}

func (s *Subscription) Advance(now time.Time) {
	if s.Interval > 0 {
		s.NextDueAt = now.Add(s.Interval)
	}
}
