package models

import (
	"fmt"
	"time"
	_ "time/tzdata"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Frequency string

const (
	FrequencyOnce    Frequency = "once"
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
)

func (f Frequency) Valid() bool {
	switch f {
	case FrequencyOnce, FrequencyDaily, FrequencyWeekly, FrequencyMonthly:
		return true
	}
	return false
}

// ScheduledTransaction is a recurrence rule together with its execution cursor.
// StartDate and EndDate only carry a calendar date; they are interpreted in Timezone.
type ScheduledTransaction struct {
	ID          int             `json:"id" db:"id"`
	UserID      int             `json:"user_id" db:"user_id"`
	Legs        Direction       `json:"legs"`
	Amount      decimal.Decimal `json:"amount" db:"amount"`
	Currency    string          `json:"currency" db:"currency"`
	Description string          `json:"description" db:"description"`
	CategoryID  *int            `json:"category_id,omitempty" db:"category_id"`

	Frequency Frequency  `json:"frequency" db:"frequency"`
	StartDate time.Time  `json:"start_date" db:"start_date"`
	EndDate   *time.Time `json:"end_date,omitempty" db:"end_date"`
	StartTime TimeOfDay  `json:"start_time" db:"start_time"`
	EndTime   *TimeOfDay `json:"end_time,omitempty" db:"end_time"`
	Timezone  string     `json:"timezone" db:"timezone"`

	NextRunAt time.Time  `json:"next_run_at" db:"next_run_at"`
	IsActive  bool       `json:"is_active" db:"is_active"`
	LastRunAt *time.Time `json:"last_run_at,omitempty" db:"last_run_at"`

	LastError           string     `json:"last_error,omitempty" db:"last_error"`
	LastErrorAt         *time.Time `json:"last_error_at,omitempty" db:"last_error_at"`
	ConsecutiveFailures int        `json:"consecutive_failures" db:"consecutive_failures"`
	MissingRateFailures int        `json:"missing_rate_failures" db:"missing_rate_failures"`

	ClaimToken *uuid.UUID `json:"-" db:"claim_token"`
	ClaimedAt  *time.Time `json:"-" db:"claimed_at"`
	Version    int        `json:"-" db:"version"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// RunFailure describes why a claimed run did not commit.
type RunFailure struct {
	Reason      string
	Deactivate  bool
	MissingRate bool
}

// FailureStreak is what a rule has accumulated since its last successful run.
// MissingRate only counts the failures in a row caused by an absent exchange
// rate; any other failure resets it.
type FailureStreak struct {
	Consecutive int
	MissingRate int
}

// Validate rejects rule definitions that must never reach the scheduler.
func (r *ScheduledTransaction) Validate() error {
	if r.UserID <= 0 {
		return ErrMissingUser
	}
	if r.Legs.IsZero() {
		return fmt.Errorf("%w: scheduled transaction has no accounts", ErrInvalidDirection)
	}
	if !r.Amount.IsPositive() || !RoundAmount(r.Amount).IsPositive() {
		return ErrNonPositiveAmount
	}
	if len(NormalizeCurrency(r.Currency)) != 3 {
		return fmt.Errorf("%w: %q", ErrUnsupportedCurrency, r.Currency)
	}
	if !r.Frequency.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidFrequency, r.Frequency)
	}
	if r.StartDate.IsZero() {
		return fmt.Errorf("%w: start date is required", ErrEndBeforeStart)
	}
	if r.EndDate != nil && DateOf(*r.EndDate).Before(DateOf(r.StartDate)) {
		return ErrEndBeforeStart
	}
	if !r.StartTime.Valid() {
		return fmt.Errorf("%w: start time %s", ErrInvalidTimeOfDay, r.StartTime)
	}
	if r.EndTime != nil {
		if !r.EndTime.Valid() {
			return fmt.Errorf("%w: end time %s", ErrInvalidTimeOfDay, r.EndTime)
		}
		if !r.StartTime.Before(*r.EndTime) {
			return ErrInvalidTimeWindow
		}
	}
	if _, err := time.LoadLocation(r.Timezone); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidTimezone, r.Timezone)
	}
	return nil
}

// Location returns the zone all occurrences of the rule are computed in.
func (r *ScheduledTransaction) Location() (*time.Location, error) {
	if r.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(r.Timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTimezone, r.Timezone)
	}
	return loc, nil
}

// DateOf drops the clock part of t, keeping the calendar date t has in its own zone.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
