// Package recurrence computes occurrence timestamps of scheduled transactions.
// Everything here is pure: no storage access and no system clock.
package recurrence

import (
	"fmt"
	"time"

	"github.com/valeriaulyamaeva/recurring-ledger/models"
)

// Schedule is the part of a rule that decides when it fires.
type Schedule struct {
	Frequency models.Frequency
	StartDate time.Time
	EndDate   *time.Time
	StartTime models.TimeOfDay
	EndTime   *models.TimeOfDay
	Location  *time.Location
}

func FromRule(r *models.ScheduledTransaction) (Schedule, error) {
	if !r.Frequency.Valid() {
		return Schedule{}, fmt.Errorf("%w: %q", models.ErrInvalidFrequency, r.Frequency)
	}
	loc, err := r.Location()
	if err != nil {
		return Schedule{}, err
	}
	return Schedule{
		Frequency: r.Frequency,
		StartDate: r.StartDate,
		EndDate:   r.EndDate,
		StartTime: r.StartTime,
		EndTime:   r.EndTime,
		Location:  loc,
	}, nil
}

func (s Schedule) loc() *time.Location {
	if s.Location == nil {
		return time.UTC
	}
	return s.Location
}

// First returns the first occurrence: the start date at the start time.
func (s Schedule) First() (time.Time, bool) {
	return s.at(models.DateOf(s.StartDate))
}

// Next returns the occurrence following from, which is normally the previous
// occurrence. It returns false once the rule is exhausted.
func (s Schedule) Next(from time.Time) (time.Time, bool) {
	first, ok := s.First()
	if !ok {
		return time.Time{}, false
	}
	if from.Before(first) {
		return first, true
	}

	prev := models.DateOf(from.In(s.loc()))
	switch s.Frequency {
	case models.FrequencyDaily:
		return s.at(prev.AddDate(0, 0, 1))
	case models.FrequencyWeekly:
		return s.at(prev.AddDate(0, 0, 7))
	case models.FrequencyMonthly:
		return s.at(addMonthClamped(prev, s.StartDate.Day()))
	default:
		// once
		return time.Time{}, false
	}
}

// Upcoming lists up to n occurrences strictly after from.
func (s Schedule) Upcoming(from time.Time, n int) []time.Time {
	var out []time.Time
	cur := from
	for len(out) < n {
		next, ok := s.Next(cur)
		if !ok || !next.After(cur) {
			break
		}
		out = append(out, next)
		cur = next
	}
	return out
}

// WindowEnd returns the end of the [start_time, end_time] window on the local
// date of occurrence, when the rule has an end time.
func (s Schedule) WindowEnd(occurrence time.Time) (time.Time, bool) {
	if s.EndTime == nil {
		return time.Time{}, false
	}
	y, m, d := occurrence.In(s.loc()).Date()
	return s.EndTime.On(y, m, d, s.loc()), true
}

// at places the start time on date, or reports exhaustion past the end date.
func (s Schedule) at(date time.Time) (time.Time, bool) {
	if s.EndDate != nil && date.After(models.DateOf(*s.EndDate)) {
		return time.Time{}, false
	}
	y, m, d := date.Date()
	return s.StartTime.On(y, m, d, s.loc()), true
}

// addMonthClamped moves date to the next month keeping anchorDay, or the last
// day of that month when it is shorter.
func addMonthClamped(date time.Time, anchorDay int) time.Time {
	y, m, _ := date.Date()
	firstOfNext := time.Date(y, m+1, 1, 0, 0, 0, 0, time.UTC)
	last := daysIn(firstOfNext.Year(), firstOfNext.Month())
	day := anchorDay
	if day > last {
		day = last
	}
	return time.Date(firstOfNext.Year(), firstOfNext.Month(), day, 0, 0, 0, 0, time.UTC)
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
