package recurrence

import (
	"fmt"
	"strings"
	"time"
)

// EndTimePolicy decides what a rule's end_time means for daily, weekly and monthly rules.
type EndTimePolicy string

const (
	// EndTimeAnnotate keeps end_time as display metadata; every occurrence fires.
	EndTimeAnnotate EndTimePolicy = "annotate"
	// EndTimeWindow skips an occurrence that was not reached before its window closed.
	EndTimeWindow EndTimePolicy = "window"
)

func ParseEndTimePolicy(s string) (EndTimePolicy, error) {
	switch p := EndTimePolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return EndTimeAnnotate, nil
	case EndTimeAnnotate, EndTimeWindow:
		return p, nil
	default:
		return "", fmt.Errorf("unknown end time policy %q", s)
	}
}

// Missed reports whether occurrence must be skipped at now under policy.
func (s Schedule) Missed(occurrence, now time.Time, policy EndTimePolicy) bool {
	if policy != EndTimeWindow {
		return false
	}
	end, ok := s.WindowEnd(occurrence)
	return ok && now.After(end)
}
