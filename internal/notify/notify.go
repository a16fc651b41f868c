// Package notify tells rule owners about things the scheduler did on its own.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/valeriaulyamaeva/recurring-ledger/internal/ledger"
	"github.com/valeriaulyamaeva/recurring-ledger/models"
)

type Kind string

const (
	KindRuleDeactivated     Kind = "rule_deactivated"
	KindExchangeRateMissing Kind = "exchange_rate_missing"
	KindOccurrenceSkipped   Kind = "occurrence_skipped"
)

type Event struct {
	Kind       Kind      `json:"kind"`
	UserID     int       `json:"user_id"`
	RuleID     int       `json:"rule_id"`
	Reason     string    `json:"reason,omitempty"`
	Failures   int       `json:"failures,omitempty"`
	Occurrence time.Time `json:"occurrence,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Message renders the event for the owner's inbox.
func (e Event) Message() string {
	switch e.Kind {
	case KindRuleDeactivated:
		return fmt.Sprintf("Scheduled transaction #%d was turned off: %s", e.RuleID, e.Reason)
	case KindExchangeRateMissing:
		return fmt.Sprintf("Scheduled transaction #%d could not run %d times: %s", e.RuleID, e.Failures, e.Reason)
	case KindOccurrenceSkipped:
		return fmt.Sprintf("Scheduled transaction #%d skipped the run due %s", e.RuleID, e.Occurrence.Format(time.RFC3339))
	default:
		return fmt.Sprintf("Scheduled transaction #%d: %s", e.RuleID, e.Kind)
	}
}

type Notifier interface {
	Notify(ctx context.Context, e Event) error
}

// LogNotifier only writes the event to the log.
type LogNotifier struct {
	Log zerolog.Logger
}

func (n LogNotifier) Notify(_ context.Context, e Event) error {
	n.Log.Warn().
		Str("kind", string(e.Kind)).
		Int("user_id", e.UserID).
		Int("rule_id", e.RuleID).
		Int("failures", e.Failures).
		Str("reason", e.Reason).
		Msg(e.Message())
	return nil
}

// StoreNotifier saves the event as a notification of the rule owner.
type StoreNotifier struct {
	Store ledger.Store
}

func (n StoreNotifier) Notify(ctx context.Context, e Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("StoreNotifier.Notify: marshal: %w", err)
	}
	note := &models.Notification{
		UserID:    e.UserID,
		Message:   e.Message(),
		Payload:   payload,
		CreatedAt: e.OccurredAt,
	}
	return n.Store.WithTx(ctx, func(tx ledger.Tx) error {
		return tx.InsertNotification(ctx, note)
	})
}

// Multi delivers to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, e Event) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
