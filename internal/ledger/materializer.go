package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/valeriaulyamaeva/recurring-ledger/internal/recurrence"
	"github.com/valeriaulyamaeva/recurring-ledger/models"
)

// Outcome describes what a materialization committed.
type Outcome struct {
	Rule        *models.ScheduledTransaction
	Occurrence  time.Time
	Transaction *models.Transaction // nil when the occurrence was skipped
	Skipped     bool
	Next        time.Time
	Active      bool
}

// Materializer turns the due occurrence of a claimed rule into a transaction.
type Materializer struct {
	EndTimePolicy recurrence.EndTimePolicy
}

func NewMaterializer(policy recurrence.EndTimePolicy) *Materializer {
	return &Materializer{EndTimePolicy: policy}
}

// Materialize runs inside tx. The transaction insert, the balance updates and
// the cursor advance are all written through tx, so they share its fate.
func (m *Materializer) Materialize(ctx context.Context, tx Tx, ruleID int, token uuid.UUID, now time.Time) (*Outcome, error) {
	rule, err := claimedRule(ctx, tx, ruleID, token)
	if err != nil {
		return nil, err
	}
	if err := rule.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}
	schedule, err := recurrence.FromRule(rule)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}

	occurrence := rule.NextRunAt
	out := &Outcome{Rule: rule, Occurrence: occurrence}
	out.Next, out.Active = schedule.Next(occurrence)
	if !out.Active {
		out.Next = occurrence
	}

	if schedule.Missed(occurrence, now, m.EndTimePolicy) {
		out.Skipped = true
	} else {
		t, err := m.build(ctx, tx, rule, occurrence)
		if err != nil {
			return nil, err
		}
		out.Transaction = t
	}

	if err := tx.AdvanceScheduledTransaction(ctx, rule.ID, token, out.Next, out.Active, now); err != nil {
		return nil, fmt.Errorf("Materialize: advance rule %d: %w", rule.ID, err)
	}
	return out, nil
}

func (m *Materializer) build(ctx context.Context, tx Tx, rule *models.ScheduledTransaction, occurrence time.Time) (*models.Transaction, error) {
	src, dst, err := resolveLegs(ctx, tx, rule.UserID, rule.Legs, models.NormalizeCurrency(rule.Currency), rule.CategoryID)
	if err != nil {
		return nil, err
	}

	t, err := models.NewTransaction(rule.UserID, rule.Legs, rule.Amount, rule.Currency, occurrence)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}
	ruleID, at := rule.ID, occurrence
	t.CategoryID = rule.CategoryID
	t.Description = rule.Description
	t.ScheduledTransactionID = &ruleID
	t.OccurrenceAt = &at

	if err := post(ctx, tx, t, src, dst); err != nil {
		return nil, err
	}
	return t, nil
}
