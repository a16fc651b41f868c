package scheduler

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/valeriaulyamaeva/recurring-ledger/internal/ledger"
	"github.com/valeriaulyamaeva/recurring-ledger/models"
)

// Repository is the storage the loop needs on top of the ledger's unit of work.
type Repository interface {
	ledger.Store

	// FetchDueRules lists active, unclaimed rules with next_run_at <= asOf,
	// ordered by next_run_at then id.
	FetchDueRules(ctx context.Context, asOf time.Time, limit int) ([]models.ScheduledTransaction, error)
	// ClaimScheduledTransaction reports whether token now owns the rule.
	// At most one of any set of concurrent callers wins.
	ClaimScheduledTransaction(ctx context.Context, id int, token uuid.UUID, now time.Time) (bool, error)
	// FailScheduledTransaction releases the claim, records the failure and
	// returns the rule's failure streaks. With f.Deactivate the rule is also
	// turned off.
	FailScheduledTransaction(ctx context.Context, id int, token uuid.UUID, f models.RunFailure, now time.Time) (models.FailureStreak, error)
	// ReleaseStaleClaims frees claims taken before claimedBefore whose
	// occurrence has no transaction.
	ReleaseStaleClaims(ctx context.Context, claimedBefore time.Time) (int64, error)
}

// Materializer produces the due occurrence of a claimed rule inside tx.
type Materializer interface {
	Materialize(ctx context.Context, tx ledger.Tx, ruleID int, token uuid.UUID, now time.Time) (*ledger.Outcome, error)
}

var _ Materializer = (*ledger.Materializer)(nil)
