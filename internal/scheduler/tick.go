package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/valeriaulyamaeva/recurring-ledger/internal/ledger"
	"github.com/valeriaulyamaeva/recurring-ledger/internal/logger"
	"github.com/valeriaulyamaeva/recurring-ledger/internal/notify"
	"github.com/valeriaulyamaeva/recurring-ledger/models"
)

// TickReport counts what one tick did with the rules it found due.
type TickReport struct {
	Due          int
	Materialized int
	Missed       int // skipped because their window had closed
	Contended    int // claimed elsewhere or claim timed out
	Deactivated  int
	Failed       int
	Released     int64
}

type reporter struct {
	mu sync.Mutex
	r  TickReport
}

func (r *reporter) add(fn func(*TickReport)) {
	r.mu.Lock()
	fn(&r.r)
	r.mu.Unlock()
}

// Tick processes the rules due at the loop's current time, each at most once.
func (l *Loop) Tick(ctx context.Context) TickReport {
	now := l.Now()
	rep := &reporter{}

	released, err := l.repo.ReleaseStaleClaims(ctx, now.Add(-l.cfg.StaleClaimAfter))
	if err != nil {
		l.log.Error().Err(err).Msg("release stale claims")
	}
	rep.r.Released = released
	if released > 0 {
		l.log.Warn().Int64("released", released).Msg("released stale claims")
	}

	due, err := l.repo.FetchDueRules(ctx, now, l.cfg.BatchSize)
	if err != nil {
		l.log.Error().Err(err).Msg("fetch due rules")
		return rep.r
	}
	rep.r.Due = len(due)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.cfg.Workers)
	for _, rule := range due {
		id, userID := rule.ID, rule.UserID
		g.Go(func() error {
			l.process(gctx, id, userID, now, rep)
			return nil
		})
	}
	_ = g.Wait()

	if rep.r.Due > 0 {
		l.log.Info().
			Int("due", rep.r.Due).
			Int("materialized", rep.r.Materialized).
			Int("missed", rep.r.Missed).
			Int("contended", rep.r.Contended).
			Int("deactivated", rep.r.Deactivated).
			Int("failed", rep.r.Failed).
			Msg("tick finished")
	}
	return rep.r
}

func (l *Loop) process(ctx context.Context, ruleID, userID int, now time.Time, rep *reporter) {
	log := l.log.With().Int("rule_id", ruleID).Int("user_id", userID).Logger()
	ctx = logger.WithContext(ctx, log)
	token := uuid.New()

	claimCtx, cancel := context.WithTimeout(ctx, l.cfg.ClaimTimeout)
	ok, err := l.repo.ClaimScheduledTransaction(claimCtx, ruleID, token, now)
	cancel()
	if err != nil || !ok {
		if err != nil {
			log.Debug().Err(err).Msg("claim not acquired")
		}
		rep.add(func(r *TickReport) { r.Contended++ })
		return
	}

	out, err := l.materialize(ctx, ruleID, token, now)
	if err != nil {
		l.fail(ctx, ruleID, userID, token, now, err, rep)
		return
	}

	log = log.With().Time("occurrence", out.Occurrence).Logger()
	ctx = logger.WithContext(ctx, log)
	if out.Skipped {
		rep.add(func(r *TickReport) { r.Missed++ })
		log.Warn().Msg("occurrence window closed, skipped")
		l.notify(ctx, notify.Event{
			Kind: notify.KindOccurrenceSkipped, UserID: userID, RuleID: ruleID,
			Occurrence: out.Occurrence, OccurredAt: now,
		})
	} else {
		rep.add(func(r *TickReport) { r.Materialized++ })
		log.Info().Int("transaction_id", out.Transaction.ID).Msg("occurrence materialized")
	}
	if !out.Active {
		log.Info().Msg("rule exhausted")
	}
}

// materialize runs one unit of work and turns a panic into that rule's error.
func (l *Loop) materialize(ctx context.Context, ruleID int, token uuid.UUID, now time.Time) (out *ledger.Outcome, err error) {
	defer func() {
		if p := recover(); p != nil {
			out, err = nil, fmt.Errorf("panic while materializing: %v", p)
		}
	}()
	err = l.repo.WithTx(ctx, func(tx ledger.Tx) error {
		var err error
		out, err = l.materializer.Materialize(ctx, tx, ruleID, token, now)
		return err
	})
	return out, err
}

func (l *Loop) fail(ctx context.Context, ruleID, userID int, token uuid.UUID, now time.Time, cause error, rep *reporter) {
	log := logger.FromContext(ctx, l.log)
	if errors.Is(cause, models.ErrClaimLost) {
		// Deactivated by the owner mid-flight; nothing left to release.
		rep.add(func(r *TickReport) { r.Contended++ })
		log.Info().Err(cause).Msg("claim lost before commit")
		return
	}

	f := models.RunFailure{
		Reason:      cause.Error(),
		Deactivate:  ledger.IsPermanent(cause),
		MissingRate: errors.Is(cause, ledger.ErrMissingExchangeRate),
	}
	streak, err := l.repo.FailScheduledTransaction(ctx, ruleID, token, f, now)
	if err != nil {
		log.Error().Err(err).AnErr("cause", cause).Msg("record failure")
	}

	switch {
	case f.Deactivate:
		rep.add(func(r *TickReport) { r.Deactivated++ })
		log.Warn().Err(cause).Msg("rule deactivated")
		l.notify(ctx, notify.Event{
			Kind: notify.KindRuleDeactivated, UserID: userID, RuleID: ruleID,
			Reason: cause.Error(), Failures: streak.Consecutive, OccurredAt: now,
		})
	case f.MissingRate:
		rep.add(func(r *TickReport) { r.Failed++ })
		log.Warn().Err(cause).
			Int("failures", streak.Consecutive).
			Int("missing_rate_failures", streak.MissingRate).
			Msg("exchange rate missing, will retry")
		// Only the unbroken run of missing-rate failures counts toward the notice.
		if streak.MissingRate > 0 && streak.MissingRate%l.cfg.MissingRateNotifyAfter == 0 {
			l.notify(ctx, notify.Event{
				Kind: notify.KindExchangeRateMissing, UserID: userID, RuleID: ruleID,
				Reason: cause.Error(), Failures: streak.MissingRate, OccurredAt: now,
			})
		}
	default:
		rep.add(func(r *TickReport) { r.Failed++ })
		log.Error().Err(cause).Int("failures", streak.Consecutive).Msg("materialization failed, will retry")
	}
}

func (l *Loop) notify(ctx context.Context, e notify.Event) {
	if err := l.notifier.Notify(ctx, e); err != nil {
		log := logger.FromContext(ctx, l.log)
		log.Error().Err(err).Str("kind", string(e.Kind)).Msg("notify owner")
	}
}
