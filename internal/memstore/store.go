// Package memstore is an in-process implementation of the ledger and
// scheduler storage contracts. Rows live in slices indexed by id-1 and every
// unit of work runs under a single lock with an undo log.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/valeriaulyamaeva/recurring-ledger/internal/ledger"
	"github.com/valeriaulyamaeva/recurring-ledger/models"
)

type rateKey struct {
	userID   int
	currency string
}

type occurrenceKey struct {
	ruleID int
	at     int64
}

type Store struct {
	lock chan struct{}

	currencies    map[string]models.SupportedCurrency
	settings      map[int]models.UserSettings
	rates         map[rateKey]models.ExchangeRate
	accountTypes  []models.AccountType
	accounts      []models.Account
	categories    []models.Category
	transactions  []models.Transaction
	rules         []models.ScheduledTransaction
	notifications []models.Notification
	occurrences   map[occurrenceKey]int
}

func New() *Store {
	s := &Store{
		lock:        make(chan struct{}, 1),
		currencies:  make(map[string]models.SupportedCurrency),
		settings:    make(map[int]models.UserSettings),
		rates:       make(map[rateKey]models.ExchangeRate),
		occurrences: make(map[occurrenceKey]int),
	}
	for _, c := range models.DefaultCurrencies {
		s.currencies[c.Code] = c
	}
	return s
}

// acquire waits for the store lock until ctx is done.
func (s *Store) acquire(ctx context.Context) error {
	select {
	case s.lock <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Store) release() { <-s.lock }

// WithTx runs fn as one unit of work. An error or a panic in fn undoes every
// write fn made.
func (s *Store) WithTx(ctx context.Context, fn func(tx ledger.Tx) error) error {
	if err := s.acquire(ctx); err != nil {
		return fmt.Errorf("WithTx: %w", err)
	}
	defer s.release()

	t := &tx{s: s}
	committed := false
	defer func() {
		if !committed {
			t.rollback()
		}
	}()
	if err := fn(t); err != nil {
		return err
	}
	committed = true
	return nil
}

// FetchDueRules lists active, unclaimed rules whose cursor is not after asOf,
// oldest cursor first.
func (s *Store) FetchDueRules(ctx context.Context, asOf time.Time, limit int) ([]models.ScheduledTransaction, error) {
	if err := s.acquire(ctx); err != nil {
		return nil, err
	}
	defer s.release()

	var due []models.ScheduledTransaction
	for _, r := range s.rules {
		if r.IsActive && r.ClaimToken == nil && !r.NextRunAt.After(asOf) {
			due = append(due, cloneRule(r))
		}
	}
	sort.Slice(due, func(i, j int) bool {
		if !due[i].NextRunAt.Equal(due[j].NextRunAt) {
			return due[i].NextRunAt.Before(due[j].NextRunAt)
		}
		return due[i].ID < due[j].ID
	})
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

// ClaimScheduledTransaction gives token exclusive ownership of a due rule.
// At most one concurrent caller gets true.
func (s *Store) ClaimScheduledTransaction(ctx context.Context, id int, token uuid.UUID, now time.Time) (bool, error) {
	if err := s.acquire(ctx); err != nil {
		return false, err
	}
	defer s.release()

	r := s.rule(id)
	if r == nil || !r.IsActive || r.ClaimToken != nil || r.NextRunAt.After(now) {
		return false, nil
	}
	tok, at := token, now
	r.ClaimToken, r.ClaimedAt = &tok, &at
	r.Version++
	return true, nil
}

// FailScheduledTransaction releases a claim after a failed materialization and
// returns the failure streaks of the rule.
func (s *Store) FailScheduledTransaction(ctx context.Context, id int, token uuid.UUID, f models.RunFailure, now time.Time) (models.FailureStreak, error) {
	if err := s.acquire(ctx); err != nil {
		return models.FailureStreak{}, err
	}
	defer s.release()

	r := s.rule(id)
	if r == nil {
		return models.FailureStreak{}, fmt.Errorf("scheduled transaction %d: %w", id, models.ErrNotFound)
	}
	if r.ClaimToken == nil || *r.ClaimToken != token {
		return models.FailureStreak{}, fmt.Errorf("scheduled transaction %d: %w", id, models.ErrClaimLost)
	}
	at := now
	r.ClaimToken, r.ClaimedAt = nil, nil
	r.LastError, r.LastErrorAt = f.Reason, &at
	r.ConsecutiveFailures++
	if f.MissingRate {
		r.MissingRateFailures++
	} else {
		r.MissingRateFailures = 0
	}
	if f.Deactivate {
		r.IsActive = false
	}
	r.UpdatedAt = now
	r.Version++
	return models.FailureStreak{Consecutive: r.ConsecutiveFailures, MissingRate: r.MissingRateFailures}, nil
}

// ReleaseStaleClaims frees claims taken before claimedBefore whose occurrence
// never got a transaction.
func (s *Store) ReleaseStaleClaims(ctx context.Context, claimedBefore time.Time) (int64, error) {
	if err := s.acquire(ctx); err != nil {
		return 0, err
	}
	defer s.release()

	var released int64
	for i := range s.rules {
		r := &s.rules[i]
		if r.ClaimToken == nil || r.ClaimedAt == nil || !r.ClaimedAt.Before(claimedBefore) {
			continue
		}
		if _, done := s.occurrences[occurrenceKey{r.ID, r.NextRunAt.UnixNano()}]; done {
			continue
		}
		r.ClaimToken, r.ClaimedAt = nil, nil
		r.Version++
		released++
	}
	return released, nil
}

// InsertNotification stores n outside of any unit of work.
func (s *Store) InsertNotification(ctx context.Context, n *models.Notification) error {
	return s.WithTx(ctx, func(tx ledger.Tx) error {
		return tx.InsertNotification(ctx, n)
	})
}

func (s *Store) rule(id int) *models.ScheduledTransaction {
	if id <= 0 || id > len(s.rules) {
		return nil
	}
	return &s.rules[id-1]
}

func (s *Store) account(id int) *models.Account {
	if id <= 0 || id > len(s.accounts) {
		return nil
	}
	return &s.accounts[id-1]
}

func (s *Store) category(id int) *models.Category {
	if id <= 0 || id > len(s.categories) {
		return nil
	}
	return &s.categories[id-1]
}

func cloneRule(r models.ScheduledTransaction) models.ScheduledTransaction {
	if r.EndDate != nil {
		v := *r.EndDate
		r.EndDate = &v
	}
	if r.EndTime != nil {
		v := *r.EndTime
		r.EndTime = &v
	}
	if r.CategoryID != nil {
		v := *r.CategoryID
		r.CategoryID = &v
	}
	if r.LastRunAt != nil {
		v := *r.LastRunAt
		r.LastRunAt = &v
	}
	if r.LastErrorAt != nil {
		v := *r.LastErrorAt
		r.LastErrorAt = &v
	}
	if r.ClaimToken != nil {
		v := *r.ClaimToken
		r.ClaimToken = &v
	}
	if r.ClaimedAt != nil {
		v := *r.ClaimedAt
		r.ClaimedAt = &v
	}
	return r
}

func cloneTransaction(t models.Transaction) models.Transaction {
	if t.CategoryID != nil {
		v := *t.CategoryID
		t.CategoryID = &v
	}
	if t.ScheduledTransactionID != nil {
		v := *t.ScheduledTransactionID
		t.ScheduledTransactionID = &v
	}
	if t.OccurrenceAt != nil {
		v := *t.OccurrenceAt
		t.OccurrenceAt = &v
	}
	return t
}
