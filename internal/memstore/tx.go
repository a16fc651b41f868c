package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/valeriaulyamaeva/recurring-ledger/internal/ledger"
	"github.com/valeriaulyamaeva/recurring-ledger/models"
)

var _ ledger.Tx = (*tx)(nil)

// tx writes straight into the store and remembers how to undo each write.
type tx struct {
	s    *Store
	undo []func()
}

func (t *tx) onRollback(fn func()) { t.undo = append(t.undo, fn) }

func (t *tx) rollback() {
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}

func notFound(entity string, id any) error {
	return fmt.Errorf("%s %v: %w", entity, id, models.ErrNotFound)
}

func (t *tx) CurrencySupported(_ context.Context, code string) (bool, error) {
	_, ok := t.s.currencies[code]
	return ok, nil
}

func (t *tx) ListCurrencies(_ context.Context) ([]models.SupportedCurrency, error) {
	out := make([]models.SupportedCurrency, 0, len(t.s.currencies))
	for _, c := range t.s.currencies {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (t *tx) GetUserSettings(_ context.Context, userID int) (*models.UserSettings, error) {
	if s, ok := t.s.settings[userID]; ok {
		return &s, nil
	}
	return models.DefaultUserSettings(userID), nil
}

func (t *tx) UpsertUserSettings(_ context.Context, s *models.UserSettings) error {
	prev, existed := t.s.settings[s.UserID]
	t.s.settings[s.UserID] = *s
	t.onRollback(func() {
		if existed {
			t.s.settings[s.UserID] = prev
		} else {
			delete(t.s.settings, s.UserID)
		}
	})
	return nil
}

func (t *tx) GetExchangeRate(_ context.Context, userID int, currency string) (decimal.Decimal, bool, error) {
	r, ok := t.s.rates[rateKey{userID, currency}]
	return r.Rate, ok, nil
}

func (t *tx) UpsertExchangeRate(_ context.Context, r *models.ExchangeRate) error {
	key := rateKey{r.UserID, r.Currency}
	prev, existed := t.s.rates[key]
	t.s.rates[key] = *r
	t.onRollback(func() {
		if existed {
			t.s.rates[key] = prev
		} else {
			delete(t.s.rates, key)
		}
	})
	return nil
}

func (t *tx) DeleteExchangeRate(_ context.Context, userID int, currency string) error {
	key := rateKey{userID, currency}
	prev, existed := t.s.rates[key]
	if !existed {
		return nil
	}
	delete(t.s.rates, key)
	t.onRollback(func() { t.s.rates[key] = prev })
	return nil
}

func (t *tx) ListExchangeRates(_ context.Context, userID int) ([]models.ExchangeRate, error) {
	var out []models.ExchangeRate
	for key, r := range t.s.rates {
		if key.userID == userID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Currency < out[j].Currency })
	return out, nil
}

func (t *tx) InsertAccountType(_ context.Context, at *models.AccountType) error {
	for _, existing := range t.s.accountTypes {
		if existing.UserID == at.UserID && strings.EqualFold(existing.Name, at.Name) {
			return fmt.Errorf("account type %q: %w", at.Name, models.ErrDuplicate)
		}
	}
	at.ID = len(t.s.accountTypes) + 1
	t.s.accountTypes = append(t.s.accountTypes, *at)
	n := len(t.s.accountTypes) - 1
	t.onRollback(func() { t.s.accountTypes = t.s.accountTypes[:n] })
	return nil
}

func (t *tx) GetAccountType(_ context.Context, id int) (*models.AccountType, error) {
	if id <= 0 || id > len(t.s.accountTypes) {
		return nil, notFound("account type", id)
	}
	at := t.s.accountTypes[id-1]
	return &at, nil
}

func (t *tx) ListAccountTypes(_ context.Context, userID int) ([]models.AccountType, error) {
	var out []models.AccountType
	for _, at := range t.s.accountTypes {
		if at.UserID == userID {
			out = append(out, at)
		}
	}
	return out, nil
}

func (t *tx) InsertAccount(_ context.Context, a *models.Account) error {
	for _, existing := range t.s.accounts {
		if existing.UserID == a.UserID && existing.DeletedAt == nil && strings.EqualFold(existing.Name, a.Name) {
			return fmt.Errorf("account %q: %w", a.Name, models.ErrDuplicate)
		}
	}
	a.ID = len(t.s.accounts) + 1
	a.CreatedAt = time.Now()
	t.s.accounts = append(t.s.accounts, *a)
	n := len(t.s.accounts) - 1
	t.onRollback(func() { t.s.accounts = t.s.accounts[:n] })
	return nil
}

func (t *tx) GetAccount(_ context.Context, id int) (*models.Account, error) {
	a := t.s.account(id)
	if a == nil {
		return nil, notFound("account", id)
	}
	out := *a
	return &out, nil
}

func (t *tx) ListAccounts(_ context.Context, userID int) ([]models.Account, error) {
	var out []models.Account
	for _, a := range t.s.accounts {
		if a.UserID == userID && a.DeletedAt == nil {
			out = append(out, a)
		}
	}
	return out, nil
}

func (t *tx) SoftDeleteAccount(_ context.Context, id int, at time.Time) error {
	a := t.s.account(id)
	if a == nil {
		return notFound("account", id)
	}
	prev := a.DeletedAt
	deleted := at
	a.DeletedAt = &deleted
	t.onRollback(func() { t.s.account(id).DeletedAt = prev })
	return nil
}

func (t *tx) AdjustBalance(_ context.Context, accountID int, delta decimal.Decimal) error {
	a := t.s.account(accountID)
	if a == nil || a.DeletedAt != nil {
		return notFound("account", accountID)
	}
	prev := a.Balance
	a.Balance = models.RoundAmount(a.Balance.Add(delta))
	t.onRollback(func() { t.s.account(accountID).Balance = prev })
	return nil
}

func (t *tx) InsertCategory(_ context.Context, c *models.Category) error {
	for _, existing := range t.s.categories {
		if existing.UserID == c.UserID && existing.DeletedAt == nil && existing.Type == c.Type && strings.EqualFold(existing.Name, c.Name) {
			return fmt.Errorf("category %q: %w", c.Name, models.ErrDuplicate)
		}
	}
	c.ID = len(t.s.categories) + 1
	c.CreatedAt = time.Now()
	t.s.categories = append(t.s.categories, *c)
	n := len(t.s.categories) - 1
	t.onRollback(func() { t.s.categories = t.s.categories[:n] })
	return nil
}

func (t *tx) GetCategory(_ context.Context, id int) (*models.Category, error) {
	c := t.s.category(id)
	if c == nil {
		return nil, notFound("category", id)
	}
	out := *c
	return &out, nil
}

func (t *tx) ListCategories(_ context.Context, userID int) ([]models.Category, error) {
	var out []models.Category
	for _, c := range t.s.categories {
		if c.UserID == userID && c.DeletedAt == nil {
			out = append(out, c)
		}
	}
	return out, nil
}

func (t *tx) SoftDeleteCategory(_ context.Context, id int, at time.Time) error {
	c := t.s.category(id)
	if c == nil {
		return notFound("category", id)
	}
	prev := c.DeletedAt
	deleted := at
	c.DeletedAt = &deleted
	t.onRollback(func() { t.s.category(id).DeletedAt = prev })
	return nil
}

func (t *tx) InsertTransaction(_ context.Context, tr *models.Transaction) error {
	var key occurrenceKey
	backRef := tr.ScheduledTransactionID != nil && tr.OccurrenceAt != nil
	if backRef {
		key = occurrenceKey{*tr.ScheduledTransactionID, tr.OccurrenceAt.UnixNano()}
		if _, dup := t.s.occurrences[key]; dup {
			return fmt.Errorf("occurrence %d@%s: %w", key.ruleID, tr.OccurrenceAt.Format(time.RFC3339), models.ErrDuplicate)
		}
	}

	tr.ID = len(t.s.transactions) + 1
	tr.CreatedAt = time.Now()
	t.s.transactions = append(t.s.transactions, cloneTransaction(*tr))
	n := len(t.s.transactions) - 1
	if backRef {
		t.s.occurrences[key] = tr.ID
	}
	t.onRollback(func() {
		t.s.transactions = t.s.transactions[:n]
		if backRef {
			delete(t.s.occurrences, key)
		}
	})
	return nil
}

func (t *tx) ListTransactions(_ context.Context, userID int) ([]models.Transaction, error) {
	var out []models.Transaction
	for _, tr := range t.s.transactions {
		if tr.UserID == userID {
			out = append(out, cloneTransaction(tr))
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].TransactionDate.After(out[j].TransactionDate) })
	return out, nil
}

func (t *tx) ListRuleTransactions(_ context.Context, ruleID int) ([]models.Transaction, error) {
	var out []models.Transaction
	for _, tr := range t.s.transactions {
		if tr.ScheduledTransactionID != nil && *tr.ScheduledTransactionID == ruleID {
			out = append(out, cloneTransaction(tr))
		}
	}
	return out, nil
}

func (t *tx) InsertScheduledTransaction(_ context.Context, r *models.ScheduledTransaction) error {
	now := time.Now()
	r.ID = len(t.s.rules) + 1
	r.CreatedAt, r.UpdatedAt = now, now
	r.Version = 1
	t.s.rules = append(t.s.rules, cloneRule(*r))
	n := len(t.s.rules) - 1
	t.onRollback(func() { t.s.rules = t.s.rules[:n] })
	return nil
}

func (t *tx) GetScheduledTransaction(_ context.Context, id int) (*models.ScheduledTransaction, error) {
	r := t.s.rule(id)
	if r == nil {
		return nil, notFound("scheduled transaction", id)
	}
	out := cloneRule(*r)
	return &out, nil
}

func (t *tx) ListScheduledTransactions(_ context.Context, userID int) ([]models.ScheduledTransaction, error) {
	var out []models.ScheduledTransaction
	for _, r := range t.s.rules {
		if r.UserID == userID {
			out = append(out, cloneRule(r))
		}
	}
	return out, nil
}

func (t *tx) AdvanceScheduledTransaction(_ context.Context, id int, token uuid.UUID, next time.Time, active bool, now time.Time) error {
	r := t.s.rule(id)
	if r == nil {
		return notFound("scheduled transaction", id)
	}
	if !r.IsActive || r.ClaimToken == nil || *r.ClaimToken != token {
		return fmt.Errorf("scheduled transaction %d: %w", id, models.ErrClaimLost)
	}
	prev := cloneRule(*r)
	ran := now
	r.NextRunAt = next
	r.IsActive = r.IsActive && active
	r.LastRunAt = &ran
	r.ClaimToken, r.ClaimedAt = nil, nil
	r.ConsecutiveFailures, r.MissingRateFailures = 0, 0
	r.LastError, r.LastErrorAt = "", nil
	r.UpdatedAt = now
	r.Version++
	t.onRollback(func() { *t.s.rule(id) = prev })
	return nil
}

func (t *tx) DeactivateScheduledTransaction(_ context.Context, id int, now time.Time) error {
	r := t.s.rule(id)
	if r == nil {
		return notFound("scheduled transaction", id)
	}
	prev := cloneRule(*r)
	r.IsActive = false
	r.ClaimToken, r.ClaimedAt = nil, nil
	r.UpdatedAt = now
	r.Version++
	t.onRollback(func() { *t.s.rule(id) = prev })
	return nil
}

func (t *tx) InsertNotification(_ context.Context, n *models.Notification) error {
	n.ID = len(t.s.notifications) + 1
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	t.s.notifications = append(t.s.notifications, *n)
	size := len(t.s.notifications) - 1
	t.onRollback(func() { t.s.notifications = t.s.notifications[:size] })
	return nil
}

func (t *tx) ListNotifications(_ context.Context, userID int) ([]models.Notification, error) {
	var out []models.Notification
	for i := len(t.s.notifications) - 1; i >= 0; i-- {
		if n := t.s.notifications[i]; n.UserID == userID {
			out = append(out, n)
		}
	}
	return out, nil
}

func (t *tx) MarkNotificationRead(_ context.Context, userID, id int) error {
	if id <= 0 || id > len(t.s.notifications) || t.s.notifications[id-1].UserID != userID {
		return notFound("notification", id)
	}
	n := &t.s.notifications[id-1]
	prev := n.IsRead
	n.IsRead = true
	t.onRollback(func() { t.s.notifications[id-1].IsRead = prev })
	return nil
}
