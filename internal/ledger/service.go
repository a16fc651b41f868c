package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/valeriaulyamaeva/recurring-ledger/internal/recurrence"
	"github.com/valeriaulyamaeva/recurring-ledger/models"
)

// Service is the owner-facing entry point to the ledger. It applies the same
// account, category and currency checks the materializer does.
type Service struct {
	store Store
	Now   func() time.Time
}

func NewService(store Store) *Service {
	return &Service{store: store, Now: time.Now}
}

func (s *Service) CreateAccountType(ctx context.Context, t *models.AccountType) error {
	t.Name = strings.TrimSpace(t.Name)
	if t.UserID <= 0 {
		return models.ErrMissingUser
	}
	if t.Name == "" {
		return fmt.Errorf("%w: account type name is required", models.ErrInvalidAccount)
	}
	return s.store.WithTx(ctx, func(tx Tx) error {
		return tx.InsertAccountType(ctx, t)
	})
}

func (s *Service) CreateAccount(ctx context.Context, a *models.Account) error {
	a.Name = strings.TrimSpace(a.Name)
	a.Currency = models.NormalizeCurrency(a.Currency)
	a.Balance = models.RoundAmount(a.Balance)
	if a.UserID <= 0 {
		return models.ErrMissingUser
	}
	if a.Name == "" {
		return fmt.Errorf("%w: account name is required", models.ErrInvalidAccount)
	}
	if a.Category != models.AccountAsset && a.Category != models.AccountLiability {
		return fmt.Errorf("%w: category must be asset or liability, got %q", models.ErrInvalidAccount, a.Category)
	}

	return s.store.WithTx(ctx, func(tx Tx) error {
		if err := requireCurrency(ctx, tx, a.Currency); err != nil {
			return err
		}
		at, err := tx.GetAccountType(ctx, a.AccountTypeID)
		if errors.Is(err, models.ErrNotFound) || (err == nil && at.UserID != a.UserID) {
			return fmt.Errorf("%w: account type %d", models.ErrInvalidAccount, a.AccountTypeID)
		}
		if err != nil {
			return err
		}
		return tx.InsertAccount(ctx, a)
	})
}

// DeleteAccount soft-deletes the account. Its transactions are kept, and rules
// still pointing at it are deactivated the next time they fire.
func (s *Service) DeleteAccount(ctx context.Context, userID, id int) error {
	return s.store.WithTx(ctx, func(tx Tx) error {
		a, err := tx.GetAccount(ctx, id)
		if err != nil {
			return err
		}
		if a.UserID != userID || a.DeletedAt != nil {
			return fmt.Errorf("account %d: %w", id, models.ErrNotFound)
		}
		return tx.SoftDeleteAccount(ctx, id, s.Now())
	})
}

func (s *Service) ListAccounts(ctx context.Context, userID int) ([]models.Account, error) {
	var out []models.Account
	err := s.store.WithTx(ctx, func(tx Tx) error {
		var err error
		out, err = tx.ListAccounts(ctx, userID)
		return err
	})
	return out, err
}

func (s *Service) ListAccountTypes(ctx context.Context, userID int) ([]models.AccountType, error) {
	var out []models.AccountType
	err := s.store.WithTx(ctx, func(tx Tx) error {
		var err error
		out, err = tx.ListAccountTypes(ctx, userID)
		return err
	})
	return out, err
}

func (s *Service) CreateCategory(ctx context.Context, c *models.Category) error {
	c.Name = strings.TrimSpace(c.Name)
	if c.UserID <= 0 {
		return models.ErrMissingUser
	}
	if c.Name == "" {
		return fmt.Errorf("%w: category name is required", models.ErrInvalidCategory)
	}
	if c.Type != models.CategoryIncome && c.Type != models.CategoryExpense {
		return fmt.Errorf("%w: kind must be income or expense, got %q", models.ErrInvalidCategory, c.Type)
	}
	return s.store.WithTx(ctx, func(tx Tx) error {
		return tx.InsertCategory(ctx, c)
	})
}

func (s *Service) DeleteCategory(ctx context.Context, userID, id int) error {
	return s.store.WithTx(ctx, func(tx Tx) error {
		c, err := tx.GetCategory(ctx, id)
		if err != nil {
			return err
		}
		if c.UserID != userID || c.DeletedAt != nil {
			return fmt.Errorf("category %d: %w", id, models.ErrNotFound)
		}
		return tx.SoftDeleteCategory(ctx, id, s.Now())
	})
}

func (s *Service) ListCategories(ctx context.Context, userID int) ([]models.Category, error) {
	var out []models.Category
	err := s.store.WithTx(ctx, func(tx Tx) error {
		var err error
		out, err = tx.ListCategories(ctx, userID)
		return err
	})
	return out, err
}

func (s *Service) ListCurrencies(ctx context.Context) ([]models.SupportedCurrency, error) {
	var out []models.SupportedCurrency
	err := s.store.WithTx(ctx, func(tx Tx) error {
		var err error
		out, err = tx.ListCurrencies(ctx)
		return err
	})
	return out, err
}

// SetExchangeRate stores the owner's rate for a non-base currency.
func (s *Service) SetExchangeRate(ctx context.Context, r *models.ExchangeRate) error {
	r.Currency = models.NormalizeCurrency(r.Currency)
	if r.UserID <= 0 {
		return models.ErrMissingUser
	}
	if !r.Rate.IsPositive() {
		return models.ErrNonPositiveRate
	}
	return s.store.WithTx(ctx, func(tx Tx) error {
		if err := requireCurrency(ctx, tx, r.Currency); err != nil {
			return err
		}
		settings, err := tx.GetUserSettings(ctx, r.UserID)
		if err != nil {
			return err
		}
		if settings.Currency == r.Currency {
			return fmt.Errorf("%w: %s", models.ErrBaseCurrencyRate, r.Currency)
		}
		r.UpdatedAt = s.Now()
		return tx.UpsertExchangeRate(ctx, r)
	})
}

func (s *Service) ListExchangeRates(ctx context.Context, userID int) ([]models.ExchangeRate, error) {
	var out []models.ExchangeRate
	err := s.store.WithTx(ctx, func(tx Tx) error {
		var err error
		out, err = tx.ListExchangeRates(ctx, userID)
		return err
	})
	return out, err
}

func (s *Service) GetUserSettings(ctx context.Context, userID int) (*models.UserSettings, error) {
	var out *models.UserSettings
	err := s.store.WithTx(ctx, func(tx Tx) error {
		var err error
		out, err = tx.GetUserSettings(ctx, userID)
		return err
	})
	return out, err
}

// UpdateUserSettings changes the owner's base currency or time zone. A stored
// rate for the new base currency is dropped, since the base is always 1.
// Existing rules keep the time zone they were created with.
func (s *Service) UpdateUserSettings(ctx context.Context, settings *models.UserSettings) error {
	settings.Currency = models.NormalizeCurrency(settings.Currency)
	if settings.UserID <= 0 {
		return models.ErrMissingUser
	}
	if settings.Timezone == "" {
		settings.Timezone = models.DefaultTimezone
	}
	if _, err := time.LoadLocation(settings.Timezone); err != nil {
		return fmt.Errorf("%w: %q", models.ErrInvalidTimezone, settings.Timezone)
	}
	return s.store.WithTx(ctx, func(tx Tx) error {
		if err := requireCurrency(ctx, tx, settings.Currency); err != nil {
			return err
		}
		if err := tx.DeleteExchangeRate(ctx, settings.UserID, settings.Currency); err != nil {
			return err
		}
		return tx.UpsertUserSettings(ctx, settings)
	})
}

// CreateTransaction records a manual entry and updates the balances it touches.
func (s *Service) CreateTransaction(ctx context.Context, t *models.Transaction) error {
	t.Amount = models.RoundAmount(t.Amount)
	t.Currency = models.NormalizeCurrency(t.Currency)
	t.DestinationAmount = t.Amount
	t.ScheduledTransactionID = nil
	t.OccurrenceAt = nil
	if t.TransactionDate.IsZero() {
		t.TransactionDate = s.Now()
	}
	if err := t.Validate(); err != nil {
		return err
	}

	return s.store.WithTx(ctx, func(tx Tx) error {
		if err := requireCurrency(ctx, tx, t.Currency); err != nil {
			return err
		}
		src, dst, err := resolveLegs(ctx, tx, t.UserID, t.Legs, t.Currency, t.CategoryID)
		if err != nil {
			return asValidation(err)
		}
		return post(ctx, tx, t, src, dst)
	})
}

func (s *Service) ListTransactions(ctx context.Context, userID int) ([]models.Transaction, error) {
	var out []models.Transaction
	err := s.store.WithTx(ctx, func(tx Tx) error {
		var err error
		out, err = tx.ListTransactions(ctx, userID)
		return err
	})
	return out, err
}

// CreateScheduledTransaction validates a rule and stores it active, with its
// first occurrence as the cursor. An empty time zone takes the owner's.
func (s *Service) CreateScheduledTransaction(ctx context.Context, r *models.ScheduledTransaction) error {
	r.Amount = models.RoundAmount(r.Amount)
	r.Currency = models.NormalizeCurrency(r.Currency)
	r.Description = strings.TrimSpace(r.Description)
	r.StartDate = models.DateOf(r.StartDate)
	if r.EndDate != nil {
		end := models.DateOf(*r.EndDate)
		r.EndDate = &end
	}

	return s.store.WithTx(ctx, func(tx Tx) error {
		if r.Timezone == "" {
			settings, err := tx.GetUserSettings(ctx, r.UserID)
			if err != nil {
				return err
			}
			r.Timezone = settings.Timezone
		}
		if err := r.Validate(); err != nil {
			return err
		}
		if err := requireCurrency(ctx, tx, r.Currency); err != nil {
			return err
		}
		if _, _, err := resolveLegs(ctx, tx, r.UserID, r.Legs, r.Currency, r.CategoryID); err != nil {
			return asValidation(err)
		}

		schedule, err := recurrence.FromRule(r)
		if err != nil {
			return err
		}
		first, ok := schedule.First()
		if !ok {
			return models.ErrEndBeforeStart
		}
		r.NextRunAt = first
		r.IsActive = true
		r.ClaimToken, r.ClaimedAt = nil, nil
		r.ConsecutiveFailures, r.MissingRateFailures = 0, 0
		r.LastError, r.LastErrorAt, r.LastRunAt = "", nil, nil
		return tx.InsertScheduledTransaction(ctx, r)
	})
}

// GetScheduledTransaction returns the owner's rule with the next occurrences
// it is going to produce.
func (s *Service) GetScheduledTransaction(ctx context.Context, userID, id int, upcoming int) (*models.ScheduledTransaction, []time.Time, error) {
	var rule *models.ScheduledTransaction
	err := s.store.WithTx(ctx, func(tx Tx) error {
		var err error
		rule, err = ownedRule(ctx, tx, userID, id)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	if !rule.IsActive || upcoming <= 0 {
		return rule, nil, nil
	}
	schedule, err := recurrence.FromRule(rule)
	if err != nil {
		return rule, nil, nil
	}
	next := append([]time.Time{rule.NextRunAt}, schedule.Upcoming(rule.NextRunAt, upcoming-1)...)
	return rule, next, nil
}

func (s *Service) ListScheduledTransactions(ctx context.Context, userID int) ([]models.ScheduledTransaction, error) {
	var out []models.ScheduledTransaction
	err := s.store.WithTx(ctx, func(tx Tx) error {
		var err error
		out, err = tx.ListScheduledTransactions(ctx, userID)
		return err
	})
	return out, err
}

// ListRuleTransactions returns what a rule has produced so far.
func (s *Service) ListRuleTransactions(ctx context.Context, userID, id int) ([]models.Transaction, error) {
	var out []models.Transaction
	err := s.store.WithTx(ctx, func(tx Tx) error {
		if _, err := ownedRule(ctx, tx, userID, id); err != nil {
			return err
		}
		var err error
		out, err = tx.ListRuleTransactions(ctx, id)
		return err
	})
	return out, err
}

// DeactivateScheduledTransaction stops a rule. Transactions it already
// produced stay, and an in-flight materialization of it fails to commit.
func (s *Service) DeactivateScheduledTransaction(ctx context.Context, userID, id int) error {
	return s.store.WithTx(ctx, func(tx Tx) error {
		rule, err := ownedRule(ctx, tx, userID, id)
		if err != nil {
			return err
		}
		if !rule.IsActive {
			return nil
		}
		return tx.DeactivateScheduledTransaction(ctx, id, s.Now())
	})
}

func (s *Service) ListNotifications(ctx context.Context, userID int) ([]models.Notification, error) {
	var out []models.Notification
	err := s.store.WithTx(ctx, func(tx Tx) error {
		var err error
		out, err = tx.ListNotifications(ctx, userID)
		return err
	})
	return out, err
}

func (s *Service) MarkNotificationRead(ctx context.Context, userID, id int) error {
	return s.store.WithTx(ctx, func(tx Tx) error {
		return tx.MarkNotificationRead(ctx, userID, id)
	})
}

func ownedRule(ctx context.Context, tx Tx, userID, id int) (*models.ScheduledTransaction, error) {
	rule, err := tx.GetScheduledTransaction(ctx, id)
	if err != nil {
		return nil, err
	}
	if rule.UserID != userID {
		return nil, fmt.Errorf("scheduled transaction %d: %w", id, models.ErrNotFound)
	}
	return rule, nil
}

func requireCurrency(ctx context.Context, tx Tx, code string) error {
	ok, err := tx.CurrencySupported(ctx, code)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %q", models.ErrUnsupportedCurrency, code)
	}
	return nil
}
