// Package ledger enforces the invariants that tie transactions to accounts,
// categories and currencies, for manual entries and scheduled ones alike.
package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/valeriaulyamaeva/recurring-ledger/models"
)

// Tx is one unit of work. Everything written through a Tx is committed or
// rolled back together when the function passed to Store.WithTx returns.
//
// Lookups of a missing row return an error wrapping models.ErrNotFound.
// Soft-deleted accounts and categories are still returned with DeletedAt set.
type Tx interface {
	CurrencySupported(ctx context.Context, code string) (bool, error)
	ListCurrencies(ctx context.Context) ([]models.SupportedCurrency, error)

	// GetUserSettings falls back to models.DefaultUserSettings for owners
	// that never saved any.
	GetUserSettings(ctx context.Context, userID int) (*models.UserSettings, error)
	UpsertUserSettings(ctx context.Context, s *models.UserSettings) error

	GetExchangeRate(ctx context.Context, userID int, currency string) (decimal.Decimal, bool, error)
	UpsertExchangeRate(ctx context.Context, r *models.ExchangeRate) error
	DeleteExchangeRate(ctx context.Context, userID int, currency string) error
	ListExchangeRates(ctx context.Context, userID int) ([]models.ExchangeRate, error)

	InsertAccountType(ctx context.Context, t *models.AccountType) error
	GetAccountType(ctx context.Context, id int) (*models.AccountType, error)
	ListAccountTypes(ctx context.Context, userID int) ([]models.AccountType, error)

	InsertAccount(ctx context.Context, a *models.Account) error
	GetAccount(ctx context.Context, id int) (*models.Account, error)
	ListAccounts(ctx context.Context, userID int) ([]models.Account, error)
	SoftDeleteAccount(ctx context.Context, id int, at time.Time) error
	// AdjustBalance fails with models.ErrNotFound for a deleted account.
	AdjustBalance(ctx context.Context, accountID int, delta decimal.Decimal) error

	InsertCategory(ctx context.Context, c *models.Category) error
	GetCategory(ctx context.Context, id int) (*models.Category, error)
	ListCategories(ctx context.Context, userID int) ([]models.Category, error)
	SoftDeleteCategory(ctx context.Context, id int, at time.Time) error

	InsertTransaction(ctx context.Context, t *models.Transaction) error
	ListTransactions(ctx context.Context, userID int) ([]models.Transaction, error)
	ListRuleTransactions(ctx context.Context, ruleID int) ([]models.Transaction, error)

	InsertScheduledTransaction(ctx context.Context, r *models.ScheduledTransaction) error
	GetScheduledTransaction(ctx context.Context, id int) (*models.ScheduledTransaction, error)
	ListScheduledTransactions(ctx context.Context, userID int) ([]models.ScheduledTransaction, error)
	// AdvanceScheduledTransaction moves the cursor of a claimed rule and releases
	// the claim. It fails with models.ErrClaimLost unless the rule is still active
	// and still holds token.
	AdvanceScheduledTransaction(ctx context.Context, id int, token uuid.UUID, next time.Time, active bool, now time.Time) error
	// DeactivateScheduledTransaction turns the rule off and drops any claim on it.
	DeactivateScheduledTransaction(ctx context.Context, id int, now time.Time) error

	InsertNotification(ctx context.Context, n *models.Notification) error
	ListNotifications(ctx context.Context, userID int) ([]models.Notification, error)
	MarkNotificationRead(ctx context.Context, userID, id int) error
}

type Store interface {
	WithTx(ctx context.Context, fn func(tx Tx) error) error
}
