// Package fixtures builds ledger owners with accounts and categories for tests
// and local demo runs.
package fixtures

import (
	"context"
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/shopspring/decimal"

	"github.com/valeriaulyamaeva/recurring-ledger/internal/ledger"
	"github.com/valeriaulyamaeva/recurring-ledger/models"
)

// OpeningBalance is what every generated account starts with.
var OpeningBalance = decimal.NewFromInt(1000)

type Owner struct {
	UserID   int
	Type     *models.AccountType
	Accounts map[string]*models.Account // by currency
	Income   *models.Category
	Expense  *models.Category
}

// NewOwner creates an account type, one asset account per currency and an
// income and an expense category for userID.
func NewOwner(ctx context.Context, svc *ledger.Service, userID int, currencies ...string) (*Owner, error) {
	o := &Owner{UserID: userID, Accounts: make(map[string]*models.Account)}

	o.Type = &models.AccountType{UserID: userID, Name: gofakeit.Company()}
	if err := svc.CreateAccountType(ctx, o.Type); err != nil {
		return nil, fmt.Errorf("account type: %w", err)
	}

	for _, code := range currencies {
		a := &models.Account{
			UserID:        userID,
			Name:          fmt.Sprintf("%s %s", gofakeit.Word(), code),
			AccountTypeID: o.Type.ID,
			Category:      models.AccountAsset,
			Currency:      code,
			Balance:       OpeningBalance,
		}
		if err := svc.CreateAccount(ctx, a); err != nil {
			return nil, fmt.Errorf("account %s: %w", code, err)
		}
		o.Accounts[a.Currency] = a
	}

	o.Income = &models.Category{UserID: userID, Name: gofakeit.Word(), Type: models.CategoryIncome}
	if err := svc.CreateCategory(ctx, o.Income); err != nil {
		return nil, fmt.Errorf("income category: %w", err)
	}
	o.Expense = &models.Category{UserID: userID, Name: gofakeit.Word(), Type: models.CategoryExpense}
	if err := svc.CreateCategory(ctx, o.Expense); err != nil {
		return nil, fmt.Errorf("expense category: %w", err)
	}
	return o, nil
}

func (o *Owner) Account(currency string) *models.Account { return o.Accounts[currency] }

// Rule returns an unsaved rule for the owner moving amount along legs.
func (o *Owner) Rule(legs models.Direction, amount string, currency string, freq models.Frequency, start time.Time) *models.ScheduledTransaction {
	return &models.ScheduledTransaction{
		UserID:      o.UserID,
		Legs:        legs,
		Amount:      decimal.RequireFromString(amount),
		Currency:    currency,
		Description: gofakeit.Sentence(4),
		Frequency:   freq,
		StartDate:   models.DateOf(start),
		StartTime:   models.TimeOfDay{Hour: start.Hour(), Minute: start.Minute(), Second: start.Second()},
		Timezone:    "UTC",
	}
}

// Balance reloads the current balance of an account.
func Balance(ctx context.Context, store ledger.Store, accountID int) (decimal.Decimal, error) {
	var out decimal.Decimal
	err := store.WithTx(ctx, func(tx ledger.Tx) error {
		a, err := tx.GetAccount(ctx, accountID)
		if err != nil {
			return err
		}
		out = a.Balance
		return nil
	})
	return out, err
}
