package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is one ledger entry. Amount is denominated in Currency and debited
// from the source account; DestinationAmount is what the destination account is
// credited, in its own currency.
type Transaction struct {
	ID                     int             `json:"id" db:"id"`
	UserID                 int             `json:"user_id" db:"user_id"`
	Legs                   Direction       `json:"legs"`
	Amount                 decimal.Decimal `json:"amount" db:"amount"`
	Currency               string          `json:"currency" db:"currency"`
	DestinationAmount      decimal.Decimal `json:"destination_amount" db:"destination_amount"`
	CategoryID             *int            `json:"category_id,omitempty" db:"category_id"`
	Description            string          `json:"description" db:"description"`
	TransactionDate        time.Time       `json:"transaction_date" db:"transaction_date"`
	ScheduledTransactionID *int            `json:"scheduled_transaction_id,omitempty" db:"scheduled_transaction_id"`
	OccurrenceAt           *time.Time      `json:"occurrence_at,omitempty" db:"occurrence_at"`
	CreatedAt              time.Time       `json:"created_at" db:"created_at"`
}

// NewTransaction is the only way the ledger builds a transaction, manual or scheduled.
func NewTransaction(userID int, legs Direction, amount decimal.Decimal, currency string, date time.Time) (*Transaction, error) {
	t := &Transaction{
		UserID:            userID,
		Legs:              legs,
		Amount:            RoundAmount(amount),
		Currency:          NormalizeCurrency(currency),
		DestinationAmount: RoundAmount(amount),
		TransactionDate:   date,
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Transaction) Type() TransactionType { return t.Legs.Type() }

func (t *Transaction) Validate() error {
	if t.UserID <= 0 {
		return ErrMissingUser
	}
	if t.Legs.IsZero() {
		return fmt.Errorf("%w: transaction has no accounts", ErrInvalidDirection)
	}
	if !t.Amount.IsPositive() {
		return ErrNonPositiveAmount
	}
	if !t.DestinationAmount.IsPositive() {
		return fmt.Errorf("destination %w", ErrNonPositiveAmount)
	}
	if len(t.Currency) != 3 {
		return fmt.Errorf("%w: %q", ErrUnsupportedCurrency, t.Currency)
	}
	return nil
}
