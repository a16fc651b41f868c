package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ExchangeRate is the owner's rate for a non-base currency: units of Currency
// per one unit of the owner's base currency. The base currency never has a row.
type ExchangeRate struct {
	UserID    int             `json:"user_id" db:"user_id"`
	Currency  string          `json:"currency" db:"currency"`
	Rate      decimal.Decimal `json:"rate" db:"rate"`
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
}
