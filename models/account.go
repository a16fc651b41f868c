package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type AccountCategory string

const (
	AccountAsset     AccountCategory = "asset"
	AccountLiability AccountCategory = "liability"
)

type AccountType struct {
	ID     int    `json:"id" db:"id"`
	UserID int    `json:"user_id" db:"user_id"`
	Name   string `json:"name" db:"name"`
}

type Account struct {
	ID            int             `json:"id" db:"id"`
	UserID        int             `json:"user_id" db:"user_id"`
	Name          string          `json:"name" db:"name"`
	AccountTypeID int             `json:"account_type_id" db:"account_type_id"`
	Category      AccountCategory `json:"category" db:"category"`
	Currency      string          `json:"currency" db:"currency"`
	Balance       decimal.Decimal `json:"balance" db:"balance"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
	DeletedAt     *time.Time      `json:"deleted_at,omitempty" db:"deleted_at"`
}
