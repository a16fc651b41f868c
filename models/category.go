package models

import "time"

type CategoryKind string

const (
	CategoryIncome  CategoryKind = "income"
	CategoryExpense CategoryKind = "expense"
)

type Category struct {
	ID        int          `json:"id" db:"id"`
	UserID    int          `json:"user_id" db:"user_id"`
	Name      string       `json:"name" db:"name"`
	Type      CategoryKind `json:"type" db:"type"`
	CreatedAt time.Time    `json:"created_at" db:"created_at"`
	DeletedAt *time.Time   `json:"deleted_at,omitempty" db:"deleted_at"`
}

// Matches reports whether the category may be attached to a transaction of type t.
// Transfers may carry a category of either kind.
func (c *Category) Matches(t TransactionType) bool {
	switch t {
	case TransactionIncome:
		return c.Type == CategoryIncome
	case TransactionExpense:
		return c.Type == CategoryExpense
	default:
		return true
	}
}
