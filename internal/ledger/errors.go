package ledger

import (
	"errors"
	"fmt"

	"github.com/valeriaulyamaeva/recurring-ledger/models"
)

var (
	ErrDanglingReference   = errors.New("dangling reference")
	ErrMissingExchangeRate = errors.New("missing exchange rate")
	ErrCurrencyMismatch    = errors.New("currency mismatch")
	ErrInvalidRule         = errors.New("invalid scheduled transaction")
)

// DanglingReferenceError names the account or category that no longer exists,
// was deleted or belongs to someone else.
type DanglingReferenceError struct {
	Entity string // "account" or "category"
	ID     int
	Reason string
}

func (e *DanglingReferenceError) Error() string {
	return fmt.Sprintf("%s %d: %s", e.Entity, e.ID, e.Reason)
}

func (e *DanglingReferenceError) Unwrap() error { return ErrDanglingReference }

type MissingRateError struct {
	UserID   int
	Currency string
}

func (e *MissingRateError) Error() string {
	return fmt.Sprintf("no exchange rate for %s (user %d)", e.Currency, e.UserID)
}

func (e *MissingRateError) Unwrap() error { return ErrMissingExchangeRate }

// IsPermanent reports whether a rule that failed with err can never succeed
// again without the owner changing something, so it has to be deactivated.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrDanglingReference) ||
		errors.Is(err, ErrCurrencyMismatch) ||
		errors.Is(err, ErrInvalidRule) ||
		errors.Is(err, models.ErrCategoryKind)
}

// asValidation turns a dangling reference met while accepting owner input into
// the matching input error.
func asValidation(err error) error {
	var dangling *DanglingReferenceError
	if !errors.As(err, &dangling) {
		return err
	}
	if dangling.Entity == entityCategory {
		return fmt.Errorf("%w: %s", models.ErrInvalidCategory, dangling)
	}
	return fmt.Errorf("%w: %s", models.ErrInvalidAccount, dangling)
}
