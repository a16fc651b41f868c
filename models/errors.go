package models

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrDuplicate           = errors.New("already exists")
	ErrInvalidDirection    = errors.New("invalid account direction")
	ErrNonPositiveAmount   = errors.New("amount must be greater than zero")
	ErrEndBeforeStart      = errors.New("end date is before start date")
	ErrInvalidFrequency    = errors.New("invalid frequency")
	ErrInvalidTimeWindow   = errors.New("end time must be after start time")
	ErrUnsupportedCurrency = errors.New("unsupported currency")
	ErrBaseCurrencyRate    = errors.New("base currency has an implicit rate of 1")
	ErrNonPositiveRate     = errors.New("exchange rate must be greater than zero")
	ErrCategoryKind        = errors.New("category kind does not match transaction type")
	ErrInvalidAccount      = errors.New("invalid account")
	ErrInvalidCategory     = errors.New("invalid category")
	ErrInvalidTimezone     = errors.New("invalid time zone")
	ErrInvalidTimeOfDay    = errors.New("invalid time of day")
	ErrClaimLost           = errors.New("scheduled transaction claim lost")
	ErrMissingUser         = errors.New("user id is required")
)

// IsValidation reports whether err is a rejected input rather than a storage failure.
func IsValidation(err error) bool {
	for _, target := range []error{
		ErrInvalidDirection, ErrNonPositiveAmount, ErrEndBeforeStart, ErrInvalidFrequency,
		ErrInvalidTimeWindow, ErrUnsupportedCurrency, ErrBaseCurrencyRate, ErrNonPositiveRate,
		ErrCategoryKind, ErrInvalidAccount, ErrInvalidCategory, ErrInvalidTimezone,
		ErrInvalidTimeOfDay, ErrMissingUser,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
