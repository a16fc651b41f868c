package ledger

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/valeriaulyamaeva/recurring-ledger/models"
)

// Convert moves amount between currencies given both rates against the same
// base: amount * to / from, rounded to the ledger scale.
func Convert(amount, fromRate, toRate decimal.Decimal) decimal.Decimal {
	return models.RoundAmount(amount.Mul(toRate).Div(fromRate))
}

// rateFor returns the owner's rate for currency. The base currency is always 1.
func rateFor(ctx context.Context, tx Tx, settings *models.UserSettings, currency string) (decimal.Decimal, error) {
	if currency == settings.Currency {
		return decimal.NewFromInt(1), nil
	}
	rate, ok, err := tx.GetExchangeRate(ctx, settings.UserID, currency)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("rateFor: %w", err)
	}
	if !ok {
		return decimal.Decimal{}, &MissingRateError{UserID: settings.UserID, Currency: currency}
	}
	return rate, nil
}

func convertFor(ctx context.Context, tx Tx, userID int, amount decimal.Decimal, from, to string) (decimal.Decimal, error) {
	if from == to {
		return models.RoundAmount(amount), nil
	}
	settings, err := tx.GetUserSettings(ctx, userID)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("convertFor: settings: %w", err)
	}
	fromRate, err := rateFor(ctx, tx, settings, from)
	if err != nil {
		return decimal.Decimal{}, err
	}
	toRate, err := rateFor(ctx, tx, settings, to)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return Convert(amount, fromRate, toRate), nil
}
