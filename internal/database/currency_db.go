package database

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/valeriaulyamaeva/recurring-ledger/models"
)

func (t *pgTx) CurrencySupported(ctx context.Context, code string) (bool, error) {
	var ok bool
	err := t.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM supported_currencies WHERE code = $1)`, code).Scan(&ok)
	return ok, mapErr("CurrencySupported", err)
}

func (t *pgTx) ListCurrencies(ctx context.Context) ([]models.SupportedCurrency, error) {
	rows, err := t.q.Query(ctx, `SELECT code, name, symbol FROM supported_currencies ORDER BY code`)
	if err != nil {
		return nil, mapErr("ListCurrencies", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.SupportedCurrency, error) {
		var c models.SupportedCurrency
		err := row.Scan(&c.Code, &c.Name, &c.Symbol)
		return c, err
	})
	return out, mapErr("ListCurrencies", err)
}

func (t *pgTx) GetExchangeRate(ctx context.Context, userID int, currency string) (decimal.Decimal, bool, error) {
	var rate decimal.Decimal
	err := t.q.QueryRow(ctx, `SELECT rate FROM exchange_rates WHERE user_id = $1 AND currency = $2`,
		userID, currency).Scan(&rate)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Decimal{}, false, nil
	}
	if err != nil {
		return decimal.Decimal{}, false, mapErr("GetExchangeRate", err)
	}
	return rate, true, nil
}

func (t *pgTx) UpsertExchangeRate(ctx context.Context, r *models.ExchangeRate) error {
	query := `
		INSERT INTO exchange_rates (user_id, currency, rate, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, currency) DO UPDATE SET rate = EXCLUDED.rate, updated_at = EXCLUDED.updated_at`

	_, err := t.q.Exec(ctx, query, r.UserID, r.Currency, r.Rate, r.UpdatedAt)
	return mapErr("UpsertExchangeRate", err)
}

func (t *pgTx) DeleteExchangeRate(ctx context.Context, userID int, currency string) error {
	_, err := t.q.Exec(ctx, `DELETE FROM exchange_rates WHERE user_id = $1 AND currency = $2`, userID, currency)
	return mapErr("DeleteExchangeRate", err)
}

func (t *pgTx) ListExchangeRates(ctx context.Context, userID int) ([]models.ExchangeRate, error) {
	rows, err := t.q.Query(ctx, `
		SELECT user_id, currency, rate, updated_at
		FROM exchange_rates
		WHERE user_id = $1
		ORDER BY currency`, userID)
	if err != nil {
		return nil, mapErr("ListExchangeRates", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.ExchangeRate, error) {
		var r models.ExchangeRate
		err := row.Scan(&r.UserID, &r.Currency, &r.Rate, &r.UpdatedAt)
		return r, err
	})
	return out, mapErr("ListExchangeRates", err)
}
