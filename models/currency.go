package models

import (
	"strings"

	"github.com/shopspring/decimal"
)

// AmountScale is the number of fractional digits kept for every ledger amount.
const AmountScale = 2

const DefaultBaseCurrency = "USD"

type SupportedCurrency struct {
	Code   string `json:"code" db:"code"`
	Name   string `json:"name" db:"name"`
	Symbol string `json:"symbol" db:"symbol"`
}

// DefaultCurrencies is the reference data seeded into every store.
var DefaultCurrencies = []SupportedCurrency{
	{Code: "USD", Name: "US Dollar", Symbol: "$"},
	{Code: "EUR", Name: "Euro", Symbol: "€"},
	{Code: "GBP", Name: "Pound Sterling", Symbol: "£"},
	{Code: "PLN", Name: "Polish Zloty", Symbol: "zł"},
	{Code: "BYN", Name: "Belarusian Ruble", Symbol: "Br"},
	{Code: "RUB", Name: "Russian Ruble", Symbol: "₽"},
	{Code: "KRW", Name: "South Korean Won", Symbol: "₩"},
	{Code: "JPY", Name: "Japanese Yen", Symbol: "¥"},
}

func NormalizeCurrency(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// RoundAmount applies the ledger's fixed-point policy: half away from zero at AmountScale.
func RoundAmount(d decimal.Decimal) decimal.Decimal {
	return d.Round(AmountScale)
}
