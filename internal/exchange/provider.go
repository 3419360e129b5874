// Package exchange converts amounts between currencies.
package exchange

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"async-transfers/internal/errors"
)

// ConversionScale is the number of decimal places kept after a cross-currency
// conversion. It matches the scale of the balance and amount columns.
const ConversionScale = 8

// RateProvider converts amount from one currency to another.
type RateProvider interface {
	Convert(ctx context.Context, amount decimal.Decimal, from, to string) (decimal.Decimal, error)
}

// Table converts through fixed rates expressed as units of each currency per
// one unit of a common base currency.
type Table struct {
	rates map[string]decimal.Decimal
}

var _ RateProvider = (*Table)(nil)

// NewTable builds a rate table. Every rate must be positive.
func NewTable(rates map[string]decimal.Decimal) (*Table, error) {
	table := &Table{rates: make(map[string]decimal.Decimal, len(rates))}
	for currency, rate := range rates {
		if !rate.IsPositive() {
			return nil, fmt.Errorf("exchange rate for %s must be positive, got %s", currency, rate)
		}
		table.rates[strings.ToUpper(currency)] = rate
	}
	return table, nil
}

// ParseRates parses "USD:1,EUR:0.92" into a rate map.
func ParseRates(raw string) (map[string]decimal.Decimal, error) {
	rates := make(map[string]decimal.Decimal)
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}

		currency, value, ok := strings.Cut(pair, ":")
		if !ok {
			return nil, fmt.Errorf("invalid exchange rate entry %q, want CODE:RATE", pair)
		}

		rate, err := decimal.NewFromString(strings.TrimSpace(value))
		if err != nil {
			return nil, fmt.Errorf("invalid exchange rate for %s: %w", currency, err)
		}
		rates[strings.ToUpper(strings.TrimSpace(currency))] = rate
	}
	return rates, nil
}

// Supports reports whether currency has a rate.
func (t *Table) Supports(currency string) bool {
	_, ok := t.rates[strings.ToUpper(currency)]
	return ok
}

// Currencies returns the supported currency codes in sorted order.
func (t *Table) Currencies() []string {
	currencies := make([]string, 0, len(t.rates))
	for currency := range t.rates {
		currencies = append(currencies, currency)
	}
	sort.Strings(currencies)
	return currencies
}

func (t *Table) Convert(ctx context.Context, amount decimal.Decimal, from, to string) (decimal.Decimal, error) {
	if strings.EqualFold(from, to) {
		return amount, nil
	}

	fromRate, ok := t.rates[strings.ToUpper(from)]
	if !ok {
		return decimal.Zero, errors.ErrUnsupportedCurrency.WithDetails(from)
	}
	toRate, ok := t.rates[strings.ToUpper(to)]
	if !ok {
		return decimal.Zero, errors.ErrUnsupportedCurrency.WithDetails(to)
	}

	return amount.Mul(toRate).Div(fromRate).Round(ConversionScale), nil
}
