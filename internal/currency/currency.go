package currency

import (
	"context"
	"sync"

	"payrouter/internal/apperr"
	"payrouter/internal/repository"

	"github.com/shopspring/decimal"
)

// Rates converts between payout currencies and USD. USD always rates 1,
// every other rate comes from the currency_rates table.
type Rates struct {
	mu    sync.RWMutex
	toUSD map[string]decimal.Decimal
}

func NewRates() *Rates {
	return &Rates{toUSD: map[string]decimal.Decimal{"USD": decimal.NewFromInt(1)}}
}

// Load replaces the rate table from the database.
func Load(ctx context.Context, repo repository.ReferenceRepository) (*Rates, error) {
	rows, err := repo.FindCurrencyRates(ctx)
	if err != nil {
		return nil, err
	}
	rates := NewRates()
	for _, row := range rows {
		rates.Set(row.Symbol, row.ToUSD)
	}
	return rates, nil
}

func (r *Rates) Set(symbol string, toUSD decimal.Decimal) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if symbol == "USD" {
		return
	}
	r.toUSD[symbol] = toUSD
}

// Rate returns the USD value of one unit of symbol.
func (r *Rates) Rate(symbol string) (decimal.Decimal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rate, ok := r.toUSD[symbol]
	if !ok {
		return decimal.Decimal{}, apperr.New(apperr.UnknownCurrency, "Unknown currency %s", symbol)
	}
	return rate, nil
}

// ToUSD converts an amount of symbol into USD.
func (r *Rates) ToUSD(amount decimal.Decimal, symbol string) (decimal.Decimal, error) {
	rate, err := r.Rate(symbol)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return amount.Mul(rate), nil
}

// FromUSD converts a USD amount into symbol.
func (r *Rates) FromUSD(amount decimal.Decimal, symbol string) (decimal.Decimal, error) {
	rate, err := r.Rate(symbol)
	if err != nil {
		return decimal.Decimal{}, err
	}
	if rate.IsZero() {
		return decimal.Decimal{}, apperr.New(apperr.UnknownCurrency, "Currency %s has no usable rate", symbol)
	}
	return amount.Div(rate), nil
}
