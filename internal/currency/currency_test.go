package currency

import (
	"testing"

	"payrouter/internal/apperr"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRatesConversion(t *testing.T) {
	rates := NewRates()
	rates.Set("EUR", decimal.RequireFromString("1.1"))

	usd, err := rates.ToUSD(decimal.NewFromInt(100), "EUR")
	require.NoError(t, err)
	assert.True(t, usd.Equal(decimal.RequireFromString("110")))

	back, err := rates.FromUSD(usd, "EUR")
	require.NoError(t, err)
	assert.True(t, back.Equal(decimal.NewFromInt(100)))
}

func TestUSDAlwaysRatesOne(t *testing.T) {
	rates := NewRates()
	// The table can never override USD.
	rates.Set("USD", decimal.NewFromInt(2))

	rate, err := rates.Rate("USD")
	require.NoError(t, err)
	assert.True(t, rate.Equal(decimal.NewFromInt(1)))
}

func TestUnknownCurrency(t *testing.T) {
	rates := NewRates()

	_, err := rates.ToUSD(decimal.NewFromInt(1), "XYZ")
	assert.True(t, apperr.Is(err, apperr.UnknownCurrency))
}
