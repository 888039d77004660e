package accounts

import (
	"context"
	"sync"

	"payrouter/internal/config"
	"payrouter/internal/models"
	"payrouter/internal/repository"

	"github.com/shopspring/decimal"
)

// Bounds are USD transfer limits for one provider, global limits filled in
// where the provider row leaves them NULL.
type Bounds struct {
	MinUSD decimal.Decimal
	MaxUSD decimal.Decimal
}

// Contains reports whether a USD amount falls inside the bounds.
func (b Bounds) Contains(usd decimal.Decimal) bool {
	return usd.GreaterThanOrEqual(b.MinUSD) && usd.LessThanOrEqual(b.MaxUSD)
}

// ProviderParams caches per-provider fee and bounds rows, falling back to
// the platform-wide limits.
type ProviderParams struct {
	globalMin decimal.Decimal
	globalMax decimal.Decimal

	mu   sync.RWMutex
	rows map[string]*models.PayoutProvider
}

// LoadProviderParams builds the registry from the payout_providers table.
func LoadProviderParams(ctx context.Context, repo repository.ReferenceRepository, cfg config.TransferConfig) (*ProviderParams, error) {
	providers, err := repo.FindPayoutProviders(ctx)
	if err != nil {
		return nil, err
	}
	params := NewProviderParams(cfg)
	for _, provider := range providers {
		params.Set(provider)
	}
	return params, nil
}

func NewProviderParams(cfg config.TransferConfig) *ProviderParams {
	return &ProviderParams{
		globalMin: cfg.MinimumUSD.Decimal,
		globalMax: cfg.MaximumUSD.Decimal,
		rows:      map[string]*models.PayoutProvider{},
	}
}

func (p *ProviderParams) Set(row *models.PayoutProvider) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rows[row.Name] = row
}

// Fee returns the provider's default fee in USD, zero for unknown providers.
func (p *ProviderParams) Fee(provider string) decimal.Decimal {
	p.mu.RLock()
	defer p.mu.RUnlock()
	row, ok := p.rows[provider]
	if !ok {
		return decimal.Zero
	}
	return row.DefaultFee
}

// Bounds returns the provider's USD limits with global fallback.
func (p *ProviderParams) Bounds(provider string) Bounds {
	p.mu.RLock()
	defer p.mu.RUnlock()
	bounds := Bounds{MinUSD: p.globalMin, MaxUSD: p.globalMax}
	row, ok := p.rows[provider]
	if !ok {
		return bounds
	}
	if row.TransferMinUSD != nil {
		bounds.MinUSD = *row.TransferMinUSD
	}
	if row.TransferMaxUSD != nil {
		bounds.MaxUSD = *row.TransferMaxUSD
	}
	return bounds
}
