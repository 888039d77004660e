package routing

import (
	"context"
	"sort"
	"strings"

	"payrouter/internal/accounts"
	"payrouter/internal/apperr"
	"payrouter/internal/currency"
	"payrouter/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RouteStep is one hop of a route: a provider account to pay into and the
// payment type the sender funds it with.
type RouteStep struct {
	Account     accounts.ProviderAccount
	PaymentType string
}

// TransferRoute is a settlement path to the recipient, one hop direct or
// two hops through a relay channel.
type TransferRoute struct {
	First          RouteStep
	Second         *RouteStep
	RemittanceUser *uuid.UUID
	Fee            decimal.Decimal
	Bounds         accounts.Bounds
}

// Recipient is the destination of a transfer. Creator is set when routing
// to a full creator; routing to a bare channel leaves it nil and disables
// relayed routes.
type Recipient struct {
	Creator  *models.Creator
	Accounts []*accounts.TerminationAccount
}

// ProxySource resolves the relay accounts registered for a country.
// Satisfied by accounts.Factory.
type ProxySource interface {
	ProxyAccountsForCountry(ctx context.Context, countryName string) ([]*accounts.TerminationAccount, error)
}

// Planner enumerates and prices routes.
type Planner struct {
	proxies ProxySource
	params  *accounts.ProviderParams
	rates   *currency.Rates
}

func NewPlanner(proxies ProxySource, params *accounts.ProviderParams, rates *currency.Rates) *Planner {
	return &Planner{proxies: proxies, params: params, rates: rates}
}

func isDirectPaymentType(paymentType string) bool {
	return paymentType == models.PaymentTypeCard ||
		strings.HasPrefix(paymentType, models.ChannelTypeCrypto+":")
}

func isCryptoPaymentType(paymentType string) bool {
	return strings.HasPrefix(paymentType, models.ChannelTypeCrypto+":")
}

func isFinalHopPaymentType(paymentType string) bool {
	return paymentType == models.PaymentTypeInternalBank || isCryptoPaymentType(paymentType)
}

// AvailableRoutes lists every route ending at the recipient: one direct
// route per (provider account, payment type) pair, plus relayed routes
// through the proxy accounts of the recipient's country when the recipient
// is a full creator.
func (p *Planner) AvailableRoutes(ctx context.Context, recipient Recipient) ([]*TransferRoute, error) {
	var routes []*TransferRoute

	for _, termination := range recipient.Accounts {
		for _, account := range termination.Accounts {
			for _, paymentType := range account.SupportedPaymentTypes() {
				if !isDirectPaymentType(paymentType) {
					continue
				}
				routes = append(routes, &TransferRoute{
					First:  RouteStep{Account: account, PaymentType: paymentType},
					Fee:    p.params.Fee(account.Provider()),
					Bounds: p.params.Bounds(account.Provider()),
				})
			}
		}
	}

	if recipient.Creator != nil && recipient.Creator.Country != nil {
		relayed, err := p.relayedRoutes(ctx, recipient)
		if err != nil {
			return nil, err
		}
		routes = append(routes, relayed...)
	}

	return routes, nil
}

func (p *Planner) relayedRoutes(ctx context.Context, recipient Recipient) ([]*TransferRoute, error) {
	proxies, err := p.proxies.ProxyAccountsForCountry(ctx, *recipient.Creator.Country)
	if err != nil {
		return nil, err
	}

	var routes []*TransferRoute
	for _, proxy := range proxies {
		remittanceUser := proxy.Channel.CreatorID
		for _, proxyAccount := range proxy.Accounts {
			for _, firstType := range proxyAccount.SupportedPaymentTypes() {
				// The sender always funds the relay on chain.
				if !isCryptoPaymentType(firstType) {
					continue
				}
				for _, termination := range recipient.Accounts {
					for _, finalAccount := range termination.Accounts {
						for _, finalType := range finalAccount.SupportedPaymentTypes() {
							if !isFinalHopPaymentType(finalType) {
								continue
							}
							routes = append(routes, p.combine(
								proxyAccount, firstType, finalAccount, finalType, remittanceUser))
						}
					}
				}
			}
		}
	}
	return routes, nil
}

func (p *Planner) combine(first accounts.ProviderAccount, firstType string, second accounts.ProviderAccount, secondType string, remittanceUser uuid.UUID) *TransferRoute {
	firstBounds := p.params.Bounds(first.Provider())
	secondBounds := p.params.Bounds(second.Provider())

	bounds := firstBounds
	if secondBounds.MinUSD.GreaterThan(bounds.MinUSD) {
		bounds.MinUSD = secondBounds.MinUSD
	}
	if secondBounds.MaxUSD.LessThan(bounds.MaxUSD) {
		bounds.MaxUSD = secondBounds.MaxUSD
	}

	return &TransferRoute{
		First:          RouteStep{Account: first, PaymentType: firstType},
		Second:         &RouteStep{Account: second, PaymentType: secondType},
		RemittanceUser: &remittanceUser,
		Fee:            p.params.Fee(first.Provider()).Add(p.params.Fee(second.Provider())),
		Bounds:         bounds,
	}
}

// CheapestRoute picks the lowest-fee route for a first-hop payment type,
// enforcing amount bounds when an amount is given.
func (p *Planner) CheapestRoute(ctx context.Context, recipient Recipient, paymentType string, amount *decimal.Decimal, currencySymbol string) (*TransferRoute, error) {
	routes, err := p.AvailableRoutes(ctx, recipient)
	if err != nil {
		return nil, err
	}
	if len(routes) == 0 {
		return nil, apperr.New(apperr.Payment, "User is not ready to accept payments")
	}

	var candidates []*TransferRoute
	for _, route := range routes {
		if route.First.PaymentType == paymentType {
			candidates = append(candidates, route)
		}
	}
	if len(candidates) == 0 {
		return nil, apperr.New(apperr.Payment, "Routes not found. Try to select another payment type")
	}

	if amount != nil {
		candidates, err = p.filterByAmount(candidates, *amount, currencySymbol)
		if err != nil {
			return nil, err
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Fee.LessThan(candidates[j].Fee)
	})
	return candidates[0], nil
}

func (p *Planner) filterByAmount(candidates []*TransferRoute, amount decimal.Decimal, currencySymbol string) ([]*TransferRoute, error) {
	usd, err := p.rates.ToUSD(amount, currencySymbol)
	if err != nil {
		return nil, err
	}

	minUSD := candidates[0].Bounds.MinUSD
	maxUSD := candidates[0].Bounds.MaxUSD
	for _, route := range candidates[1:] {
		if route.Bounds.MinUSD.LessThan(minUSD) {
			minUSD = route.Bounds.MinUSD
		}
		if route.Bounds.MaxUSD.GreaterThan(maxUSD) {
			maxUSD = route.Bounds.MaxUSD
		}
	}
	if usd.LessThan(minUSD) {
		limit, err := p.rates.FromUSD(minUSD, currencySymbol)
		if err != nil {
			return nil, err
		}
		return nil, apperr.New(apperr.Payment,
			"The min amount for this payment route is %s %s", limit.RoundUp(2), currencySymbol)
	}
	if usd.GreaterThan(maxUSD) {
		limit, err := p.rates.FromUSD(maxUSD, currencySymbol)
		if err != nil {
			return nil, err
		}
		return nil, apperr.New(apperr.Payment,
			"The max amount for this payment route is %s %s", limit.RoundDown(2), currencySymbol)
	}

	var inBounds []*TransferRoute
	for _, route := range candidates {
		if route.Bounds.Contains(usd) {
			inBounds = append(inBounds, route)
		}
	}
	if len(inBounds) == 0 {
		return nil, apperr.New(apperr.Payment, "Routes not found. Try to select another payment type")
	}
	return inBounds, nil
}
