package accounts

import (
	"context"

	"payrouter/internal/apperr"
	"payrouter/internal/chain"
	"payrouter/internal/clients"
	"payrouter/internal/currency"
	"payrouter/internal/models"
	"payrouter/internal/verification"

	"github.com/shopspring/decimal"
)

// mercuryoNetworks are the chains the widget can deliver to.
var mercuryoNetworks = map[string]bool{
	"Ethereum": true,
	"Polygon":  true,
}

// mercuryoAccount lets a sender fund a crypto wallet with a card through the
// Mercuryo widget. Card payments work for anyone, the fiat on-ramp needs a
// Sumsub-verified owner.
type mercuryoAccount struct {
	row     *models.ProviderAccountRow
	channel *models.PayoutChannel
	data    *CryptoChannelData
	network *chain.Network
	states  *verification.States
	widget  *clients.MercuryoWidget
	rates   *currency.Rates
}

func (a *mercuryoAccount) Provider() string               { return ProviderMercuryo }
func (a *mercuryoAccount) Channel() *models.PayoutChannel { return a.channel }

func (a *mercuryoAccount) ExternalID() string {
	return a.data.Address
}

func (a *mercuryoAccount) SupportedPaymentTypes() []string {
	types := []string{models.PaymentTypeCard}
	if a.states.IsVerified(verification.ProviderSumsub) {
		types = append(types, models.PaymentTypeOnramp)
	}
	return types
}

func (a *mercuryoAccount) ReceivePayment(ctx context.Context, req ReceiveRequest) (*PaymentIntent, error) {
	if !a.network.SupportsCurrency(req.Currency) {
		return nil, apperr.New(apperr.UnknownCurrency, "Unknown currency %s on %s", req.Currency, a.network.Name)
	}
	rate, err := a.rates.Rate(req.Currency)
	if err != nil {
		return nil, err
	}
	return &PaymentIntent{
		Data: models.PaymentData{
			PaymentURL:               a.widget.PaymentURL(a.data.Address, req.Currency, a.network.Name, req.Amount),
			DestinationCryptoAddress: a.data.Address,
		},
		Currency:  req.Currency,
		ToUSDRate: rate,
	}, nil
}

func (a *mercuryoAccount) ValidateExistingTransaction(ctx context.Context, externalID, currencySymbol string, amount decimal.Decimal) error {
	// Delivery lands on chain, verify it the same way as a direct wallet
	// payment.
	return a.network.CheckTransaction(ctx, externalID, currencySymbol, amount, a.data.Address)
}

func (a *mercuryoAccount) Remove(ctx context.Context) error {
	return nil
}
