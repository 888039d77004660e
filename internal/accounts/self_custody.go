package accounts

import (
	"context"

	"payrouter/internal/chain"
	"payrouter/internal/currency"
	"payrouter/internal/models"

	"github.com/shopspring/decimal"
)

// selfCustodyAccount receives on-chain payments straight to the creator's
// own wallet. No provider-side resources exist, the account is pure routing
// metadata plus on-chain verification.
type selfCustodyAccount struct {
	row     *models.ProviderAccountRow
	channel *models.PayoutChannel
	data    *CryptoChannelData
	network *chain.Network
	rates   *currency.Rates
}

func (a *selfCustodyAccount) Provider() string               { return ProviderSelfCustody }
func (a *selfCustodyAccount) Channel() *models.PayoutChannel { return a.channel }

func (a *selfCustodyAccount) ExternalID() string {
	return a.data.Address
}

func (a *selfCustodyAccount) SupportedPaymentTypes() []string {
	return []string{models.CryptoPaymentType(a.network.Name)}
}

func (a *selfCustodyAccount) ReceivePayment(ctx context.Context, req ReceiveRequest) (*PaymentIntent, error) {
	tx, err := a.network.CreateTransaction(req.Currency, a.data.Address, req.Amount)
	if err != nil {
		return nil, err
	}
	rate, err := a.rates.Rate(req.Currency)
	if err != nil {
		return nil, err
	}
	return &PaymentIntent{
		Data: models.PaymentData{
			Transaction:              tx,
			DestinationCryptoAddress: a.data.Address,
		},
		Currency:  req.Currency,
		ToUSDRate: rate,
	}, nil
}

func (a *selfCustodyAccount) ValidateExistingTransaction(ctx context.Context, externalID, currencySymbol string, amount decimal.Decimal) error {
	return a.network.CheckTransaction(ctx, externalID, currencySymbol, amount, a.data.Address)
}

func (a *selfCustodyAccount) Remove(ctx context.Context) error {
	// Nothing lives on the provider side for a self-custody wallet.
	return nil
}
