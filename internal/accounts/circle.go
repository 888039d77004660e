package accounts

import (
	"context"

	"payrouter/internal/apperr"
	"payrouter/internal/chain"
	"payrouter/internal/clients"
	"payrouter/internal/currency"
	"payrouter/internal/models"

	"github.com/shopspring/decimal"
)

// circleNetwork is the only chain Circle managed wallets are offered on.
const circleNetwork = "Polygon"

// circleAccount receives on-chain payments into a Circle managed wallet.
// The external id is Circle's wallet id, settlement is confirmed against
// Circle's transfer records instead of raw chain reads.
type circleAccount struct {
	row     *models.ProviderAccountRow
	channel *models.PayoutChannel
	data    *CryptoChannelData
	network *chain.Network
	client  *clients.CircleClient
	rates   *currency.Rates
}

func (a *circleAccount) Provider() string               { return ProviderCircle }
func (a *circleAccount) Channel() *models.PayoutChannel { return a.channel }

func (a *circleAccount) ExternalID() string {
	if a.row.ExternalID == nil {
		return ""
	}
	return *a.row.ExternalID
}

func (a *circleAccount) SupportedPaymentTypes() []string {
	return []string{models.CryptoPaymentType(circleNetwork)}
}

func (a *circleAccount) ReceivePayment(ctx context.Context, req ReceiveRequest) (*PaymentIntent, error) {
	if !a.network.SupportsCurrency(req.Currency) {
		return nil, apperr.New(apperr.UnknownCurrency, "Unknown currency %s on %s", req.Currency, a.network.Name)
	}
	rate, err := a.rates.Rate(req.Currency)
	if err != nil {
		return nil, err
	}
	return &PaymentIntent{
		Data:      models.PaymentData{DestinationCryptoAddress: a.data.Address},
		Currency:  req.Currency,
		ToUSDRate: rate,
	}, nil
}

func (a *circleAccount) ValidateExistingTransaction(ctx context.Context, externalID, currencySymbol string, amount decimal.Decimal) error {
	transfer, err := a.client.GetTransfer(ctx, externalID)
	if err != nil {
		return apperr.New(apperr.TrxCheckError, "Failed to look up Circle transfer %s: %v", externalID, err)
	}
	if transfer.Status != "complete" {
		return apperr.New(apperr.TrxCheckError, "Circle transfer %s is not complete", externalID)
	}
	if transfer.Amount.Currency != currencySymbol {
		return apperr.New(apperr.TrxCheckError, "Circle transfer %s settles a different currency", externalID)
	}
	got, err := decimal.NewFromString(transfer.Amount.Amount)
	if err != nil || !got.Equal(amount) {
		return apperr.New(apperr.TrxCheckError, "Circle transfer %s settles a different amount", externalID)
	}
	return nil
}

func (a *circleAccount) Remove(ctx context.Context) error {
	return nil
}
