package accounts

import (
	"context"

	"payrouter/internal/currency"
	"payrouter/internal/models"
	"payrouter/internal/verification"

	"github.com/shopspring/decimal"
)

// windappBankAccount settles payouts through the in-house bank rails. The
// transfer itself is executed by an operator, the account only gates on
// internal verification and records the hop.
type windappBankAccount struct {
	row     *models.ProviderAccountRow
	channel *models.PayoutChannel
	states  *verification.States
	rates   *currency.Rates
}

func (a *windappBankAccount) Provider() string               { return ProviderWindapp }
func (a *windappBankAccount) Channel() *models.PayoutChannel { return a.channel }

func (a *windappBankAccount) ExternalID() string {
	if a.row.ExternalID == nil {
		return ""
	}
	return *a.row.ExternalID
}

func (a *windappBankAccount) SupportedPaymentTypes() []string {
	if !a.states.IsVerified(verification.ProviderInternal) {
		return nil
	}
	return []string{models.PaymentTypeInternalBank}
}

func (a *windappBankAccount) ReceivePayment(ctx context.Context, req ReceiveRequest) (*PaymentIntent, error) {
	if err := a.states.CheckRequirement(verification.ProviderInternal); err != nil {
		return nil, err
	}
	rate, err := a.rates.Rate(req.Currency)
	if err != nil {
		return nil, err
	}
	// Internal hop, there is nothing for the sender to act on.
	return &PaymentIntent{Currency: req.Currency, ToUSDRate: rate}, nil
}

func (a *windappBankAccount) ValidateExistingTransaction(ctx context.Context, externalID, currencySymbol string, amount decimal.Decimal) error {
	// Settlement ids are issued by the operator's own bank run, there is no
	// external record to cross-check.
	return nil
}

func (a *windappBankAccount) Remove(ctx context.Context) error {
	return nil
}
