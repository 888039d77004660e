package accounts

import (
	"context"
	"fmt"

	"payrouter/internal/apperr"
	"payrouter/internal/clients"
	"payrouter/internal/currency"
	"payrouter/internal/models"
	"payrouter/internal/verification"

	"github.com/shopspring/decimal"
)

// stripeBankAccount settles card and internal bank payments through a Stripe
// connected account. Capabilities stay empty until Stripe has verified the
// owner.
type stripeBankAccount struct {
	row        *models.ProviderAccountRow
	channel    *models.PayoutChannel
	states     *verification.States
	client     *clients.StripeClient
	rates      *currency.Rates
	userUIBase string
}

func (a *stripeBankAccount) Provider() string               { return ProviderStripe }
func (a *stripeBankAccount) Channel() *models.PayoutChannel { return a.channel }

func (a *stripeBankAccount) ExternalID() string {
	if a.row.ExternalID == nil {
		return ""
	}
	return *a.row.ExternalID
}

func (a *stripeBankAccount) SupportedPaymentTypes() []string {
	if !a.states.IsVerified(verification.ProviderStripe) {
		return nil
	}
	return []string{models.PaymentTypeCard, models.PaymentTypeInternalBank}
}

func (a *stripeBankAccount) ReceivePayment(ctx context.Context, req ReceiveRequest) (*PaymentIntent, error) {
	if err := a.states.CheckRequirement(verification.ProviderStripe); err != nil {
		return nil, err
	}
	if a.ExternalID() == "" {
		return nil, apperr.New(apperr.Account, "Stripe account for channel %s is not onboarded", a.channel.ChannelID)
	}
	rate, err := a.rates.Rate(req.Currency)
	if err != nil {
		return nil, err
	}

	session, err := a.client.CreateCheckoutSession(ctx, &clients.CheckoutSessionRequest{
		AccountID:   a.ExternalID(),
		Amount:      req.Amount,
		Currency:    req.Currency,
		Description: req.Message,
		SuccessURL:  fmt.Sprintf("%s/transfer/%s/success", a.userUIBase, req.TransferID),
		CancelURL:   fmt.Sprintf("%s/transfer/%s/cancel", a.userUIBase, req.TransferID),
	})
	if err != nil {
		return nil, apperr.New(apperr.Payment, "Failed to start a card payment: %v", err)
	}

	return &PaymentIntent{
		Data:       models.PaymentData{PaymentURL: session.URL},
		Currency:   req.Currency,
		ExternalID: session.ID,
		ToUSDRate:  rate,
	}, nil
}

func (a *stripeBankAccount) ValidateExistingTransaction(ctx context.Context, externalID, currencySymbol string, amount decimal.Decimal) error {
	session, err := a.client.GetCheckoutSession(ctx, externalID)
	if err != nil {
		return apperr.New(apperr.TrxCheckError, "Failed to look up Stripe session %s: %v", externalID, err)
	}
	if session.PaymentStatus != "paid" {
		return apperr.New(apperr.TrxCheckError, "Stripe session %s is not paid", externalID)
	}
	return nil
}

func (a *stripeBankAccount) Remove(ctx context.Context) error {
	// The connected account stays on the Stripe side, re-attaching the
	// channel reuses it.
	return nil
}
