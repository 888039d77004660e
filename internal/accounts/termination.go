package accounts

import (
	"payrouter/internal/apperr"
	"payrouter/internal/models"
)

// TerminationAccount is a payout channel together with every provider bound
// to it: the "can this destination receive X" aggregate.
type TerminationAccount struct {
	Channel  *models.PayoutChannel
	Accounts []ProviderAccount
}

// AccountForProvider returns the channel's binding for one provider.
func (t *TerminationAccount) AccountForProvider(provider string) (ProviderAccount, error) {
	for _, account := range t.Accounts {
		if account.Provider() == provider {
			return account, nil
		}
	}
	return nil, apperr.Internalf("Provider %s account for %s not found", provider, t.Channel.ChannelID)
}

// AccountsForPaymentType returns every provider account on the channel that
// currently accepts the payment type.
func (t *TerminationAccount) AccountsForPaymentType(paymentType string) []ProviderAccount {
	var out []ProviderAccount
	for _, account := range t.Accounts {
		for _, supported := range account.SupportedPaymentTypes() {
			if supported == paymentType {
				out = append(out, account)
				break
			}
		}
	}
	return out
}

// SupportsPaymentType reports whether any bound provider accepts the type.
func (t *TerminationAccount) SupportsPaymentType(paymentType string) bool {
	return len(t.AccountsForPaymentType(paymentType)) > 0
}
