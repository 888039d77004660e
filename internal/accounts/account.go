package accounts

import (
	"context"
	"encoding/json"

	"payrouter/internal/apperr"
	"payrouter/internal/models"

	"github.com/shopspring/decimal"
)

// Payout provider names as stored in provider_accounts.provider and in the
// countries table.
const (
	ProviderSelfCustody = "self_custody"
	ProviderStripe      = "stripe"
	ProviderWindapp     = "windapp"
	ProviderMercuryo    = "mercuryo"
	ProviderCircle      = "circle"
)

// PaymentIntent is what a provider hands the sender to fund a hop: a
// redirect URL, a raw signable chain transaction, or nothing for internal
// hops.
type PaymentIntent struct {
	Data       models.PaymentData
	Currency   string
	ExternalID string
	ToUSDRate  decimal.Decimal
}

// ReceiveRequest describes the payment a provider account is asked to accept.
type ReceiveRequest struct {
	TransferID string
	Amount     decimal.Decimal
	Currency   string
	Message    string
}

// ProviderAccount is one payment provider bound to one payout channel. The
// payment types it accepts derive from the owner's live verification state,
// never from stored flags.
type ProviderAccount interface {
	Provider() string
	Channel() *models.PayoutChannel
	ExternalID() string
	SupportedPaymentTypes() []string
	ReceivePayment(ctx context.Context, req ReceiveRequest) (*PaymentIntent, error)
	ValidateExistingTransaction(ctx context.Context, externalID, currency string, amount decimal.Decimal) error
	Remove(ctx context.Context) error
}

// CryptoChannelData is the jsonb payload of a crypto payout channel.
type CryptoChannelData struct {
	Network string `json:"network"`
	Address string `json:"address"`
}

func ParseCryptoChannelData(channel *models.PayoutChannel) (*CryptoChannelData, error) {
	if channel.ChannelType != models.ChannelTypeCrypto {
		return nil, apperr.Internalf("Channel %s is not a crypto channel", channel.ChannelID)
	}
	data := &CryptoChannelData{}
	if err := json.Unmarshal([]byte(channel.Data), data); err != nil {
		return nil, apperr.Internalf("Channel %s has malformed data: %v", channel.ChannelID, err)
	}
	return data, nil
}

// BankChannelData is the jsonb payload of a bank account channel. Account
// details stay opaque to the router, only the country matters for routing.
type BankChannelData struct {
	Country string          `json:"country"`
	Details json.RawMessage `json:"details,omitempty"`
}

func ParseBankChannelData(channel *models.PayoutChannel) (*BankChannelData, error) {
	if channel.ChannelType != models.ChannelTypeBankAccount {
		return nil, apperr.Internalf("Channel %s is not a bank account channel", channel.ChannelID)
	}
	data := &BankChannelData{}
	if err := json.Unmarshal([]byte(channel.Data), data); err != nil {
		return nil, apperr.Internalf("Channel %s has malformed data: %v", channel.ChannelID, err)
	}
	return data, nil
}
