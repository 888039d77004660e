package accounts

import (
	"context"
	"encoding/json"
	"testing"

	"payrouter/internal/chain"
	"payrouter/internal/clients"
	"payrouter/internal/config"
	"payrouter/internal/currency"
	"payrouter/internal/models"
	"payrouter/internal/repository"
	"payrouter/internal/verification"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	polygonUSDC = "0x3c499c542cef5e3811e1192ce70d8cc03d5c3359"
	wallet      = "0x52908400098527886e0f7030069857d2e4169ee7"
)

type stubVerifications struct {
	rows []*models.VerificationStateRow
}

func (s *stubVerifications) FindStates(ctx context.Context, creatorID uuid.UUID) ([]*models.VerificationStateRow, error) {
	return s.rows, nil
}

func verifiedBy(t *testing.T, providers ...string) *verification.States {
	t.Helper()
	stub := &stubVerifications{}
	for _, provider := range providers {
		stub.rows = append(stub.rows, &models.VerificationStateRow{
			Provider: provider,
			State:    verification.StateVerified,
		})
	}
	states, err := verification.LoadStates(context.Background(), stub, uuid.New())
	require.NoError(t, err)
	return states
}

func polygonNetwork(t *testing.T) *chain.Network {
	t.Helper()
	network, err := chain.NewNetwork("Polygon", config.NetworkConfig{
		ChainID:          137,
		RPCURLs:          []string{"http://127.0.0.1:8545"},
		NumConfirmations: 200,
		Currencies: map[string]config.CurrencyConfig{
			"POL":  {Decimals: 18},
			"USDC": {Decimals: 6, ContractAddress: polygonUSDC},
		},
	})
	require.NoError(t, err)
	return network
}

func usdRates() *currency.Rates {
	rates := currency.NewRates()
	rates.Set("USDC", decimal.NewFromInt(1))
	return rates
}

func cryptoChannel(t *testing.T) (*models.PayoutChannel, *CryptoChannelData) {
	t.Helper()
	data := &CryptoChannelData{Network: "Polygon", Address: wallet}
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	return &models.PayoutChannel{
		ChannelID:   uuid.New(),
		CreatorID:   uuid.New(),
		ChannelType: models.ChannelTypeCrypto,
		Data:        string(raw),
	}, data
}

func TestSelfCustodyReceivePayment(t *testing.T) {
	channel, data := cryptoChannel(t)
	account := &selfCustodyAccount{
		row:     &models.ProviderAccountRow{ChannelID: channel.ChannelID, Provider: ProviderSelfCustody},
		channel: channel,
		data:    data,
		network: polygonNetwork(t),
		rates:   usdRates(),
	}

	assert.Equal(t, []string{"crypto:Polygon"}, account.SupportedPaymentTypes())

	intent, err := account.ReceivePayment(context.Background(), ReceiveRequest{
		Amount:   decimal.NewFromInt(100),
		Currency: "USDC",
	})
	require.NoError(t, err)
	assert.Equal(t, "USDC", intent.Currency)
	assert.Equal(t, wallet, intent.Data.DestinationCryptoAddress)
	assert.Equal(t, polygonUSDC, intent.Data.Transaction["to"])
	assert.Equal(t,
		"0xa9059cbb"+
			"00000000000000000000000052908400098527886e0f7030069857d2e4169ee7"+
			"0000000000000000000000000000000000000000000000000000000005f5e100",
		intent.Data.Transaction["data"])
	assert.True(t, intent.ToUSDRate.Equal(decimal.NewFromInt(1)))
}

func TestStripeCapabilitiesGatedByVerification(t *testing.T) {
	externalID := "acct_123"
	channel := &models.PayoutChannel{
		ChannelID:   uuid.New(),
		CreatorID:   uuid.New(),
		ChannelType: models.ChannelTypeBankAccount,
	}
	row := &models.ProviderAccountRow{ChannelID: channel.ChannelID, Provider: ProviderStripe, ExternalID: &externalID}

	unverified := &stripeBankAccount{row: row, channel: channel, states: verifiedBy(t)}
	assert.Empty(t, unverified.SupportedPaymentTypes())

	verified := &stripeBankAccount{row: row, channel: channel, states: verifiedBy(t, verification.ProviderStripe)}
	assert.ElementsMatch(t,
		[]string{models.PaymentTypeCard, models.PaymentTypeInternalBank},
		verified.SupportedPaymentTypes())
}

func TestWindappCapabilitiesGatedByVerification(t *testing.T) {
	channel := &models.PayoutChannel{ChannelID: uuid.New(), ChannelType: models.ChannelTypeBankAccount}
	row := &models.ProviderAccountRow{ChannelID: channel.ChannelID, Provider: ProviderWindapp}

	unverified := &windappBankAccount{row: row, channel: channel, states: verifiedBy(t)}
	assert.Empty(t, unverified.SupportedPaymentTypes())

	verified := &windappBankAccount{row: row, channel: channel, states: verifiedBy(t, verification.ProviderInternal), rates: usdRates()}
	assert.Equal(t, []string{models.PaymentTypeInternalBank}, verified.SupportedPaymentTypes())

	intent, err := verified.ReceivePayment(context.Background(), ReceiveRequest{
		Amount:   decimal.NewFromInt(10),
		Currency: "USDC",
	})
	require.NoError(t, err)
	assert.Empty(t, intent.Data.PaymentURL)
	assert.Nil(t, intent.Data.Transaction)
}

func TestMercuryoOnrampNeedsSumsub(t *testing.T) {
	channel, data := cryptoChannel(t)
	widget := clients.NewMercuryoWidget(config.MercuryoConfig{WidgetID: "w", Secret: "s"})
	base := &mercuryoAccount{
		row:     &models.ProviderAccountRow{ChannelID: channel.ChannelID, Provider: ProviderMercuryo},
		channel: channel,
		data:    data,
		network: polygonNetwork(t),
		widget:  widget,
		rates:   usdRates(),
	}

	base.states = verifiedBy(t)
	assert.Equal(t, []string{models.PaymentTypeCard}, base.SupportedPaymentTypes())

	base.states = verifiedBy(t, verification.ProviderSumsub)
	assert.ElementsMatch(t,
		[]string{models.PaymentTypeCard, models.PaymentTypeOnramp},
		base.SupportedPaymentTypes())

	intent, err := base.ReceivePayment(context.Background(), ReceiveRequest{
		Amount:   decimal.NewFromInt(25),
		Currency: "USDC",
	})
	require.NoError(t, err)
	assert.Contains(t, intent.Data.PaymentURL, "address="+wallet)
	assert.Contains(t, intent.Data.PaymentURL, "signature="+widget.Sign(wallet))
}

func TestProviderParamsFallback(t *testing.T) {
	min5 := decimal.NewFromInt(5)
	params := NewProviderParams(config.TransferConfig{
		MinimumUSD: config.Decimal{Decimal: decimal.NewFromInt(1)},
		MaximumUSD: config.Decimal{Decimal: decimal.NewFromInt(10000)},
	})
	params.Set(&models.PayoutProvider{
		Name:           "stripe",
		DefaultFee:     decimal.NewFromInt(3),
		TransferMinUSD: &min5,
	})

	bounds := params.Bounds("stripe")
	assert.True(t, bounds.MinUSD.Equal(min5))
	assert.True(t, bounds.MaxUSD.Equal(decimal.NewFromInt(10000)), "NULL max falls back to the global limit")
	assert.True(t, params.Fee("stripe").Equal(decimal.NewFromInt(3)))

	unknown := params.Bounds("circle")
	assert.True(t, unknown.MinUSD.Equal(decimal.NewFromInt(1)))
	assert.True(t, params.Fee("circle").IsZero())
}

func TestTerminationAccountPaymentTypeLookup(t *testing.T) {
	channel, data := cryptoChannel(t)
	self := &selfCustodyAccount{
		row:     &models.ProviderAccountRow{ChannelID: channel.ChannelID, Provider: ProviderSelfCustody},
		channel: channel,
		data:    data,
		network: polygonNetwork(t),
		rates:   usdRates(),
	}
	termination := &TerminationAccount{Channel: channel, Accounts: []ProviderAccount{self}}

	assert.True(t, termination.SupportsPaymentType("crypto:Polygon"))
	assert.False(t, termination.SupportsPaymentType("card"))

	found, err := termination.AccountForProvider(ProviderSelfCustody)
	require.NoError(t, err)
	assert.Equal(t, self, found)

	_, err = termination.AccountForProvider(ProviderCircle)
	assert.Error(t, err)
}

var _ repository.VerificationRepository = (*stubVerifications)(nil)
