package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"payrouter/internal/accounts"
	"payrouter/internal/apperr"
	"payrouter/internal/chain"
	"payrouter/internal/config"
	"payrouter/internal/country"
	"payrouter/internal/currency"
	"payrouter/internal/events"
	"payrouter/internal/models"
	"payrouter/internal/repository"
	"payrouter/internal/verification"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	testUSDCContract = "0x3c499c542cef5e3811e1192ce70d8cc03d5c3359"
	testWallet       = "0x52908400098527886E0F7030069857D2E4169EE7"
	testRelayWallet  = "0x8617E340B3D01FA5F11F306F4090FD50E238070D"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Creator{}, &models.PayoutChannel{}, &models.ProviderAccountRow{},
		&models.Transfer{}, &models.Payment{}, &models.ProxyRule{},
		&models.PayoutProvider{}, &models.CurrencyRate{}, &models.Country{},
		&models.VerificationStateRow{},
	))
	return db
}

// liveProcessor builds a Processor over an in-memory database. The Polygon
// RPC endpoint is never dialed: intent building is pure encoding.
func liveProcessor(t *testing.T) (*Processor, *gorm.DB, *events.Recorder) {
	t.Helper()
	db := testDB(t)

	chains, err := chain.NewRegistry(config.BlockchainConfig{
		Networks: map[string]config.NetworkConfig{
			"Polygon": {
				ChainID:          137,
				RPCURLs:          []string{"http://127.0.0.1:8545"},
				NumConfirmations: 200,
				Currencies: map[string]config.CurrencyConfig{
					"USDC": {Decimals: 6, ContractAddress: testUSDCContract},
				},
			},
		},
	})
	require.NoError(t, err)

	rates := currency.NewRates()
	rates.Set("USDC", decimal.NewFromInt(1))
	rates.Set("BRL", decimal.RequireFromString("0.2"))

	transferCfg := config.TransferConfig{
		MinimumUSD:  config.Decimal{Decimal: decimal.NewFromInt(1)},
		MaximumUSD:  config.Decimal{Decimal: decimal.NewFromInt(10000)},
		PlatformFee: config.Decimal{Decimal: decimal.RequireFromString("0.5")},
	}
	recorder := events.NewRecorder()
	p := New(Deps{
		DB:        db,
		Chains:    chains,
		Rates:     rates,
		Countries: country.NewRegistry(),
		Params:    accounts.NewProviderParams(transferCfg),
		Notifier:  recorder,
		Transfer:  transferCfg,
	})
	return p, db, recorder
}

func TestStartPaymentDirectCrypto(t *testing.T) {
	p, db, _ := liveProcessor(t)
	ctx := context.Background()

	creator := &models.Creator{CreatorID: uuid.New()}
	require.NoError(t, db.Create(creator).Error)
	termination, err := p.Accounts().AttachSelfCustodyWallet(ctx, creator.CreatorID, "Polygon", testWallet)
	require.NoError(t, err)

	amount := decimal.NewFromInt(50)
	transfer, intent, err := p.StartPayment(ctx, StartPaymentRequest{
		RecipientCreatorID: &creator.CreatorID,
		PaymentType:        models.CryptoPaymentType("Polygon"),
		Currency:           "USDC",
		Amount:             &amount,
	})
	require.NoError(t, err)

	assert.Equal(t, models.StatusPending, transfer.Status)
	assert.Equal(t, creator.CreatorID, transfer.CreatorID)
	assert.Nil(t, transfer.RemittanceUser)
	assert.Nil(t, transfer.TMFee)
	require.Len(t, transfer.Payments, 1)

	hop0 := transfer.Payments[0]
	assert.Equal(t, 0, hop0.PaymentIndex)
	assert.Equal(t, models.StatusPending, hop0.Status)
	assert.Equal(t, "USDC", hop0.Currency)
	assert.Equal(t, models.CryptoPaymentType("Polygon"), hop0.PaymentType)
	assert.Equal(t, accounts.ProviderSelfCustody, hop0.Provider)
	assert.Equal(t, termination.Channel.ChannelID, hop0.PayoutChannelID)
	require.NotNil(t, hop0.TotalAmount)
	assert.True(t, hop0.TotalAmount.Equal(amount))
	require.NotNil(t, hop0.ToUSDRate)
	assert.True(t, hop0.ToUSDRate.Equal(decimal.NewFromInt(1)))

	require.NotNil(t, intent)
	assert.Equal(t, "USDC", intent.Currency)
	assert.Equal(t, "0x52908400098527886e0f7030069857d2e4169ee7", intent.Data.DestinationCryptoAddress)
	assert.Equal(t, testUSDCContract, intent.Data.Transaction["to"])

	// The intent is persisted on the hop, down to the signable tx.
	stored, err := hop0.Data()
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, intent.Data.Transaction, stored.Transaction)
}

func TestStartPaymentRecipientWithoutAccounts(t *testing.T) {
	p, db, _ := liveProcessor(t)
	ctx := context.Background()

	creator := &models.Creator{CreatorID: uuid.New()}
	require.NoError(t, db.Create(creator).Error)

	amount := decimal.NewFromInt(50)
	_, _, err := p.StartPayment(ctx, StartPaymentRequest{
		RecipientCreatorID: &creator.CreatorID,
		PaymentType:        models.CryptoPaymentType("Polygon"),
		Currency:           "USDC",
		Amount:             &amount,
	})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.Payment))
	assert.EqualError(t, err, "User is not ready to accept payments")

	var count int64
	require.NoError(t, db.Model(&models.Transfer{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestStartPaymentRollsBackOnIntentFailure(t *testing.T) {
	p, db, _ := liveProcessor(t)
	ctx := context.Background()

	creator := &models.Creator{CreatorID: uuid.New()}
	require.NoError(t, db.Create(creator).Error)
	_, err := p.Accounts().AttachSelfCustodyWallet(ctx, creator.CreatorID, "Polygon", testWallet)
	require.NoError(t, err)

	// BRL has a rate so the planner passes, but Polygon cannot encode a BRL
	// payment. The transfer opened before the intent must not survive.
	amount := decimal.NewFromInt(50)
	_, _, err = p.StartPayment(ctx, StartPaymentRequest{
		RecipientCreatorID: &creator.CreatorID,
		PaymentType:        models.CryptoPaymentType("Polygon"),
		Currency:           "BRL",
		Amount:             &amount,
	})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.UnknownCurrency))

	var count int64
	require.NoError(t, db.Model(&models.Transfer{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestStartPaymentRelayedRoute(t *testing.T) {
	p, db, _ := liveProcessor(t)
	ctx := context.Background()

	countryName := "Brazil"
	recipient := &models.Creator{CreatorID: uuid.New(), Country: &countryName}
	require.NoError(t, db.Create(recipient).Error)
	require.NoError(t, db.Create(&models.VerificationStateRow{
		CreatorID: recipient.CreatorID,
		Provider:  verification.ProviderInternal,
		State:     verification.StateVerified,
	}).Error)
	bank, err := p.Accounts().AttachWindappBankAccount(
		ctx, recipient.CreatorID, "BRL", json.RawMessage(`{"branch":"001"}`))
	require.NoError(t, err)

	relay := &models.Creator{CreatorID: uuid.New()}
	require.NoError(t, db.Create(relay).Error)
	proxy, err := p.Accounts().AttachSelfCustodyWallet(ctx, relay.CreatorID, "Polygon", testRelayWallet)
	require.NoError(t, err)
	require.NoError(t, repository.NewProxyRuleRepository(db).AddRule(ctx, countryName, proxy.Channel.ChannelID))

	amount := decimal.NewFromInt(100)
	transfer, intent, err := p.StartPayment(ctx, StartPaymentRequest{
		RecipientCreatorID: &recipient.CreatorID,
		PaymentType:        models.CryptoPaymentType("Polygon"),
		Currency:           "USDC",
		Amount:             &amount,
	})
	require.NoError(t, err)

	assert.Equal(t, models.StatusPending, transfer.Status)
	require.NotNil(t, transfer.RemittanceUser)
	assert.Equal(t, relay.CreatorID, *transfer.RemittanceUser)
	require.NotNil(t, transfer.TMFee)
	assert.True(t, transfer.TMFee.Equal(decimal.RequireFromString("0.5")))
	require.Len(t, transfer.Payments, 2)

	hop0 := transfer.Payments[0]
	assert.Equal(t, models.StatusPending, hop0.Status)
	assert.Equal(t, "USDC", hop0.Currency)
	assert.Equal(t, proxy.Channel.ChannelID, hop0.PayoutChannelID)

	hop1 := transfer.Payments[1]
	assert.Equal(t, 1, hop1.PaymentIndex)
	assert.Equal(t, models.StatusCreated, hop1.Status)
	assert.Equal(t, models.PaymentTypeInternalBank, hop1.PaymentType)
	assert.Equal(t, accounts.ProviderWindapp, hop1.Provider)
	assert.Equal(t, "BRL", hop1.Currency)
	assert.Equal(t, bank.Channel.ChannelID, hop1.PayoutChannelID)
	require.NotNil(t, hop1.SenderChannelID)
	assert.Equal(t, proxy.Channel.ChannelID, *hop1.SenderChannelID)

	// The sender funds the relay wallet, not the recipient's bank.
	assert.Equal(t, "0x8617e340b3d01fa5f11f306f4090fd50e238070d", intent.Data.DestinationCryptoAddress)
}
