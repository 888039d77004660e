package accounts

import (
	"context"
	"encoding/json"
	"time"

	"payrouter/internal/apperr"
	"payrouter/internal/chain"
	"payrouter/internal/clients"
	"payrouter/internal/country"
	"payrouter/internal/currency"
	"payrouter/internal/events"
	"payrouter/internal/models"
	"payrouter/internal/repository"
	"payrouter/internal/verification"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Factory loads termination accounts and runs the attach/remove flows.
// All lookups go through the repositories of the transaction the caller is
// operating in.
type Factory struct {
	channels      repository.ChannelRepository
	providerRows  repository.ProviderAccountRepository
	proxies       repository.ProxyRuleRepository
	creators      repository.CreatorRepository
	verifications repository.VerificationRepository

	chains    *chain.Registry
	rates     *currency.Rates
	countries *country.Registry
	params    *ProviderParams

	stripe     *clients.StripeClient
	circleAPI  *clients.CircleClient
	mercuryo   *clients.MercuryoWidget
	notifier   events.Notifier
	userUIBase string

	log *logrus.Entry
}

// FactoryDeps bundles the collaborators of a Factory.
type FactoryDeps struct {
	Channels      repository.ChannelRepository
	ProviderRows  repository.ProviderAccountRepository
	Proxies       repository.ProxyRuleRepository
	Creators      repository.CreatorRepository
	Verifications repository.VerificationRepository

	Chains    *chain.Registry
	Rates     *currency.Rates
	Countries *country.Registry
	Params    *ProviderParams

	Stripe     *clients.StripeClient
	Circle     *clients.CircleClient
	Mercuryo   *clients.MercuryoWidget
	Notifier   events.Notifier
	UserUIBase string
}

func NewFactory(deps FactoryDeps) *Factory {
	return &Factory{
		channels:      deps.Channels,
		providerRows:  deps.ProviderRows,
		proxies:       deps.Proxies,
		creators:      deps.Creators,
		verifications: deps.Verifications,
		chains:        deps.Chains,
		rates:         deps.Rates,
		countries:     deps.Countries,
		params:        deps.Params,
		stripe:        deps.Stripe,
		circleAPI:     deps.Circle,
		mercuryo:      deps.Mercuryo,
		notifier:      deps.Notifier,
		userUIBase:    deps.UserUIBase,
		log:           logrus.WithField("component", "accounts"),
	}
}

// ForChannel loads the termination account of one payout channel.
func (f *Factory) ForChannel(ctx context.Context, channelID uuid.UUID, withRemoved bool) (*TerminationAccount, error) {
	channel, err := f.channels.GetByID(ctx, channelID, withRemoved)
	if err != nil {
		return nil, err
	}
	return f.load(ctx, channel)
}

// ForCreator loads the termination accounts of every active channel of the
// creator, in attach order.
func (f *Factory) ForCreator(ctx context.Context, creatorID uuid.UUID) ([]*TerminationAccount, error) {
	channels, err := f.channels.FindByCreator(ctx, creatorID)
	if err != nil {
		return nil, err
	}
	states, err := verification.LoadStates(ctx, f.verifications, creatorID)
	if err != nil {
		return nil, err
	}
	accounts := make([]*TerminationAccount, 0, len(channels))
	for _, channel := range channels {
		account, err := f.loadWithStates(ctx, channel, states)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}
	return accounts, nil
}

// ProxyAccountsForCountry loads the relay accounts registered for a country.
func (f *Factory) ProxyAccountsForCountry(ctx context.Context, countryName string) ([]*TerminationAccount, error) {
	channelIDs, err := f.proxies.FindChannelsForCountry(ctx, countryName)
	if err != nil {
		return nil, err
	}
	accounts := make([]*TerminationAccount, 0, len(channelIDs))
	for _, channelID := range channelIDs {
		account, err := f.ForChannel(ctx, channelID, false)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}
	return accounts, nil
}

func (f *Factory) load(ctx context.Context, channel *models.PayoutChannel) (*TerminationAccount, error) {
	states, err := verification.LoadStates(ctx, f.verifications, channel.CreatorID)
	if err != nil {
		return nil, err
	}
	return f.loadWithStates(ctx, channel, states)
}

func (f *Factory) loadWithStates(ctx context.Context, channel *models.PayoutChannel, states *verification.States) (*TerminationAccount, error) {
	rows, err := f.providerRows.FindByChannel(ctx, channel.ChannelID)
	if err != nil {
		return nil, err
	}
	accounts := make([]ProviderAccount, 0, len(rows))
	for _, row := range rows {
		account, err := f.build(channel, row, states)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}
	return &TerminationAccount{Channel: channel, Accounts: accounts}, nil
}

func (f *Factory) build(channel *models.PayoutChannel, row *models.ProviderAccountRow, states *verification.States) (ProviderAccount, error) {
	switch row.Provider {
	case ProviderSelfCustody:
		data, err := ParseCryptoChannelData(channel)
		if err != nil {
			return nil, err
		}
		network, err := f.chains.Get(data.Network)
		if err != nil {
			return nil, err
		}
		return &selfCustodyAccount{row: row, channel: channel, data: data, network: network, rates: f.rates}, nil

	case ProviderMercuryo:
		data, err := ParseCryptoChannelData(channel)
		if err != nil {
			return nil, err
		}
		network, err := f.chains.Get(data.Network)
		if err != nil {
			return nil, err
		}
		return &mercuryoAccount{
			row: row, channel: channel, data: data,
			network: network, states: states, widget: f.mercuryo, rates: f.rates,
		}, nil

	case ProviderCircle:
		data, err := ParseCryptoChannelData(channel)
		if err != nil {
			return nil, err
		}
		network, err := f.chains.Get(data.Network)
		if err != nil {
			return nil, err
		}
		return &circleAccount{
			row: row, channel: channel, data: data,
			network: network, client: f.circleAPI, rates: f.rates,
		}, nil

	case ProviderStripe:
		return &stripeBankAccount{
			row: row, channel: channel, states: states,
			client: f.stripe, rates: f.rates, userUIBase: f.userUIBase,
		}, nil

	case ProviderWindapp:
		return &windappBankAccount{row: row, channel: channel, states: states, rates: f.rates}, nil

	default:
		return nil, apperr.Internalf("Unknown payout provider %s", row.Provider)
	}
}

// AttachSelfCustodyWallet registers a creator-owned wallet on a network.
// Besides the self-custody binding, every card-to-crypto provider operating
// in the creator's country attaches to the same channel.
func (f *Factory) AttachSelfCustodyWallet(ctx context.Context, creatorID uuid.UUID, networkName, address string) (*TerminationAccount, error) {
	network, err := f.chains.Get(networkName)
	if err != nil {
		return nil, err
	}
	normalized, err := network.CheckWalletAddress(address)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(CryptoChannelData{Network: network.Name, Address: normalized})
	if err != nil {
		return nil, err
	}
	channel, restored, err := f.channels.CreateOrRestore(ctx, creatorID, models.ChannelTypeCrypto, string(data), nil)
	if err != nil {
		return nil, err
	}

	if err := f.providerRows.CreateOrRestore(ctx, channel.ChannelID, ProviderSelfCustody, nil, &normalized); err != nil {
		return nil, err
	}
	if f.countryHasProvider(ctx, creatorID, ProviderMercuryo) && mercuryoNetworks[network.Name] {
		if err := f.providerRows.CreateOrRestore(ctx, channel.ChannelID, ProviderMercuryo, nil, &normalized); err != nil {
			return nil, err
		}
	}

	f.notifyCreated(creatorID, channel.ChannelID, ProviderSelfCustody, normalized)
	f.log.WithFields(logrus.Fields{
		"creator_id": creatorID,
		"channel_id": channel.ChannelID,
		"network":    network.Name,
		"restored":   restored,
	}).Info("self-custody wallet attached")
	return f.ForChannel(ctx, channel.ChannelID, false)
}

// AttachCircleWallet registers a Circle managed wallet. Circle wallets are
// only offered on Polygon.
func (f *Factory) AttachCircleWallet(ctx context.Context, creatorID uuid.UUID, walletID, address string) (*TerminationAccount, error) {
	network, err := f.chains.Get(circleNetwork)
	if err != nil {
		return nil, err
	}
	normalized, err := network.CheckWalletAddress(address)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(CryptoChannelData{Network: network.Name, Address: normalized})
	if err != nil {
		return nil, err
	}
	channel, _, err := f.channels.CreateOrRestore(ctx, creatorID, models.ChannelTypeCrypto, string(data), nil)
	if err != nil {
		return nil, err
	}
	if err := f.providerRows.CreateOrRestore(ctx, channel.ChannelID, ProviderCircle, nil, &walletID); err != nil {
		return nil, err
	}

	f.notifyCreated(creatorID, channel.ChannelID, ProviderCircle, walletID)
	return f.ForChannel(ctx, channel.ChannelID, false)
}

// AttachWindappBankAccount registers a bank account served by the in-house
// rails.
func (f *Factory) AttachWindappBankAccount(ctx context.Context, creatorID uuid.UUID, payoutCurrency string, details json.RawMessage) (*TerminationAccount, error) {
	channel, err := f.attachBankChannel(ctx, creatorID, payoutCurrency, details)
	if err != nil {
		return nil, err
	}
	if err := f.providerRows.CreateOrRestore(ctx, channel.ChannelID, ProviderWindapp, nil, nil); err != nil {
		return nil, err
	}
	f.notifyCreated(creatorID, channel.ChannelID, ProviderWindapp, "")
	return f.ForChannel(ctx, channel.ChannelID, false)
}

// AttachStripeBankAccount registers a bank account settled through a Stripe
// connected account.
func (f *Factory) AttachStripeBankAccount(ctx context.Context, creatorID uuid.UUID, payoutCurrency string, details json.RawMessage, stripeAccountID string) (*TerminationAccount, error) {
	if stripeAccountID == "" {
		return nil, apperr.New(apperr.WrongParameters, "Stripe account id is required")
	}
	stripeAccount, err := f.stripe.GetAccount(ctx, stripeAccountID)
	if err != nil {
		return nil, apperr.New(apperr.Account, "Stripe account %s is not reachable: %v", stripeAccountID, err)
	}
	if !stripeAccount.DetailsSubmitted {
		return nil, apperr.New(apperr.Account, "Stripe account %s has not finished onboarding", stripeAccountID)
	}
	channel, err := f.attachBankChannel(ctx, creatorID, payoutCurrency, details)
	if err != nil {
		return nil, err
	}
	if err := f.providerRows.CreateOrRestore(ctx, channel.ChannelID, ProviderStripe, nil, &stripeAccountID); err != nil {
		return nil, err
	}
	f.notifyCreated(creatorID, channel.ChannelID, ProviderStripe, stripeAccountID)
	return f.ForChannel(ctx, channel.ChannelID, false)
}

// SetProviderExternalID records a provider-side account id after the
// provider's asynchronous onboarding finishes.
func (f *Factory) SetProviderExternalID(ctx context.Context, creatorID, channelID uuid.UUID, provider, externalID string) error {
	channel, err := f.channels.GetByID(ctx, channelID, false)
	if err != nil {
		return err
	}
	if channel.CreatorID != creatorID {
		return apperr.New(apperr.AccessError, "Account %s does not belong to user %s", channelID, creatorID)
	}
	if _, err := f.providerRows.GetByChannelProvider(ctx, channelID, provider); err != nil {
		return err
	}
	return f.providerRows.SetProviderData(ctx, channelID, provider, nil, &externalID)
}

func (f *Factory) attachBankChannel(ctx context.Context, creatorID uuid.UUID, payoutCurrency string, details json.RawMessage) (*models.PayoutChannel, error) {
	creator, err := f.creators.GetByID(ctx, creatorID, false)
	if err != nil {
		return nil, err
	}
	if creator.Country == nil {
		return nil, apperr.New(apperr.WrongParameters, "User %s has no country set", creatorID)
	}
	if _, err := f.rates.Rate(payoutCurrency); err != nil {
		return nil, err
	}

	data, err := json.Marshal(BankChannelData{Country: *creator.Country, Details: details})
	if err != nil {
		return nil, err
	}
	channel, _, err := f.channels.CreateOrRestore(ctx, creatorID, models.ChannelTypeBankAccount, string(data), &payoutCurrency)
	if err != nil {
		return nil, err
	}
	return channel, nil
}

// RemoveChannel detaches a channel: the row is marked removed, every bound
// provider account is detached, and AccountDeleted fires once.
func (f *Factory) RemoveChannel(ctx context.Context, creatorID, channelID uuid.UUID) error {
	account, err := f.ForChannel(ctx, channelID, false)
	if err != nil {
		return err
	}
	if account.Channel.CreatorID != creatorID {
		return apperr.New(apperr.AccessError, "Account %s does not belong to user %s", channelID, creatorID)
	}

	if err := f.channels.Remove(ctx, channelID); err != nil {
		return err
	}
	for _, bound := range account.Accounts {
		if err := bound.Remove(ctx); err != nil {
			return err
		}
	}
	if err := f.notifier.Notify(events.AccountDeleted{
		CreatorID:  creatorID,
		ChannelID:  channelID,
		OccurredAt: time.Now().UTC(),
	}); err != nil {
		f.log.WithError(err).Error("failed to publish account deleted")
	}
	return nil
}

// RemoveAllForCreator detaches every active channel of the creator.
func (f *Factory) RemoveAllForCreator(ctx context.Context, creatorID uuid.UUID) error {
	accounts, err := f.ForCreator(ctx, creatorID)
	if err != nil {
		return err
	}
	for _, account := range accounts {
		if err := f.RemoveChannel(ctx, creatorID, account.Channel.ChannelID); err != nil {
			return err
		}
	}
	return nil
}

func (f *Factory) countryHasProvider(ctx context.Context, creatorID uuid.UUID, provider string) bool {
	creator, err := f.creators.GetByID(ctx, creatorID, false)
	if err != nil || creator.Country == nil {
		return false
	}
	providers, err := f.countries.ProvidersFor(*creator.Country)
	if err != nil {
		return false
	}
	for _, name := range providers {
		if name == provider {
			return true
		}
	}
	return false
}

func (f *Factory) notifyCreated(creatorID, channelID uuid.UUID, provider, externalID string) {
	err := f.notifier.Notify(events.AccountCreated{
		CreatorID:  creatorID,
		ChannelID:  channelID,
		Provider:   provider,
		ExternalID: externalID,
		OccurredAt: time.Now().UTC(),
	})
	if err != nil {
		f.log.WithError(err).Error("failed to publish account created")
	}
}
