package processor

import (
	"context"
	"time"

	"payrouter/internal/accounts"
	"payrouter/internal/apperr"
	"payrouter/internal/chain"
	"payrouter/internal/clients"
	"payrouter/internal/config"
	"payrouter/internal/country"
	"payrouter/internal/currency"
	"payrouter/internal/events"
	"payrouter/internal/metrics"
	"payrouter/internal/models"
	"payrouter/internal/repository"
	"payrouter/internal/routing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Processor orchestrates the transfer lifecycle. Every public operation
// runs inside one database transaction, committed or rolled back as a
// whole.
type Processor struct {
	db *gorm.DB

	chains    *chain.Registry
	rates     *currency.Rates
	countries *country.Registry
	params    *accounts.ProviderParams

	stripe   *clients.StripeClient
	circle   *clients.CircleClient
	mercuryo *clients.MercuryoWidget
	notifier events.Notifier

	platformFee decimal.Decimal
	userUIBase  string

	log *logrus.Entry
}

// Deps bundles the long-lived collaborators of the Processor.
type Deps struct {
	DB        *gorm.DB
	Chains    *chain.Registry
	Rates     *currency.Rates
	Countries *country.Registry
	Params    *accounts.ProviderParams
	Stripe    *clients.StripeClient
	Circle    *clients.CircleClient
	Mercuryo  *clients.MercuryoWidget
	Notifier  events.Notifier

	Transfer   config.TransferConfig
	UserUIBase string
}

func New(deps Deps) *Processor {
	return &Processor{
		db:          deps.DB,
		chains:      deps.Chains,
		rates:       deps.Rates,
		countries:   deps.Countries,
		params:      deps.Params,
		stripe:      deps.Stripe,
		circle:      deps.Circle,
		mercuryo:    deps.Mercuryo,
		notifier:    deps.Notifier,
		platformFee: deps.Transfer.PlatformFee.Decimal,
		userUIBase:  deps.UserUIBase,
		log:         logrus.WithField("component", "processor"),
	}
}

// scope binds the repositories, account factory and planner to one database
// transaction.
type scope struct {
	channels      repository.ChannelRepository
	providerRows  repository.ProviderAccountRepository
	creators      repository.CreatorRepository
	payments      repository.PaymentRepository
	transfers     repository.TransferRepository
	verifications repository.VerificationRepository
	proxies       repository.ProxyRuleRepository

	factory *accounts.Factory
	planner *routing.Planner
}

func (p *Processor) scope(tx *gorm.DB) *scope {
	s := &scope{
		channels:      repository.NewChannelRepository(tx),
		providerRows:  repository.NewProviderAccountRepository(tx),
		creators:      repository.NewCreatorRepository(tx),
		payments:      repository.NewPaymentRepository(tx),
		transfers:     repository.NewTransferRepository(tx),
		verifications: repository.NewVerificationRepository(tx),
		proxies:       repository.NewProxyRuleRepository(tx),
	}
	s.factory = accounts.NewFactory(accounts.FactoryDeps{
		Channels:      s.channels,
		ProviderRows:  s.providerRows,
		Proxies:       s.proxies,
		Creators:      s.creators,
		Verifications: s.verifications,
		Chains:        p.chains,
		Rates:         p.rates,
		Countries:     p.countries,
		Params:        p.params,
		Stripe:        p.stripe,
		Circle:        p.circle,
		Mercuryo:      p.mercuryo,
		Notifier:      p.notifier,
		UserUIBase:    p.userUIBase,
	})
	s.planner = routing.NewPlanner(s.factory, p.params, p.rates)
	return s
}

// Accounts returns an account factory bound to its own transactions, for
// the attach/remove flows exposed by the hosting service.
func (p *Processor) Accounts() *accounts.Factory {
	return p.scope(p.db).factory
}

// StartPaymentRequest describes a transfer to open. Exactly one of
// RecipientCreatorID and RecipientChannelID must be set.
type StartPaymentRequest struct {
	Sender             *uuid.UUID
	SenderChannelID    *uuid.UUID
	RecipientCreatorID *uuid.UUID
	RecipientChannelID *uuid.UUID
	AuthAccount        *uuid.UUID
	PaymentType        string
	Currency           string
	Amount             *decimal.Decimal
	Message            *string
}

// StartPayment plans the cheapest route, opens the Transfer, asks the
// first-hop provider for a payment intent and records hop 0 as pending.
// For relayed routes the hop 1 row is pre-created so later webhooks have a
// target.
func (p *Processor) StartPayment(ctx context.Context, req StartPaymentRequest) (*models.Transfer, *accounts.PaymentIntent, error) {
	if req.Amount == nil || req.Currency == "" {
		return nil, nil, apperr.New(apperr.WrongParameters, "Amount and currency are required")
	}

	var transfer *models.Transfer
	var intent *accounts.PaymentIntent
	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		s := p.scope(tx)

		recipient, err := p.resolveRecipient(ctx, s, req)
		if err != nil {
			return err
		}
		route, err := s.planner.CheapestRoute(ctx, recipient, req.PaymentType, req.Amount, req.Currency)
		if err != nil {
			return err
		}

		creatorID := recipient.Accounts[0].Channel.CreatorID
		if recipient.Creator != nil {
			creatorID = recipient.Creator.CreatorID
		}

		var tmFee *decimal.Decimal
		if route.Second != nil {
			tmFee = &p.platformFee
		}
		transfer, err = s.transfers.CreateNew(
			ctx, creatorID, req.Sender, req.Message, route.RemittanceUser, req.AuthAccount, tmFee)
		if err != nil {
			return err
		}

		intent, err = route.First.Account.ReceivePayment(ctx, accounts.ReceiveRequest{
			TransferID: transfer.TransferID.String(),
			Amount:     *req.Amount,
			Currency:   req.Currency,
			Message:    messageOf(req.Message),
		})
		if err != nil {
			return err
		}

		hop0, err := s.payments.CreateNew(ctx, transfer.TransferID, 0,
			route.First.PaymentType, intent.Currency,
			req.SenderChannelID, route.First.Account.Channel().ChannelID,
			route.First.Account.Provider())
		if err != nil {
			return err
		}
		pending := models.StatusPending
		patch := &repository.UpdatePaymentParams{
			Status:      &pending,
			PaymentData: &intent.Data,
			TotalAmount: req.Amount,
			ToUSDRate:   &intent.ToUSDRate,
		}
		if intent.ExternalID != "" {
			patch.ExternalID = &intent.ExternalID
		}
		if err := s.payments.Update(ctx, hop0, patch); err != nil {
			return err
		}

		if route.Second != nil {
			secondChannel := route.Second.Account.Channel()
			secondCurrency := intent.Currency
			if secondChannel.Currency != nil {
				secondCurrency = *secondChannel.Currency
			}
			proxyChannelID := route.First.Account.Channel().ChannelID
			_, err = s.payments.CreateNew(ctx, transfer.TransferID, 1,
				route.Second.PaymentType, secondCurrency,
				&proxyChannelID, secondChannel.ChannelID,
				route.Second.Account.Provider())
			if err != nil {
				return err
			}
		}

		if err := s.transfers.SetStatus(ctx, transfer.TransferID, models.StatusPending); err != nil {
			return err
		}
		transfer, err = s.transfers.GetByID(ctx, transfer.TransferID)
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	metrics.TransfersStarted.Inc()
	p.log.WithFields(logrus.Fields{
		"transfer_id":  transfer.TransferID,
		"payment_type": req.PaymentType,
		"hops":         len(transfer.Payments),
	}).Info("transfer started")
	return transfer, intent, nil
}

func (p *Processor) resolveRecipient(ctx context.Context, s *scope, req StartPaymentRequest) (routing.Recipient, error) {
	switch {
	case req.RecipientChannelID != nil:
		account, err := s.factory.ForChannel(ctx, *req.RecipientChannelID, false)
		if err != nil {
			return routing.Recipient{}, err
		}
		return routing.Recipient{Accounts: []*accounts.TerminationAccount{account}}, nil

	case req.RecipientCreatorID != nil:
		creator, err := s.creators.GetByID(ctx, *req.RecipientCreatorID, false)
		if err != nil {
			return routing.Recipient{}, err
		}
		terminations, err := s.factory.ForCreator(ctx, creator.CreatorID)
		if err != nil {
			return routing.Recipient{}, err
		}
		return routing.Recipient{Creator: creator, Accounts: terminations}, nil

	default:
		return routing.Recipient{}, apperr.New(apperr.WrongParameters, "Recipient is required")
	}
}

// PaymentPatch is the webhook-supplied extra data accompanying a status.
type PaymentPatch struct {
	ExternalID  *string
	TotalAmount *decimal.Decimal
	ToUSDRate   *decimal.Decimal
	ProviderFee *decimal.Decimal
	PaymentData *models.PaymentData
}

// UpdatePayment records a settlement report for one hop and advances the
// owning transfer. The branch on who owns the settling channel is what lets
// one model serve both direct and relayed flows.
func (p *Processor) UpdatePayment(ctx context.Context, transferID uuid.UUID, paymentIndex int, status string, patch *PaymentPatch) (*models.Transfer, error) {
	var transfer *models.Transfer
	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		s := p.scope(tx)

		var err error
		transfer, err = s.transfers.GetByID(ctx, transferID)
		if err != nil {
			return err
		}
		payment, err := s.payments.Get(ctx, transferID, paymentIndex)
		if err != nil {
			return err
		}

		params := &repository.UpdatePaymentParams{Status: &status}
		if patch != nil {
			params.ExternalID = patch.ExternalID
			params.TotalAmount = patch.TotalAmount
			params.ToUSDRate = patch.ToUSDRate
			params.ProviderFee = patch.ProviderFee
			params.PaymentData = patch.PaymentData
		}
		if err := s.payments.Update(ctx, payment, params); err != nil {
			return err
		}

		channel, err := s.channels.GetByID(ctx, payment.PayoutChannelID, true)
		if err != nil {
			return err
		}

		switch {
		case channel.CreatorID == transfer.CreatorID:
			return p.settleAtRecipient(ctx, s, transfer, payment, status)
		case transfer.RemittanceUser != nil && channel.CreatorID == *transfer.RemittanceUser:
			return p.settleAtRelay(ctx, s, transfer, payment, status)
		default:
			p.log.WithFields(logrus.Fields{
				"transfer_id":   transferID,
				"payment_index": paymentIndex,
				"channel_id":    channel.ChannelID,
			}).Error("payment settles at a channel foreign to its transfer")
			return apperr.Internalf("Payment %s/%d settles at a foreign channel", transferID, paymentIndex)
		}
	})
	if err != nil {
		return nil, err
	}
	return transfer, nil
}

// UpdatePaymentByExternalID is the webhook entry point: providers report by
// their own settlement id.
func (p *Processor) UpdatePaymentByExternalID(ctx context.Context, provider, externalID, status string, patch *PaymentPatch) (*models.Transfer, error) {
	payments := repository.NewPaymentRepository(p.db)
	payment, err := payments.GetByExternalID(ctx, provider, externalID)
	if err != nil {
		return nil, err
	}
	return p.UpdatePayment(ctx, payment.TransferID, payment.PaymentIndex, status, patch)
}

func (p *Processor) settleAtRecipient(ctx context.Context, s *scope, transfer *models.Transfer, payment *models.Payment, status string) error {
	if transfer.Status == status {
		// Duplicate webhook delivery, the transition already happened.
		return nil
	}
	if err := s.transfers.SetStatus(ctx, transfer.TransferID, status); err != nil {
		return err
	}
	previous := transfer.Status
	transfer.Status = status

	if models.IsFinalSuccess(status) && !models.IsFinalSuccess(previous) {
		metrics.PaymentsSettled.WithLabelValues(status).Inc()
		if err := p.notifier.Notify(events.TransferComplete{
			TransferID: transfer.TransferID,
			CreatorID:  transfer.CreatorID,
			Status:     status,
			OccurredAt: time.Now().UTC(),
		}); err != nil {
			p.log.WithError(err).Error("failed to publish transfer complete")
		}
	}
	return nil
}

func (p *Processor) settleAtRelay(ctx context.Context, s *scope, transfer *models.Transfer, payment *models.Payment, status string) error {
	switch {
	case payment.PaymentIndex == 0 && models.IsFinalSuccess(status):
		if transfer.Status == models.StatusPendingPayout {
			// Duplicate webhook delivery, the payout was already requested.
			return nil
		}
		if err := s.transfers.SetStatus(ctx, transfer.TransferID, models.StatusPendingPayout); err != nil {
			return err
		}
		transfer.Status = models.StatusPendingPayout

		request := events.PayoutRequest{
			TransferID:     transfer.TransferID,
			RemittanceUser: *transfer.RemittanceUser,
			CreatorID:      transfer.CreatorID,
			Currency:       payment.Currency,
			OccurredAt:     time.Now().UTC(),
		}
		if payment.TotalAmount != nil {
			request.Amount = *payment.TotalAmount
		}
		if err := p.notifier.Notify(request); err != nil {
			p.log.WithError(err).Error("failed to publish payout request")
		}
		return nil

	case status == models.StatusSubmitted:
		if transfer.Status == models.StatusSubmitted {
			return nil
		}
		if err := s.transfers.SetStatus(ctx, transfer.TransferID, models.StatusSubmitted); err != nil {
			return err
		}
		transfer.Status = models.StatusSubmitted
		return nil

	default:
		return nil
	}
}

// SubmitPayout records the operator-executed second hop of a relayed
// transfer. The supplied amount must match the recomputed payout at
// 2-decimal precision and the settlement id must exist on the provider
// side.
func (p *Processor) SubmitPayout(ctx context.Context, transferID uuid.UUID, amount decimal.Decimal, externalID string) (*models.Transfer, error) {
	var transfer *models.Transfer
	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		s := p.scope(tx)

		var err error
		transfer, err = s.transfers.GetByID(ctx, transferID)
		if err != nil {
			return err
		}
		if transfer.Status != models.StatusPendingPayout {
			return apperr.New(apperr.Payment, "Payout is not expected for transfer %s", transferID)
		}
		if len(transfer.Payments) != 2 {
			return apperr.Internalf("Transfer %s has no payout leg", transferID)
		}
		hop0 := &transfer.Payments[0]
		hop1 := &transfer.Payments[1]
		if hop0.TotalAmount == nil || hop0.ToUSDRate == nil {
			return apperr.Internalf("Transfer %s has no settled inbound amount", transferID)
		}

		fee1 := p.params.Fee(hop0.Provider)
		fee2 := p.params.Fee(hop1.Provider)
		tmFee := decimal.Zero
		if transfer.TMFee != nil {
			tmFee = *transfer.TMFee
		}
		payoutRate, err := p.rates.Rate(hop1.Currency)
		if err != nil {
			return err
		}
		if payoutRate.IsZero() {
			return apperr.Internalf("Currency %s has no usable rate", hop1.Currency)
		}

		expected := expectedPayout(hop0.TotalAmount.Mul(*hop0.ToUSDRate), fee1, fee2, tmFee, payoutRate)
		if !expected.Round(2).Equal(amount.Round(2)) {
			return apperr.New(apperr.Payment,
				"Payout amount %s does not match the expected %s %s",
				amount, expected.Round(2), hop1.Currency)
		}

		termination, err := s.factory.ForChannel(ctx, hop1.PayoutChannelID, true)
		if err != nil {
			return err
		}
		account, err := termination.AccountForProvider(hop1.Provider)
		if err != nil {
			return err
		}
		if err := account.ValidateExistingTransaction(ctx, externalID, hop1.Currency, amount); err != nil {
			return err
		}

		if err := s.payments.Update(ctx, hop0, &repository.UpdatePaymentParams{ProviderFee: &fee1}); err != nil {
			return err
		}
		submitted := models.StatusSubmitted
		err = s.payments.Update(ctx, hop1, &repository.UpdatePaymentParams{
			Status:      &submitted,
			ExternalID:  &externalID,
			TotalAmount: &amount,
			ToUSDRate:   &payoutRate,
			ProviderFee: &fee2,
		})
		if err != nil {
			return err
		}
		if err := s.transfers.SetStatus(ctx, transfer.TransferID, models.StatusSubmitted); err != nil {
			return err
		}
		transfer.Status = models.StatusSubmitted
		return nil
	})
	if err != nil {
		return nil, err
	}

	p.log.WithField("transfer_id", transferID).Info("payout submitted")
	return transfer, nil
}

// SetPlatformFee patches the platform fee of an open transfer.
func (p *Processor) SetPlatformFee(ctx context.Context, transferID uuid.UUID, fee decimal.Decimal) error {
	if fee.IsNegative() {
		return apperr.New(apperr.WrongParameters, "Fee must not be negative")
	}
	transfers := repository.NewTransferRepository(p.db)
	transfer, err := transfers.GetByID(ctx, transferID)
	if err != nil {
		return err
	}
	if transfer.Status == models.StatusPaidOut || transfer.Status == models.StatusPaymentComplete {
		return apperr.New(apperr.Payment, "Transfer %s is already settled", transferID)
	}
	return transfers.SetTMFee(ctx, transferID, fee)
}

// GetTransfers lists transfers for reporting surfaces.
func (p *Processor) GetTransfers(ctx context.Context, filter repository.TransferFilter) ([]*models.Transfer, error) {
	return repository.NewTransferRepository(p.db).GetTransfers(ctx, filter)
}

// expectedPayout converts the settled inbound USD value into the payout
// currency after both hop fees and the platform fee.
func expectedPayout(inboundUSD, fee1, fee2, tmFee, payoutRate decimal.Decimal) decimal.Decimal {
	return inboundUSD.Sub(fee1).Sub(fee2).Sub(tmFee).Div(payoutRate)
}

func messageOf(message *string) string {
	if message == nil {
		return ""
	}
	return *message
}
