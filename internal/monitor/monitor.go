package monitor

import (
	"context"
	"sync"
	"time"

	"payrouter/internal/chain"
	"payrouter/internal/metrics"
	"payrouter/internal/models"
	"payrouter/internal/processor"
	"payrouter/internal/repository"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Monitor sweeps submitted on-chain payments: once a transaction gathers
// enough confirmations the payment settles, a dropped or reverted
// transaction rejects it. One loop runs per configured network.
type Monitor struct {
	db        *gorm.DB
	chains    *chain.Registry
	processor *processor.Processor
	interval  time.Duration
	log       *logrus.Entry
}

func New(db *gorm.DB, chains *chain.Registry, proc *processor.Processor, intervalSeconds int) *Monitor {
	return &Monitor{
		db:        db,
		chains:    chains,
		processor: proc,
		interval:  time.Duration(intervalSeconds) * time.Second,
		log:       logrus.WithField("component", "monitor"),
	}
}

// Run blocks until ctx is canceled, one sweep loop per network.
func (m *Monitor) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, network := range m.chains.All() {
		wg.Add(1)
		go func(network *chain.Network) {
			defer wg.Done()
			m.runNetwork(ctx, network)
		}(network)
	}
	wg.Wait()
}

func (m *Monitor) runNetwork(ctx context.Context, network *chain.Network) {
	log := m.log.WithField("network", network.Name)
	log.WithField("interval", m.interval).Info("starting sweep loop")

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		if err := m.Sweep(ctx, network); err != nil && ctx.Err() == nil {
			log.WithError(err).Error("sweep failed")
		}
		select {
		case <-ctx.Done():
			log.Info("sweep loop stopped")
			return
		case <-ticker.C:
		}
	}
}

// Sweep refreshes the chain head and advances every submitted payment of
// the network.
func (m *Monitor) Sweep(ctx context.Context, network *chain.Network) error {
	if err := network.UpdateLatestBlock(ctx); err != nil {
		return err
	}

	payments := repository.NewPaymentRepository(m.db)
	submitted, err := payments.FindSubmittedCrypto(ctx, network.Name)
	if err != nil {
		return err
	}

	for _, payment := range submitted {
		if err := m.checkPayment(ctx, network, payment); err != nil {
			m.log.WithError(err).WithFields(logrus.Fields{
				"network":       network.Name,
				"transfer_id":   payment.TransferID,
				"payment_index": payment.PaymentIndex,
			}).Error("failed to advance payment")
		}
	}

	metrics.MonitorSweeps.WithLabelValues(network.Name).Inc()
	return nil
}

func (m *Monitor) checkPayment(ctx context.Context, network *chain.Network, payment *models.Payment) error {
	if payment.ExternalID == nil {
		m.log.WithFields(logrus.Fields{
			"transfer_id":   payment.TransferID,
			"payment_index": payment.PaymentIndex,
		}).Warn("submitted crypto payment has no transaction id")
		return nil
	}

	status, err := network.GetTransactionStatus(ctx, *payment.ExternalID)
	if err != nil {
		return err
	}

	switch status {
	case chain.StatusConfirmed:
		m.log.WithFields(logrus.Fields{
			"transfer_id": payment.TransferID,
			"tx":          network.ExplorerURL(*payment.ExternalID),
		}).Info("payment confirmed on chain")
		_, err = m.processor.UpdatePayment(ctx, payment.TransferID, payment.PaymentIndex, models.StatusPaidOut, nil)
		return err
	case chain.StatusFailed:
		_, err = m.processor.UpdatePayment(ctx, payment.TransferID, payment.PaymentIndex, models.StatusRejected, nil)
		return err
	default:
		return nil
	}
}
