package processor

import (
	"context"
	"testing"

	"payrouter/internal/events"
	"payrouter/internal/models"
	"payrouter/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTransfers struct {
	statuses []string
}

func (f *fakeTransfers) CreateNew(ctx context.Context, creatorID uuid.UUID, sender *uuid.UUID, message *string,
	remittanceUser *uuid.UUID, authAccount *uuid.UUID, tmFee *decimal.Decimal) (*models.Transfer, error) {
	return nil, nil
}

func (f *fakeTransfers) GetByID(ctx context.Context, transferID uuid.UUID) (*models.Transfer, error) {
	return nil, nil
}

func (f *fakeTransfers) SetStatus(ctx context.Context, transferID uuid.UUID, status string) error {
	f.statuses = append(f.statuses, status)
	return nil
}

func (f *fakeTransfers) SetTMFee(ctx context.Context, transferID uuid.UUID, tmFee decimal.Decimal) error {
	return nil
}

func (f *fakeTransfers) GetTransfers(ctx context.Context, filter repository.TransferFilter) ([]*models.Transfer, error) {
	return nil, nil
}

var _ repository.TransferRepository = (*fakeTransfers)(nil)

func testProcessor(t *testing.T) (*Processor, *events.Recorder, *fakeTransfers, *scope) {
	t.Helper()
	recorder := events.NewRecorder()
	transfers := &fakeTransfers{}
	p := New(Deps{Notifier: recorder})
	return p, recorder, transfers, &scope{transfers: transfers}
}

func TestSettleAtRecipientFiresCompletionOnce(t *testing.T) {
	p, recorder, transfers, s := testProcessor(t)
	transfer := &models.Transfer{
		TransferID: uuid.New(),
		CreatorID:  uuid.New(),
		Status:     models.StatusSubmitted,
	}
	payment := &models.Payment{TransferID: transfer.TransferID}

	require.NoError(t, p.settleAtRecipient(context.Background(), s, transfer, payment, models.StatusPaidOut))
	assert.Equal(t, models.StatusPaidOut, transfer.Status)
	assert.Equal(t, []string{models.StatusPaidOut}, transfers.statuses)
	require.Len(t, recorder.ByCategory(events.CategoryTransferComplete), 1)

	// A duplicate terminal webhook changes nothing and fires nothing.
	require.NoError(t, p.settleAtRecipient(context.Background(), s, transfer, payment, models.StatusPaidOut))
	assert.Equal(t, []string{models.StatusPaidOut}, transfers.statuses)
	assert.Len(t, recorder.ByCategory(events.CategoryTransferComplete), 1)
}

func TestSettleAtRecipientNonFinalStatus(t *testing.T) {
	p, recorder, transfers, s := testProcessor(t)
	transfer := &models.Transfer{
		TransferID: uuid.New(),
		CreatorID:  uuid.New(),
		Status:     models.StatusPending,
	}
	payment := &models.Payment{TransferID: transfer.TransferID}

	require.NoError(t, p.settleAtRecipient(context.Background(), s, transfer, payment, models.StatusFailed))
	assert.Equal(t, []string{models.StatusFailed}, transfers.statuses)
	assert.Empty(t, recorder.Events())
}

func TestSettleAtRelayRequestsPayoutOnce(t *testing.T) {
	p, recorder, transfers, s := testProcessor(t)
	remittanceUser := uuid.New()
	amount := decimal.NewFromInt(100)
	transfer := &models.Transfer{
		TransferID:     uuid.New(),
		CreatorID:      uuid.New(),
		Status:         models.StatusSubmitted,
		RemittanceUser: &remittanceUser,
	}
	hop0 := &models.Payment{
		TransferID:   transfer.TransferID,
		PaymentIndex: 0,
		Currency:     "USDC",
		TotalAmount:  &amount,
	}

	require.NoError(t, p.settleAtRelay(context.Background(), s, transfer, hop0, models.StatusPaidOut))
	assert.Equal(t, models.StatusPendingPayout, transfer.Status)
	assert.Equal(t, []string{models.StatusPendingPayout}, transfers.statuses)

	requests := recorder.ByCategory(events.CategoryPayoutRequest)
	require.Len(t, requests, 1)
	request := requests[0].(events.PayoutRequest)
	assert.Equal(t, remittanceUser, request.RemittanceUser)
	assert.Equal(t, transfer.CreatorID, request.CreatorID)
	assert.True(t, request.Amount.Equal(amount))
	assert.Equal(t, "USDC", request.Currency)

	require.NoError(t, p.settleAtRelay(context.Background(), s, transfer, hop0, models.StatusPaidOut))
	assert.Len(t, recorder.ByCategory(events.CategoryPayoutRequest), 1)
	assert.Equal(t, []string{models.StatusPendingPayout}, transfers.statuses)
}

func TestSettleAtRelaySubmittedProof(t *testing.T) {
	p, recorder, transfers, s := testProcessor(t)
	remittanceUser := uuid.New()
	transfer := &models.Transfer{
		TransferID:     uuid.New(),
		CreatorID:      uuid.New(),
		Status:         models.StatusPending,
		RemittanceUser: &remittanceUser,
	}
	hop0 := &models.Payment{TransferID: transfer.TransferID, PaymentIndex: 0}

	require.NoError(t, p.settleAtRelay(context.Background(), s, transfer, hop0, models.StatusSubmitted))
	assert.Equal(t, models.StatusSubmitted, transfer.Status)
	assert.Equal(t, []string{models.StatusSubmitted}, transfers.statuses)
	assert.Empty(t, recorder.Events())

	// A failure on the relay leg is recorded on the payment only, the
	// transfer waits for operator intervention.
	require.NoError(t, p.settleAtRelay(context.Background(), s, transfer, hop0, models.StatusFailed))
	assert.Equal(t, []string{models.StatusSubmitted}, transfers.statuses)
}

func TestExpectedPayout(t *testing.T) {
	got := expectedPayout(
		decimal.NewFromInt(100),          // inbound USD
		decimal.NewFromInt(1),            // first hop fee
		decimal.NewFromInt(2),            // second hop fee
		decimal.RequireFromString("0.5"), // platform fee
		decimal.RequireFromString("0.5"), // payout currency rate
	)
	assert.True(t, got.Equal(decimal.NewFromInt(193)), "got %s", got)
}
