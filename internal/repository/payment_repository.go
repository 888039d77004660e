package repository

import (
	"context"
	"errors"

	"payrouter/internal/apperr"
	"payrouter/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// UpdatePaymentParams is a sparse patch: only non-nil fields are written.
// Supplying TotalAmount without ToUSDRate violates the joint-field invariant.
type UpdatePaymentParams struct {
	Status      *string
	PaymentData *models.PaymentData
	ExternalID  *string
	TotalAmount *decimal.Decimal
	ToUSDRate   *decimal.Decimal
	ProviderFee *decimal.Decimal
}

// Validate enforces the joint-field invariant on the patch.
func (p *UpdatePaymentParams) Validate() error {
	if p.TotalAmount != nil && p.ToUSDRate == nil {
		return apperr.New(apperr.Payment, "to_usd rate must be specified")
	}
	return nil
}

// PaymentRepository defines the interface for payment ledger access
type PaymentRepository interface {
	// CreateNew inserts the next payment of a transfer. payment_index is the
	// current length of the transfer's payment list; the uniqueness of
	// (transfer_id, payment_index) is guarded by the primary key.
	CreateNew(ctx context.Context, transferID uuid.UUID, paymentIndex int, paymentType, currency string,
		senderChannelID *uuid.UUID, recipientChannelID uuid.UUID, provider string) (*models.Payment, error)
	Get(ctx context.Context, transferID uuid.UUID, paymentIndex int) (*models.Payment, error)
	Update(ctx context.Context, payment *models.Payment, params *UpdatePaymentParams) error
	FindSubmittedCrypto(ctx context.Context, network string) ([]*models.Payment, error)
	GetByExternalID(ctx context.Context, provider, externalID string) (*models.Payment, error)
}

type paymentRepository struct {
	db *gorm.DB
}

// NewPaymentRepository creates a new PaymentRepository instance
func NewPaymentRepository(db *gorm.DB) PaymentRepository {
	return &paymentRepository{db: db}
}

func (r *paymentRepository) CreateNew(
	ctx context.Context, transferID uuid.UUID, paymentIndex int, paymentType, currency string,
	senderChannelID *uuid.UUID, recipientChannelID uuid.UUID, provider string,
) (*models.Payment, error) {
	payment := &models.Payment{
		TransferID:      transferID,
		PaymentIndex:    paymentIndex,
		SenderChannelID: senderChannelID,
		PayoutChannelID: recipientChannelID,
		PaymentType:     paymentType,
		Provider:        provider,
		Currency:        currency,
		Status:          models.StatusCreated,
	}
	if err := r.db.WithContext(ctx).Create(payment).Error; err != nil {
		return nil, apperr.New(apperr.Payment, "Failed to create payment")
	}

	// reload server-generated fields
	if err := r.db.WithContext(ctx).
		Where("transfer_id = ? AND payment_index = ?", transferID, paymentIndex).
		First(payment).Error; err != nil {
		return nil, err
	}
	return payment, nil
}

func (r *paymentRepository) Get(ctx context.Context, transferID uuid.UUID, paymentIndex int) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.WithContext(ctx).
		Where("transfer_id = ? AND payment_index = ?", transferID, paymentIndex).
		First(&payment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.Payment, "Payment not found")
		}
		return nil, err
	}
	return &payment, nil
}

func (r *paymentRepository) Update(ctx context.Context, payment *models.Payment, params *UpdatePaymentParams) error {
	if err := params.Validate(); err != nil {
		return err
	}

	updates := map[string]interface{}{}
	if params.Status != nil {
		updates["status"] = *params.Status
		payment.Status = *params.Status
	}
	if params.PaymentData != nil {
		serialized, err := params.PaymentData.Serialize()
		if err != nil {
			return apperr.New(apperr.Payment, "Failed to serialize payment data")
		}
		updates["payment_data"] = serialized
		payment.PaymentData = &serialized
	}
	if params.ExternalID != nil {
		updates["external_id"] = *params.ExternalID
		payment.ExternalID = params.ExternalID
	}
	if params.TotalAmount != nil {
		updates["total_amount"] = *params.TotalAmount
		payment.TotalAmount = params.TotalAmount
	}
	if params.ToUSDRate != nil {
		updates["to_usd_rate"] = *params.ToUSDRate
		payment.ToUSDRate = params.ToUSDRate
	}
	if params.ProviderFee != nil {
		updates["provider_fee"] = *params.ProviderFee
		payment.ProviderFee = params.ProviderFee
	}
	if len(updates) == 0 {
		return nil
	}

	return r.db.WithContext(ctx).Model(&models.Payment{}).
		Where("transfer_id = ? AND payment_index = ?", payment.TransferID, payment.PaymentIndex).
		Updates(updates).Error
}

func (r *paymentRepository) FindSubmittedCrypto(ctx context.Context, network string) ([]*models.Payment, error) {
	var payments []*models.Payment
	err := r.db.WithContext(ctx).
		Where("payment_type = ? AND status = ?", models.CryptoPaymentType(network), models.StatusSubmitted).
		Order("creation_time").
		Find(&payments).Error
	if err != nil {
		return nil, err
	}
	return payments, nil
}

func (r *paymentRepository) GetByExternalID(ctx context.Context, provider, externalID string) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.WithContext(ctx).
		Where("provider = ? AND external_id = ?", provider, externalID).
		First(&payment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.Internalf("Payment not found for external id %s", externalID)
		}
		return nil, err
	}
	return &payment, nil
}
