package repository

import (
	"context"
	"errors"
	"time"

	"payrouter/internal/apperr"
	"payrouter/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// TransferFilter narrows GetTransfers. Zero values are ignored.
type TransferFilter struct {
	CreatorID       *uuid.UUID
	RemittanceUser  *uuid.UUID
	FromTime        *time.Time
	Duration        *time.Duration
	ExcludeStatuses []string
}

// TransferRepository defines the interface for transfer data access
type TransferRepository interface {
	CreateNew(ctx context.Context, creatorID uuid.UUID, sender *uuid.UUID, message *string,
		remittanceUser *uuid.UUID, authAccount *uuid.UUID, tmFee *decimal.Decimal) (*models.Transfer, error)
	// GetByID loads the transfer with its payments in payment_index order.
	GetByID(ctx context.Context, transferID uuid.UUID) (*models.Transfer, error)
	SetStatus(ctx context.Context, transferID uuid.UUID, status string) error
	SetTMFee(ctx context.Context, transferID uuid.UUID, tmFee decimal.Decimal) error
	GetTransfers(ctx context.Context, filter TransferFilter) ([]*models.Transfer, error)
}

type transferRepository struct {
	db *gorm.DB
}

// NewTransferRepository creates a new TransferRepository instance
func NewTransferRepository(db *gorm.DB) TransferRepository {
	return &transferRepository{db: db}
}

func (r *transferRepository) CreateNew(
	ctx context.Context, creatorID uuid.UUID, sender *uuid.UUID, message *string,
	remittanceUser *uuid.UUID, authAccount *uuid.UUID, tmFee *decimal.Decimal,
) (*models.Transfer, error) {
	transfer := &models.Transfer{
		CreatorID:      creatorID,
		Sender:         sender,
		Message:        message,
		Status:         models.StatusCreated,
		RemittanceUser: remittanceUser,
		TMFee:          tmFee,
		AuthAccount:    authAccount,
		Payments:       []models.Payment{},
	}
	if err := r.db.WithContext(ctx).Create(transfer).Error; err != nil {
		return nil, apperr.New(apperr.Payment, "Failed to create transfer")
	}
	return transfer, nil
}

func (r *transferRepository) loadPayments(ctx context.Context, transfer *models.Transfer) error {
	return r.db.WithContext(ctx).
		Where("transfer_id = ?", transfer.TransferID).
		Order("payment_index").
		Find(&transfer.Payments).Error
}

func (r *transferRepository) GetByID(ctx context.Context, transferID uuid.UUID) (*models.Transfer, error) {
	var transfer models.Transfer
	err := r.db.WithContext(ctx).Where("transfer_id = ?", transferID).First(&transfer).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.ObjectNotFound, "Transfer %s not found", transferID)
		}
		return nil, err
	}
	if err := r.loadPayments(ctx, &transfer); err != nil {
		return nil, err
	}
	return &transfer, nil
}

func (r *transferRepository) SetStatus(ctx context.Context, transferID uuid.UUID, status string) error {
	return r.db.WithContext(ctx).Model(&models.Transfer{}).
		Where("transfer_id = ?", transferID).
		Update("status", status).Error
}

func (r *transferRepository) SetTMFee(ctx context.Context, transferID uuid.UUID, tmFee decimal.Decimal) error {
	return r.db.WithContext(ctx).Model(&models.Transfer{}).
		Where("transfer_id = ?", transferID).
		Update("tm_fee", tmFee).Error
}

func (r *transferRepository) GetTransfers(ctx context.Context, filter TransferFilter) ([]*models.Transfer, error) {
	query := r.db.WithContext(ctx).Model(&models.Transfer{}).
		Where("status <> ?", models.StatusCreated)

	for _, status := range filter.ExcludeStatuses {
		query = query.Where("status <> ?", status)
	}
	if filter.CreatorID != nil {
		query = query.Where("creator_id = ? OR sender = ?", *filter.CreatorID, *filter.CreatorID)
	}
	if filter.RemittanceUser != nil {
		query = query.Where("remittance_user = ?", *filter.RemittanceUser)
	}
	if filter.FromTime != nil {
		query = query.Where("started_at >= ?", *filter.FromTime)
		if filter.Duration != nil {
			query = query.Where("started_at <= ?", filter.FromTime.Add(*filter.Duration))
		}
	}

	var transfers []*models.Transfer
	if err := query.Order("started_at DESC").Find(&transfers).Error; err != nil {
		return nil, err
	}
	for _, transfer := range transfers {
		if err := r.loadPayments(ctx, transfer); err != nil {
			return nil, err
		}
	}
	return transfers, nil
}
