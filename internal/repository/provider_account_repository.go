package repository

import (
	"context"
	"errors"

	"payrouter/internal/apperr"
	"payrouter/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ProviderAccountRepository defines the interface for provider account rows
type ProviderAccountRepository interface {
	// CreateOrRestore upserts the (channel, provider) binding, refreshing
	// provider_data and external_id when the row already exists.
	CreateOrRestore(ctx context.Context, channelID uuid.UUID, provider string, providerData, externalID *string) error
	FindByChannel(ctx context.Context, channelID uuid.UUID) ([]*models.ProviderAccountRow, error)
	GetByChannelProvider(ctx context.Context, channelID uuid.UUID, provider string) (*models.ProviderAccountRow, error)
	GetByExternalID(ctx context.Context, provider, externalID string) (*models.ProviderAccountRow, error)
	SetProviderData(ctx context.Context, channelID uuid.UUID, provider string, providerData, externalID *string) error
}

type providerAccountRepository struct {
	db *gorm.DB
}

// NewProviderAccountRepository creates a new ProviderAccountRepository instance
func NewProviderAccountRepository(db *gorm.DB) ProviderAccountRepository {
	return &providerAccountRepository{db: db}
}

func (r *providerAccountRepository) CreateOrRestore(
	ctx context.Context, channelID uuid.UUID, provider string, providerData, externalID *string,
) error {
	res := r.db.WithContext(ctx).Model(&models.ProviderAccountRow{}).
		Where("channel_id = ? AND provider = ?", channelID, provider).
		Updates(map[string]interface{}{"provider_data": providerData, "external_id": externalID})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}

	return r.db.WithContext(ctx).Create(&models.ProviderAccountRow{
		ChannelID:    channelID,
		Provider:     provider,
		ProviderData: providerData,
		ExternalID:   externalID,
	}).Error
}

func (r *providerAccountRepository) FindByChannel(ctx context.Context, channelID uuid.UUID) ([]*models.ProviderAccountRow, error) {
	var rows []*models.ProviderAccountRow
	err := r.db.WithContext(ctx).
		Where("channel_id = ?", channelID).
		Order("provider").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *providerAccountRepository) GetByChannelProvider(
	ctx context.Context, channelID uuid.UUID, provider string,
) (*models.ProviderAccountRow, error) {
	var row models.ProviderAccountRow
	err := r.db.WithContext(ctx).
		Where("channel_id = ? AND provider = ?", channelID, provider).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.Internalf("Provider %s account for %s not found", provider, channelID)
		}
		return nil, err
	}
	return &row, nil
}

func (r *providerAccountRepository) GetByExternalID(ctx context.Context, provider, externalID string) (*models.ProviderAccountRow, error) {
	var row models.ProviderAccountRow
	err := r.db.WithContext(ctx).
		Where("provider = ? AND external_id = ?", provider, externalID).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.ObjectNotFound, "%s account %s not found", provider, externalID)
		}
		return nil, err
	}
	return &row, nil
}

func (r *providerAccountRepository) SetProviderData(
	ctx context.Context, channelID uuid.UUID, provider string, providerData, externalID *string,
) error {
	updates := map[string]interface{}{}
	if providerData != nil {
		updates["provider_data"] = providerData
	}
	if externalID != nil {
		updates["external_id"] = externalID
	}
	if len(updates) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(&models.ProviderAccountRow{}).
		Where("channel_id = ? AND provider = ?", channelID, provider).
		Updates(updates).Error
}
