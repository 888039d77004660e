package repository

import (
	"context"
	"errors"

	"payrouter/internal/apperr"
	"payrouter/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProxyRuleRepository maps countries to intermediary payout channels.
type ProxyRuleRepository interface {
	AddRule(ctx context.Context, country string, channelID uuid.UUID) error
	RemoveRule(ctx context.Context, country string, channelID uuid.UUID) error
	FindChannelsForCountry(ctx context.Context, country string) ([]uuid.UUID, error)
	// FindRulesForCreator returns country -> channel ids over the creator's
	// active channels.
	FindRulesForCreator(ctx context.Context, creatorID uuid.UUID) (map[string][]uuid.UUID, error)
}

type proxyRuleRepository struct {
	db *gorm.DB
}

func NewProxyRuleRepository(db *gorm.DB) ProxyRuleRepository {
	return &proxyRuleRepository{db: db}
}

func (r *proxyRuleRepository) AddRule(ctx context.Context, country string, channelID uuid.UUID) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.ProxyRule{Country: country, PayoutChannelID: channelID}).Error
}

func (r *proxyRuleRepository) RemoveRule(ctx context.Context, country string, channelID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("country = ? AND payout_channel_id = ?", country, channelID).
		Delete(&models.ProxyRule{}).Error
}

func (r *proxyRuleRepository) FindChannelsForCountry(ctx context.Context, country string) ([]uuid.UUID, error) {
	var channelIDs []uuid.UUID
	err := r.db.WithContext(ctx).Model(&models.ProxyRule{}).
		Joins("INNER JOIN payout_channels ON payout_channels.channel_id = proxy_rules.payout_channel_id").
		Where("proxy_rules.country = ? AND payout_channels.removed = ?", country, false).
		Pluck("proxy_rules.payout_channel_id", &channelIDs).Error
	if err != nil {
		return nil, err
	}
	return channelIDs, nil
}

func (r *proxyRuleRepository) FindRulesForCreator(ctx context.Context, creatorID uuid.UUID) (map[string][]uuid.UUID, error) {
	var rules []models.ProxyRule
	err := r.db.WithContext(ctx).Model(&models.ProxyRule{}).
		Select("proxy_rules.country, proxy_rules.payout_channel_id").
		Joins("INNER JOIN payout_channels ON payout_channels.channel_id = proxy_rules.payout_channel_id").
		Where("payout_channels.creator_id = ? AND payout_channels.removed = ?", creatorID, false).
		Find(&rules).Error
	if err != nil {
		return nil, err
	}

	result := map[string][]uuid.UUID{}
	for _, rule := range rules {
		result[rule.Country] = append(result[rule.Country], rule.PayoutChannelID)
	}
	return result, nil
}

// CreatorRepository loads creators for recipient resolution.
type CreatorRepository interface {
	GetByID(ctx context.Context, creatorID uuid.UUID, withRemoved bool) (*models.Creator, error)
}

type creatorRepository struct {
	db *gorm.DB
}

func NewCreatorRepository(db *gorm.DB) CreatorRepository {
	return &creatorRepository{db: db}
}

func (r *creatorRepository) GetByID(ctx context.Context, creatorID uuid.UUID, withRemoved bool) (*models.Creator, error) {
	query := r.db.WithContext(ctx).Where("creator_id = ?", creatorID)
	if !withRemoved {
		query = query.Where("removed = ?", false)
	}

	var creator models.Creator
	if err := query.First(&creator).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.ObjectNotFound, "User not found")
		}
		return nil, err
	}
	return &creator, nil
}

// VerificationRepository reads KYC verification states written by the
// external verification flows.
type VerificationRepository interface {
	FindStates(ctx context.Context, creatorID uuid.UUID) ([]*models.VerificationStateRow, error)
}

type verificationRepository struct {
	db *gorm.DB
}

func NewVerificationRepository(db *gorm.DB) VerificationRepository {
	return &verificationRepository{db: db}
}

func (r *verificationRepository) FindStates(ctx context.Context, creatorID uuid.UUID) ([]*models.VerificationStateRow, error) {
	var rows []*models.VerificationStateRow
	err := r.db.WithContext(ctx).Where("creator_id = ?", creatorID).Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ReferenceRepository loads the startup registries: provider parameters,
// currency rates and countries.
type ReferenceRepository interface {
	FindPayoutProviders(ctx context.Context) ([]*models.PayoutProvider, error)
	SetProviderParameters(ctx context.Context, provider *models.PayoutProvider) error
	FindCurrencyRates(ctx context.Context) ([]*models.CurrencyRate, error)
	UpsertCurrencyRates(ctx context.Context, rates []*models.CurrencyRate) error
	FindCountries(ctx context.Context) ([]*models.Country, error)
}

type referenceRepository struct {
	db *gorm.DB
}

func NewReferenceRepository(db *gorm.DB) ReferenceRepository {
	return &referenceRepository{db: db}
}

func (r *referenceRepository) FindPayoutProviders(ctx context.Context) ([]*models.PayoutProvider, error) {
	var providers []*models.PayoutProvider
	if err := r.db.WithContext(ctx).Find(&providers).Error; err != nil {
		return nil, err
	}
	return providers, nil
}

func (r *referenceRepository) SetProviderParameters(ctx context.Context, provider *models.PayoutProvider) error {
	return r.db.WithContext(ctx).Model(&models.PayoutProvider{}).
		Where("name = ?", provider.Name).
		Updates(map[string]interface{}{
			"default_fee":      provider.DefaultFee,
			"transfer_min_usd": provider.TransferMinUSD,
			"transfer_max_usd": provider.TransferMaxUSD,
		}).Error
}

func (r *referenceRepository) FindCurrencyRates(ctx context.Context) ([]*models.CurrencyRate, error) {
	var rates []*models.CurrencyRate
	if err := r.db.WithContext(ctx).Find(&rates).Error; err != nil {
		return nil, err
	}
	return rates, nil
}

func (r *referenceRepository) UpsertCurrencyRates(ctx context.Context, rates []*models.CurrencyRate) error {
	if len(rates) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "symbol"}},
		DoUpdates: clause.AssignmentColumns([]string{"to_usd"}),
	}).Create(&rates).Error
}

func (r *referenceRepository) FindCountries(ctx context.Context) ([]*models.Country, error) {
	var countries []*models.Country
	if err := r.db.WithContext(ctx).Find(&countries).Error; err != nil {
		return nil, err
	}
	return countries, nil
}
