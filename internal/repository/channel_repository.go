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

// ChannelRepository defines the interface for payout channel data access
type ChannelRepository interface {
	// CreateOrRestore attaches a channel. If an identical
	// (creator, type, data, currency) tuple exists it is un-removed and its
	// channel_id reused; otherwise a new row is inserted.
	CreateOrRestore(ctx context.Context, creatorID uuid.UUID, channelType, data string, currency *string) (*models.PayoutChannel, bool, error)
	GetByID(ctx context.Context, channelID uuid.UUID, withRemoved bool) (*models.PayoutChannel, error)
	FindByCreator(ctx context.Context, creatorID uuid.UUID) ([]*models.PayoutChannel, error)
	Remove(ctx context.Context, channelID uuid.UUID) error
}

type channelRepository struct {
	db *gorm.DB
}

// NewChannelRepository creates a new ChannelRepository instance
func NewChannelRepository(db *gorm.DB) ChannelRepository {
	return &channelRepository{db: db}
}

func (r *channelRepository) CreateOrRestore(
	ctx context.Context, creatorID uuid.UUID, channelType, data string, currency *string,
) (*models.PayoutChannel, bool, error) {
	identity := r.db.WithContext(ctx).Model(&models.PayoutChannel{}).
		Where("creator_id = ? AND channel_type = ? AND data = ?", creatorID, channelType, data)

	res := identity.Updates(map[string]interface{}{"removed": false, "currency": currency})
	if res.Error != nil {
		return nil, false, res.Error
	}
	if res.RowsAffected > 0 {
		var restored models.PayoutChannel
		err := r.db.WithContext(ctx).
			Where("creator_id = ? AND channel_type = ? AND data = ?", creatorID, channelType, data).
			First(&restored).Error
		if err != nil {
			return nil, false, err
		}
		return &restored, true, nil
	}

	channel := &models.PayoutChannel{
		CreatorID:   creatorID,
		ChannelType: channelType,
		Data:        data,
		Currency:    currency,
	}
	res = r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(channel)
	if res.Error != nil {
		return nil, false, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, false, apperr.Internalf("channel with the same data already exists")
	}
	return channel, false, nil
}

func (r *channelRepository) GetByID(ctx context.Context, channelID uuid.UUID, withRemoved bool) (*models.PayoutChannel, error) {
	query := r.db.WithContext(ctx).Where("channel_id = ?", channelID)
	if !withRemoved {
		query = query.Where("removed = ?", false)
	}

	var channel models.PayoutChannel
	if err := query.First(&channel).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.ObjectNotFound, "Account %s not found", channelID)
		}
		return nil, err
	}
	return &channel, nil
}

func (r *channelRepository) FindByCreator(ctx context.Context, creatorID uuid.UUID) ([]*models.PayoutChannel, error) {
	var channels []*models.PayoutChannel
	err := r.db.WithContext(ctx).
		Where("creator_id = ? AND removed = ?", creatorID, false).
		Order("created_at").
		Find(&channels).Error
	if err != nil {
		return nil, err
	}
	return channels, nil
}

func (r *channelRepository) Remove(ctx context.Context, channelID uuid.UUID) error {
	return r.db.WithContext(ctx).Model(&models.PayoutChannel{}).
		Where("channel_id = ? AND removed = ?", channelID, false).
		Update("removed", true).Error
}
