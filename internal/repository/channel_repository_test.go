package repository

import (
	"context"
	"fmt"
	"testing"

	"payrouter/internal/apperr"
	"payrouter/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
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

func TestCreateOrRestoreKeepsChannelIdentity(t *testing.T) {
	repo := NewChannelRepository(testDB(t))
	ctx := context.Background()
	creatorID := uuid.New()
	brl := "BRL"

	channel, restored, err := repo.CreateOrRestore(ctx, creatorID,
		models.ChannelTypeBankAccount, `{"country":"Brazil"}`, &brl)
	require.NoError(t, err)
	assert.False(t, restored)
	assert.False(t, channel.Removed)
	require.NotEqual(t, uuid.Nil, channel.ChannelID)

	require.NoError(t, repo.Remove(ctx, channel.ChannelID))
	_, err = repo.GetByID(ctx, channel.ChannelID, false)
	assert.True(t, apperr.Is(err, apperr.ObjectNotFound))
	removed, err := repo.GetByID(ctx, channel.ChannelID, true)
	require.NoError(t, err)
	assert.True(t, removed.Removed)

	// Re-attaching identical data restores the row under the same id.
	again, restored, err := repo.CreateOrRestore(ctx, creatorID,
		models.ChannelTypeBankAccount, `{"country":"Brazil"}`, &brl)
	require.NoError(t, err)
	assert.True(t, restored)
	assert.Equal(t, channel.ChannelID, again.ChannelID)
	assert.False(t, again.Removed)

	active, err := repo.GetByID(ctx, channel.ChannelID, false)
	require.NoError(t, err)
	assert.False(t, active.Removed)
}

func TestCreateOrRestoreDistinctDataMakesNewChannel(t *testing.T) {
	repo := NewChannelRepository(testDB(t))
	ctx := context.Background()
	creatorID := uuid.New()

	first, _, err := repo.CreateOrRestore(ctx, creatorID,
		models.ChannelTypeCrypto, `{"network":"Polygon","address":"0xaa"}`, nil)
	require.NoError(t, err)
	second, restored, err := repo.CreateOrRestore(ctx, creatorID,
		models.ChannelTypeCrypto, `{"network":"Polygon","address":"0xbb"}`, nil)
	require.NoError(t, err)
	assert.False(t, restored)
	assert.NotEqual(t, first.ChannelID, second.ChannelID)

	channels, err := repo.FindByCreator(ctx, creatorID)
	require.NoError(t, err)
	require.Len(t, channels, 2)
	assert.Equal(t, first.ChannelID, channels[0].ChannelID)
	assert.Equal(t, second.ChannelID, channels[1].ChannelID)

	require.NoError(t, repo.Remove(ctx, first.ChannelID))
	channels, err = repo.FindByCreator(ctx, creatorID)
	require.NoError(t, err)
	require.Len(t, channels, 1)
	assert.Equal(t, second.ChannelID, channels[0].ChannelID)
}

func TestProviderAccountCreateOrRestoreRefreshes(t *testing.T) {
	repo := NewProviderAccountRepository(testDB(t))
	ctx := context.Background()
	channelID := uuid.New()

	first := "acct_1"
	require.NoError(t, repo.CreateOrRestore(ctx, channelID, "stripe", nil, &first))
	second := "acct_2"
	require.NoError(t, repo.CreateOrRestore(ctx, channelID, "stripe", nil, &second))

	rows, err := repo.FindByChannel(ctx, channelID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.NotNil(t, rows[0].ExternalID)
	assert.Equal(t, second, *rows[0].ExternalID)
}
