package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Channel types for PayoutChannel.ChannelType
const (
	ChannelTypeCrypto      = "crypto"
	ChannelTypeBankAccount = "bank_account"
)

// Payment types a provider account can accept. Crypto types are network
// qualified, see CryptoPaymentType.
const (
	PaymentTypeCard         = "card"
	PaymentTypeInternalBank = "internal:bank_account"
	PaymentTypeOnramp       = "onramp"
)

// CryptoPaymentType builds the payment type of an on-chain payment.
func CryptoPaymentType(network string) string {
	return ChannelTypeCrypto + ":" + network
}

// Creator is the owner of payout channels and the recipient of transfers.
// Personal data beyond routing needs lives with the hosting service.
type Creator struct {
	CreatorID   uuid.UUID `json:"creator_id" gorm:"type:uuid;primaryKey"`
	RegDatetime time.Time `json:"reg_datetime" gorm:"autoCreateTime"`
	Country     *string   `json:"country"`
	Removed     bool      `json:"removed" gorm:"not null;default:false"`
}

// Ids are generated client side so inserts behave the same on every driver.
func (c *Creator) BeforeCreate(*gorm.DB) error {
	if c.CreatorID == uuid.Nil {
		c.CreatorID = uuid.New()
	}
	return nil
}

// PayoutChannel is a creator's registered receiving destination.
// Identity is (creator_id, channel_type, data, currency): re-attaching
// identical data restores the removed row instead of inserting a duplicate.
type PayoutChannel struct {
	ChannelID   uuid.UUID `json:"channel_id" gorm:"type:uuid;primaryKey"`
	CreatorID   uuid.UUID `json:"creator_id" gorm:"type:uuid;not null;index;uniqueIndex:idx_channel_identity"`
	ChannelType string    `json:"channel_type" gorm:"not null;uniqueIndex:idx_channel_identity"`
	Data        string    `json:"data" gorm:"type:jsonb;not null;uniqueIndex:idx_channel_identity"`
	Currency    *string   `json:"currency" gorm:"uniqueIndex:idx_channel_identity"`
	Removed     bool      `json:"removed" gorm:"not null;default:false"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (c *PayoutChannel) BeforeCreate(*gorm.DB) error {
	if c.ChannelID == uuid.Nil {
		c.ChannelID = uuid.New()
	}
	return nil
}

// ProviderAccountRow binds a payment provider to a payout channel.
// One row per (channel, provider).
type ProviderAccountRow struct {
	ChannelID    uuid.UUID `json:"channel_id" gorm:"type:uuid;primaryKey"`
	Provider     string    `json:"provider" gorm:"primaryKey"`
	ProviderData *string   `json:"provider_data" gorm:"type:jsonb"`
	ExternalID   *string   `json:"external_id" gorm:"index"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (ProviderAccountRow) TableName() string {
	return "provider_accounts"
}

// ProxyRule routes a country to an intermediary payout channel used as the
// first hop of relayed transfers.
type ProxyRule struct {
	Country         string    `json:"country" gorm:"primaryKey"`
	PayoutChannelID uuid.UUID `json:"payout_channel_id" gorm:"type:uuid;primaryKey"`
}

// PayoutProvider carries per-provider fee and bounds parameters. NULL bounds
// fall back to the platform-wide limits.
type PayoutProvider struct {
	Name           string           `json:"name" gorm:"primaryKey"`
	DefaultFee     decimal.Decimal  `json:"default_fee" gorm:"type:numeric;not null;default:0"`
	TransferMinUSD *decimal.Decimal `json:"transfer_min_usd" gorm:"type:numeric"`
	TransferMaxUSD *decimal.Decimal `json:"transfer_max_usd" gorm:"type:numeric"`
}

// CurrencyRate is one row of the external exchange-rate table.
type CurrencyRate struct {
	Symbol string          `json:"symbol" gorm:"primaryKey"`
	ToUSD  decimal.Decimal `json:"to_usd" gorm:"type:numeric;not null"`
}

// Country configures which payout and KYC providers operate in a country.
// Provider lists are stored as JSON arrays.
type Country struct {
	Name            string  `json:"name" gorm:"primaryKey"`
	Code            string  `json:"code" gorm:"uniqueIndex;not null"`
	PayoutProviders string  `json:"payout_providers" gorm:"type:jsonb;not null;default:'[]'"`
	KYCProvider     *string `json:"kyc_provider"`
}

// VerificationStateRow is the per-creator, per-KYC-provider state written by
// the external verification flows and only read here.
type VerificationStateRow struct {
	CreatorID   uuid.UUID `json:"creator_id" gorm:"type:uuid;primaryKey"`
	Provider    string    `json:"provider" gorm:"primaryKey"`
	State       string    `json:"state" gorm:"not null"`
	Description *string   `json:"description"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (VerificationStateRow) TableName() string {
	return "verification_states"
}
