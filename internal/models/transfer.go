package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Transfer status state machine:
// created -> pending -> submitted -> pending payout -> paid out | payment complete
// canceled / failed / expired / rejected are independent terminal states.
const (
	StatusCreated         = "created"
	StatusPending         = "pending"
	StatusSubmitted       = "submitted"
	StatusPendingPayout   = "pending payout"
	StatusPaidOut         = "paid out"
	StatusPaymentComplete = "payment complete"
	StatusCanceled        = "canceled"
	StatusFailed          = "failed"
	StatusExpired         = "expired"
	StatusRejected        = "rejected"
)

// IsFinalSuccess reports whether a payment status means money arrived.
func IsFinalSuccess(status string) bool {
	return status == StatusPaidOut || status == StatusPaymentComplete
}

// PaymentData is the provider-issued funding payload attached to a payment:
// a redirect URL, a raw signable chain transaction, or a bare destination.
type PaymentData struct {
	PaymentURL               string            `json:"payment_url,omitempty"`
	Transaction              map[string]string `json:"transaction,omitempty"`
	DestinationCryptoAddress string            `json:"destination_crypto_address,omitempty"`
}

func (d *PaymentData) Serialize() (string, error) {
	raw, err := json.Marshal(d)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func ParsePaymentData(raw string) (*PaymentData, error) {
	data := &PaymentData{}
	if err := json.Unmarshal([]byte(raw), data); err != nil {
		return nil, err
	}
	return data, nil
}

// Payment is one hop of a transfer. Identity is (transfer_id, payment_index)
// and is immutable once created; everything else mutates via sparse patch.
type Payment struct {
	TransferID      uuid.UUID        `json:"transfer_id" gorm:"type:uuid;primaryKey"`
	PaymentIndex    int              `json:"payment_index" gorm:"primaryKey;autoIncrement:false"`
	SenderChannelID *uuid.UUID       `json:"sender_channel_id" gorm:"type:uuid"`
	PayoutChannelID uuid.UUID        `json:"payout_channel_id" gorm:"type:uuid;not null"`
	PaymentType     string           `json:"payment_type" gorm:"not null;index:idx_payment_type_status"`
	Provider        string           `json:"provider" gorm:"not null"`
	Currency        string           `json:"currency" gorm:"not null"`
	ExternalID      *string          `json:"external_id" gorm:"index"`
	TotalAmount     *decimal.Decimal `json:"total_amount" gorm:"type:numeric"`
	ToUSDRate       *decimal.Decimal `json:"to_usd_rate" gorm:"type:numeric"`
	ProviderFee     *decimal.Decimal `json:"provider_fee" gorm:"type:numeric"`
	PaymentData     *string          `json:"payment_data" gorm:"type:jsonb"`
	Status          string           `json:"status" gorm:"not null;default:'created';index:idx_payment_type_status"`
	CreationTime    time.Time        `json:"creation_time" gorm:"autoCreateTime"`
}

// Data decodes the jsonb payment_data column, nil when unset.
func (p *Payment) Data() (*PaymentData, error) {
	if p.PaymentData == nil {
		return nil, nil
	}
	return ParsePaymentData(*p.PaymentData)
}

// Transfer owns an ordered list of payments: one for direct settlement, two
// when relayed through a remittance user's channel.
type Transfer struct {
	TransferID     uuid.UUID        `json:"transfer_id" gorm:"type:uuid;primaryKey"`
	CreatorID      uuid.UUID        `json:"creator_id" gorm:"type:uuid;not null;index"`
	Sender         *uuid.UUID       `json:"sender" gorm:"type:uuid"`
	Message        *string          `json:"message"`
	StartedAt      time.Time        `json:"started_at" gorm:"autoCreateTime"`
	Status         string           `json:"status" gorm:"not null;default:'created'"`
	RemittanceUser *uuid.UUID       `json:"remittance_user" gorm:"type:uuid;index"`
	TMFee          *decimal.Decimal `json:"tm_fee" gorm:"column:tm_fee;type:numeric"`
	AuthAccount    *uuid.UUID       `json:"auth_account" gorm:"type:uuid"`

	// Payments are loaded by the repository in payment_index order.
	Payments []Payment `json:"payments" gorm:"-"`
}

// Ids are generated client side so inserts behave the same on every driver.
func (t *Transfer) BeforeCreate(*gorm.DB) error {
	if t.TransferID == uuid.Nil {
		t.TransferID = uuid.New()
	}
	return nil
}
