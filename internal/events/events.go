package events

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Notification categories, used as the routing key of published events.
const (
	CategoryAccountCreated   = "account_created"
	CategoryAccountDeleted   = "account_deleted"
	CategoryPayoutRequest    = "payout_request"
	CategoryTransferComplete = "transfer_complete"
)

// Notification is an event published to the hosting service.
type Notification interface {
	Category() string
}

// AccountCreated fires once when a provider attaches to a payout channel.
type AccountCreated struct {
	CreatorID  uuid.UUID `json:"creator_id"`
	ChannelID  uuid.UUID `json:"channel_id"`
	Provider   string    `json:"provider"`
	ExternalID string    `json:"external_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

func (AccountCreated) Category() string { return CategoryAccountCreated }

// AccountDeleted fires once per channel removal, after every provider
// account of the channel is detached.
type AccountDeleted struct {
	CreatorID  uuid.UUID `json:"creator_id"`
	ChannelID  uuid.UUID `json:"channel_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

func (AccountDeleted) Category() string { return CategoryAccountDeleted }

// PayoutRequest asks the relay account owner to execute the second hop of a
// two-step transfer.
type PayoutRequest struct {
	TransferID     uuid.UUID       `json:"transfer_id"`
	RemittanceUser uuid.UUID       `json:"remittance_user"`
	CreatorID      uuid.UUID       `json:"creator_id"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
	OccurredAt     time.Time       `json:"occurred_at"`
}

func (PayoutRequest) Category() string { return CategoryPayoutRequest }

// TransferComplete fires once when a transfer reaches its terminal
// success status.
type TransferComplete struct {
	TransferID uuid.UUID `json:"transfer_id"`
	CreatorID  uuid.UUID `json:"creator_id"`
	Status     string    `json:"status"`
	OccurredAt time.Time `json:"occurred_at"`
}

func (TransferComplete) Category() string { return CategoryTransferComplete }

// Notifier delivers notifications to the hosting service.
type Notifier interface {
	Notify(event Notification) error
}
