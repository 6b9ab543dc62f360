package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
	// PaymentStatusUnapplied is money the gateway settled for a stage that
	// could no longer take it. It waits for manual review or refund.
	PaymentStatusUnapplied PaymentStatus = "unapplied"
)

// Payment records one settled payment for a request stage. Rows are never
// updated or deleted.
type Payment struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	RequestID            uint            `gorm:"index;not null" json:"request_id"`
	PaymentStage         string          `gorm:"type:varchar(20);not null" json:"payment_stage"`
	Amount               decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"amount"`
	PaymentStatus        PaymentStatus   `gorm:"type:varchar(20);not null" json:"payment_status"`
	PaymentMethod        PaymentGateway  `gorm:"type:varchar(50);not null" json:"payment_method"`
	TransactionReference string          `gorm:"type:varchar(100);uniqueIndex;not null" json:"transaction_reference"`
	GatewayReference     string          `gorm:"type:varchar(100);index" json:"gateway_reference"` // order id sent to the gateway
	ChannelPayment       string          `gorm:"type:varchar(100)" json:"channel_payment"`          // e.g. "bank_transfer", "gopay"
	PaymentDate          time.Time       `json:"payment_date"`
}
