package models

import (
	"encoding/json"
	"time"
)

type PaymentGateway string

const (
	PaymentGatewayMidtrans PaymentGateway = "midtrans"
	PaymentGatewayManual   PaymentGateway = "manual"
)

type CallbackStatus string

const (
	CallbackStatusReceived  CallbackStatus = "received"
	CallbackStatusProcessed CallbackStatus = "processed"
	CallbackStatusIgnored   CallbackStatus = "ignored"
	CallbackStatusFailed    CallbackStatus = "failed"
)

// PaymentCallbackHistory keeps the raw gateway notifications for audit and replay
type PaymentCallbackHistory struct {
	ID                uint            `gorm:"primaryKey" json:"id"`
	PaymentGateway    PaymentGateway  `gorm:"type:varchar(50);not null" json:"payment_gateway"`
	Reference         string          `gorm:"type:varchar(100);index" json:"reference"`
	TransactionStatus string          `gorm:"type:varchar(50)" json:"transaction_status"`
	Status            CallbackStatus  `gorm:"type:varchar(20)" json:"status"`
	Error             string          `gorm:"type:text" json:"error"`
	Metadata          json.RawMessage `gorm:"type:jsonb" json:"metadata"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}
