package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentSession is one checkout attempt opened at the gateway for a stage
type PaymentSession struct {
	ID               uint            `gorm:"primaryKey" json:"id"`
	RequestID        uint            `gorm:"index:idx_payment_sessions_request_stage,priority:1" json:"request_id"`
	Stage            string          `gorm:"type:varchar(20);index:idx_payment_sessions_request_stage,priority:2" json:"stage"`
	PaymentGateway   PaymentGateway  `gorm:"type:varchar(50);not null" json:"payment_gateway"`
	Reference        string          `gorm:"type:varchar(100);uniqueIndex" json:"reference"`
	Amount           decimal.Decimal `gorm:"type:decimal(15,2)" json:"amount"`
	Currency         string          `gorm:"type:varchar(3)" json:"currency"`
	PayerEmail       string          `gorm:"type:varchar(255)" json:"payer_email"`
	PayerName        string          `gorm:"type:varchar(255)" json:"payer_name"`
	IsActive         bool            `gorm:"default:true" json:"is_active"`
	RequestMetadata  json.RawMessage `gorm:"type:jsonb" json:"request_metadata"`
	ResponseMetadata json.RawMessage `gorm:"type:jsonb" json:"response_metadata"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}
