package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Request is one travel or accreditation case
type Request struct {
	ID            uint      `gorm:"primarykey" json:"id"`
	CreatedAt     time.Time `gorm:"<-:create" json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	RequestNumber string    `gorm:"type:varchar(32);uniqueIndex;not null" json:"request_number"` // e.g. TRV-20260118-0007

	UserID      uint   `gorm:"index" json:"user_id"`
	Service     string `gorm:"type:varchar(20);index;not null" json:"service"`
	ProgramType string `gorm:"type:varchar(50)" json:"program_type"`
	ProjectType string `gorm:"type:varchar(50)" json:"project_type"`
	Level       string `gorm:"type:varchar(50)" json:"level"`

	// Applicant snapshot, captured once at creation
	FullName string         `gorm:"type:varchar(255)" json:"full_name"`
	Email    string         `gorm:"type:varchar(255)" json:"email"`
	Phone    string         `gorm:"type:varchar(50)" json:"phone"`
	Details  datatypes.JSON `gorm:"type:jsonb" json:"details"`

	TotalAmount decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"total_amount"`
	AmountPaid  decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"amount_paid"`
	BalanceDue  decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"balance_due"`

	Status           string  `gorm:"type:varchar(50);index" json:"status"`
	PaymentStage     string  `gorm:"type:varchar(20)" json:"payment_stage"`
	EvaluationStatus *string `gorm:"type:varchar(20)" json:"evaluation_status"`

	// Version is bumped on every update and used for compare-and-swap writes
	Version int `gorm:"not null;default:1" json:"version"`
}

// CheckBalance verifies amount_paid + balance_due == total_amount
func (r *Request) CheckBalance() error {
	if !r.AmountPaid.Add(r.BalanceDue).Equal(r.TotalAmount) {
		return fmt.Errorf("request %s: amount paid %s + balance due %s != total %s",
			r.RequestNumber, r.AmountPaid, r.BalanceDue, r.TotalAmount)
	}
	return nil
}

// RecordPayment moves amount from the balance to the paid column
func (r *Request) RecordPayment(amount decimal.Decimal) {
	r.AmountPaid = r.AmountPaid.Add(amount)
	r.BalanceDue = r.BalanceDue.Sub(amount)
}

// ExtendTotal adds a newly billed amount to both total and balance
func (r *Request) ExtendTotal(amount decimal.Decimal) {
	r.TotalAmount = r.TotalAmount.Add(amount)
	r.BalanceDue = r.BalanceDue.Add(amount)
}

// EvaluationStatusValue returns the evaluation status or "" when unset
func (r *Request) EvaluationStatusValue() string {
	if r.EvaluationStatus == nil {
		return ""
	}
	return *r.EvaluationStatus
}
