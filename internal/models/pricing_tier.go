package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PricingTier overrides the static price of a program combination
type PricingTier struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Service     string          `gorm:"type:varchar(20);uniqueIndex:idx_pricing_tier_key,priority:1" json:"service"`
	ProgramType string          `gorm:"type:varchar(50);uniqueIndex:idx_pricing_tier_key,priority:2" json:"program_type"`
	ProjectType string          `gorm:"type:varchar(50);uniqueIndex:idx_pricing_tier_key,priority:3" json:"project_type"`
	Level       string          `gorm:"type:varchar(50);uniqueIndex:idx_pricing_tier_key,priority:4" json:"level"`
	BaseFee     decimal.Decimal `gorm:"type:decimal(15,2)" json:"base_fee"`
	Tranche1Fee decimal.Decimal `gorm:"type:decimal(15,2)" json:"tranche1_fee"`
	ProgramFee  decimal.Decimal `gorm:"type:decimal(15,2)" json:"program_fee"`
	AdvanceFee  decimal.Decimal `gorm:"type:decimal(15,2)" json:"advance_fee"`
	IsActive    bool            `gorm:"not null" json:"is_active"`
}
