package models

import "time"

// StatusHistory is an append-only log of request status changes
type StatusHistory struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`

	RequestID uint   `gorm:"index;not null" json:"request_id"`
	OldStatus string `gorm:"type:varchar(50)" json:"old_status"`
	NewStatus string `gorm:"type:varchar(50);not null" json:"new_status"`
	Notes     string `gorm:"type:text" json:"notes"`
	ChangedBy string `gorm:"type:varchar(255)" json:"changed_by"`
}

func (StatusHistory) TableName() string {
	return "request_status_history"
}
