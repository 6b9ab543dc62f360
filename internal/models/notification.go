package models

import "time"

type NotificationType string

const (
	NotificationTypePayment NotificationType = "payment"
	NotificationTypeStatus  NotificationType = "status"
)

// Notification is an in-app message shown to the request owner
type Notification struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	RequestID uint             `gorm:"index" json:"request_id"`
	UserID    uint             `gorm:"index" json:"user_id"`
	Type      NotificationType `gorm:"type:varchar(20)" json:"type"`
	Title     string           `gorm:"type:varchar(255)" json:"title"`
	Message   string           `gorm:"type:text" json:"message"`
	IsRead    bool             `gorm:"default:false" json:"is_read"`
}
