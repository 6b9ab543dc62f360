package models

import "time"

// Document is an applicant upload stored in object storage
type Document struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	RequestID   uint   `gorm:"index;not null" json:"request_id"`
	Kind        string `gorm:"type:varchar(50)" json:"kind"` // e.g. "passport", "photo"
	Path        string `gorm:"type:varchar(512);not null" json:"path"`
	PublicURL   string `gorm:"type:text" json:"public_url"`
	ContentType string `gorm:"type:varchar(100)" json:"content_type"`
	Size        int64  `json:"size"`
}
