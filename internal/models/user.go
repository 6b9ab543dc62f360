package models

import (
	"time"

	"gorm.io/gorm"
)

// UserType represents the role of a user
type UserType string

const (
	UserTypeAdmin  UserType = "Admin"
	UserTypeMember UserType = "Member"
)

// User is a portal account backed by a Firebase identity
type User struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	FirebaseUID string   `gorm:"type:varchar(128);uniqueIndex" json:"firebase_uid"`
	Name        string   `gorm:"type:varchar(255)" json:"name"`
	Phone       string   `gorm:"type:varchar(50)" json:"phone"`
	Email       string   `gorm:"type:varchar(255);uniqueIndex" json:"email"`
	UserType    UserType `gorm:"type:varchar(20);default:'Member'" json:"user_type"`

	Requests []Request `gorm:"foreignKey:UserID" json:"requests,omitempty"`
}

// IsAdmin reports whether the user may use the admin surface
func (u User) IsAdmin() bool {
	return u.UserType == UserTypeAdmin
}
