package models

import (
	"time"

	"gorm.io/gorm"
)

// Account is an email/password identity. UID is the id every storage key and
// profile document hangs off.
type Account struct {
	UID          string         `gorm:"primaryKey;type:varchar(64)" json:"uid"`
	Email        string         `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string         `gorm:"not null" json:"-"` // Hidden from JSON
	DisplayName  string         `gorm:"type:varchar(100)" json:"displayName"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}
