package model

import "time"

// Account is a configured cloud account.
type Account struct {
	ID            string    `gorm:"primaryKey;size:64"`
	SchemaVersion string    `gorm:"size:8;not null"`
	CreatedAt     time.Time `gorm:"not null"`
	UpdatedAt     time.Time `gorm:"not null"`

	// Associations
	Devices []Device `gorm:"foreignKey:AccountID"`
}
