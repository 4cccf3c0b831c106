package model

import "time"

// Device is the catalog entry of a controller, refreshed from every snapshot.
type Device struct {
	AccountID string `gorm:"primaryKey;size:64"`
	ID        string `gorm:"primaryKey;size:64"` // Upstream ID
	Name      string `gorm:"size:256;not null"`
	Model     string `gorm:"size:64"`
	Serial    string `gorm:"size:64"`
	Online    bool
	LastSeen  time.Time `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time

	// Associations
	Account Account `gorm:"foreignKey:AccountID;constraint:OnDelete:CASCADE"`
}
