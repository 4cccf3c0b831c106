package model

import "time"

// CommandLog records every command sent upstream and how it ended.
type CommandLog struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	AccountID string    `gorm:"size:64;not null;index" json:"account_id"`
	DeviceID  string    `gorm:"size:64;not null" json:"device_id"`
	TargetID  string    `gorm:"size:64" json:"target_id"`
	Kind      string    `gorm:"size:32;not null" json:"kind"`
	Value     string    `gorm:"size:64" json:"value"`
	Outcome   string    `gorm:"size:16" json:"outcome"`
	Error     string    `gorm:"size:512" json:"error,omitempty"`
	Refreshes int       `json:"refreshes"`
	Converged *bool     `json:"converged,omitempty"`
	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
}

// WebhookEvent is a raw push notification received from the cloud.
type WebhookEvent struct {
	ID         int64     `gorm:"primaryKey;autoIncrement"`
	AccountID  string    `gorm:"size:64;not null;index"`
	DeviceID   string    `gorm:"size:64"`
	Tracked    bool      `gorm:"not null"`
	Payload    string    `gorm:"type:text;not null"`
	ReceivedAt time.Time `gorm:"not null"`
}
