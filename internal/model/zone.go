package model

import (
	"time"
)

// ZoneStateOpen is the last observed state of a guard zone (hot table).
type ZoneStateOpen struct {
	AccountID  string    `gorm:"primaryKey;size:64"`
	DeviceID   string    `gorm:"primaryKey;size:64"`
	ZoneID     string    `gorm:"primaryKey;size:64"`
	Name       string    `gorm:"size:256;not null"`
	State      string    `gorm:"size:16;not null"`
	Alarm      bool      `gorm:"not null"`
	ObservedAt time.Time `gorm:"not null"`
}

// ZoneEvent is an archived guard zone state (cold table). FromState held
// from PeriodStart until ObservedAt, when ToState was first seen. WasAlarm is
// the alarm flag of the previous observation.
type ZoneEvent struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	AccountID   string    `gorm:"size:64;not null;index:idx_zone_events_device" json:"account_id"`
	DeviceID    string    `gorm:"size:64;not null;index:idx_zone_events_device" json:"device_id"`
	ZoneID      string    `gorm:"size:64;not null" json:"zone_id"`
	Name        string    `gorm:"size:256;not null" json:"name"`
	FromState   string    `gorm:"size:16;not null" json:"from_state"`
	ToState     string    `gorm:"size:16;not null" json:"to_state"`
	Alarm       bool      `gorm:"not null" json:"alarm"`
	WasAlarm    bool      `gorm:"not null" json:"was_alarm"`
	PeriodStart time.Time `gorm:"not null" json:"period_start"`
	ObservedAt  time.Time `gorm:"not null;index" json:"observed_at"`
}
