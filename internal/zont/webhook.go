package zont

import (
	"encoding/json"
	"errors"

	"zont-sync-backend/internal/device"
)

// Coordinates is the GPS position attached to tracker events.
type Coordinates struct {
	Lat string `json:"lat"`
	Lng string `json:"lng"`
}

// AdditionalInfo names the entity an event refers to.
type AdditionalInfo struct {
	ObjectID device.ID `json:"object_id"`
}

// DeviceEvent is the body the cloud posts to a webhook.
type DeviceEvent struct {
	DeviceID       device.ID      `json:"device_id"`
	DeviceName     string         `json:"device_name"`
	Type           string         `json:"type"`
	Title          string         `json:"title"`
	Details        string         `json:"details"`
	Time           string         `json:"time"`
	Important      bool           `json:"important"`
	Source         string         `json:"source"`
	GPS            Coordinates    `json:"gps"`
	AdditionalInfo AdditionalInfo `json:"additional_info"`
}

// ParseDeviceEvent decodes a webhook body. The device id is required.
func ParseDeviceEvent(raw []byte) (*DeviceEvent, error) {
	var ev DeviceEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return nil, &SchemaError{Field: "webhook", Err: err}
	}
	if ev.DeviceID == "" {
		return nil, &SchemaError{Field: "webhook.device_id", Err: errors.New("missing")}
	}
	return &ev, nil
}
