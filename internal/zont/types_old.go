package zont

import (
	"bytes"
	"encoding/json"
	"math"
	"time"

	"zont-sync-backend/internal/device"
)

// Payload of the legacy widget endpoint.

type oldAccount struct {
	OK      *bool       `json:"ok"`
	Devices []oldDevice `json:"devices"`
}

type oldCircuit struct {
	ID          device.ID  `json:"id"`
	Name        string     `json:"name"`
	Status      *string    `json:"status"`
	Active      bool       `json:"active"`
	ActualTemp  *float64   `json:"actual_temp"`
	IsOff       bool       `json:"is_off"`
	TargetTemp  *float64   `json:"target_temp"`
	CurrentMode *device.ID `json:"current_mode"`
	TargetMin   flexFloat  `json:"target_min"`
	TargetMax   flexFloat  `json:"target_max"`
}

// oldMode.CanBeApplied is a single flag: true means every circuit.
type oldMode struct {
	ID           device.ID `json:"id"`
	Name         string    `json:"name"`
	CanBeApplied bool      `json:"can_be_applied"`
	Color        *string   `json:"color"`
}

type oldSensor struct {
	ID     device.ID          `json:"id"`
	Name   string             `json:"name"`
	Type   string             `json:"type"`
	Status string             `json:"status"`
	Value  device.SensorValue `json:"value"`
	Unit   *string            `json:"unit"`
}

type oldControl struct {
	ID     device.ID `json:"id"`
	Name   rawLabels `json:"name"`
	Type   string    `json:"type"`
	Status *bool     `json:"status"`
}

type oldDevice struct {
	ID              device.ID     `json:"id"`
	Name            string        `json:"name"`
	Model           string        `json:"model"`
	Serial          string        `json:"serial"`
	Online          bool          `json:"online"`
	WidgetType      *string       `json:"widget_type"`
	HeatingCircuits []oldCircuit  `json:"heating_circuits"`
	HeatingModes    []oldMode     `json:"heating_modes"`
	Sensors         []oldSensor   `json:"sensors"`
	OTSensors       []oldSensor   `json:"ot_sensors"`
	GuardZones      zoneList      `json:"guard_zones"`
	CustomControls  []oldControl  `json:"custom_controls"`
	Scenarios       []rawScenario `json:"scenarios"`
	CarState        oldCarField   `json:"car_state"`
}

type oldCarState struct {
	EngineOn  bool `json:"engine_on"`
	Autostart struct {
		Available bool     `json:"available"`
		Status    string   `json:"status"`
		Until     flexTime `json:"until"`
	} `json:"autostart"`
	EngineBlock    bool   `json:"engine_block"`
	Siren          bool   `json:"siren"`
	DoorFrontLeft  bool   `json:"door_front_left"`
	DoorFrontRight bool   `json:"door_front_right"`
	DoorRearLeft   bool   `json:"door_rear_left"`
	DoorRearRight  bool   `json:"door_rear_right"`
	Trunk          bool   `json:"trunk"`
	Hood           bool   `json:"hood"`
	PowerSource    string `json:"power_source"`
	CarView        struct {
		Model string `json:"model"`
	} `json:"car_view"`
	Position *struct {
		X    float64  `json:"x"`
		Y    float64  `json:"y"`
		Time flexTime `json:"time"`
	} `json:"position"`
	Address string `json:"address"`
}

// oldCarField is absent on controllers without a car module; upstream then
// sends null or an empty list instead of omitting the field.
type oldCarField struct {
	v *oldCarState
}

func (f *oldCarField) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	f.v = nil
	if len(b) == 0 || string(b) == "null" || b[0] == '[' {
		return nil
	}
	var st oldCarState
	if err := json.Unmarshal(b, &st); err != nil {
		return err
	}
	f.v = &st
	return nil
}

var carTimeLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02 15:04:05"}

// flexTime accepts an ISO timestamp, unix seconds, or null. An unreadable
// string is treated as absent.
type flexTime struct {
	v *time.Time
}

func (f *flexTime) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	f.v = nil
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		for _, layout := range carTimeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				f.v = &t
				return nil
			}
		}
		return nil
	}
	var sec float64
	if err := json.Unmarshal(b, &sec); err != nil {
		return err
	}
	whole, frac := math.Modf(sec)
	t := time.Unix(int64(whole), int64(frac*float64(time.Second))).UTC()
	f.v = &t
	return nil
}
