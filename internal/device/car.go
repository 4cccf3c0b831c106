package device

import "time"

// CarState is the telemetry of a vehicle security controller. Only the
// legacy payload carries it.
type CarState struct {
	EngineOn       bool      `json:"engine_on"`
	Autostart      Autostart `json:"autostart"`
	EngineBlock    bool      `json:"engine_block"`
	Siren          bool      `json:"siren"`
	DoorFrontLeft  bool      `json:"door_front_left"`
	DoorFrontRight bool      `json:"door_front_right"`
	DoorRearLeft   bool      `json:"door_rear_left"`
	DoorRearRight  bool      `json:"door_rear_right"`
	Trunk          bool      `json:"trunk"`
	Hood           bool      `json:"hood"`
	PowerSource    string    `json:"power_source"`
	CarModel       string    `json:"car_model,omitempty"`
	Position       *Position `json:"position"`
	Address        string    `json:"address"`
}

type Autostart struct {
	Available bool       `json:"available"`
	Status    string     `json:"status"`
	Until     *time.Time `json:"until"`
}

// Position is a GPS fix.
type Position struct {
	Latitude  float64    `json:"latitude"`
	Longitude float64    `json:"longitude"`
	Time      *time.Time `json:"time"`
}

// Indicators returns the on/off flags of the car keyed by name, for
// consumers presenting them as binary entities.
func (c CarState) Indicators() map[string]bool {
	return map[string]bool{
		"engine_on":        c.EngineOn,
		"engine_block":     c.EngineBlock,
		"siren":            c.Siren,
		"door_front_left":  c.DoorFrontLeft,
		"door_front_right": c.DoorFrontRight,
		"door_rear_left":   c.DoorRearLeft,
		"door_rear_right":  c.DoorRearRight,
		"trunk":            c.Trunk,
		"hood":             c.Hood,
	}
}

// AnyDoorOpen reports whether at least one door is open.
func (c CarState) AnyDoorOpen() bool {
	return c.DoorFrontLeft || c.DoorFrontRight || c.DoorRearLeft || c.DoorRearRight
}
