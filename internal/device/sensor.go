package device

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
)

// SensorType is the closed set of sensor kinds, including the locally
// synthesized ones.
type SensorType string

const (
	SensorTemperature    SensorType = "temperature"
	SensorVoltage        SensorType = "voltage"
	SensorPressure       SensorType = "pressure"
	SensorHumidity       SensorType = "humidity"
	SensorOpening        SensorType = "opening"
	SensorMotion         SensorType = "motion"
	SensorLeakage        SensorType = "leakage"
	SensorSmoke          SensorType = "smoke"
	SensorRoomThermostat SensorType = "room_thermostat"
	SensorBoilerFailure  SensorType = "boiler_failure"
	SensorPowerSource    SensorType = "power_source"
	SensorModulation     SensorType = "modulation"
	SensorDiscrete       SensorType = "discrete"
	SensorDHWSpeed       SensorType = "dhw_speed"
	SensorGas            SensorType = "gas"
	SensorOther          SensorType = "other"

	// Synthesized types, never present upstream.
	SensorBattery           SensorType = "battery"
	SensorSignalStrength    SensorType = "signal_strength"
	SensorBoilerFailureText SensorType = "boiler_failure_text"
)

var upstreamSensorTypes = map[SensorType]struct{}{
	SensorTemperature: {}, SensorVoltage: {}, SensorPressure: {}, SensorHumidity: {},
	SensorOpening: {}, SensorMotion: {}, SensorLeakage: {}, SensorSmoke: {},
	SensorRoomThermostat: {}, SensorBoilerFailure: {}, SensorPowerSource: {},
	SensorModulation: {}, SensorDiscrete: {}, SensorDHWSpeed: {}, SensorGas: {},
	SensorOther: {},
}

// binarySensorTypes always present as on/off entities.
var binarySensorTypes = map[SensorType]struct{}{
	SensorLeakage: {}, SensorSmoke: {}, SensorOpening: {}, SensorMotion: {},
	SensorDiscrete: {}, SensorBoilerFailure: {}, SensorRoomThermostat: {},
}

// Upstream reports whether t is a type the cloud API can emit.
func (t SensorType) Upstream() bool {
	_, ok := upstreamSensorTypes[t]
	return ok
}

// SensorStatus is the health the controller reports for a sensor.
type SensorStatus string

const (
	SensorStatusUnknown     SensorStatus = "unknown"
	SensorStatusOK          SensorStatus = "ok"
	SensorStatusFailure     SensorStatus = "failure"
	SensorStatusAlarm       SensorStatus = "alarm"
	SensorStatusSilentAlarm SensorStatus = "silent_alarm"
)

func (s SensorStatus) Valid() bool {
	switch s {
	case SensorStatusUnknown, SensorStatusOK, SensorStatusFailure, SensorStatusAlarm, SensorStatusSilentAlarm:
		return true
	}
	return false
}

// SensorValue is a reading that is a number, a text, or absent.
type SensorValue struct {
	Number *float64
	Text   *string
}

func NumberValue(f float64) SensorValue {
	return SensorValue{Number: &f}
}

func TextValue(s string) SensorValue {
	return SensorValue{Text: &s}
}

func (v SensorValue) IsNull() bool {
	return v.Number == nil && v.Text == nil
}

// Float returns the numeric reading.
func (v SensorValue) Float() (float64, bool) {
	if v.Number == nil {
		return 0, false
	}
	return *v.Number, true
}

func (v SensorValue) String() string {
	switch {
	case v.Number != nil:
		return fmt.Sprintf("%g", *v.Number)
	case v.Text != nil:
		return *v.Text
	default:
		return ""
	}
}

func (v SensorValue) MarshalJSON() ([]byte, error) {
	switch {
	case v.Number != nil:
		return json.Marshal(*v.Number)
	case v.Text != nil:
		return json.Marshal(*v.Text)
	default:
		return []byte("null"), nil
	}
}

func (v *SensorValue) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	*v = SensorValue{}
	switch {
	case len(b) == 0 || string(b) == "null":
		return nil
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		v.Text = &s
		return nil
	default:
		var f float64
		if err := json.Unmarshal(b, &f); err != nil {
			return fmt.Errorf("sensor value must be a number or a string: %w", err)
		}
		v.Number = &f
		return nil
	}
}

// Limits are the alarm thresholds configured on a sensor.
type Limits struct {
	High *float64 `json:"high"`
	Low  *float64 `json:"low"`
}

// Sensor is a raw or derived reading attached to a device.
type Sensor struct {
	ID             ID           `json:"id"`
	Name           string       `json:"name"`
	Type           SensorType   `json:"type"`
	Status         SensorStatus `json:"status"`
	Value          SensorValue  `json:"value"`
	Triggered      *bool        `json:"triggered"`
	Unit           string       `json:"unit,omitempty"`
	Limits         *Limits      `json:"limits,omitempty"`
	Battery        *float64     `json:"battery,omitempty"`
	RSSI           *float64     `json:"rssi,omitempty"`
	SignalStrength string       `json:"signal_strength,omitempty"`
	Derived        bool         `json:"derived,omitempty"`
}

// IsBinary reports whether the sensor presents as an on/off entity: a fixed
// set of binary types, plus "other" sensors that carry a triggered flag.
// The "other" rule follows upstream typing gaps and breaks if the API starts
// reusing "other" for numeric sensors that also report triggered.
func (s Sensor) IsBinary() bool {
	if _, ok := binarySensorTypes[s.Type]; ok {
		return true
	}
	return s.Type == SensorOther && s.Triggered != nil
}

// MarshalJSON adds the "binary" classification so consumers know whether
// to present the sensor as an on/off entity or as a reading.
func (s Sensor) MarshalJSON() ([]byte, error) {
	type plain Sensor
	return json.Marshal(struct {
		plain
		Binary bool `json:"binary"`
	}{plain(s), s.IsBinary()})
}

// StableValue filters single-poll glitches: a numeric reading whose magnitude
// jumps past (|previous|+1)*100 is replaced by the previous reading. Text or
// absent values pass through.
func StableValue(next, prev SensorValue) SensorValue {
	n, ok := next.Float()
	if !ok {
		return next
	}
	p, ok := prev.Float()
	if !ok {
		return next
	}
	if math.Abs(n) < (math.Abs(p)+1)*100 {
		return next
	}
	return prev
}
