package command

import (
	"errors"
	"fmt"

	"zont-sync-backend/internal/device"
	"zont-sync-backend/internal/parse"
)

// ErrNoTargetTemperature is returned when a mode cannot be cancelled because
// the circuit reports no target temperature to restore.
var ErrNoTargetTemperature = errors.New("circuit has no target temperature")

// RemoteCommandError is a rejected command. Message carries the upstream
// human-readable text unchanged.
type RemoteCommandError struct {
	Status  int
	Code    string
	Message string
}

func (e *RemoteCommandError) Error() string {
	switch {
	case e.Message != "":
		return e.Message
	case e.Code != "":
		return fmt.Sprintf("command rejected: %s", e.Code)
	default:
		return fmt.Sprintf("command failed with status %d", e.Status)
	}
}

// NotFoundError is a command addressed to an entity missing from the snapshot.
type NotFoundError struct {
	Kind     string
	DeviceID device.ID
	ID       device.ID
}

func (e *NotFoundError) Error() string {
	if e.Kind == "device" {
		return fmt.Sprintf("device %s not found", e.DeviceID)
	}
	return fmt.Sprintf("%s %s not found on device %s", e.Kind, e.ID, e.DeviceID)
}

// TemperatureOutOfRangeError rejects a target outside the circuit's range.
type TemperatureOutOfRangeError struct {
	Temperature float64
	Range       parse.Range
}

func (e *TemperatureOutOfRangeError) Error() string {
	return fmt.Sprintf("temperature %g is outside the allowed range %g..%g", e.Temperature, e.Range.Min, e.Range.Max)
}

// UnsupportedControlError rejects triggering a read-only or analog control.
type UnsupportedControlError struct {
	ID   device.ID
	Kind device.ControlKind
}

func (e *UnsupportedControlError) Error() string {
	return fmt.Sprintf("control %s of kind %s cannot be triggered", e.ID, e.Kind)
}
