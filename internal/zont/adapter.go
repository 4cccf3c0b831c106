package zont

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"zont-sync-backend/internal/device"
)

// Parse converts a raw devices payload of the given schema version into the
// unified account model. An ok=false payload yields *RemoteAPIError; any
// structural violation yields *SchemaError.
func Parse(raw []byte, version SchemaVersion) (*device.Account, error) {
	var head struct {
		OK *bool `json:"ok"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, &SchemaError{Err: fmt.Errorf("malformed payload: %w", err)}
	}
	if head.OK == nil {
		return nil, &SchemaError{Field: "ok", Err: errors.New("missing ok flag")}
	}
	if !*head.OK {
		var apiErr APIError
		if err := json.Unmarshal(raw, &apiErr); err != nil {
			return nil, &SchemaError{Field: "error", Err: err}
		}
		return nil, &RemoteAPIError{Code: apiErr.Code, Message: apiErr.Message}
	}

	var (
		acc *device.Account
		err error
	)
	switch version {
	case SchemaV3:
		acc, err = parseV3(raw)
	case SchemaOld:
		acc, err = parseOld(raw)
	default:
		return nil, fmt.Errorf("unknown schema version %q", version)
	}
	if err != nil {
		return nil, err
	}
	if err := checkUniqueDevices(acc); err != nil {
		return nil, err
	}
	return acc, nil
}

func parseV3(raw []byte) (*device.Account, error) {
	var payload v3Account
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, &SchemaError{Err: err}
	}

	acc := &device.Account{OK: true, Devices: make([]device.Device, 0, len(payload.Devices))}
	for i, d := range payload.Devices {
		dev, err := convertV3Device(d)
		if err != nil {
			return nil, prefixField(err, fmt.Sprintf("devices[%d]", i))
		}
		acc.Devices = append(acc.Devices, dev)
	}
	return acc, nil
}

func convertV3Device(d v3Device) (device.Device, error) {
	dev := device.Device{
		ID:     d.ID,
		Name:   d.Name,
		Online: d.Online,
	}
	if d.DeviceInfo != nil {
		dev.Info = device.DeviceInfo{
			ID:         string(d.DeviceInfo.ID),
			Model:      d.DeviceInfo.Model,
			Serial:     d.DeviceInfo.Serial,
			WidgetType: deref(d.DeviceInfo.WidgetType),
		}
		if v := d.DeviceInfo.Version; v != nil {
			dev.Info.Hardware = deref(v.Hardware)
			dev.Info.Software = deref(v.Software)
		}
	}

	for _, c := range d.Circuits {
		t := device.CircuitType(c.Type)
		if !t.Valid() {
			return device.Device{}, &SchemaError{Field: "circuits.type", Value: c.Type}
		}
		dev.Circuits = append(dev.Circuits, device.Circuit{
			ID:           c.ID,
			Name:         c.Name,
			Type:         t,
			Status:       deref(c.Status),
			Active:       c.Active,
			IsOff:        c.IsOff,
			ActualTemp:   c.ActualTemp,
			TargetTemp:   c.TargetTemp,
			CurrentMode:  c.CurrentMode,
			InSummerMode: c.InSummerMode,
			Min:          c.Min.v,
			Max:          c.Max.v,
			Error:        c.Error,
			Icon:         deref(c.Icon),
		})
	}

	for _, m := range d.Modes {
		dev.Modes = append(dev.Modes, device.Mode{
			ID:           m.ID,
			Name:         m.Name,
			CanBeApplied: m.CanBeApplied,
			Color:        deref(m.Color),
			Icon:         deref(m.Icon),
		})
	}

	for _, s := range d.Sensors {
		t := device.SensorType(s.Type)
		if !t.Upstream() {
			return device.Device{}, &SchemaError{Field: "sensors.type", Value: s.Type}
		}
		status := device.SensorStatusUnknown
		if s.Status != nil {
			status = device.SensorStatus(*s.Status)
			if !status.Valid() {
				return device.Device{}, &SchemaError{Field: "sensors.status", Value: *s.Status}
			}
		}
		dev.Sensors = append(dev.Sensors, device.Sensor{
			ID:             s.ID,
			Name:           s.Name,
			Type:           t,
			Status:         status,
			Value:          s.Value,
			Triggered:      s.Triggered,
			Unit:           deref(s.Unit),
			Limits:         s.Limits,
			Battery:        s.Battery,
			RSSI:           s.RSSI,
			SignalStrength: deref(s.SignalStrength),
		})
	}

	zones, err := convertZones(d.GuardZones)
	if err != nil {
		return device.Device{}, err
	}
	dev.GuardZones = zones

	if d.Controls != nil {
		for _, b := range d.Controls.Buttons {
			dev.Controls.Buttons = append(dev.Controls.Buttons, device.Button{
				ID: b.ID, Name: b.Name, View: deref(b.View), Icon: deref(b.Icon),
			})
		}
		for _, t := range d.Controls.ToggleButtons {
			dev.Controls.ToggleButtons = append(dev.Controls.ToggleButtons, device.ToggleButton{
				ID: t.ID, Name: t.Name.Labels, Active: t.Active, View: deref(t.View), Icon: deref(t.Icon),
			})
		}
		for _, r := range d.Controls.Regulators {
			dev.Controls.Regulators = append(dev.Controls.Regulators, device.Regulator{
				ID: r.ID, Name: r.Name, Value: r.Value.v, Min: r.Min.v, Max: r.Max.v, Step: r.Step.v,
				Unit: r.Unit, View: deref(r.View), Icon: deref(r.Icon),
			})
		}
		for _, s := range d.Controls.Status {
			dev.Controls.Statuses = append(dev.Controls.Statuses, device.Status{
				ID: s.ID, Name: s.Name.Labels, Active: s.Active, View: deref(s.View), Icon: deref(s.Icon),
			})
		}
	}

	dev.Scenarios = convertScenarios(d.Scenarios)
	return dev, nil
}

func parseOld(raw []byte) (*device.Account, error) {
	var payload oldAccount
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, &SchemaError{Err: err}
	}

	acc := &device.Account{OK: true, Devices: make([]device.Device, 0, len(payload.Devices))}
	for i, d := range payload.Devices {
		dev, err := convertOldDevice(d)
		if err != nil {
			return nil, prefixField(err, fmt.Sprintf("devices[%d]", i))
		}
		acc.Devices = append(acc.Devices, dev)
	}
	return acc, nil
}

func convertOldDevice(d oldDevice) (device.Device, error) {
	dev := device.Device{
		ID:     d.ID,
		Name:   d.Name,
		Online: d.Online,
		Info: device.DeviceInfo{
			ID:         string(d.ID),
			Model:      d.Model,
			Serial:     d.Serial,
			WidgetType: deref(d.WidgetType),
		},
	}

	circuitIDs := make([]device.ID, 0, len(d.HeatingCircuits))
	for _, c := range d.HeatingCircuits {
		circuitIDs = append(circuitIDs, c.ID)
		dev.Circuits = append(dev.Circuits, device.Circuit{
			ID:          c.ID,
			Name:        c.Name,
			Type:        device.CircuitConsumer,
			Status:      deref(c.Status),
			Active:      c.Active,
			IsOff:       c.IsOff,
			ActualTemp:  c.ActualTemp,
			TargetTemp:  c.TargetTemp,
			CurrentMode: c.CurrentMode,
			Min:         c.TargetMin.v,
			Max:         c.TargetMax.v,
		})
	}

	for _, m := range d.HeatingModes {
		mode := device.Mode{ID: m.ID, Name: m.Name, Color: deref(m.Color)}
		if m.CanBeApplied {
			mode.CanBeApplied = append([]device.ID(nil), circuitIDs...)
		}
		dev.Modes = append(dev.Modes, mode)
	}

	for _, s := range append(append([]oldSensor(nil), d.Sensors...), d.OTSensors...) {
		t := device.SensorType(s.Type)
		if !t.Upstream() {
			t = device.SensorOther
		}
		status := device.SensorStatus(s.Status)
		if !status.Valid() {
			status = device.SensorStatusUnknown
		}
		dev.Sensors = append(dev.Sensors, device.Sensor{
			ID:     s.ID,
			Name:   s.Name,
			Type:   t,
			Status: status,
			Value:  s.Value,
			Unit:   deref(s.Unit),
		})
	}

	zones, err := convertZones(d.GuardZones)
	if err != nil {
		return device.Device{}, err
	}
	dev.GuardZones = zones

	for _, c := range d.CustomControls {
		switch classifyOldControl(c) {
		case device.ControlButton:
			dev.Controls.Buttons = append(dev.Controls.Buttons, device.Button{ID: c.ID, Name: c.Name.Name})
		case device.ControlToggleButton:
			dev.Controls.ToggleButtons = append(dev.Controls.ToggleButtons, device.ToggleButton{
				ID: c.ID, Name: c.Name.Labels, Active: c.Status,
			})
		default:
			dev.Controls.Statuses = append(dev.Controls.Statuses, device.Status{
				ID: c.ID, Name: c.Name.Labels, Active: c.Status,
			})
		}
	}

	dev.Scenarios = convertScenarios(d.Scenarios)
	dev.Car = convertCarState(d.CarState.v)
	return dev, nil
}

func convertCarState(c *oldCarState) *device.CarState {
	if c == nil {
		return nil
	}
	car := &device.CarState{
		EngineOn: c.EngineOn,
		Autostart: device.Autostart{
			Available: c.Autostart.Available,
			Status:    c.Autostart.Status,
			Until:     c.Autostart.Until.v,
		},
		EngineBlock:    c.EngineBlock,
		Siren:          c.Siren,
		DoorFrontLeft:  c.DoorFrontLeft,
		DoorFrontRight: c.DoorFrontRight,
		DoorRearLeft:   c.DoorRearLeft,
		DoorRearRight:  c.DoorRearRight,
		Trunk:          c.Trunk,
		Hood:           c.Hood,
		PowerSource:    c.PowerSource,
		CarModel:       c.CarView.Model,
		Address:        c.Address,
	}
	if c.Position != nil {
		// x is the longitude, y the latitude.
		car.Position = &device.Position{Latitude: c.Position.Y, Longitude: c.Position.X, Time: c.Position.Time.v}
	}
	return car
}

// classifyOldControl maps the untyped custom_controls bag onto control kinds.
func classifyOldControl(c oldControl) device.ControlKind {
	switch strings.ToLower(c.Type) {
	case "button":
		return device.ControlButton
	case "toggle_button", "toggle", "switch":
		return device.ControlToggleButton
	case "status":
		return device.ControlStatus
	}
	if c.Status != nil {
		return device.ControlStatus
	}
	return device.ControlButton
}

func convertZones(raw zoneList) ([]device.GuardZone, error) {
	zones := make([]device.GuardZone, 0, len(raw))
	for _, z := range raw {
		state := device.GuardState(z.State)
		if !state.Valid() {
			return nil, &SchemaError{Field: "guard_zones.state", Value: z.State}
		}
		zones = append(zones, device.GuardZone{ID: z.ID, Name: z.Name, State: state, Alarm: z.Alarm})
	}
	return zones, nil
}

func convertScenarios(raw []rawScenario) []device.Scenario {
	var out []device.Scenario
	for _, s := range raw {
		out = append(out, device.Scenario{ID: s.ID, Name: s.Name})
	}
	return out
}

func checkUniqueDevices(acc *device.Account) error {
	seen := make(map[device.ID]struct{}, len(acc.Devices))
	for _, d := range acc.Devices {
		if d.ID == "" {
			return &SchemaError{Field: "devices.id", Err: errors.New("missing device id")}
		}
		if _, ok := seen[d.ID]; ok {
			return &SchemaError{Field: "devices.id", Value: string(d.ID), Err: errors.New("duplicate device id")}
		}
		seen[d.ID] = struct{}{}
	}
	return nil
}

func prefixField(err error, prefix string) error {
	var schemaErr *SchemaError
	if errors.As(err, &schemaErr) {
		out := *schemaErr
		if out.Field != "" {
			out.Field = prefix + "." + out.Field
		} else {
			out.Field = prefix
		}
		return &out
	}
	return err
}
