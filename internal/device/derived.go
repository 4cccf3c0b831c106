package device

import "fmt"

const (
	// NoBoilerError is the text of a boiler error sensor when the boiler reports no fault.
	NoBoilerError = "Нет ошибок"

	unitRSSI      = "дБм"
	unitBattery   = "%"
	unitErrorText = "txt"
)

// Synthesize appends the derived sensors to every device of the account:
// {id}_rssi and {id}_battery for each raw sensor carrying a battery reading,
// {id}_boiler_error and {id}_boiler for each boiler circuit. Sensors that
// already exist are not added again, so the call is idempotent.
func Synthesize(acc *Account) {
	for i := range acc.Devices {
		synthesizeDevice(&acc.Devices[i])
	}
}

func synthesizeDevice(d *Device) {
	seen := make(map[ID]struct{}, len(d.Sensors))
	for _, s := range d.Sensors {
		seen[s.ID] = struct{}{}
	}

	var derived []Sensor
	add := func(s Sensor) {
		if _, ok := seen[s.ID]; ok {
			return
		}
		seen[s.ID] = struct{}{}
		s.Derived = true
		derived = append(derived, s)
	}

	for _, s := range d.Sensors {
		if s.Derived || s.Battery == nil {
			continue
		}
		rssi := Sensor{
			ID:     ID(fmt.Sprintf("%s_rssi", s.ID)),
			Name:   s.Name + "_rssi",
			Type:   SensorSignalStrength,
			Status: SensorStatusOK,
			Unit:   unitRSSI,
		}
		if s.RSSI != nil {
			rssi.Value = NumberValue(*s.RSSI)
		}
		add(rssi)
		add(Sensor{
			ID:     ID(fmt.Sprintf("%s_battery", s.ID)),
			Name:   s.Name + "_battery",
			Type:   SensorBattery,
			Status: SensorStatusOK,
			Value:  NumberValue(*s.Battery),
			Unit:   unitBattery,
		})
	}

	for _, c := range d.Circuits {
		if c.Type != CircuitBoiler {
			continue
		}
		text := NoBoilerError
		if c.Error != nil {
			text = fmt.Sprintf("%s | %s", c.Error.OEM, c.Error.Text)
		}
		add(Sensor{
			ID:     ID(fmt.Sprintf("%s_boiler_error", c.ID)),
			Name:   c.Name + "_ошибка",
			Type:   SensorBoilerFailureText,
			Status: SensorStatusOK,
			Value:  TextValue(text),
			Unit:   unitErrorText,
		})
		active := c.Active
		add(Sensor{
			ID:        ID(fmt.Sprintf("%s_boiler", c.ID)),
			Name:      c.Name + "_состояние",
			Type:      SensorRoomThermostat,
			Status:    SensorStatusOK,
			Triggered: &active,
		})
	}

	d.Sensors = append(d.Sensors, derived...)
}
