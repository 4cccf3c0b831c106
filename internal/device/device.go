package device

// Account is the version-independent view of one cloud account.
type Account struct {
	OK      bool     `json:"ok"`
	Devices []Device `json:"devices"`
}

// DeviceInfo holds the static controller identity. Hardware and Software are
// empty when the payload does not report them.
type DeviceInfo struct {
	ID         string `json:"id,omitempty"`
	Model      string `json:"model"`
	Serial     string `json:"serial,omitempty"`
	WidgetType string `json:"widget_type,omitempty"`
	Hardware   string `json:"hardware,omitempty"`
	Software   string `json:"software,omitempty"`
}

// Device is one controller with all of its entities. A Device value belongs
// to a single poll and is never mutated after the snapshot is published.
type Device struct {
	ID         ID          `json:"id"`
	Name       string      `json:"name"`
	Online     bool        `json:"online"`
	Info       DeviceInfo  `json:"device_info"`
	Circuits   []Circuit   `json:"circuits"`
	Modes      []Mode      `json:"modes"`
	Sensors    []Sensor    `json:"sensors"`
	GuardZones []GuardZone `json:"guard_zones"`
	Controls   Controls    `json:"controls"`
	Scenarios  []Scenario  `json:"scenarios"`
	Car        *CarState   `json:"car,omitempty"`
}

// CircuitType tags a heating loop.
type CircuitType string

const (
	CircuitBoiler   CircuitType = "boiler"
	CircuitConsumer CircuitType = "consumer"
	CircuitCooling  CircuitType = "cooling"
	CircuitDHW      CircuitType = "dhw"
)

func (t CircuitType) Valid() bool {
	switch t {
	case CircuitBoiler, CircuitConsumer, CircuitCooling, CircuitDHW:
		return true
	}
	return false
}

// BoilerError is the fault a boiler adapter reports.
type BoilerError struct {
	OEM  string `json:"oem"`
	Text string `json:"text"`
}

// Circuit is a controllable heating, cooling, DHW or boiler loop. Min and Max
// are the raw payload bounds; use parse.TemperatureRange for the effective range.
type Circuit struct {
	ID           ID           `json:"id"`
	Name         string       `json:"name"`
	Type         CircuitType  `json:"type"`
	Status       string       `json:"status,omitempty"`
	Active       bool         `json:"active"`
	IsOff        bool         `json:"is_off"`
	ActualTemp   *float64     `json:"actual_temp"`
	TargetTemp   *float64     `json:"target_temp"`
	CurrentMode  *ID          `json:"current_mode"`
	InSummerMode bool         `json:"in_summer_mode"`
	Min          *float64     `json:"min"`
	Max          *float64     `json:"max"`
	Error        *BoilerError `json:"error,omitempty"`
	Icon         string       `json:"icon,omitempty"`
}

// Mode is a heating mode (preset) together with the circuits it may be applied to.
type Mode struct {
	ID           ID     `json:"id"`
	Name         string `json:"name"`
	CanBeApplied []ID   `json:"can_be_applied"`
	Color        string `json:"color,omitempty"`
	Icon         string `json:"icon,omitempty"`
}

// AppliesTo reports whether the mode can be activated on the circuit.
func (m Mode) AppliesTo(circuit ID) bool {
	for _, id := range m.CanBeApplied {
		if id == circuit {
			return true
		}
	}
	return false
}

// Scenario is a user-defined scenario. Scenarios are exposed read-only.
type Scenario struct {
	ID   ID     `json:"id"`
	Name string `json:"name"`
}

// Device returns the device with the given id.
func (a *Account) Device(id ID) (*Device, bool) {
	for i := range a.Devices {
		if a.Devices[i].ID == id {
			return &a.Devices[i], true
		}
	}
	return nil, false
}

func (d *Device) Circuit(id ID) (Circuit, bool) {
	for _, c := range d.Circuits {
		if c.ID == id {
			return c, true
		}
	}
	return Circuit{}, false
}

func (d *Device) Sensor(id ID) (Sensor, bool) {
	for _, s := range d.Sensors {
		if s.ID == id {
			return s, true
		}
	}
	return Sensor{}, false
}

func (d *Device) GuardZone(id ID) (GuardZone, bool) {
	for _, z := range d.GuardZones {
		if z.ID == id {
			return z, true
		}
	}
	return GuardZone{}, false
}

func (d *Device) Mode(id ID) (Mode, bool) {
	for _, m := range d.Modes {
		if m.ID == id {
			return m, true
		}
	}
	return Mode{}, false
}

// ModeByName finds a mode by its display name.
func (d *Device) ModeByName(name string) (Mode, bool) {
	for _, m := range d.Modes {
		if m.Name == name {
			return m, true
		}
	}
	return Mode{}, false
}

func (d *Device) Control(id ID) (Control, bool) {
	return d.Controls.Find(id)
}

// PresetNames lists the names of the modes applicable to a circuit, in payload order.
func (d *Device) PresetNames(circuit ID) []string {
	var names []string
	for _, m := range d.Modes {
		if m.AppliesTo(circuit) {
			names = append(names, m.Name)
		}
	}
	return names
}

// CurrentModeName returns the name of the circuit's active mode, if any.
func (d *Device) CurrentModeName(c Circuit) (string, bool) {
	if c.CurrentMode == nil {
		return "", false
	}
	m, ok := d.Mode(*c.CurrentMode)
	if !ok {
		return "", false
	}
	return m.Name, true
}
