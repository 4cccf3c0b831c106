package device

// Labels is the name of a stateful control together with its state captions.
type Labels struct {
	Name          string `json:"name"`
	ActiveLabel   string `json:"active_label,omitempty"`
	InactiveLabel string `json:"inactive_label,omitempty"`
}

// Label returns the caption matching the given state, falling back to the name.
func (l Labels) Label(active bool) string {
	if active && l.ActiveLabel != "" {
		return l.ActiveLabel
	}
	if !active && l.InactiveLabel != "" {
		return l.InactiveLabel
	}
	return l.Name
}

// Button is a momentary, fire-and-forget control.
type Button struct {
	ID   ID     `json:"id"`
	Name string `json:"name"`
	View string `json:"view,omitempty"`
	Icon string `json:"icon,omitempty"`
}

// ToggleButton keeps an on/off state on the controller.
type ToggleButton struct {
	ID     ID     `json:"id"`
	Name   Labels `json:"name"`
	Active *bool  `json:"active"`
	View   string `json:"view,omitempty"`
	Icon   string `json:"icon,omitempty"`
}

// Regulator is an analog output such as a 0-10 V channel.
type Regulator struct {
	ID    ID       `json:"id"`
	Name  string   `json:"name"`
	Value *float64 `json:"value"`
	Min   *float64 `json:"min"`
	Max   *float64 `json:"max"`
	Step  *float64 `json:"step"`
	Unit  string   `json:"unit"`
	View  string   `json:"view,omitempty"`
	Icon  string   `json:"icon,omitempty"`
}

// Status is a read-only input/output indicator.
type Status struct {
	ID     ID     `json:"id"`
	Name   Labels `json:"name"`
	Active *bool  `json:"active"`
	View   string `json:"view,omitempty"`
	Icon   string `json:"icon,omitempty"`
}

// Controls groups the four disjoint control kinds of a device.
type Controls struct {
	Buttons       []Button       `json:"buttons"`
	ToggleButtons []ToggleButton `json:"toggle_buttons"`
	Regulators    []Regulator    `json:"regulators"`
	Statuses      []Status       `json:"status"`
}

type ControlKind string

const (
	ControlButton       ControlKind = "button"
	ControlToggleButton ControlKind = "toggle_button"
	ControlRegulator    ControlKind = "regulator"
	ControlStatus       ControlKind = "status"
)

// Control is a lookup result over Controls; exactly one pointer is set, as
// named by Kind.
type Control struct {
	Kind         ControlKind   `json:"kind"`
	Button       *Button       `json:"button,omitempty"`
	ToggleButton *ToggleButton `json:"toggle_button,omitempty"`
	Regulator    *Regulator    `json:"regulator,omitempty"`
	Status       *Status       `json:"status,omitempty"`
}

// Name returns the display name regardless of kind.
func (c Control) Name() string {
	switch c.Kind {
	case ControlButton:
		return c.Button.Name
	case ControlToggleButton:
		return c.ToggleButton.Name.Name
	case ControlRegulator:
		return c.Regulator.Name
	case ControlStatus:
		return c.Status.Name.Name
	}
	return ""
}

// Find looks a control up by id across all kinds.
func (c Controls) Find(id ID) (Control, bool) {
	for i := range c.Buttons {
		if c.Buttons[i].ID == id {
			b := c.Buttons[i]
			return Control{Kind: ControlButton, Button: &b}, true
		}
	}
	for i := range c.ToggleButtons {
		if c.ToggleButtons[i].ID == id {
			t := c.ToggleButtons[i]
			return Control{Kind: ControlToggleButton, ToggleButton: &t}, true
		}
	}
	for i := range c.Regulators {
		if c.Regulators[i].ID == id {
			r := c.Regulators[i]
			return Control{Kind: ControlRegulator, Regulator: &r}, true
		}
	}
	for i := range c.Statuses {
		if c.Statuses[i].ID == id {
			s := c.Statuses[i]
			return Control{Kind: ControlStatus, Status: &s}, true
		}
	}
	return Control{}, false
}
