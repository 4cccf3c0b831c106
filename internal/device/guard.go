package device

// GuardState is the arm/disarm lifecycle of a guard zone.
type GuardState string

const (
	GuardUnknown   GuardState = "unknown"
	GuardDisabled  GuardState = "disabled"
	GuardEnabled   GuardState = "enabled"
	GuardDisabling GuardState = "disabling"
	GuardEnabling  GuardState = "enabling"
)

func (s GuardState) Valid() bool {
	switch s {
	case GuardUnknown, GuardDisabled, GuardEnabled, GuardDisabling, GuardEnabling:
		return true
	}
	return false
}

// Transient reports whether the zone is still settling after an arm/disarm.
func (s GuardState) Transient() bool {
	return s == GuardEnabling || s == GuardDisabling
}

// AlarmState is the externally presented state of a guard zone.
type AlarmState string

const (
	AlarmTriggered   AlarmState = "triggered"
	AlarmDisarmed    AlarmState = "disarmed"
	AlarmArmedAway   AlarmState = "armed_away"
	AlarmDisarming   AlarmState = "disarming"
	AlarmArming      AlarmState = "arming"
	AlarmUnavailable AlarmState = "unavailable"
)

var alarmByGuardState = map[GuardState]AlarmState{
	GuardUnknown:   AlarmUnavailable,
	GuardDisabled:  AlarmDisarmed,
	GuardEnabled:   AlarmArmedAway,
	GuardDisabling: AlarmDisarming,
	GuardEnabling:  AlarmArming,
}

// GuardZone is a security arming unit. Alarm is independent of State.
type GuardZone struct {
	ID    ID         `json:"id"`
	Name  string     `json:"name"`
	State GuardState `json:"state"`
	Alarm bool       `json:"alarm"`
}

// Presentation maps the zone to its external state. An active alarm wins over
// the arm state; an unrecognized state is a *SchemaError.
func (z GuardZone) Presentation() (AlarmState, error) {
	if z.Alarm {
		return AlarmTriggered, nil
	}
	s, ok := alarmByGuardState[z.State]
	if !ok {
		return "", &SchemaError{Field: "guard_zones.state", Value: string(z.State)}
	}
	return s, nil
}
