package zont

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"zont-sync-backend/internal/device"
)

// Payload fragments shared by both schema versions.

// flexFloat accepts a number, a numeric string, null, or a non-numeric
// string (treated as absent). Upstream mixes all of these for bounds.
type flexFloat struct {
	v *float64
}

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	f.v = nil
	if len(b) == 0 || string(b) == "null" || string(b) == "true" || string(b) == "false" {
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if x, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			f.v = &x
		}
		return nil
	}
	var x float64
	if err := json.Unmarshal(b, &x); err != nil {
		return fmt.Errorf("expected a number: %w", err)
	}
	f.v = &x
	return nil
}

// rawGuardZone is identical in both versions.
type rawGuardZone struct {
	ID    device.ID `json:"id"`
	Name  string    `json:"name"`
	State string    `json:"state"`
	Alarm bool      `json:"alarm"`
}

// zoneList accepts a list of zones or a single bare zone object.
type zoneList []rawGuardZone

func (z *zoneList) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || string(b) == "null":
		*z = nil
		return nil
	case b[0] == '{':
		var one rawGuardZone
		if err := json.Unmarshal(b, &one); err != nil {
			return err
		}
		*z = zoneList{one}
		return nil
	default:
		var many []rawGuardZone
		if err := json.Unmarshal(b, &many); err != nil {
			return err
		}
		*z = many
		return nil
	}
}

// rawLabels accepts a plain name, a v3 {name, active_label, inactive_label}
// object, or an old {when_active, when_inactive} object.
type rawLabels struct {
	device.Labels
}

func (l *rawLabels) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	l.Labels = device.Labels{}
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	if b[0] == '"' {
		return json.Unmarshal(b, &l.Name)
	}
	var obj struct {
		Name          string `json:"name"`
		ActiveLabel   string `json:"active_label"`
		InactiveLabel string `json:"inactive_label"`
		WhenActive    string `json:"when_active"`
		WhenInactive  string `json:"when_inactive"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	l.Name = obj.Name
	l.ActiveLabel = firstNonEmpty(obj.ActiveLabel, obj.WhenActive)
	l.InactiveLabel = firstNonEmpty(obj.InactiveLabel, obj.WhenInactive)
	if l.Name == "" {
		l.Name = firstNonEmpty(l.InactiveLabel, l.ActiveLabel)
	}
	return nil
}

type rawScenario struct {
	ID   device.ID `json:"id"`
	Name string    `json:"name"`
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
