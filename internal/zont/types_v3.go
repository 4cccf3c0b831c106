package zont

import "zont-sync-backend/internal/device"

// Payload of GET devices-list.

type v3Account struct {
	OK      *bool      `json:"ok"`
	Devices []v3Device `json:"devices"`
}

type v3Version struct {
	Hardware *string `json:"hardware"`
	Software *string `json:"software"`
}

type v3DeviceInfo struct {
	ID         device.ID  `json:"id"`
	Model      string     `json:"model"`
	Serial     string     `json:"serial"`
	WidgetType *string    `json:"widget_type"`
	Version    *v3Version `json:"version"`
}

type v3Circuit struct {
	ID           device.ID           `json:"id"`
	Name         string              `json:"name"`
	Status       *string             `json:"status"`
	Type         string              `json:"type"`
	Active       bool                `json:"active"`
	ActualTemp   *float64            `json:"actual_temp"`
	IsOff        bool                `json:"is_off"`
	TargetTemp   *float64            `json:"target_temp"`
	CurrentMode  *device.ID          `json:"current_mode"`
	InSummerMode bool                `json:"in_summer_mode"`
	Min          flexFloat           `json:"min"`
	Max          flexFloat           `json:"max"`
	Error        *device.BoilerError `json:"error"`
	Icon         *string             `json:"icon"`
}

type v3Mode struct {
	ID           device.ID   `json:"id"`
	Name         string      `json:"name"`
	CanBeApplied []device.ID `json:"can_be_applied"`
	Color        *string     `json:"color"`
	Icon         *string     `json:"icon"`
}

type v3Sensor struct {
	ID             device.ID          `json:"id"`
	Name           string             `json:"name"`
	Type           string             `json:"type"`
	Status         *string            `json:"status"`
	Value          device.SensorValue `json:"value"`
	Triggered      *bool              `json:"triggered"`
	Unit           *string            `json:"unit"`
	Limits         *device.Limits     `json:"limits"`
	Battery        *float64           `json:"battery"`
	RSSI           *float64           `json:"rssi"`
	SignalStrength *string            `json:"signal_strength"`
}

type v3Button struct {
	ID   device.ID `json:"id"`
	Name string    `json:"name"`
	View *string   `json:"view"`
	Icon *string   `json:"icon"`
}

type v3Stateful struct {
	ID     device.ID `json:"id"`
	Name   rawLabels `json:"name"`
	Active *bool     `json:"active"`
	View   *string   `json:"view"`
	Icon   *string   `json:"icon"`
}

type v3Regulator struct {
	ID    device.ID `json:"id"`
	Name  string    `json:"name"`
	Value flexFloat `json:"value"`
	Min   flexFloat `json:"min"`
	Max   flexFloat `json:"max"`
	Step  flexFloat `json:"step"`
	Unit  string    `json:"unit"`
	View  *string   `json:"view"`
	Icon  *string   `json:"icon"`
}

type v3Controls struct {
	Buttons       []v3Button    `json:"buttons"`
	Regulators    []v3Regulator `json:"regulators"`
	Status        []v3Stateful  `json:"status"`
	ToggleButtons []v3Stateful  `json:"toggle_buttons"`
}

type v3Device struct {
	ID         device.ID     `json:"id"`
	Name       string        `json:"name"`
	Online     bool          `json:"online"`
	DeviceInfo *v3DeviceInfo `json:"device_info"`
	Circuits   []v3Circuit   `json:"circuits"`
	Modes      []v3Mode      `json:"modes"`
	Sensors    []v3Sensor    `json:"sensors"`
	GuardZones zoneList      `json:"guard_zones"`
	Controls   *v3Controls   `json:"controls"`
	Scenarios  []rawScenario `json:"scenarios"`
}
