package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"zont-sync-backend/internal/command"
	"zont-sync-backend/internal/device"
	"zont-sync-backend/internal/parse"
	"zont-sync-backend/internal/snapshot"
)

const timeLayout = time.RFC3339

// envelope wraps every snapshot read with its freshness.
func envelope(snap *snapshot.Snapshot, key string, value any) gin.H {
	return gin.H{
		"stale":      snap.Stale,
		"updated_at": snap.TakenAt.UTC().Format(timeLayout),
		key:          value,
	}
}

func notFound(c *gin.Context, what string) {
	c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": what + " not found"})
}

// GetDevices lists every tracked device of the account.
func (h *Handler) GetDevices(c *gin.Context) {
	_, snap, ok := h.snapshot(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, envelope(snap, "devices", snap.Devices()))
}

// GetDevice returns one device with all of its entities.
func (h *Handler) GetDevice(c *gin.Context) {
	_, snap, ok := h.snapshot(c)
	if !ok {
		return
	}
	dev, ok := snap.Device(device.ID(c.Param("device")))
	if !ok {
		notFound(c, "device")
		return
	}
	c.JSON(http.StatusOK, envelope(snap, "device", dev))
}

// GetSensor returns one sensor, including synthesized ones.
func (h *Handler) GetSensor(c *gin.Context) {
	_, snap, ok := h.snapshot(c)
	if !ok {
		return
	}
	sensor, ok := snap.Sensor(device.ID(c.Param("device")), device.ID(c.Param("sensor")))
	if !ok {
		notFound(c, "sensor")
		return
	}
	c.JSON(http.StatusOK, envelope(snap, "sensor", sensor))
}

type circuitResponse struct {
	device.Circuit
	Range       parse.Range  `json:"range"`
	RangeSource parse.Source `json:"range_source"`
	Presets     []string     `json:"presets"`
	Preset      string       `json:"preset"`
}

// GetCircuit returns a circuit with its effective temperature range and the
// presets that can be applied to it.
func (h *Handler) GetCircuit(c *gin.Context) {
	_, snap, ok := h.snapshot(c)
	if !ok {
		return
	}
	dev, ok := snap.Device(device.ID(c.Param("device")))
	if !ok {
		notFound(c, "device")
		return
	}
	circuit, ok := dev.Circuit(device.ID(c.Param("circuit")))
	if !ok {
		notFound(c, "circuit")
		return
	}

	rng, source := parse.TemperatureRange(circuit.Name, circuit.Min, circuit.Max)
	preset, ok := dev.CurrentModeName(circuit)
	if !ok {
		preset = command.PresetNone
	}
	c.JSON(http.StatusOK, envelope(snap, "circuit", circuitResponse{
		Circuit:     circuit,
		Range:       rng,
		RangeSource: source,
		Presets:     append([]string{command.PresetNone}, dev.PresetNames(circuit.ID)...),
		Preset:      preset,
	}))
}

type guardZoneResponse struct {
	device.GuardZone
	Presentation device.AlarmState `json:"presentation"`
}

// GetGuardZone returns a guard zone together with its presented alarm state.
func (h *Handler) GetGuardZone(c *gin.Context) {
	_, snap, ok := h.snapshot(c)
	if !ok {
		return
	}
	zone, ok := snap.GuardZone(device.ID(c.Param("device")), device.ID(c.Param("zone")))
	if !ok {
		notFound(c, "guard zone")
		return
	}
	presentation, err := zone.Presentation()
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, envelope(snap, "guard_zone", guardZoneResponse{GuardZone: zone, Presentation: presentation}))
}

// GetControl returns a control of any kind.
func (h *Handler) GetControl(c *gin.Context) {
	_, snap, ok := h.snapshot(c)
	if !ok {
		return
	}
	control, ok := snap.Control(device.ID(c.Param("device")), device.ID(c.Param("control")))
	if !ok {
		notFound(c, "control")
		return
	}
	c.JSON(http.StatusOK, envelope(snap, "control", control))
}

// GetCar returns the vehicle telemetry of a car security controller.
func (h *Handler) GetCar(c *gin.Context) {
	_, snap, ok := h.snapshot(c)
	if !ok {
		return
	}
	car, ok := snap.Car(device.ID(c.Param("device")))
	if !ok {
		notFound(c, "car state")
		return
	}
	c.JSON(http.StatusOK, envelope(snap, "car", car))
}
