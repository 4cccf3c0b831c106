package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"zont-sync-backend/internal/command"
	"zont-sync-backend/internal/device"
	"zont-sync-backend/internal/registry"
)

type targetTemperatureRequest struct {
	Temperature *float64 `json:"temperature" binding:"required"`
}

type modeRequest struct {
	Mode string `json:"mode" binding:"required"`
}

type triggerRequest struct {
	State *bool `json:"state"`
}

type guardStateRequest struct {
	Enable *bool `json:"enable" binding:"required"`
}

// commandAccount resolves the account and makes sure it has synchronized at
// least once; commands are validated against the snapshot.
func (h *Handler) commandAccount(c *gin.Context) (*registry.Account, bool) {
	acc, _, ok := h.snapshot(c)
	if !ok {
		return nil, false
	}
	if acc.Dispatcher == nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "commands are not available for this account"})
		return nil, false
	}
	return acc, true
}

func bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return false
	}
	return true
}

func (h *Handler) respond(c *gin.Context, res command.Result, err error) {
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// SetTargetTemperature handles POST .../circuits/:circuit/target-temperature.
func (h *Handler) SetTargetTemperature(c *gin.Context) {
	acc, ok := h.commandAccount(c)
	if !ok {
		return
	}
	var req targetTemperatureRequest
	if !bind(c, &req) {
		return
	}
	res, err := acc.Dispatcher.SetTargetTemperature(c.Request.Context(),
		device.ID(c.Param("device")), device.ID(c.Param("circuit")), *req.Temperature)
	h.respond(c, res, err)
}

// SetMode handles POST .../circuits/:circuit/mode.
func (h *Handler) SetMode(c *gin.Context) {
	acc, ok := h.commandAccount(c)
	if !ok {
		return
	}
	var req modeRequest
	if !bind(c, &req) {
		return
	}
	res, err := acc.Dispatcher.SetMode(c.Request.Context(),
		device.ID(c.Param("device")), device.ID(c.Param("circuit")), req.Mode)
	h.respond(c, res, err)
}

// ActivateMode handles POST .../modes/:mode/activate, applying the mode to
// every circuit of the device.
func (h *Handler) ActivateMode(c *gin.Context) {
	acc, ok := h.commandAccount(c)
	if !ok {
		return
	}
	res, err := acc.Dispatcher.ActivateModeAll(c.Request.Context(),
		device.ID(c.Param("device")), device.ID(c.Param("mode")))
	h.respond(c, res, err)
}

// TriggerControl handles POST .../controls/:control/trigger. Buttons ignore
// the state; an empty body presses or switches on.
func (h *Handler) TriggerControl(c *gin.Context) {
	acc, ok := h.commandAccount(c)
	if !ok {
		return
	}
	req := triggerRequest{}
	if c.Request.ContentLength != 0 && !bind(c, &req) {
		return
	}
	state := true
	if req.State != nil {
		state = *req.State
	}
	res, err := acc.Dispatcher.TriggerControl(c.Request.Context(),
		device.ID(c.Param("device")), device.ID(c.Param("control")), state)
	h.respond(c, res, err)
}

// SetGuardState handles POST .../guard-zones/:zone/state. The response is
// sent once the zone has settled or the refresh budget is spent.
func (h *Handler) SetGuardState(c *gin.Context) {
	acc, ok := h.commandAccount(c)
	if !ok {
		return
	}
	var req guardStateRequest
	if !bind(c, &req) {
		return
	}
	res, err := acc.Dispatcher.SetGuardState(c.Request.Context(),
		device.ID(c.Param("device")), device.ID(c.Param("zone")), *req.Enable)
	h.respond(c, res, err)
}
