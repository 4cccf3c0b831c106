package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"zont-sync-backend/internal/engine"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

type accountResponse struct {
	ID        string        `json:"id"`
	Health    engine.Health `json:"health"`
	Devices   int           `json:"devices"`
	Stale     bool          `json:"stale"`
	UpdatedAt *string       `json:"updated_at"`
}

func newAccountResponse(id string, e *engine.Engine) accountResponse {
	resp := accountResponse{ID: id, Health: e.Health()}
	if snap := e.Snapshot(); snap != nil {
		resp.Devices = len(snap.Devices())
		resp.Stale = snap.Stale
		ts := snap.TakenAt.UTC().Format(timeLayout)
		resp.UpdatedAt = &ts
	}
	return resp
}

// GetAccounts lists the configured accounts with their sync health.
func (h *Handler) GetAccounts(c *gin.Context) {
	accounts := h.accounts.Accounts()
	resp := make([]accountResponse, 0, len(accounts))
	for _, acc := range accounts {
		resp = append(resp, newAccountResponse(acc.ID, acc.Engine))
	}
	c.JSON(http.StatusOK, resp)
}

// GetAccountHealth returns the sync health of one account.
func (h *Handler) GetAccountHealth(c *gin.Context) {
	acc, ok := h.account(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, newAccountResponse(acc.ID, acc.Engine))
}

// RefreshAccount schedules an out-of-band poll.
func (h *Handler) RefreshAccount(c *gin.Context) {
	acc, ok := h.account(c)
	if !ok {
		return
	}
	acc.Engine.RequestRefresh()
	c.JSON(http.StatusAccepted, gin.H{"status": "refresh requested"})
}

// GetZoneEvents returns the most recent guard zone transitions.
func (h *Handler) GetZoneEvents(c *gin.Context) {
	acc, ok := h.account(c)
	if !ok {
		return
	}
	limit, ok := historyLimit(c)
	if !ok {
		return
	}
	events, err := h.store.ZoneEvents(c.Request.Context(), acc.ID, limit)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, events)
}

// GetCommands returns the most recent commands issued for the account.
func (h *Handler) GetCommands(c *gin.Context) {
	acc, ok := h.account(c)
	if !ok {
		return
	}
	limit, ok := historyLimit(c)
	if !ok {
		return
	}
	commands, err := h.store.RecentCommands(c.Request.Context(), acc.ID, limit)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, commands)
}

func historyLimit(c *gin.Context) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return defaultHistoryLimit, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
		return 0, false
	}
	return min(limit, maxHistoryLimit), true
}
