package api

import (
	"errors"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"zont-sync-backend/internal/command"
	"zont-sync-backend/internal/registry"
	"zont-sync-backend/internal/snapshot"
	"zont-sync-backend/internal/store"
	"zont-sync-backend/internal/zont"
)

// AccountSource resolves the accounts served by the API.
type AccountSource interface {
	Get(id string) (*registry.Account, bool)
	Accounts() []*registry.Account
}

// Handler holds shared dependencies for API handlers.
type Handler struct {
	accounts      AccountSource
	store         store.Store
	webpush       *webpush.Options
	logger        *zap.Logger
	webhookSecret string
}

// NewHandler creates a new API handler.
func NewHandler(accounts AccountSource, s store.Store, webpushOptions *webpush.Options, logger *zap.Logger) *Handler {
	return &Handler{
		accounts: accounts,
		store:    s,
		webpush:  webpushOptions,
		logger:   logger.With(zap.String("component", "api")),
	}
}

// account resolves the :account path parameter, aborting with 404 on a miss.
func (h *Handler) account(c *gin.Context) (*registry.Account, bool) {
	acc, ok := h.accounts.Get(c.Param("account"))
	if !ok {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "account not found"})
		return nil, false
	}
	return acc, true
}

// snapshot returns the account's current snapshot, aborting with 503 while
// the first poll has not completed.
func (h *Handler) snapshot(c *gin.Context) (*registry.Account, *snapshot.Snapshot, bool) {
	acc, ok := h.account(c)
	if !ok {
		return nil, nil, false
	}
	snap := acc.Engine.Snapshot()
	if snap == nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "account has not been synchronized yet"})
		return nil, nil, false
	}
	return acc, snap, true
}

// writeError maps command and transport errors to HTTP responses.
func (h *Handler) writeError(c *gin.Context, err error) {
	var (
		notFound    *command.NotFoundError
		outOfRange  *command.TemperatureOutOfRangeError
		unsupported *command.UnsupportedControlError
		remote      *command.RemoteCommandError
		transport   *zont.TransportError
	)
	switch {
	case errors.As(err, &notFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.As(err, &outOfRange):
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error(), "range": outOfRange.Range})
	case errors.As(err, &unsupported):
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, command.ErrNoTargetTemperature):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.As(err, &remote):
		body := gin.H{"error": remote.Error()}
		if remote.Code != "" {
			body["code"] = remote.Code
		}
		c.AbortWithStatusJSON(http.StatusBadGateway, body)
	case errors.As(err, &transport):
		status := http.StatusBadGateway
		if transport.Timeout() {
			status = http.StatusGatewayTimeout
		}
		c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
	default:
		h.logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
