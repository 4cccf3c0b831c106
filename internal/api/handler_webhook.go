package api

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"zont-sync-backend/internal/model"
	"zont-sync-backend/internal/zont"
)

const webhookSecretHeader = "X-Webhook-Secret"

// Webhook receives device events pushed by the cloud. Every event is stored;
// an event about a tracked device triggers a coalesced refresh.
func (h *Handler) Webhook(c *gin.Context) {
	if h.webhookSecret != "" &&
		subtle.ConstantTimeCompare([]byte(c.GetHeader(webhookSecretHeader)), []byte(h.webhookSecret)) != 1 {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid webhook secret"})
		return
	}
	acc, ok := h.account(c)
	if !ok {
		return
	}

	raw, err := c.GetRawData()
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ev, err := zont.ParseDeviceEvent(raw)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tracked := acc.Engine.Tracks(ev.DeviceID)
	if err := h.store.RecordWebhook(c.Request.Context(), &model.WebhookEvent{
		AccountID:  acc.ID,
		DeviceID:   ev.DeviceID.String(),
		Tracked:    tracked,
		Payload:    string(raw),
		ReceivedAt: time.Now(),
	}); err != nil {
		h.logger.Warn("failed to record webhook event", zap.String("account", acc.ID), zap.Error(err))
	}

	if !tracked {
		h.logger.Debug("webhook for untracked device ignored",
			zap.String("account", acc.ID), zap.Stringer("device", ev.DeviceID))
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	h.logger.Info("webhook event received",
		zap.String("account", acc.ID),
		zap.Stringer("device", ev.DeviceID),
		zap.String("type", ev.Type),
		zap.String("title", ev.Title),
	)
	acc.Engine.RequestRefresh()
	c.JSON(http.StatusAccepted, gin.H{"status": "refresh requested"})
}
