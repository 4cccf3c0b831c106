package api

import (
	"net/http"
	"net/url"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"zont-sync-backend/internal/mw"
	"zont-sync-backend/internal/store"
)

// RouterConfig holds the HTTP-facing knobs of the API.
type RouterConfig struct {
	RateLimit     float64
	Burst         int
	CacheTTL      time.Duration
	WebhookSecret string
	HTTPLog       bool
	// Cache stores GET responses of snapshot reads. A nil Cache disables
	// response caching.
	Cache *cache.Cache
}

// NewRouter creates and configures a new Gin router.
func NewRouter(cfg RouterConfig, accounts AccountSource, s store.Store, webpushOptions *webpush.Options, logger *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.HTTPLog {
		r.Use(mw.Logger(logger))
	}

	handler := NewHandler(accounts, s, webpushOptions, logger)
	handler.webhookSecret = cfg.WebhookSecret

	// Snapshot reads are cached until the account's next snapshot replaces
	// them; see InvalidateAccount.
	caching := func(c *gin.Context) { c.Next() }
	if cfg.Cache != nil {
		caching = mw.Cache(cfg.Cache, cfg.CacheTTL, snapshotVersion(accounts))
	}

	r.GET("/healthcheck", func(c *gin.Context) {
		c.String(http.StatusOK, "health_check: OK")
	})

	api := r.Group("/api")
	api.Use(mw.RateLimiter(rate.Limit(cfg.RateLimit), cfg.Burst))
	{
		api.GET("/accounts", handler.GetAccounts)
		api.GET("/vapid_public_key", handler.GetVAPIDPublicKey)
		api.POST("/webhook/:account", handler.Webhook)

		account := api.Group("/accounts/:account")
		account.GET("/health", handler.GetAccountHealth)
		account.POST("/refresh", handler.RefreshAccount)
		account.GET("/zone-events", handler.GetZoneEvents)
		account.GET("/commands", handler.GetCommands)
		account.PUT("/subscriptions", handler.PutSubscription)
		account.DELETE("/subscriptions", handler.DeleteSubscription)

		account.GET("/devices", caching, handler.GetDevices)

		dev := account.Group("/devices/:device")
		dev.GET("", caching, handler.GetDevice)
		dev.GET("/sensors/:sensor", caching, handler.GetSensor)
		dev.GET("/circuits/:circuit", caching, handler.GetCircuit)
		dev.GET("/guard-zones/:zone", caching, handler.GetGuardZone)
		dev.GET("/controls/:control", caching, handler.GetControl)
		dev.GET("/car", caching, handler.GetCar)

		dev.POST("/circuits/:circuit/target-temperature", handler.SetTargetTemperature)
		dev.POST("/circuits/:circuit/mode", handler.SetMode)
		dev.POST("/modes/:mode/activate", handler.ActivateMode)
		dev.POST("/controls/:control/trigger", handler.TriggerControl)
		dev.POST("/guard-zones/:zone/state", handler.SetGuardState)
	}

	return r
}

// snapshotVersion keys cached reads by the snapshot they were served from,
// so a read racing a snapshot swap never fills the cache for the new one.
func snapshotVersion(accounts AccountSource) mw.VersionFunc {
	return func(c *gin.Context) string {
		acc, ok := accounts.Get(c.Param("account"))
		if !ok || acc.Engine == nil {
			return ""
		}
		return acc.Engine.Snapshot().Version()
	}
}

// InvalidateAccount drops every cached snapshot read of the account.
func InvalidateAccount(c *cache.Cache, accountID string) int {
	return mw.Invalidate(c, "/api/accounts/"+url.PathEscape(accountID)+"/")
}
