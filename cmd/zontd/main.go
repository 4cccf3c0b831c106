package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	_ "github.com/joho/godotenv/autoload"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"zont-sync-backend/config"
	"zont-sync-backend/internal/api"
	"zont-sync-backend/internal/archive"
	"zont-sync-backend/internal/command"
	"zont-sync-backend/internal/db"
	"zont-sync-backend/internal/device"
	"zont-sync-backend/internal/engine"
	"zont-sync-backend/internal/mqtt"
	"zont-sync-backend/internal/notification"
	"zont-sync-backend/internal/registry"
	"zont-sync-backend/internal/store"
	"zont-sync-backend/internal/zont"
)

func main() {
	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml" // Default path for local development
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration from %s: %v\n", configPath, err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Log.Level)
	defer logger.Sync()
	logger.Info("configuration loaded", zap.String("path", configPath), zap.Int("accounts", len(cfg.Accounts)))

	gin.SetMode(gin.ReleaseMode)

	// Initialize database
	gormDB, err := db.Init(&cfg.Database, logger)
	if err != nil {
		logger.Fatal("failed to initialize database", zap.Error(err))
	}
	appStore := store.NewGormStore(gormDB)
	logger.Info("data store initialized", zap.String("driver", cfg.Database.Driver))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Push notifications are optional
	var (
		webpushOptions *webpush.Options
		notifier       archive.Notifier
	)
	if cfg.Push.Enabled() {
		webpushOptions = &webpush.Options{
			VAPIDPublicKey:  cfg.Push.PublicKey,
			VAPIDPrivateKey: cfg.Push.PrivateKey,
			Subscriber:      cfg.Push.Subject,
			TTL:             cfg.Push.TTL,
		}
		pool := notification.NewWorkerPool(cfg.WorkerPool.Size, appStore, webpushOptions, logger)
		pool.Start(ctx)
		notifier = pool
	} else {
		logger.Warn("VAPID keys are not configured, push notifications are disabled")
	}

	archiver := archive.NewService(appStore, notifier, logger)
	go archiver.Run(ctx)

	var publisher *mqtt.Publisher
	if cfg.MQTT.Enabled {
		publisher = mqtt.NewPublisher(mqtt.NewClient(&cfg.MQTT, logger), cfg.MQTT, logger)
		if err := publisher.Connect(); err != nil {
			logger.Fatal("failed to connect to mqtt broker", zap.Error(err))
		}
	}

	responseCache := cache.New(time.Duration(cfg.Server.CacheTTLSeconds)*time.Second, 10*time.Minute)
	httpClient := zont.NewHTTPClient(cfg.Zont.HTTPProxy, logger)

	reg := registry.New(logger)
	for _, accCfg := range cfg.Accounts {
		acc, err := newAccount(ctx, cfg, accCfg, appStore, httpClient, logger)
		if err != nil {
			logger.Fatal("failed to set up account", zap.String("account", accCfg.ID), zap.Error(err))
		}

		acc.Engine.Subscribe(archiver.Listener())
		acc.Engine.Subscribe(func(ev engine.Event) {
			api.InvalidateAccount(responseCache, ev.AccountID)
		})
		if publisher != nil {
			acc.Engine.Subscribe(publisher.Listener())
		}

		if err := reg.Add(acc); err != nil {
			logger.Fatal("failed to register account", zap.Error(err))
		}
	}
	reg.StartAll(ctx)

	// Initialize router
	router := api.NewRouter(api.RouterConfig{
		RateLimit:     cfg.Server.RateLimitPerSec,
		Burst:         cfg.Server.RateLimitBurst,
		CacheTTL:      time.Duration(cfg.Server.CacheTTLSeconds) * time.Second,
		Cache:         responseCache,
		WebhookSecret: cfg.Server.WebhookSecret,
		HTTPLog:       cfg.Server.HTTPLog,
	}, reg, appStore, webpushOptions, logger)

	server := &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:     router,
		IdleTimeout: time.Minute,
		ReadTimeout: 10 * time.Second,
		// Guard zone commands answer after convergence.
		WriteTimeout: cfg.Commands.Timeout + 30*time.Second,
	}

	// Start the server in a goroutine
	go func() {
		logger.Info("HTTP server starting", zap.Int("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server ListenAndServe", zap.Error(err))
		}
	}()

	// Setup signal handling for graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	// Block until a signal is received.
	<-stop
	logger.Info("shutdown signal received, stopping services")

	// Create a deadline to wait for.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server Shutdown", zap.Error(err))
	}
	reg.Shutdown()
	cancel()
	if publisher != nil {
		publisher.Disconnect()
	}

	logger.Info("server gracefully stopped")
}

func newLogger(level string) *zap.Logger {
	zapCfg := zap.NewProductionConfig()
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		lvl = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	zapCfg.Level = lvl
	return zap.Must(zapCfg.Build())
}

// newAccount wires the client, engine and dispatcher of one account. Accounts
// configured with a login are exchanged for a token before the first poll.
func newAccount(ctx context.Context, cfg *config.Config, accCfg config.AccountConfig, s store.Store, httpClient *http.Client, logger *zap.Logger) (*registry.Account, error) {
	accLogger := logger.With(zap.String("account", accCfg.ID))

	client := zont.NewClient(zont.ClientConfig{
		BaseURL:           cfg.Zont.BaseURL,
		OldURL:            cfg.Zont.OldURL,
		AuthURL:           cfg.Zont.AuthURL,
		Token:             accCfg.Token,
		ClientID:          accCfg.ClientID,
		RequestsPerSecond: cfg.Zont.RequestsPerSecond,
		Burst:             cfg.Zont.Burst,
		HTTPClient:        httpClient,
	}, accLogger)

	if accCfg.Token == "" {
		tokenCtx, cancel := context.WithTimeout(ctx, cfg.Sync.FetchTimeout)
		token, err := client.GetToken(tokenCtx, accCfg.Login, accCfg.Password, cfg.Zont.ClientName)
		cancel()
		if err != nil {
			return nil, fmt.Errorf("failed to obtain api token: %w", err)
		}
		client.SetToken(token.Token)
	}

	if err := s.UpsertAccount(ctx, accCfg.ID, string(accCfg.SchemaVersion)); err != nil {
		return nil, err
	}

	devices := make([]device.ID, 0, len(accCfg.Devices))
	for _, id := range accCfg.Devices {
		devices = append(devices, device.ID(id))
	}
	eng := engine.New(engine.Config{
		AccountID:    accCfg.ID,
		Schema:       accCfg.SchemaVersion,
		Interval:     cfg.Sync.Interval,
		FetchTimeout: cfg.Sync.FetchTimeout,
		MaxRetries:   cfg.Sync.MaxRetries,
		Devices:      devices,
		GlitchFilter: cfg.Sync.GlitchFilter,
	}, client, logger)

	dispatcher := command.NewDispatcher(command.Config{
		AccountID:       accCfg.ID,
		SettleDelay:     cfg.Commands.SettleDelay,
		RefreshInterval: cfg.Commands.RefreshInterval,
		MaxRefreshes:    cfg.Commands.MaxRefreshes,
		CommandTimeout:  cfg.Commands.Timeout,
	}, client, eng, logger, command.WithRecorder(s))

	return &registry.Account{
		ID:         accCfg.ID,
		Engine:     eng,
		Dispatcher: dispatcher,
		Client:     client,
	}, nil
}
