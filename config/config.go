package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"zont-sync-backend/internal/zont"
)

// Config represents the overall application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Log        LogConfig        `yaml:"log"`
	Zont       ZontConfig       `yaml:"zont"`
	Sync       SyncConfig       `yaml:"sync"`
	Commands   CommandsConfig   `yaml:"commands"`
	Accounts   []AccountConfig  `yaml:"accounts"`
	Database   DatabaseConfig   `yaml:"database"`
	Push       PushConfig       `yaml:"push"`
	WorkerPool WorkerPoolConfig `yaml:"worker_pool"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
}

// LogConfig selects the zap level: debug, info, warn or error.
type LogConfig struct {
	Level string `yaml:"level"`
}

// WorkerPoolConfig holds the configuration for the notification worker pool.
type WorkerPoolConfig struct {
	Size int `yaml:"size"`
}

// PushConfig holds the VAPID keys for web push notifications. Push is
// disabled when the keys are empty.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// Enabled reports whether both VAPID keys are configured.
func (p PushConfig) Enabled() bool {
	return p.PublicKey != "" && p.PrivateKey != ""
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port            int     `yaml:"port"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int     `yaml:"rate_limit_burst"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
	HTTPLog         bool    `yaml:"http_log"`
	// WebhookSecret, when set, must be sent as the X-Webhook-Secret header.
	WebhookSecret string `yaml:"webhook_secret"`
}

// ZontConfig holds the cloud endpoints and client-side request limits.
type ZontConfig struct {
	BaseURL           string  `yaml:"base_url"`
	OldURL            string  `yaml:"old_url"`
	AuthURL           string  `yaml:"auth_url"`
	ClientName        string  `yaml:"client_name"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
	HTTPProxy         string  `yaml:"http_proxy"`
}

// SyncConfig holds the polling cadence shared by all accounts.
type SyncConfig struct {
	IntervalSeconds     int           `yaml:"interval_seconds"`
	Interval            time.Duration `yaml:"-"` // Ignored by YAML parser
	FetchTimeoutSeconds int           `yaml:"fetch_timeout_seconds"`
	FetchTimeout        time.Duration `yaml:"-"`
	MaxRetries          int           `yaml:"max_retries"`
	GlitchFilter        bool          `yaml:"glitch_filter"`
}

// CommandsConfig holds the guard zone convergence timings.
type CommandsConfig struct {
	SettleDelayMillis     int           `yaml:"settle_delay_ms"`
	SettleDelay           time.Duration `yaml:"-"`
	RefreshIntervalMillis int           `yaml:"refresh_interval_ms"`
	RefreshInterval       time.Duration `yaml:"-"`
	MaxRefreshes          int           `yaml:"max_refreshes"`
	TimeoutSeconds        int           `yaml:"timeout_seconds"`
	Timeout               time.Duration `yaml:"-"`
}

// AccountConfig describes one cloud account. Either Token or Login and
// Password must be set.
type AccountConfig struct {
	ID       string   `yaml:"id"`
	Schema   string   `yaml:"schema"`
	Token    string   `yaml:"token"`
	Login    string   `yaml:"login"`
	Password string   `yaml:"password"`
	ClientID string   `yaml:"client_id"`
	Devices  []string `yaml:"devices"`

	SchemaVersion zont.SchemaVersion `yaml:"-"`
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	Driver                 string `yaml:"driver"`
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
	EnableTimescale        bool   `yaml:"enable_timescale"`
}

// MQTTConfig holds the optional broker the snapshots are mirrored to.
type MQTTConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
	ClientID  string `yaml:"client_id"`
	BaseTopic string `yaml:"base_topic"`
	QoS       byte   `yaml:"qos"`
}

// Load reads the configuration from the given path. ${VAR} references are
// expanded from the environment before decoding.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(raw))), &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	if cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = 5
	}
	if cfg.Server.CacheTTLSeconds <= 0 {
		cfg.Server.CacheTTLSeconds = 60
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}

	if cfg.Zont.BaseURL == "" {
		cfg.Zont.BaseURL = zont.DefaultBaseURL
	}
	if cfg.Zont.OldURL == "" {
		cfg.Zont.OldURL = zont.DefaultOldURL
	}
	if cfg.Zont.AuthURL == "" {
		cfg.Zont.AuthURL = zont.DefaultAuthURL
	}
	if cfg.Zont.ClientName == "" {
		cfg.Zont.ClientName = zont.DefaultClientName
	}

	if cfg.Sync.IntervalSeconds <= 0 {
		cfg.Sync.IntervalSeconds = 60
	}
	cfg.Sync.Interval = time.Duration(cfg.Sync.IntervalSeconds) * time.Second
	if cfg.Sync.FetchTimeoutSeconds <= 0 {
		cfg.Sync.FetchTimeoutSeconds = 10
	}
	cfg.Sync.FetchTimeout = time.Duration(cfg.Sync.FetchTimeoutSeconds) * time.Second
	if cfg.Sync.MaxRetries <= 0 {
		cfg.Sync.MaxRetries = 10
	}

	if cfg.Commands.SettleDelayMillis <= 0 {
		cfg.Commands.SettleDelayMillis = 2000
	}
	cfg.Commands.SettleDelay = time.Duration(cfg.Commands.SettleDelayMillis) * time.Millisecond
	if cfg.Commands.RefreshIntervalMillis <= 0 {
		cfg.Commands.RefreshIntervalMillis = 10000
	}
	cfg.Commands.RefreshInterval = time.Duration(cfg.Commands.RefreshIntervalMillis) * time.Millisecond
	if cfg.Commands.MaxRefreshes <= 0 {
		cfg.Commands.MaxRefreshes = 18
	}
	if cfg.Commands.TimeoutSeconds <= 0 {
		cfg.Commands.TimeoutSeconds = 240
	}
	cfg.Commands.Timeout = time.Duration(cfg.Commands.TimeoutSeconds) * time.Second

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "postgres"
	}

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}

	if cfg.WorkerPool.Size <= 0 {
		cfg.WorkerPool.Size = 1
	}

	if cfg.MQTT.Port <= 0 {
		cfg.MQTT.Port = 1883
	}
	if cfg.MQTT.ClientID == "" {
		cfg.MQTT.ClientID = "zont-sync"
	}
	if cfg.MQTT.BaseTopic == "" {
		cfg.MQTT.BaseTopic = "zont"
	}
}

// Validate reports every configuration problem at once.
func (cfg *Config) Validate() error {
	var errs []error

	if len(cfg.Accounts) == 0 {
		errs = append(errs, errors.New("at least one account must be configured"))
	}
	seen := make(map[string]struct{}, len(cfg.Accounts))
	for i := range cfg.Accounts {
		acc := &cfg.Accounts[i]
		if acc.ID == "" {
			errs = append(errs, fmt.Errorf("accounts[%d]: id is required", i))
		} else if _, dup := seen[acc.ID]; dup {
			errs = append(errs, fmt.Errorf("accounts[%d]: duplicate id %q", i, acc.ID))
		}
		seen[acc.ID] = struct{}{}

		version, err := zont.ParseSchemaVersion(acc.Schema)
		if err != nil {
			errs = append(errs, fmt.Errorf("accounts[%d]: %w", i, err))
		}
		acc.SchemaVersion = version

		if acc.Token == "" && (acc.Login == "" || acc.Password == "") {
			errs = append(errs, fmt.Errorf("accounts[%d]: token or login and password are required", i))
		}
	}

	switch cfg.Database.Driver {
	case "postgres", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("database.driver must be postgres or sqlite, got %q", cfg.Database.Driver))
	}
	if cfg.Database.DSN == "" {
		errs = append(errs, errors.New("database.dsn is required"))
	}

	if cfg.Push.PublicKey != "" && cfg.Push.PrivateKey == "" || cfg.Push.PublicKey == "" && cfg.Push.PrivateKey != "" {
		errs = append(errs, errors.New("push: both VAPID keys must be set"))
	}

	if cfg.MQTT.Enabled && cfg.MQTT.Host == "" {
		errs = append(errs, errors.New("mqtt.host is required when mqtt is enabled"))
	}

	return errors.Join(errs...)
}
