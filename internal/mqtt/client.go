// Package mqtt mirrors account snapshots to an MQTT broker.
package mqtt

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"zont-sync-backend/config"
	"zont-sync-backend/internal/device"
	"zont-sync-backend/internal/engine"
)

const (
	MQTT_PAYLOAD_ONLINE  = "online"
	MQTT_PAYLOAD_OFFLINE = "offline"
)

const defaultTimeout = 5 * time.Second

var topicEscaper = strings.NewReplacer("/", "_", "+", "_", "#", "_", " ", "_")

func OptsFromConfig(cfg *config.MQTTConfig) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.Host, cfg.Port))
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" && cfg.Password != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.WillEnabled = true
	opts.WillPayload = []byte(MQTT_PAYLOAD_OFFLINE)
	opts.WillRetained = true
	opts.WillTopic = bridgeStateTopic(cfg.BaseTopic)
	opts.WillQos = 0

	return opts
}

// Publisher publishes device state and availability. Publishing never blocks
// the caller; failures are logged.
type Publisher struct {
	client  pahomqtt.Client
	cfg     config.MQTTConfig
	logger  *zap.Logger
	timeout time.Duration
}

func NewPublisher(client pahomqtt.Client, cfg config.MQTTConfig, logger *zap.Logger) *Publisher {
	return &Publisher{
		client:  client,
		cfg:     cfg,
		logger:  logger.With(zap.String("component", "mqtt")),
		timeout: defaultTimeout,
	}
}

// NewClient creates the paho client and re-announces the bridge on every
// (re)connect.
func NewClient(cfg *config.MQTTConfig, logger *zap.Logger) pahomqtt.Client {
	opts := OptsFromConfig(cfg)
	opts.OnConnect = func(c pahomqtt.Client) {
		logger.Info("connected to mqtt broker")
		c.Publish(bridgeStateTopic(cfg.BaseTopic), cfg.QoS, true, MQTT_PAYLOAD_ONLINE)
	}
	opts.OnConnectionLost = func(_ pahomqtt.Client, err error) {
		logger.Warn("mqtt connection lost", zap.Error(err))
	}
	return pahomqtt.NewClient(opts)
}

// Connect waits for the first connection to the broker.
func (p *Publisher) Connect() error {
	token := p.client.Connect()
	if !token.WaitTimeout(p.timeout) {
		return errors.New("MQTT connect timed out")
	}
	return token.Error()
}

// Disconnect announces the bridge offline and closes the connection.
func (p *Publisher) Disconnect() {
	token := p.client.Publish(p.BridgeStateTopic(), p.cfg.QoS, true, MQTT_PAYLOAD_OFFLINE)
	token.WaitTimeout(p.timeout)
	p.client.Disconnect(uint(p.timeout.Milliseconds()))
}

func (p *Publisher) BridgeStateTopic() string {
	return bridgeStateTopic(p.cfg.BaseTopic)
}

func (p *Publisher) DeviceStateTopic(accountID string, deviceID device.ID) string {
	return fmt.Sprintf("%s/%s/%s/state", p.cfg.BaseTopic, topicEscaper.Replace(accountID), topicEscaper.Replace(deviceID.String()))
}

func (p *Publisher) AvailabilityTopic(accountID string) string {
	return fmt.Sprintf("%s/%s/availability", p.cfg.BaseTopic, topicEscaper.Replace(accountID))
}

func (p *Publisher) Publish(topic string, payload any, retain bool, continuation func(error)) {
	token := p.client.Publish(topic, p.cfg.QoS, retain, payload)
	go func() {
		didTO := token.WaitTimeout(p.timeout)
		if !didTO {
			continuation(errors.New("MQTT publish timed out"))
		} else {
			continuation(token.Error())
		}
	}()
}

// deviceState is the retained payload of a device topic.
type deviceState struct {
	*device.Device
	Stale     bool      `json:"stale"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Listener returns the engine listener publishing one account.
func (p *Publisher) Listener() engine.Listener {
	return func(ev engine.Event) {
		switch ev.Kind {
		case engine.EventSnapshotReplaced:
			if ev.Previous == nil {
				p.publishAvailability(ev.AccountID, MQTT_PAYLOAD_ONLINE)
			}
			p.publishSnapshot(ev)
		case engine.EventRecovered:
			p.publishAvailability(ev.AccountID, MQTT_PAYLOAD_ONLINE)
		case engine.EventUpdateFailed:
			p.publishAvailability(ev.AccountID, MQTT_PAYLOAD_OFFLINE)
		}
	}
}

func (p *Publisher) publishSnapshot(ev engine.Event) {
	snap := ev.Current
	devices := snap.Devices()
	for i := range devices {
		d := &devices[i]
		payload, err := json.Marshal(deviceState{Device: d, Stale: snap.Stale, UpdatedAt: snap.TakenAt})
		if err != nil {
			p.logger.Error("failed to encode device state", zap.Stringer("device", d.ID), zap.Error(err))
			continue
		}
		topic := p.DeviceStateTopic(ev.AccountID, d.ID)
		p.Publish(topic, payload, true, p.logFailure(topic))
	}
}

func (p *Publisher) publishAvailability(accountID, state string) {
	topic := p.AvailabilityTopic(accountID)
	p.Publish(topic, state, true, p.logFailure(topic))
}

func (p *Publisher) logFailure(topic string) func(error) {
	return func(err error) {
		if err != nil {
			p.logger.Warn("mqtt publish failed", zap.String("topic", topic), zap.Error(err))
		}
	}
}

func bridgeStateTopic(baseTopic string) string {
	return fmt.Sprintf("%s/bridge/state", baseTopic)
}
