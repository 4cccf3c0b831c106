// Package command sends control commands to the cloud and verifies them.
package command

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"zont-sync-backend/internal/device"
	"zont-sync-backend/internal/model"
	"zont-sync-backend/internal/parse"
	"zont-sync-backend/internal/snapshot"
	"zont-sync-backend/internal/zont"
)

const (
	DefaultSettleDelay     = 2 * time.Second
	DefaultRefreshInterval = 10 * time.Second
	DefaultMaxRefreshes    = 18
	DefaultCommandTimeout  = 4 * time.Minute
)

// PresetNone cancels the active mode of a circuit.
const PresetNone = "none"

// Commander sends raw commands upstream.
type Commander interface {
	SetTargetTemperature(ctx context.Context, deviceID, circuitID device.ID, temp float64) (*zont.Response, error)
	ActivateMode(ctx context.Context, deviceID, modeID device.ID, circuitID *device.ID) (*zont.Response, error)
	TriggerControl(ctx context.Context, deviceID, controlID device.ID, state bool) (*zont.Response, error)
	SetGuardState(ctx context.Context, deviceID, zoneID device.ID, enable bool) (*zont.Response, error)
}

// Refresher is the part of the sync engine a dispatcher needs.
type Refresher interface {
	Snapshot() *snapshot.Snapshot
	Refresh(ctx context.Context) error
	RequestRefresh()
}

// Recorder persists command outcomes.
type Recorder interface {
	RecordCommand(ctx context.Context, entry *model.CommandLog) error
}

type Kind string

const (
	KindTargetTemperature Kind = "set_target_temperature"
	KindMode              Kind = "set_mode"
	KindModeAll           Kind = "activate_mode"
	KindTrigger           Kind = "trigger_control"
	KindGuard             Kind = "set_guard_state"
)

// Config holds the convergence timings of guard commands.
type Config struct {
	AccountID       string
	SettleDelay     time.Duration
	RefreshInterval time.Duration
	MaxRefreshes    int
	CommandTimeout  time.Duration
}

func (c *Config) applyDefaults() {
	if c.SettleDelay < 0 {
		c.SettleDelay = 0
	}
	if c.RefreshInterval < 0 {
		c.RefreshInterval = 0
	}
	if c.MaxRefreshes <= 0 {
		c.MaxRefreshes = DefaultMaxRefreshes
	}
	if c.CommandTimeout <= 0 {
		c.CommandTimeout = DefaultCommandTimeout
	}
}

// DefaultConfig returns the production timings for an account.
func DefaultConfig(accountID string) Config {
	return Config{
		AccountID:       accountID,
		SettleDelay:     DefaultSettleDelay,
		RefreshInterval: DefaultRefreshInterval,
		MaxRefreshes:    DefaultMaxRefreshes,
		CommandTimeout:  DefaultCommandTimeout,
	}
}

// Result describes a verified command. Converged, Refreshes and Zone are
// only set for guard commands.
type Result struct {
	ID        string            `json:"id"`
	Kind      Kind              `json:"kind"`
	DeviceID  device.ID         `json:"device_id"`
	TargetID  device.ID         `json:"target_id"`
	Value     string            `json:"value"`
	Outcome   Outcome           `json:"outcome"`
	Converged *bool             `json:"converged,omitempty"`
	Refreshes int               `json:"refreshes,omitempty"`
	Zone      *device.GuardZone `json:"zone,omitempty"`
}

// Dispatcher issues commands for one account. It never retries a command.
type Dispatcher struct {
	cfg      Config
	client   Commander
	engine   Refresher
	logger   *zap.Logger
	recorder Recorder
	now      func() time.Time
	newID    func() string
}

type Option func(*Dispatcher)

// WithRecorder stores every command outcome.
func WithRecorder(r Recorder) Option {
	return func(d *Dispatcher) { d.recorder = r }
}

func NewDispatcher(cfg Config, client Commander, engine Refresher, logger *zap.Logger, opts ...Option) *Dispatcher {
	cfg.applyDefaults()
	d := &Dispatcher{
		cfg:    cfg,
		client: client,
		engine: engine,
		logger: logger.With(zap.String("account", cfg.AccountID)),
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// SetTargetTemperature sets a circuit's target after checking it against the
// circuit's effective range.
func (d *Dispatcher) SetTargetTemperature(ctx context.Context, deviceID, circuitID device.ID, temp float64) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, d.cfg.CommandTimeout)
	defer cancel()

	res := d.newResult(KindTargetTemperature, deviceID, circuitID, formatTemp(temp))
	dev, circuit, err := d.circuit(deviceID, circuitID)
	if err != nil {
		return res, err
	}
	rng, source := parse.TemperatureRange(circuit.Name, circuit.Min, circuit.Max)
	if source != parse.SourcePayload {
		d.logger.Warn("circuit reports no usable bounds, using range by name",
			zap.Stringer("device", dev.ID),
			zap.Stringer("circuit", circuit.ID),
			zap.String("name", circuit.Name),
			zap.String("source", string(source)),
			zap.Float64("min", rng.Min),
			zap.Float64("max", rng.Max),
		)
	}
	if !rng.Contains(temp) {
		return res, &TemperatureOutOfRangeError{Temperature: temp, Range: rng}
	}

	resp, err := d.client.SetTargetTemperature(ctx, dev.ID, circuit.ID, temp)
	return d.finish(ctx, res, resp, err, Change{
		Device: dev.Name,
		Target: circuit.Name,
		Before: formatTempPtr(circuit.TargetTemp),
		After:  res.Value,
	})
}

// SetMode activates a preset on a circuit by name. PresetNone cancels the
// active mode by re-sending the circuit's current target temperature.
func (d *Dispatcher) SetMode(ctx context.Context, deviceID, circuitID device.ID, modeName string) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, d.cfg.CommandTimeout)
	defer cancel()

	res := d.newResult(KindMode, deviceID, circuitID, modeName)
	dev, circuit, err := d.circuit(deviceID, circuitID)
	if err != nil {
		return res, err
	}
	before, ok := dev.CurrentModeName(circuit)
	if !ok {
		before = PresetNone
	}
	change := Change{Device: dev.Name, Target: circuit.Name, Before: before, After: modeName}

	if modeName == PresetNone {
		if circuit.TargetTemp == nil {
			return res, ErrNoTargetTemperature
		}
		resp, err := d.client.SetTargetTemperature(ctx, dev.ID, circuit.ID, *circuit.TargetTemp)
		return d.finish(ctx, res, resp, err, change)
	}

	mode, ok := dev.ModeByName(modeName)
	if !ok || !mode.AppliesTo(circuit.ID) {
		return res, &NotFoundError{Kind: "mode", DeviceID: deviceID, ID: device.ID(modeName)}
	}
	circuitRef := circuit.ID
	resp, err := d.client.ActivateMode(ctx, dev.ID, mode.ID, &circuitRef)
	return d.finish(ctx, res, resp, err, change)
}

// ActivateModeAll activates a mode on every circuit of the device.
func (d *Dispatcher) ActivateModeAll(ctx context.Context, deviceID, modeID device.ID) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, d.cfg.CommandTimeout)
	defer cancel()

	res := d.newResult(KindModeAll, deviceID, modeID, "")
	dev, err := d.device(deviceID)
	if err != nil {
		return res, err
	}
	mode, ok := dev.Mode(modeID)
	if !ok {
		return res, &NotFoundError{Kind: "mode", DeviceID: deviceID, ID: modeID}
	}
	res.Value = mode.Name

	resp, err := d.client.ActivateMode(ctx, dev.ID, mode.ID, nil)
	return d.finish(ctx, res, resp, err, Change{Device: dev.Name, Target: "all circuits", After: mode.Name})
}

// TriggerControl presses a button or switches a toggle button.
func (d *Dispatcher) TriggerControl(ctx context.Context, deviceID, controlID device.ID, state bool) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, d.cfg.CommandTimeout)
	defer cancel()

	res := d.newResult(KindTrigger, deviceID, controlID, strconv.FormatBool(state))
	dev, err := d.device(deviceID)
	if err != nil {
		return res, err
	}
	control, ok := dev.Control(controlID)
	if !ok {
		return res, &NotFoundError{Kind: "control", DeviceID: deviceID, ID: controlID}
	}

	change := Change{Device: dev.Name, Target: control.Name()}
	switch control.Kind {
	case device.ControlButton:
		state = true
		res.Value = strconv.FormatBool(state)
	case device.ControlToggleButton:
		if control.ToggleButton.Active != nil {
			change.Before = control.ToggleButton.Name.Label(*control.ToggleButton.Active)
		}
		change.After = control.ToggleButton.Name.Label(state)
	default:
		return res, &UnsupportedControlError{ID: controlID, Kind: control.Kind}
	}

	resp, err := d.client.TriggerControl(ctx, dev.ID, controlID, state)
	return d.finish(ctx, res, resp, err, change)
}

// SetGuardState arms or disarms a guard zone, then refreshes until the zone
// leaves its transient state or the refresh budget runs out. Running out is
// not an error; Result.Converged reports it.
func (d *Dispatcher) SetGuardState(ctx context.Context, deviceID, zoneID device.ID, enable bool) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, d.cfg.CommandTimeout)
	defer cancel()

	res := d.newResult(KindGuard, deviceID, zoneID, strconv.FormatBool(enable))
	dev, err := d.device(deviceID)
	if err != nil {
		return res, err
	}
	zone, ok := dev.GuardZone(zoneID)
	if !ok {
		return res, &NotFoundError{Kind: "guard zone", DeviceID: deviceID, ID: zoneID}
	}

	resp, err := d.client.SetGuardState(ctx, dev.ID, zone.ID, enable)
	if err != nil {
		d.record(ctx, res, err)
		return res, err
	}
	after := device.GuardDisabled
	if enable {
		after = device.GuardEnabled
	}
	outcome, err := Verify(d.logger.With(zap.String("command_id", res.ID)), resp, Change{
		Device: dev.Name,
		Target: zone.Name,
		Before: string(zone.State),
		After:  string(after),
	})
	if err != nil {
		d.record(ctx, res, err)
		return res, err
	}
	res.Outcome = outcome

	conv := d.converge(ctx, res.ID, deviceID, zoneID)
	res.Converged = &conv.converged
	res.Refreshes = conv.refreshes
	res.Zone = conv.zone
	d.record(ctx, res, nil)
	return res, nil
}

func (d *Dispatcher) finish(ctx context.Context, res Result, resp *zont.Response, err error, change Change) (Result, error) {
	if err == nil {
		res.Outcome, err = Verify(d.logger.With(zap.String("command_id", res.ID)), resp, change)
	}
	d.record(ctx, res, err)
	if err != nil {
		return res, err
	}
	d.engine.RequestRefresh()
	return res, nil
}

func (d *Dispatcher) newResult(kind Kind, deviceID, targetID device.ID, value string) Result {
	return Result{ID: d.newID(), Kind: kind, DeviceID: deviceID, TargetID: targetID, Value: value}
}

func (d *Dispatcher) device(id device.ID) (*device.Device, error) {
	dev, ok := d.engine.Snapshot().Device(id)
	if !ok {
		return nil, &NotFoundError{Kind: "device", DeviceID: id}
	}
	return dev, nil
}

func (d *Dispatcher) circuit(deviceID, circuitID device.ID) (*device.Device, device.Circuit, error) {
	dev, err := d.device(deviceID)
	if err != nil {
		return nil, device.Circuit{}, err
	}
	c, ok := dev.Circuit(circuitID)
	if !ok {
		return nil, device.Circuit{}, &NotFoundError{Kind: "circuit", DeviceID: deviceID, ID: circuitID}
	}
	return dev, c, nil
}

func (d *Dispatcher) record(ctx context.Context, res Result, cmdErr error) {
	logger := d.logger.With(
		zap.String("command_id", res.ID),
		zap.String("kind", string(res.Kind)),
		zap.Stringer("device", res.DeviceID),
		zap.Stringer("target", res.TargetID),
	)
	if cmdErr != nil {
		var remote *RemoteCommandError
		if errors.As(cmdErr, &remote) {
			logger.Warn("command rejected", zap.Int("status", remote.Status), zap.String("code", remote.Code), zap.Error(cmdErr))
		} else {
			logger.Error("command failed", zap.Error(cmdErr))
		}
	}

	if d.recorder == nil {
		return
	}
	entry := &model.CommandLog{
		ID:        res.ID,
		AccountID: d.cfg.AccountID,
		DeviceID:  res.DeviceID.String(),
		TargetID:  res.TargetID.String(),
		Kind:      string(res.Kind),
		Value:     res.Value,
		Outcome:   string(res.Outcome),
		Refreshes: res.Refreshes,
		Converged: res.Converged,
		CreatedAt: d.now(),
	}
	if cmdErr != nil {
		entry.Error = cmdErr.Error()
	}
	if err := d.recorder.RecordCommand(context.WithoutCancel(ctx), entry); err != nil {
		logger.Warn("failed to record command", zap.Error(err))
	}
}

func formatTemp(t float64) string {
	return strconv.FormatFloat(t, 'f', -1, 64)
}

func formatTempPtr(t *float64) string {
	if t == nil {
		return ""
	}
	return formatTemp(*t)
}
