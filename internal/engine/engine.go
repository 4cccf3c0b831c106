// Package engine keeps one account's snapshot in sync with the cloud.
package engine

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"zont-sync-backend/internal/device"
	"zont-sync-backend/internal/snapshot"
	"zont-sync-backend/internal/zont"
)

const (
	DefaultInterval     = 60 * time.Second
	DefaultFetchTimeout = 10 * time.Second
	DefaultMaxRetries   = 10
)

// Fetcher returns the raw devices payload of an account.
type Fetcher interface {
	FetchDevices(ctx context.Context, version zont.SchemaVersion) ([]byte, error)
}

// Config controls the polling cadence and failure budget of one engine.
type Config struct {
	AccountID    string
	Schema       zont.SchemaVersion
	Interval     time.Duration
	FetchTimeout time.Duration
	MaxRetries   int
	// Devices restricts the snapshot to these device ids. Empty keeps all.
	Devices []device.ID
	// GlitchFilter keeps the previous numeric reading when a new one jumps
	// by more than two orders of magnitude.
	GlitchFilter bool
}

func (c *Config) applyDefaults() {
	if c.Schema == "" {
		c.Schema = zont.SchemaV3
	}
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = DefaultFetchTimeout
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = DefaultMaxRetries
	}
}

// Engine polls the cloud, swaps snapshots and notifies listeners. Exactly one
// poll runs at a time; snapshot reads never wait for a poll.
type Engine struct {
	cfg     Config
	fetcher Fetcher
	logger  *zap.Logger
	now     func() time.Time

	holder    snapshot.Holder
	pollMu    sync.Mutex
	refreshCh chan struct{}

	mu        sync.Mutex
	health    Health
	listeners []subscription
	nextSubID int
}

type subscription struct {
	id int
	fn Listener
}

// New creates an engine. Call Run to start polling.
func New(cfg Config, fetcher Fetcher, logger *zap.Logger) *Engine {
	cfg.applyDefaults()
	return &Engine{
		cfg:       cfg,
		fetcher:   fetcher,
		logger:    logger.With(zap.String("account", cfg.AccountID)),
		now:       time.Now,
		refreshCh: make(chan struct{}, 1),
		health:    Health{State: StateHealthy},
	}
}

// AccountID returns the account this engine serves.
func (e *Engine) AccountID() string {
	return e.cfg.AccountID
}

// Run polls once immediately, then on every interval tick and on every
// coalesced refresh request, until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) {
	e.logger.Info("starting sync engine",
		zap.String("schema", string(e.cfg.Schema)),
		zap.Duration("interval", e.cfg.Interval),
	)

	e.Refresh(ctx)

	timer := time.NewTimer(e.cfg.Interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("sync engine shutting down")
			return
		case <-timer.C:
			e.Refresh(ctx)
			timer.Reset(e.cfg.Interval)
		case <-e.refreshCh:
			e.logger.Debug("refresh requested")
			e.Refresh(ctx)
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(e.cfg.Interval)
		}
	}
}

// RequestRefresh asks the Run loop for an out-of-schedule poll. Requests made
// while one is already pending collapse into it.
func (e *Engine) RequestRefresh() {
	select {
	case e.refreshCh <- struct{}{}:
	default:
	}
}

// Refresh performs one poll now, serialized with every other poll of this
// engine. The error is also absorbed into the engine's health.
func (e *Engine) Refresh(ctx context.Context) error {
	e.pollMu.Lock()
	defer e.pollMu.Unlock()
	return e.poll(ctx)
}

// Snapshot returns the current snapshot, or nil before the first success.
func (e *Engine) Snapshot() *snapshot.Snapshot {
	return e.holder.Load()
}

// Tracks reports whether the device is part of the current snapshot.
func (e *Engine) Tracks(id device.ID) bool {
	_, ok := e.holder.Load().Device(id)
	return ok
}

// Health returns the current failure state.
func (e *Engine) Health() Health {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.health
}

// Subscribe registers a listener and returns the function that removes it.
// Listeners run on the polling goroutine and must not block.
func (e *Engine) Subscribe(fn Listener) (unsubscribe func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nextSubID++
	id := e.nextSubID
	e.listeners = append(e.listeners, subscription{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Lock()
			defer e.mu.Unlock()
			for i, s := range e.listeners {
				if s.id == id {
					e.listeners = append(e.listeners[:i:i], e.listeners[i+1:]...)
					return
				}
			}
		})
	}
}

func (e *Engine) poll(ctx context.Context) error {
	fetchCtx, cancel := context.WithTimeout(ctx, e.cfg.FetchTimeout)
	defer cancel()

	raw, err := e.fetcher.FetchDevices(fetchCtx, e.cfg.Schema)
	var acc *device.Account
	if err == nil {
		acc, err = zont.Parse(raw, e.cfg.Schema)
	}
	if err != nil {
		// The caller gave up, upstream did not fail: health is untouched.
		if ctx.Err() != nil {
			return ctx.Err()
		}
		e.recordFailure(err)
		return err
	}

	e.selectDevices(acc)
	device.Synthesize(acc)

	prev := e.holder.Load()
	if e.cfg.GlitchFilter && prev != nil {
		filterGlitches(acc, prev)
	}
	next := snapshot.New(acc, e.now())
	e.holder.Swap(next)

	recovered := e.recordSuccess()
	e.logger.Debug("snapshot replaced", zap.Int("devices", len(acc.Devices)))

	e.emit(Event{Kind: EventSnapshotReplaced, AccountID: e.cfg.AccountID, Previous: prev, Current: next})
	if recovered {
		e.logger.Info("sync engine recovered")
		e.emit(Event{Kind: EventRecovered, AccountID: e.cfg.AccountID, Previous: prev, Current: next})
	}
	return nil
}

func (e *Engine) selectDevices(acc *device.Account) {
	if len(e.cfg.Devices) == 0 {
		return
	}
	keep := make(map[device.ID]struct{}, len(e.cfg.Devices))
	for _, id := range e.cfg.Devices {
		keep[id] = struct{}{}
	}
	selected := acc.Devices[:0]
	for _, d := range acc.Devices {
		if _, ok := keep[d.ID]; ok {
			selected = append(selected, d)
		}
	}
	acc.Devices = selected
}

func filterGlitches(acc *device.Account, prev *snapshot.Snapshot) {
	for i := range acc.Devices {
		d := &acc.Devices[i]
		for j := range d.Sensors {
			old, ok := prev.Sensor(d.ID, d.Sensors[j].ID)
			if !ok {
				continue
			}
			d.Sensors[j].Value = device.StableValue(d.Sensors[j].Value, old.Value)
		}
	}
}

func (e *Engine) recordSuccess() (recovered bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	recovered = e.health.State == StateFailed
	e.health = Health{State: StateHealthy, LastSuccess: e.now()}
	return recovered
}

func (e *Engine) recordFailure(err error) {
	e.mu.Lock()
	e.health.Failures++
	e.health.LastError = err.Error()
	failures := e.health.Failures
	exhausted := failures >= e.cfg.MaxRetries
	if exhausted {
		e.health.State = StateFailed
	} else {
		e.health.State = StateDegraded
	}
	e.mu.Unlock()

	if !exhausted {
		e.logger.Warn("poll failed, keeping previous snapshot",
			zap.Int("failures", failures),
			zap.Int("max_retries", e.cfg.MaxRetries),
			zap.Error(err),
		)
		return
	}

	if cur := e.holder.Load(); cur != nil && !cur.Stale {
		e.holder.Swap(cur.MarkStale())
	}
	e.logger.Error("update failed, snapshot is stale",
		zap.Int("failures", failures),
		zap.Error(err),
	)
	e.emit(Event{Kind: EventUpdateFailed, AccountID: e.cfg.AccountID, Current: e.holder.Load(), Failures: failures, Err: err})
}

func (e *Engine) emit(ev Event) {
	e.mu.Lock()
	listeners := make([]subscription, len(e.listeners))
	copy(listeners, e.listeners)
	e.mu.Unlock()

	for _, s := range listeners {
		s.fn(ev)
	}
}
