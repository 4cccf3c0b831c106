// Package archive persists what the sync engines observe: the device catalog
// and the guard zone history. Newly raised alarms are handed to the notifier.
package archive

import (
	"context"
	"time"

	"go.uber.org/zap"

	"zont-sync-backend/internal/engine"
	"zont-sync-backend/internal/notification"
	"zont-sync-backend/internal/snapshot"
	"zont-sync-backend/internal/store"
)

const defaultQueueSize = 64

// Notifier accepts alarm jobs without blocking.
type Notifier interface {
	Dispatch(job notification.AlarmJob) bool
}

type job struct {
	accountID string
	snap      *snapshot.Snapshot
}

// Service archives snapshots off the polling goroutines.
type Service struct {
	store    store.Store
	notifier Notifier
	logger   *zap.Logger
	queue    chan job
	now      func() time.Time
}

// NewService creates an archive service. notifier may be nil when push is
// disabled.
func NewService(s store.Store, notifier Notifier, logger *zap.Logger) *Service {
	return &Service{
		store:    s,
		notifier: notifier,
		logger:   logger.With(zap.String("component", "archive")),
		queue:    make(chan job, defaultQueueSize),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Listener returns the engine listener feeding the archive. A full queue
// drops the snapshot; the next one carries the same state.
func (s *Service) Listener() engine.Listener {
	return func(ev engine.Event) {
		if ev.Kind != engine.EventSnapshotReplaced || ev.Current == nil {
			return
		}
		select {
		case s.queue <- job{accountID: ev.AccountID, snap: ev.Current}:
		default:
			s.logger.Warn("archive queue full, snapshot dropped", zap.String("account", ev.AccountID))
		}
	}
}

// Run archives queued snapshots until ctx is cancelled.
func (s *Service) Run(ctx context.Context) {
	s.logger.Info("starting archive service")
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("archive service shutting down")
			return
		case j := <-s.queue:
			s.ArchiveOnce(ctx, j.accountID, j.snap)
		}
	}
}

// ArchiveOnce persists one snapshot of an account.
func (s *Service) ArchiveOnce(ctx context.Context, accountID string, snap *snapshot.Snapshot) {
	logger := s.logger.With(zap.String("account", accountID))
	now := s.now()

	// Step 1: device catalog
	if err := s.store.UpsertDevices(ctx, accountID, now, snap.Devices()); err != nil {
		logger.Error("error processing devices", zap.Error(err))
		return
	}

	// Step 2: guard zone history
	events, err := s.store.RecordZoneStates(ctx, accountID, now, store.ZoneObservations(snap))
	if err != nil {
		logger.Error("error processing guard zone changes", zap.Error(err))
		return
	}
	if len(events) > 0 {
		logger.Info("guard zone changes archived", zap.Int("events", len(events)))
	}

	// Step 3: dispatch notifications for newly raised alarms
	if s.notifier == nil {
		return
	}
	for _, ev := range events {
		if !ev.Alarm || ev.WasAlarm {
			continue
		}
		logger.Info("dispatching alarm notification", zap.String("device", ev.DeviceID), zap.String("zone", ev.ZoneID))
		s.notifier.Dispatch(notification.AlarmJob{AccountID: accountID, Event: ev})
	}
}
