package command

import (
	"context"
	"time"

	"go.uber.org/zap"

	"zont-sync-backend/internal/device"
)

type convergence struct {
	converged bool
	refreshes int
	zone      *device.GuardZone
}

// converge waits for the settle delay, then refreshes until the zone is no
// longer arming or disarming, at most MaxRefreshes times.
func (d *Dispatcher) converge(ctx context.Context, commandID string, deviceID, zoneID device.ID) convergence {
	logger := d.logger.With(
		zap.String("command_id", commandID),
		zap.Stringer("device", deviceID),
		zap.Stringer("zone", zoneID),
	)

	var conv convergence
	if err := sleep(ctx, d.cfg.SettleDelay); err != nil {
		return conv
	}

	for conv.refreshes < d.cfg.MaxRefreshes {
		if conv.refreshes > 0 {
			if err := sleep(ctx, d.cfg.RefreshInterval); err != nil {
				logger.Warn("guard state convergence interrupted", zap.Error(err))
				return conv
			}
		}
		conv.refreshes++
		if err := d.engine.Refresh(ctx); err != nil {
			logger.Warn("refresh during guard state convergence failed", zap.Int("refresh", conv.refreshes), zap.Error(err))
			continue
		}
		zone, ok := d.engine.Snapshot().GuardZone(deviceID, zoneID)
		if !ok {
			continue
		}
		conv.zone = &zone
		if !zone.State.Transient() {
			conv.converged = true
			logger.Debug("guard zone settled", zap.String("state", string(zone.State)), zap.Int("refreshes", conv.refreshes))
			return conv
		}
	}

	state := device.GuardUnknown
	if conv.zone != nil {
		state = conv.zone.State
	}
	logger.Info("guard zone still settling, giving up",
		zap.Int("refreshes", conv.refreshes),
		zap.String("state", string(state)),
	)
	return conv
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
