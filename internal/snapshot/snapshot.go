// Package snapshot holds the immutable, atomically swapped view of one
// account's device graph.
package snapshot

import (
	"fmt"
	"sync/atomic"
	"time"

	"zont-sync-backend/internal/device"
)

// Snapshot is the account state as of one successful poll. It must not be
// mutated once published; the next poll builds a new one.
type Snapshot struct {
	Account *device.Account
	TakenAt time.Time
	Stale   bool

	devices map[device.ID]*device.Device
}

// New indexes the account. The snapshot takes ownership of acc.
func New(acc *device.Account, takenAt time.Time) *Snapshot {
	s := &Snapshot{
		Account: acc,
		TakenAt: takenAt,
		devices: make(map[device.ID]*device.Device, len(acc.Devices)),
	}
	for i := range acc.Devices {
		s.devices[acc.Devices[i].ID] = &acc.Devices[i]
	}
	return s
}

// MarkStale returns a copy flagged as stale that shares the same account.
func (s *Snapshot) MarkStale() *Snapshot {
	out := *s
	out.Stale = true
	return &out
}

// Version identifies the snapshot: it changes with every poll and when the
// snapshot goes stale. A nil snapshot has an empty version.
func (s *Snapshot) Version() string {
	if s == nil {
		return ""
	}
	return fmt.Sprintf("%d:%t", s.TakenAt.UnixNano(), s.Stale)
}

// Devices returns the devices in payload order.
func (s *Snapshot) Devices() []device.Device {
	if s == nil {
		return nil
	}
	return s.Account.Devices
}

// Device returns the device with the given id. Lookups on a nil snapshot miss.
func (s *Snapshot) Device(id device.ID) (*device.Device, bool) {
	if s == nil {
		return nil, false
	}
	d, ok := s.devices[id]
	return d, ok
}

func (s *Snapshot) Sensor(deviceID, sensorID device.ID) (device.Sensor, bool) {
	d, ok := s.Device(deviceID)
	if !ok {
		return device.Sensor{}, false
	}
	return d.Sensor(sensorID)
}

func (s *Snapshot) Circuit(deviceID, circuitID device.ID) (device.Circuit, bool) {
	d, ok := s.Device(deviceID)
	if !ok {
		return device.Circuit{}, false
	}
	return d.Circuit(circuitID)
}

func (s *Snapshot) GuardZone(deviceID, zoneID device.ID) (device.GuardZone, bool) {
	d, ok := s.Device(deviceID)
	if !ok {
		return device.GuardZone{}, false
	}
	return d.GuardZone(zoneID)
}

func (s *Snapshot) Control(deviceID, controlID device.ID) (device.Control, bool) {
	d, ok := s.Device(deviceID)
	if !ok {
		return device.Control{}, false
	}
	return d.Control(controlID)
}

func (s *Snapshot) Mode(deviceID, modeID device.ID) (device.Mode, bool) {
	d, ok := s.Device(deviceID)
	if !ok {
		return device.Mode{}, false
	}
	return d.Mode(modeID)
}

// Car returns the vehicle telemetry of a device that reports one.
func (s *Snapshot) Car(deviceID device.ID) (device.CarState, bool) {
	d, ok := s.Device(deviceID)
	if !ok || d.Car == nil {
		return device.CarState{}, false
	}
	return *d.Car, true
}

// Holder publishes snapshots to concurrent readers without locking.
type Holder struct {
	p atomic.Pointer[Snapshot]
}

// Load returns the current snapshot, or nil before the first successful poll.
func (h *Holder) Load() *Snapshot {
	return h.p.Load()
}

// Swap publishes next and returns the snapshot it replaced.
func (h *Holder) Swap(next *Snapshot) *Snapshot {
	return h.p.Swap(next)
}
