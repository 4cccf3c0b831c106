package store

import (
	"zont-sync-backend/internal/snapshot"
)

// ZoneObservation is the state of one guard zone as seen in a snapshot.
type ZoneObservation struct {
	DeviceID string
	ZoneID   string
	Name     string
	State    string
	Alarm    bool
}

// ZoneObservations flattens the guard zones of every device in a snapshot.
func ZoneObservations(snap *snapshot.Snapshot) []ZoneObservation {
	var out []ZoneObservation
	for _, d := range snap.Devices() {
		for _, z := range d.GuardZones {
			out = append(out, ZoneObservation{
				DeviceID: d.ID.String(),
				ZoneID:   z.ID.String(),
				Name:     z.Name,
				State:    string(z.State),
				Alarm:    z.Alarm,
			})
		}
	}
	return out
}

type zoneKey struct {
	deviceID string
	zoneID   string
}
