package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"zont-sync-backend/internal/device"
	"zont-sync-backend/internal/model"
)

// Store defines the interface for all database operations.
type Store interface {
	DB() *gorm.DB
	UpsertAccount(ctx context.Context, accountID, schema string) error
	UpsertDevices(ctx context.Context, accountID string, now time.Time, devices []device.Device) error
	RecordZoneStates(ctx context.Context, accountID string, now time.Time, zones []ZoneObservation) ([]model.ZoneEvent, error)
	ZoneEvents(ctx context.Context, accountID string, limit int) ([]model.ZoneEvent, error)
	RecordCommand(ctx context.Context, entry *model.CommandLog) error
	RecentCommands(ctx context.Context, accountID string, limit int) ([]model.CommandLog, error)
	RecordWebhook(ctx context.Context, event *model.WebhookEvent) error
	SubscriptionsForAccount(ctx context.Context, accountID string) ([]model.PushSubscription, error)
	UpsertSubscription(ctx context.Context, sub *model.PushSubscription) error
	DeleteSubscription(ctx context.Context, accountID, endpoint string) error
	DeleteSubscriptionByEndpoint(ctx context.Context, endpoint string) error
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) DB() *gorm.DB {
	return s.db
}

// UpsertAccount registers a configured account.
func (s *gormStore) UpsertAccount(ctx context.Context, accountID, schema string) error {
	account := model.Account{ID: accountID, SchemaVersion: schema}
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"schema_version", "updated_at"}),
	}).Create(&account).Error; err != nil {
		return fmt.Errorf("upsert account %s failed: %w", accountID, err)
	}
	return nil
}

// UpsertDevices refreshes the device catalog of an account.
func (s *gormStore) UpsertDevices(ctx context.Context, accountID string, now time.Time, devices []device.Device) error {
	if len(devices) == 0 {
		return nil
	}

	rows := make([]model.Device, 0, len(devices))
	for _, d := range devices {
		rows = append(rows, model.Device{
			AccountID: accountID,
			ID:        d.ID.String(),
			Name:      d.Name,
			Model:     d.Info.Model,
			Serial:    d.Info.Serial,
			Online:    d.Online,
			LastSeen:  now,
		})
	}

	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "account_id"}, {Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "model", "serial", "online", "last_seen", "updated_at"}),
	}).Create(&rows).Error; err != nil {
		return fmt.Errorf("batch upsert devices failed: %w", err)
	}
	return nil
}

// RecordZoneStates compares the observed guard zones with the open records of
// the account, archives every changed state and returns the archived rows.
// Zones seen for the first time open a record, with an event only when the
// alarm is already raised; zones that disappeared are closed without an event.
func (s *gormStore) RecordZoneStates(ctx context.Context, accountID string, now time.Time, zones []ZoneObservation) ([]model.ZoneEvent, error) {
	openRecords, err := s.fetchOpenZones(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch open zone records: %w", err)
	}

	var events []model.ZoneEvent
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, z := range zones {
			key := zoneKey{deviceID: z.DeviceID, zoneID: z.ZoneID}
			current := model.ZoneStateOpen{
				AccountID:  accountID,
				DeviceID:   z.DeviceID,
				ZoneID:     z.ZoneID,
				Name:       z.Name,
				State:      z.State,
				Alarm:      z.Alarm,
				ObservedAt: now,
			}

			old, exists := openRecords[key]
			delete(openRecords, key)
			if !exists {
				if err := tx.Create(&current).Error; err != nil {
					return fmt.Errorf("failed to open zone record %s/%s: %w", z.DeviceID, z.ZoneID, err)
				}
				if !z.Alarm {
					continue
				}
				// A zone first seen in alarm has no previous state.
				old = model.ZoneStateOpen{ObservedAt: now}
			} else if old.State == z.State && old.Alarm == z.Alarm {
				continue
			}

			event := model.ZoneEvent{
				AccountID:   accountID,
				DeviceID:    z.DeviceID,
				ZoneID:      z.ZoneID,
				Name:        z.Name,
				FromState:   old.State,
				ToState:     z.State,
				Alarm:       z.Alarm,
				WasAlarm:    old.Alarm,
				PeriodStart: old.ObservedAt,
				ObservedAt:  now,
			}
			if err := tx.Create(&event).Error; err != nil {
				return fmt.Errorf("failed to archive zone state %s/%s: %w", z.DeviceID, z.ZoneID, err)
			}
			if exists {
				if err := tx.Save(&current).Error; err != nil {
					return fmt.Errorf("failed to update zone record %s/%s: %w", z.DeviceID, z.ZoneID, err)
				}
			}
			events = append(events, event)
		}

		for key := range openRecords {
			if err := tx.Where("account_id = ? AND device_id = ? AND zone_id = ?", accountID, key.deviceID, key.zoneID).
				Delete(&model.ZoneStateOpen{}).Error; err != nil {
				return fmt.Errorf("failed to close zone record %s/%s: %w", key.deviceID, key.zoneID, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return events, nil
}

// ZoneEvents returns the newest archived zone states of an account.
func (s *gormStore) ZoneEvents(ctx context.Context, accountID string, limit int) ([]model.ZoneEvent, error) {
	var events []model.ZoneEvent
	if err := s.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("observed_at DESC").
		Limit(limit).
		Find(&events).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch zone events: %w", err)
	}
	return events, nil
}

func (s *gormStore) RecordCommand(ctx context.Context, entry *model.CommandLog) error {
	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("failed to record command %s: %w", entry.ID, err)
	}
	return nil
}

// RecentCommands returns the newest command log entries of an account.
func (s *gormStore) RecentCommands(ctx context.Context, accountID string, limit int) ([]model.CommandLog, error) {
	var entries []model.CommandLog
	if err := s.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("created_at DESC").
		Limit(limit).
		Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch commands: %w", err)
	}
	return entries, nil
}

func (s *gormStore) RecordWebhook(ctx context.Context, event *model.WebhookEvent) error {
	if err := s.db.WithContext(ctx).Create(event).Error; err != nil {
		return fmt.Errorf("failed to record webhook: %w", err)
	}
	return nil
}

func (s *gormStore) SubscriptionsForAccount(ctx context.Context, accountID string) ([]model.PushSubscription, error) {
	var subscriptions []model.PushSubscription
	if err := s.db.WithContext(ctx).Where("account_id = ?", accountID).Find(&subscriptions).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch subscriptions for account %s: %w", accountID, err)
	}
	return subscriptions, nil
}

// UpsertSubscription creates a subscription or replaces its keys and account.
func (s *gormStore) UpsertSubscription(ctx context.Context, sub *model.PushSubscription) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "endpoint"}},
		DoUpdates: clause.AssignmentColumns([]string{"account_id", "p256dh", "auth"}),
	}).Create(sub).Error
}

func (s *gormStore) DeleteSubscription(ctx context.Context, accountID, endpoint string) error {
	return s.db.WithContext(ctx).
		Where("account_id = ? AND endpoint = ?", accountID, endpoint).
		Delete(&model.PushSubscription{}).Error
}

// DeleteSubscriptionByEndpoint removes an expired subscription.
func (s *gormStore) DeleteSubscriptionByEndpoint(ctx context.Context, endpoint string) error {
	return s.db.WithContext(ctx).Delete(&model.PushSubscription{Endpoint: endpoint}).Error
}

func (s *gormStore) fetchOpenZones(ctx context.Context, accountID string) (map[zoneKey]model.ZoneStateOpen, error) {
	var openRecords []model.ZoneStateOpen
	if err := s.db.WithContext(ctx).Where("account_id = ?", accountID).Find(&openRecords).Error; err != nil {
		return nil, err
	}
	recordMap := make(map[zoneKey]model.ZoneStateOpen, len(openRecords))
	for _, r := range openRecords {
		recordMap[zoneKey{deviceID: r.DeviceID, zoneID: r.ZoneID}] = r
	}
	return recordMap, nil
}
