package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"go.uber.org/zap"

	"zont-sync-backend/internal/model"
	"zont-sync-backend/internal/store"
)

// NotificationSender defines the interface for sending a web push notification.
type NotificationSender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of NotificationSender using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// AlarmJob announces a triggered guard zone to the subscribers of its account.
type AlarmJob struct {
	AccountID string
	Event     model.ZoneEvent
}

// Message is the JSON payload delivered to the browser.
type Message struct {
	Title     string `json:"title"`
	Body      string `json:"body"`
	AccountID string `json:"account_id"`
	DeviceID  string `json:"device_id"`
	ZoneID    string `json:"zone_id"`
	State     string `json:"state"`
	Alarm     bool   `json:"alarm"`
}

// WorkerPool manages a pool of workers for sending notifications.
type WorkerPool struct {
	size    int
	jobs    chan AlarmJob
	store   store.Store
	webpush *webpush.Options
	sender  NotificationSender
	logger  *zap.Logger
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(size int, s store.Store, webpushOptions *webpush.Options, logger *zap.Logger) *WorkerPool {
	return &WorkerPool{
		size:    size,
		jobs:    make(chan AlarmJob, size*16), // Buffered channel
		store:   s,
		webpush: webpushOptions,
		sender:  &WebPushSender{}, // Use the real sender by default
		logger:  logger,
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

// worker is the actual worker goroutine.
func (wp *WorkerPool) worker(ctx context.Context, id int) {
	logger := wp.logger.With(zap.Int("worker", id))
	logger.Debug("notification worker started")
	for {
		select {
		case job := <-wp.jobs:
			logger.Debug("processing alarm", zap.String("account", job.AccountID), zap.String("zone", job.Event.ZoneID))
			wp.sendNotificationsForAccount(ctx, job)
		case <-ctx.Done():
			logger.Debug("notification worker shutting down")
			return
		}
	}
}

// Dispatch queues a job without blocking. It reports false when the queue is
// full and the job was dropped.
func (wp *WorkerPool) Dispatch(job AlarmJob) bool {
	select {
	case wp.jobs <- job:
		return true
	default:
		wp.logger.Warn("notification queue full, dropping alarm",
			zap.String("account", job.AccountID),
			zap.String("zone", job.Event.ZoneID),
		)
		return false
	}
}

// Jobs returns the jobs channel for testing.
func (wp *WorkerPool) Jobs() chan AlarmJob {
	return wp.jobs
}

// NewMessage renders the notification for a zone event.
func NewMessage(accountID string, ev model.ZoneEvent) Message {
	return Message{
		Title:     fmt.Sprintf("Тревога: %s", ev.Name),
		Body:      fmt.Sprintf("Сработала охрана в зоне %s", ev.Name),
		AccountID: accountID,
		DeviceID:  ev.DeviceID,
		ZoneID:    ev.ZoneID,
		State:     ev.ToState,
		Alarm:     ev.Alarm,
	}
}

// sendNotificationsForAccount fetches subscriptions and sends notifications for a given account.
func (wp *WorkerPool) sendNotificationsForAccount(ctx context.Context, job AlarmJob) {
	subscriptions, err := wp.store.SubscriptionsForAccount(ctx, job.AccountID)
	if err != nil {
		wp.logger.Error("failed to fetch subscriptions", zap.String("account", job.AccountID), zap.Error(err))
		return
	}

	if len(subscriptions) == 0 {
		return
	}

	payload, err := json.Marshal(NewMessage(job.AccountID, job.Event))
	if err != nil {
		wp.logger.Error("failed to encode notification", zap.Error(err))
		return
	}

	wp.logger.Info("sending alarm notifications",
		zap.String("account", job.AccountID),
		zap.String("zone", job.Event.Name),
		zap.Int("subscriptions", len(subscriptions)),
	)
	for _, sub := range subscriptions {
		wp.sendNotification(ctx, sub, payload)
	}
}

// sendNotification sends a single web push notification.
func (wp *WorkerPool) sendNotification(ctx context.Context, sub model.PushSubscription, payload []byte) {
	// Manually construct the webpush.Subscription object
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		wp.logger.Warn("failed to send notification", zap.String("endpoint", sub.Endpoint), zap.Error(err))
		return
	}
	defer resp.Body.Close()

	// Handle expired subscriptions
	if resp.StatusCode == http.StatusGone {
		wp.logger.Info("subscription expired, deleting", zap.String("endpoint", sub.Endpoint))
		if err := wp.store.DeleteSubscriptionByEndpoint(ctx, sub.Endpoint); err != nil {
			wp.logger.Error("failed to delete expired subscription", zap.String("endpoint", sub.Endpoint), zap.Error(err))
		}
	}
}
