package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/facility-booking-api/internal/models"
	"github.com/noah-isme/facility-booking-api/pkg/jobs"
)

const notificationJobType = "booking_notification"

// Notifier delivers a booking outcome to its recipient.
type Notifier interface {
	Notify(ctx context.Context, event models.NotificationEvent) error
}

// LogNotifier writes notifications to the structured log. It stands in for a mail or push gateway.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier builds a LogNotifier.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger}
}

// Notify implements Notifier.
func (n *LogNotifier) Notify(ctx context.Context, event models.NotificationEvent) error {
	n.logger.Info("booking notification",
		zap.String("event_id", event.ID),
		zap.String("type", string(event.Type)),
		zap.String("booking_id", event.BookingID),
		zap.String("recipient_id", event.RecipientID),
		zap.ByteString("payload", event.Payload),
	)
	return nil
}

type outboxStore interface {
	ClaimBatch(ctx context.Context, limit int, now time.Time) ([]models.NotificationEvent, error)
	Release(ctx context.Context, ids []string) error
	MarkDelivered(ctx context.Context, id string, at time.Time) error
	MarkFailed(ctx context.Context, id, reason string, retryAt time.Time, final bool) error
}

// NotificationDispatcherConfig tunes polling and delivery.
type NotificationDispatcherConfig struct {
	PollInterval time.Duration
	BatchSize    int
	Workers      int
	MaxAttempts  int
	MaxBackoff   time.Duration
}

// NotificationDispatcher drains the notification outbox on a worker pool.
// Attempts are persisted on the outbox row, so the in-memory queue never retries.
type NotificationDispatcher struct {
	store    outboxStore
	notifier Notifier
	queue    *jobs.Queue
	cfg      NotificationDispatcherConfig
	metrics  *MetricsService
	logger   *zap.Logger
	now      func() time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewNotificationDispatcher constructs a dispatcher.
func NewNotificationDispatcher(store outboxStore, notifier Notifier, cfg NotificationDispatcherConfig, metrics *MetricsService, logger *zap.Logger) *NotificationDispatcher {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 20
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 10 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &NotificationDispatcher{
		store:    store,
		notifier: notifier,
		cfg:      cfg,
		metrics:  metrics,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
	d.queue = jobs.NewQueue("notifications", d.handleJob, jobs.QueueConfig{
		Workers:    cfg.Workers,
		BufferSize: cfg.BatchSize,
		Logger:     logger,
	})
	return d
}

// Start launches the worker pool and the polling loop.
func (d *NotificationDispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cancel != nil {
		return
	}
	loopCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.done = make(chan struct{})
	d.queue.Start(loopCtx)

	go func() {
		defer close(d.done)
		ticker := time.NewTicker(d.cfg.PollInterval)
		defer ticker.Stop()
		for {
			if _, err := d.RunOnce(loopCtx); err != nil && !errors.Is(err, context.Canceled) {
				d.logger.Warn("notification poll failed", zap.Error(err))
			}
			select {
			case <-loopCtx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
	d.logger.Info("notification dispatcher started", zap.Duration("poll_interval", d.cfg.PollInterval), zap.Int("workers", d.cfg.Workers))
}

// Stop halts polling and waits for in-flight deliveries.
func (d *NotificationDispatcher) Stop() {
	d.mu.Lock()
	cancel, done := d.cancel, d.done
	d.cancel = nil
	d.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
	d.queue.Stop()

	var unsent []models.NotificationEvent
	for _, job := range d.queue.Pending() {
		if event, ok := job.Payload.(models.NotificationEvent); ok {
			unsent = append(unsent, event)
		}
	}
	if len(unsent) > 0 {
		d.release(unsent)
	}
}

// RunOnce claims one batch of due events and hands them to the worker pool. It returns the number enqueued.
func (d *NotificationDispatcher) RunOnce(ctx context.Context) (int, error) {
	events, err := d.store.ClaimBatch(ctx, d.cfg.BatchSize, d.now())
	if err != nil {
		return 0, err
	}
	for i, event := range events {
		job := jobs.Job{ID: event.ID, Type: notificationJobType, Payload: event}
		if err := d.queue.EnqueueContext(ctx, job); err != nil {
			d.release(events[i:])
			return i, err
		}
	}
	return len(events), nil
}

// release hands claimed but never enqueued events back to the outbox.
func (d *NotificationDispatcher) release(events []models.NotificationEvent) {
	ids := make([]string, 0, len(events))
	for _, event := range events {
		ids = append(ids, event.ID)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := d.store.Release(ctx, ids); err != nil {
		d.logger.Error("release notifications failed", zap.Strings("event_ids", ids), zap.Error(err))
	}
}

func (d *NotificationDispatcher) handleJob(ctx context.Context, job jobs.Job) error {
	event, ok := job.Payload.(models.NotificationEvent)
	if !ok {
		d.logger.Error("unexpected notification payload", zap.String("job_id", job.ID))
		return nil
	}
	return d.Deliver(ctx, event)
}

// Deliver sends one event and records the outcome on its outbox row.
func (d *NotificationDispatcher) Deliver(ctx context.Context, event models.NotificationEvent) error {
	now := d.now()
	sendErr := d.notifier.Notify(ctx, event)
	// Outcomes are recorded even when the worker is shutting down.
	storeCtx := context.WithoutCancel(ctx)
	if sendErr == nil {
		d.metrics.RecordNotification("delivered")
		if err := d.store.MarkDelivered(storeCtx, event.ID, now); err != nil {
			// The row stays dispatching and is not sent again.
			d.logger.Error("record notification delivery failed", zap.String("event_id", event.ID), zap.String("booking_id", event.BookingID), zap.Error(err))
			return err
		}
		return nil
	}

	attempts := event.Attempts + 1
	final := attempts >= d.cfg.MaxAttempts
	retryAt := now.Add(d.backoff(attempts))
	if final {
		d.metrics.RecordNotification("failed")
		d.logger.Error("notification abandoned", zap.String("event_id", event.ID), zap.String("booking_id", event.BookingID), zap.Int("attempts", attempts), zap.Error(sendErr))
	} else {
		d.metrics.RecordNotification("retry")
		d.logger.Warn("notification delivery failed", zap.String("event_id", event.ID), zap.String("booking_id", event.BookingID), zap.Int("attempts", attempts), zap.Time("retry_at", retryAt), zap.Error(sendErr))
	}
	return d.store.MarkFailed(storeCtx, event.ID, sendErr.Error(), retryAt, final)
}

func (d *NotificationDispatcher) backoff(attempts int) time.Duration {
	delay := d.cfg.PollInterval
	for i := 1; i < attempts; i++ {
		delay *= 2
		if delay >= d.cfg.MaxBackoff {
			return d.cfg.MaxBackoff
		}
	}
	return delay
}
