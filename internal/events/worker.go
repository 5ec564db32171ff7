package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/punchamoorthee/creatorpay/internal/store"
)

var outboxEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "creatorpay_outbox_events_total",
	Help: "Outbox records processed by the publisher loop, labeled by outcome",
}, []string{"outcome"})

// OutboxWorker publishes committed outbox records. Delivery is at least once:
// a crash between publish and mark republishes the record.
type OutboxWorker struct {
	logger     *slog.Logger
	outbox     store.OutboxStore
	publisher  Publisher
	interval   time.Duration
	batchSize  int
	maxRetries int
	now        func() time.Time
}

func NewOutboxWorker(logger *slog.Logger, outbox store.OutboxStore, publisher Publisher, interval time.Duration, batchSize, maxRetries int) *OutboxWorker {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	if maxRetries <= 0 {
		maxRetries = 5
	}
	return &OutboxWorker{
		logger:     logger,
		outbox:     outbox,
		publisher:  publisher,
		interval:   interval,
		batchSize:  batchSize,
		maxRetries: maxRetries,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Run executes the publish loop until ctx is cancelled.
func (w *OutboxWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		if err := w.ProcessOnce(ctx); err != nil {
			w.logger.ErrorContext(ctx, "outbox iteration failed",
				"module", "events.outbox_worker",
				"layer", "adapter",
				"operation", "outbox_process_once",
				"error", err,
			)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (w *OutboxWorker) ProcessOnce(ctx context.Context) error {
	records, err := w.outbox.ListPending(ctx, w.batchSize)
	if err != nil {
		return err
	}

	published, failed, deadLettered := 0, 0, 0
	for _, rec := range records {
		if err := w.publisher.Publish(ctx, rec.EventType, rec.PartitionKey, rec.Payload); err != nil {
			failed++
			dead := rec.Attempts+1 >= w.maxRetries
			if dead {
				deadLettered++
				outboxEventsTotal.WithLabelValues("dead_lettered").Inc()
			} else {
				outboxEventsTotal.WithLabelValues("failed").Inc()
			}
			w.logger.WarnContext(ctx, "outbox publish failed",
				"module", "events.outbox_worker",
				"layer", "adapter",
				"operation", "publish_event",
				"outbox_id", rec.ID,
				"event_type", rec.EventType,
				"retry_count", rec.Attempts+1,
				"dead_lettered", dead,
				"error", err,
			)
			if markErr := w.outbox.MarkFailed(ctx, rec.ID, err.Error(), dead); markErr != nil {
				return markErr
			}
			continue
		}
		if err := w.outbox.MarkPublished(ctx, rec.ID, w.now()); err != nil {
			return err
		}
		published++
		outboxEventsTotal.WithLabelValues("published").Inc()
	}

	if len(records) > 0 {
		w.logger.InfoContext(ctx, "outbox batch processed",
			"module", "events.outbox_worker",
			"layer", "adapter",
			"batch_size", len(records),
			"published_count", published,
			"failed_count", failed,
			"dead_lettered_count", deadLettered,
		)
	}
	return nil
}
