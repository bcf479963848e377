package persistence

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"BullionLedger/internal/event"
	"BullionLedger/internal/observability"
)

// EventPersistWorker drains the staging channel and batch-writes event
// rows to Postgres. It batches until the batch is full or the flush
// timeout expires, and retries failed flushes with exponential backoff
// rather than dropping rows.
type EventPersistWorker struct {
	log          *EventLog
	input        <-chan event.Event
	batchSize    int
	flushTimeout time.Duration
	logger       zerolog.Logger
	metrics      *observability.Metrics
}

func NewEventPersistWorker(
	eventLog *EventLog,
	input <-chan event.Event,
	batchSize int,
	flushTimeout time.Duration,
	logger zerolog.Logger,
	metrics *observability.Metrics,
) *EventPersistWorker {
	return &EventPersistWorker{
		log:          eventLog,
		input:        input,
		batchSize:    batchSize,
		flushTimeout: flushTimeout,
		logger:       logger,
		metrics:      metrics,
	}
}

// Run blocks until ctx is cancelled or the input channel closes,
// flushing any remainder on the way out.
func (w *EventPersistWorker) Run(ctx context.Context) error {
	batch := make([]EventRow, 0, w.batchSize)

	timer := time.NewTimer(w.flushTimeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			if len(batch) > 0 {
				if err := w.flush(context.Background(), batch); err != nil {
					w.logger.Error().Err(err).Msg("final event flush failed")
				}
			}
			return ctx.Err()

		case e, ok := <-w.input:
			if !ok {
				if len(batch) > 0 {
					if err := w.flush(context.Background(), batch); err != nil {
						w.logger.Error().Err(err).Msg("final event flush failed")
					}
				}
				return nil
			}

			row, err := ToRow(e)
			if err != nil {
				w.logger.Error().Err(err).Msg("event row conversion failed, skipping")
				continue
			}
			batch = append(batch, row)

			if len(batch) >= w.batchSize {
				w.flushWithRetry(ctx, batch)
				batch = batch[:0]
				timer.Reset(w.flushTimeout)
			}

		case <-timer.C:
			if len(batch) > 0 {
				w.flushWithRetry(ctx, batch)
				batch = batch[:0]
			}
			timer.Reset(w.flushTimeout)
		}
	}
}

func (w *EventPersistWorker) flushWithRetry(ctx context.Context, batch []EventRow) {
	backoff := 100 * time.Millisecond
	const maxBackoff = 30 * time.Second

	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			w.logger.Warn().
				Int("attempt", attempt).
				Dur("backoff", backoff).
				Int("rows", len(batch)).
				Msg("event persist retry")
			if w.metrics != nil {
				w.metrics.PersistRetry.Inc()
			}

			select {
			case <-ctx.Done():
				// One last try with a fresh context so shutdown does
				// not lose the batch.
				if err := w.flush(context.Background(), batch); err != nil {
					w.logger.Error().Err(err).Msg("event flush on shutdown failed")
				}
				return
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}

		if err := w.flush(ctx, batch); err == nil {
			return
		}
	}
}

func (w *EventPersistWorker) flush(ctx context.Context, batch []EventRow) error {
	start := time.Now()

	if err := w.log.WriteBatch(ctx, batch); err != nil {
		if w.metrics != nil {
			w.metrics.PersistErrors.WithLabelValues("write_events").Inc()
		}
		return err
	}

	if w.metrics != nil {
		w.metrics.PersistBatchDur.Observe(time.Since(start).Seconds())
		w.metrics.PersistBatchSize.Observe(float64(len(batch)))
		w.metrics.PersistEventsWritten.Add(float64(len(batch)))
	}
	return nil
}
