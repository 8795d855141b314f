package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"kuyayvault/internal/event"
	"kuyayvault/internal/observability"
	"kuyayvault/internal/vault"
)

// SnapshotSource produces a point-in-time copy of the vault state. Normally
// Controller.CreateSnapshot.
type SnapshotSource func() vault.Snapshot

// Worker drains committed events into Postgres in batches and writes a full
// state snapshot after each successful flush. Recovery loads the latest
// snapshot; the event log is the audit trail, not the recovery source, so
// Publish never blocks an operation: when the channel is full the row is
// dropped and counted, and the next snapshot still carries the state.
type Worker struct {
	db        *sql.DB
	writer    *EventWriter
	snapshots *SnapshotStore
	source    SnapshotSource

	in           chan event.Envelope
	batchSize    int
	flushTimeout time.Duration

	log     zerolog.Logger
	metrics *observability.Metrics
}

func NewWorker(
	db *sql.DB,
	source SnapshotSource,
	batchSize int,
	flushTimeout time.Duration,
	log zerolog.Logger,
	metrics *observability.Metrics,
) *Worker {
	return &Worker{
		db:           db,
		writer:       NewEventWriter(db),
		snapshots:    NewSnapshotStore(db),
		source:       source,
		in:           make(chan event.Envelope, 4096),
		batchSize:    batchSize,
		flushTimeout: flushTimeout,
		log:          log,
		metrics:      metrics,
	}
}

// Publish enqueues a committed event for persistence. Non-blocking; called
// by the controller with the vault lock held.
func (w *Worker) Publish(env event.Envelope) {
	select {
	case w.in <- env:
	default:
		w.log.Error().Int64("sequence", env.Sequence).Msg("persist channel full, event row dropped")
		if w.metrics != nil {
			w.metrics.PersistErrors.WithLabelValues("channel_full").Inc()
		}
	}
}

// Run batches incoming events and flushes when the batch fills or the flush
// timeout expires. Blocks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	batch := make([]EventRow, 0, w.batchSize)

	timer := time.NewTimer(w.flushTimeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			// Graceful shutdown: flush whatever remains with a background
			// context so the final batch is not lost.
			if len(batch) > 0 {
				if err := w.flush(context.Background(), batch); err != nil {
					w.log.Error().Err(err).Msg("final flush failed")
				}
			}
			return ctx.Err()

		case env := <-w.in:
			row, err := RowFromEnvelope(env)
			if err != nil {
				w.log.Error().Err(err).Int64("sequence", env.Sequence).Msg("unmarshalable event payload")
				continue
			}
			batch = append(batch, row)

			if len(batch) >= w.batchSize {
				if err := w.flushWithRetry(ctx, batch); err != nil {
					w.log.Error().Err(err).Msg("batch flush failed after retries")
				}
				batch = batch[:0]
				timer.Reset(w.flushTimeout)
			}

		case <-timer.C:
			if len(batch) > 0 {
				if err := w.flushWithRetry(ctx, batch); err != nil {
					w.log.Error().Err(err).Msg("timeout flush failed after retries")
				}
				batch = batch[:0]
			}
			timer.Reset(w.flushTimeout)
		}
	}
}

// flushWithRetry retries failed flushes with exponential backoff until the
// write succeeds or the context is cancelled.
func (w *Worker) flushWithRetry(ctx context.Context, batch []EventRow) error {
	backoff := 100 * time.Millisecond
	const maxBackoff = 30 * time.Second

	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			w.log.Warn().
				Int("attempt", attempt).
				Dur("backoff", backoff).
				Int("events", len(batch)).
				Msg("persistence retry")
			select {
			case <-ctx.Done():
				// One last attempt with a background context before giving
				// the batch up.
				if err := w.flush(context.Background(), batch); err != nil {
					return fmt.Errorf("final flush on shutdown: %w", err)
				}
				return nil
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}

		if err := w.flush(ctx, batch); err == nil {
			if attempt > 0 {
				w.log.Info().Int("attempts", attempt).Msg("persistence flush recovered")
			}
			return nil
		}

		if w.metrics != nil {
			w.metrics.PersistRetry.Inc()
		}
	}
}

// flush writes the batch transactionally, then saves a state snapshot.
func (w *Worker) flush(ctx context.Context, batch []EventRow) error {
	start := time.Now()

	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		if w.metrics != nil {
			w.metrics.PersistErrors.WithLabelValues("tx_begin").Inc()
		}
		return err
	}
	defer tx.Rollback()

	if err := w.writer.WriteBatch(ctx, tx, batch); err != nil {
		if w.metrics != nil {
			w.metrics.PersistErrors.WithLabelValues("write_events").Inc()
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		if w.metrics != nil {
			w.metrics.PersistErrors.WithLabelValues("tx_commit").Inc()
		}
		return err
	}

	if w.metrics != nil {
		w.metrics.PersistEventsWritten.Add(float64(len(batch)))
		w.metrics.PersistBatchSize.Observe(float64(len(batch)))
		w.metrics.PersistBatchDur.Observe(time.Since(start).Seconds())
		w.metrics.PersistLastSequence.Set(float64(batch[len(batch)-1].Sequence))
	}

	if w.source != nil {
		snap := w.source()
		size, err := w.snapshots.Save(ctx, snap)
		if err != nil {
			if w.metrics != nil {
				w.metrics.PersistErrors.WithLabelValues("snapshot").Inc()
			}
			w.log.Error().Err(err).Int64("sequence", snap.Sequence).Msg("snapshot write failed")
			return nil // the event rows are already durable
		}
		if w.metrics != nil {
			w.metrics.SnapshotTaken.Inc()
			w.metrics.SnapshotSizeBytes.Set(float64(size))
		}
	}

	return nil
}
