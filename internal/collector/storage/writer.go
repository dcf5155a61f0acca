package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/brightpath/pulse/internal/logger"
)

const (
	// eventColumnsPerRow is the number of columns inserted per event row.
	eventColumnsPerRow = 8

	// insertBatchSize is the maximum number of rows per INSERT statement.
	insertBatchSize = 50

	// flushTimeout is the context timeout for each flush operation.
	flushTimeout = 5 * time.Second
)

// EventWriter drains the event buffer and batch-inserts interaction events
// into PostgreSQL. Events are append-only and losing a batch on write
// failure is accepted; the failure is logged and the batch discarded.
type EventWriter struct {
	db             *sql.DB
	buffer         *EventBuffer
	log            logger.Logger
	flushInterval  time.Duration
	flushThreshold int
	wg             sync.WaitGroup
}

// NewEventWriter creates a writer that reads events from buffer and
// batch-inserts them.
func NewEventWriter(
	db *sql.DB,
	buffer *EventBuffer,
	log logger.Logger,
	flushInterval time.Duration,
	flushThreshold int,
) *EventWriter {
	return &EventWriter{
		db:             db,
		buffer:         buffer,
		log:            log,
		flushInterval:  flushInterval,
		flushThreshold: flushThreshold,
	}
}

// Start launches the background goroutine that reads events and flushes
// batches.
func (w *EventWriter) Start() {
	w.wg.Add(1)
	go w.flushLoop()
}

// Stop signals the buffer to close and waits for the flush goroutine to
// finish.
func (w *EventWriter) Stop() {
	w.buffer.Close()
	w.wg.Wait()
}

// flushLoop accumulates a batch and flushes when it reaches flushThreshold
// or the flushInterval ticker fires.
func (w *EventWriter) flushLoop() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.flushInterval)
	defer ticker.Stop()

	batch := make([]InteractionEvent, 0, w.flushThreshold)

	for {
		select {
		case event := <-w.buffer.events:
			batch = append(batch, event)
			if len(batch) >= w.flushThreshold {
				w.flush(batch)
				batch = make([]InteractionEvent, 0, w.flushThreshold)
			}

		case <-ticker.C:
			if len(batch) > 0 {
				w.flush(batch)
				batch = make([]InteractionEvent, 0, w.flushThreshold)
			}

		case <-w.buffer.closed:
			w.drain(&batch)
			if len(batch) > 0 {
				w.flush(batch)
			}
			return
		}
	}
}

// drain reads all remaining events from the buffer channel into the batch.
func (w *EventWriter) drain(batch *[]InteractionEvent) {
	for {
		select {
		case event := <-w.buffer.events:
			*batch = append(*batch, event)
		default:
			return
		}
	}
}

// flush writes a batch of events to PostgreSQL in chunks of insertBatchSize.
func (w *EventWriter) flush(batch []InteractionEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()

	for start := 0; start < len(batch); start += insertBatchSize {
		end := start + insertBatchSize
		if end > len(batch) {
			end = len(batch)
		}

		if err := w.batchInsert(ctx, batch[start:end]); err != nil {
			w.log.Error("Failed to insert interaction events",
				logger.Error(err),
				logger.Int("batch_size", end-start),
			)
		}
	}

	w.log.Debug("Flushed interaction events",
		logger.Int("total", len(batch)),
	)
}

// batchInsert builds and executes a single INSERT with multiple value
// tuples.
func (w *EventWriter) batchInsert(ctx context.Context, events []InteractionEvent) error {
	if len(events) == 0 {
		return nil
	}

	args := make([]any, 0, len(events)*eventColumnsPerRow)
	var sb strings.Builder

	sb.WriteString("INSERT INTO interaction_events (id, session_id, visitor_id, path, " +
		"event_type, element_id, element_label, metadata) VALUES ")

	for i := range events {
		if i > 0 {
			sb.WriteString(", ")
		}

		writeEventTuple(&sb, i)

		args = append(args,
			events[i].ID, events[i].SessionID, events[i].VisitorID, events[i].Path,
			events[i].EventType, events[i].ElementID, events[i].ElementLabel,
			events[i].Metadata,
		)
	}

	if _, err := w.db.ExecContext(ctx, sb.String(), args...); err != nil {
		return fmt.Errorf("exec batch insert: %w", err)
	}

	return nil
}

// writeEventTuple writes a single ($1, ..., $8) placeholder tuple offset by
// the row index.
func writeEventTuple(sb *strings.Builder, rowIndex int) {
	base := rowIndex * eventColumnsPerRow
	fmt.Fprintf(sb, "($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
		base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8,
	)
}
