package lazytl

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

const (
	// DefaultWriteQueueSize is the number of pending write batches buffered
	// before new batches are dropped.
	DefaultWriteQueueSize = 256
	// DefaultWriteTimeout bounds a single background store write.
	DefaultWriteTimeout = 10 * time.Second
)

// ErrWriterClosed is returned by Flush after Close.
var ErrWriterClosed = errors.New("cache writer is closed")

// writeJob is either a batch of entries or a flush marker.
type writeJob struct {
	entries []CacheEntry
	flushed chan struct{}
}

// Writer persists cache entries in the background so translation callers
// never wait on the store. A single goroutine consumes the queue; write
// failures are logged and dropped.
type Writer struct {
	store   Store
	logger  *slog.Logger
	timeout time.Duration

	mu     sync.RWMutex
	queue  chan writeJob
	closed bool
	done   chan struct{}
}

// NewWriter starts a background writer for store. Non-positive sizes and
// timeouts select the defaults.
func NewWriter(store Store, logger *slog.Logger, queueSize int, timeout time.Duration) *Writer {
	if queueSize <= 0 {
		queueSize = DefaultWriteQueueSize
	}
	if timeout <= 0 {
		timeout = DefaultWriteTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	w := &Writer{
		store:   store,
		logger:  logger,
		timeout: timeout,
		queue:   make(chan writeJob, queueSize),
		done:    make(chan struct{}),
	}
	go w.run()
	return w
}

// Enqueue schedules entries for writing and returns immediately. It reports
// false when the batch was dropped because the queue is full or closed.
func (w *Writer) Enqueue(entries []CacheEntry) bool {
	if len(entries) == 0 {
		return true
	}

	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.closed {
		return false
	}

	select {
	case w.queue <- writeJob{entries: entries}:
		return true
	default:
		w.logger.Warn("cache write queue full, dropping entries",
			"component", "cache",
			"entries", len(entries),
			"locale", string(entries[0].TargetLocale),
		)
		return false
	}
}

// Flush blocks until every batch enqueued before the call has been written
// or ctx is done.
func (w *Writer) Flush(ctx context.Context) error {
	marker := writeJob{flushed: make(chan struct{})}

	w.mu.RLock()
	if w.closed {
		w.mu.RUnlock()
		return ErrWriterClosed
	}
	select {
	case w.queue <- marker:
		w.mu.RUnlock()
	case <-ctx.Done():
		w.mu.RUnlock()
		return ctx.Err()
	}

	select {
	case <-marker.flushed:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting entries and waits for queued writes to finish or
// for ctx to be done. Calling Close more than once is safe.
func (w *Writer) Close(ctx context.Context) error {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.queue)
	}
	w.mu.Unlock()

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Writer) run() {
	defer close(w.done)
	for job := range w.queue {
		if job.flushed != nil {
			close(job.flushed)
			continue
		}
		w.write(job.entries)
	}
}

// write runs detached from any request context so a finished request does
// not cancel its own cache write.
func (w *Writer) write(entries []CacheEntry) {
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()

	if err := w.store.UpsertMany(ctx, entries); err != nil {
		w.logger.Error("cache write failed",
			"component", "cache",
			"entries", len(entries),
			"locale", string(entries[0].TargetLocale),
			"error", &CacheError{Op: "upsert", Keys: len(entries), Cause: err},
		)
	}
}
