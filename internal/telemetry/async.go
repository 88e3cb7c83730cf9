package telemetry

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

var (
	// ErrSinkFull is returned when an AsyncSink drops a record because its buffer is full.
	ErrSinkFull = errors.New("telemetry: operation sink buffer full")
	// ErrSinkClosed is returned for records offered after Close.
	ErrSinkClosed = errors.New("telemetry: operation sink closed")
)

// AsyncSinkOptions configures NewAsyncSink.
type AsyncSinkOptions struct {
	// Buffer is the number of records held while the writer is busy.
	Buffer int
	// Timeout bounds each write to the wrapped sink.
	Timeout time.Duration
}

type operationRecord struct {
	operation string
	outcome   string
	latency   time.Duration
}

// AsyncSink hands finished operations to a single background writer, so
// recording never waits on the wrapped sink. Records that do not fit in the
// buffer are dropped.
type AsyncSink struct {
	sink    Sink
	timeout time.Duration
	records chan operationRecord
	done    chan struct{}

	mu      sync.RWMutex
	closed  bool
	dropped atomic.Int64
}

// NewAsyncSink starts the background writer for sink. Call Close to drain it.
func NewAsyncSink(sink Sink, opts AsyncSinkOptions) *AsyncSink {
	if opts.Buffer <= 0 {
		opts.Buffer = 256
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	s := &AsyncSink{
		sink:    sink,
		timeout: opts.Timeout,
		records: make(chan operationRecord, opts.Buffer),
		done:    make(chan struct{}),
	}
	go s.run()
	return s
}

// RecordOperation queues the record without blocking.
func (s *AsyncSink) RecordOperation(_ context.Context, operation, outcome string, latency time.Duration) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrSinkClosed
	}

	select {
	case s.records <- operationRecord{operation: operation, outcome: outcome, latency: latency}:
		return nil
	default:
		s.dropped.Add(1)
		return ErrSinkFull
	}
}

// Dropped reports how many records were discarded because the buffer was full.
func (s *AsyncSink) Dropped() int64 {
	return s.dropped.Load()
}

// Close stops accepting records and waits until the queued ones are written.
func (s *AsyncSink) Close() {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.records)
	}
	s.mu.Unlock()
	<-s.done
}

func (s *AsyncSink) run() {
	defer close(s.done)
	for r := range s.records {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		if err := s.sink.RecordOperation(ctx, r.operation, r.outcome, r.latency); err != nil {
			slog.Warn("failed to record operation metric", "operation", r.operation, "error", err)
		}
		cancel()
	}
}
