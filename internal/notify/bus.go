// Package notify delivers committed ledger events to downstream sinks.
// The ledger publishes under its writer lock, so Bus.Publish only enqueues;
// a single worker delivers batches in commit order with retry and backoff.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/climateguardian/guardian/internal/models"
)

// ErrQueueFull is returned by Publish when the delivery queue is saturated.
var ErrQueueFull = errors.New("notify: delivery queue full")

// ErrClosed is returned by Publish after Close.
var ErrClosed = errors.New("notify: bus closed")

// Sink receives batches of committed events. Transient failures should be
// wrapped with NewRetryableError.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, events []models.Event) error
}

// DeliveryObserver records the outcome of each sink delivery.
type DeliveryObserver interface {
	ObserveDelivery(sink string, ok bool)
}

// Bus fans committed events out to its sinks.
type Bus struct {
	queue    chan []models.Event
	sinks    []Sink
	policy   RetryPolicy
	observer DeliveryObserver
	activity models.ActivityLogRepository
	logger   *slog.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// BusOption customises a Bus.
type BusOption func(*Bus)

// WithSink adds a delivery target.
func WithSink(s Sink) BusOption {
	return func(b *Bus) { b.sinks = append(b.sinks, s) }
}

// WithQueueSize sets how many batches may wait for delivery.
func WithQueueSize(n int) BusOption {
	return func(b *Bus) {
		if n > 0 {
			b.queue = make(chan []models.Event, n)
		}
	}
}

// WithRetryPolicy overrides DefaultRetryPolicy.
func WithRetryPolicy(p RetryPolicy) BusOption {
	return func(b *Bus) { b.policy = p }
}

// WithObserver sets the delivery metrics observer.
func WithObserver(o DeliveryObserver) BusOption {
	return func(b *Bus) { b.observer = o }
}

// WithActivityLog records failed deliveries in repo.
func WithActivityLog(repo models.ActivityLogRepository) BusOption {
	return func(b *Bus) { b.activity = repo }
}

// NewBus creates a bus. Call Start to begin delivering.
func NewBus(logger *slog.Logger, opts ...BusOption) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	b := &Bus{
		queue:  make(chan []models.Event, 256),
		policy: DefaultRetryPolicy(),
		logger: logger.With(slog.String("component", "notify")),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// AddSink registers s after construction. It must be called before Start.
func (b *Bus) AddSink(s Sink) {
	b.sinks = append(b.sinks, s)
}

// Publish enqueues a copy of events without blocking.
func (b *Bus) Publish(_ context.Context, events []models.Event) error {
	if len(events) == 0 {
		return nil
	}
	batch := make([]models.Event, len(events))
	copy(batch, events)

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrClosed
	}
	select {
	case b.queue <- batch:
		return nil
	default:
		return fmt.Errorf("%w: dropping %d events from seq %d", ErrQueueFull, len(batch), batch[0].Seq)
	}
}

// Start launches the delivery worker. Cancelling ctx aborts pending retries;
// Close drains what is already queued.
func (b *Bus) Start(ctx context.Context) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for batch := range b.queue {
			b.deliver(ctx, batch)
		}
	}()
}

// Close stops accepting events and waits for queued batches to be handled.
func (b *Bus) Close() {
	b.mu.Lock()
	if !b.closed {
		b.closed = true
		close(b.queue)
	}
	b.mu.Unlock()
	b.wg.Wait()
}

func (b *Bus) deliver(ctx context.Context, batch []models.Event) {
	for _, sink := range b.sinks {
		start := time.Now()
		err := Retry(ctx, b.policy, func(ctx context.Context) error {
			return sink.Deliver(ctx, batch)
		})
		if b.observer != nil {
			b.observer.ObserveDelivery(sink.Name(), err == nil)
		}
		if err == nil {
			continue
		}

		last := batch[len(batch)-1].Seq
		b.logger.Error("event delivery failed",
			slog.String("sink", sink.Name()),
			slog.Uint64("first_seq", batch[0].Seq),
			slog.Uint64("last_seq", last),
			slog.String("error", err.Error()),
		)
		b.recordFailure(ctx, sink.Name(), batch, time.Since(start), err)
	}
}

func (b *Bus) recordFailure(ctx context.Context, sink string, batch []models.Event, elapsed time.Duration, cause error) {
	if b.activity == nil {
		return
	}
	last := batch[len(batch)-1].Seq
	ms := int(elapsed.Milliseconds())
	entry := models.ActivityLog{
		ActivityType: models.ActivityTypeDelivery,
		Source:       sink,
		Message:      fmt.Sprintf("failed to deliver %d events", len(batch)),
		Details: map[string]interface{}{
			"first_seq": batch[0].Seq,
			"error":     cause.Error(),
		},
		EventSeq:   &last,
		DurationMs: &ms,
	}
	if err := b.activity.Log(context.WithoutCancel(ctx), entry); err != nil {
		b.logger.Warn("failed to record delivery failure", slog.String("error", err.Error()))
	}
}

// LogSink writes every event to the structured log.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a sink that logs events at Info.
func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// Name implements Sink.
func (s *LogSink) Name() string { return "log" }

// Deliver implements Sink.
func (s *LogSink) Deliver(ctx context.Context, events []models.Event) error {
	for _, e := range events {
		s.logger.InfoContext(ctx, "ledger event",
			slog.Uint64("seq", e.Seq),
			slog.String("type", string(e.Type)),
			slog.String("actor", e.Actor.Hex()),
			slog.String("hash", e.Hash.Hex()),
		)
	}
	return nil
}
