package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/climateguardian/guardian/internal/models"
)

type fakeSink struct {
	name     string
	mu       sync.Mutex
	failures int
	err      error
	got      []uint64
}

func (s *fakeSink) Name() string { return s.name }

func (s *fakeSink) Deliver(_ context.Context, events []models.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	if s.failures > 0 {
		s.failures--
		return NewRetryableError(errors.New("connection reset"))
	}
	for _, e := range events {
		s.got = append(s.got, e.Seq)
	}
	return nil
}

func (s *fakeSink) seqs() []uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]uint64(nil), s.got...)
}

type countingObserver struct {
	mu      sync.Mutex
	results map[string][]bool
}

func (o *countingObserver) ObserveDelivery(sink string, ok bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.results == nil {
		o.results = make(map[string][]bool)
	}
	o.results[sink] = append(o.results[sink], ok)
}

type memoryActivity struct {
	mu   sync.Mutex
	logs []models.ActivityLog
}

func (m *memoryActivity) Log(_ context.Context, log models.ActivityLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs = append(m.logs, log)
	return nil
}

func (m *memoryActivity) List(context.Context, int, models.ActivityType, string) ([]models.ActivityLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.ActivityLog(nil), m.logs...), nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func batch(seqs ...uint64) []models.Event {
	events := make([]models.Event, len(seqs))
	for i, seq := range seqs {
		events[i] = models.Event{Seq: seq, Type: models.EventAlertIssued}
	}
	return events
}

func TestBusDeliversInOrder(t *testing.T) {
	first := &fakeSink{name: "first"}
	second := &fakeSink{name: "second", failures: 2}
	observer := &countingObserver{}

	bus := NewBus(discardLogger(),
		WithSink(first),
		WithSink(second),
		WithObserver(observer),
		WithRetryPolicy(fastPolicy()),
	)
	bus.Start(context.Background())

	for _, b := range [][]models.Event{batch(1, 2), batch(3), batch(4, 5, 6)} {
		if err := bus.Publish(context.Background(), b); err != nil {
			t.Fatalf("Publish: %v", err)
		}
	}
	bus.Close()

	want := []uint64{1, 2, 3, 4, 5, 6}
	for _, sink := range []*fakeSink{first, second} {
		got := sink.seqs()
		if len(got) != len(want) {
			t.Fatalf("%s: expected %v, got %v", sink.name, want, got)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("%s: expected %v, got %v", sink.name, want, got)
			}
		}
	}

	if n := len(observer.results["second"]); n != 3 {
		t.Fatalf("expected 3 observed deliveries for second sink, got %d", n)
	}
	for _, ok := range observer.results["second"] {
		if !ok {
			t.Fatal("expected retried delivery to succeed")
		}
	}
}

func TestBusRecordsFailures(t *testing.T) {
	broken := &fakeSink{name: "broken", err: errors.New("schema mismatch")}
	activity := &memoryActivity{}
	observer := &countingObserver{}

	bus := NewBus(discardLogger(),
		WithSink(broken),
		WithObserver(observer),
		WithActivityLog(activity),
		WithRetryPolicy(fastPolicy()),
	)
	bus.Start(context.Background())
	if err := bus.Publish(context.Background(), batch(7, 8)); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	bus.Close()

	if got := observer.results["broken"]; len(got) != 1 || got[0] {
		t.Fatalf("expected one failed delivery, got %v", got)
	}
	logs, _ := activity.List(context.Background(), 0, "", "")
	if len(logs) != 1 {
		t.Fatalf("expected one activity entry, got %d", len(logs))
	}
	if logs[0].ActivityType != models.ActivityTypeDelivery || logs[0].Source != "broken" {
		t.Fatalf("unexpected activity entry %+v", logs[0])
	}
	if logs[0].EventSeq == nil || *logs[0].EventSeq != 8 {
		t.Fatalf("expected last seq 8, got %v", logs[0].EventSeq)
	}
}

func TestBusQueueFull(t *testing.T) {
	bus := NewBus(discardLogger(), WithQueueSize(1))

	if err := bus.Publish(context.Background(), batch(1)); err != nil {
		t.Fatalf("first Publish: %v", err)
	}
	if err := bus.Publish(context.Background(), batch(2)); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
}

func TestBusPublishAfterClose(t *testing.T) {
	bus := NewBus(discardLogger())
	bus.Start(context.Background())
	bus.Close()
	bus.Close()

	if err := bus.Publish(context.Background(), batch(1)); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestBusCopiesBatch(t *testing.T) {
	sink := &fakeSink{name: "copy"}
	bus := NewBus(discardLogger(), WithSink(sink))

	events := batch(1)
	if err := bus.Publish(context.Background(), events); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	events[0].Seq = 99

	bus.Start(context.Background())
	bus.Close()

	if got := sink.seqs(); len(got) != 1 || got[0] != 1 {
		t.Fatalf("expected the published copy to be delivered, got %v", got)
	}
}

func TestLogSink(t *testing.T) {
	sink := NewLogSink(discardLogger())
	if sink.Name() != "log" {
		t.Fatalf("unexpected name %q", sink.Name())
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := sink.Deliver(ctx, batch(1, 2)); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
}

func TestBusAddSink(t *testing.T) {
	late := &fakeSink{name: "late"}
	bus := NewBus(discardLogger())
	bus.AddSink(late)
	bus.Start(context.Background())

	if err := bus.Publish(context.Background(), batch(7)); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	bus.Close()

	if got := late.seqs(); len(got) != 1 || got[0] != 7 {
		t.Fatalf("expected [7], got %v", got)
	}
}
