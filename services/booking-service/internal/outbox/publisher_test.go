package outbox

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/md-rashed-zaman/staffbook/libs/kafkax"
	"github.com/segmentio/kafka-go"
)

type fakeSource struct {
	pending   []Event
	published []Event
}

func (f *fakeSource) PublishBatch(ctx context.Context, limit int, fn func(context.Context, []Event) error) (int, error) {
	n := min(limit, len(f.pending))
	if n == 0 {
		return 0, nil
	}
	batch := f.pending[:n]
	if err := fn(ctx, batch); err != nil {
		return 0, err
	}
	f.published = append(f.published, batch...)
	f.pending = f.pending[n:]
	return n, nil
}

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func testEvent(t *testing.T, id, aggregateID string) Event {
	t.Helper()
	evt, err := NewEvent(context.Background(), id, AggregateAppointment, aggregateID, EventAppointmentBooked, AppointmentBooked{AppointmentID: aggregateID})
	if err != nil {
		t.Fatalf("NewEvent: %v", err)
	}
	return evt
}

func TestPublishOnceBatchesAndMaps(t *testing.T) {
	src := &fakeSource{pending: []Event{testEvent(t, "e1", "a1"), testEvent(t, "e2", "a2"), testEvent(t, "e3", "a1")}}
	w := &fakeWriter{}
	p := NewPublisher(src, w, slog.New(slog.NewTextHandler(io.Discard, nil)), PublisherConfig{BatchSize: 2})

	n, err := p.PublishOnce(context.Background())
	if err != nil || n != 2 {
		t.Fatalf("first batch: n=%d err=%v", n, err)
	}
	n, err = p.PublishOnce(context.Background())
	if err != nil || n != 1 {
		t.Fatalf("second batch: n=%d err=%v", n, err)
	}

	if len(w.msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(w.msgs))
	}
	m := w.msgs[0]
	if m.Topic != EventAppointmentBooked || string(m.Key) != "a1" {
		t.Fatalf("unexpected message %+v", m)
	}
	if got := kafkax.HeaderValue(m.Headers, kafkax.HeaderEventID); got != "e1" {
		t.Fatalf("expected event id header e1, got %q", got)
	}
	if got := kafkax.HeaderValue(m.Headers, kafkax.HeaderAggregateType); got != AggregateAppointment {
		t.Fatalf("unexpected aggregate type header %q", got)
	}
}

func TestPublishOnceWriterFailureKeepsEvents(t *testing.T) {
	src := &fakeSource{pending: []Event{testEvent(t, "e1", "a1")}}
	w := &fakeWriter{err: errors.New("broker down")}
	p := NewPublisher(src, w, slog.New(slog.NewTextHandler(io.Discard, nil)), PublisherConfig{})

	if _, err := p.PublishOnce(context.Background()); err == nil {
		t.Fatal("expected writer error")
	}
	if len(src.pending) != 1 || len(src.published) != 0 {
		t.Fatalf("failed batch must stay pending: %+v", src)
	}
}

func TestRunWithoutWriterReturns(t *testing.T) {
	p := NewPublisher(&fakeSource{}, nil, slog.New(slog.NewTextHandler(io.Discard, nil)), PublisherConfig{})
	p.Run(context.Background())
}
