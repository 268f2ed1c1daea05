package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ariefcatur/go-apparel-checkout/internal/orders"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
)

type fakeWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

func TestProducerFlushesOnClose(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w, 8, nil)
	p.Start()

	for _, topic := range []string{"a", "b", "c"} {
		if err := p.Publish(topic, []byte("k"), []byte(topic)); err != nil {
			t.Fatalf("publish: %v", err)
		}
	}
	p.Close()
	p.WaitClosed()

	if len(w.msgs) != 3 || !w.closed {
		t.Fatalf("expected 3 flushed messages and a closed writer, got %d closed=%t", len(w.msgs), w.closed)
	}
	if w.msgs[1].Topic != "b" {
		t.Errorf("topic must travel with the message, got %q", w.msgs[1].Topic)
	}
	if err := p.Publish("a", nil, nil); !errors.Is(err, ErrProducerClosed) {
		t.Errorf("expected closed error, got %v", err)
	}
	p.Close() // second close is a no-op
}

func TestProducerBufferFull(t *testing.T) {
	p := newProducer(&fakeWriter{}, 1, nil)
	// not started: nothing drains the inbox
	if err := p.Publish("a", nil, nil); err != nil {
		t.Fatalf("first publish: %v", err)
	}
	if err := p.Publish("a", nil, nil); !errors.Is(err, ErrBufferFull) {
		t.Fatalf("expected buffer full, got %v", err)
	}
}

type fakeReader struct {
	mu        sync.Mutex
	queue     []kafka.Message
	committed []int64
	closed    bool
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	for {
		r.mu.Lock()
		if len(r.queue) > 0 {
			m := r.queue[0]
			r.queue = r.queue[1:]
			r.mu.Unlock()
			return m, nil
		}
		r.mu.Unlock()
		select {
		case <-ctx.Done():
			return kafka.Message{}, ctx.Err()
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func TestConsumerCommitsOnlySuccess(t *testing.T) {
	r := &fakeReader{}
	for i := int64(0); i < 4; i++ {
		r.queue = append(r.queue, kafka.Message{Offset: i})
	}
	c := newConsumer(r, 2, nil)
	c.backoff = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	var (
		mu   sync.Mutex
		seen int
	)
	done := make(chan error, 1)
	go func() {
		done <- c.Start(ctx, func(_ context.Context, m kafka.Message) error {
			mu.Lock()
			seen++
			n := seen
			mu.Unlock()
			if n == 4 {
				cancel()
			}
			if m.Offset == 2 {
				return errors.New("boom")
			}
			return nil
		})
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected clean shutdown, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not stop")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.closed {
		t.Error("reader must be closed")
	}
	for _, off := range r.committed {
		if off == 2 {
			t.Error("failed message must not be committed")
		}
	}
}

func TestConsumerRetriesTransientFailure(t *testing.T) {
	r := &fakeReader{queue: []kafka.Message{{Offset: 7}}}
	c := newConsumer(r, 1, nil)
	c.backoff = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	calls := 0
	done := make(chan error, 1)
	go func() {
		done <- c.Start(ctx, func(_ context.Context, m kafka.Message) error {
			calls++
			if calls == 1 {
				return errors.New("db down")
			}
			cancel()
			return nil
		})
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not stop")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if calls != 2 || len(r.committed) != 1 || r.committed[0] != 7 {
		t.Fatalf("expected one retry then a commit, got calls=%d committed=%v", calls, r.committed)
	}
}

func TestOrderEventsEmit(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w, 8, nil)
	p.Start()
	ev := &OrderEvents{Producer: p, Service: "checkout-api"}

	o := &orders.Order{
		ID:            "ord-1",
		UserID:        "alice",
		PaymentMethod: orders.MethodCOD,
		Status:        orders.StatusCanceled,
		Amount:        decimal.NewFromInt(35),
	}
	if err := ev.Emit(context.Background(), orders.EventOrderCanceled, o); err != nil {
		t.Fatalf("emit: %v", err)
	}
	if err := ev.Emit(context.Background(), "Unknown", o); err == nil {
		t.Error("unknown event types must be rejected")
	}
	p.Close()
	p.WaitClosed()

	if len(w.msgs) != 1 {
		t.Fatalf("expected one message, got %d", len(w.msgs))
	}
	m := w.msgs[0]
	if m.Topic != orders.TopicOrderCanceled || string(m.Key) != "ord-1" {
		t.Errorf("unexpected routing %s/%s", m.Topic, m.Key)
	}

	var env orders.Envelope
	if err := DecodeEnvelope(m.Value, &env); err != nil {
		t.Fatal(err)
	}
	if env.EventType != orders.EventOrderCanceled || env.Producer != "checkout-api" || env.CorrelationID != "ord-1" {
		t.Errorf("unexpected envelope %+v", env)
	}
	snap, err := UnwrapPayload[orders.OrderSnapshot](env.Payload)
	if err != nil {
		t.Fatal(err)
	}
	if snap.Status != orders.StatusCanceled || !snap.Amount.Equal(decimal.NewFromInt(35)) {
		t.Errorf("unexpected snapshot %+v", snap)
	}
	if _, err := UnwrapPayload[orders.OrderSnapshot](json.RawMessage(`{"status":`)); err == nil {
		t.Error("truncated payload must fail")
	}
}
