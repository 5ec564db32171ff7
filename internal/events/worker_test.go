package events

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/punchamoorthee/creatorpay/internal/store"
	"github.com/punchamoorthee/creatorpay/internal/store/memory"
)

type fakePublisher struct {
	failFor map[string]bool
	sent    []string
}

func (p *fakePublisher) Publish(_ context.Context, eventType, _ string, payload []byte) error {
	if p.failFor[eventType] {
		return errors.New("broker unavailable")
	}
	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return err
	}
	p.sent = append(p.sent, env.EventType)
	return nil
}

func (p *fakePublisher) Close() error { return nil }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func enqueue(t *testing.T, s store.Store, eventType string) {
	t.Helper()
	err := s.WithTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		return Enqueue(ctx, tx, eventType, "key", map[string]string{"k": "v"}, time.Now().UTC())
	})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
}

func TestProcessOncePublishesAndRetries(t *testing.T) {
	s := memory.New()
	enqueue(t, s, EventEscrowLocked)
	enqueue(t, s, EventEscrowSettled)

	pub := &fakePublisher{failFor: map[string]bool{EventEscrowSettled: true}}
	w := NewOutboxWorker(discardLogger(), s.Outbox(), pub, time.Second, 10, 2)

	if err := w.ProcessOnce(context.Background()); err != nil {
		t.Fatalf("ProcessOnce: %v", err)
	}
	if len(pub.sent) != 1 || pub.sent[0] != EventEscrowLocked {
		t.Fatalf("sent = %v", pub.sent)
	}
	pending, _ := s.Outbox().ListPending(context.Background(), 10)
	if len(pending) != 1 || pending[0].Attempts != 1 {
		t.Fatalf("pending after first pass = %+v", pending)
	}

	// second failure reaches maxRetries and dead-letters the record
	if err := w.ProcessOnce(context.Background()); err != nil {
		t.Fatalf("ProcessOnce: %v", err)
	}
	pending, _ = s.Outbox().ListPending(context.Background(), 10)
	if len(pending) != 0 {
		t.Fatalf("pending after dead letter = %+v", pending)
	}
}

func TestEnqueueIsDiscardedOnRollback(t *testing.T) {
	s := memory.New()
	err := s.WithTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		if err := Enqueue(ctx, tx, EventEscrowRefunded, "key", nil, time.Now()); err != nil {
			return err
		}
		return errors.New("abort")
	})
	if err == nil {
		t.Fatal("expected abort error")
	}
	pending, _ := s.Outbox().ListPending(context.Background(), 10)
	if len(pending) != 0 {
		t.Fatalf("rolled back event was kept: %+v", pending)
	}
}
