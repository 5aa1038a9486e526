package audit

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublisherDeliversThroughWorker(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	inbox := make(chan Event, 8)
	store := NewInMemory()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	worker := NewWorker(store, inbox, logger)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = worker.Run(ctx)
	}()

	publisher := NewPublisher(inbox, logger)
	publisher.Emit(ctx, Event{Action: ActionVoteCast, Commitment: "0xabc"})
	publisher.Emit(ctx, Event{Action: ActionLedgerConfirmed, Commitment: "0xabc"})

	require.Eventually(t, func() bool {
		return len(store.Events()) == 2
	}, time.Second, 5*time.Millisecond)

	events := store.Events()
	assert.Equal(t, ActionVoteCast, events[0].Action)
	assert.False(t, events[0].Timestamp.IsZero())

	cancel()
	<-done
}

// A full inbox drops the event instead of blocking the caller: audit must
// never stall a vote.
func TestPublisherDropsWhenInboxFull(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	inbox := make(chan Event, 1)
	publisher := NewPublisher(inbox, logger)

	ctx := context.Background()
	publisher.Emit(ctx, Event{Action: ActionVoteCast})

	done := make(chan struct{})
	go func() {
		publisher.Emit(ctx, Event{Action: ActionVoteDuplicate})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Emit blocked on a full inbox")
	}
	assert.Len(t, inbox, 1)
}

func TestWorkerSurvivesFailingSink(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	inbox := make(chan Event, 8)

	sink := &flakySink{store: NewInMemory(), failFirst: true}
	worker := NewWorker(sink, inbox, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = worker.Run(ctx) }()

	inbox <- Event{Action: ActionVoteCast}
	inbox <- Event{Action: ActionLedgerConfirmed}

	require.Eventually(t, func() bool {
		return len(sink.store.Events()) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, ActionLedgerConfirmed, sink.store.Events()[0].Action)
}

type flakySink struct {
	store     *InMemory
	failFirst bool
}

func (f *flakySink) Append(ctx context.Context, event Event) error {
	if f.failFirst {
		f.failFirst = false
		return context.DeadlineExceeded
	}
	return f.store.Append(ctx, event)
}
