package audit

import (
	"context"
	"log/slog"
	"time"
)

// Publisher hands events to a background worker over a bounded inbox. Audit
// must never block or fail a vote: when the inbox is full the event is
// dropped and the drop is logged.
type Publisher struct {
	inbox  chan<- Event
	logger *slog.Logger
}

func NewPublisher(inbox chan<- Event, logger *slog.Logger) *Publisher {
	return &Publisher{inbox: inbox, logger: logger}
}

func (p *Publisher) Emit(ctx context.Context, event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	select {
	case p.inbox <- event:
	default:
		p.logger.WarnContext(ctx, "audit inbox full, dropping event",
			"action", event.Action,
			"commitment", event.Commitment,
		)
	}
}
