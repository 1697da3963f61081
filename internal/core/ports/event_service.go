package ports

import (
	"context"
	"time"
)

// AccountEventInput is the DTO handed from the transport layer to the audit
// pipeline.
type AccountEventInput struct {
	Type       string
	AccountID  int64
	Email      string
	RequestID  string
	OccurredAt time.Time
}

// EventService records account events.
type EventService interface {
	Process(ctx context.Context, event AccountEventInput) error
}

// EventPublisher accepts events for asynchronous processing. Publish must not
// block the caller.
type EventPublisher interface {
	Publish(event AccountEventInput)
}
