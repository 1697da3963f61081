package memory

import (
	"context"
	"sync"

	"github.com/educapi/account-service/internal/core/domain"
	"github.com/educapi/account-service/internal/core/ports"
)

// EventRepository appends audit events to a slice.
type EventRepository struct {
	mu     sync.Mutex
	events []domain.AccountEvent
}

var _ ports.EventRepository = (*EventRepository)(nil)

func NewEventRepository() *EventRepository {
	return &EventRepository{}
}

func (r *EventRepository) InsertEvent(_ context.Context, event *domain.AccountEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, *event)
	return nil
}

// Events returns a copy of the recorded events in insertion order.
func (r *EventRepository) Events() []domain.AccountEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.AccountEvent, len(r.events))
	copy(out, r.events)
	return out
}
