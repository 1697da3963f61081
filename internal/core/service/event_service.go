package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/educapi/account-service/internal/core/domain"
	"github.com/educapi/account-service/internal/core/ports"
)

type eventService struct {
	repo ports.EventRepository
	log  zerolog.Logger
	now  func() time.Time
}

// NewEventService returns an EventService that stores every valid event in
// the audit trail.
func NewEventService(repo ports.EventRepository, log zerolog.Logger) ports.EventService {
	return &eventService{repo: repo, log: log, now: time.Now}
}

// Process validates an account event, stamps it with an id and persists it.
func (s *eventService) Process(ctx context.Context, in ports.AccountEventInput) error {
	eventType := domain.AccountEventType(in.Type)
	if !eventType.Valid() {
		return fmt.Errorf("process event: %w (%q)", domain.ErrUnknownEventType, in.Type)
	}

	occurredAt := in.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = s.now()
	}

	event := &domain.AccountEvent{
		ID:         uuid.NewString(),
		Type:       eventType,
		AccountID:  in.AccountID,
		Email:      in.Email,
		RequestID:  in.RequestID,
		OccurredAt: occurredAt.UTC(),
	}
	if err := s.repo.InsertEvent(ctx, event); err != nil {
		return fmt.Errorf("process event: insert: %w", err)
	}

	s.log.Debug().
		Str("event_id", event.ID).
		Str("type", in.Type).
		Int64("account_id", in.AccountID).
		Msg("account event recorded")

	return nil
}
