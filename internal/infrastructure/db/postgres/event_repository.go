package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/educapi/account-service/internal/core/domain"
	"github.com/educapi/account-service/internal/core/ports"
)

type EventRepository struct {
	db DBTX
}

func NewEventRepository(db DBTX) ports.EventRepository {
	return &EventRepository{db: db}
}

func (r *EventRepository) InsertEvent(ctx context.Context, event *domain.AccountEvent) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	query :=
		`INSERT INTO account_events (id, type, account_id, email, request_id, occurred_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`

	requestID := sql.NullString{String: event.RequestID, Valid: event.RequestID != ""}
	_, err := r.db.ExecContext(ctx, query,
		event.ID, string(event.Type), event.AccountID, event.Email, requestID, event.OccurredAt.UTC())
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
