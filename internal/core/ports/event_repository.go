package ports

import (
	"context"

	"github.com/educapi/account-service/internal/core/domain"
)

// EventRepository persists the account audit trail.
type EventRepository interface {
	InsertEvent(ctx context.Context, event *domain.AccountEvent) error
}
