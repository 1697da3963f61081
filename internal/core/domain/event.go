package domain

import "time"

// AccountEventType identifies what happened to an account.
type AccountEventType string

const (
	EventRegistered    AccountEventType = "account.registered"
	EventAuthenticated AccountEventType = "account.authenticated"
	EventUpdated       AccountEventType = "account.updated"
	EventDeleted       AccountEventType = "account.deleted"
)

// Valid reports whether t is one of the known event types.
func (t AccountEventType) Valid() bool {
	switch t {
	case EventRegistered, EventAuthenticated, EventUpdated, EventDeleted:
		return true
	}
	return false
}

// AccountEvent is an entry of the account audit trail.
type AccountEvent struct {
	ID         string
	Type       AccountEventType
	AccountID  int64
	Email      string
	RequestID  string
	OccurredAt time.Time
}
