package domain

import "errors"

// Failures surfaced by the account and token services. The messages are part
// of the API contract: clients and tests match on them.
var (
	ErrAccountAlreadyExists = errors.New("There is already a user with this e-mail registered in the system!")
	ErrInvalidCredentials   = errors.New("invalid e-mail or password")
	ErrInvalidToken         = errors.New("invalid token")
	ErrExpiredToken         = errors.New("token expired")
	ErrInvalidAccount       = errors.New("invalid account, check the token")
)

// ErrAccountNotFound is returned by repositories on a lookup miss. Services
// translate it into one of the failures above.
var ErrAccountNotFound = errors.New("account not found")

var ErrUnknownEventType = errors.New("unknown account event type")
