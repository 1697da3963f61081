package ports

import (
	"context"

	"github.com/educapi/account-service/internal/core/domain"
)

// AccountRepository persists accounts keyed by e-mail with a numeric id.
//
// Lookups that match nothing return domain.ErrAccountNotFound. Implementations
// must enforce e-mail uniqueness themselves and report a conflict as
// domain.ErrAccountAlreadyExists; the service-level check is only a fast path.
type AccountRepository interface {
	FindByEmail(ctx context.Context, email string) (*domain.Account, error)
	// FindByEmailAndSecret matches both fields in one lookup so that an unknown
	// e-mail and a wrong secret are indistinguishable to the caller.
	FindByEmailAndSecret(ctx context.Context, email, secret string) (*domain.Account, error)
	// Insert assigns the id and returns the stored form.
	Insert(ctx context.Context, account *domain.Account) (*domain.Account, error)
	// Save overwrites name, e-mail and secret of an existing id. Secret is
	// treated as plaintext credential material.
	Save(ctx context.Context, account *domain.Account) (*domain.Account, error)
	Delete(ctx context.Context, account *domain.Account) error
}
