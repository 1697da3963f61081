package ports

import (
	"context"

	"github.com/educapi/account-service/internal/core/domain"
)

// AccountService defines the account lifecycle use cases. Token-gated
// operations take the raw bearer token as presented by the caller.
type AccountService interface {
	Register(ctx context.Context, name, email, secret string) (*domain.Account, error)
	Authenticate(ctx context.Context, email, secret string) (string, error)
	ResolveCurrentAccount(ctx context.Context, token string) (*domain.Account, error)
	Update(ctx context.Context, token, name, email, secret string) (*domain.Account, error)
	Delete(ctx context.Context, token string) (*domain.Account, error)
}
