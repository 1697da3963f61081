// Package memory provides process-local repositories used when no database is
// configured and in tests.
package memory

import (
	"context"
	"crypto/subtle"
	"sync"
	"time"

	"github.com/educapi/account-service/internal/core/domain"
	"github.com/educapi/account-service/internal/core/ports"
)

// AccountRepository keeps accounts in maps guarded by a mutex. The e-mail map
// acts as the unique index.
type AccountRepository struct {
	mu      sync.RWMutex
	byID    map[int64]*domain.Account
	byEmail map[string]int64
	nextID  int64
	now     func() time.Time
}

var _ ports.AccountRepository = (*AccountRepository)(nil)

func NewAccountRepository() *AccountRepository {
	return &AccountRepository{
		byID:    make(map[int64]*domain.Account),
		byEmail: make(map[string]int64),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (r *AccountRepository) FindByEmail(_ context.Context, email string) (*domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[email]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return r.byID[id].Clone(), nil
}

func (r *AccountRepository) FindByEmailAndSecret(_ context.Context, email, secret string) (*domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[email]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	a := r.byID[id]
	if subtle.ConstantTimeCompare([]byte(a.Secret), []byte(secret)) != 1 {
		return nil, domain.ErrAccountNotFound
	}
	return a.Clone(), nil
}

func (r *AccountRepository) Insert(_ context.Context, account *domain.Account) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byEmail[account.Email]; exists {
		return nil, domain.ErrAccountAlreadyExists
	}

	r.nextID++
	now := r.now()
	stored := account.Clone()
	stored.ID = r.nextID
	stored.CreatedAt = now
	stored.UpdatedAt = now

	r.byID[stored.ID] = stored
	r.byEmail[stored.Email] = stored.ID
	return stored.Clone(), nil
}

func (r *AccountRepository) Save(_ context.Context, account *domain.Account) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.byID[account.ID]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	if owner, taken := r.byEmail[account.Email]; taken && owner != account.ID {
		return nil, domain.ErrAccountAlreadyExists
	}

	stored := current.Clone()
	stored.Name = account.Name
	stored.Email = account.Email
	stored.Secret = account.Secret
	stored.UpdatedAt = r.now()

	delete(r.byEmail, current.Email)
	r.byEmail[stored.Email] = stored.ID
	r.byID[stored.ID] = stored
	return stored.Clone(), nil
}

func (r *AccountRepository) Delete(_ context.Context, account *domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.byID[account.ID]
	if !ok {
		return domain.ErrAccountNotFound
	}
	delete(r.byEmail, current.Email)
	delete(r.byID, current.ID)
	return nil
}

// Len returns the number of stored accounts.
func (r *AccountRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}
