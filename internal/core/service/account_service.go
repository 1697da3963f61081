package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/educapi/account-service/internal/core/domain"
	"github.com/educapi/account-service/internal/core/ports"
)

// AccountService implements registration, authentication and the token-gated
// account operations.
type AccountService struct {
	repo   ports.AccountRepository
	tokens ports.TokenService
}

var _ ports.AccountService = (*AccountService)(nil)

func NewAccountService(repo ports.AccountRepository, tokens ports.TokenService) *AccountService {
	return &AccountService{repo: repo, tokens: tokens}
}

// Register stores a new account unless the e-mail is already taken.
func (s *AccountService) Register(ctx context.Context, name, email, secret string) (*domain.Account, error) {
	_, err := s.repo.FindByEmail(ctx, email)
	switch {
	case err == nil:
		return nil, domain.ErrAccountAlreadyExists
	case !errors.Is(err, domain.ErrAccountNotFound):
		return nil, fmt.Errorf("register: %w", err)
	}

	// The lookup above can race with a concurrent registration; the
	// repository rejects the second insert.
	created, err := s.repo.Insert(ctx, &domain.Account{Name: name, Email: email, Secret: secret})
	if err != nil {
		if errors.Is(err, domain.ErrAccountAlreadyExists) {
			return nil, domain.ErrAccountAlreadyExists
		}
		return nil, fmt.Errorf("register: %w", err)
	}
	return created, nil
}

// Authenticate returns a session token for the account matching both email
// and secret.
func (s *AccountService) Authenticate(ctx context.Context, email, secret string) (string, error) {
	if _, err := s.repo.FindByEmailAndSecret(ctx, email, secret); err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return "", domain.ErrInvalidCredentials
		}
		return "", fmt.Errorf("authenticate: %w", err)
	}

	token, err := s.tokens.Issue(email)
	if err != nil {
		return "", fmt.Errorf("authenticate: %w", err)
	}
	return token, nil
}

// ResolveCurrentAccount returns the account whose e-mail is the token subject.
func (s *AccountService) ResolveCurrentAccount(ctx context.Context, token string) (*domain.Account, error) {
	if token == "" {
		return nil, domain.ErrInvalidToken
	}

	subject, err := s.tokens.ValidateAndExtractSubject(token)
	if err != nil {
		return nil, err
	}

	account, err := s.repo.FindByEmail(ctx, subject)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return nil, domain.ErrInvalidAccount
		}
		return nil, fmt.Errorf("resolve account: %w", err)
	}
	return account, nil
}

// Update overwrites name, e-mail and secret of the current account. Moving to
// an e-mail owned by another account fails with ErrAccountAlreadyExists.
func (s *AccountService) Update(ctx context.Context, token, name, email, secret string) (*domain.Account, error) {
	current, err := s.ResolveCurrentAccount(ctx, token)
	if err != nil {
		return nil, err
	}

	if email != current.Email {
		other, err := s.repo.FindByEmail(ctx, email)
		switch {
		case err == nil && other.ID != current.ID:
			return nil, domain.ErrAccountAlreadyExists
		case err != nil && !errors.Is(err, domain.ErrAccountNotFound):
			return nil, fmt.Errorf("update: %w", err)
		}
	}

	changed := current.Clone()
	changed.Name = name
	changed.Email = email
	changed.Secret = secret

	saved, err := s.repo.Save(ctx, changed)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrAccountAlreadyExists):
			return nil, domain.ErrAccountAlreadyExists
		case errors.Is(err, domain.ErrAccountNotFound):
			return nil, domain.ErrInvalidAccount
		}
		return nil, fmt.Errorf("update: %w", err)
	}
	return saved, nil
}

// Delete removes the current account and returns it as it was before removal.
func (s *AccountService) Delete(ctx context.Context, token string) (*domain.Account, error) {
	current, err := s.ResolveCurrentAccount(ctx, token)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Delete(ctx, current); err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return nil, domain.ErrInvalidAccount
		}
		return nil, fmt.Errorf("delete: %w", err)
	}
	return current, nil
}
