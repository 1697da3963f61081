package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/educapi/account-service/internal/core/domain"
	"github.com/educapi/account-service/internal/core/ports"
	"github.com/educapi/account-service/internal/pkg/secret"
)

const uniqueViolation = "23505"

type AccountRepository struct {
	db     DBTX
	hasher *secret.Hasher
}

var _ ports.AccountRepository = (*AccountRepository)(nil)

func NewAccountRepository(db DBTX, hasher *secret.Hasher) *AccountRepository {
	return &AccountRepository{db: db, hasher: hasher}
}

func (r *AccountRepository) FindByEmail(ctx context.Context, email string) (*domain.Account, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	return r.findByEmail(ctx, email)
}

func (r *AccountRepository) FindByEmailAndSecret(ctx context.Context, email, plain string) (*domain.Account, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	account, err := r.findByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			r.hasher.Burn(plain)
		}
		return nil, err
	}
	if !r.hasher.Matches(account.Secret, plain) {
		return nil, domain.ErrAccountNotFound
	}
	return account, nil
}

func (r *AccountRepository) Insert(ctx context.Context, account *domain.Account) (*domain.Account, error) {
	hash, err := r.hasher.Hash(account.Secret)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	query :=
		`INSERT INTO accounts (name, email, secret_hash)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at, updated_at`

	stored := &domain.Account{Name: account.Name, Email: account.Email, Secret: hash}
	err = r.db.QueryRowContext(ctx, query, account.Name, account.Email, hash).
		Scan(&stored.ID, &stored.CreatedAt, &stored.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, domain.ErrAccountAlreadyExists
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return stored, nil
}

func (r *AccountRepository) Save(ctx context.Context, account *domain.Account) (*domain.Account, error) {
	hash, err := r.hasher.Hash(account.Secret)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	query :=
		`UPDATE accounts SET name = $1, email = $2, secret_hash = $3, updated_at = now()
		 WHERE id = $4
		 RETURNING created_at, updated_at`

	stored := &domain.Account{ID: account.ID, Name: account.Name, Email: account.Email, Secret: hash}
	err = r.db.QueryRowContext(ctx, query, account.Name, account.Email, hash, account.ID).
		Scan(&stored.CreatedAt, &stored.UpdatedAt)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, domain.ErrAccountNotFound
		case isUniqueViolation(err):
			return nil, domain.ErrAccountAlreadyExists
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return stored, nil
}

func (r *AccountRepository) Delete(ctx context.Context, account *domain.Account) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `DELETE FROM accounts WHERE id = $1`, account.ID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}

func (r *AccountRepository) findByEmail(ctx context.Context, email string) (*domain.Account, error) {
	query :=
		`SELECT id, name, email, secret_hash, created_at, updated_at FROM accounts
		 WHERE email = $1`

	a := &domain.Account{}
	err := r.db.QueryRowContext(ctx, query, email).
		Scan(&a.ID, &a.Name, &a.Email, &a.Secret, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return a, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
