package postgres

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/crypto/bcrypt"

	"github.com/educapi/account-service/internal/core/domain"
	"github.com/educapi/account-service/internal/pkg/secret"
)

const (
	insertQuery = `(?s)^INSERT\s+INTO\s+accounts\s*\(name,\s*email,\s*secret_hash\)\s*VALUES\s*\(\$1,\s*\$2,\s*\$3\)\s*RETURNING\s+id,\s*created_at,\s*updated_at$`
	selectQuery = `(?s)^SELECT\s+id,\s*name,\s*email,\s*secret_hash,\s*created_at,\s*updated_at\s+FROM\s+accounts\s+WHERE\s+email\s*=\s*\$1$`
	updateQuery = `(?s)^UPDATE\s+accounts\s+SET\s+name\s*=\s*\$1,\s*email\s*=\s*\$2,\s*secret_hash\s*=\s*\$3,\s*updated_at\s*=\s*now\(\)\s+WHERE\s+id\s*=\s*\$4\s+RETURNING\s+created_at,\s*updated_at$`
	deleteQuery = `^DELETE\s+FROM\s+accounts\s+WHERE\s+id\s*=\s*\$1$`
)

var accountColumns = []string{"id", "name", "email", "secret_hash", "created_at", "updated_at"}

func newRepoWithMock(t *testing.T) (*AccountRepository, *secret.Hasher, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
		db.Close()
	})
	hasher := secret.NewHasher(bcrypt.MinCost)
	return NewAccountRepository(db, hasher), hasher, mock
}

func TestInsert_Success(t *testing.T) {
	repo, hasher, mock := newRepoWithMock(t)
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	mock.ExpectQuery(insertQuery).
		WithArgs("User", "user@test.com", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(int64(7), now, now))

	got, err := repo.Insert(context.Background(), &domain.Account{Name: "User", Email: "user@test.com", Secret: "s3cret"})
	if err != nil {
		t.Fatalf("Insert error: %v", err)
	}
	if got.ID != 7 || got.Email != "user@test.com" || !got.CreatedAt.Equal(now) {
		t.Fatalf("unexpected account: %+v", got)
	}
	if got.Secret == "s3cret" || !hasher.Matches(got.Secret, "s3cret") {
		t.Fatalf("expected stored secret to be a hash of the plaintext")
	}
}

func TestInsert_UniqueViolation(t *testing.T) {
	repo, _, mock := newRepoWithMock(t)

	mock.ExpectQuery(insertQuery).
		WithArgs("User", "user@test.com", sqlmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "accounts_email_key"})

	_, err := repo.Insert(context.Background(), &domain.Account{Name: "User", Email: "user@test.com", Secret: "s"})
	if !errors.Is(err, domain.ErrAccountAlreadyExists) {
		t.Fatalf("want ErrAccountAlreadyExists, got %v", err)
	}
}

func TestInsert_DBError(t *testing.T) {
	repo, _, mock := newRepoWithMock(t)

	mock.ExpectQuery(insertQuery).
		WithArgs("User", "user@test.com", sqlmock.AnyArg()).
		WillReturnError(errors.New("db down"))

	_, err := repo.Insert(context.Background(), &domain.Account{Name: "User", Email: "user@test.com", Secret: "s"})
	if err == nil || !regexp.MustCompile(`db error: .*db down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestFindByEmail(t *testing.T) {
	repo, _, mock := newRepoWithMock(t)
	now := time.Now().UTC()

	mock.ExpectQuery(selectQuery).
		WithArgs("user@test.com").
		WillReturnRows(sqlmock.NewRows(accountColumns).AddRow(int64(1), "User", "user@test.com", "hash", now, now))
	mock.ExpectQuery(selectQuery).
		WithArgs("ghost@test.com").
		WillReturnError(sql.ErrNoRows)

	got, err := repo.FindByEmail(context.Background(), "user@test.com")
	if err != nil {
		t.Fatalf("FindByEmail error: %v", err)
	}
	if got.ID != 1 || got.Name != "User" {
		t.Fatalf("unexpected account: %+v", got)
	}

	_, err = repo.FindByEmail(context.Background(), "ghost@test.com")
	if !errors.Is(err, domain.ErrAccountNotFound) {
		t.Fatalf("want ErrAccountNotFound, got %v", err)
	}
}

func TestFindByEmailAndSecret(t *testing.T) {
	repo, hasher, mock := newRepoWithMock(t)
	hash, err := hasher.Hash("s3cret")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	now := time.Now().UTC()
	row := func() *sqlmock.Rows {
		return sqlmock.NewRows(accountColumns).AddRow(int64(1), "User", "user@test.com", hash, now, now)
	}

	mock.ExpectQuery(selectQuery).WithArgs("user@test.com").WillReturnRows(row())
	mock.ExpectQuery(selectQuery).WithArgs("user@test.com").WillReturnRows(row())
	mock.ExpectQuery(selectQuery).WithArgs("ghost@test.com").WillReturnError(sql.ErrNoRows)

	got, err := repo.FindByEmailAndSecret(context.Background(), "user@test.com", "s3cret")
	if err != nil {
		t.Fatalf("FindByEmailAndSecret error: %v", err)
	}
	if got.ID != 1 {
		t.Fatalf("unexpected account: %+v", got)
	}

	if _, err := repo.FindByEmailAndSecret(context.Background(), "user@test.com", "wrong"); !errors.Is(err, domain.ErrAccountNotFound) {
		t.Fatalf("wrong secret: want ErrAccountNotFound, got %v", err)
	}
	if _, err := repo.FindByEmailAndSecret(context.Background(), "ghost@test.com", "s3cret"); !errors.Is(err, domain.ErrAccountNotFound) {
		t.Fatalf("unknown e-mail: want ErrAccountNotFound, got %v", err)
	}
}

func TestSave(t *testing.T) {
	repo, hasher, mock := newRepoWithMock(t)
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	updated := created.Add(time.Hour)

	mock.ExpectQuery(updateQuery).
		WithArgs("New", "new@test.com", sqlmock.AnyArg(), int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(created, updated))

	got, err := repo.Save(context.Background(), &domain.Account{ID: 3, Name: "New", Email: "new@test.com", Secret: "pw"})
	if err != nil {
		t.Fatalf("Save error: %v", err)
	}
	if got.ID != 3 || got.Name != "New" || !got.UpdatedAt.Equal(updated) {
		t.Fatalf("unexpected account: %+v", got)
	}
	if !hasher.Matches(got.Secret, "pw") {
		t.Fatalf("expected stored secret to match new plaintext")
	}
}

func TestSave_Errors(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantErr error
	}{
		{"not found", sql.ErrNoRows, domain.ErrAccountNotFound},
		{"email taken", &pgconn.PgError{Code: "23505"}, domain.ErrAccountAlreadyExists},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, _, mock := newRepoWithMock(t)
			mock.ExpectQuery(updateQuery).
				WithArgs("New", "new@test.com", sqlmock.AnyArg(), int64(3)).
				WillReturnError(tt.err)

			_, err := repo.Save(context.Background(), &domain.Account{ID: 3, Name: "New", Email: "new@test.com", Secret: "pw"})
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("want %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestDelete(t *testing.T) {
	repo, _, mock := newRepoWithMock(t)

	mock.ExpectExec(deleteQuery).WithArgs(int64(5)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(deleteQuery).WithArgs(int64(5)).WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.Delete(context.Background(), &domain.Account{ID: 5}); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if err := repo.Delete(context.Background(), &domain.Account{ID: 5}); !errors.Is(err, domain.ErrAccountNotFound) {
		t.Fatalf("want ErrAccountNotFound, got %v", err)
	}
}
