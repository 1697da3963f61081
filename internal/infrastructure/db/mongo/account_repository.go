package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/educapi/account-service/internal/core/domain"
	"github.com/educapi/account-service/internal/core/ports"
	"github.com/educapi/account-service/internal/pkg/secret"
)

const (
	accountsCollection = "accounts"
	countersCollection = "counters"
	accountsSequence   = "accounts"
)

// AccountRepository stores accounts in MongoDB. Numeric ids come from a
// counters document; the unique index on email is the authoritative
// uniqueness check.
type AccountRepository struct {
	accounts *mongo.Collection
	counters *mongo.Collection
	hasher   *secret.Hasher
}

var _ ports.AccountRepository = (*AccountRepository)(nil)

func NewAccountRepository(db *mongo.Database, hasher *secret.Hasher) *AccountRepository {
	return &AccountRepository{
		accounts: db.Collection(accountsCollection),
		counters: db.Collection(countersCollection),
		hasher:   hasher,
	}
}

type accountDocument struct {
	ID         int64  `bson:"_id"`
	Name       string `bson:"name"`
	Email      string `bson:"email"`
	SecretHash string `bson:"secret_hash"`
	CreatedAt  int64  `bson:"created_at"`
	UpdatedAt  int64  `bson:"updated_at"`
}

func (d accountDocument) toDomain() *domain.Account {
	return &domain.Account{
		ID:        d.ID,
		Name:      d.Name,
		Email:     d.Email,
		Secret:    d.SecretHash,
		CreatedAt: unixToTime(d.CreatedAt),
		UpdatedAt: unixToTime(d.UpdatedAt),
	}
}

// EnsureIndexes creates the unique e-mail index.
func (r *AccountRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err := r.accounts.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("email_unique"),
	})
	if err != nil {
		return fmt.Errorf("create account indexes: %w", err)
	}
	return nil
}

func (r *AccountRepository) FindByEmail(ctx context.Context, email string) (*domain.Account, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	doc, err := r.findByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	return doc.toDomain(), nil
}

func (r *AccountRepository) FindByEmailAndSecret(ctx context.Context, email, plain string) (*domain.Account, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	doc, err := r.findByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			r.hasher.Burn(plain)
		}
		return nil, err
	}
	if !r.hasher.Matches(doc.SecretHash, plain) {
		return nil, domain.ErrAccountNotFound
	}
	return doc.toDomain(), nil
}

func (r *AccountRepository) Insert(ctx context.Context, account *domain.Account) (*domain.Account, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	hash, err := r.hasher.Hash(account.Secret)
	if err != nil {
		return nil, err
	}
	id, err := r.nextID(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC().Unix()
	doc := accountDocument{
		ID:         id,
		Name:       account.Name,
		Email:      account.Email,
		SecretHash: hash,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if _, err := r.accounts.InsertOne(ctx, doc); err != nil {
		return nil, mapError("insert account", err)
	}
	return doc.toDomain(), nil
}

func (r *AccountRepository) Save(ctx context.Context, account *domain.Account) (*domain.Account, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	hash, err := r.hasher.Hash(account.Secret)
	if err != nil {
		return nil, err
	}

	update := bson.M{"$set": bson.M{
		"name":        account.Name,
		"email":       account.Email,
		"secret_hash": hash,
		"updated_at":  time.Now().UTC().Unix(),
	}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc accountDocument
	err = r.accounts.FindOneAndUpdate(ctx, bson.M{"_id": account.ID}, update, opts).Decode(&doc)
	if err != nil {
		return nil, mapError("save account", err)
	}
	return doc.toDomain(), nil
}

func (r *AccountRepository) Delete(ctx context.Context, account *domain.Account) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.accounts.DeleteOne(ctx, bson.M{"_id": account.ID})
	if err != nil {
		return mapError("delete account", err)
	}
	if res.DeletedCount == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}

func (r *AccountRepository) findByEmail(ctx context.Context, email string) (*accountDocument, error) {
	var doc accountDocument
	if err := r.accounts.FindOne(ctx, bson.M{"email": email}).Decode(&doc); err != nil {
		return nil, mapError("find account", err)
	}
	return &doc, nil
}

// nextID atomically increments the accounts sequence and returns the new value.
func (r *AccountRepository) nextID(ctx context.Context) (int64, error) {
	var counter struct {
		Seq int64 `bson:"seq"`
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	err := r.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": accountsSequence},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		opts,
	).Decode(&counter)
	if err != nil {
		return 0, fmt.Errorf("next account id: %w", err)
	}
	return counter.Seq, nil
}

// mapError translates driver errors into domain errors. Anything else is
// wrapped with op.
func mapError(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return domain.ErrAccountNotFound
	case mongo.IsDuplicateKeyError(err):
		return domain.ErrAccountAlreadyExists
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

func unixToTime(ts int64) time.Time {
	if ts == 0 {
		return time.Time{}
	}
	return time.Unix(ts, 0).UTC()
}
