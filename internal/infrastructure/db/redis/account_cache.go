package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/educapi/account-service/internal/core/domain"
	"github.com/educapi/account-service/internal/core/ports"
)

const (
	defaultCacheTTL = 5 * time.Minute
	generationKey   = "account:generation"
)

// AccountCache is a read-through cache in front of an AccountRepository.
// Only FindByEmail is served from Redis; credentials never enter the cache.
// Redis failures are logged and the call falls through to the wrapped
// repository.
//
// Every invalidation bumps a generation counter. A read that reached the
// wrapped repository only fills the cache if the generation it saw before
// the lookup is still current, so a lookup racing a Save or Delete cannot
// write its stale copy back.
//
// Key format:
//
//	account:email:<email> -> JSON account without secret
//	account:id:<id>       -> email currently cached for that id
//	account:generation    -> invalidation counter
type AccountCache struct {
	next   ports.AccountRepository
	client *redis.Client
	ttl    time.Duration
	log    zerolog.Logger
}

var _ ports.AccountRepository = (*AccountCache)(nil)

var errStaleRead = errors.New("account cache generation changed")

// NewAccountCache wraps next. A non-positive ttl selects the default of five
// minutes.
func NewAccountCache(next ports.AccountRepository, client *redis.Client, ttl time.Duration, log zerolog.Logger) *AccountCache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &AccountCache{next: next, client: client, ttl: ttl, log: log}
}

type cachedAccount struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (c *AccountCache) FindByEmail(ctx context.Context, email string) (*domain.Account, error) {
	raw, err := c.client.Get(ctx, emailKey(email)).Bytes()
	switch {
	case err == nil:
		var cached cachedAccount
		if err := json.Unmarshal(raw, &cached); err == nil {
			return &domain.Account{
				ID:        cached.ID,
				Name:      cached.Name,
				Email:     cached.Email,
				CreatedAt: cached.CreatedAt,
				UpdatedAt: cached.UpdatedAt,
			}, nil
		}
		c.log.Warn().Str("email", email).Msg("discarding unreadable cached account")
	case !errors.Is(err, redis.Nil):
		c.log.Warn().Err(err).Str("email", email).Msg("account cache read failed")
	}

	generation, genErr := c.generation(ctx)

	account, err := c.next.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if genErr == nil {
		c.store(ctx, account, generation)
	}
	return account, nil
}

func (c *AccountCache) FindByEmailAndSecret(ctx context.Context, email, secret string) (*domain.Account, error) {
	return c.next.FindByEmailAndSecret(ctx, email, secret)
}

func (c *AccountCache) Insert(ctx context.Context, account *domain.Account) (*domain.Account, error) {
	return c.next.Insert(ctx, account)
}

func (c *AccountCache) Save(ctx context.Context, account *domain.Account) (*domain.Account, error) {
	saved, err := c.next.Save(ctx, account)
	if err != nil {
		return nil, err
	}
	c.invalidate(ctx, account.ID, account.Email)
	return saved, nil
}

func (c *AccountCache) Delete(ctx context.Context, account *domain.Account) error {
	if err := c.next.Delete(ctx, account); err != nil {
		return err
	}
	c.invalidate(ctx, account.ID, account.Email)
	return nil
}

// generation returns the invalidation counter, "" when it was never bumped.
func (c *AccountCache) generation(ctx context.Context) (string, error) {
	gen, err := c.client.Get(ctx, generationKey).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		c.log.Warn().Err(err).Msg("account cache generation read failed")
		return "", err
	}
	return gen, nil
}

// store caches account unless an invalidation happened since generation was
// read. The check and the write run under WATCH so an invalidation landing in
// between aborts the transaction.
func (c *AccountCache) store(ctx context.Context, account *domain.Account, generation string) {
	payload, err := json.Marshal(cachedAccount{
		ID:        account.ID,
		Name:      account.Name,
		Email:     account.Email,
		CreatedAt: account.CreatedAt,
		UpdatedAt: account.UpdatedAt,
	})
	if err != nil {
		return
	}

	err = c.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, generationKey).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != generation {
			return errStaleRead
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, emailKey(account.Email), payload, c.ttl)
			p.Set(ctx, idKey(account.ID), account.Email, c.ttl)
			return nil
		})
		return err
	}, generationKey)

	switch {
	case err == nil:
	case errors.Is(err, errStaleRead), errors.Is(err, redis.TxFailedErr):
		c.log.Debug().Int64("account_id", account.ID).Msg("account changed during lookup, not cached")
	default:
		c.log.Warn().Err(err).Int64("account_id", account.ID).Msg("account cache write failed")
	}
}

// invalidate drops the entries for id, including the one stored under the
// e-mail the id was last cached with.
func (c *AccountCache) invalidate(ctx context.Context, id int64, email string) {
	if err := c.client.Incr(ctx, generationKey).Err(); err != nil {
		c.log.Warn().Err(err).Int64("account_id", id).Msg("account cache generation bump failed")
	}

	keys := []string{idKey(id), emailKey(email)}

	previous, err := c.client.Get(ctx, idKey(id)).Result()
	switch {
	case err == nil && previous != email:
		keys = append(keys, emailKey(previous))
	case err != nil && !errors.Is(err, redis.Nil):
		c.log.Warn().Err(err).Int64("account_id", id).Msg("account cache lookup failed")
	}

	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		c.log.Warn().Err(err).Int64("account_id", id).Msg("account cache invalidation failed")
	}
}

func emailKey(email string) string {
	return fmt.Sprintf("account:email:%s", email)
}

func idKey(id int64) string {
	return "account:id:" + strconv.FormatInt(id, 10)
}
