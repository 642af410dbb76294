package repo

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/richardliu001/ledger-service/internal/model"
	"github.com/shopspring/decimal"
)

// Balances are cached per owning user, the only id the HTTP layer knows.
func balanceKey(id uuid.UUID) string { return fmt.Sprintf("balance:%s", id) }

// balanceGenKey counts invalidations of a user's balances. A cached entry is
// only served while its generation matches, so a read-through that loaded
// the database before a commit can never outlive that commit's invalidation.
func balanceGenKey(id uuid.UUID) string { return fmt.Sprintf("balance:gen:%s", id) }

func (r *Repository) balanceGen(ctx context.Context, userID uuid.UUID) (int64, error) {
	gen, err := r.rdb.Get(ctx, balanceGenKey(userID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

// CacheBalances writes Redis, tagged with the generation observed before the
// balances were read from the database.
func (r *Repository) CacheBalances(ctx context.Context, userID uuid.UUID, b model.Balances, gen int64) error {
	if r.rdb == nil {
		return nil
	}
	key := balanceKey(userID)
	if err := r.rdb.HSet(ctx, key,
		"checking", b.Checking.String(),
		"savings", b.Savings.String(),
		"gen", strconv.FormatInt(gen, 10),
	).Err(); err != nil {
		return err
	}
	return r.rdb.Expire(ctx, key, r.ttl).Err()
}

// GetCachedBalances reads Redis. It always returns the current generation,
// which the caller passes to CacheBalances after a miss. A miss, or an entry
// from an older generation, is redis.Nil.
func (r *Repository) GetCachedBalances(ctx context.Context, userID uuid.UUID) (model.Balances, int64, error) {
	if r.rdb == nil {
		return model.Balances{}, 0, redis.Nil
	}
	gen, err := r.balanceGen(ctx, userID)
	if err != nil {
		return model.Balances{}, 0, err
	}
	vals, err := r.rdb.HGetAll(ctx, balanceKey(userID)).Result()
	if err != nil {
		return model.Balances{}, gen, err
	}
	if len(vals) == 0 || vals["gen"] != strconv.FormatInt(gen, 10) {
		return model.Balances{}, gen, redis.Nil
	}
	checking, err := decimal.NewFromString(vals["checking"])
	if err != nil {
		return model.Balances{}, gen, err
	}
	savings, err := decimal.NewFromString(vals["savings"])
	if err != nil {
		return model.Balances{}, gen, err
	}
	return model.Balances{Checking: checking, Savings: savings}, gen, nil
}

// InvalidateBalances bumps the generation and drops cached balances after a
// committed mutation.
func (r *Repository) InvalidateBalances(ctx context.Context, userIDs ...uuid.UUID) error {
	if r.rdb == nil || len(userIDs) == 0 {
		return nil
	}
	keys := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		if err := r.rdb.Incr(ctx, balanceGenKey(id)).Err(); err != nil {
			return err
		}
		keys = append(keys, balanceKey(id))
	}
	return r.rdb.Del(ctx, keys...).Err()
}
