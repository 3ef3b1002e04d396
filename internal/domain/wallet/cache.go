package wallet

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	balanceKeyPrefix = "wallet:balance:"
	balanceTTL       = 5 * time.Minute
)

// BalanceCache is a read-through cache over the wallet balance. The ledger
// remains the source of truth; every wallet mutation must invalidate the
// doctor's entry. A nil Redis client disables caching.
type BalanceCache struct {
	client *redis.Client
}

func NewBalanceCache(client *redis.Client) *BalanceCache {
	return &BalanceCache{client: client}
}

func (c *BalanceCache) Get(ctx context.Context, doctorID uuid.UUID) (int64, bool) {
	if c == nil || c.client == nil {
		return 0, false
	}
	val, err := c.client.Get(ctx, balanceKeyPrefix+doctorID.String()).Result()
	if err != nil {
		return 0, false
	}
	balance, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, false
	}
	return balance, true
}

func (c *BalanceCache) Set(ctx context.Context, doctorID uuid.UUID, balance int64) {
	if c == nil || c.client == nil {
		return
	}
	if err := c.client.Set(ctx, balanceKeyPrefix+doctorID.String(), balance, balanceTTL).Err(); err != nil {
		log.Warn().Err(err).Str("doctor_id", doctorID.String()).Msg("wallet balance cache set failed")
	}
}

func (c *BalanceCache) Invalidate(ctx context.Context, doctorID uuid.UUID) {
	if c == nil || c.client == nil {
		return
	}
	if err := c.client.Del(ctx, balanceKeyPrefix+doctorID.String()).Err(); err != nil {
		log.Warn().Err(err).Str("doctor_id", doctorID.String()).Msg("wallet balance cache invalidation failed")
	}
}
