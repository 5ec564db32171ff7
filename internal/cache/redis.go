// Package cache holds the redis read-through cache for wallet balances.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/punchamoorthee/creatorpay/internal/domain"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "creatorpay:wallet:"

// Connect initializes a Redis client from URL or host:port input.
func Connect(ctx context.Context, redisURL string) (*redis.Client, error) {
	var client *redis.Client
	if strings.HasPrefix(redisURL, "redis://") || strings.HasPrefix(redisURL, "rediss://") {
		opt, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		client = redis.NewClient(opt)
	} else {
		client = redis.NewClient(&redis.Options{Addr: redisURL})
	}
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// BalanceCache stores wallet snapshots as JSON under creatorpay:wallet:{<id>}.
// Every invalidation bumps a per-wallet generation counter, and a fill only
// lands if the generation it read before going to the store is still current,
// so a reader that loaded a balance before a commit cannot overwrite the
// invalidation that followed it.
type BalanceCache struct {
	client *redis.Client
	ttl    time.Duration
}

// generationTTL outlives any plausible read-then-fill window.
const generationTTL = 24 * time.Hour

var setIfCurrent = redis.NewScript(`
local gen = redis.call('GET', KEYS[2])
if not gen then gen = '0' end
if gen ~= ARGV[1] then return 0 end
redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
return 1
`)

func NewBalanceCache(client *redis.Client, ttl time.Duration) *BalanceCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &BalanceCache{client: client, ttl: ttl}
}

// Key uses a hash tag so the snapshot and its generation share a cluster slot.
func Key(ownerID uuid.UUID) string {
	return keyPrefix + "{" + ownerID.String() + "}"
}

func generationKey(ownerID uuid.UUID) string {
	return Key(ownerID) + ":gen"
}

// Get returns the cached wallet and the generation to pass to Set on a miss.
func (c *BalanceCache) Get(ctx context.Context, ownerID uuid.UUID) (w domain.Wallet, gen int64, ok bool, err error) {
	vals, err := c.client.MGet(ctx, Key(ownerID), generationKey(ownerID)).Result()
	if err != nil {
		return domain.Wallet{}, 0, false, err
	}
	if raw, isStr := vals[1].(string); isStr {
		if gen, err = strconv.ParseInt(raw, 10, 64); err != nil {
			return domain.Wallet{}, 0, false, fmt.Errorf("decode generation of wallet %s: %w", ownerID, err)
		}
	}
	raw, isStr := vals[0].(string)
	if !isStr {
		return domain.Wallet{}, gen, false, nil
	}
	if err := json.Unmarshal([]byte(raw), &w); err != nil {
		return domain.Wallet{}, gen, false, fmt.Errorf("decode cached wallet %s: %w", ownerID, err)
	}
	return w, gen, true, nil
}

// Set stores w unless the wallet was invalidated after gen was read.
func (c *BalanceCache) Set(ctx context.Context, w domain.Wallet, gen int64) error {
	raw, err := json.Marshal(w)
	if err != nil {
		return err
	}
	return setIfCurrent.Run(ctx, c.client,
		[]string{Key(w.OwnerID), generationKey(w.OwnerID)},
		strconv.FormatInt(gen, 10), raw, c.ttl.Milliseconds(),
	).Err()
}

func (c *BalanceCache) Invalidate(ctx context.Context, ownerIDs ...uuid.UUID) error {
	if len(ownerIDs) == 0 {
		return nil
	}
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, id := range ownerIDs {
			pipe.Incr(ctx, generationKey(id))
			pipe.Expire(ctx, generationKey(id), generationTTL)
			pipe.Del(ctx, Key(id))
		}
		return nil
	})
	return err
}

// Nop is used when no redis URL is configured.
type Nop struct{}

func (Nop) Get(context.Context, uuid.UUID) (domain.Wallet, int64, bool, error) {
	return domain.Wallet{}, 0, false, nil
}

func (Nop) Set(context.Context, domain.Wallet, int64) error { return nil }

func (Nop) Invalidate(context.Context, ...uuid.UUID) error { return nil }
