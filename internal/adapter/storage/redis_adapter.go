package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rl1809/batch-allocation/internal/core/domain"
)

const (
	allocationsKeyPrefix = "allocations:"
	allocationsKeyTTL    = 30 * 24 * time.Hour
)

// removeAllocationScript deletes the sku of an order and drops the hash once
// the order has nothing left, in one round trip.
var removeAllocationScript = redis.NewScript(`
local key = KEYS[1]
local sku = ARGV[1]

local removed = redis.call('HDEL', key, sku)
if redis.call('HLEN', key) == 0 then
	redis.call('DEL', key)
end

return removed
`)

// RedisAdapter publishes domain events on Redis channels and keeps the
// allocations read model as one hash per order (sku -> batchref).
type RedisAdapter struct {
	client *redis.Client
}

func NewRedisAdapter(client *redis.Client) *RedisAdapter {
	return &RedisAdapter{client: client}
}

func (r *RedisAdapter) Publish(ctx context.Context, channel string, event domain.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", event.MessageName(), err)
	}
	return r.client.Publish(ctx, channel, payload).Err()
}

func (r *RedisAdapter) AddAllocation(ctx context.Context, orderID, sku, batchRef string) error {
	key := allocationsKeyPrefix + orderID

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, sku, batchRef)
		pipe.Expire(ctx, key, allocationsKeyTTL)
		return nil
	})
	return err
}

func (r *RedisAdapter) RemoveAllocation(ctx context.Context, orderID, sku string) error {
	key := allocationsKeyPrefix + orderID
	return removeAllocationScript.Run(ctx, r.client, []string{key}, sku).Err()
}

func (r *RedisAdapter) Allocations(ctx context.Context, orderID string) ([]domain.AllocationView, error) {
	fields, err := r.client.HGetAll(ctx, allocationsKeyPrefix+orderID).Result()
	if err != nil {
		return nil, err
	}

	views := make([]domain.AllocationView, 0, len(fields))
	for sku, batchRef := range fields {
		views = append(views, domain.AllocationView{SKU: sku, BatchRef: batchRef})
	}
	slices.SortFunc(views, func(a, b domain.AllocationView) int {
		return strings.Compare(a.SKU, b.SKU)
	})
	return views, nil
}
