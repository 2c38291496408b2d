package infrastructure

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/agrimarket/order-system/order-service/domain"
	"github.com/agrimarket/order-system/shared/models"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const orderCacheTTL = time.Hour

// RedisOrderCache caches order reads to keep hot lookups off Postgres
type RedisOrderCache struct {
	client *redis.Client
}

// NewRedisOrderCache creates a new RedisOrderCache
func NewRedisOrderCache(client *redis.Client) *RedisOrderCache {
	return &RedisOrderCache{client: client}
}

// cachedOrder is the cache representation of an order. Recorded domain
// events are not cached.
type cachedOrder struct {
	ID              models.ID          `json:"id"`
	UserID          models.ID          `json:"user_id"`
	Items           []domain.OrderItem `json:"items"`
	TotalAmount     models.Money       `json:"total_amount"`
	PaymentMethod   string             `json:"payment_method"`
	ShippingAddress domain.Address     `json:"shipping_address"`
	Notes           string             `json:"notes,omitempty"`
	Status          domain.OrderStatus `json:"status"`
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at"`
	Version         int                `json:"version"`
}

// Get returns the cached order, or (nil, nil) on a cache miss
func (c *RedisOrderCache) Get(ctx context.Context, id models.ID) (*domain.Order, error) {
	data, err := c.client.Get(ctx, orderKey(id)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to read order from cache")
	}

	var cached cachedOrder
	if err := json.Unmarshal(data, &cached); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal cached order")
	}

	return &domain.Order{
		ID:              cached.ID,
		UserID:          cached.UserID,
		Items:           cached.Items,
		TotalAmount:     cached.TotalAmount,
		PaymentMethod:   cached.PaymentMethod,
		ShippingAddress: cached.ShippingAddress,
		Notes:           cached.Notes,
		Status:          cached.Status,
		Timestamps: models.Timestamps{
			CreatedAt: cached.CreatedAt,
			UpdatedAt: cached.UpdatedAt,
		},
		Version: models.Version{Value: cached.Version},
	}, nil
}

// Set stores the order for one hour
func (c *RedisOrderCache) Set(ctx context.Context, order *domain.Order) error {
	data, err := json.Marshal(cachedOrder{
		ID:              order.ID,
		UserID:          order.UserID,
		Items:           order.Items,
		TotalAmount:     order.TotalAmount,
		PaymentMethod:   order.PaymentMethod,
		ShippingAddress: order.ShippingAddress,
		Notes:           order.Notes,
		Status:          order.Status,
		CreatedAt:       order.Timestamps.CreatedAt,
		UpdatedAt:       order.Timestamps.UpdatedAt,
		Version:         order.Version.Value,
	})
	if err != nil {
		return errors.Wrap(err, "failed to marshal order for cache")
	}

	err = c.client.Set(ctx, orderKey(order.ID), data, orderCacheTTL).Err()
	return errors.Wrap(err, "failed to write order to cache")
}

// Invalidate drops the cached order after a status change
func (c *RedisOrderCache) Invalidate(ctx context.Context, id models.ID) error {
	err := c.client.Del(ctx, orderKey(id)).Err()
	return errors.Wrap(err, "failed to invalidate cached order")
}

func orderKey(id models.ID) string {
	return fmt.Sprintf("order:%s", id)
}
