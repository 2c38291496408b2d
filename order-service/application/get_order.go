package application

import (
	"context"
	"log"

	"github.com/agrimarket/order-system/order-service/domain"
	"github.com/agrimarket/order-system/shared/models"
	"github.com/pkg/errors"
)

// GetOrder use case reads a single order, cache first
type GetOrder struct {
	orderRepository domain.OrderRepository
	orderCache      OrderCache
}

// NewGetOrder creates a new GetOrder use case
func NewGetOrder(orderRepository domain.OrderRepository, orderCache OrderCache) *GetOrder {
	return &GetOrder{
		orderRepository: orderRepository,
		orderCache:      orderCache,
	}
}

// Execute returns the order with the given ID
func (uc *GetOrder) Execute(ctx context.Context, orderID string) (*domain.Order, error) {
	id, err := models.NewID(orderID)
	if err != nil {
		return nil, errors.Wrap(err, "invalid order ID")
	}

	cached, err := uc.orderCache.Get(ctx, id)
	if err != nil {
		log.Printf("cache read for order %s failed: %v", id, err)
	}
	if cached != nil {
		return cached, nil
	}

	order, err := uc.orderRepository.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := uc.orderCache.Set(ctx, order); err != nil {
		log.Printf("failed to cache order %s: %v", id, err)
	}

	return order, nil
}
