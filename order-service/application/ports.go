package application

import (
	"context"

	"github.com/agrimarket/order-system/order-service/domain"
	"github.com/agrimarket/order-system/shared/models"
)

// OrderCache is a read-through cache for order lookups. Get returns
// (nil, nil) on a miss.
type OrderCache interface {
	Get(ctx context.Context, id models.ID) (*domain.Order, error)
	Set(ctx context.Context, order *domain.Order) error
	Invalidate(ctx context.Context, id models.ID) error
}
